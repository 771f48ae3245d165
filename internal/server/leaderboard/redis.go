// Package leaderboard mirrors the rating accumulators into redis sorted sets
// for fast ranking queries. The store remains the source of truth: the board
// is updated from notifications and periodically rebuilt from the store.
//
// Every training credited on the board is remembered in a set. A rebuild
// resets the set to the trainings its snapshot already includes, so a
// completion delivered twice, or delivered after a rebuild that counted it,
// is applied once.
package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/sporthack/internal/server/models"
	"github.com/dmitrijs2005/sporthack/internal/server/notify"
)

const (
	keyUsers         = "leaderboard:users"
	keyApplied       = "leaderboard:applied"
	keySectionPrefix = "leaderboard:section:"
)

// KEYS: applied set, users board, section board.
// ARGV: training id, delta, section id, user ids...
var creditScript = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 0 then
	return 0
end
for i = 4, #ARGV do
	redis.call('ZINCRBY', KEYS[2], ARGV[2], ARGV[i])
	if ARGV[3] ~= '' then
		redis.call('ZINCRBY', KEYS[3], ARGV[2], ARGV[i])
	end
end
return 1
`)

func sectionKey(sectionID string) string { return keySectionPrefix + sectionID }

// Entry is one ranked user.
type Entry struct {
	UserID string
	Rating int64
}

type RedisBoard struct {
	client redis.UniversalClient
}

func NewRedisBoard(client redis.UniversalClient) *RedisBoard {
	return &RedisBoard{client: client}
}

// Connect parses a redis URL and verifies the connection.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (b *RedisBoard) Name() string { return "leaderboard" }

// Deliver credits the attendees of a completed training once per training.
// Other kinds are ignored.
func (b *RedisBoard) Deliver(ctx context.Context, n notify.Notification) error {
	if n.Kind != notify.KindTrainingCompleted || n.OccurrenceID == "" || len(n.UserIDs) == 0 || n.DurationMinutes <= 0 {
		return nil
	}

	args := make([]any, 0, len(n.UserIDs)+3)
	args = append(args, n.OccurrenceID, n.DurationMinutes, n.SectionID)
	for _, userID := range n.UserIDs {
		args = append(args, userID)
	}

	keys := []string{keyApplied, keyUsers, sectionKey(n.SectionID)}
	if _, err := creditScript.Run(ctx, b.client, keys, args...).Int(); err != nil {
		return fmt.Errorf("leaderboard increment: %w", err)
	}
	return nil
}

// Top returns the n highest rated users, globally when sectionID is empty.
func (b *RedisBoard) Top(ctx context.Context, sectionID string, n int64) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	key := keyUsers
	if sectionID != "" {
		key = sectionKey(sectionID)
	}

	zs, err := b.client.ZRevRangeWithScores(ctx, key, 0, n-1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("leaderboard top: %w", err)
	}

	out := make([]Entry, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, Entry{UserID: id, Rating: int64(z.Score)})
	}
	return out, nil
}

// Rebuild replaces every board and the set of credited trainings with snap
// in one MULTI/EXEC.
func (b *RedisBoard) Rebuild(ctx context.Context, snap *models.RatingSnapshot) error {
	stale, err := b.sectionKeys(ctx)
	if err != nil {
		return err
	}

	bySection := make(map[string][]redis.Z)
	for _, m := range snap.Members {
		bySection[m.SectionID] = append(bySection[m.SectionID], redis.Z{Score: float64(m.Rating), Member: m.UserID})
	}

	pipe := b.client.TxPipeline()
	pipe.Del(ctx, append(stale, keyUsers, keyApplied)...)

	if len(snap.Users) > 0 {
		zs := make([]redis.Z, 0, len(snap.Users))
		for _, u := range snap.Users {
			zs = append(zs, redis.Z{Score: float64(u.Rating), Member: u.UserID})
		}
		pipe.ZAdd(ctx, keyUsers, zs...)
	}
	for sectionID, zs := range bySection {
		pipe.ZAdd(ctx, sectionKey(sectionID), zs...)
	}
	if len(snap.Completed) > 0 {
		ids := make([]any, 0, len(snap.Completed))
		for _, id := range snap.Completed {
			ids = append(ids, id)
		}
		pipe.SAdd(ctx, keyApplied, ids...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("leaderboard rebuild: %w", err)
	}
	return nil
}

func (b *RedisBoard) sectionKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, keySectionPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("leaderboard scan: %w", err)
	}
	return keys, nil
}
