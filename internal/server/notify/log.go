package notify

import (
	"context"

	"github.com/dmitrijs2005/sporthack/internal/logging"
)

// LogSink writes notifications to the service log. Reset codes are never
// logged.
type LogSink struct {
	logger logging.Logger
}

func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, n Notification) error {
	args := []any{"id", n.ID, "kind", n.Kind}
	if n.OccurrenceID != "" {
		args = append(args, "occurrence_id", n.OccurrenceID)
	}
	if n.SectionID != "" {
		args = append(args, "section_id", n.SectionID)
	}
	if n.UserID != "" {
		args = append(args, "user_id", n.UserID)
	}
	if len(n.UserIDs) > 0 {
		args = append(args, "attendees", len(n.UserIDs))
	}
	s.logger.Info(ctx, "notification", args...)
	return nil
}
