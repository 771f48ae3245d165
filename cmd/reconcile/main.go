// Command reconcile runs a single reconciliation pass, either in-process
// against the configured store or remotely through the admin gRPC endpoint.
//
//	reconcile -kind training
//	reconcile -kind all -purge
//	reconcile -remote localhost:50051 -kind event
//
// Store, sink and token settings come from the same flags and JSON config as
// the server. In-process runs require a database DSN. Output is human readable on a terminal and JSON otherwise.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"golang.org/x/term"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dmitrijs2005/sporthack/internal/flagx"
	"github.com/dmitrijs2005/sporthack/internal/server"
	"github.com/dmitrijs2005/sporthack/internal/server/auth"
	"github.com/dmitrijs2005/sporthack/internal/server/config"
	"github.com/dmitrijs2005/sporthack/internal/server/models"

	gs "github.com/dmitrijs2005/sporthack/internal/server/grpc"
)

type options struct {
	kind   string
	purge  bool
	remote string
}

// summary is what a run reports, whatever the mode.
type summary struct {
	Claimed map[string]int `json:"claimed"`
	Purged  *int64         `json:"purged,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func parseOptions(args []string) (*options, error) {
	o := &options{}

	args = flagx.FilterArgs(args, []string{"-kind", "--kind", "-purge", "--purge", "-remote", "--remote"})

	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.kind, "kind", "all", "occurrence kind: training, event or all")
	fs.BoolVar(&o.purge, "purge", false, "also delete expired reset codes")
	fs.StringVar(&o.remote, "remote", "", "admin gRPC address; empty runs in-process")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if o.kind != "all" {
		if _, err := models.ParseKind(o.kind); err != nil {
			return nil, err
		}
	}
	if o.purge && o.remote != "" {
		return nil, fmt.Errorf("-purge is not available with -remote")
	}
	return o, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	var s *summary
	if opts.remote != "" {
		s, err = runRemote(ctx, cfg, opts)
	} else {
		s, err = runLocal(ctx, cfg, opts)
	}
	if s != nil {
		report(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())), s)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if s != nil && s.Error != "" {
		os.Exit(1)
	}
}

func runRemote(ctx context.Context, cfg *config.Config, opts *options) (*summary, error) {
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.AdminTokenSecret != "" {
		tok, err := auth.GenerateToken("reconcile", []byte(cfg.AdminTokenSecret), time.Minute, time.Now())
		if err != nil {
			return nil, err
		}
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(auth.BearerToken(tok)))
	}

	conn, err := grpc.NewClient(opts.remote, dialOpts...)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := gs.NewClient(conn).Reconcile(ctx, opts.kind)
	if err != nil {
		return nil, err
	}

	s := &summary{Claimed: map[string]int{}, Error: resp.GetFields()["error"].GetStringValue()}
	for kind, ids := range resp.GetFields()["claimed"].GetStructValue().GetFields() {
		s.Claimed[kind] = len(ids.GetListValue().GetValues())
	}
	return s, nil
}

// errNoStore refuses an in-process run that would only see a fresh, empty
// in-memory store.
var errNoStore = errors.New("in-process reconcile needs a database: set -d or database_dsn, or use -remote to reach a running server")

func runLocal(ctx context.Context, cfg *config.Config, opts *options) (*summary, error) {
	if cfg.DatabaseDSN == "" {
		return nil, errNoStore
	}

	app, err := server.NewApp(ctx, cfg, server.NewConsoleLogger(cfg.LogLevel))
	if err != nil {
		return nil, err
	}

	s := &summary{Claimed: map[string]int{}}
	err = app.Once(ctx, func(ctx context.Context) error {
		now := time.Now()

		var (
			claimed map[models.OccurrenceKind][]string
			err     error
		)
		if opts.kind == "all" {
			claimed, err = app.Reconciler.RunAll(ctx, now)
		} else {
			kind := models.OccurrenceKind(opts.kind)
			var ids []string
			ids, err = app.Reconciler.Run(ctx, kind, now)
			claimed = map[models.OccurrenceKind][]string{kind: ids}
		}
		for kind, ids := range claimed {
			s.Claimed[string(kind)] = len(ids)
		}
		if err != nil {
			s.Error = err.Error()
			return nil
		}

		if opts.purge {
			n, err := app.ResetCodes.PurgeExpired(ctx, now)
			if err != nil {
				return err
			}
			s.Purged = &n
		}
		return nil
	})
	return s, err
}

func report(w io.Writer, human bool, s *summary) {
	if !human {
		_ = json.NewEncoder(w).Encode(s)
		return
	}

	kinds := make([]string, 0, len(s.Claimed))
	for k := range s.Claimed {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "%-10s %d claimed\n", k, s.Claimed[k])
	}
	if s.Purged != nil {
		fmt.Fprintf(w, "%-10s %d purged\n", "codes", *s.Purged)
	}
	if s.Error != "" {
		fmt.Fprintf(w, "error: %s\n", s.Error)
	}
}
