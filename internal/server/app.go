// Package server wires the reconciliation service together: store, services,
// notification sinks, scheduler and the admin/ops endpoints.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/sporthack/internal/dbx"
	"github.com/dmitrijs2005/sporthack/internal/logging"
	"github.com/dmitrijs2005/sporthack/internal/server/config"
	"github.com/dmitrijs2005/sporthack/internal/server/httpserver"
	"github.com/dmitrijs2005/sporthack/internal/server/leaderboard"
	"github.com/dmitrijs2005/sporthack/internal/server/metrics"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
	"github.com/dmitrijs2005/sporthack/internal/server/notify"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/memory"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sporthack/internal/server/scheduler"
	"github.com/dmitrijs2005/sporthack/internal/server/services"

	gs "github.com/dmitrijs2005/sporthack/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	store      dbx.Transactor
	snapshots  dbx.Transactor
	repos      repomanager.RepositoryManager
	dispatcher *notify.Dispatcher
	board      *leaderboard.RedisBoard

	Reconciler *services.Reconciler
	Gate       *services.RegistrationGate
	ResetCodes *services.ResetCodeService
	scheduler  *scheduler.Scheduler

	closers []func() error
}

// NewLogger builds the JSON logger of the daemon.
func NewLogger(level string) logging.Logger {
	return logging.NewJSON(os.Stdout, parseLevel(level))
}

// NewConsoleLogger logs text to stderr, leaving stdout to command output.
func NewConsoleLogger(level string) logging.Logger {
	return logging.NewText(os.Stderr, parseLevel(level))
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// NewApp opens the store and optional sinks and builds every component. The
// caller must Close the app, or Run it, which closes it on return.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (_ *App, err error) {
	app := &App{
		config:   c,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.metrics = metrics.New(app.registry)

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}

	sinks := []notify.Sink{notify.NewLogSink(logger.With("module", "notify"))}

	if len(c.KafkaBrokers) > 0 {
		client, err := notify.NewKafkaClient(c.KafkaBrokers, c.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka init error: %w", err)
		}
		app.closers = append(app.closers, func() error { client.Close(); return nil })
		if err := notify.EnsureTopic(ctx, client, c.KafkaTopic); err != nil {
			return nil, fmt.Errorf("kafka init error: %w", err)
		}
		sinks = append(sinks, notify.NewKafkaSink(client, c.KafkaTopic))
	}

	if c.RedisURL != "" {
		client, err := leaderboard.Connect(ctx, c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		app.board = leaderboard.NewRedisBoard(client)
		sinks = append(sinks, app.board)
	}

	app.dispatcher = notify.NewDispatcher(c.NotificationBuffer, logger.With("module", "dispatcher"), app.metrics, sinks...)

	ledger := services.NewRatingLedger(app.repos, logger, app.metrics, c.ApplyRetries, c.ApplyRetryDelay)
	engine := services.NewClaimEngine(app.store, app.repos, app.dispatcher, logger, app.metrics)
	engine.Handle(models.KindTraining, ledger.Hook())

	app.Reconciler = services.NewReconciler(engine, ledger, app.store, app.repos, app.dispatcher)
	app.Gate = services.NewRegistrationGate(app.store, app.repos, app.dispatcher, logger, app.metrics, c.TrainingGracePeriod)
	app.ResetCodes = services.NewResetCodeService(app.store, app.repos, app.dispatcher, logger, app.metrics, c.ResetCodeTTL, c.ResetCodeAttemptsPerMinute)

	if err := app.initScheduler(); err != nil {
		return nil, err
	}

	return app, nil
}

func (app *App) initStore(ctx context.Context) error {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database DSN configured, using the in-memory store")
		store := memory.NewStore()
		app.store = store
		app.snapshots = store
		app.repos = memory.NewManager()
		return nil
	}

	db, err := repomanager.OpenPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("db migrations error: %w", err)
	}

	app.store = dbx.NewSQLTransactor(db, nil)
	app.snapshots = dbx.NewSQLTransactor(db, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	app.repos = rm
	return nil
}

func (app *App) initScheduler() error {
	c := app.config
	app.scheduler = scheduler.New(app.logger)

	jobs := []struct {
		job      scheduler.Job
		interval time.Duration
	}{
		{scheduler.ReconcileJob(scheduler.JobReconcileTrainings, app.Reconciler, models.KindTraining, time.Now), c.ReconcileInterval},
		{scheduler.ReconcileJob(scheduler.JobReconcileEvents, app.Reconciler, models.KindEvent, time.Now), c.ReconcileInterval},
		{scheduler.PurgeJob(app.ResetCodes, time.Now), c.PurgeInterval},
	}
	if app.board != nil {
		jobs = append(jobs, struct {
			job      scheduler.Job
			interval time.Duration
		}{scheduler.RebuildLeaderboardJob(services.NewRatingSnapshots(app.snapshots, app.repos), app.board), c.LeaderboardRebuildInterval})
	}

	for _, j := range jobs {
		if err := app.scheduler.Register(j.job, j.interval); err != nil {
			return err
		}
	}
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves gRPC and ops HTTP and runs the scheduler until a signal arrives
// or one of them fails. Queued notifications are delivered before returning.
func (app *App) Run(ctx context.Context) error {
	defer func() { _ = app.Close() }()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	stopDispatch := app.startDispatcher(ctx)
	defer stopDispatch()

	var board httpserver.Board
	if app.board != nil {
		board = app.board
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srv := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.Reconciler, app.Gate, app.ResetCodes,
			gs.WithTokenSecret([]byte(app.config.AdminTokenSecret)))
		return srv.Run(ctx)
	})
	g.Go(func() error {
		router := httpserver.NewRouter(app.store, app.registry, board, app.logger)
		return httpserver.NewServer(app.config.EndpointAddrHTTP, router, app.logger).Run(ctx, app.config.ShutdownTimeout)
	})
	g.Go(func() error {
		return app.scheduler.Run(ctx)
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error(ctx, "app stopped with error", "error", err)
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}

// Once runs fn with the notification dispatcher active and then flushes it.
// It is used by one-shot commands.
func (app *App) Once(ctx context.Context, fn func(ctx context.Context) error) error {
	defer func() { _ = app.Close() }()

	stopDispatch := app.startDispatcher(ctx)
	defer stopDispatch()

	return fn(ctx)
}

// startDispatcher runs the dispatcher detached from ctx so that it outlives
// the producers; the returned func stops it and waits for the queue to drain.
func (app *App) startDispatcher(ctx context.Context) func() {
	dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = app.dispatcher.Run(dctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// Close releases the store and sink connections. It is safe to call twice.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}
