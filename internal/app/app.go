// Package app wires the scheduler's components together and runs either
// the api or worker mode, mirroring the teacher's mode-dispatching Run
// entry point.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ktharrington/Scheduler-Application/internal/audit"
	"github.com/ktharrington/Scheduler-Application/internal/config"
	"github.com/ktharrington/Scheduler-Application/internal/httpserver"
	"github.com/ktharrington/Scheduler-Application/internal/platform"
	"github.com/ktharrington/Scheduler-Application/internal/telemetry"
	"github.com/ktharrington/Scheduler-Application/pkg/account"
	"github.com/ktharrington/Scheduler-Application/pkg/governor"
	"github.com/ktharrington/Scheduler-Application/pkg/media"
	"github.com/ktharrington/Scheduler-Application/pkg/planner"
	"github.com/ktharrington/Scheduler-Application/pkg/platformclient"
	"github.com/ktharrington/Scheduler-Application/pkg/post"
	"github.com/ktharrington/Scheduler-Application/pkg/scheduler"
)

// Run reads config, connects to infrastructure, and starts the appropriate
// mode (api or worker).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting scheduler", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewRegistry(telemetry.All()...)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, db, rdb)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// wiring holds the domain services shared by both api and worker modes.
type wiring struct {
	accounts   *account.Service
	assets     *media.Store
	posts      *post.Store
	postSvc    *post.Service
	gov        *governor.Governor
	plat       platformclient.Client
	plannerSvc *planner.Planner
	auditLog   *audit.Writer
}

func build(cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) *wiring {
	accountStore := account.NewStore(db)
	postStore := post.NewStore(db)
	accountSvc := account.NewService(accountStore, postStore)

	assetStore := media.NewStore(db)
	postSvc := post.NewService(postStore, accountSvc, assetStore)

	callTimeout, err := time.ParseDuration(cfg.PlatformCallTimeout)
	if err != nil {
		callTimeout = 15 * time.Second
	}

	var plat platformclient.Client
	if cfg.PlatformBaseURL == "" {
		plat = &platformclient.NoopClient{Logger: logger}
	} else {
		plat = platformclient.NewHTTPClient(cfg.PlatformBaseURL, cfg.PlatformQPS, callTimeout)
	}

	quotaSource := platformclient.NewQuotaSource(plat, accountSvc.Get)
	gov := governor.New(rdb, quotaSource)

	plannerSvc := planner.New(accountSvc, postStore, postStore.NonTerminalOnDate)

	auditWriter := audit.NewWriter(db, logger)

	return &wiring{
		accounts:   accountSvc,
		assets:     assetStore,
		posts:      postStore,
		postSvc:    postSvc,
		gov:        gov,
		plat:       plat,
		plannerSvc: plannerSvc,
		auditLog:   auditWriter,
	}
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	w := build(cfg, logger, db, rdb)
	w.auditLog.Start(ctx)
	defer w.auditLog.Close()

	srv := httpserver.NewServer(cfg.CORSAllowedOrigins, logger, db, rdb, metricsReg)

	accountHandler := account.NewHandler(logger, w.accounts, w.postSvc, w.auditLog)
	srv.APIRouter.Mount("/accounts", accountHandler.Routes())

	mediaHandler := media.NewHandler(logger, w.assets)
	srv.APIRouter.Mount("/media", mediaHandler.Routes())

	postHandler := post.NewHandler(logger, w.postSvc, w.auditLog)
	postRoutes := postHandler.Routes()

	// The planner's batch routes share the /posts prefix; chi allows only
	// one Mount per pattern, so they are attached to the post router.
	plannerHandler := planner.NewHandler(logger, w.plannerSvc)
	plannerRoutes := plannerHandler.Routes()
	postRoutes.Handle("/batch_preflight", plannerRoutes)
	postRoutes.Handle("/batch/commit", plannerRoutes)
	srv.APIRouter.Mount("/posts", postRoutes)

	leaseTTL, err := time.ParseDuration(cfg.LeaseTTL)
	if err != nil {
		leaseTTL = 5 * time.Minute
	}
	leaseGrace, err := time.ParseDuration(cfg.LeaseGrace)
	if err != nil {
		leaseGrace = 0
	}
	driver := scheduler.NewDriver(w.posts, w.accounts, w.gov, w.plat, logger, w.auditLog, cfg.MaxRetries)
	sched := scheduler.New(scheduler.Config{
		LeaseTTL:       leaseTTL,
		LeaseGrace:     leaseGrace,
		BatchSize:      cfg.LeaseBatchSize,
		WorkerPoolSize: cfg.WorkerPoolSize,
	}, w.posts, driver, logger)

	// The api process also exposes an on-demand trigger that runs one
	// lease+dispatch cycle synchronously (§9: publish_due is equivalent to
	// one Scheduler tick), useful for tests and manual operator nudges
	// without waiting on the worker process's ticker.
	srv.APIRouter.Post("/posts/publish_due", func(resp http.ResponseWriter, req *http.Request) {
		sched.Tick(req.Context())
		httpserver.Respond(resp, http.StatusOK, map[string]bool{"ok": true})
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) error {
	w := build(cfg, logger, db, rdb)
	w.auditLog.Start(ctx)
	defer w.auditLog.Close()

	logger.Info("worker started")

	tickInterval, err := time.ParseDuration(cfg.TickInterval)
	if err != nil {
		tickInterval = 5 * time.Second
	}
	leaseTTL, err := time.ParseDuration(cfg.LeaseTTL)
	if err != nil {
		leaseTTL = 5 * time.Minute
	}
	leaseGrace, err := time.ParseDuration(cfg.LeaseGrace)
	if err != nil {
		leaseGrace = 0
	}

	driver := scheduler.NewDriver(w.posts, w.accounts, w.gov, w.plat, logger, w.auditLog, cfg.MaxRetries)
	sched := scheduler.New(scheduler.Config{
		TickInterval:   tickInterval,
		LeaseTTL:       leaseTTL,
		LeaseGrace:     leaseGrace,
		BatchSize:      cfg.LeaseBatchSize,
		WorkerPoolSize: cfg.WorkerPoolSize,
	}, w.posts, driver, logger)

	return sched.Run(ctx)
}
