// Package httpd implements the serve command: the dashboard HTTP server
// with the job engine, scraper kinds, and optional scheduler.
package httpd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/4liaghaie/scraper-dashboard/internal/api"
	"github.com/4liaghaie/scraper-dashboard/internal/config"
	"github.com/4liaghaie/scraper-dashboard/internal/database"
	"github.com/4liaghaie/scraper-dashboard/internal/engine"
	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
	"github.com/4liaghaie/scraper-dashboard/internal/logger"
	"github.com/4liaghaie/scraper-dashboard/internal/params"
	"github.com/4liaghaie/scraper-dashboard/internal/scheduler"
	"github.com/4liaghaie/scraper-dashboard/internal/scrapers"
)

// Command returns the serve command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
}

func run() error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck // stderr sync failure is harmless

	deps, cleanup, err := buildDeps(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	return serve(cfg, log, deps)
}

// appDeps holds the wired application pieces the server needs.
type appDeps struct {
	registry *jobs.Registry
	eng      *engine.Engine
	sched    *scheduler.Scheduler
	router   http.Handler
}

func buildDeps(cfg *config.Config, log logger.Logger) (*appDeps, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Parameter persistence: redis when configured, in-memory otherwise.
	var cache params.Cache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanups = append(cleanups, func() { _ = rdb.Close() })
		cache = params.NewRedisCache(rdb)
		log.Info("parameter store backed by redis", logger.String("addr", cfg.Redis.Addr))
	} else {
		cache = params.NewMemoryCache()
		log.Info("parameter store in memory; values reset on restart")
	}
	store := params.NewStore(cache, log)

	// Run persistence and product storage: postgres when configured.
	registryOpts := []jobs.Option{jobs.WithWatchBuffer(cfg.Engine.WatchBuffer)}
	var sink scrapers.ProductSink
	if cfg.Database.Enabled {
		db, err := database.NewPostgresConnection(cfg.Database.Conn())
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		cleanups = append(cleanups, func() { _ = db.Close() })
		if err := database.Migrate(context.Background(), db); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		registryOpts = append(registryOpts, jobs.WithRecorder(database.NewRunRepository(db)))
		sink = database.NewProductRepository(db)
		log.Info("products and job runs persisted to postgres",
			logger.String("host", cfg.Database.Host),
		)
	} else {
		sink = scrapers.NewMemorySink()
		log.Info("product store in memory; contents reset on restart")
	}

	registry := jobs.NewRegistry(log, registryOpts...)
	eng := engine.New(log, registry, store,
		engine.WithMaxConcurrent(cfg.Engine.MaxConcurrent),
	)

	factoryOpts := []scrapers.FactoryOption{}
	if cfg.Scraper.UserAgent != "" {
		factoryOpts = append(factoryOpts, scrapers.WithUserAgent(cfg.Scraper.UserAgent))
	}
	factory := scrapers.NewFactory(log, sink, factoryOpts...)
	for _, kind := range factory.Kinds() {
		if err := eng.Register(kind); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("register kind %s: %w", kind.Name, err)
		}
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(log, eng)
		if err := sched.Add(scheduler.Entry{
			Spec: cfg.Scheduler.FullRunSpec,
			Kind: "full_fresh_run",
		}); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	router := api.NewRouter(api.RouterDeps{
		Jobs:    api.NewJobsHandler(eng, registry, log),
		Watcher: registry,
		Logger:  log,
	})

	return &appDeps{registry: registry, eng: eng, sched: sched, router: router}, cleanup, nil
}

func serve(cfg *config.Config, log logger.Logger, deps *appDeps) error {
	server := &http.Server{
		Addr:        cfg.Server.Address,
		Handler:     deps.router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays zero so event streams are not cut off.
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("http server listening", logger.String("addr", cfg.Server.Address))
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	if deps.sched != nil {
		deps.sched.Start()
		log.Info("scheduler started", logger.String("spec", cfg.Scheduler.FullRunSpec))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case serverErr := <-errChan:
		return fmt.Errorf("server error: %w", serverErr)
	case sig := <-sigChan:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if deps.sched != nil {
		if err := deps.sched.Stop(shutdownCtx); err != nil {
			log.Warn("scheduler did not stop cleanly", logger.Error(err))
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server did not stop cleanly", logger.Error(err))
	}

	if err := deps.eng.Close(shutdownCtx); err != nil {
		return fmt.Errorf("engine shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
