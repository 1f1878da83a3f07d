// Package app wires configuration into a running scanner: store, page
// driver, rules, metrics, service and the optional background jobs
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/olegrjumin/cookieguard/internal/browser"
	"github.com/olegrjumin/cookieguard/internal/config"
	"github.com/olegrjumin/cookieguard/internal/consent"
	"github.com/olegrjumin/cookieguard/internal/httpapi"
	"github.com/olegrjumin/cookieguard/internal/httpclient"
	"github.com/olegrjumin/cookieguard/internal/logging"
	"github.com/olegrjumin/cookieguard/internal/metrics"
	"github.com/olegrjumin/cookieguard/internal/service"
	"github.com/olegrjumin/cookieguard/internal/store"
)

// shutdownTimeout bounds graceful HTTP shutdown
const shutdownTimeout = 10 * time.Second

// App holds the wired components
type App struct {
	Config  *config.Config
	Logger  *logging.Logger
	Service *service.Service
	Store   store.Store
	Metrics *metrics.Collector

	browser httpapi.BrowserHealth
	closers []func() error
}

// New validates cfg and builds all components
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rules := consent.DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := consent.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
		logger.Info("Rules loaded", "path", cfg.RulesFile)
	}

	dsn := cfg.SQLitePath
	if cfg.StoreDriver == store.DriverPostgres {
		dsn = cfg.DatabaseURL
	}
	st, err := store.Open(ctx, cfg.StoreDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   st,
		Metrics: metrics.NewCollector(nil),
		closers: []func() error{st.Close},
	}

	opener := a.openDriver()
	a.Service = service.New(rules, opener, st, a.Metrics, logger, service.ScanOptions{
		NavTimeout:  cfg.NavTimeout,
		BannerWait:  cfg.BannerWait,
		SettleDelay: cfg.SettleDelay,
	})

	logger.Info("Scanner ready",
		"store", cfg.StoreDriver,
		"driver", cfg.BrowserDriver,
		"concurrency", cfg.ScanConcurrency,
	)
	return a, nil
}

// openDriver starts Chrome when configured, falling back to the static
// HTTP driver if the browser cannot start
func (a *App) openDriver() service.Opener {
	if a.Config.BrowserDriver == "chrome" {
		opts := browser.DefaultOptions()
		opts.PoolSize = a.Config.BrowserPoolSize
		opts.ExecPath = a.Config.ChromePath
		if a.Config.UserAgent != "" {
			opts.UserAgent = a.Config.UserAgent
		}

		b, err := browser.New(opts, a.Logger)
		if err == nil {
			a.browser = b
			a.closers = append(a.closers, b.Close)
			return b
		}
		a.Logger.Warn("Chrome unavailable, falling back to static driver", "error", err)
	}
	return httpclient.NewClient(a.Config.UserAgent)
}

// Batch returns the configured batch bounds
func (a *App) Batch() service.BatchOptions {
	return service.BatchOptions{
		Concurrency: a.Config.ScanConcurrency,
		RatePerSec:  a.Config.ScanRatePerSec,
	}
}

// Serve runs the HTTP API plus the scheduler, retention and rules watcher
// when configured, until ctx is done
func (a *App) Serve(ctx context.Context) error {
	if a.Config.ScanSchedule != "" {
		sched, err := service.NewScheduler(a.Service, a.Config.ScanSchedule, a.Config.Domains, a.Batch(), a.Logger)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
	}

	if a.Config.RetentionMaxAge > 0 {
		retention := service.NewRetentionService(a.Store, a.Config.RetentionMaxAge, a.Config.RetentionInterval, a.Logger)
		retention.Start(ctx)
		defer retention.Stop()
	}

	if a.Config.RulesFile != "" {
		go func() {
			if err := service.WatchRules(ctx, a.Service, a.Config.RulesFile, a.Logger); err != nil {
				a.Logger.Error("Rules watcher stopped", "error", err)
			}
		}()
	}

	server := httpapi.NewServer(fmt.Sprintf(":%d", a.Config.Port), a.Logger, a.Service, httpapi.Options{
		CORSOrigins: a.Config.CORSOrigins,
		Metrics:     a.Metrics,
		Browser:     a.browser,
		Batch:       a.Batch(),
	})

	errc := make(chan error, 1)
	go func() {
		a.Logger.Info("Starting server", "port", a.Config.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.Logger.Info("Server stopped gracefully")
	return nil
}

// Close releases the browser pool and the store
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
