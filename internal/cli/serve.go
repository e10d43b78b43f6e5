package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"booklib/internal/covers"
	"booklib/internal/database"
	"booklib/internal/formats"
	"booklib/internal/handlers"
	"booklib/internal/library"
	"booklib/internal/logging"
	"booklib/internal/metrics"
	"booklib/internal/middleware"
	"booklib/internal/startup"
	"booklib/internal/watcher"
)

const (
	metricsInterval = time.Minute
	shutdownTimeout = 30 * time.Second
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the library HTTP server",
		Long: `Serve opens the catalog, keeps it in sync with the books directory and
serves the HTTP API. Prometheus metrics are served on a separate port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

func serve(ctx context.Context, opts *globalOptions) error {
	startTime := time.Now()
	ctx, cancelBackground := context.WithCancel(ctx)
	defer cancelBackground()

	config, err := startup.LoadConfig(opts.envDir)
	if err != nil {
		return err
	}
	if err := startup.Setup(config); err != nil {
		return err
	}

	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	startup.LogLibraryInit(config)
	lib, err := library.Open(ctx, libraryOptions(config, db))
	if err != nil {
		return err
	}
	defer lib.Close()
	startup.LogLibraryStarted()

	coverCache, err := covers.New(formats.Default(), config.CoverCacheSize, config.CoverSize)
	if err != nil {
		return err
	}
	startup.LogCoverCacheInit(config.CoverCacheSize, config.CoverSize)
	go warmCovers(ctx, lib, coverCache)

	w := watcher.New(lib, watcher.Options{
		Dir:        config.BooksDir,
		Watch:      config.WatchEnabled,
		Debounce:   config.WatchDebounce,
		Interval:   config.BuildInterval,
		SkipHidden: config.SkipHidden,
	})
	if err := w.Start(); err != nil {
		logging.Warn("Failed to start watcher: %v", err)
	}

	info := startup.GetBuildInfo()
	metrics.AppInfo.WithLabelValues(info.Version, info.Commit, runtime.Version()).Set(1)
	metrics.InitializeMetrics()
	collector := metrics.NewCollector(lib, metricsInterval)
	collector.Start()
	go updateDBMetrics(ctx, db)

	h := handlers.New(lib, coverCache, w.TriggerBuild)
	router := h.Router()
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(
		middleware.Logger(loggingConfig)(router),
	)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // event streams stay open
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           handlers.MetricsHandler(),
			ReadHeaderTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	var reason string
	select {
	case err := <-serverErr:
		w.Stop()
		collector.Stop()
		return err
	case sig := <-sigChan:
		reason = sig.String()
	case <-ctx.Done():
		reason = context.Cause(ctx).Error()
	}

	startup.LogShutdownInitiated(reason)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Stopping watcher")
	w.Stop()
	startup.LogShutdownStepComplete("Watcher stopped")

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping library")
	lib.Close()
	startup.LogShutdownStepComplete("Library stopped")

	startup.LogShutdownComplete()
	return nil
}

// warmCovers fills the cover cache once the first build is done.
func warmCovers(ctx context.Context, lib *library.Library, cache *covers.Cache) {
	if err := lib.Wait(ctx); err != nil {
		return
	}
	start := time.Now()
	n := cache.Warm(ctx, lib.Books())
	logging.Info("Prepared %d cover thumbnails in %v", n, time.Since(start))
}

func updateDBMetrics(ctx context.Context, db *database.Database) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	for {
		db.UpdateDBMetrics()
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
