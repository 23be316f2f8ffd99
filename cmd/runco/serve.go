package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dalagero/SBND-RunCo/internal/daq"
	"github.com/dalagero/SBND-RunCo/internal/health"
	"github.com/dalagero/SBND-RunCo/internal/httpapi"
	"github.com/dalagero/SBND-RunCo/internal/livetime"
	"github.com/dalagero/SBND-RunCo/internal/logging"
	"github.com/dalagero/SBND-RunCo/internal/monitor"
	"github.com/dalagero/SBND-RunCo/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the livetime HTTP API and metrics endpoints",
	Long: `Serves POT and livetime queries over HTTP, exposes Prometheus
metrics, and optionally watches a DAQ interval file to keep a trailing
livetime gauge current.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New("runco-serve")

	metrics := observability.NewMetrics(nil)
	client := newIFBeamClient(cfg, metrics)
	engine := livetime.NewEngine(client, logger, metrics, livetime.Config{Concurrency: cfg.MaxInflight})

	observability.Start(ctx, cfg.MetricsAddr, logger, metrics.Registry(), func(ctx context.Context) error {
		return health.ReadyCheck(ctx, client)
	})

	if cfg.Watch.IntervalFile != "" {
		watcher := monitor.NewWatcher(engine, monitor.IntervalFunc(func() ([]livetime.Interval, error) {
			return daq.ReadFile(cfg.Watch.IntervalFile)
		}), logger, monitor.Config{Window: cfg.Watch.Window, Every: cfg.Watch.Every})
		go watcher.Run(ctx)
		logger.Info("livetime watcher started",
			"file", cfg.Watch.IntervalFile, "window", cfg.Watch.Window.String(), "every", cfg.Watch.Every.String())
	}

	api := httpapi.NewServer(logger, client, engine)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Printf("runco api listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Println("shutting down runco api")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
