package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/dnscache"

	"github.com/altshift/agentgate/internal/app"
	"github.com/altshift/agentgate/internal/config"
	"github.com/altshift/agentgate/internal/identity"
	"github.com/altshift/agentgate/internal/provider"
	"github.com/altshift/agentgate/internal/provider/anthropic"
	"github.com/altshift/agentgate/internal/provider/openai"
	"github.com/altshift/agentgate/internal/ratelimit"
	"github.com/altshift/agentgate/internal/sentiment"
	"github.com/altshift/agentgate/internal/server"
	"github.com/altshift/agentgate/internal/storage/sqlite"
	"github.com/altshift/agentgate/internal/telemetry"
	"github.com/altshift/agentgate/internal/worker"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting agentgate", "version", version, "addr", cfg.Server.Addr)

	ctx := context.Background()

	// Tracing
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(sctx) //nolint:errcheck
		}()
	}

	// Identity document
	ids, err := identity.Open(cfg.Data.Dir)
	if err != nil {
		return err
	}

	// Usage ledger
	ledger, err := sqlite.New(cfg.Ledger.DSN)
	if err != nil {
		return err
	}
	defer ledger.Close()

	// Metrics
	var (
		metrics  *telemetry.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = telemetry.NewMetrics(reg, ids.Count)
		gatherer = reg
	}

	// Providers share one pooled client with cached DNS.
	resolver := &dnscache.Resolver{}
	client := provider.NewClient(resolver)
	reg := provider.NewRegistry()
	reg.Register("openai", openai.New(cfg.Providers.OpenAIBaseURL, client))
	reg.Register("anthropic", anthropic.New(cfg.Providers.AnthropicBaseURL, client))

	// Workers
	var queueGauge prometheus.Gauge
	if metrics != nil {
		queueGauge = metrics.UsageQueueLength
	}
	recorder := worker.NewUsageRecorder(ledger, queueGauge)
	retention := worker.NewRetentionWorker(ledger, cfg.Ledger.RetentionDays)
	runner := worker.NewRunner(recorder, retention)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	workersDone := make(chan error, 1)
	go func() { workersDone <- runner.Run(workerCtx) }()

	// Admission and scoring
	limiter, err := ratelimit.New()
	if err != nil {
		stopWorkers()
		return err
	}

	chatSvc := app.NewChatService(ids, limiter, sentiment.New(), reg, recorder, metrics)
	adminSvc := app.NewAdminService(ids, ledger)

	handler := server.New(server.Deps{
		Chat:       chatSvc,
		Admin:      adminSvc,
		Providers:  reg,
		ReadyCheck: ledger.Ping,
		Metrics:    metrics,
		Gatherer:   gatherer,
		AdminToken: cfg.Admin.Token,
		UpgradeURL: cfg.Admin.UpgradeURL,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("agentgate ready", "addr", cfg.Server.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		stopWorkers()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		stopWorkers()
		return err
	}

	// Stop workers; the recorder drains its queue into the ledger.
	stopWorkers()
	if err := <-workersDone; err != nil {
		slog.Error("worker shutdown", "error", err)
	}

	// One final save so the identity document reflects the last calls.
	if err := ids.Save(); err != nil {
		slog.Error("final identity save", "error", err)
	}

	slog.Info("agentgate stopped")
	return nil
}
