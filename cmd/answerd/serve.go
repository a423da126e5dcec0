package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"answerd/internal/classify"
	"answerd/internal/config"
	"answerd/internal/executor"
	"answerd/internal/llm"
	"answerd/internal/logging"
	"answerd/internal/metrics"
	"answerd/internal/pev"
	"answerd/internal/planner"
	"answerd/internal/provider"
	"answerd/internal/server"
	"answerd/internal/verify"
)

type serveFlags struct {
	configPath string
	addr       string
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP query service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "Config file path (YAML)")
	flags.StringVar(&f.addr, "addr", "", "Listen address (overrides config)")

	return cmd
}

func runServe(f *serveFlags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return exitError(3, "load config: %v", err)
	}
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return exitError(3, "build logger: %v", err)
	}
	defer log.Sync()

	orch, met, err := buildPipeline(cfg, log)
	if err != nil {
		return exitError(4, "build pipeline: %v", err)
	}

	srv := server.New(orch, met, log, server.WithAPIKey(cfg.Server.APIKey))

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.Start(cfg.Server.Addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(4, "server failed: %v", err)
		}
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return exitError(4, "shutdown: %v", err)
		}
	}
	return nil
}

// buildPipeline wires the full query pipeline from config.
func buildPipeline(cfg *config.Config, log *zap.Logger) (*pev.Orchestrator, *metrics.Metrics, error) {
	client, err := llm.Resolve(llm.ResolveOptions{
		Backend:         cfg.LLM.Backend,
		Model:           cfg.LLM.Model,
		APIKey:          cfg.LLM.APIKey,
		AzureEndpoint:   cfg.LLM.AzureEndpoint,
		AzureDeployment: cfg.LLM.AzureDeployment,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info("model backend resolved", zap.String("backend", client.Name()))

	met := metrics.New()
	reg := provider.NewRegistry(
		provider.NewResearch(client),
		provider.NewArchitect(client),
		provider.NewCoder(client),
	)
	exec := executor.New(reg, log,
		executor.WithStepTimeout(cfg.Timeouts.Step),
		executor.WithBreakerThreshold(cfg.Timeouts.BreakerThreshold),
		executor.WithBreakerCooldown(cfg.Timeouts.BreakerCooldown),
		executor.WithMetrics(met),
	)
	orch := pev.New(
		classify.New(),
		planner.New(client, log),
		exec,
		verify.New(client, log),
		reg,
		log,
		pev.WithTimeouts(cfg.Timeouts.Query, cfg.Timeouts.ComplexQuery),
		pev.WithSessions(pev.NewSessions(cfg.Sessions.Max)),
		pev.WithMetrics(met),
	)
	return orch, met, nil
}
