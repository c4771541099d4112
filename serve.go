package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abhirockzz/cosmosdb-go-sdk-helper/auth"
	"github.com/abhirockzz/langchaingo-trip-planner/config"
	"github.com/abhirockzz/langchaingo-trip-planner/emitter"
	"github.com/abhirockzz/langchaingo-trip-planner/logging"
	"github.com/abhirockzz/langchaingo-trip-planner/server"
	"github.com/abhirockzz/langchaingo-trip-planner/store"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms/openai"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		staticDir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the plan HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cmd.Context(), cfg, staticDir)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory of static files served at /")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config, staticDir string) error {
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	provider, err := newProvider(cfg.Provider, logger)
	if err != nil {
		return err
	}

	conversations, err := newStore(cfg.Store, logger)
	if err != nil {
		return err
	}

	mock := emitter.NewMock(
		emitter.WithPacing(cfg.Mock.BaseDelay, cfg.Mock.Jitter),
		emitter.WithMockLogger(logger),
	)
	app := server.New(emitter.NewResolver(provider, mock, logger), conversations, server.NewMetrics(), logger)

	handler := app.Routes()
	if staticDir != "" {
		mux := http.NewServeMux()
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
		mux.Handle("/api/", handler)
		mux.Handle(server.HealthPath, handler)
		mux.Handle(server.MetricsPath, handler)
		handler = mux
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web server starting",
			"port", cfg.Server.Port,
			"provider", cfg.Provider.Type,
			"model_enabled", provider != nil,
			"store", cfg.Store.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newProvider returns nil when no model is configured, so every request is
// answered by the mock strategy.
func newProvider(cfg config.ProviderConfig, logger *slog.Logger) (emitter.Emitter, error) {
	if !cfg.Enabled() {
		logger.Warn("no model provider configured, serving canned replies")
		return nil, nil
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	switch cfg.Type {
	case config.ProviderAzure:
		opts = append(opts,
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithBaseURL(cfg.BaseURL),
			// langchaingo requires an embedding model for the azure api type
			openai.WithEmbeddingModel("dummy_value"),
		)
	default:
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s LLM: %w", cfg.Type, err)
	}

	return emitter.NewModel(llm,
		emitter.WithTemperature(cfg.Temperature),
		emitter.WithModelLogger(logger),
	), nil
}

func newStore(cfg config.StoreConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Backend {
	case config.StoreFile:
		return store.NewFile(cfg.Dir, logger)
	case config.StoreCosmos:
		client, err := auth.GetCosmosDBClient(cfg.Cosmos.Endpoint, cfg.Cosmos.Emulator, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cosmos client: %w", err)
		}
		return store.NewCosmos(client, cfg.Cosmos.Database, cfg.Cosmos.Container, cfg.Cosmos.PartitionKey)
	default:
		return store.NewMemory(), nil
	}
}
