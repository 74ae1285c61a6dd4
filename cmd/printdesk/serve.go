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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/printdesk/internal/agent"
	"github.com/ashureev/printdesk/internal/api"
	"github.com/ashureev/printdesk/internal/classifier"
	"github.com/ashureev/printdesk/internal/config"
	"github.com/ashureev/printdesk/internal/logging"
	"github.com/ashureev/printdesk/internal/session"
	"github.com/ashureev/printdesk/internal/store"
	"github.com/ashureev/printdesk/internal/templates"
	"github.com/ashureev/printdesk/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket chat server",
	Long: `Starts the chat server. Configuration is read from the environment and,
when present, from a .env file in the working directory.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger := logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, os.Stdout)
	logger.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "version", version)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	logger.Info("Database connected", "path", cfg.DBPath)

	catalog, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}

	router, err := agent.NewDefaultRouter(agent.DefaultRouterConfig{
		Catalog:        catalog,
		Chooser:        agent.NewChooser(cfg.ResponseSeed),
		Logger:         logging.New("agent.router"),
		HandlerTimeout: cfg.HandlerTimeout,
		DefaultDPI:     cfg.DefaultDPI,
	})
	if err != nil {
		return fmt.Errorf("build response router: %w", err)
	}

	convLog, err := agent.NewConversationLogger(conversationLogConfig(cfg), logging.New("agent.conversation_log"))
	if err != nil {
		return fmt.Errorf("initialize conversation logger: %w", err)
	}

	opts := []agent.ServiceOption{
		agent.WithConversationLogger(convLog),
		agent.WithServiceLogger(logging.New("agent.service")),
	}
	if cfg.ClassifierAddr != "" {
		client, err := classifier.NewGrpcClient(ctx, classifier.DefaultConfig(cfg.ClassifierAddr), logging.New("classifier"))
		if err != nil {
			logger.Warn("Classifier unavailable, intents must be supplied by clients", "address", cfg.ClassifierAddr, "error", err)
		} else {
			defer client.Close()
			opts = append(opts, agent.WithClassifier(client))
			logger.Info("Classifier connected", "address", cfg.ClassifierAddr)
		}
	}

	svc, err := agent.NewService(router, repo, opts...)
	if err != nil {
		return fmt.Errorf("initialize chat service: %w", err)
	}
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			logger.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Close()

	handler := api.NewHandler(svc, repo, api.Options{
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		Limiter:             limiter,
		Logger:              logging.New("api"),
	})

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(handler, api.RouterConfig{
			AllowedOrigins:    cfg.AllowedOrigins(),
			IsDevelopment:     cfg.IsDevelopment(),
			Frontend:          web.SPAHandler(),
			AccessLog:         true,
			TrustProxyHeaders: cfg.TrustProxyHeaders,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	sweeperDone := session.StartTTLWorker(gctx, repo, session.TTLConfig{
		TTL:      cfg.SessionTTL,
		Interval: cfg.SessionSweepInterval,
	}, handler.Connections().CloseSession)
	logger.Info("TTL worker started", "session_ttl", cfg.SessionTTL, "interval", cfg.SessionSweepInterval)

	g.Go(func() error {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		<-sweeperDone
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if dropped := convLog.Dropped(); dropped > 0 {
		logger.Warn("Conversation log events dropped", "count", dropped)
	}
	logger.Info("Server stopped successfully")
	return nil
}

func loadCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*templates.Catalog, error) {
	if cfg.TemplatesPath == "" {
		return templates.Default(), nil
	}
	catalog, err := templates.Load(cfg.TemplatesPath)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	logger.Info("Templates loaded", "path", cfg.TemplatesPath)

	if cfg.TemplatesWatch {
		if err := catalog.Watch(ctx, cfg.TemplatesPath, logging.New("templates")); err != nil {
			return nil, fmt.Errorf("watch templates: %w", err)
		}
		logger.Info("Watching templates for changes", "path", cfg.TemplatesPath)
	}
	return catalog, nil
}

func conversationLogConfig(cfg *config.Config) agent.ConversationLogConfig {
	out := agent.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}
	if cfg.ConversationLog.GlobalEnabled {
		out.GlobalFile = cfg.ConversationLog.GlobalPath
	}
	return out
}
