package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/triage-ai/palisade-moderation/internal/api"
	"github.com/triage-ai/palisade-moderation/internal/auth"
	"github.com/triage-ai/palisade-moderation/internal/config"
	"github.com/triage-ai/palisade-moderation/internal/engine"
	"github.com/triage-ai/palisade-moderation/internal/imagecheck"
	"github.com/triage-ai/palisade-moderation/internal/metrics"
	"github.com/triage-ai/palisade-moderation/internal/server"
	"github.com/triage-ai/palisade-moderation/internal/service"
	"github.com/triage-ai/palisade-moderation/internal/storage"
	"github.com/triage-ai/palisade-moderation/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	createClient := flag.String("create-client", "", "create an API client with this name, print its key and exit")
	clientMode := flag.String("mode", store.ModeEnforce, "mode for -create-client (enforce or shadow)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := mustBuildLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Postgres is optional; without it the static authenticator is used and
	// lexicon additions live only in memory.
	var pgStore *store.Store
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(ctx)
		if err == nil {
			pgStore = store.NewStore(db)
			err = pgStore.EnsureSchema(ctx)
		}
		cancel()
		if err != nil {
			logger.Fatal("failed to prepare postgres", zap.Error(err))
		}
		logger.Info("postgres connected")
	} else {
		logger.Info("no POSTGRES_DSN set, using static authenticator")
	}

	if *createClient != "" {
		runCreateClient(pgStore, *createClient, *clientMode, logger)
		return
	}

	logger.Info("starting moderation server",
		zap.String("http_port", cfg.HTTPPort),
		zap.String("grpc_port", cfg.GRPCPort),
		zap.Float64("block_threshold", cfg.BlockThreshold),
		zap.Float64("flag_threshold", cfg.FlagThreshold),
		zap.Int("max_batch", cfg.MaxBatch),
	)

	// Engine
	moderator := engine.NewModerator(logger)
	moderator.AddWords(cfg.ExtraWords...)

	var (
		authenticator auth.Authenticator = auth.NewStaticAuthenticator()
		lexiconStore  service.LexiconStore
		clientStore   api.ClientStore
	)
	if pgStore != nil {
		words, err := pgStore.LexiconWords(context.Background())
		if err != nil {
			logger.Fatal("failed to load lexicon words", zap.Error(err))
		}
		moderator.AddWords(words...)
		logger.Info("lexicon words loaded", zap.Int("count", len(words)))

		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			Store:    pgStore,
			CacheTTL: cfg.AuthCacheTTL,
			Logger:   logger,
		})
		lexiconStore = pgStore
		clientStore = pgStore
	}

	// Events are logged off the request path.
	writer := storage.NewBufferedWriter(storage.NewLogWriter(logger), logger)
	defer writer.Close()

	m := metrics.New(prometheus.NewRegistry())

	svc := service.New(
		moderator,
		service.Config{
			Aggregator: engine.AggregatorConfig{
				BlockThreshold: cfg.BlockThreshold,
				FlagThreshold:  cfg.FlagThreshold,
			},
			MaxBatch: cfg.MaxBatch,
			MaxWords: cfg.MaxWords,
		},
		writer,
		m,
		lexiconStore,
		logger,
	)

	// HTTP API
	httpServer := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(&api.Dependencies{
			Service:    svc,
			Auth:       authenticator,
			Images:     imagecheck.NewValidator(imagecheck.WithMaxBytes(cfg.MaxImageBytes)),
			Metrics:    m,
			Store:      clientStore,
			AdminToken: cfg.AdminToken,
			Logger:     logger,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// gRPC API
	grpcServer, healthServer := server.NewGRPCServer(
		server.NewModerationServer(svc, authenticator, cfg.AdminToken, logger),
		logger,
	)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Fatal("failed to listen for grpc", zap.Error(err))
	}
	go func() {
		logger.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("grpc server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}

	logger.Info("moderation server stopped")
}

func runCreateClient(pgStore *store.Store, name, mode string, logger *zap.Logger) {
	if pgStore == nil {
		logger.Fatal("-create-client requires POSTGRES_DSN")
	}
	client, apiKey, err := pgStore.CreateClient(context.Background(), name, mode)
	if err != nil {
		logger.Fatal("failed to create client", zap.Error(err))
	}
	logger.Info("client created",
		zap.String("client_id", client.ID),
		zap.String("mode", client.Mode),
		zap.String("key_prefix", client.APIKeyPrefix),
	)
	// The raw key is shown once; only its hash is stored.
	fmt.Println(apiKey)
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
