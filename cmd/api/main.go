package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/valkey-io/valkey-go"

	"github.com/bzfxn6/gas/internal/api"
	"github.com/bzfxn6/gas/internal/config"
	"github.com/bzfxn6/gas/internal/pipeline"
	"github.com/bzfxn6/gas/internal/store"
	minioclient "github.com/bzfxn6/gas/internal/store/minio"
	s3client "github.com/bzfxn6/gas/internal/store/s3"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	// Object store
	objStore, err := newObjectStore(ctx, cfg.Storage)
	if err != nil {
		logger.Error("failed to connect to object store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("connected to object store",
		slog.String("backend", cfg.Storage.Backend),
		slog.String("bucket", cfg.Storage.Bucket))

	// Valkey
	vkClient, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.Valkey.Addr},
		Password:    cfg.Valkey.Password,
		SelectDB:    cfg.Valkey.DB,
	})
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

	router := api.NewRouter(logger, api.RouterDeps{
		Store:    objStore,
		Bucket:   cfg.Storage.Bucket,
		Producer: pipeline.NewProducer(vkClient),
		Valkey:   vkClient,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting API server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// newObjectStore selects the configured storage backend.
func newObjectStore(ctx context.Context, cfg config.StorageConfig) (store.ObjectStore, error) {
	if cfg.Backend == "minio" {
		return minioclient.NewClient(cfg)
	}
	return s3client.NewClient(ctx, cfg)
}
