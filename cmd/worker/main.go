package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/valkey-io/valkey-go"

	"github.com/bzfxn6/gas/internal/aggregate"
	"github.com/bzfxn6/gas/internal/config"
	"github.com/bzfxn6/gas/internal/notify"
	"github.com/bzfxn6/gas/internal/pipeline"
	"github.com/bzfxn6/gas/internal/plan"
	"github.com/bzfxn6/gas/internal/process"
	"github.com/bzfxn6/gas/internal/sink"
	"github.com/bzfxn6/gas/internal/store"
	minioclient "github.com/bzfxn6/gas/internal/store/minio"
	s3client "github.com/bzfxn6/gas/internal/store/s3"
	"github.com/bzfxn6/gas/internal/validate"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	// Sinks
	kafkaSink := sink.NewKafkaSink(cfg.Kafka, cfg.Kafka.Topic)
	defer kafkaSink.Close()
	notifySink := sink.NewKafkaSink(cfg.Kafka, cfg.Kafka.NotificationTopic)
	defer notifySink.Close()

	var sqsSink sink.Sink
	if s, err := sink.NewSQSSink(ctx, cfg.SQS); err != nil {
		logger.Warn("sqs sink disabled", slog.String("error", err.Error()))
	} else {
		sqsSink = s
		logger.Info("sqs sink enabled", slog.String("queue", cfg.SQS.QueueURL))
	}

	producer := pipeline.NewProducer(vkClient)

	// Pipeline stages
	stages := []pipeline.Stage{
		pipeline.NewInitializeStage(objStore, cfg.Pipeline, logger),
		pipeline.NewValidateStage(validate.New(objStore, logger), logger),
		pipeline.NewPlanStage(plan.New(objStore, logger)),
		pipeline.NewDispatchStage(objStore, vkClient, logger),
		// Aggregate and notify run in the chunks_complete phase, after
		// every chunk worker has reported in.
		pipeline.NewAggregateStage(aggregate.New(objStore, logger), objStore, logger),
		pipeline.NewNotifyStage(notify.New(notifySink, logger)),
	}

	p := pipeline.NewPipeline(stages, logger)

	// Orchestrator consumer.
	consumer := pipeline.NewConsumer(vkClient, "worker-1", logger)
	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Error("failed to ensure consumer group", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Chunk worker — processes individual chunks in parallel with the
	// orchestrator.
	processor := process.New(objStore, kafkaSink, sqsSink, logger)
	chunkWorker := pipeline.NewChunkWorker(objStore, processor, vkClient, producer, logger)
	chunkConsumer := pipeline.NewChunkTaskConsumer(vkClient, "chunk-worker-1", logger)
	if err := chunkConsumer.EnsureGroup(ctx); err != nil {
		logger.Error("failed to ensure chunk task consumer group", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting chunk worker, consuming from stream", slog.String("stream", pipeline.ChunkTaskStream))
		if err := chunkConsumer.Consume(ctx, chunkWorker.Handle); err != nil {
			if ctx.Err() == nil {
				logger.Error("chunk task consumer error", slog.String("error", err.Error()))
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting orchestrator worker, consuming from stream", slog.String("stream", pipeline.BatchStream))
		if err := consumer.Consume(ctx, p.Run); err != nil {
			if ctx.Err() == nil {
				logger.Error("consumer error", slog.String("error", err.Error()))
			}
		}
	}()

	wg.Wait()
	logger.Info("worker stopped")
}

// newObjectStore selects the configured storage backend.
func newObjectStore(ctx context.Context, cfg config.StorageConfig) (store.ObjectStore, error) {
	if cfg.Backend == "minio" {
		return minioclient.NewClient(cfg)
	}
	return s3client.NewClient(ctx, cfg)
}
