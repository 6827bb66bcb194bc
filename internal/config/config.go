package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Kafka    KafkaConfig
	SQS      SQSConfig
	Valkey   ValkeyConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StorageConfig selects the object store backend used for all batch
// artifacts. Backend "s3" uses the AWS SDK (with optional custom endpoint
// for LocalStack); backend "minio" talks to a MinIO deployment directly.
type StorageConfig struct {
	Backend  string // "s3" or "minio"
	Bucket   string
	Region   string
	Endpoint string // STORAGE_ENDPOINT (for MinIO/LocalStack compatibility)

	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool
}

type KafkaConfig struct {
	Brokers           []string
	Topic             string
	NotificationTopic string
}

type SQSConfig struct {
	Region   string
	QueueURL string
}

type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
}

// PipelineConfig carries the batch-level tunables. Values supplied on an
// individual batch request override these defaults.
type PipelineConfig struct {
	Destination         string // "kafka" or "sqs_core"
	MaxConcurrentChunks int
	MaxChunkSize        int64
	TargetTotalRecords  int64
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT_SECS", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT_SECS", 60)) * time.Second,
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "s3"),
			Bucket:         getEnv("STORAGE_BUCKET", ""),
			Region:         getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:       getEnv("STORAGE_ENDPOINT", ""),
			MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
			MinIOUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Kafka: KafkaConfig{
			Brokers:           splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:             getEnv("KAFKA_TOPIC", "processed-records"),
			NotificationTopic: getEnv("KAFKA_NOTIFICATION_TOPIC", "batch-notifications"),
		},
		SQS: SQSConfig{
			Region:   getEnv("SQS_REGION", "us-east-1"),
			QueueURL: getEnv("SQS_CORE_QUEUE", ""),
		},
		Valkey: ValkeyConfig{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			DB:       getEnvInt("VALKEY_DB", 0),
		},
		Pipeline: PipelineConfig{
			Destination:         getEnv("PIPELINE_DESTINATION", "kafka"),
			MaxConcurrentChunks: getEnvInt("PIPELINE_MAX_CONCURRENT_CHUNKS", 50),
			MaxChunkSize:        getEnvInt64("PIPELINE_MAX_CHUNK_SIZE", 500000),
			TargetTotalRecords:  getEnvInt64("PIPELINE_TARGET_TOTAL_RECORDS", 60000000),
		},
	}

	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("STORAGE_BUCKET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
