package store

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Get/Head when the object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes a stored object as returned by List and Head.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// ObjectStore is the durable artifact store shared by all pipeline stages.
// Keys are partitioned by {stage}/{batchId}/{chunkId}; no two concurrent
// chunk executions write the same key, and Put overwrites in place so
// stage retries are idempotent.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// GetReader streams an object without buffering it in memory. The
	// caller must close the returned reader.
	GetReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	Head(ctx context.Context, bucket, key string) (ObjectInfo, error)
}
