package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bzfxn6/gas/internal/store"
)

type object struct {
	data         []byte
	lastModified time.Time
}

// Store is an in-memory ObjectStore used by tests.
type Store struct {
	mu      sync.RWMutex
	objects map[string]map[string]object // bucket -> key -> object
}

func New() *Store {
	return &Store{objects: make(map[string]map[string]object)}
}

func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[bucket][key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, store.ErrNotFound)
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

func (s *Store) GetReader(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	data, err := s.Get(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.objects[bucket] == nil {
		s.objects[bucket] = make(map[string]object)
	}
	data := make([]byte, len(body))
	copy(data, body)
	s.objects[bucket][key] = object{data: data, lastModified: time.Now()}
	return nil
}

func (s *Store) List(ctx context.Context, bucket, prefix string) ([]store.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var infos []store.ObjectInfo
	for key, obj := range s.objects[bucket] {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, store.ObjectInfo{
				Key:          key,
				Size:         int64(len(obj.data)),
				LastModified: obj.lastModified,
			})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *Store) Head(ctx context.Context, bucket, key string) (store.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[bucket][key]
	if !ok {
		return store.ObjectInfo{}, fmt.Errorf("head %s: %w", key, store.ErrNotFound)
	}
	return store.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		LastModified: obj.lastModified,
	}, nil
}
