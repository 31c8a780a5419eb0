package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"docvault/internal/storage"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("object not found")

// Memory is an in-memory implementation of storage.Storage. It backs the
// service round-trip tests and local development without a MinIO instance.
// Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]object
}

type object struct {
	data        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

// New creates an empty in-memory store.
func New() *Memory {
	return &Memory{objects: make(map[string]object)}
}

var _ storage.Storage = (*Memory)(nil)

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.objects[key] = object{
		data:        data,
		contentType: opt.ContentType,
		metadata:    opt.Metadata,
		modified:    now,
	}
	return storage.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opt.ContentType,
		LastModified: now,
		Metadata:     opt.Metadata,
	}, nil
}

func (m *Memory) Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, ErrNotFound
	}
	info := storage.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		LastModified: obj.modified,
		Metadata:     obj.metadata,
	}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}

// Exists reports whether a key currently holds an object. Test helper.
func (m *Memory) Exists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[key]
	return ok
}

// Len returns the number of stored objects. Test helper.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.objects)
}
