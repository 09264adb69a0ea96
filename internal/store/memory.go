package store

import (
	"context"
	"sync"

	"zoolanding/quickstats/internal/utils"
)

// MemoryStore is a map-backed store used by tests and by forced dry-run
// deployments, where no S3 client should ever be constructed.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string][]byte
}

// NewMemoryStore returns an empty in-memory store answering to bucket.
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		bucket:  bucket,
		objects: make(map[string][]byte),
	}
}

// Bucket returns the configured bucket name.
func (s *MemoryStore) Bucket() string { return s.bucket }

// Head returns the content hash of a stored document.
func (s *MemoryStore) Head(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return "", ErrNotFound
	}
	return utils.ContentETag(data), nil
}

// Get returns a copy of the stored document and its content hash.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, utils.ContentETag(data), nil
}

// Put stores a copy of the document.
func (s *MemoryStore) Put(ctx context.Context, key string, data []byte) (PutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return PutResult{ETag: utils.ContentETag(cp)}, nil
}
