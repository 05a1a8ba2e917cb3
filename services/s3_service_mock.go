package services

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MockBlobStore is an in-memory BlobStore for testing
type MockBlobStore struct {
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMockBlobStore creates an empty mock store
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{objects: make(map[string][]byte)}
}

// Upload stores the body under key
func (m *MockBlobStore) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	content, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	m.mu.Lock()
	m.objects[key] = content
	m.mu.Unlock()
	return nil
}

// PresignGet returns a fake URL for a stored key
func (m *MockBlobStore) PresignGet(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	m.mu.RLock()
	_, exists := m.objects[key]
	m.mu.RUnlock()
	if !exists {
		return "", fmt.Errorf("object not found in mock store: %s", key)
	}
	return fmt.Sprintf("https://test-bucket.s3.ap-south-1.amazonaws.com/%s?mock=true", key), nil
}

// Delete removes a stored key
func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Exists reports whether key is stored
func (m *MockBlobStore) Exists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

// Keys returns every stored key
func (m *MockBlobStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
