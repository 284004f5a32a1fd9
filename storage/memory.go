package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
)

// MemoryHost keeps images in process memory. It backs local development and tests.
type MemoryHost struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryHost creates an empty host whose URLs start with baseURL.
func NewMemoryHost(baseURL string) *MemoryHost {
	return &MemoryHost{baseURL: strings.TrimRight(baseURL, "/"), objects: map[string][]byte{}}
}

func (m *MemoryHost) Upload(ctx context.Context, publicID string, r io.Reader, size int64, contentType string) (Asset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Asset{}, err
	}
	m.mu.Lock()
	m.objects[publicID] = data
	m.mu.Unlock()
	return Asset{PublicID: publicID, URL: m.baseURL + "/" + publicID}, nil
}

func (m *MemoryHost) Open(ctx context.Context, publicID string) (io.ReadCloser, error) {
	m.mu.RLock()
	data, ok := m.objects[publicID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryHost) Delete(ctx context.Context, publicID string) error {
	m.mu.Lock()
	delete(m.objects, publicID)
	m.mu.Unlock()
	return nil
}

// Has reports whether publicID is stored.
func (m *MemoryHost) Has(publicID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[publicID]
	return ok
}

// Len returns the number of stored objects.
func (m *MemoryHost) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
