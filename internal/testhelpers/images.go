package testhelpers

import (
	"context"
	"sync"
)

// PNGDataURI is a valid 1x1 PNG upload
const PNGDataURI = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// MemoryImageStore keeps uploads in a map
type MemoryImageStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryImageStore() *MemoryImageStore {
	return &MemoryImageStore{objects: map[string][]byte{}}
}

func (s *MemoryImageStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *MemoryImageStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryImageStore) URL(key string) string {
	return "http://testserver/media/" + key
}

// Has reports whether key is stored
func (s *MemoryImageStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// Len returns the number of stored objects
func (s *MemoryImageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
