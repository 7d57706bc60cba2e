package prefs

import (
	"context"
	"sync"
)

// InMemoryStore keeps preferences for the lifetime of the process.
type InMemoryStore struct {
	mu      sync.RWMutex
	devices map[string]map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{devices: make(map[string]map[string]string)}
}

func (s *InMemoryStore) Get(_ context.Context, deviceID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.devices[deviceID][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *InMemoryStore) Set(_ context.Context, deviceID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.devices[deviceID]
	if !ok {
		m = make(map[string]string)
		s.devices[deviceID] = m
	}
	m[key] = value
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, deviceID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices[deviceID], key)
	return nil
}

func (s *InMemoryStore) All(_ context.Context, deviceID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.devices[deviceID]))
	for k, v := range s.devices[deviceID] {
		out[k] = v
	}
	return out, nil
}

func (s *InMemoryStore) Mode() string { return "in-memory" }

func (s *InMemoryStore) Close() error { return nil }
