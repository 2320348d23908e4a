// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package settings is the client's key-value store for the few values
// that survive a restart: server URLs and the logged-in session.
// Everything else the client knows is rebuilt from sync on startup.
package settings

import "sync"

// Keys the client core reads and writes.
const (
	KeyHomeserverURL   = "homeserverUrl"
	KeyMediaServiceURL = "mediaServiceUrl"
	KeyAccessToken     = "accessToken"
	KeyUserID          = "userId"
)

// Store gets and sets string values. Get returns "" for an absent key;
// setting "" removes the key.
type Store interface {
	Get(key string) string
	Set(key, value string) error
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns a MemoryStore seeded with initial (may be nil).
func NewMemoryStore(initial map[string]string) *MemoryStore {
	values := make(map[string]string, len(initial))
	for key, value := range initial {
		values[key] = value
	}
	return &MemoryStore{values: values}
}

func (s *MemoryStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.values, key)
		return nil
	}
	s.values[key] = value
	return nil
}
