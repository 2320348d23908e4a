// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/dragon-chat/dragon/lib/sealed"
	"github.com/dragon-chat/dragon/lib/secret"
)

// sealedPrefix marks a value stored encrypted on disk.
const sealedPrefix = "age:"

// FileStore persists settings as a JSON object. Comments and trailing
// commas are tolerated on read so the file can be hand-edited. The
// access token is sealed with the age identity at keyPath; in memory it
// lives in a secret.Buffer.
//
// The file is rewritten atomically (temp file and rename) with mode
// 0600 on every Set.
type FileStore struct {
	path    string
	keypair *sealed.Keypair
	logger  *slog.Logger

	mu     sync.Mutex
	values map[string]string
	token  *secret.Buffer
}

// OpenFile loads the settings file at path, creating the sealing key at
// keyPath on first use. A missing settings file is an empty store. A
// sealed token that no longer decrypts (the key was replaced) is
// dropped with a warning; the user simply logs in again.
func OpenFile(path, keyPath string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	keypair, err := sealed.LoadOrCreateKeypair(keyPath)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	store := &FileStore{
		path:    path,
		keypair: keypair,
		logger:  logger,
		values:  make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		keypair.Close()
		return nil, fmt.Errorf("settings: reading %s: %w", path, err)
	}
	var raw map[string]string
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		keypair.Close()
		return nil, fmt.Errorf("settings: parsing %s: %w", path, err)
	}
	for key, value := range raw {
		if key != KeyAccessToken {
			store.values[key] = value
			continue
		}
		if !strings.HasPrefix(value, sealedPrefix) {
			logger.Warn("settings: ignoring unsealed access token", "path", path)
			continue
		}
		token, err := sealed.Decrypt(strings.TrimPrefix(value, sealedPrefix), keypair.PrivateKey)
		if err != nil {
			logger.Warn("settings: stored access token does not decrypt, discarding", "path", path, "error", err)
			continue
		}
		store.token = token
	}
	return store, nil
}

// Get returns the value for key. The access token is returned as a
// heap string; callers move it into a secret.Buffer straight away.
func (s *FileStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == KeyAccessToken {
		if s.token == nil {
			return ""
		}
		return s.token.String()
	}
	return s.values[key]
}

// Set stores value under key and rewrites the file.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == KeyAccessToken {
		if s.token != nil {
			s.token.Close()
			s.token = nil
		}
		if value != "" {
			token, err := secret.NewFromString(value)
			if err != nil {
				return fmt.Errorf("settings: %w", err)
			}
			s.token = token
		}
	} else if value == "" {
		delete(s.values, key)
	} else {
		s.values[key] = value
	}
	return s.persistLocked()
}

func (s *FileStore) persistLocked() error {
	document := make(map[string]string, len(s.values)+1)
	for key, value := range s.values {
		document[key] = value
	}
	if s.token != nil {
		ciphertext, err := sealed.Encrypt(s.token.Bytes(), s.keypair.PublicKey)
		if err != nil {
			return fmt.Errorf("settings: sealing access token: %w", err)
		}
		document[KeyAccessToken] = sealedPrefix + ciphertext
	}
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: marshaling: %w", err)
	}
	data = append(data, '\n')

	directory := filepath.Dir(s.path)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("settings: creating %s: %w", directory, err)
	}
	temporary, err := os.CreateTemp(directory, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	defer os.Remove(temporary.Name())
	if err := temporary.Chmod(0600); err != nil {
		temporary.Close()
		return fmt.Errorf("settings: %w", err)
	}
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("settings: writing: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("settings: writing: %w", err)
	}
	if err := os.Rename(temporary.Name(), s.path); err != nil {
		return fmt.Errorf("settings: replacing %s: %w", s.path, err)
	}
	return nil
}

// Close releases the in-memory token and the sealing key.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil {
		s.token.Close()
		s.token = nil
	}
	return s.keypair.Close()
}
