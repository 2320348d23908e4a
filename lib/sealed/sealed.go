// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts the access token stored in the client's
// settings file with an age x25519 key kept beside it. A copied settings
// file alone does not reveal the token.
//
// Ciphertext is base64 so it fits in a JSON string field. Private keys
// and plaintext come back as *secret.Buffer.
package sealed

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"github.com/dragon-chat/dragon/lib/secret"
)

// Keypair is an age x25519 identity and its recipient string.
type Keypair struct {
	PrivateKey *secret.Buffer
	PublicKey  string
}

// Close releases the private key. Idempotent.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair creates a fresh identity.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("sealed: generating keypair: %w", err)
	}
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting private key: %w", err)
	}
	return &Keypair{PrivateKey: privateKey, PublicKey: identity.Recipient().String()}, nil
}

// LoadOrCreateKeypair reads the identity stored at path, creating one
// with mode 0600 (and its directory with 0700) when the file does not
// exist.
func LoadOrCreateKeypair(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		defer secret.Zero(data)
		identity, parseErr := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if parseErr != nil {
			return nil, fmt.Errorf("sealed: parsing key file %s: %w", path, parseErr)
		}
		privateKey, err := secret.NewFromBytes(bytes.TrimSpace(data))
		if err != nil {
			return nil, fmt.Errorf("sealed: protecting private key: %w", err)
		}
		return &Keypair{PrivateKey: privateKey, PublicKey: identity.Recipient().String()}, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("sealed: reading key file: %w", err)
	}

	keypair, err := GenerateKeypair()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		keypair.Close()
		return nil, fmt.Errorf("sealed: creating key directory: %w", err)
	}
	if err := os.WriteFile(path, append(bytes.Clone(keypair.PrivateKey.Bytes()), '\n'), 0600); err != nil {
		keypair.Close()
		return nil, fmt.Errorf("sealed: writing key file: %w", err)
	}
	return keypair, nil
}

// Encrypt seals plaintext to a single recipient and returns base64.
func Encrypt(plaintext []byte, publicKey string) (string, error) {
	recipient, err := age.ParseX25519Recipient(publicKey)
	if err != nil {
		return "", fmt.Errorf("sealed: parsing recipient: %w", err)
	}
	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return "", fmt.Errorf("sealed: creating encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("sealed: writing plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("sealed: finalizing: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}

// Decrypt opens a base64 ciphertext produced by Encrypt. The private key
// is borrowed, not closed.
func Decrypt(ciphertext string, privateKey *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing private key: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("sealed: decoding base64: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("sealed: ciphertext holds an empty value")
	}
	return secret.NewFromBytes(plaintext)
}
