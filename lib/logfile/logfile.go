// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logfile manages the interactive client's log file. The file
// is appended to across runs; at startup a file that has grown past a
// limit is compressed into a single zstd generation next to it and
// started over.
package logfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// DefaultLimit is the size past which Open rotates the log.
const DefaultLimit = 8 << 20

// ArchivePath is where the previous generation of path is kept.
func ArchivePath(path string) string {
	return path + ".1.zst"
}

// Open rotates path if it exceeds limit, then opens it for appending
// with mode 0600, creating the directory when needed.
func Open(path string, limit int64) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("logfile: %w", err)
	}
	if err := Rotate(path, limit); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("logfile: %w", err)
	}
	return file, nil
}

// Rotate compresses path into ArchivePath(path) and truncates it when
// it is larger than limit. A missing file or one within the limit is
// left alone. The archive is written to a temporary file and renamed,
// so a crash mid-rotation leaves the previous archive intact.
func Rotate(path string, limit int64) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("logfile: %w", err)
	}
	if info.Size() <= limit {
		return nil
	}

	source, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("logfile: %w", err)
	}
	defer source.Close()

	archive := ArchivePath(path)
	temporary, err := os.CreateTemp(filepath.Dir(path), filepath.Base(archive)+".tmp*")
	if err != nil {
		return fmt.Errorf("logfile: %w", err)
	}
	defer os.Remove(temporary.Name())

	if err := compress(temporary, source); err != nil {
		temporary.Close()
		return fmt.Errorf("logfile: compressing %s: %w", path, err)
	}
	if err := temporary.Chmod(0o600); err != nil {
		temporary.Close()
		return fmt.Errorf("logfile: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("logfile: %w", err)
	}
	if err := os.Rename(temporary.Name(), archive); err != nil {
		return fmt.Errorf("logfile: %w", err)
	}
	if err := os.Truncate(path, 0); err != nil {
		return fmt.Errorf("logfile: %w", err)
	}
	return nil
}

func compress(destination io.Writer, source io.Reader) error {
	encoder, err := zstd.NewWriter(destination, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err := io.Copy(encoder, source); err != nil {
		encoder.Close()
		return err
	}
	return encoder.Close()
}
