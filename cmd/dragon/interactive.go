// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dragon-chat/dragon/lib/chatui"
	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/lib/logfile"
	"github.com/dragon-chat/dragon/lib/tui"
)

// runInteractive opens the chat client. Log records go to the log file
// and, at warn and above, to the status line; nothing is written to
// the terminal while the alternate screen is up.
func runInteractive(options globalOptions) error {
	cfg, err := loadConfig(options.configPath)
	if err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()

	logPath := options.logOutput
	if logPath == "" {
		logPath = cfg.Paths.Log
	}
	fileHandler, closeLog, err := openFileLogHandler(logPath, level)
	if err != nil {
		return clienterr.New(clienterr.Validation, "open log", "cannot open log file %s: %v", logPath, err)
	}
	defer closeLog()

	tuiHandler := tui.NewLogHandler(slog.LevelWarn)
	logger := slog.New(fanoutHandler{tuiHandler, fileHandler})

	client, err := openClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.start(ctx)

	model := chatui.NewModel(ctx, client.engine, client.notifier.C(), chatui.Options{
		HomeserverURL: client.homeserverURL(),
		Backlog:       chatui.DefaultTimelineBacklog,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	tuiHandler.SetProgram(program)

	logger.Info("dragon started", "config_environment", cfg.Environment, "state", cfg.Paths.State)
	_, err = program.Run()
	tuiHandler.SetProgram(nil)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("running interface: %w", err)
	}
	return nil
}

// openFileLogHandler appends JSON records to path, rotating it first
// when it has grown past logfile.DefaultLimit.
func openFileLogHandler(path string, level slog.Level) (slog.Handler, func(), error) {
	file, err := logfile.Open(path, logfile.DefaultLimit)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return handler, func() { file.Close() }, nil
}

// fanoutHandler delivers each record to every handler enabled for its
// level. A failing handler does not keep the record from the others.
type fanoutHandler []slog.Handler

func (handlers fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(handlers, func(handler slog.Handler) bool {
		return handler.Enabled(ctx, level)
	})
}

func (handlers fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (handlers fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return handlers.derive(func(handler slog.Handler) slog.Handler { return handler.WithAttrs(attrs) })
}

func (handlers fanoutHandler) WithGroup(name string) slog.Handler {
	return handlers.derive(func(handler slog.Handler) slog.Handler { return handler.WithGroup(name) })
}

func (handlers fanoutHandler) derive(apply func(slog.Handler) slog.Handler) fanoutHandler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = apply(handler)
	}
	return derived
}
