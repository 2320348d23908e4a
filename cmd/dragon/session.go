// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/dragon-chat/dragon/directory"
	"github.com/dragon-chat/dragon/engine"
	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/lib/secret"
	"github.com/dragon-chat/dragon/lib/settings"
)

// commandTimeout bounds a whole non-interactive command, initial sync
// included.
const commandTimeout = 60 * time.Second

// parseCommandFlags parses a subcommand's flags and rejects positional
// arguments.
func parseCommandFlags(flagSet *pflag.FlagSet, args []string) (bool, error) {
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			flagSet.SetOutput(os.Stderr)
			flagSet.PrintDefaults()
			return false, nil
		}
		return false, clienterr.New(clienterr.Validation, flagSet.Name(), "%v", err)
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return false, clienterr.New(clienterr.Validation, flagSet.Name(), "unexpected argument: %s", extra[0])
	}
	return true, nil
}

// openCommandClient loads the configuration and builds a client logging
// to stderr.
func openCommandClient(options globalOptions, command string) (*client, error) {
	cfg, err := loadConfig(options.configPath)
	if err != nil {
		return nil, err
	}
	level, _ := cfg.SlogLevel()
	logger := newCommandLogger(level).With("command", command)
	return openClient(cfg, logger)
}

func runLogin(options globalOptions, args []string) error {
	var (
		homeserver   string
		username     string
		passwordFile string
	)
	flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
	flagSet.StringVar(&homeserver, "homeserver", "", "homeserver URL (default: stored or configured)")
	flagSet.StringVarP(&username, "username", "u", "", "user name or full Matrix ID")
	flagSet.StringVar(&passwordFile, "password-file", "", "read the password from this file (- for the first line of stdin) instead of prompting")
	proceed, err := parseCommandFlags(flagSet, args)
	if !proceed || err != nil {
		return err
	}
	if username == "" {
		return clienterr.New(clienterr.Validation, "login", "--username is required")
	}

	client, err := openCommandClient(options, "login")
	if err != nil {
		return err
	}
	defer client.close()

	if client.hasStoredSession() {
		return clienterr.New(clienterr.Validation, "login",
			"already logged in as %s (run 'dragon logout' first)", client.store.Get(settings.KeyUserID))
	}
	if homeserver == "" {
		homeserver = client.homeserverURL()
	}

	password, err := readPassword(passwordFile)
	if err != nil {
		return err
	}
	defer password.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	client.start(ctx)

	self, err := client.engine.Login(ctx, engine.LoginRequest{
		HomeserverURL: homeserver,
		Username:      username,
		Password:      password,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Logged in as %s on %s\n", self.UserID, self.HomeserverURL)
	return nil
}

func runLogout(options globalOptions, args []string) error {
	flagSet := pflag.NewFlagSet("logout", pflag.ContinueOnError)
	proceed, err := parseCommandFlags(flagSet, args)
	if !proceed || err != nil {
		return err
	}

	client, err := openCommandClient(options, "logout")
	if err != nil {
		return err
	}
	defer client.close()

	if !client.hasStoredSession() {
		fmt.Fprintln(os.Stderr, "Not logged in")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	client.start(ctx)

	self, err := awaitSession(ctx, client.notifier.C())
	if err != nil {
		// A session the server already rejected is forgotten by the
		// engine; there is nothing left to end.
		if clienterr.Is(err, clienterr.Auth) {
			fmt.Fprintln(os.Stderr, "Stored session was no longer valid and has been removed")
			return nil
		}
		return err
	}
	if err := client.engine.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Logged out %s\n", self.UserID)
	return nil
}

func runRooms(options globalOptions, args []string) error {
	var asJSON bool
	flagSet := pflag.NewFlagSet("rooms", pflag.ContinueOnError)
	flagSet.BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	proceed, err := parseCommandFlags(flagSet, args)
	if !proceed || err != nil {
		return err
	}

	client, err := openCommandClient(options, "rooms")
	if err != nil {
		return err
	}
	defer client.close()

	if !client.hasStoredSession() {
		return clienterr.ErrNotLoggedIn
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	client.start(ctx)

	notifications := client.notifier.C()
	if _, err := awaitSession(ctx, notifications); err != nil {
		return err
	}
	if err := awaitPrepared(ctx, notifications); err != nil {
		return err
	}
	rooms, err := client.engine.Rooms(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return writeRoomsJSON(os.Stdout, rooms)
	}
	return writeRoomsTable(os.Stdout, rooms)
}

type roomJSON struct {
	ID      string `json:"room_id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Topic   string `json:"topic,omitempty"`
	Members int    `json:"members"`
	Unread  int    `json:"unread"`
}

func writeRoomsJSON(w io.Writer, rooms []directory.Summary) error {
	out := make([]roomJSON, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, roomJSON{
			ID:      room.ID.String(),
			Name:    room.DisplayName,
			Kind:    room.Kind.String(),
			Topic:   room.Topic,
			Members: room.Members,
			Unread:  room.Unread,
		})
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func writeRoomsTable(w io.Writer, rooms []directory.Summary) error {
	if len(rooms) == 0 {
		_, err := fmt.Fprintln(w, "No rooms")
		return err
	}
	table := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(table, "NAME\tKIND\tMEMBERS\tUNREAD\tROOM ID")
	for _, room := range rooms {
		fmt.Fprintf(table, "%s\t%s\t%d\t%d\t%s\n", room.DisplayName, room.Kind, room.Members, room.Unread, room.ID)
	}
	return table.Flush()
}

// readPassword reads from passwordFile ("-" is stdin), or prompts on
// the terminal with echo disabled.
func readPassword(passwordFile string) (*secret.Buffer, error) {
	if passwordFile != "" {
		buffer, err := secret.ReadFromPath(passwordFile)
		if err != nil {
			return nil, clienterr.Wrap(clienterr.Validation, "read password", err)
		}
		return buffer, nil
	}

	descriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(descriptor) {
		return nil, clienterr.New(clienterr.Validation, "read password",
			"no terminal available for the password prompt (use --password-file)")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(descriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	if len(passwordBytes) == 0 {
		return nil, clienterr.New(clienterr.Validation, "read password", "password is empty")
	}
	buffer, err := secret.NewFromBytes(passwordBytes)
	if err != nil {
		secret.Zero(passwordBytes)
		return nil, err
	}
	return buffer, nil
}
