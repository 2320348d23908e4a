// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Dragon is a terminal chat client for Matrix rooms with voice and
// video calls. Without a subcommand it opens the interactive client;
// the login, logout and rooms subcommands manage the stored session
// from scripts.
//
// The session (homeserver, user ID and the sealed access token) lives
// in settings.json under paths.state. A stored session is resumed on
// every start, so "dragon login" followed by "dragon" opens straight
// into the room list.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/lib/config"
	"github.com/dragon-chat/dragon/lib/process"
	"github.com/dragon-chat/dragon/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

// globalOptions are accepted before any subcommand.
type globalOptions struct {
	configPath string
	logOutput  string
}

func (options *globalOptions) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&options.configPath, "config", "", "configuration file (default: $"+config.EnvVar+", else built-in defaults)")
	flagSet.StringVar(&options.logOutput, "log-output", "", "log file for the interactive client (default: paths.log)")
}

// subcommand is one entry in the dispatch table.
type subcommand struct {
	name    string
	summary string
	run     func(options globalOptions, args []string) error
}

var subcommands = []subcommand{
	{name: "login", summary: "Log in and store the session", run: runLogin},
	{name: "logout", summary: "End the stored session on the server and forget it", run: runLogout},
	{name: "rooms", summary: "Print the joined rooms of the stored session", run: runRooms},
}

func run(args []string) error {
	if len(args) > 0 && args[0] == "--version" {
		version.Print(os.Stdout, "dragon")
		return nil
	}

	var options globalOptions
	flagSet := pflag.NewFlagSet("dragon", pflag.ContinueOnError)
	options.addFlags(flagSet)
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.SetInterspersed(false)

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		return runInteractive(options)
	}
	for _, command := range subcommands {
		if command.name == rest[0] {
			return command.run(options, rest[1:])
		}
	}
	return clienterr.New(clienterr.Validation, "dragon", "unknown command %q (run 'dragon --help' for usage)", rest[0])
}

func printHelp(flagSet *pflag.FlagSet) {
	var commands strings.Builder
	for _, command := range subcommands {
		fmt.Fprintf(&commands, "  %-8s %s\n", command.name, command.summary)
	}
	fmt.Fprintf(os.Stderr, `Dragon: Matrix chat with voice and video calls.

Without a command, opens the interactive client.

Usage:
  dragon [flags] [command] [command flags]

Commands:
%s
Examples:
  # Open the client
  dragon

  # Log in from a script, password on stdin's terminal
  dragon login --username alice

  # Use a development configuration
  dragon --config dev.yaml rooms

Flags:
`, commands.String())
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
