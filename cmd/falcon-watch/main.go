// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

// Falcon-watch is a terminal UI that connects to falcond's streaming
// transcript port and renders the current (or most recent) build's
// commands as they run, filterable by a fuzzy pattern.
package main

import (
	"fmt"
	"net"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "falcon-watch: error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr string
		help bool
	)

	flagSet := pflag.NewFlagSet("falcon-watch", pflag.ContinueOnError)
	flagSet.StringVarP(&addr, "addr", "a", "localhost:4343", "falcond stream address")
	flagSet.BoolVarP(&help, "help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if help {
		flagSet.PrintDefaults()
		return nil
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("falcon-watch: connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	dec := newTranscriptDecoder(conn)
	m := newModel(dec)

	if _, err := tea.NewProgram(m).Run(); err != nil {
		return fmt.Errorf("falcon-watch: %w", err)
	}
	return nil
}
