// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

// Falcond is the build daemon: it loads a graph file, scans the
// filesystem for staleness against the persisted hash cache, and then
// serves two TCP ports for the rest of the system's lifetime — a
// streaming transcript port any number of observer clients can watch
// (falcon-watch) and a command port falconctl talks to.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/adrienconrath/Falcon/lib/builder"
	"github.com/adrienconrath/Falcon/lib/config"
	"github.com/adrienconrath/Falcon/lib/daemon"
	"github.com/adrienconrath/Falcon/lib/daemonize"
	"github.com/adrienconrath/Falcon/lib/graph"
	"github.com/adrienconrath/Falcon/lib/graphfile"
	"github.com/adrienconrath/Falcon/lib/graphprint"
	"github.com/adrienconrath/Falcon/lib/hashcache"
	"github.com/adrienconrath/Falcon/lib/logging"
	"github.com/adrienconrath/Falcon/lib/rpc"
	"github.com/adrienconrath/Falcon/lib/stream"
	"github.com/adrienconrath/Falcon/lib/subprocess"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "falcond: error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		module     string
		detach     bool
		help       bool
	)

	flagSet := pflag.NewFlagSet("falcond", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "f", "", "path to the falcond YAML config file")
	flagSet.StringVarP(&module, "module", "M", "", "print the graph as {dot,make} and exit instead of starting the daemon")
	flagSet.BoolVarP(&detach, "daemon", "d", false, "detach and run in the background")
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

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	g, err := graphfile.Load(cfg.Graph)
	if err != nil {
		return err
	}
	if err := graph.CheckCycles(g); err != nil {
		return err
	}

	cachePath := filepath.Join(cfg.WorkingDirectory, ".falcon-cache")
	cache, err := hashcache.Load(cachePath)
	if err != nil {
		return err
	}
	if err := graph.Scan(g, cache, graphfile.Resolver{}); err != nil {
		return err
	}

	switch module {
	case "":
		// fall through to serving the daemon below
	case "dot":
		return graphprint.WriteGraphviz(g, os.Stdout)
	case "make":
		return graphprint.WriteMakefile(g, os.Stdout)
	case "help":
		flagSet.PrintDefaults()
		return nil
	default:
		return fmt.Errorf("falcond: unknown --module value %q (want \"dot\", \"make\" or \"help\")", module)
	}

	if detach {
		return daemonize.Detach(filepath.Join(cfg.WorkingDirectory, "falcond.log"), func() {
			if err := serve(g, cache, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "falcond: error: %v\n", err)
				os.Exit(1)
			}
		})
	}
	return serve(g, cache, cfg)
}

func serve(g *graph.Graph, cache *hashcache.Store, cfg *config.Config) error {
	logger, err := logging.New(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return err
	}

	var graphMu sync.Mutex
	streamServer := stream.NewServer()
	b := builder.New(g, subprocess.New(), streamServer, cache, cfg.WorkingDirectory, &graphMu)
	d := daemon.New(g, b, streamServer, cache, logger, &graphMu)
	rpcServer := rpc.NewServer(d, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	streamErr := make(chan error, 1)
	go func() { streamErr <- streamServer.Run(ctx, fmt.Sprintf(":%d", cfg.StreamPort)) }()

	rpcErr := make(chan error, 1)
	go func() { rpcErr <- rpcServer.Run(ctx, fmt.Sprintf(":%d", cfg.APIPort)) }()

	logger.Info("falcond listening",
		"stream_port", cfg.StreamPort,
		"api_port", cfg.APIPort,
		"graph", cfg.Graph,
	)

	select {
	case <-ctx.Done():
		d.Shutdown()
	case <-d.Done():
	}

	rpcServer.Stop()
	streamServer.Stop()
	<-streamErr
	<-rpcErr

	return cache.Save()
}
