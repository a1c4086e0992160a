// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

// Falconctl is a command-line client for falcond: each invocation
// issues exactly one RPC call and prints the result.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/adrienconrath/Falcon/lib/rpc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "falconctl: error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr string
		help bool
	)

	flagSet := pflag.NewFlagSet("falconctl", pflag.ContinueOnError)
	flagSet.StringVarP(&addr, "addr", "a", "localhost:4242", "falcond RPC address")
	flagSet.BoolVarP(&help, "help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printHelp(flagSet)
		return fmt.Errorf("falconctl: a command is required")
	}

	client := rpc.NewClient(addr)
	ctx := context.Background()

	switch cmd := args[0]; cmd {
	case "build":
		return call(ctx, client, rpc.Request{Action: rpc.ActionStartBuild}, func(resp rpc.Response) {
			fmt.Println(resp.Result)
		})

	case "status":
		return call(ctx, client, rpc.Request{Action: rpc.ActionGetStatus}, func(resp rpc.Response) {
			fmt.Println(resp.Status)
		})

	case "interrupt":
		return call(ctx, client, rpc.Request{Action: rpc.ActionInterruptBuild}, func(rpc.Response) {})

	case "dirty-sources":
		return call(ctx, client, rpc.Request{Action: rpc.ActionGetDirtySources}, func(resp rpc.Response) {
			for _, s := range resp.Sources {
				fmt.Println(s)
			}
		})

	case "dirty":
		if len(args) != 2 {
			return fmt.Errorf("falconctl: usage: falconctl dirty <path>")
		}
		return call(ctx, client, rpc.Request{Action: rpc.ActionSetDirty, Target: args[1]}, func(rpc.Response) {})

	case "graphviz":
		return call(ctx, client, rpc.Request{Action: rpc.ActionGetGraphviz}, func(resp rpc.Response) {
			fmt.Println(resp.Dot)
		})

	case "shutdown":
		return call(ctx, client, rpc.Request{Action: rpc.ActionShutdown}, func(rpc.Response) {})

	default:
		return fmt.Errorf("falconctl: unknown command %q", cmd)
	}
}

// call issues req and hands the response to onSuccess, unless the
// server reported an application-level error.
func call(ctx context.Context, client *rpc.Client, req rpc.Request, onSuccess func(rpc.Response)) error {
	resp, err := client.Call(ctx, req)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("falconctl: %s", resp.Error)
	}
	onSuccess(resp)
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprint(os.Stderr, `falconctl — command-line client for falcond.

Usage:
  falconctl [flags] <command> [args]

Commands:
  build            start a build of every root target
  status           print IDLE or BUILDING
  interrupt        ask the current build to stop
  dirty-sources    list source paths currently out of date
  dirty <path>     mark a graph node out of date
  graphviz         print the graph as a Graphviz dot document
  shutdown         stop falcond

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
