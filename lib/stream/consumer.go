// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream implements the build daemon's streaming protocol: a
// Consumer records the events of a build as they happen, and a Server
// fans those events out to any number of connected TCP clients as an
// append-only JSON transcript, each client reading at its own pace.
//
// Server is the Go-native reading of the reference implementation's
// single poll()/epoll event loop: instead of multiplexing read
// readiness for many file descriptors on one thread, each accepted
// connection gets its own goroutine that is either blocked on a
// capacity-1 wake channel (the "waiting" state) or inside conn.Write
// (the "active" state).
package stream

import "github.com/adrienconrath/Falcon/lib/subprocess"

// Result is the terminal outcome of a whole build, reported once via
// Consumer.EndBuild. It lives in this package (rather than lib/builder)
// so that lib/stream does not need to import lib/builder, which itself
// depends on lib/stream to drive a Consumer — avoiding an import cycle.
type Result int

const (
	// SUCCEEDED means every rule in the build completed successfully.
	SUCCEEDED Result = iota
	// FAILED means at least one rule failed and no interrupt occurred.
	FAILED
	// INTERRUPTED means the build was stopped by an explicit interrupt
	// request before it finished.
	INTERRUPTED
)

func (r Result) String() string {
	switch r {
	case SUCCEEDED:
		return "SUCCEEDED"
	case FAILED:
		return "FAILED"
	case INTERRUPTED:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}

// Consumer receives the events of a single build as it runs. Every
// method must be safe for concurrent use and must not perform
// blocking I/O on the caller's goroutine — Server satisfies this by
// only ever touching its in-memory buffer under its own mutex, handing
// bytes to client goroutines through a wake channel rather than
// writing to sockets itself.
type Consumer interface {
	// NewBuild starts a new build transcript identified by buildID.
	NewBuild(buildID uint64)
	// NewCommand records that cmdID begins executing command.
	NewCommand(cmdID uint64, command string)
	// WriteStdout appends a chunk of a running command's stdout.
	WriteStdout(cmdID uint64, data []byte)
	// WriteStderr appends a chunk of a running command's stderr.
	WriteStderr(cmdID uint64, data []byte)
	// EndCommand records that cmdID finished with status.
	EndCommand(cmdID uint64, status subprocess.ExitStatus)
	// EndBuild closes out the current build's transcript with result.
	EndBuild(result Result)
	// CacheRetrieveAction records that path's rule was satisfied from
	// a cache instead of being executed. Reserved for a future cache
	// layer; no current caller populates it, but it is part of the
	// consumer contract so callers can compile against the full
	// original event set.
	CacheRetrieveAction(path string)
}
