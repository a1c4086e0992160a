// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemonize detaches falcond from its controlling terminal
// when started with --daemon/-d. Go cannot safely fork() a
// multi-threaded runtime in place (other goroutines may hold locks or
// be mid-syscall at the moment of fork, and only the forking thread
// survives into the child), so detachment re-execs the same binary
// instead: the parent starts a copy of itself as a new session leader
// (Setsid) with an environment marker set, then exits; the copy sees
// the marker and runs the daemon directly, playing the role the
// reference implementation's forked grandchild would have played.
package daemonize

import (
	"fmt"
	"os"
	"syscall"
)

// childEnvVar marks a process as the already-detached child, so a
// second call to Detach (inside that process) runs run directly
// instead of re-execing again.
const childEnvVar = "FALCON_DAEMONIZE_CHILD"

// Detach arranges for run to execute in a session-leader process
// detached from the current controlling terminal, with stdout/stderr
// redirected to logPath.
//
// In the original (parent) process, Detach starts the detached copy
// and calls os.Exit(0); it does not return. In the detached copy,
// Detach calls run synchronously and returns once run does.
func Detach(logPath string, run func()) error {
	if os.Getenv(childEnvVar) == "1" {
		run()
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("daemonize: resolving executable path: %w", err)
	}

	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("daemonize: opening log file %s: %w", logPath, err)
	}
	defer logFile.Close()

	attr := &os.ProcAttr{
		Env:   append(os.Environ(), childEnvVar+"=1"),
		Files: []*os.File{nil, logFile, logFile},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	}

	proc, err := os.StartProcess(exe, os.Args, attr)
	if err != nil {
		return fmt.Errorf("daemonize: starting detached process: %w", err)
	}
	proc.Release()

	os.Exit(0)
	return nil // unreachable
}
