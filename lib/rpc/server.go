// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/adrienconrath/Falcon/lib/codec"
	"github.com/adrienconrath/Falcon/lib/daemon"
)

// readTimeout bounds how long the server waits for a client to send
// its request after connecting.
const readTimeout = 10 * time.Second

// writeTimeout bounds how long the server waits for the response to
// be written before giving up on a slow or gone client.
const writeTimeout = 10 * time.Second

// maxRequestSize caps a single CBOR request; every request this
// protocol defines is a handful of bytes, so this is generous.
const maxRequestSize = 64 * 1024

// Server serves the falcond command set over TCP: one CBOR request,
// one CBOR response, per connection.
type Server struct {
	d      *daemon.Daemon
	logger *slog.Logger

	mu sync.Mutex
	ln net.Listener

	active sync.WaitGroup
}

// NewServer returns a Server dispatching requests against d.
func NewServer(d *daemon.Daemon, logger *slog.Logger) *Server {
	return &Server{d: d, logger: logger}
}

// Run listens on addr and serves connections until ctx is cancelled
// or Stop is called. Returns once every in-flight handler has
// returned.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			if s.logger != nil {
				s.logger.Error("rpc: accept failed", "error", err)
			}
			continue
		}

		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handle(conn)
		}()
	}

	s.active.Wait()
	return nil
}

// Stop closes the listener, unblocking Run's accept loop.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		s.ln.Close()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var req Request
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.reply(conn, Response{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	s.reply(conn, s.dispatch(req))
}

func (s *Server) dispatch(req Request) Response {
	switch req.Action {
	case ActionStartBuild:
		if err := s.d.StartBuild(context.Background()); err != nil {
			if errors.Is(err, daemon.ErrBusy) {
				return Response{Result: ResultBusy}
			}
			return Response{Error: err.Error()}
		}
		return Response{Result: ResultOK}

	case ActionGetStatus:
		if s.d.GetStatus() == daemon.Building {
			return Response{Status: StatusBuilding}
		}
		return Response{Status: StatusIdle}

	case ActionGetDirtySources:
		return Response{Sources: s.d.GetDirtySources()}

	case ActionSetDirty:
		if err := s.d.SetDirty(req.Target); err != nil {
			if errors.Is(err, daemon.ErrTargetNotFound) {
				return Response{Error: ErrorTargetNotFound}
			}
			return Response{Error: err.Error()}
		}
		return Response{}

	case ActionInterruptBuild:
		s.d.InterruptBuild()
		return Response{}

	case ActionShutdown:
		s.d.Shutdown()
		return Response{}

	case ActionGetGraphviz:
		dot, err := s.d.GetGraphviz()
		if err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Dot: dot}

	default:
		return Response{Error: fmt.Sprintf("unknown action %q", req.Action)}
	}
}

func (s *Server) reply(conn net.Conn, resp Response) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(resp); err != nil && s.logger != nil {
		s.logger.Debug("rpc: failed to write response", "error", err)
	}
}
