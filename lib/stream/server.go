// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/adrienconrath/Falcon/lib/subprocess"
)

// buildInfo is one build's in-memory transcript buffer.
type buildInfo struct {
	id         uint64
	buf        []byte
	completed  bool
	refcount   int
	firstChunk bool
}

// clientInfo tracks one accepted connection: which build element it is
// reading from, how far it has read, and its wake signal.
type clientInfo struct {
	conn   net.Conn
	build  *list.Element
	offset int
	wake   chan struct{}
}

// Server fans a sequence of builds out to any number of connected
// clients. The zero value is not usable; construct with NewServer.
// Server is safe for concurrent use: every method that touches
// builds or clients takes s.mu.
type Server struct {
	mu      sync.Mutex
	builds  *list.List // of *buildInfo, front = newest
	clients map[net.Conn]*clientInfo
	ln      net.Listener
}

// NewServer constructs an empty Server with no builds and no clients.
func NewServer() *Server {
	return &Server{
		builds:  list.New(),
		clients: make(map[net.Conn]*clientInfo),
	}
}

// Run listens on addr and accepts connections until ctx is cancelled
// or Stop is called, at which point it returns nil. Each accepted
// connection is served by its own goroutine for the lifetime of the
// connection or of the server, whichever ends first.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("stream: listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopped:
		}
	}()
	defer close(stopped)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.addClient(ctx, conn)
	}
}

// Stop closes the listener and every tracked client connection. Each
// client goroutine observes the resulting error and exits on its own;
// Stop does not wait for them.
func (s *Server) Stop() {
	s.mu.Lock()
	ln := s.ln
	conns := make([]net.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	for _, c := range conns {
		_ = c.Close()
	}
}

// Addr returns the address the server is listening on, once Run has
// started it. Returns nil before Run is called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// addClient registers a newly accepted connection. If a build is
// already in progress or awaiting collection, the client attaches to
// it immediately (so it receives the full transcript written so far,
// not just events from this point on); otherwise it starts unattached
// and is picked up by the next NewBuild's flushWaiting.
func (s *Server) addClient(ctx context.Context, conn net.Conn) {
	ci := &clientInfo{conn: conn, wake: make(chan struct{}, 1)}

	s.mu.Lock()
	s.clients[conn] = ci
	if front := s.builds.Front(); front != nil {
		ci.build = front
		front.Value.(*buildInfo).refcount++
	}
	s.mu.Unlock()

	go s.serveClient(ctx, conn, ci)
}

// serveClient is the per-connection loop. It alternates between a
// "waiting" state (blocked on ci.wake or ctx.Done()) and an "active"
// state (inside conn.Write), mirroring the waiting/active file
// descriptor sets of the reference implementation's event loop.
func (s *Server) serveClient(ctx context.Context, conn net.Conn, ci *clientInfo) {
	for {
		s.mu.Lock()
		if ci.build == nil {
			s.mu.Unlock()
			select {
			case <-ci.wake:
				continue
			case <-ctx.Done():
				s.detachClient(conn, ci)
				return
			}
		}

		bi := ci.build.Value.(*buildInfo)
		if ci.offset >= len(bi.buf) {
			if bi.completed {
				s.mu.Unlock()
				s.detachClient(conn, ci)
				return
			}
			s.mu.Unlock()
			select {
			case <-ci.wake:
				continue
			case <-ctx.Done():
				s.detachClient(conn, ci)
				return
			}
		}

		unsent := append([]byte(nil), bi.buf[ci.offset:]...)
		s.mu.Unlock()

		written := 0
		for written < len(unsent) {
			n, err := conn.Write(unsent[written:])
			if err != nil {
				s.detachClient(conn, ci)
				return
			}
			written += n
		}

		s.mu.Lock()
		ci.offset += written
		s.mu.Unlock()
	}
}

// detachClient removes conn from the client set, decrements its
// build's refcount, and collects the build if it is now eligible
// (completed, unreferenced, and not the front of the list).
func (s *Server) detachClient(conn net.Conn, ci *clientInfo) {
	_ = conn.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, conn)
	if ci.build == nil {
		return
	}
	bi := ci.build.Value.(*buildInfo)
	bi.refcount--
	if bi.completed && bi.refcount == 0 && ci.build != s.builds.Front() {
		s.builds.Remove(ci.build)
	}
}

// flushWaiting attaches any still-unattached client to elem (the
// front build) and wakes every client attached to elem. Must be
// called with s.mu held.
func (s *Server) flushWaiting(elem *list.Element) {
	bi := elem.Value.(*buildInfo)
	for _, ci := range s.clients {
		if ci.build == nil {
			ci.build = elem
			bi.refcount++
		} else if ci.build != elem {
			continue
		}
		select {
		case ci.wake <- struct{}{}:
		default:
		}
	}
}

// appendEvent appends a comma-separated event into the front build's
// cmds array, then flushes waiting clients. No-op if no build exists
// (should not happen given the daemon's single-build-at-a-time
// invariant, but cheaper to ignore than to force callers to check).
func (s *Server) appendEvent(event []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	front := s.builds.Front()
	if front == nil {
		return
	}
	bi := front.Value.(*buildInfo)
	if bi.firstChunk {
		bi.firstChunk = false
	} else {
		bi.buf = append(bi.buf, ",\n"...)
	}
	bi.buf = append(bi.buf, event...)
	s.flushWaiting(front)
}

// escapeJSON applies the transcript's minimal escaping: a backslash
// before '"' and '\\', and '\n' rendered as the two-byte sequence
// "\n". No other escaping is applied.
func escapeJSON(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, c := range data {
		switch c {
		case '"':
			out = append(out, '\\', '"')
		case '\\':
			out = append(out, '\\', '\\')
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, c)
		}
	}
	return out
}

// NewBuild implements Consumer.
func (s *Server) NewBuild(buildID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if front := s.builds.Front(); front != nil {
		bi := front.Value.(*buildInfo)
		if bi.completed && bi.refcount == 0 {
			s.builds.Remove(front)
		}
	}

	nb := &buildInfo{id: buildID, firstChunk: true}
	nb.buf = append(nb.buf, []byte(`{ "id": `+strconv.FormatUint(buildID, 10)+`, "cmds": [`)...)
	elem := s.builds.PushFront(nb)
	s.flushWaiting(elem)
}

// NewCommand implements Consumer.
func (s *Server) NewCommand(cmdID uint64, command string) {
	event := []byte(`{ "id": ` + strconv.FormatUint(cmdID, 10) + `, "cmd": "`)
	event = append(event, escapeJSON([]byte(command))...)
	event = append(event, `" }`...)
	s.appendEvent(event)
}

// WriteStdout implements Consumer.
func (s *Server) WriteStdout(cmdID uint64, data []byte) {
	event := []byte(`{ "id": ` + strconv.FormatUint(cmdID, 10) + `, "stdout": "`)
	event = append(event, escapeJSON(data)...)
	event = append(event, `" }`...)
	s.appendEvent(event)
}

// WriteStderr implements Consumer.
func (s *Server) WriteStderr(cmdID uint64, data []byte) {
	event := []byte(`{ "id": ` + strconv.FormatUint(cmdID, 10) + `, "stderr": "`)
	event = append(event, escapeJSON(data)...)
	event = append(event, `" }`...)
	s.appendEvent(event)
}

// EndCommand implements Consumer.
func (s *Server) EndCommand(cmdID uint64, status subprocess.ExitStatus) {
	event := []byte(`{ "id": ` + strconv.FormatUint(cmdID, 10) + `, "status": "` + status.String() + `" }`)
	s.appendEvent(event)
}

// CacheRetrieveAction implements Consumer.
func (s *Server) CacheRetrieveAction(path string) {
	event := []byte(`{ "cache": "`)
	event = append(event, escapeJSON([]byte(path))...)
	event = append(event, `" }`...)
	s.appendEvent(event)
}

// EndBuild implements Consumer.
func (s *Server) EndBuild(result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	front := s.builds.Front()
	if front == nil {
		return
	}
	bi := front.Value.(*buildInfo)
	bi.buf = append(bi.buf, []byte(`], "result": "`+result.String()+`" }`)...)
	bi.completed = true
	s.flushWaiting(front)
}
