// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/adrienconrath/Falcon/lib/codec"
)

// dialTimeout bounds the connect phase of a Call.
const dialTimeout = 5 * time.Second

// responseReadTimeout bounds how long Call waits for a reply once the
// request has been sent.
const responseReadTimeout = 10 * time.Second

// maxResponseSize mirrors the server's maxRequestSize.
const maxResponseSize = 64 * 1024

// Client issues one RPC call per connection against a falcond
// instance's RPC port.
type Client struct {
	addr string
}

// NewClient returns a Client dialing addr (host:port) for every Call.
func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

// Call sends req to the server and returns its response. A non-nil
// error means the call itself failed (dial, encode, decode); an
// application-level failure is reported in Response.Error.
func (c *Client) Call(ctx context.Context, req Request) (Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return Response{}, fmt.Errorf("rpc: connecting to %s: %w", c.addr, err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("rpc: writing %s request: %w", req.Action, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	var resp Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("rpc: reading %s response: %w", req.Action, err)
	}
	return resp, nil
}
