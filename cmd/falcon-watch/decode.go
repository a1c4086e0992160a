// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// event is one decoded transcript record. Exactly one of the "kind"
// groups below is populated, mirroring which fields lib/stream's
// Consumer method produced it.
type event struct {
	buildStart bool
	buildID    uint64

	hasCmdID bool
	cmdID    uint64
	command  string // set on a "cmd" event
	stdout   string // set on a "stdout" event
	stderr   string // set on a "stderr" event
	status   string // set on a "status" event

	cachePath string // set on a "cache" event

	buildEnd bool
	result   string
}

// wireEvent mirrors the JSON shape lib/stream/server.go writes for a
// single event object.
type wireEvent struct {
	ID     *uint64 `json:"id"`
	Cmd    string  `json:"cmd"`
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Status string  `json:"status"`
	Cache  string  `json:"cache"`
}

// wireHeader mirrors the opening "{ "id": N, "cmds": [" fragment.
type wireHeader struct {
	ID uint64 `json:"id"`
}

// transcriptDecoder incrementally decodes falcond's hand-rolled
// streaming JSON transcript: a header object whose "cmds" field opens
// an array that is never closed until the build ends, filled with one
// self-contained JSON object per event. Because the document as a
// whole isn't valid JSON until the connection closes, decoding it with
// encoding/json's Decoder against the whole stream would block until
// EOF; this type instead extracts and decodes one event object at a
// time as its closing brace arrives.
type transcriptDecoder struct {
	r         *bufio.Reader
	sawHeader bool
	done      bool
}

func newTranscriptDecoder(r io.Reader) *transcriptDecoder {
	return &transcriptDecoder{r: bufio.NewReader(r)}
}

// Next returns the next event in the transcript, or io.EOF once the
// build's closing "], \"result\": ...}" tail has been consumed.
func (d *transcriptDecoder) Next() (event, error) {
	if d.done {
		return event{}, io.EOF
	}
	if !d.sawHeader {
		id, err := d.readHeader()
		if err != nil {
			return event{}, err
		}
		d.sawHeader = true
		return event{buildStart: true, buildID: id}, nil
	}

	for {
		b, err := d.skipSpaceAndCommas()
		if err != nil {
			return event{}, err
		}
		if b == ']' {
			result, err := d.readResultTail()
			if err != nil {
				return event{}, err
			}
			d.done = true
			return event{buildEnd: true, result: result}, nil
		}
		if b != '{' {
			return event{}, fmt.Errorf("falcon-watch: unexpected byte %q in transcript", b)
		}
		raw, err := d.readBalancedObject()
		if err != nil {
			return event{}, err
		}
		return decodeWireEvent(raw)
	}
}

// readHeader consumes bytes up to and including the "[" that opens the
// "cmds" array, extracting the build id along the way.
func (d *transcriptDecoder) readHeader() (uint64, error) {
	raw, err := d.readBalancedObjectPrefix('[')
	if err != nil {
		return 0, err
	}
	var h wireHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return 0, fmt.Errorf("falcon-watch: decoding transcript header: %w", err)
	}
	return h.ID, nil
}

// readBalancedObjectPrefix reads from the opening "{" up to and
// including stop, tracking whether it is inside a string so stop is
// only honoured outside of any string, and returns everything up to
// (not including) stop with a synthetic "null}" appended, giving the
// key left without its value ("cmds") a value so the fragment parses
// as a standalone JSON object (the header's true closing brace comes
// long after "cmds": [ , once the whole build finishes).
func (d *transcriptDecoder) readBalancedObjectPrefix(stop byte) ([]byte, error) {
	first, err := d.skipSpaceAndCommas()
	if err != nil {
		return nil, err
	}
	if first != '{' {
		return nil, fmt.Errorf("falcon-watch: expected transcript to start with '{', got %q", first)
	}

	var buf []byte
	buf = append(buf, '{')
	inString := false
	escaped := false
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if inString {
			buf = append(buf, b)
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		if b == '"' {
			inString = true
			buf = append(buf, b)
			continue
		}
		if b == stop {
			buf = append(buf, "null}"...)
			return buf, nil
		}
		buf = append(buf, b)
	}
}

// readBalancedObject reads a complete "{ ... }" object, the opening
// brace having already been consumed by the caller.
func (d *transcriptDecoder) readBalancedObject() ([]byte, error) {
	buf := []byte{'{'}
	depth := 1
	inString := false
	escaped := false
	for depth > 0 {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return buf, nil
}

// readResultTail consumes ", \"result\": \"X\" }" (the "]" that
// preceded it was already consumed by the caller) and returns X.
func (d *transcriptDecoder) readResultTail() (string, error) {
	raw, err := d.readBalancedObjectPrefixFromComma()
	if err != nil {
		return "", err
	}
	var tail struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(raw, &tail); err != nil {
		return "", fmt.Errorf("falcon-watch: decoding transcript tail: %w", err)
	}
	return tail.Result, nil
}

// readBalancedObjectPrefixFromComma reads "," then the remaining
// object body up to and including its closing "}", returning
// "{"result": ...}" wrapped so it parses standalone.
func (d *transcriptDecoder) readBalancedObjectPrefixFromComma() ([]byte, error) {
	b, err := d.skipSpace()
	if err != nil {
		return nil, err
	}
	if b != ',' {
		return nil, fmt.Errorf("falcon-watch: expected ',' after ']', got %q", b)
	}
	buf := []byte{'{'}
	depth := 1
	inString := false
	escaped := false
	for depth > 0 {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if inString {
			buf = append(buf, b)
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '{':
			depth++
			buf = append(buf, b)
		case '}':
			depth--
			if depth > 0 {
				buf = append(buf, b)
			}
		case '"':
			inString = true
			buf = append(buf, b)
		default:
			buf = append(buf, b)
		}
	}
	return append(buf, '}'), nil
}

func (d *transcriptDecoder) skipSpace() (byte, error) {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == ' ' || b == '\n' || b == '\t' || b == '\r' {
			continue
		}
		return b, nil
	}
}

func (d *transcriptDecoder) skipSpaceAndCommas() (byte, error) {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == ' ' || b == '\n' || b == '\t' || b == '\r' || b == ',' {
			continue
		}
		return b, nil
	}
}

func decodeWireEvent(raw []byte) (event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return event{}, fmt.Errorf("falcon-watch: decoding transcript event: %w", err)
	}

	ev := event{}
	if w.ID != nil {
		ev.hasCmdID = true
		ev.cmdID = *w.ID
	}
	switch {
	case w.Cmd != "":
		ev.command = w.Cmd
	case w.Stdout != "":
		ev.stdout = w.Stdout
	case w.Stderr != "":
		ev.stderr = w.Stderr
	case w.Status != "":
		ev.status = w.Status
	case w.Cache != "":
		ev.cachePath = w.Cache
	}
	return ev, nil
}
