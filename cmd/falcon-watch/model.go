// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	styleRunning  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleSuccess  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleFailure  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleHeader   = lipgloss.NewStyle().Bold(true)
	styleSelected = lipgloss.NewStyle().Reverse(true)
)

// commandEntry tracks one command's transcript as events arrive.
type commandEntry struct {
	id      uint64
	command string
	status  string
	stdout  strings.Builder
	stderr  strings.Builder
}

func (c *commandEntry) style() lipgloss.Style {
	switch c.status {
	case "SUCCEEDED":
		return styleSuccess
	case "FAILED", "INTERRUPTED", "UNKNOWN":
		return styleFailure
	default:
		return styleRunning
	}
}

// eventMsg wraps one decoded transcript event for delivery through
// bubbletea's message loop.
type eventMsg struct {
	ev  event
	err error
}

// listenForEvent returns a tea.Cmd that blocks for the next transcript
// event and delivers it as an eventMsg. Update re-issues this command
// after every non-terminal event, mirroring the reference source's
// event-channel listen loop.
func listenForEvent(dec *transcriptDecoder) tea.Cmd {
	return func() tea.Msg {
		ev, err := dec.Next()
		if err == io.EOF {
			return eventMsg{ev: event{buildEnd: true, result: "SUCCEEDED"}}
		}
		if err != nil {
			return eventMsg{err: err}
		}
		return eventMsg{ev: ev}
	}
}

// model is falcon-watch's bubbletea state: an ordered list of commands
// seen in the current build, filterable by a fuzzy pattern.
type model struct {
	dec *transcriptDecoder

	buildID  uint64
	commands []*commandEntry
	byID     map[uint64]*commandEntry

	buildDone bool
	result    string
	err       error

	cursor    int
	filtering bool
	filter    string

	width, height int
}

func newModel(dec *transcriptDecoder) model {
	return model{dec: dec, byID: make(map[uint64]*commandEntry)}
}

func (m model) Init() tea.Cmd {
	return listenForEvent(m.dec)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case eventMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.apply(msg.ev)
		if m.buildDone {
			return m, nil
		}
		return m, listenForEvent(m.dec)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// apply folds ev into the model in place. m is addressable (Update's
// local copy of the receiver), so the pointer receiver here mutates
// the same model Update goes on to return.
func (m *model) apply(ev event) {
	switch {
	case ev.buildStart:
		m.buildID = ev.buildID
	case ev.buildEnd:
		m.buildDone = true
		m.result = ev.result
	case ev.command != "" && ev.hasCmdID:
		entry := &commandEntry{id: ev.cmdID, command: ev.command, status: "RUNNING"}
		m.commands = append(m.commands, entry)
		m.byID[ev.cmdID] = entry
	case ev.stdout != "" && ev.hasCmdID:
		if entry := m.byID[ev.cmdID]; entry != nil {
			entry.stdout.WriteString(ev.stdout)
		}
	case ev.stderr != "" && ev.hasCmdID:
		if entry := m.byID[ev.cmdID]; entry != nil {
			entry.stderr.WriteString(ev.stderr)
		}
	case ev.status != "" && ev.hasCmdID:
		if entry := m.byID[ev.cmdID]; entry != nil {
			entry.status = ev.status
		}
	}
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.String() {
		case "esc":
			m.filtering = false
			m.filter = ""
		case "enter":
			m.filtering = false
		case "backspace":
			if len(m.filter) > 0 {
				m.filter = m.filter[:len(m.filter)-1]
			}
		default:
			if len(msg.Runes) > 0 {
				m.filter += string(msg.Runes)
			}
		}
		m.cursor = 0
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "/":
		m.filtering = true
		m.filter = ""
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visibleIndices())-1 {
			m.cursor++
		}
	}
	return m, nil
}

// visibleIndices returns the indices into m.commands to display, in
// display order, after applying the current fuzzy filter.
func (m model) visibleIndices() []int {
	texts := make([]string, len(m.commands))
	for i, c := range m.commands {
		texts[i] = c.command
	}
	return fuzzyFilter(texts, m.filter)
}

func (m model) View() string {
	var b strings.Builder

	status := "BUILDING"
	if m.buildDone {
		status = m.result
	}
	fmt.Fprintf(&b, "%s  build #%d  [%s]\n\n", styleHeader.Render("falcon-watch"), m.buildID, status)

	if m.err != nil {
		fmt.Fprintf(&b, "error: %v\n", m.err)
		return b.String()
	}

	visible := m.visibleIndices()
	if len(visible) == 0 {
		b.WriteString(styleDim.Render("(no commands match)"))
		b.WriteString("\n")
	}
	for row, idx := range visible {
		c := m.commands[idx]
		line := fmt.Sprintf("[%s] %s", c.status, c.command)
		line = c.style().Render(line)
		if row == m.cursor {
			line = styleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(visible) > 0 {
		if entry := m.commands[visible[m.cursor]]; entry.stderr.Len() > 0 {
			b.WriteString("\n" + styleFailure.Render("stderr:") + "\n" + entry.stderr.String())
		}
	}

	b.WriteString("\n")
	if m.filtering {
		fmt.Fprintf(&b, "/%s", m.filter)
	} else {
		b.WriteString(styleDim.Render("q: quit  /: filter  j/k: move"))
	}
	return b.String()
}
