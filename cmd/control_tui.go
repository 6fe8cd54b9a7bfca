// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/lumen/internal/session"
	"github.com/Thermoquad/lumen/pkg/ledconn"
	"github.com/Thermoquad/lumen/pkg/ledwire"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const maxLogEntries = 100

// Focus states (address form)
const (
	focusAddress = iota
	focusPort
	focusButton
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// eventLogEntry is one line of the event log
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	ctx     context.Context
	machine *session.Machine
	state   session.State

	// Address form
	address      textinput.Model
	port         textinput.Model
	focusedField int

	spinner spinner.Model
	stats   *ledconn.Statistics

	eventLog []eventLogEntry

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

// sessionEventMsg carries the result of a session action back into Update
type sessionEventMsg struct {
	event session.Event
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(ctx context.Context, machine *session.Machine, initial session.State, stats *ledconn.Statistics) controlModel {
	addr := textinput.New()
	addr.Placeholder = "192.168.4.1"
	addr.CharLimit = 253
	addr.Width = 30
	addr.Prompt = ""

	port := textinput.New()
	port.Placeholder = "5000"
	port.CharLimit = 5
	port.Width = 8
	port.Prompt = ""

	if d, ok := initial.(session.Disconnected); ok {
		addr.SetValue(d.Address)
		port.SetValue(d.Port)
	}
	addr.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return controlModel{
		ctx:     ctx,
		machine: machine,
		state:   initial,
		address: addr,
		port:    port,
		spinner: sp,
		stats:   stats,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sessionEventMsg:
		return m.dispatch(msg.event)
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch st := m.state.(type) {
	case session.Disconnected:
		return m.handleFormKey(msg, st)

	case session.ConnectionFailed:
		switch msg.String() {
		case "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter", "r":
			return m.dispatch(session.RetryRequested{})
		}

	case session.Connected:
		switch msg.String() {
		case "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter", " ", "t":
			return m.dispatch(session.ToggleRequested{})
		case "d":
			return m.dispatch(session.DisconnectRequested{})
		}
	}

	return m, nil
}

func (m controlModel) handleFormKey(msg tea.KeyMsg, st session.Disconnected) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.quitting = true
		return m, tea.Quit
	case "tab", "down":
		m.cycleFocus(1)
		return m, nil
	case "shift+tab", "up":
		m.cycleFocus(-1)
		return m, nil
	case "enter":
		return m.dispatch(session.ConnectRequested{})
	}

	if st.Dialing {
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focusedField {
	case focusAddress:
		m.address, cmd = m.address.Update(msg)
		if m.address.Value() != st.Address {
			next, nextCmd := m.dispatch(session.AddressChanged{Address: m.address.Value()})
			return next, tea.Batch(cmd, nextCmd)
		}
	case focusPort:
		m.port, cmd = m.port.Update(msg)
		if m.port.Value() != st.Port {
			next, nextCmd := m.dispatch(session.PortChanged{Port: m.port.Value()})
			return next, tea.Batch(cmd, nextCmd)
		}
	}
	return m, cmd
}

func (m *controlModel) cycleFocus(delta int) {
	m.focusedField = (m.focusedField + delta + focusButton + 1) % (focusButton + 1)
	m.address.Blur()
	m.port.Blur()
	switch m.focusedField {
	case focusAddress:
		m.address.Focus()
	case focusPort:
		m.port.Focus()
	}
}

// dispatch feeds ev to the session machine and schedules any action it
// returns.
func (m controlModel) dispatch(ev session.Event) (tea.Model, tea.Cmd) {
	prev := m.state
	next, action, err := m.machine.Next(prev, ev)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}
	m.state = next
	m.logTransition(prev, ev)

	// Refill the form when returning to it
	if d, ok := next.(session.Disconnected); ok {
		if _, was := prev.(session.Disconnected); !was {
			m.address.SetValue(d.Address)
			m.port.SetValue(d.Port)
		}
	}

	if action == nil {
		return m, nil
	}
	ctx := m.ctx
	return m, func() tea.Msg {
		result := action(ctx)
		if result == nil {
			return nil
		}
		return sessionEventMsg{event: result}
	}
}

func (m *controlModel) logTransition(prev session.State, ev session.Event) {
	switch st := m.state.(type) {
	case session.Disconnected:
		switch ev.(type) {
		case session.ConnectRequested:
			m.addLogEntry(fmt.Sprintf("Connecting to %s:%s...", st.Address, st.Port), false)
		case session.RetryRequested:
			m.addLogEntry("Ready to retry", false)
		case session.DisconnectRequested:
			m.addLogEntry("Disconnected", false)
		}

	case session.ConnectionFailed:
		if _, was := prev.(session.ConnectionFailed); !was {
			m.addLogEntry(fmt.Sprintf("Connection failed: %v", st.Reason), true)
		}

	case session.Connected:
		switch e := ev.(type) {
		case session.ConnectFinished:
			m.addLogEntry(fmt.Sprintf("Connected to %s", st.Conn.RemoteAddr()), false)
		case session.ToggleFinished:
			switch {
			case e.Err == nil:
				m.addLogEntry(fmt.Sprintf("LED is now %s", strings.ToUpper(e.State.String())), false)
			case errors.Is(e.Err, ledwire.ErrUnexpectedAck):
				m.addLogEntry(fmt.Sprintf("Protocol error: %v", e.Err), true)
			default:
				m.addLogEntry(fmt.Sprintf("Toggle abandoned: %v", e.Err), true)
			}
		}
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 2)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	// Header
	s.WriteString(titleStyle.Render("LUMEN CONTROL"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s", m.state, m.helpText())))
	s.WriteString("\n\n")

	var body string
	switch st := m.state.(type) {
	case session.Disconnected:
		body = m.renderForm(st, labelStyle, warningStyle, buttonStyle, focusedButtonStyle)
	case session.ConnectionFailed:
		body = m.renderFailed(st, labelStyle, errorStyle, focusedButtonStyle)
	case session.Connected:
		body = m.renderConnected(st, labelStyle, valueStyle, warningStyle, headerStyle, focusedButtonStyle)
	}
	s.WriteString(boxStyle.Render(body))
	s.WriteString("\n")

	s.WriteString(m.renderEventLog(labelStyle, warningStyle, boxStyle))
	return s.String()
}

func (m controlModel) helpText() string {
	switch m.state.(type) {
	case session.ConnectionFailed:
		return "Enter=retry q=quit"
	case session.Connected:
		return "Enter/Space=toggle d=disconnect q=quit"
	default:
		return "Tab=next field Enter=connect Esc=quit"
	}
}

func (m controlModel) renderForm(st session.Disconnected, labelStyle, warningStyle, buttonStyle, focusedButtonStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Address:"), m.address.View()))
	s.WriteString(fmt.Sprintf("%s    %s\n\n", labelStyle.Render("Port:"), m.port.View()))

	if st.Dialing {
		s.WriteString(warningStyle.Render(fmt.Sprintf("%s Connecting...", m.spinner.View())))
		return s.String()
	}

	button := buttonStyle
	if m.focusedField == focusButton {
		button = focusedButtonStyle
	}
	s.WriteString(button.Render("Connect"))
	return s.String()
}

func (m controlModel) renderFailed(st session.ConnectionFailed, labelStyle, errorStyle, buttonStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(errorStyle.Render("Connection failed"))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s %s:%s\n", labelStyle.Render("Address:"), st.Address, st.Port))
	s.WriteString(fmt.Sprintf("%s  %s\n\n", labelStyle.Render("Reason:"), describeError(st.Reason)))
	s.WriteString(buttonStyle.Render("Retry"))
	return s.String()
}

func (m controlModel) renderConnected(st session.Connected, labelStyle, valueStyle, warningStyle, headerStyle, buttonStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(fmt.Sprintf("%s %s\n\n", labelStyle.Render("Connected to"), valueStyle.Render(st.Conn.RemoteAddr())))

	ledStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	led := "○ OFF"
	if st.LED == ledwire.On {
		led = "● ON"
		ledStyle = ledStyle.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11"))
	} else {
		ledStyle = ledStyle.Foreground(lipgloss.Color("250")).Background(lipgloss.Color("237"))
	}
	s.WriteString(fmt.Sprintf("%s %s", labelStyle.Render("LED:"), ledStyle.Render(led)))
	if st.Pending > 0 {
		s.WriteString(" " + m.spinner.View())
	}
	s.WriteString("\n")

	if st.ProtocolErr != nil {
		s.WriteString(warningStyle.Render(fmt.Sprintf("State may be stale: %v", st.ProtocolErr)))
		s.WriteString("\n")
	}
	s.WriteString("\n")
	s.WriteString(buttonStyle.Render("Toggle"))

	if m.stats != nil {
		snap := m.stats.Snapshot()
		s.WriteString("\n\n")
		s.WriteString(headerStyle.Render(fmt.Sprintf("Commands: %d  OK: %d  Bad acks: %d  Avg RTT: %v",
			snap.Commands, snap.Succeeded, snap.BadAcks, snap.AvgRTT().Round(time.Microsecond))))
	}
	return s.String()
}

func (m controlModel) renderEventLog(labelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := 8
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	width := m.width - 4
	if width < 40 {
		width = 40
	}
	return boxStyle.Width(width).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

// describeError names the failure kind for display.
func describeError(err error) string {
	switch ledconn.KindOf(err) {
	case ledconn.KindInvalidAddress:
		return fmt.Sprintf("invalid address (%v)", err)
	case ledconn.KindTransport:
		if ledconn.IsUnexpectedEOF(err) {
			return fmt.Sprintf("device closed the connection (%v)", err)
		}
		if ledconn.IsTimeout(err) {
			return fmt.Sprintf("timed out (%v)", err)
		}
		return err.Error()
	default:
		return err.Error()
	}
}
