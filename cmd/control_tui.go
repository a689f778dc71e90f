// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Thermoquad/vfdctl/pkg/vfd"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// motorEdit is the locally edited, not yet sent, state of one motor
type motorEdit struct {
	running  bool
	reversed bool
	voltage  textinput.Model
}

func newMotorEdit() motorEdit {
	ti := textinput.New()
	ti.Placeholder = "0.0"
	ti.CharLimit = 16
	ti.Width = 12
	ti.SetValue("0")
	return motorEdit{voltage: ti}
}

// state parses the edited voltage into a motor state
func (e motorEdit) state() (vfd.MotorState, error) {
	v := vfd.ParseLiteral(e.voltage.Value())
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return vfd.MotorState{}, fmt.Errorf("voltage %q is not a finite number", e.voltage.Value())
	}
	return vfd.MotorState{Running: e.running, Reversed: e.reversed, Voltage: v}, nil
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	// Connection manager (for sending commands and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Controller description
	described bool
	version   string
	pins      []vfd.PinPair
	ranges    []vfd.FrequencyRange

	// Editing
	edits    []motorEdit
	selected int
	editing  bool

	// Committed state as read back from the controller
	readback     []vfd.MotorState
	lastReadback time.Time

	// Monitoring (reused from tui.go patterns)
	stats         *vfd.LinkStatistics
	errorLog      []errorLogEntry
	maxLogEntries int

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controllerInfoMsg struct {
	version string
	motors  int
	pins    []vfd.PinPair
	ranges  []vfd.FrequencyRange
	err     error
}

type commandResultMsg struct {
	request controlRequest
	rtt     time.Duration
	states  []vfd.MotorState // MotorSettings only
	err     error
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, connInfo string) controlModel {
	return controlModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		stats:         vfd.NewLinkStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

// setMotorCount resizes the edit rows, keeping existing edits
func (m *controlModel) setMotorCount(n int) {
	for len(m.edits) < n {
		m.edits = append(m.edits, newMotorEdit())
	}
	m.edits = m.edits[:n]
	if m.selected >= n {
		m.selected = max(n-1, 0)
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case controlTickMsg:
		m.stats.CalculateRates()
		return m, controlTickCmd()

	case controllerInfoMsg:
		m.handleControllerInfo(msg)

	case commandResultMsg:
		m.handleCommandResult(msg)

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.described = false
		m.addLogEntry("Reconnected - reading controller configuration", false)
	}

	return m, nil
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	// Voltage entry captures every other key
	if m.editing {
		switch msg.String() {
		case "enter", "esc", "tab", "shift+tab":
			m.editing = false
			m.edits[m.selected].voltage.Blur()
			if _, err := m.edits[m.selected].state(); err != nil {
				m.addLogEntry(fmt.Sprintf("Motor %d: %v", m.selected, err), true)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.edits[m.selected].voltage, cmd = m.edits[m.selected].voltage.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "h", " ":
		return m.sendHalt()

	case "enter":
		return m.sendMotors()
	}

	if len(m.edits) == 0 {
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		m.selected = (m.selected - 1 + len(m.edits)) % len(m.edits)

	case "down", "j":
		m.selected = (m.selected + 1) % len(m.edits)

	case "r":
		m.edits[m.selected].running = !m.edits[m.selected].running

	case "d":
		m.edits[m.selected].reversed = !m.edits[m.selected].reversed

	case "tab":
		m.editing = true
		return m, m.edits[m.selected].voltage.Focus()
	}

	return m, nil
}

func (m *controlModel) sendMotors() (tea.Model, tea.Cmd) {
	// Don't allow control commands while connection is lost
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return m, nil
	}
	if len(m.edits) == 0 {
		m.addLogEntry("Cannot send command: motor count unknown", true)
		return m, nil
	}

	states := make([]vfd.MotorState, len(m.edits))
	for i, e := range m.edits {
		s, err := e.state()
		if err != nil {
			m.addLogEntry(fmt.Sprintf("Not sent, motor %d: %v", i, err), true)
			return m, nil
		}
		states[i] = s
	}

	if !m.connMgr.submit(controlRequest{kind: vfd.KindSetMotors, states: states}) {
		m.addLogEntry("Not sent: request queue full", true)
		return m, nil
	}
	m.addLogEntry(fmt.Sprintf("Sent %s", vfd.SetMotorsCommand(states)), false)
	return m, nil
}

func (m *controlModel) sendHalt() (tea.Model, tea.Cmd) {
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return m, nil
	}

	// Halt commits stopped motors at zero volts
	for i := range m.edits {
		m.edits[i].running = false
		m.edits[i].reversed = false
		m.edits[i].voltage.SetValue("0")
	}

	if !m.connMgr.submit(controlRequest{kind: vfd.KindHalt}) {
		m.addLogEntry("Halt not sent: request queue full", true)
		return m, nil
	}
	m.addLogEntry("Sent Halt", false)
	return m, nil
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) handleControllerInfo(msg controllerInfoMsg) {
	if msg.err != nil {
		m.addLogEntry(fmt.Sprintf("Configuration query failed: %v", msg.err), true)
		return
	}
	m.described = true
	m.version = msg.version
	m.pins = msg.pins
	m.ranges = msg.ranges
	m.setMotorCount(msg.motors)
	m.addLogEntry(fmt.Sprintf("Controller %s with %d motors", msg.version, msg.motors), false)
}

func (m *controlModel) handleCommandResult(msg commandResultMsg) {
	if errors.Is(msg.err, vfd.ErrConnectionClosed) {
		return
	}
	m.stats.Update(msg.rtt, msg.err)

	kind := vfd.FormatCommandKind(msg.request.kind)
	if msg.err != nil {
		m.addLogEntry(fmt.Sprintf("%s failed: %v", kind, msg.err), true)
		return
	}

	switch msg.request.kind {
	case vfd.KindMotorSettings:
		m.readback = msg.states
		m.lastReadback = time.Now()
		// Configuration query failed; the readback still tells the count
		if len(m.edits) == 0 {
			m.setMotorCount(len(msg.states))
		}
	case vfd.KindSetMotors, vfd.KindHalt:
		m.addLogEntry(fmt.Sprintf("%s acknowledged (rtt=%v)", kind, msg.rtt.Round(time.Microsecond)), false)
	}
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m controlModel) View() string {
	if m.quitting {
		return "Halting motors and shutting down...\n"
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

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
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

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 1)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	// Header
	s.WriteString(titleStyle.Render("VFDCTL CONTROL"))
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	helpText := "r run | d dir | tab volts | enter send | h halt | q quit"
	s.WriteString(headerStyle.Render(fmt.Sprintf(" | %s | %s", connStatus, helpText)))
	s.WriteString("\n")
	if m.described {
		s.WriteString(fmt.Sprintf("%s %s  %s %s\n",
			statsLabelStyle.Render("Firmware:"), statsValueStyle.Render(m.version),
			statsLabelStyle.Render("Motors:"), statsValueStyle.Render(fmt.Sprintf("%d", len(m.edits)))))
	} else {
		s.WriteString(warningStyle.Render("Reading controller configuration..."))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	// Motor panels side by side: local edits and committed readback
	leftWidth := (m.width - 6) * 3 / 5
	rightWidth := m.width - 6 - leftWidth
	editBox := boxStyle
	if m.editing {
		editBox = focusedBoxStyle
	}
	editPanel := editBox.Width(leftWidth).Render(
		m.renderEditPanel(statsLabelStyle, headerStyle, warningStyle, buttonStyle, focusedButtonStyle))
	readbackPanel := boxStyle.Width(rightWidth).Render(
		m.renderReadbackPanel(statsLabelStyle, statsValueStyle, headerStyle, warningStyle))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, editPanel, " ", readbackPanel))
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

func (m controlModel) renderEditPanel(statsLabelStyle, headerStyle, warningStyle, buttonStyle, focusedButtonStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("MOTORS (local edits)"))
	s.WriteString("\n")

	if len(m.edits) == 0 {
		s.WriteString(headerStyle.Render("  (motor count unknown)"))
		return s.String()
	}

	for i, e := range m.edits {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}

		run, dir := "STOP", "FWD"
		if e.running {
			run = "RUN "
		}
		if e.reversed {
			dir = "REV"
		}
		runStyle, dirStyle := buttonStyle, buttonStyle
		if i == m.selected {
			runStyle, dirStyle = focusedButtonStyle, focusedButtonStyle
		}

		s.WriteString(fmt.Sprintf("%sMotor %d  %s %s  %s V",
			cursor, i, runStyle.Render(run), dirStyle.Render(dir), e.voltage.View()))

		if i < len(m.readback) {
			if want, err := e.state(); err == nil && !sameState(want, m.readback[i]) {
				s.WriteString(warningStyle.Render("  *"))
			}
		}
		s.WriteString("\n")

		var details []string
		if i < len(m.pins) {
			details = append(details, fmt.Sprintf("run=%s dir=%s", m.pins[i].Run, m.pins[i].Dir))
		}
		if i < len(m.ranges) {
			details = append(details, fmt.Sprintf("%.1f-%.1f Hz", m.ranges[i].MinHz, m.ranges[i].MaxHz))
		}
		if len(details) > 0 {
			s.WriteString(headerStyle.Render("           " + strings.Join(details, "  ")))
			s.WriteString("\n")
		}
	}

	s.WriteString(headerStyle.Render("* differs from the committed state"))
	return s.String()
}

func (m controlModel) renderReadbackPanel(statsLabelStyle, statsValueStyle, headerStyle, warningStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("COMMITTED (readback)"))
	s.WriteString("\n")

	if m.readback == nil {
		s.WriteString(headerStyle.Render("  (no readback yet)"))
		return s.String()
	}

	for i, st := range m.readback {
		s.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render(fmt.Sprintf("Motor %d:", i)),
			statsValueStyle.Render(vfd.FormatMotorState(st))))
	}

	age := time.Since(m.lastReadback)
	ageText := fmt.Sprintf("updated %v ago", age.Round(100*time.Millisecond))
	if age > 3*m.connMgr.readback {
		s.WriteString(warningStyle.Render(ageText))
	} else {
		s.WriteString(headerStyle.Render(ageText))
	}
	return s.String()
}

func (m controlModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	var validPercent, errorPercent float64
	failures := m.stats.InvalidReplies + m.stats.MalformedReplies + m.stats.Timeouts
	if m.stats.Requests > 0 {
		validPercent = float64(m.stats.ValidResponses) * 100.0 / float64(m.stats.Requests)
		errorPercent = float64(failures) * 100.0 / float64(m.stats.Requests)
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Requests:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Requests)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), func() string {
			if errorPercent > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
			}
			return statsValueStyle.Render("0.0%")
		}(),
		statsLabelStyle.Render("RTT:"), statsValueStyle.Render(m.stats.AverageRTT().Round(time.Microsecond).String()),
		statsLabelStyle.Render("Attached:"), statsValueStyle.Render(formatUptime(time.Since(m.stats.StartTime))),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	// Calculate available height for log
	logHeight := 8
	if len(m.errorLog) < logHeight {
		logHeight = len(m.errorLog)
	}

	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

// sameState compares an edit with a readback at the precision the wire carries
func sameState(a, b vfd.MotorState) bool {
	if a.Running != b.Running || a.Reversed != b.Reversed {
		return false
	}
	return vfd.FormatVoltage(a.Voltage) == vfd.FormatVoltage(b.Voltage)
}
