// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/vfdctl/pkg/vfd"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// Latest good readback
type readbackData struct {
	timestamp time.Time
	rtt       time.Duration
	states    []vfd.MotorState
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *vfd.LinkStatistics
	errorLog      []errorLogEntry
	maxLogEntries int
	connected     bool
	width         int
	height        int
	quitting      bool
	lastReadback  *readbackData
}

// Messages
type tickMsg time.Time
type pollMsg pollResult

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	seconds := uint64(d / time.Second)
	if seconds == 0 {
		return "0 seconds"
	}

	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	for _, p := range []struct {
		n    uint64
		unit string
	}{
		{days, "day"},
		{hours, "hour"},
		{minutes, "minute"},
		{seconds, "second"},
	} {
		switch {
		case p.n == 1:
			parts = append(parts, "1 "+p.unit)
		case p.n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", p.n, p.unit))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         vfd.NewLinkStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		connected:     true,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		// Update statistics rates
		m.stats.CalculateRates()
		return m, tickCmd()

	case pollMsg:
		m.handlePoll(pollResult(msg))
	}

	return m, nil
}

func (m *model) handlePoll(r pollResult) {
	if errors.Is(r.err, vfd.ErrConnectionClosed) {
		if m.connected {
			m.connected = false
			m.addLogEntry(fmt.Sprintf("Connection closed: %v", r.err), true)
		}
		return
	}

	m.stats.Update(r.rtt, r.err)
	switch {
	case errors.Is(r.err, vfd.ErrTimeout):
		m.addLogEntry("TIMEOUT: no answer to MotorSettings?", true)
	case errors.Is(r.err, vfd.ErrRejected):
		m.addLogEntry("REJECTED: controller answered Invalid", true)
	case r.err != nil:
		m.addLogEntry(fmt.Sprintf("MALFORMED: %v", r.err), true)
	default:
		m.lastReadback = &readbackData{timestamp: r.at, rtt: r.rtt, states: r.states}
		if m.showAll {
			m.addLogEntry(fmt.Sprintf("MOTOR_SETTINGS (valid, rtt=%v)", r.rtt.Round(time.Microsecond)), false)
		}
	}
}

func (m *model) addLogEntry(message string, isError bool) {
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

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

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

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("VFDCTL - LINK STATISTICS"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' reset, 'q' quit",
		m.connInfo, func() string {
			if m.showAll {
				return "All readbacks"
			}
			return "Errors only"
		}())))
	s.WriteString("\n\n")

	// Connection status
	if !m.connected {
		s.WriteString(errorStyle.Render("✗ Connection closed"))
	} else if m.stats.ValidResponses == 0 {
		s.WriteString(warningStyle.Render("⏳ Waiting for the first readback..."))
	} else {
		s.WriteString(statsValueStyle.Render("✓ Controller answering"))
		s.WriteString(headerStyle.Render(fmt.Sprintf(" (attached %s)", formatUptime(time.Since(m.stats.StartTime)))))
	}
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	errorsTotal := m.stats.InvalidReplies + m.stats.MalformedReplies + m.stats.Timeouts
	if m.stats.Requests > 0 {
		validPercent = float64(m.stats.ValidResponses) * 100.0 / float64(m.stats.Requests)
		errorPercent = float64(errorsTotal) * 100.0 / float64(m.stats.Requests)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Requests:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Requests)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidResponses, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", errorsTotal, errorPercent)),
	))

	if errorsTotal > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Invalid:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.InvalidReplies)),
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.MalformedReplies)),
			statsLabelStyle.Render("Timeouts:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.Timeouts)),
		))
	}

	if m.stats.Responses > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("RTT min/avg/max:"),
			statsValueStyle.Render(fmt.Sprintf("%v / %v / %v",
				m.stats.MinRTT.Round(time.Microsecond),
				m.stats.AverageRTT().Round(time.Microsecond),
				m.stats.MaxRTT.Round(time.Microsecond))),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Response Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f resp/s", m.stats.ResponseRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Readback section (only shown once one arrived)
	if m.lastReadback != nil {
		s.WriteString(statsLabelStyle.Render("Latest Readback:"))
		s.WriteString("\n")

		readbackContent := strings.Builder{}
		readbackContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("At:"), statsValueStyle.Render(m.lastReadback.timestamp.Format("15:04:05.000")),
			statsLabelStyle.Render("RTT:"), statsValueStyle.Render(m.lastReadback.rtt.Round(time.Microsecond).String()),
		))
		for i, st := range m.lastReadback.states {
			readbackContent.WriteString(fmt.Sprintf("%s %s\n",
				statsLabelStyle.Render(fmt.Sprintf("Motor %d:", i)),
				statsValueStyle.Render(vfd.FormatMotorState(st)),
			))
		}

		s.WriteString(boxStyle.Render(readbackContent.String()))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 15 // Reserve space for header and stats
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
