package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var monitorAddr string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch a running server's event stream",
	Long: `Attach a live terminal dashboard to a running workflowd server.

The dashboard tails the server's event stream and refreshes aggregate
statistics, showing workflow and task activity as it happens.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newMonitorModel(strings.TrimRight(monitorAddr, "/"))
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	monitorCmd.Flags().StringVar(&monitorAddr, "addr", "http://localhost:9002", "base URL of the workflowd server")
}

// maxEventLines caps the event history kept on screen.
const maxEventLines = 18

// statsRefreshInterval paces dashboard statistic fetches.
const statsRefreshInterval = 2 * time.Second

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	statsStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	eventStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	typeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	footerStyle = lipgloss.NewStyle().Faint(true)
)

// monitorStats mirrors the dashboard stats endpoint.
type monitorStats struct {
	TotalWorkflows int            `json:"total_workflows"`
	TotalTasks     int            `json:"total_tasks"`
	CompletedTasks int            `json:"completed_tasks"`
	TotalAgents    int            `json:"total_agents"`
	ActiveAgents   int            `json:"active_agents"`
	TaskDist       map[string]int `json:"task_distribution"`
}

type sseEventMsg map[string]any

type streamErrMsg struct{ err error }

type statsMsg monitorStats

type statsTickMsg struct{}

// monitorModel is the bubbletea model behind the monitor command.
type monitorModel struct {
	addr    string
	spin    spinner.Model
	events  []string
	stats   *monitorStats
	eventCh chan tea.Msg
	cancel  context.CancelFunc
	err     error
}

func newMonitorModel(addr string) *monitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	return &monitorModel{
		addr:    addr,
		spin:    sp,
		eventCh: make(chan tea.Msg, 32),
	}
}

func (m *monitorModel) Init() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.streamEvents(ctx)
	return tea.Batch(m.spin.Tick, m.waitForEvent(), m.fetchStats())
}

// streamEvents tails the server's SSE endpoint and forwards each event
// into the model's channel.
func (m *monitorModel) streamEvents(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.addr+"/api/events", nil)
	if err != nil {
		m.eventCh <- streamErrMsg{err}
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		m.eventCh <- streamErrMsg{err}
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		m.eventCh <- streamErrMsg{fmt.Errorf("server returned %s", resp.Status)}
		return
	}

	scanner := newEventScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		select {
		case m.eventCh <- sseEventMsg(ev):
		case <-ctx.Done():
			return
		}
	}
	if ctx.Err() == nil {
		m.eventCh <- streamErrMsg{fmt.Errorf("event stream closed")}
	}
}

// maxEventLineSize bounds a single streamed line. Task results ride in
// event payloads, so lines can far exceed bufio's 64KB default.
const maxEventLineSize = 1024 * 1024

// newEventScanner returns a line scanner sized for large event payloads.
func newEventScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventLineSize)
	return scanner
}

// waitForEvent hands the next streamed message to the update loop.
func (m *monitorModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.eventCh
	}
}

// fetchStats pulls the dashboard statistics once.
func (m *monitorModel) fetchStats() tea.Cmd {
	return func() tea.Msg {
		resp, err := http.Get(m.addr + "/api/dashboard/stats")
		if err != nil {
			return statsTickMsg{}
		}
		defer resp.Body.Close()

		var stats monitorStats
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			return statsTickMsg{}
		}
		return statsMsg(stats)
	}
}

func scheduleStats() tea.Cmd {
	return tea.Tick(statsRefreshInterval, func(time.Time) tea.Msg {
		return statsTickMsg{}
	})
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case sseEventMsg:
		m.events = append(m.events, formatEvent(msg))
		if len(m.events) > maxEventLines {
			m.events = m.events[len(m.events)-maxEventLines:]
		}
		return m, m.waitForEvent()
	case streamErrMsg:
		m.err = msg.err
		return m, nil
	case statsMsg:
		stats := monitorStats(msg)
		m.stats = &stats
		return m, scheduleStats()
	case statsTickMsg:
		return m, m.fetchStats()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

// formatEvent renders one streamed event as a single display line.
func formatEvent(ev map[string]any) string {
	evType, _ := ev["type"].(string)
	ts := time.Now().Format("15:04:05")

	parts := []string{}
	for _, key := range []string{"workflow_id", "task_id", "original_task_id", "old_status", "new_status"} {
		if v, ok := ev[key].(string); ok && v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", key, v))
		}
	}
	if p, ok := ev["progress"].(float64); ok {
		parts = append(parts, fmt.Sprintf("progress=%.0f%%", p))
	}

	return fmt.Sprintf("%s %s %s", statsStyle.Render(ts), typeStyle.Render(evType), eventStyle.Render(strings.Join(parts, " ")))
}

func (m *monitorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("workflowd monitor"))
	b.WriteString(statsStyle.Render("  " + m.addr))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("stream error: " + m.err.Error()))
		b.WriteString("\n\n")
	}

	if m.stats != nil {
		s := m.stats
		b.WriteString(statsStyle.Render(fmt.Sprintf(
			"workflows %d · tasks %d/%d done · agents %d (%d active)",
			s.TotalWorkflows, s.CompletedTasks, s.TotalTasks, s.TotalAgents, s.ActiveAgents,
		)))
		b.WriteString("\n\n")
	} else if m.err == nil {
		b.WriteString(m.spin.View() + " connecting...\n\n")
	}

	if len(m.events) == 0 && m.err == nil {
		b.WriteString(statsStyle.Render("waiting for events...") + "\n")
	}
	for _, line := range m.events {
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + footerStyle.Render("q to quit"))
	return b.String()
}
