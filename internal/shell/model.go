// Package shell is the terminal viewer for a running daemon. It only
// consumes the daemon's event stream and sends requests back over the
// control socket; the daemon never calls into it.
package shell

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go.klb.dev/clipbridge/internal/hub"
)

const requestTimeout = 5 * time.Second

// Backend is the daemon side of the viewer. control.Client implements it.
type Backend interface {
	Select(ctx context.Context, text string) error
	Delete(ctx context.Context, text string) (bool, error)
	Clear(ctx context.Context) error
	Restart(ctx context.Context) (bool, error)
	Quit(ctx context.Context) (bool, error)
}

type eventMsg struct{ event hub.Event }

type streamClosedMsg struct{}

type resultMsg struct {
	status string
	err    error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	addrStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Model is the bubbletea model for the viewer.
type Model struct {
	backend Backend
	events  <-chan hub.Event
	keys    KeyMap
	help    help.Model

	entries    []string
	cursor     int
	address    string
	restarting bool
	stopping   bool
	connected  bool

	status    string
	statusErr bool
	width     int
}

// New returns a viewer draining events and acting through backend.
func New(backend Backend, events <-chan hub.Event) Model {
	return Model{
		backend:   backend,
		events:    events,
		keys:      DefaultKeyMap,
		help:      help.New(),
		connected: true,
		width:     80,
	}
}

// Run starts the viewer and blocks until the user quits or ctx is done.
func Run(ctx context.Context, backend Backend, events <-chan hub.Event) error {
	_, err := tea.NewProgram(New(backend, events), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// listenForEvent returns a tea.Cmd that blocks until an event arrives on
// the stream, then delivers it as an eventMsg.
func listenForEvent(ch <-chan hub.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

func (m Model) Init() tea.Cmd {
	return listenForEvent(m.events)
}

// Entries returns the list currently shown.
func (m Model) Entries() []string { return m.entries }

// Cursor returns the selected row.
func (m Model) Cursor() int { return m.cursor }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case eventMsg:
		m.apply(msg.event)
		return m, listenForEvent(m.events)

	case streamClosedMsg:
		m.connected = false
		if m.restarting {
			m.setStatus("daemon restarting, reopen the viewer once it is back", false)
		} else {
			m.setStatus("disconnected from daemon", true)
		}
		return m, nil

	case resultMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
		} else {
			m.setStatus(msg.status, false)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
		return m, nil
	}

	if !m.connected {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Select):
		text, ok := m.current()
		if !ok {
			return m, nil
		}
		return m, m.request(func(ctx context.Context) (string, error) {
			return "copied to host clipboard", m.backend.Select(ctx, text)
		})
	case key.Matches(msg, m.keys.Delete):
		text, ok := m.current()
		if !ok {
			return m, nil
		}
		return m, m.request(func(ctx context.Context) (string, error) {
			found, err := m.backend.Delete(ctx, text)
			if !found {
				return "entry already gone", err
			}
			return "entry deleted", err
		})
	case key.Matches(msg, m.keys.Clear):
		return m, m.request(func(ctx context.Context) (string, error) {
			return "history cleared", m.backend.Clear(ctx)
		})
	case key.Matches(msg, m.keys.Restart):
		return m, m.request(func(ctx context.Context) (string, error) {
			ok, err := m.backend.Restart(ctx)
			if !ok {
				return "restart already in progress", err
			}
			return "restart requested", err
		})
	case key.Matches(msg, m.keys.Stop):
		return m, m.request(func(ctx context.Context) (string, error) {
			ok, err := m.backend.Quit(ctx)
			if !ok {
				return "daemon already stopping", err
			}
			return "stop requested", err
		})
	}
	return m, nil
}

func (m Model) request(fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		status, err := fn(ctx)
		return resultMsg{status: status, err: err}
	}
}

func (m *Model) apply(ev hub.Event) {
	switch ev.Kind {
	case hub.KindAddress:
		m.address = ev.Address
	case hub.KindHistory:
		m.entries = ev.Entries
		if m.cursor >= len(m.entries) {
			m.cursor = max(len(m.entries)-1, 0)
		}
	case hub.KindRestarting:
		m.restarting = true
		m.setStatus("daemon restarting: "+ev.Reason, false)
	case hub.KindStopping:
		m.stopping = true
		m.setStatus("daemon stopping", false)
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m Model) current() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.entries) {
		return "", false
	}
	return m.entries[m.cursor], true
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("clipbridge"))
	b.WriteString("  ")
	switch {
	case m.address != "":
		b.WriteString(addrStyle.Render(m.address))
	default:
		b.WriteString(dimStyle.Render("no routable address yet"))
	}
	if m.restarting {
		b.WriteString("  " + warnStyle.Render("restarting"))
	} else if m.stopping {
		b.WriteString("  " + warnStyle.Render("stopping"))
	}
	b.WriteString("\n\n")

	if len(m.entries) == 0 {
		b.WriteString(dimStyle.Render("  history is empty"))
		b.WriteString("\n")
	}
	width := max(m.width-4, 10)
	for i, e := range m.entries {
		line := fmt.Sprintf("%2d  %s", i+1, flatten(e, width-4))
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.status != "" {
		if m.statusErr {
			b.WriteString(errStyle.Render(m.status))
		} else {
			b.WriteString(dimStyle.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// flatten renders text on one line, cut to at most width runes.
func flatten(text string, width int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= width {
		return text
	}
	if width <= 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
