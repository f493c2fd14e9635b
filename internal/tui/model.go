// Package tui renders fetch progress: one line per track the run has
// touched, a pool-pause banner during backoff, and a closing summary. It is
// a passive view over the coordinator's event stream.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tunesync/tunesync/internal/batch"
	"github.com/tunesync/tunesync/internal/messages"
)

const maxVisibleRows = 15

type row struct {
	key      string
	name     string
	status   batch.Status
	class    batch.FailureClass
	attempts int
	active   bool
}

// Model is the fetch progress view.
type Model struct {
	spinner   spinner.Model
	rows      []row
	index     map[string]int
	total     int
	completed int
	failed    int

	backoffLeft  time.Duration
	backoffTrack string

	done    bool
	aborted bool
	elapsed time.Duration
}

// New builds the progress model for a run over total tracks.
func New(total int) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = ItemStyle.Foreground(ColorPrimary)
	return Model{
		spinner: s,
		index:   make(map[string]int),
		total:   total,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case messages.TrackStartedMsg:
		i := m.rowFor(msg.Key, msg.Name)
		m.rows[i].status = batch.StatusDownloading
		m.rows[i].active = true

	case messages.TrackFinishedMsg:
		i := m.rowFor(msg.Key, msg.Name)
		m.rows[i].status = msg.Status
		m.rows[i].class = msg.Class
		m.rows[i].attempts = msg.Attempts
		m.rows[i].active = false
		switch msg.Status {
		case batch.StatusCompleted:
			m.completed++
		case batch.StatusFailed:
			m.failed++
		}

	case messages.BackoffMsg:
		m.backoffLeft = msg.Delay
		m.backoffTrack = msg.Name

	case messages.TickMsg:
		if m.backoffLeft > 0 {
			m.backoffLeft -= time.Second
			if m.backoffLeft < 0 {
				m.backoffLeft = 0
			}
		}

	case messages.RunFinishedMsg:
		m.done = true
		m.aborted = msg.Aborted
		m.elapsed = msg.Elapsed
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) rowFor(key, name string) int {
	if i, ok := m.index[key]; ok {
		return i
	}
	m.rows = append(m.rows, row{key: key, name: name, status: batch.StatusPending})
	m.index[key] = len(m.rows) - 1
	return len(m.rows) - 1
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("tunesync fetch"))
	b.WriteString("\n\n")

	start := 0
	if len(m.rows) > maxVisibleRows {
		start = len(m.rows) - maxVisibleRows
	}
	for _, r := range m.rows[start:] {
		b.WriteString(m.renderRow(r))
		b.WriteString("\n")
	}

	if m.backoffLeft > 0 {
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render(fmt.Sprintf(
			"bot detection on %s, pool paused %s", m.backoffTrack, m.backoffLeft.Round(time.Second))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	status := fmt.Sprintf("%d/%d completed  %d failed", m.completed, m.total, m.failed)
	if m.done {
		if m.aborted {
			status = "aborted: " + status
		} else {
			status = fmt.Sprintf("done in %s: %s", m.elapsed.Round(time.Second), status)
		}
	}
	b.WriteString(StatusBarStyle.Render(status))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderRow(r row) string {
	var glyph, name string
	switch {
	case r.active:
		glyph = m.spinner.View()
		name = ItemStyle.Render(r.name)
	case r.status == batch.StatusCompleted:
		glyph = SuccessStyle.Render("✓")
		name = ItemStyle.Render(r.name)
	case r.status == batch.StatusFailed:
		glyph = ErrorStyle.Render("✗")
		name = ErrorStyle.Render(fmt.Sprintf("%s (%s, %d attempts)", r.name, r.class, r.attempts))
	default:
		glyph = SubtextStyle.Render("·")
		name = SubtextStyle.Render(r.name)
	}
	return fmt.Sprintf(" %s %s", glyph, name)
}

// Run drives the progress view until the event stream reports completion.
// Every event received on events is forwarded into the program.
func Run(ctx context.Context, events <-chan tea.Msg, total int) error {
	p := tea.NewProgram(New(total))

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				p.Quit()
				return
			case <-ticker.C:
				p.Send(messages.TickMsg{})
			case msg, ok := <-events:
				if !ok {
					p.Quit()
					return
				}
				p.Send(msg)
			}
		}
	}()

	_, err := p.Run()
	return err
}
