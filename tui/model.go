// Package tui is a terminal tap console for the tempo.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/robmorgan/tapsync/effect"
	"github.com/robmorgan/tapsync/rhythm"
)

const refreshInterval = 25 * time.Millisecond

// Console is what the tap console drives.
type Console interface {
	Tap() bool
	Nudge(delta float64) error
	Resync()
	SetRunning(running bool)
	ToggleRoundWholeBPM()
	Snapshot() rhythm.Snapshot
	RoundWholeBPM() bool
}

// Model is the bubbletea model of the tap console.
type Model struct {
	console    Console
	keys       keyMap
	help       help.Model
	flash      *effect.Flash
	snapshot   rhythm.Snapshot
	roundWhole bool
	status     string
	quitting   bool
}

// New creates the console model.
func New(console Console) Model {
	flash := effect.NewFlash()
	flash.BeatLevel = 0.5
	flash.Decay = 0.8

	return Model{
		console:    console,
		keys:       defaultKeyMap(),
		help:       help.New(),
		flash:      flash,
		snapshot:   console.Snapshot(),
		roundWhole: console.RoundWholeBPM(),
	}
}

// Run shows the console until the user quits or ctx is done.
func Run(ctx context.Context, console Console) error {
	p := tea.NewProgram(New(console), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	case tickMsg:
		m.refresh(time.Time(msg))
		return m, tickCmd()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Tap):
		if m.console.Tap() {
			m.status = ""
		} else {
			m.status = "keep tapping..."
		}
	case key.Matches(msg, m.keys.Up):
		m.nudge(1)
	case key.Matches(msg, m.keys.Down):
		m.nudge(-1)
	case key.Matches(msg, m.keys.FineUp):
		m.nudge(rhythm.FineBPMStep)
	case key.Matches(msg, m.keys.FineDown):
		m.nudge(-rhythm.FineBPMStep)
	case key.Matches(msg, m.keys.Resync):
		m.console.Resync()
		m.status = "resynced"
	case key.Matches(msg, m.keys.Rounding):
		m.console.ToggleRoundWholeBPM()
	case key.Matches(msg, m.keys.PlayPause):
		m.console.SetRunning(!m.console.Snapshot().Running)
	}

	m.snapshot = m.console.Snapshot()
	m.roundWhole = m.console.RoundWholeBPM()
	return m, nil
}

func (m *Model) nudge(delta float64) {
	if err := m.console.Nudge(delta); err != nil {
		m.status = err.Error()
		return
	}
	m.status = ""
}

// refresh picks up the latest state and starts a flash when a new beat has begun.
func (m *Model) refresh(now time.Time) {
	next := m.console.Snapshot()
	if next.Running && (next.Beat != m.snapshot.Beat || next.Bar != m.snapshot.Bar) {
		m.flash.Trigger(now, next.BeatInterval(), next.IsDownBeat())
	}
	m.snapshot = next
	m.roundWhole = m.console.RoundWholeBPM()
}
