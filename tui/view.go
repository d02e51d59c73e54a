package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/robmorgan/tapsync/rhythm"
)

var (
	idleColor, _   = colorful.Hex("#3A3A3A")
	accentColor, _ = colorful.Hex("#FF5F87")
	beatColor, _   = colorful.Hex("#5FD7FF")

	bpmStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	appStyle    = lipgloss.NewStyle().Margin(1, 2, 0, 2)
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	format := "%.1f"
	if m.roundWhole {
		format = "%.0f"
	}
	fmt.Fprintf(&b, "%s %s   %s %d\n\n",
		bpmStyle.Render(fmt.Sprintf(format, m.snapshot.BPM)),
		labelStyle.Render("BPM"),
		labelStyle.Render("bar"),
		m.snapshot.Bar,
	)

	b.WriteString(m.beatDots(time.Now()))
	b.WriteString("\n\n")

	var flags []string
	if !m.snapshot.Running {
		flags = append(flags, "paused")
	}
	if m.roundWhole {
		flags = append(flags, "whole bpm")
	} else {
		flags = append(flags, "0.1 bpm")
	}
	if m.status != "" {
		flags = append(flags, m.status)
	}
	b.WriteString(statusStyle.Render(strings.Join(flags, " · ")))
	b.WriteString("\n\n")

	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")

	return appStyle.Render(b.String())
}

// beatDots renders one dot per beat of the bar. The current beat glows with the flash level.
func (m Model) beatDots(now time.Time) string {
	level := m.flash.Level(now)

	dots := make([]string, 0, rhythm.BeatsPerBar)
	for beat := 1; beat <= rhythm.BeatsPerBar; beat++ {
		color := idleColor
		if beat == m.snapshot.Beat {
			color = dotColor(beat, level)
		}
		dots = append(dots, lipgloss.NewStyle().Foreground(lipgloss.Color(color.Hex())).Render("●"))
	}
	return strings.Join(dots, " ")
}

// dotColor blends from a dim base towards the beat colour as the flash level rises.
func dotColor(beat int, level float64) colorful.Color {
	target := beatColor
	if beat == 1 {
		target = accentColor
	}
	base := idleColor.BlendLab(target, 0.35)
	return base.BlendLab(target, level).Clamped()
}
