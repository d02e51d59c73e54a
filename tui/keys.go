package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Tap       key.Binding
	Up        key.Binding
	Down      key.Binding
	FineUp    key.Binding
	FineDown  key.Binding
	Resync    key.Binding
	Rounding  key.Binding
	PlayPause key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Tap:       key.NewBinding(key.WithKeys(" ", "t"), key.WithHelp("space", "tap")),
		Up:        key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "+1")),
		Down:      key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "-1")),
		FineUp:    key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "+0.1")),
		FineDown:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "-0.1")),
		Resync:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resync")),
		Rounding:  key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "whole bpm")),
		PlayPause: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/play")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tap, k.Up, k.Down, k.FineUp, k.FineDown, k.Resync, k.Rounding, k.PlayPause, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tap, k.Resync},
		{k.Up, k.Down, k.FineUp, k.FineDown},
		{k.Rounding, k.PlayPause, k.Quit},
	}
}
