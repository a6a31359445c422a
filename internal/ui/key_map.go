package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	start    key.Binding
	carAudio key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		start:    key.NewBinding(key.WithKeys("enter", "y"), key.WithHelp("enter", "start")),
		carAudio: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "prepare for car audio")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.start, k.carAudio, k.quit}}
}
