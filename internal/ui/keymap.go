// internal/ui/keymap.go
package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines keyboard shortcuts for the storefront
type KeyMap struct {
	Quit   key.Binding
	Submit key.Binding
	Cancel key.Binding
	Help   key.Binding

	Connect     key.Binding
	Switch      key.Binding
	Buy         key.Binding
	Card        key.Binding
	Acknowledge key.Binding
	Refresh     key.Binding

	// Admin only
	Pause key.Binding
	Force key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),

		Connect: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "connect"),
		),
		Switch: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "switch network"),
		),
		Buy: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "buy"),
		),
		Card: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "card"),
		),
		Acknowledge: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "dismiss"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r", "f5"),
			key.WithHelp("r", "refresh"),
		),

		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause/resume"),
		),
		Force: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "force start/stop"),
		),
	}
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Buy, k.Refresh, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Connect, k.Switch, k.Buy, k.Card},
		{k.Acknowledge, k.Refresh, k.Pause, k.Force},
		{k.Help, k.Quit},
	}
}

// InputHelp is shown while an amount is being entered.
func (k KeyMap) InputHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Cancel}
}
