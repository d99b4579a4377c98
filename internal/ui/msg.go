// internal/ui/msg.go
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rovshanmuradov/fito-presale/internal/viewmodel"
)

// ViewMsg carries a new storefront view.
type ViewMsg struct {
	View viewmodel.View
}

// ViewsClosedMsg is sent when the view stream ends.
type ViewsClosedMsg struct{}

// ActionResultMsg reports the outcome of a key-triggered action.
type ActionResultMsg struct {
	Action string
	Notice string
	Err    error
}

// ListenViews returns a tea.Cmd that waits for the next view on ch.
func ListenViews(ch <-chan viewmodel.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return ViewsClosedMsg{}
		}
		return ViewMsg{View: v}
	}
}
