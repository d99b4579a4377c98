// internal/ui/app.go
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rovshanmuradov/fito-presale/internal/logger"
	"github.com/rovshanmuradov/fito-presale/internal/transaction"
	"github.com/rovshanmuradov/fito-presale/internal/ui/style"
	"github.com/rovshanmuradov/fito-presale/internal/viewmodel"
	"github.com/rovshanmuradov/fito-presale/internal/wallet"
)

// Actions is the storefront surface the terminal UI drives.
type Actions interface {
	Connect(ctx context.Context) (wallet.Session, error)
	SwitchNetwork(ctx context.Context) error
	Buy(amount string) (transaction.Ticket, error)
	BuyWithCard(ctx context.Context, amount string) (string, error)
	TogglePause() (transaction.Ticket, error)
	ToggleForceActive() (transaction.Ticket, error)
	Acknowledge() bool
	RefreshNow() bool
	SetAmount(amount string)
}

type inputMode int

const (
	modeNone inputMode = iota
	modeBuy
	modeCard
)

const logLines = 4

type Options struct {
	Context context.Context
	Actions Actions
	Views   <-chan viewmodel.View
	// Logs feeds the log pane; nil hides it.
	Logs *logger.LogBuffer
}

// AppModel is the storefront screen.
type AppModel struct {
	ctx     context.Context
	actions Actions
	views   <-chan viewmodel.View
	logs    *logger.LogBuffer

	keys   KeyMap
	help   help.Model
	input  textinput.Model
	styles style.Styles

	mode      inputMode
	view      viewmodel.View
	ready     bool
	notice    string
	noticeErr bool

	width  int
	height int
}

func NewAppModel(opts Options) *AppModel {
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	in := textinput.New()
	in.Placeholder = "0.0"
	in.CharLimit = 32
	in.Width = 20

	return &AppModel{
		ctx:     opts.Context,
		actions: opts.Actions,
		views:   opts.Views,
		logs:    opts.Logs,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		input:   in,
		styles:  style.DefaultStyles(),
	}
}

func (m *AppModel) Init() tea.Cmd {
	return ListenViews(m.views)
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case ViewMsg:
		m.view = msg.View
		m.ready = true
		return m, ListenViews(m.views)

	case ViewsClosedMsg:
		return m, tea.Quit

	case ActionResultMsg:
		if msg.Err != nil {
			m.notice, m.noticeErr = msg.Err.Error(), true
		} else {
			m.notice, m.noticeErr = msg.Notice, false
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode != modeNone {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m *AppModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.view
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Connect):
		if v.Connected {
			m.setNotice("Wallet already connected.")
			return m, nil
		}
		return m, m.run("connect", func() (string, error) {
			s, err := m.actions.Connect(m.ctx)
			if err != nil {
				return "", err
			}
			if !s.Connected() {
				return "No account available.", nil
			}
			return fmt.Sprintf("Connected %s", s.Account.Hex()), nil
		})

	case key.Matches(msg, m.keys.Switch):
		return m, m.run("switch", func() (string, error) {
			return "Network switched.", m.actions.SwitchNetwork(m.ctx)
		})

	case key.Matches(msg, m.keys.Buy):
		switch {
		case v.Primary.Action == viewmodel.ActionBuy && v.Primary.Enabled:
			m.startInput(modeBuy)
		case v.Primary.Action == viewmodel.ActionConnect:
			m.setNotice("Press c to connect your wallet first.")
		case v.Primary.Action == viewmodel.ActionSwitch:
			m.setNotice("Press n to switch network first.")
		default:
			m.setNotice(v.Primary.Label)
		}

	case key.Matches(msg, m.keys.Card):
		if !v.Card.Enabled {
			if v.Card.Hint != "" {
				m.setNotice(v.Card.Hint)
			} else {
				m.setNotice("Card payments are unavailable right now.")
			}
			return m, nil
		}
		m.startInput(modeCard)

	case key.Matches(msg, m.keys.Acknowledge):
		if m.actions.Acknowledge() {
			m.setNotice("")
		}

	case key.Matches(msg, m.keys.Refresh):
		if m.actions.RefreshNow() {
			m.setNotice("Refreshing sale state...")
		} else {
			m.setNotice("Refresh already in progress.")
		}

	case key.Matches(msg, m.keys.Pause):
		return m, m.admin("pause", m.actions.TogglePause)

	case key.Matches(msg, m.keys.Force):
		return m, m.admin("force", m.actions.ToggleForceActive)
	}
	return m, nil
}

func (m *AppModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.stopInput()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		mode := m.mode
		amount := strings.TrimSpace(m.input.Value())
		m.stopInput()
		if mode == modeCard {
			return m, m.run("card", func() (string, error) {
				url, err := m.actions.BuyWithCard(m.ctx, amount)
				if err != nil {
					return "", err
				}
				return "Open to pay by card: " + url, nil
			})
		}
		return m, m.run("buy", func() (string, error) {
			t, err := m.actions.Buy(amount)
			if err != nil {
				return "", err
			}
			return "Purchase submitted: " + t.ID, nil
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == modeBuy {
		m.actions.SetAmount(m.input.Value())
	}
	return m, cmd
}

func (m *AppModel) startInput(mode inputMode) {
	m.mode = mode
	m.input.SetValue(m.view.Amount)
	m.input.CursorEnd()
	m.input.Focus()
	m.setNotice("")
}

func (m *AppModel) stopInput() {
	m.mode = modeNone
	m.input.Blur()
}

func (m *AppModel) admin(action string, fn func() (transaction.Ticket, error)) tea.Cmd {
	if !m.view.Admin.Visible {
		return nil
	}
	if !m.view.Admin.Enabled {
		m.setNotice("Admin action unavailable right now.")
		return nil
	}
	return m.run(action, func() (string, error) {
		t, err := fn()
		if err != nil {
			return "", err
		}
		return "Admin transaction submitted: " + t.ID, nil
	})
}

// run executes fn off the update loop and reports through ActionResultMsg.
func (m *AppModel) run(action string, fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		notice, err := fn()
		return ActionResultMsg{Action: action, Notice: notice, Err: err}
	}
}

func (m *AppModel) setNotice(s string) {
	m.notice, m.noticeErr = s, false
}

// Notice returns the action message line, for tests.
func (m *AppModel) Notice() string {
	return m.notice
}
