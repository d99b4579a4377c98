// internal/ui/render.go
package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rovshanmuradov/fito-presale/internal/viewmodel"
)

const (
	minBarWidth = 20
	maxBarWidth = 60
)

func (m *AppModel) View() string {
	if !m.ready {
		return "Loading presale..."
	}

	sections := []string{
		m.styles.Title.Render("FITO PRESALE"),
		m.renderStatus(),
		m.renderProgress(),
		m.renderWallet(),
		m.renderPurchase(),
	}
	if s := m.renderTicket(); s != "" {
		sections = append(sections, s)
	}
	if s := m.renderReferral(); s != "" {
		sections = append(sections, s)
	}
	if s := m.renderAdmin(); s != "" {
		sections = append(sections, s)
	}
	if m.notice != "" {
		st := m.styles.Value
		if m.noticeErr {
			st = m.styles.Error
		}
		sections = append(sections, st.Render(m.notice))
	}
	if s := m.renderLogs(); s != "" {
		sections = append(sections, s)
	}
	sections = append(sections, m.renderHelp())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *AppModel) renderStatus() string {
	v := m.view
	s := m.styles

	line := s.Headline.Render(v.Headline)
	if c := v.Countdown; c != nil {
		line += " " + s.Value.Render(fmt.Sprintf("%dd %02dh %02dm %02ds", c.Days, c.Hours, c.Minutes, c.Seconds))
	}
	if v.Stale {
		line += " " + s.Warning.Render("(stale)")
	}

	lines := []string{line}
	if v.Error != "" {
		lines = append(lines, s.Error.Render(v.Error))
	}
	return strings.Join(lines, "\n")
}

func (m *AppModel) barWidth() int {
	w := m.width - 4
	if w < minBarWidth {
		w = minBarWidth
	}
	if w > maxBarWidth {
		w = maxBarWidth
	}
	return w
}

func (m *AppModel) renderBar(p viewmodel.Progress) string {
	width := m.barWidth()
	s := m.styles

	cells := func(pct float64) int {
		return int(math.Round(pct / 100 * float64(width)))
	}

	if len(p.Tiers) == 0 {
		filled := cells(p.Percent)
		return s.BarFilled.Render(strings.Repeat("█", filled)) +
			s.BarEmpty.Render(strings.Repeat("░", width-filled))
	}

	var b strings.Builder
	for i, t := range p.Tiers {
		seg := cells(t.Width)
		filled := cells(t.Fill)
		if filled > seg {
			filled = seg
		}
		b.WriteString(s.BarFilled.Render(strings.Repeat("█", filled)))
		b.WriteString(s.BarEmpty.Render(strings.Repeat("░", seg-filled)))
		if i < len(p.Tiers)-1 {
			b.WriteString(s.Muted.Render("│"))
		}
	}
	return b.String()
}

func (m *AppModel) renderProgress() string {
	p := m.view.Progress
	s := m.styles

	lines := []string{
		m.renderBar(p),
		fmt.Sprintf("%s %s / %s ETH (%s%%)  %s %d",
			s.Label.Render("Raised"), s.Value.Render(p.Raised), p.Goal, p.PercentLabel,
			s.Label.Render("Participants"), p.Participants),
	}
	if len(p.Tiers) > 0 {
		names := make([]string, 0, len(p.Tiers))
		for _, t := range p.Tiers {
			names = append(names, fmt.Sprintf("%s %s%%", t.Name, t.Percent))
		}
		lines = append(lines, s.Muted.Render(strings.Join(names, "  ")))
	}
	return s.Panel.Render(strings.Join(lines, "\n"))
}

func (m *AppModel) renderWallet() string {
	v := m.view
	s := m.styles

	var lines []string
	if v.Connected {
		lines = append(lines, fmt.Sprintf("%s %s  %s %d",
			s.Label.Render("Account"), s.Value.Render(v.Account),
			s.Label.Render("Chain"), v.ChainID))
	} else {
		lines = append(lines, s.Muted.Render("Wallet not connected."))
	}
	if v.NetworkNotice != "" {
		lines = append(lines, s.Warning.Render(v.NetworkNotice))
	}
	if v.ConnectionError != "" && v.ConnectionError != v.NetworkNotice {
		lines = append(lines, s.Error.Render(v.ConnectionError))
	}
	return strings.Join(lines, "\n")
}

func (m *AppModel) button(b viewmodel.Button) string {
	if b.Enabled {
		return m.styles.Button.Render(b.Label)
	}
	return m.styles.ButtonDisabled.Render(b.Label)
}

func (m *AppModel) renderPurchase() string {
	v := m.view
	s := m.styles

	lines := []string{}
	if v.PriceLabel != "" {
		lines = append(lines, s.Muted.Render(v.PriceLabel))
	}

	switch m.mode {
	case modeBuy:
		lines = append(lines, fmt.Sprintf("%s %s  ≈ %s", s.Label.Render("Amount (ETH)"), m.input.View(), v.EstimatedTokens))
	case modeCard:
		lines = append(lines, fmt.Sprintf("%s %s", s.Label.Render("Card amount (ETH)"), m.input.View()))
	default:
		if v.Amount != "" {
			lines = append(lines, fmt.Sprintf("%s %s  ≈ %s", s.Label.Render("Amount"), v.Amount, v.EstimatedTokens))
		}
	}

	buttons := m.button(v.Primary)
	if v.Card.Label != "" {
		buttons = lipgloss.JoinHorizontal(lipgloss.Top, buttons, " ", m.button(v.Card.Button))
	}
	lines = append(lines, buttons)
	if v.Card.Hint != "" {
		lines = append(lines, s.Muted.Render(v.Card.Hint))
	}
	if v.Card.Error != "" {
		lines = append(lines, s.Error.Render(v.Card.Error))
	}
	return strings.Join(lines, "\n")
}

func (m *AppModel) renderTicket() string {
	t := m.view.Ticket
	s := m.styles
	if t.Status == "" || t.Status == "IDLE" {
		return ""
	}

	lines := []string{fmt.Sprintf("%s %s %s", s.Label.Render("Transaction"), t.Action, s.Value.Render(t.Status))}
	if t.Hash != "" {
		lines = append(lines, s.Muted.Render(t.Hash))
	}
	if t.ExplorerURL != "" {
		lines = append(lines, s.Link.Render(t.ExplorerURL))
	}
	switch {
	case t.Success:
		lines = append(lines, s.Success.Render(t.Message))
	case t.Message != "":
		lines = append(lines, s.Error.Render(t.Message))
	}
	return strings.Join(lines, "\n")
}

func (m *AppModel) renderReferral() string {
	r := m.view.Referral
	s := m.styles

	var lines []string
	if r.Link != "" {
		lines = append(lines, fmt.Sprintf("%s %s", s.Label.Render("Your referral link"), s.Link.Render(r.Link)))
	}
	if r.Notice != "" {
		lines = append(lines, s.Success.Render(r.Notice))
	}
	return strings.Join(lines, "\n")
}

func (m *AppModel) renderAdmin() string {
	a := m.view.Admin
	if !a.Visible {
		return ""
	}
	content := fmt.Sprintf("[p] %s   [f] %s", a.PauseLabel, a.ForceLabel)
	return m.styles.AdminPanel.Render(content)
}

func (m *AppModel) renderLogs() string {
	if m.logs == nil {
		return ""
	}
	entries := m.logs.GetRecentLogs(logLines)
	if len(entries) == 0 {
		return ""
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s %-5s %s", e.Timestamp.Format("15:04:05"), e.Level, e.Message))
	}
	return m.styles.Muted.Render(strings.Join(lines, "\n"))
}

func (m *AppModel) renderHelp() string {
	if m.mode != modeNone {
		return m.help.ShortHelpView(m.keys.InputHelp())
	}
	return m.help.View(m.keys)
}
