// internal/ui/style/palette.go
package style

import "github.com/charmbracelet/lipgloss"

var (
	Cyan    = lipgloss.Color("#00E5FF")
	Magenta = lipgloss.Color("#FF1B6B")
	Yellow  = lipgloss.Color("#FFB500")
	Green   = lipgloss.Color("#2AFFAA")
	Red     = lipgloss.Color("#FF5555")
	Blue    = lipgloss.Color("#3B82F6")
	Purple  = lipgloss.Color("#8B5CF6")

	Base03 = lipgloss.Color("#1B1D23") // Background
	Base02 = lipgloss.Color("#262831") // Darker background
	Base01 = lipgloss.Color("#6C7280") // Muted text
	Base2  = lipgloss.Color("#ECEFF4") // Primary text
	Base1  = lipgloss.Color("#B4BCC8") // Secondary text
)

// Palette provides a centralized color management
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Info      lipgloss.Color

	Background    lipgloss.Color
	BackgroundAlt lipgloss.Color
	Text          lipgloss.Color
	TextMuted     lipgloss.Color

	// Progress bar: raised part and remaining goal
	Filled lipgloss.Color
	Empty  lipgloss.Color
}

func DefaultPalette() Palette {
	return Palette{
		Primary:   Cyan,
		Secondary: Magenta,
		Success:   Green,
		Error:     Red,
		Warning:   Yellow,
		Info:      Blue,

		Background:    Base03,
		BackgroundAlt: Base02,
		Text:          Base2,
		TextMuted:     Base01,

		Filled: Purple,
		Empty:  Base02,
	}
}

// Styles are the lipgloss styles of the storefront screen.
type Styles struct {
	Title    lipgloss.Style
	Headline lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Success  lipgloss.Style
	Link     lipgloss.Style

	Button         lipgloss.Style
	ButtonDisabled lipgloss.Style
	Panel          lipgloss.Style
	AdminPanel     lipgloss.Style

	BarFilled lipgloss.Style
	BarEmpty  lipgloss.Style
}

func DefaultStyles() Styles {
	p := DefaultPalette()
	return Styles{
		Title:    lipgloss.NewStyle().Foreground(p.Primary).Bold(true),
		Headline: lipgloss.NewStyle().Foreground(p.Secondary).Bold(true),
		Label:    lipgloss.NewStyle().Foreground(p.TextMuted),
		Value:    lipgloss.NewStyle().Foreground(p.Text).Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(p.TextMuted),
		Error:    lipgloss.NewStyle().Foreground(p.Error).Bold(true),
		Warning:  lipgloss.NewStyle().Foreground(p.Warning),
		Success:  lipgloss.NewStyle().Foreground(p.Success).Bold(true),
		Link:     lipgloss.NewStyle().Foreground(p.Info).Underline(true),

		Button: lipgloss.NewStyle().
			Foreground(p.Background).
			Background(p.Secondary).
			Bold(true).
			Padding(0, 2),
		ButtonDisabled: lipgloss.NewStyle().
			Foreground(p.TextMuted).
			Background(p.BackgroundAlt).
			Padding(0, 2),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Primary).
			Padding(0, 1),
		AdminPanel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Warning).
			Padding(0, 1),

		BarFilled: lipgloss.NewStyle().Foreground(p.Filled),
		BarEmpty:  lipgloss.NewStyle().Foreground(p.Empty),
	}
}
