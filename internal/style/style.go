package style

import (
	"github.com/charmbracelet/lipgloss"
)

const (
	ColorLightGrey = lipgloss.Color("245")
	ColorCyan      = lipgloss.Color("63")
	ColorBrightRed = lipgloss.Color("196")
	ColorFuscia    = lipgloss.Color("170")
	ColorDarkGrey  = lipgloss.Color("241")
	ColorGrey2     = lipgloss.Color("235")
)

// Colours that follow the light/dark theme toggle.
var (
	ColorOwn      = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#8D89F7"}
	ColorPeer     = lipgloss.AdaptiveColor{Light: "#1A7F5A", Dark: "#43BF6D"}
	ColorSelected = lipgloss.AdaptiveColor{Light: "#E8E4F8", Dark: "#303040"}
	Subtle        = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
)

// backdrop fills the space around subscreens and dialogs.
const backdrop = "☃︎"

// ApplyTheme picks the light or dark side of every adaptive colour.
func ApplyTheme(dark bool) {
	lipgloss.SetHasDarkBackground(dark)
}

// Layout
var (
	AppStyle = lipgloss.NewStyle().Padding(1, 2)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorFuscia)

	SubTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 0, 1).
			Foreground(ColorFuscia)

	HotkeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	// BoxStyle frames text inputs.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorCyan).
			Height(2).
			Padding(0, 1)

	SubScreenStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(ColorCyan).
			Background(ColorGrey2).
			Padding(1, 1)

	DialogBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(1, 0)

	StatusStyle = lipgloss.NewStyle().Faint(true)

	ErrorTextStyle = lipgloss.NewStyle().Foreground(ColorBrightRed)
)

// Conversation
var (
	OwnNameStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorOwn)
	PeerNameStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPeer)
	SenderStyle   = lipgloss.NewStyle().Bold(true)

	TimeStyle = lipgloss.NewStyle().Foreground(ColorDarkGrey)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDarkGrey).
			Italic(true)

	AttachmentStyle = lipgloss.NewStyle().Foreground(ColorFuscia)

	SelectedStyle = lipgloss.NewStyle().Background(ColorSelected)

	// BadgeStyle marks unread counts on friend cards.
	BadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(ColorBrightRed).
			Bold(true).
			Padding(0, 1)

	LyricStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(ColorCyan)
)

// RenderSubscreen centers a titled panel over the backdrop.
func RenderSubscreen(w, h int, title, content string) string {
	panel := SubScreenStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		HeaderStyle.Render(title),
		content,
	))
	return Backdrop(w, h, panel)
}

// Backdrop centers box in a w by h area filled with the backdrop pattern.
func Backdrop(w, h int, box string) string {
	return lipgloss.Place(w, h,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceChars(backdrop),
		lipgloss.WithWhitespaceForeground(Subtle),
	)
}
