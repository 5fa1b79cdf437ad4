package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/glasschat/glasschat-client/internal/style"
)

// showElapsedAfter is when the loading box starts counting seconds.
const showElapsedAfter = 2 * time.Second

// LoadingCancelledMsg is sent when the user cancels the loading screen
type LoadingCancelledMsg struct{}

// LoadingScreen blocks input while a request runs. Esc cancels the request.
type LoadingScreen struct {
	spinner       spinner.Model
	message       string
	started       time.Time
	cancel        context.CancelFunc
	width, height int
	model         *Model
}

// NewLoadingScreen shows message until the caller pops the screen. cancel
// aborts the request behind it and may be nil.
func NewLoadingScreen(message string, cancel context.CancelFunc, m *Model) (*LoadingScreen, tea.Cmd) {
	screen := &LoadingScreen{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(style.ColorOwn)),
		),
		message: message,
		started: time.Now(),
		cancel:  cancel,
		width:   m.width,
		height:  m.height,
		model:   m,
	}
	return screen, screen.spinner.Tick
}

// Init implements tea.Model
func (s *LoadingScreen) Init() tea.Cmd {
	return s.spinner.Tick
}

// Update implements ScreenModel
func (s *LoadingScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case tea.KeyMsg:
		if msg.String() == "esc" {
			if s.cancel != nil {
				s.cancel()
			}
			return s, func() tea.Msg { return LoadingCancelledMsg{} }
		}
		return s, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd
	}

	return s, nil
}

// View implements tea.Model
func (s *LoadingScreen) View() string {
	line := s.spinner.View() + " " + s.message
	if elapsed := time.Since(s.started); elapsed >= showElapsedAfter {
		line += fmt.Sprintf(" (%ds)", int(elapsed.Seconds()))
	}

	content := lipgloss.NewStyle().
		Padding(1).
		Width(50).
		Align(lipgloss.Center).
		Render(line)

	hint := ""
	if s.cancel != nil {
		hint = style.StatusStyle.Render("esc to cancel")
	}

	return style.Backdrop(s.width, s.height,
		style.DialogBoxStyle.Render(lipgloss.JoinVertical(
			lipgloss.Center,
			style.Gradient("glasschat", style.ColorFuscia, style.ColorCyan),
			content,
			hint,
		)),
	)
}

// SetSize updates dimensions
func (s *LoadingScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
}
