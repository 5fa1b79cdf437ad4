package internal

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/glasschat/glasschat-client/internal/style"
)

const logsRefreshInterval = time.Second

// LogsCancelledMsg signals user wants to close logs
type LogsCancelledMsg struct{}

// logsRefreshMsg is addressed to one LogsScreen so a reopened screen runs
// a single refresh loop.
type logsRefreshMsg struct {
	screen *LogsScreen
}

// logsScreenKeyMap defines key bindings for the logs screen help display
type logsScreenKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Follow key.Binding
	Back   key.Binding
}

func (k logsScreenKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Follow, k.Back}
}

func (k logsScreenKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Follow, k.Back}}
}

// LogsScreen shows the in-memory log. It follows new lines while scrolled
// to the bottom.
type LogsScreen struct {
	viewport      viewport.Model
	width, height int
	model         *Model
	help          help.Model
	keys          logsScreenKeyMap
	debugBuffer   *DebugBuffer
	follow        bool
}

func NewLogsScreen(debugBuffer *DebugBuffer, m *Model) *LogsScreen {
	keys := logsScreenKeyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Follow: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "follow")),
		Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}

	vp := viewport.New(max(m.width-10, 10), max(m.height-10, 3))
	vp.SetContent(debugBuffer.String())
	vp.GotoBottom()

	return &LogsScreen{
		viewport:    vp,
		width:       m.width,
		height:      m.height,
		model:       m,
		help:        help.New(),
		keys:        keys,
		debugBuffer: debugBuffer,
		follow:      true,
	}
}

// Init implements tea.Model
func (s *LogsScreen) Init() tea.Cmd {
	return s.tick()
}

func (s *LogsScreen) tick() tea.Cmd {
	return tea.Tick(logsRefreshInterval, func(time.Time) tea.Msg { return logsRefreshMsg{screen: s} })
}

// Update implements ScreenModel
func (s *LogsScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case LogsCancelledMsg:
		s.model.handleLogsCancelledMsg()
		return s, nil

	case logsRefreshMsg:
		if msg.screen != s {
			return s, nil
		}
		if s.follow {
			s.RefreshContent()
		}
		return s, s.tick()

	case tea.KeyMsg:
		return s.handleKeys(msg)
	}

	var cmd tea.Cmd
	s.viewport, cmd = s.viewport.Update(msg)
	s.follow = s.viewport.AtBottom()
	return s, cmd
}

// View implements tea.Model
func (s *LogsScreen) View() string {
	status := fmt.Sprintf("%3.f%%", s.viewport.ScrollPercent()*100)
	if s.follow {
		status += " following"
	}
	return style.RenderSubscreen(s.width, s.height, "Logs",
		lipgloss.JoinVertical(
			lipgloss.Left,
			s.viewport.View(),
			" ",
			lipgloss.JoinHorizontal(lipgloss.Left, s.help.View(s.keys), "  ", status),
		),
	)
}

// SetSize updates dimensions
func (s *LogsScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.viewport.Width = max(width-10, 10)
	s.viewport.Height = max(height-10, 3)
}

func (s *LogsScreen) handleKeys(msg tea.KeyMsg) (ScreenModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return s, func() tea.Msg { return LogsCancelledMsg{} }
	case "f":
		s.follow = true
		s.RefreshContent()
		return s, nil
	}

	var cmd tea.Cmd
	s.viewport, cmd = s.viewport.Update(msg)
	s.follow = s.viewport.AtBottom()
	return s, cmd
}

// RefreshContent reloads the log and jumps to the newest line
func (s *LogsScreen) RefreshContent() {
	s.viewport.SetContent(s.debugBuffer.String())
	s.viewport.GotoBottom()
}
