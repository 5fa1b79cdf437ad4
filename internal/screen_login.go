package internal

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/glasschat/glasschat-client/internal/style"
)

// successDelay is how long the success feedback shows before the friend
// list opens.
const successDelay = 1200 * time.Millisecond

// loginKeyMap defines the keybindings for the login screen
type loginKeyMap struct {
	Tab   key.Binding
	Enter key.Binding
	Quit  key.Binding
}

func (k loginKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Enter, k.Quit}
}

func (k loginKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Tab, k.Enter, k.Quit}}
}

func newLoginKeyMap() loginKeyMap {
	return loginKeyMap{
		Tab:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next")),
		Enter: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "log in")),
		Quit:  key.NewBinding(key.WithKeys("ctrl+q"), key.WithHelp("^Q", "quit")),
	}
}

// LoginSubmitMsg carries the credentials typed at login.
type LoginSubmitMsg struct {
	Username string
	Password string
}

// loginFeedbackExpiredMsg hides the feedback line. seq ties it to the
// feedback it was scheduled for.
type loginFeedbackExpiredMsg struct {
	seq int
}

// LoginScreen is the entry form.
type LoginScreen struct {
	form          *huh.Form
	width, height int
	model         *Model
	help          help.Model
	keys          loginKeyMap

	username string
	password string

	feedback    string
	feedbackErr bool
	feedbackSeq int
}

// enterSubmitsKeyMap creates a keymap where Enter submits the form immediately
// instead of tabbing through fields.
func enterSubmitsKeyMap(submit string) *huh.KeyMap {
	km := huh.NewDefaultKeyMap()
	// Remove enter from Next so it only navigates with tab
	km.Input.Next = key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next"))
	km.Confirm.Next = key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next"))
	// Add enter to submit so it shows in help
	km.Input.Submit = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", submit))
	km.Confirm.Submit = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", submit))
	return km
}

func buildLoginForm(username, password *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("username").
				Title("Username").
				Placeholder("your handle").
				Value(username),

			huh.NewInput().
				Key("password").
				Title("Password").
				Placeholder("password").
				EchoMode(huh.EchoModePassword).
				Value(password),
		),
	).
		WithWidth(40).
		WithShowHelp(false).
		WithShowErrors(true).
		WithKeyMap(enterSubmitsKeyMap("log in"))
}

func NewLoginScreen(m *Model) *LoginScreen {
	s := &LoginScreen{
		width:  m.width,
		height: m.height,
		model:  m,
		help:   help.New(),
		keys:   newLoginKeyMap(),
	}
	s.form = buildLoginForm(&s.username, &s.password)
	return s
}

// Init implements tea.Model
func (s *LoginScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements ScreenModel
func (s *LoginScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case LoginSubmitMsg:
		return s, s.model.handleLoginSubmitMsg(msg)

	case loginFeedbackExpiredMsg:
		if msg.seq == s.feedbackSeq {
			s.feedback = ""
		}
		return s, nil

	case tea.KeyMsg:
		if msg.String() == "enter" {
			// First update the form to commit the current field's value
			form, _ := s.form.Update(msg)
			if f, ok := form.(*huh.Form); ok {
				s.form = f
			}
			return s, s.submit()
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}
	if s.form.State == huh.StateCompleted {
		return s, s.submit()
	}
	return s, cmd
}

func (s *LoginScreen) submit() tea.Cmd {
	username, password := s.username, s.password
	return tea.Batch(s.rebuildForm(), func() tea.Msg {
		return LoginSubmitMsg{Username: username, Password: password}
	})
}

// rebuildForm resets the completed form so it can be submitted again. The
// typed username is kept.
func (s *LoginScreen) rebuildForm() tea.Cmd {
	s.password = ""
	s.form = buildLoginForm(&s.username, &s.password)
	return s.form.Init()
}

// Failed shows why the login did not go through.
func (s *LoginScreen) Failed(text string) tea.Cmd {
	return s.showFeedback(text, true)
}

// Succeeded confirms the login and moves on shortly after.
func (s *LoginScreen) Succeeded(user string) tea.Cmd {
	return tea.Batch(
		s.showFeedback("Welcome back, "+user, false),
		tea.Tick(successDelay, func(time.Time) tea.Msg { return loggedInMsg{user: user} }),
	)
}

func (s *LoginScreen) showFeedback(text string, isErr bool) tea.Cmd {
	s.feedbackSeq++
	s.feedback = text
	s.feedbackErr = isErr
	seq := s.feedbackSeq
	return tea.Tick(clearStatusAfter, func(time.Time) tea.Msg {
		return loginFeedbackExpiredMsg{seq: seq}
	})
}

// View implements tea.Model
func (s *LoginScreen) View() string {
	feedback := ""
	if s.feedback != "" {
		fs := style.StatusStyle
		if s.feedbackErr {
			fs = style.ErrorTextStyle
		}
		feedback = fs.Render(s.feedback)
	}

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		s.form.View(),
		feedback,
		"",
		s.help.View(s.keys),
	)

	return style.Backdrop(s.width, s.height,
		lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(style.ColorFuscia).
			Padding(1, 2).
			Render(lipgloss.JoinVertical(
				lipgloss.Left,
				style.Gradient("glasschat", style.ColorFuscia, style.ColorCyan),
				style.SubTitleStyle.Render(s.model.prefs.ServerURL),
				content,
			)),
	)
}

// SetSize updates the screen dimensions
func (s *LoginScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
}
