package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/glasschat/glasschat-client/internal/style"
)

// AccountField is the account detail an AccountFormScreen edits.
type AccountField int

const (
	AccountFieldUsername AccountField = iota
	AccountFieldPassword
)

func (f AccountField) String() string {
	if f == AccountFieldUsername {
		return "username"
	}
	return "password"
}

// Messages sent from SettingsScreen to parent

type SettingsEditMsg struct {
	Field AccountField
}

type SettingsCancelledMsg struct{}

type SettingsToggleThemeMsg struct{}

type SettingsToggleSoundsMsg struct{}

type SettingsToggleNotificationsMsg struct{}

type SettingsLogoutMsg struct{}

type settingsStatusExpiredMsg struct {
	seq int
}

type settingsKeyMap struct {
	Username      key.Binding
	Password      key.Binding
	Theme         key.Binding
	Sounds        key.Binding
	Notifications key.Binding
	Logout        key.Binding
	Back          key.Binding
}

func (k settingsKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Back}
}

func (k settingsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Username, k.Password, k.Theme, k.Sounds, k.Notifications, k.Logout, k.Back}}
}

func newSettingsKeyMap() settingsKeyMap {
	return settingsKeyMap{
		Username:      key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "change username")),
		Password:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "change password")),
		Theme:         key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
		Sounds:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sounds")),
		Notifications: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "notifications")),
		Logout:        key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "log out")),
		Back:          key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}
}

// SettingsScreen is the account and preferences menu.
type SettingsScreen struct {
	width, height int
	model         *Model
	help          help.Model
	keys          settingsKeyMap

	status    string
	statusSeq int
}

func NewSettingsScreen(m *Model) *SettingsScreen {
	return &SettingsScreen{
		width:  m.width,
		height: m.height,
		model:  m,
		help:   help.New(),
		keys:   newSettingsKeyMap(),
	}
}

// Init implements tea.Model
func (s *SettingsScreen) Init() tea.Cmd {
	return nil
}

// Update implements ScreenModel
func (s *SettingsScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case SettingsEditMsg:
		return s, s.model.handleSettingsEditMsg(msg)

	case SettingsCancelledMsg:
		s.model.handleSettingsCancelledMsg()
		return s, nil

	case SettingsToggleThemeMsg:
		s.model.handleSettingsToggleThemeMsg()
		return s, nil

	case SettingsToggleSoundsMsg:
		return s, s.model.handleSettingsToggleSoundsMsg()

	case SettingsToggleNotificationsMsg:
		return s, s.model.handleSettingsToggleNotificationsMsg()

	case SettingsLogoutMsg:
		return s, s.model.handleFriendsLogoutMsg()

	case settingsStatusExpiredMsg:
		if msg.seq == s.statusSeq {
			s.status = ""
		}
		return s, nil

	case tea.KeyMsg:
		return s, s.handleKeys(msg)
	}
	return s, nil
}

func (s *SettingsScreen) handleKeys(msg tea.KeyMsg) tea.Cmd {
	var out tea.Msg
	switch {
	case key.Matches(msg, s.keys.Back):
		out = SettingsCancelledMsg{}
	case key.Matches(msg, s.keys.Username):
		out = SettingsEditMsg{Field: AccountFieldUsername}
	case key.Matches(msg, s.keys.Password):
		out = SettingsEditMsg{Field: AccountFieldPassword}
	case key.Matches(msg, s.keys.Theme):
		out = SettingsToggleThemeMsg{}
	case key.Matches(msg, s.keys.Sounds):
		out = SettingsToggleSoundsMsg{}
	case key.Matches(msg, s.keys.Notifications):
		out = SettingsToggleNotificationsMsg{}
	case key.Matches(msg, s.keys.Logout):
		out = SettingsLogoutMsg{}
	default:
		return nil
	}
	return func() tea.Msg { return out }
}

// SetStatus shows the outcome of an account change.
func (s *SettingsScreen) SetStatus(text string) tea.Cmd {
	s.statusSeq++
	s.status = text
	seq := s.statusSeq
	return tea.Tick(clearStatusAfter, func(time.Time) tea.Msg {
		return settingsStatusExpiredMsg{seq: seq}
	})
}

// View implements tea.Model
func (s *SettingsScreen) View() string {
	theme := "light"
	if s.model.account.Dark() {
		theme = "dark"
	}

	rows := []struct {
		binding key.Binding
		value   string
	}{
		{s.keys.Username, s.model.me},
		{s.keys.Password, "********"},
		{s.keys.Theme, theme},
		{s.keys.Sounds, onOff(s.model.prefs.EnableSounds)},
		{s.keys.Notifications, onOff(s.model.prefs.EnableNotifications)},
		{s.keys.Logout, ""},
	}

	var b strings.Builder
	for _, r := range rows {
		h := r.binding.Help()
		fmt.Fprintf(&b, "%s  %-18s %s\n", style.HotkeyStyle.Render(h.Key), h.Desc, style.StatusStyle.Render(r.value))
	}

	return style.RenderSubscreen(s.width, s.height, "Settings",
		lipgloss.JoinVertical(
			lipgloss.Left,
			b.String(),
			style.StatusStyle.Render(s.model.prefs.ServerURL),
			style.StatusStyle.Render(s.status),
			s.help.View(s.keys),
		),
	)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// SetSize updates the screen dimensions
func (s *SettingsScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
}

// Messages sent from AccountFormScreen to parent

type AccountFormSubmitMsg struct {
	Field AccountField
	Value string
}

type AccountFormCancelledMsg struct{}

// AccountFormScreen asks for a new username or password.
type AccountFormScreen struct {
	form          *huh.Form
	field         AccountField
	value         string
	confirm       string
	submitted     bool
	width, height int
	model         *Model
}

func NewAccountFormScreen(field AccountField, m *Model) (*AccountFormScreen, tea.Cmd) {
	s := &AccountFormScreen{
		field:  field,
		width:  m.width,
		height: m.height,
		model:  m,
	}

	notEmpty := func(str string) error {
		if strings.TrimSpace(str) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}

	var fields []huh.Field
	if field == AccountFieldUsername {
		fields = append(fields,
			huh.NewInput().
				Key("value").
				Title("New username").
				Placeholder(m.me).
				CharLimit(64).
				Value(&s.value).
				Validate(notEmpty),
		)
	} else {
		fields = append(fields,
			huh.NewInput().
				Key("value").
				Title("New password").
				EchoMode(huh.EchoModePassword).
				Value(&s.value).
				Validate(notEmpty),
			huh.NewInput().
				Key("confirm").
				Title("Repeat password").
				EchoMode(huh.EchoModePassword).
				Value(&s.confirm).
				Validate(func(str string) error {
					if str != s.value {
						return fmt.Errorf("passwords do not match")
					}
					return nil
				}),
		)
	}

	s.form = huh.NewForm(huh.NewGroup(fields...)).
		WithWidth(50).
		WithShowHelp(true).
		WithShowErrors(true)

	return s, s.form.Init()
}

// Init implements tea.Model
func (s *AccountFormScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements ScreenModel
func (s *AccountFormScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case AccountFormSubmitMsg:
		return s, s.model.handleAccountFormSubmitMsg(msg)

	case AccountFormCancelledMsg:
		s.model.handleAccountFormCancelledMsg()
		return s, nil

	case tea.KeyMsg:
		if msg.String() == "esc" {
			return s, func() tea.Msg { return AccountFormCancelledMsg{} }
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted && !s.submitted {
		s.submitted = true
		submit := AccountFormSubmitMsg{Field: s.field, Value: strings.TrimSpace(s.value)}
		if s.field == AccountFieldPassword {
			submit.Value = s.value
		}
		return s, func() tea.Msg { return submit }
	}
	return s, cmd
}

// View implements tea.Model
func (s *AccountFormScreen) View() string {
	return style.RenderSubscreen(s.width, s.height, "Change "+s.field.String(), s.form.View())
}

// SetSize updates the screen dimensions
func (s *AccountFormScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
}
