package internal

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/glasschat/glasschat-client/internal/style"
)

// ModalType identifies what a modal confirms so its answer can be routed
type ModalType int

const (
	ModalTypeGeneric ModalType = iota
	ModalTypeError
	ModalTypeRemoveFriend
	ModalTypeClearHistory
	ModalTypeLogout
)

// destructive modals start on the negative button.
func (t ModalType) destructive() bool {
	return t == ModalTypeRemoveFriend || t == ModalTypeClearHistory || t == ModalTypeLogout
}

// Messages sent from ModalScreen to parent
type ModalCancelledMsg struct{}

type ModalButtonClickedMsg struct {
	ButtonClicked string
	Type          ModalType
	// Subject is what the modal acts on, such as a friend's handle
	Subject string
}

// ModalScreen asks a question with one or two buttons. With two buttons the
// first is negative and the second affirmative.
type ModalScreen struct {
	form          *huh.Form
	width, height int
	model         *Model

	modalType ModalType
	title     string
	content   string
	buttons   []string
	subject   string
	answered  bool
}

func NewModalScreen(modalType ModalType, title, content string, buttons []string, m *Model) *ModalScreen {
	if len(buttons) == 0 {
		buttons = []string{"OK"}
	}

	s := &ModalScreen{
		modalType: modalType,
		title:     title,
		content:   content,
		buttons:   buttons,
		width:     m.width,
		height:    m.height,
		model:     m,
	}
	s.form = s.buildForm()
	return s
}

func (s *ModalScreen) buildForm() *huh.Form {
	confirm := huh.NewConfirm().Key("confirm")
	if len(s.buttons) == 1 {
		confirm = confirm.Affirmative(s.buttons[0]).Negative("")
	} else {
		initial := !s.modalType.destructive()
		confirm = confirm.
			Value(&initial).
			Affirmative(s.buttons[len(s.buttons)-1]).
			Negative(s.buttons[0])
	}

	keyMap := huh.NewDefaultKeyMap()
	keyMap.Confirm.Toggle.SetKeys("left", "right", "h", "l", "tab")

	theme := huh.ThemeCharm()
	theme.Focused.Base = theme.Focused.Base.
		UnsetBorderLeft().
		UnsetBorderStyle()

	return huh.NewForm(huh.NewGroup(confirm)).
		WithWidth(60).
		WithShowHelp(false).
		WithShowErrors(false).
		WithKeyMap(keyMap).
		WithTheme(theme)
}

// Init implements tea.Model
func (s *ModalScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements ScreenModel
func (s *ModalScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return ModalCancelledMsg{} }
		case "y":
			if len(s.buttons) > 1 {
				return s, s.answer(true)
			}
		case "n":
			if len(s.buttons) > 1 {
				return s, s.answer(false)
			}
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}
	if s.form.State == huh.StateCompleted {
		return s, s.answer(s.form.GetBool("confirm"))
	}
	return s, cmd
}

// answer reports the clicked button once.
func (s *ModalScreen) answer(affirmative bool) tea.Cmd {
	if s.answered {
		return nil
	}
	s.answered = true

	clicked := s.buttons[0]
	if affirmative {
		clicked = s.buttons[len(s.buttons)-1]
	}
	msg := ModalButtonClickedMsg{ButtonClicked: clicked, Type: s.modalType, Subject: s.subject}
	return func() tea.Msg { return msg }
}

// View implements tea.Model
func (s *ModalScreen) View() string {
	title := lipgloss.NewStyle().
		Align(lipgloss.Center).
		Render(style.Rainbow(s.title))

	box := style.DialogBoxStyle
	bodyStyle := lipgloss.NewStyle().Padding(1)
	if s.modalType == ModalTypeError {
		box = box.BorderForeground(style.ColorBrightRed)
		bodyStyle = bodyStyle.Inherit(style.ErrorTextStyle)
	}

	var body string
	if s.content != "" {
		body = bodyStyle.Render(wordwrap.String(s.content, 56))
	}

	buttons := lipgloss.NewStyle().
		Width(50).
		Align(lipgloss.Center).
		Render(s.form.View())

	return style.Backdrop(s.width, s.height,
		box.Render(lipgloss.JoinVertical(
			lipgloss.Center,
			title,
			body,
			buttons,
		)),
	)
}

// SetSize updates dimensions
func (s *ModalScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
}
