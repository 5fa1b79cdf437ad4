package internal

import (
	"os"

	"github.com/charmbracelet/bubbles/filepicker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/glasschat/glasschat-client/internal/style"
)

// imageTypes are the extensions the picker offers for sending.
var imageTypes = []string{".png", ".jpg", ".jpeg", ".gif"}

// Messages sent from FilePickerScreen to parent

// FilePickerFileSelectedMsg signals user picked an image to send
type FilePickerFileSelectedMsg struct {
	Path string
}

// FilePickerCancelledMsg signals user cancelled the file picker
type FilePickerCancelledMsg struct{}

// FilePickerScreen selects an image to send in the open chat
type FilePickerScreen struct {
	filePicker    filepicker.Model
	width, height int
	model         *Model

	// Remember last location for next time
	lastLocation string
	hint         string
}

// NewFilePickerScreen opens the picker in startDir, or the home directory
// when none was used yet
func NewFilePickerScreen(startDir string, m *Model) *FilePickerScreen {
	if startDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			startDir = home
		} else {
			startDir = "."
		}
	}

	fp := filepicker.New()
	fp.AllowedTypes = imageTypes
	fp.CurrentDirectory = startDir
	fp.ShowHidden = false
	fp.ShowPermissions = false
	fp.ShowSize = true
	fp.SetHeight(max(m.height-10, 5))

	return &FilePickerScreen{
		filePicker:   fp,
		width:        m.width,
		height:       m.height,
		model:        m,
		lastLocation: startDir,
	}
}

// Init implements tea.Model
func (s *FilePickerScreen) Init() tea.Cmd {
	return s.filePicker.Init()
}

// Update implements ScreenModel
func (s *FilePickerScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case FilePickerFileSelectedMsg:
		return s, s.model.handleFilePickerFileSelectedMsg(msg)

	case FilePickerCancelledMsg:
		s.model.handleFilePickerCancelledMsg()
		return s, nil

	case tea.KeyMsg:
		return s.handleKeys(msg)
	}

	var cmd tea.Cmd
	s.filePicker, cmd = s.filePicker.Update(msg)
	return s, cmd
}

// View implements tea.Model
func (s *FilePickerScreen) View() string {
	hint := style.StatusStyle.Render("png, jpg or gif - esc to cancel")
	if s.hint != "" {
		hint = style.ErrorTextStyle.Render(s.hint)
	}

	return lipgloss.Place(
		s.width,
		s.height,
		lipgloss.Center,
		lipgloss.Center,
		style.SubScreenStyle.Width(max(s.width-20, 20)).Render(
			lipgloss.JoinVertical(
				lipgloss.Left,
				style.SubTitleStyle.Render("Select image to send"),
				s.filePicker.View(),
				hint,
			),
		),
		lipgloss.WithWhitespaceBackground(style.ColorGrey2),
	)
}

// SetSize updates dimensions
func (s *FilePickerScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.filePicker.SetHeight(max(height-10, 5))
}

func (s *FilePickerScreen) handleKeys(msg tea.KeyMsg) (ScreenModel, tea.Cmd) {
	if msg.String() == "esc" {
		return s, func() tea.Msg { return FilePickerCancelledMsg{} }
	}

	s.hint = ""
	var cmd tea.Cmd
	s.filePicker, cmd = s.filePicker.Update(msg)

	if didSelect, path := s.filePicker.DidSelectFile(msg); didSelect {
		s.lastLocation = s.filePicker.CurrentDirectory
		return s, func() tea.Msg {
			return FilePickerFileSelectedMsg{Path: path}
		}
	}

	if didSelect, _ := s.filePicker.DidSelectDisabledFile(msg); didSelect {
		s.hint = "Only images can be sent"
		return s, cmd
	}

	return s, cmd
}

// GetLastLocation returns the last directory location
func (s *FilePickerScreen) GetLastLocation() string {
	return s.lastLocation
}
