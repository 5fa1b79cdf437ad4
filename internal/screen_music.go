package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/glasschat/glasschat-client/internal/api"
	"github.com/glasschat/glasschat-client/internal/style"
)

// Messages sent from MusicScreen to parent

type MusicSearchMsg struct {
	Keyword string
}

type MusicSelectedMsg struct {
	Track api.Track
}

type MusicCancelledMsg struct{}

// MusicScreen searches the music service and shares a result.
type MusicScreen struct {
	input   textinput.Model
	results list.Model
	spinner spinner.Model

	// searching is the keyword of the request in flight
	searching string

	focusResults  bool
	width, height int
	model         *Model
}

func NewMusicScreen(m *Model) *MusicScreen {
	in := textinput.New()
	in.Placeholder = "Song or artist"
	in.Prompt = "Search: "
	in.CharLimit = 100
	in.Focus()

	d := list.NewDefaultDelegate()
	d.ShortHelpFunc = func() []key.Binding {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "share")),
			key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "search box")),
		}
	}

	l := list.New(nil, d, m.width, m.height)
	l.Title = "Results"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.StatusMessageLifetime = clearStatusAfter
	l.Styles.Title = l.Styles.Title.Background(style.ColorFuscia)

	s := &MusicScreen{
		input:   in,
		results: l,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(style.ColorOwn))),
		model:   m,
	}
	s.SetSize(m.width, m.height)
	return s
}

// Init implements tea.Model
func (s *MusicScreen) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements ScreenModel
func (s *MusicScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case MusicSearchMsg:
		return s, s.model.handleMusicSearchMsg(msg)

	case MusicSelectedMsg:
		return s, s.model.handleMusicSelectedMsg(msg)

	case MusicCancelledMsg:
		s.model.handleMusicCancelledMsg()
		return s, nil

	case spinner.TickMsg:
		if s.searching == "" {
			return s, nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd

	case tea.KeyMsg:
		return s.handleKeys(msg)
	}

	var cmd tea.Cmd
	if s.focusResults {
		s.results, cmd = s.results.Update(msg)
	} else {
		s.input, cmd = s.input.Update(msg)
	}
	return s, cmd
}

func (s *MusicScreen) handleKeys(msg tea.KeyMsg) (ScreenModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return s, func() tea.Msg { return MusicCancelledMsg{} }

	case "tab":
		s.setFocusResults(!s.focusResults)
		return s, nil

	case "enter":
		if s.focusResults {
			item, ok := s.results.SelectedItem().(trackItem)
			if !ok {
				return s, nil
			}
			return s, func() tea.Msg { return MusicSelectedMsg{Track: item.track} }
		}

		keyword := strings.TrimSpace(s.input.Value())
		if keyword == "" || keyword == s.searching {
			return s, nil
		}
		s.searching = keyword
		return s, tea.Batch(s.spinner.Tick, func() tea.Msg { return MusicSearchMsg{Keyword: keyword} })
	}

	var cmd tea.Cmd
	if s.focusResults {
		s.results, cmd = s.results.Update(msg)
	} else {
		s.input, cmd = s.input.Update(msg)
	}
	return s, cmd
}

func (s *MusicScreen) setFocusResults(on bool) {
	if on && len(s.results.Items()) == 0 {
		return
	}
	s.focusResults = on
	if on {
		s.input.Blur()
	} else {
		s.input.Focus()
	}
}

// SetResults shows the tracks found for keyword. Replies for an older
// keyword are ignored.
func (s *MusicScreen) SetResults(keyword string, tracks []api.Track, err error) tea.Cmd {
	if keyword != s.searching {
		return nil
	}
	s.searching = ""

	if err != nil {
		s.results.SetItems(nil)
		s.setFocusResults(false)
		return s.results.NewStatusMessage(style.ErrorTextStyle.Render("Search failed: " + api.ErrorText(err)))
	}

	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = trackItem{track: t}
	}
	cmd := s.results.SetItems(items)
	s.results.Title = fmt.Sprintf("Results for %q", keyword)
	if len(items) == 0 {
		return tea.Batch(cmd, s.results.NewStatusMessage("Nothing found"))
	}
	s.setFocusResults(true)
	return cmd
}

// View implements tea.Model
func (s *MusicScreen) View() string {
	search := s.input.View()
	if s.searching != "" {
		search += " " + s.spinner.View()
	}

	return style.AppStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		style.HeaderStyle.Render("Share music"),
		style.BoxStyle.Height(1).Render(search),
		s.results.View(),
	))
}

// SetSize updates the screen dimensions
func (s *MusicScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	h, v := style.AppStyle.GetFrameSize()
	s.input.Width = max(width-h-14, 10)
	// Title row and the search box
	s.results.SetSize(width-h, max(height-v-4, 3))
}

type trackItem struct {
	track api.Track
}

func (i trackItem) FilterValue() string { return i.track.Name }

func (i trackItem) Title() string {
	if i.track.IsVIP {
		return i.track.Name + " " + style.BadgeStyle.Render("VIP")
	}
	return i.track.Name
}

func (i trackItem) Description() string { return i.track.ArtistLine() }
