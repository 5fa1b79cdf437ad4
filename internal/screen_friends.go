package internal

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/glasschat/glasschat-client/internal/roster"
	"github.com/glasschat/glasschat-client/internal/style"
)

// Messages sent from FriendsScreen to parent
type FriendSelectedMsg struct {
	Handle string
}

type FriendAddMsg struct {
	Name string
}

type FriendRemoveMsg struct {
	Handle string
}

type FriendClearHistoryMsg struct {
	Handle string
}

type FriendsOpenSettingsMsg struct{}

type FriendsLogoutMsg struct{}

// FriendsScreen lists the roster with unread badges.
type FriendsScreen struct {
	list          list.Model
	addInput      textinput.Model
	adding        bool
	width, height int
	model         *Model
}

func NewFriendsScreen(m *Model) *FriendsScreen {
	// Calculate dimensions accounting for app style padding
	h, v := style.AppStyle.GetFrameSize()

	l := list.New(nil, newFriendDelegate(), m.width-h, m.height-v-1)
	l.Title = "Friends"
	l.SetFilteringEnabled(true)
	l.SetShowStatusBar(true)
	l.SetStatusBarItemName("friend", "friends")
	l.SetShowHelp(true)
	l.StatusMessageLifetime = clearStatusAfter
	l.DisableQuitKeybindings()
	l.Styles.Title = l.Styles.Title.Background(style.ColorFuscia)

	in := textinput.New()
	in.Placeholder = "username"
	in.Prompt = "Add friend: "
	in.CharLimit = 64

	return &FriendsScreen{
		list:     l,
		addInput: in,
		width:    m.width,
		height:   m.height,
		model:    m,
	}
}

// Init implements tea.Model
func (s *FriendsScreen) Init() tea.Cmd {
	return nil
}

// Update implements ScreenModel
func (s *FriendsScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case FriendSelectedMsg:
		return s, s.model.handleFriendSelectedMsg(msg)
	case FriendAddMsg:
		return s, s.model.handleFriendAddMsg(msg)
	case FriendRemoveMsg:
		return s, s.model.handleFriendRemoveMsg(msg)
	case FriendClearHistoryMsg:
		return s, s.model.handleFriendClearHistoryMsg(msg)
	case FriendsOpenSettingsMsg:
		return s, s.model.handleFriendsOpenSettingsMsg()
	case FriendsLogoutMsg:
		return s, s.model.handleFriendsLogoutMsg()

	case tea.KeyMsg:
		if s.adding {
			return s.handleAddKeys(msg)
		}
		// Handle custom keys when NOT actively filtering
		if s.list.FilterState() != list.Filtering {
			if cmd, handled := s.handleKeys(msg); handled {
				return s, cmd
			}
		}
	}

	// Delegate all other messages to the list
	var cmd tea.Cmd
	s.list, cmd = s.list.Update(msg)
	return s, cmd
}

func (s *FriendsScreen) handleKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "enter":
		if item, ok := s.list.SelectedItem().(friendItem); ok {
			return func() tea.Msg { return FriendSelectedMsg{Handle: item.entry.Handle} }, true
		}
		return nil, true

	case "a":
		s.adding = true
		s.addInput.SetValue("")
		return s.addInput.Focus(), true

	case "x":
		if item, ok := s.list.SelectedItem().(friendItem); ok {
			return func() tea.Msg { return FriendRemoveMsg{Handle: item.entry.Handle} }, true
		}
		return nil, true

	case "c":
		if item, ok := s.list.SelectedItem().(friendItem); ok {
			return func() tea.Msg { return FriendClearHistoryMsg{Handle: item.entry.Handle} }, true
		}
		return nil, true

	case "s":
		return func() tea.Msg { return FriendsOpenSettingsMsg{} }, true

	case "esc":
		return func() tea.Msg { return FriendsLogoutMsg{} }, true
	}
	return nil, false
}

func (s *FriendsScreen) handleAddKeys(msg tea.KeyMsg) (ScreenModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		s.adding = false
		s.addInput.Blur()
		return s, nil
	case "enter":
		name := s.addInput.Value()
		s.adding = false
		s.addInput.Blur()
		return s, func() tea.Msg { return FriendAddMsg{Name: name} }
	}

	var cmd tea.Cmd
	s.addInput, cmd = s.addInput.Update(msg)
	return s, cmd
}

// SetEntries replaces the list with a fresh roster, keeping the cursor on
// the same friend when it is still there.
func (s *FriendsScreen) SetEntries(entries []roster.Entry) tea.Cmd {
	selected := ""
	if item, ok := s.list.SelectedItem().(friendItem); ok {
		selected = item.entry.Handle
	}

	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = friendItem{entry: e}
	}
	cmd := s.list.SetItems(items)

	for i, e := range entries {
		if e.Handle == selected {
			s.list.Select(i)
			break
		}
	}
	return cmd
}

// SetStatus shows text in the status bar; it clears itself.
func (s *FriendsScreen) SetStatus(text string) tea.Cmd {
	return s.list.NewStatusMessage(text)
}

// View implements tea.Model
func (s *FriendsScreen) View() string {
	header := style.HeaderStyle.Render("glasschat - " + s.model.me)
	if n := s.model.roster.TotalUnread(); n > 0 {
		header += " " + style.BadgeStyle.Render(fmt.Sprintf("%d unread", n))
	}
	if !s.model.channel.Connected() {
		header += " " + style.StatusStyle.Render("(polling)")
	}

	body := s.list.View()
	if s.adding {
		body = lipgloss.JoinVertical(lipgloss.Left, style.BoxStyle.Height(1).Render(s.addInput.View()), body)
	}
	return style.AppStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, body))
}

// SetSize updates the screen dimensions
func (s *FriendsScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	h, v := style.AppStyle.GetFrameSize()
	s.list.SetSize(width-h, height-v-1)
}

// friendItem represents a friend in the list
type friendItem struct {
	entry roster.Entry
}

func (i friendItem) FilterValue() string { return i.entry.Handle }

func (i friendItem) Title() string {
	if i.entry.Unread > 0 {
		return i.entry.Handle + " " + style.BadgeStyle.Render(badge(i.entry.Unread))
	}
	return i.entry.Handle
}

func (i friendItem) Description() string {
	if i.entry.Unread == 0 {
		return "No new messages"
	}
	return fmt.Sprintf("%d new %s", i.entry.Unread, plural(i.entry.Unread, "message", "messages"))
}

// badge caps the displayed count so the card keeps its width.
func badge(n int) string {
	if n > 99 {
		return "99+"
	}
	return fmt.Sprint(n)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// newFriendDelegate creates a custom delegate for friend list items
func newFriendDelegate() list.DefaultDelegate {
	d := list.NewDefaultDelegate()

	bindings := []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "chat")),
		key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove")),
		key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear history")),
		key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "settings")),
		key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "log out")),
	}

	d.ShortHelpFunc = func() []key.Binding {
		return bindings[:3]
	}

	d.FullHelpFunc = func() [][]key.Binding {
		return [][]key.Binding{
			bindings,
			{
				key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
				key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("^L", "logs")),
			},
		}
	}

	return d
}
