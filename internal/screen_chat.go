package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/glasschat/glasschat-client/internal/api"
	"github.com/glasschat/glasschat-client/internal/chatsync"
	"github.com/glasschat/glasschat-client/internal/content"
	"github.com/glasschat/glasschat-client/internal/playback"
	"github.com/glasschat/glasschat-client/internal/style"
)

// Messages sent from ChatScreen to parent

// ChatSendMsg signals the user wants to send a text message
type ChatSendMsg struct {
	Text string
}

// ChatCloseMsg signals the user left the conversation
type ChatCloseMsg struct{}

// ChatOpenImageMsg opens the gallery at the image rendered at Index. A
// negative Index opens the newest image.
type ChatOpenImageMsg struct {
	Index int
}

// ChatPlayMsg starts or toggles the track of a music message
type ChatPlayMsg struct {
	Control string
	Track   api.Track
}

type ChatToggleMsg struct{}

type ChatSeekMsg struct {
	Fraction float64
}

type ChatUploadMsg struct{}

type ChatOpenMusicMsg struct{}

type chatStatusExpiredMsg struct {
	seq int
}

const (
	// chrome is the number of rows around the chat viewport: title, help,
	// viewport border and the input box.
	chrome       = 9
	playerRows   = 3
	seekStep     = 0.05
	timeLayout   = "15:04"
	dateLayout   = "Mon Jan 2 15:04"
	minWrapWidth = 10
)

// chatScreenKeyMap defines key bindings for the chat help display
type chatScreenKeyMap struct {
	Send    key.Binding
	Select  key.Binding
	Upload  key.Binding
	Music   key.Binding
	Gallery key.Binding
	Pause   key.Binding
	Logs    key.Binding
	Back    key.Binding
}

func (k chatScreenKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Select, k.Upload, k.Music, k.Gallery, k.Pause, k.Back}
}

func (k chatScreenKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Select, k.Upload, k.Music, k.Gallery, k.Pause, k.Logs, k.Back},
	}
}

// ChatScreen shows one conversation.
type ChatScreen struct {
	chatViewport viewport.Model
	chatInput    textinput.Model
	progress     progress.Model
	help         help.Model
	keys         chatScreenKeyMap

	width, height int

	model *Model

	peer  string
	items []chatsync.Item
	// itemLines is the first viewport line of each item.
	itemLines []int

	selecting bool
	selected  int
	sending   bool

	status    string
	statusSeq int

	playback  playback.Event
	lyricsID  api.ID
	lyrics    playback.Lyrics
	drag      playback.Drag
	bar       playback.Bar
	playerOn  bool
}

// NewChatScreen creates the screen for the conversation with peer
func NewChatScreen(peer string, m *Model) *ChatScreen {
	chatInput := textinput.New()
	chatInput.Placeholder = "Type a message..."
	chatInput.CharLimit = 2000
	chatInput.Width = 80
	chatInput.Focus()

	bar := progress.New(progress.WithScaledGradient("#F25D94", "#EDFF82"))
	bar.ShowPercentage = false

	keys := chatScreenKeyMap{
		Send:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Select:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "select")),
		Upload:  key.NewBinding(key.WithKeys("ctrl+u"), key.WithHelp("^U", "image")),
		Music:   key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("^O", "music")),
		Gallery: key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("^G", "gallery")),
		Pause:   key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("^P", "pause")),
		Logs:    key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("^L", "logs")),
		Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}
	keys.Pause.SetEnabled(false)

	s := &ChatScreen{
		chatViewport: viewport.New(m.width, m.height-chrome),
		chatInput:    chatInput,
		progress:     bar,
		help:         help.New(),
		keys:         keys,
		width:        m.width,
		height:       m.height,
		model:        m,
		peer:         peer,
		selected:     -1,
	}
	s.SetSize(m.width, m.height)
	return s
}

// Init returns initial commands
func (s *ChatScreen) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and returns updated screen + commands
func (s *ChatScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case ChatSendMsg:
		return s, s.model.handleChatSendMsg(msg)

	case ChatCloseMsg:
		return s, s.model.handleChatCloseMsg()

	case ChatOpenImageMsg:
		return s, s.model.handleChatOpenImageMsg(msg)

	case ChatPlayMsg:
		return s, s.model.handleChatPlayMsg(msg)

	case ChatToggleMsg:
		s.model.handleChatToggleMsg()
		return s, nil

	case ChatSeekMsg:
		s.model.handleChatSeekMsg(msg)
		return s, nil

	case ChatUploadMsg:
		return s, s.model.handleChatUploadMsg()

	case ChatOpenMusicMsg:
		return s, s.model.handleChatOpenMusicMsg()

	case chatStatusExpiredMsg:
		if msg.seq == s.statusSeq {
			s.status = ""
		}
		return s, nil

	case tea.MouseMsg:
		return s.handleMouse(msg)

	case tea.KeyMsg:
		if s.selecting {
			return s.handleSelectKeys(msg)
		}
		return s.handleKeys(msg)
	}

	var cmd tea.Cmd
	s.chatInput, cmd = s.chatInput.Update(msg)
	return s, cmd
}

func (s *ChatScreen) handleKeys(msg tea.KeyMsg) (ScreenModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return s, func() tea.Msg { return ChatCloseMsg{} }

	case "tab":
		s.setSelecting(true)
		return s, nil

	case "ctrl+u":
		return s, func() tea.Msg { return ChatUploadMsg{} }

	case "ctrl+o":
		return s, func() tea.Msg { return ChatOpenMusicMsg{} }

	case "ctrl+g":
		return s, func() tea.Msg { return ChatOpenImageMsg{Index: -1} }

	case "ctrl+p":
		return s, func() tea.Msg { return ChatToggleMsg{} }

	case "up":
		s.chatViewport.ScrollUp(1)
		return s, nil

	case "down":
		s.chatViewport.ScrollDown(1)
		return s, nil

	case "pgup":
		s.chatViewport.PageUp()
		return s, nil

	case "pgdown":
		s.chatViewport.PageDown()
		return s, nil

	case "home":
		s.chatViewport.GotoTop()
		return s, nil

	case "end":
		s.chatViewport.GotoBottom()
		return s, nil

	case "enter":
		text := strings.TrimSpace(s.chatInput.Value())
		if text == "" || s.sending {
			return s, nil
		}
		return s, func() tea.Msg { return ChatSendMsg{Text: text} }
	}

	var cmd tea.Cmd
	s.chatInput, cmd = s.chatInput.Update(msg)
	return s, cmd
}

// handleSelectKeys moves between attachments while the input is blurred.
func (s *ChatScreen) handleSelectKeys(msg tea.KeyMsg) (ScreenModel, tea.Cmd) {
	switch msg.String() {
	case "esc", "tab":
		s.setSelecting(false)
		return s, nil

	case "up", "k":
		s.moveSelection(-1)
		return s, nil

	case "down", "j":
		s.moveSelection(1)
		return s, nil

	case "enter":
		it, ok := s.selectedItem()
		if !ok {
			return s, nil
		}
		switch it.Content.Kind {
		case content.KindImage:
			return s, func() tea.Msg { return ChatOpenImageMsg{Index: it.Index} }
		case content.KindMusic:
			play := ChatPlayMsg{Control: s.control(it), Track: it.Content.Track}
			return s, func() tea.Msg { return play }
		}
		return s, nil

	case " ", "ctrl+p":
		return s, func() tea.Msg { return ChatToggleMsg{} }

	case "left", "h":
		return s, s.seekBy(-seekStep)

	case "right", "l":
		return s, s.seekBy(seekStep)

	case "ctrl+g":
		return s, func() tea.Msg { return ChatOpenImageMsg{Index: -1} }
	}
	return s, nil
}

func (s *ChatScreen) handleMouse(msg tea.MouseMsg) (ScreenModel, tea.Cmd) {
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft && s.playerOn && s.drag.Down(s.bar, msg.X, msg.Y) {
			return s, nil
		}
	case tea.MouseActionMotion:
		if _, ok := s.drag.Move(msg.X); ok {
			return s, nil
		}
	case tea.MouseActionRelease:
		if f, ok := s.drag.Up(msg.X); ok {
			return s, func() tea.Msg { return ChatSeekMsg{Fraction: f} }
		}
	}

	var cmd tea.Cmd
	s.chatViewport, cmd = s.chatViewport.Update(msg)
	return s, cmd
}

func (s *ChatScreen) seekBy(delta float64) tea.Cmd {
	if !s.playerOn {
		return nil
	}
	f := s.playback.Fraction() + delta
	return func() tea.Msg { return ChatSeekMsg{Fraction: f} }
}

// control names the player control of a music message. It is unique per
// message so two shares of the same track play independently.
func (s *ChatScreen) control(it chatsync.Item) string {
	return fmt.Sprintf("%s#%d", s.peer, it.Index)
}

func (s *ChatScreen) setSelecting(on bool) {
	s.selecting = on
	if on {
		s.chatInput.Blur()
		if s.selected < 0 {
			s.selected = len(s.items)
			s.moveSelection(-1)
		}
	} else {
		s.chatInput.Focus()
	}
	s.rebuildChatContent()
}

// moveSelection steps to the next attachment in dir, staying put when there
// is none.
func (s *ChatScreen) moveSelection(dir int) {
	for i := s.selected + dir; i >= 0 && i < len(s.items); i += dir {
		if selectable(s.items[i]) {
			s.selected = i
			s.rebuildChatContent()
			s.scrollToSelected()
			return
		}
	}
}

func (s *ChatScreen) selectedItem() (chatsync.Item, bool) {
	if s.selected < 0 || s.selected >= len(s.items) {
		return chatsync.Item{}, false
	}
	return s.items[s.selected], true
}

func (s *ChatScreen) scrollToSelected() {
	if s.selected < 0 || s.selected >= len(s.itemLines) {
		return
	}
	line := s.itemLines[s.selected]
	top := s.chatViewport.YOffset
	if line < top || line >= top+s.chatViewport.Height {
		s.chatViewport.SetYOffset(line)
	}
}

func selectable(it chatsync.Item) bool {
	return it.Content.Kind == content.KindImage || it.Content.Kind == content.KindMusic
}

// SetItems replaces the conversation.
func (s *ChatScreen) SetItems(items []chatsync.Item) {
	s.items = append([]chatsync.Item(nil), items...)
	s.selected = -1
	if s.selecting {
		s.selected = len(s.items)
		s.moveSelection(-1)
	}
	s.rebuildChatContent()
	s.chatViewport.GotoBottom()
}

// AppendItems adds newly rendered messages. The view follows new messages
// when it was at the bottom or when one of them is ours.
func (s *ChatScreen) AppendItems(items []chatsync.Item) {
	follow := s.chatViewport.AtBottom()
	for _, it := range items {
		follow = follow || it.Own
	}
	s.items = append(s.items, items...)
	s.rebuildChatContent()
	if follow {
		s.chatViewport.GotoBottom()
	}
}

// Items returns the rendered messages.
func (s *ChatScreen) Items() []chatsync.Item {
	return s.items
}

// ImagesLoaded redraws with image details filled in and scrolls to the
// newest message.
func (s *ChatScreen) ImagesLoaded() {
	s.rebuildChatContent()
	s.chatViewport.GotoBottom()
}

// SetSending blocks the input while a send is in flight.
func (s *ChatScreen) SetSending(sending bool) {
	s.sending = sending
	if sending {
		s.chatInput.Placeholder = "Sending..."
	} else {
		s.chatInput.Placeholder = "Type a message..."
	}
}

// ClearInput empties the input after a successful send.
func (s *ChatScreen) ClearInput() {
	s.chatInput.SetValue("")
}

// SetStatus shows a transient line next to the title.
func (s *ChatScreen) SetStatus(text string) tea.Cmd {
	s.statusSeq++
	s.status = text
	seq := s.statusSeq
	return tea.Tick(clearStatusAfter, func(time.Time) tea.Msg {
		return chatStatusExpiredMsg{seq: seq}
	})
}

// SetPlayback updates the player panel.
func (s *ChatScreen) SetPlayback(ev playback.Event) {
	s.playback = ev
	on := ev.State != playback.Stopped
	s.keys.Pause.SetEnabled(on)
	if on != s.playerOn {
		s.playerOn = on
		s.layout()
	}
	s.rebuildChatContent()
}

// SetLyrics stores the lyrics of track id.
func (s *ChatScreen) SetLyrics(id api.ID, lyrics playback.Lyrics) {
	s.lyricsID = id
	s.lyrics = lyrics
}

// View renders the screen
func (s *ChatScreen) View() string {
	title := style.HeaderStyle.Render("Chat with " + s.peer)
	switch {
	case s.status != "":
		title += "  " + style.StatusStyle.Render(s.status)
	case s.sending:
		title += "  " + style.StatusStyle.Render("sending...")
	}

	chatBorder := lipgloss.DoubleBorder()
	chatBorderColor := style.ColorCyan
	if s.selecting {
		chatBorder = lipgloss.RoundedBorder()
		chatBorderColor = style.ColorFuscia
	} else if !s.chatViewport.AtBottom() {
		chatBorderColor = style.ColorLightGrey
	}

	chatView := lipgloss.NewStyle().
		PaddingLeft(1).
		Border(chatBorder).
		BorderForeground(chatBorderColor).
		Render(s.chatViewport.View())

	rows := []string{title, s.help.View(s.keys), chatView}
	if s.playerOn {
		rows = append(rows, s.playerView())
	}
	rows = append(rows, style.BoxStyle.Render(s.chatInput.View()))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// playerView renders the now-playing panel: track line, progress bar and
// the current lyric.
func (s *ChatScreen) playerView() string {
	ev := s.playback

	fraction := ev.Fraction()
	if s.drag.Active() {
		fraction = s.drag.Preview()
	}

	head := fmt.Sprintf("%s %s - %s  %s / %s",
		stateGlyph(ev.State),
		ev.Track.Name,
		ev.Track.ArtistLine(),
		clock(ev.Position),
		clock(ev.Length),
	)

	lyric := ""
	if ev.Track.ID == s.lyricsID {
		if i, ok := s.lyrics.At(ev.Position); ok {
			lyric = s.lyrics[i].Text
		}
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		style.AttachmentStyle.Render(truncate(head, s.width)),
		s.progress.ViewAs(fraction),
		style.LyricStyle.Render(truncate(lyric, s.width)),
	)
}

func stateGlyph(st playback.State) string {
	switch st {
	case playback.Playing:
		return "▶"
	case playback.Paused:
		return "❚❚"
	case playback.Loading:
		return "…"
	default:
		return "■"
	}
}

func clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}

func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

// SetSize updates dimensions
func (s *ChatScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.layout()
}

// layout sizes the viewport around the optional player panel and records
// where the progress bar lands on screen.
func (s *ChatScreen) layout() {
	vpHeight := s.height - chrome
	if s.playerOn {
		vpHeight -= playerRows
	}
	if vpHeight < 1 {
		vpHeight = 1
	}

	// Border and left padding
	s.chatViewport.Width = max(s.width-3, 1)
	s.chatViewport.Height = vpHeight
	s.chatInput.Width = max(s.width-6, 1)
	s.progress.Width = max(s.width-2, 1)

	// Title and help rows, the viewport with its border, then the track line.
	s.bar = playback.Bar{X: 0, Y: 2 + vpHeight + 2 + 1, Width: s.progress.Width}

	s.rebuildChatContent()
}

// wrapChatMessage wraps a message body to the viewport width, indented under
// the sender line
func (s *ChatScreen) wrapChatMessage(body string) string {
	wrapWidth := s.chatViewport.Width - 3
	if wrapWidth < minWrapWidth {
		wrapWidth = minWrapWidth
	}
	wrapped := wordwrap.String(body, wrapWidth)
	return "  " + strings.ReplaceAll(wrapped, "\n", "\n  ")
}

// rebuildChatContent redraws every rendered item. It is called whenever the
// width, the selection, the theme or attachment details change.
func (s *ChatScreen) rebuildChatContent() {
	var b strings.Builder
	s.itemLines = s.itemLines[:0]
	line := 0

	for i, it := range s.items {
		if it.Divider {
			divider := lipgloss.PlaceHorizontal(s.chatViewport.Width-1, lipgloss.Center,
				style.DividerStyle.Render("── "+it.Message.Timestamp.Format(dateLayout)+" ──"))
			b.WriteString(divider + "\n")
			line++
		}
		s.itemLines = append(s.itemLines, line)

		block := s.renderItem(it)
		if s.selecting && i == s.selected {
			block = style.SelectedStyle.Render(block)
		}
		b.WriteString(block + "\n")
		line += strings.Count(block, "\n") + 1
	}

	s.chatViewport.SetContent(b.String())
}

func (s *ChatScreen) renderItem(it chatsync.Item) string {
	name := style.PeerNameStyle.Render(it.Message.Sender)
	if it.Own {
		name = style.OwnNameStyle.Render(it.Message.Sender)
	}
	header := name + " " + style.TimeStyle.Render(it.Message.Timestamp.Format(timeLayout))

	var body string
	switch it.Content.Kind {
	case content.KindImage:
		info := "loading..."
		if img, ok := s.model.images[it.Content.ImageID]; ok {
			info = img.String()
		}
		body = style.AttachmentStyle.Render(fmt.Sprintf("[image %s] %s", it.Content.ImageID, info))

	case content.KindMusic:
		glyph := "♪"
		if s.playback.Control == s.control(it) && s.playback.State != playback.Stopped {
			glyph = stateGlyph(s.playback.State)
		}
		body = style.AttachmentStyle.Render(fmt.Sprintf("%s %s - %s", glyph, it.Content.Track.Name, it.Content.Track.ArtistLine()))

	default:
		body = it.Content.Text
	}

	return header + "\n" + s.wrapChatMessage(body)
}
