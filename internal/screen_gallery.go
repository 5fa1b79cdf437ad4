package internal

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/glasschat/glasschat-client/internal/gallery"
	"github.com/glasschat/glasschat-client/internal/style"
)

// GalleryClosedMsg signals the user left the gallery
type GalleryClosedMsg struct{}

// GalleryDownloadMsg asks to save the image under the cursor
type GalleryDownloadMsg struct{}

type galleryStatusExpiredMsg struct {
	seq int
}

type galleryKeyMap struct {
	Prev     key.Binding
	Next     key.Binding
	Download key.Binding
	Back     key.Binding
}

func (k galleryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Download, k.Back}
}

func (k galleryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Prev, k.Next, k.Download, k.Back}}
}

// GalleryScreen steps through the images of the open conversation.
type GalleryScreen struct {
	gallery       *gallery.Gallery
	width, height int
	model         *Model
	help          help.Model
	keys          galleryKeyMap

	downloading bool
	status      string
	statusSeq   int
}

func NewGalleryScreen(g *gallery.Gallery, m *Model) *GalleryScreen {
	s := &GalleryScreen{
		gallery: g,
		width:   m.width,
		height:  m.height,
		model:   m,
		help:    help.New(),
		keys: galleryKeyMap{
			Prev:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "previous")),
			Next:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next")),
			Download: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "download")),
			Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		},
	}
	s.updateKeys()
	return s
}

// Init implements tea.Model
func (s *GalleryScreen) Init() tea.Cmd {
	return nil
}

// Update implements ScreenModel
func (s *GalleryScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case GalleryClosedMsg:
		s.model.handleGalleryClosedMsg()
		return s, nil

	case GalleryDownloadMsg:
		s.downloading = true
		s.updateKeys()
		return s, s.model.handleGalleryDownloadMsg(s.gallery)

	case galleryStatusExpiredMsg:
		if msg.seq == s.statusSeq {
			s.status = ""
		}
		return s, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, s.keys.Back):
			return s, func() tea.Msg { return GalleryClosedMsg{} }
		case key.Matches(msg, s.keys.Prev):
			s.gallery.Prev()
		case key.Matches(msg, s.keys.Next):
			s.gallery.Next()
		case key.Matches(msg, s.keys.Download):
			return s, func() tea.Msg { return GalleryDownloadMsg{} }
		}
		s.updateKeys()
	}
	return s, nil
}

// updateKeys disables navigation at the ends and download while one runs.
func (s *GalleryScreen) updateKeys() {
	s.keys.Prev.SetEnabled(s.gallery.HasPrev())
	s.keys.Next.SetEnabled(s.gallery.HasNext())
	s.keys.Download.SetEnabled(!s.downloading)
}

// SetStatus reports the outcome of a download.
func (s *GalleryScreen) SetStatus(text string) tea.Cmd {
	s.downloading = false
	s.updateKeys()
	s.statusSeq++
	s.status = text
	seq := s.statusSeq
	return tea.Tick(clearStatusAfter, func(time.Time) tea.Msg {
		return galleryStatusExpiredMsg{seq: seq}
	})
}

// View implements tea.Model
func (s *GalleryScreen) View() string {
	img, ok := s.gallery.Current()
	if !ok {
		return style.RenderSubscreen(s.width, s.height, "Images", "No images")
	}

	details := "loading..."
	if info, ok := s.model.images[img.ID]; ok {
		details = info.String()
	}

	arrows := lipgloss.JoinHorizontal(lipgloss.Top,
		arrow("◀", s.gallery.HasPrev()),
		fmt.Sprintf("  %d / %d  ", s.gallery.Position(), s.gallery.Len()),
		arrow("▶", s.gallery.HasNext()),
	)

	status := s.status
	if s.downloading {
		status = "Downloading..."
	}

	body := lipgloss.JoinVertical(
		lipgloss.Left,
		style.SenderStyle.Render("from "+img.Sender),
		style.AttachmentStyle.Render(img.ID),
		details,
		"",
		arrows,
		style.StatusStyle.Render(status),
		s.help.View(s.keys),
	)
	return style.RenderSubscreen(s.width, s.height, "Images", body)
}

func arrow(glyph string, enabled bool) string {
	if !enabled {
		return style.StatusStyle.Render(glyph)
	}
	return style.HotkeyStyle.Render(glyph)
}

// SetSize updates the screen dimensions
func (s *GalleryScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
}
