package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glasschat/glasschat-client/internal/api"
	"github.com/glasschat/glasschat-client/internal/chatsync"
	"github.com/glasschat/glasschat-client/internal/content"
	"github.com/glasschat/glasschat-client/internal/gallery"
	"github.com/glasschat/glasschat-client/internal/playback"
	"github.com/glasschat/glasschat-client/internal/style"
)

type msgHandler = func(msg tea.Msg) (tea.Model, tea.Cmd)

// registerHandler registers a message handler for the given message type.
// The msgType parameter should be a zero-value instance of the message type.
func (m *Model) registerHandler(msgType tea.Msg, handler msgHandler) {
	t := reflect.TypeOf(msgType)
	m.msgHandlers[t] = handler
}

func (m *Model) handleWindowResize(msg tea.Msg) (tea.Model, tea.Cmd) {
	windowMsg := msg.(tea.WindowSizeMsg)
	m.width = windowMsg.Width
	m.height = windowMsg.Height
	m.resizeAllScreens(windowMsg.Width, windowMsg.Height)
	return m, nil
}

func (m *Model) resizeAllScreens(w, h int) {
	if m.loginScreen != nil {
		m.loginScreen.SetSize(w, h)
	}
	if m.friendsScreen != nil {
		m.friendsScreen.SetSize(w, h)
	}
	if m.chatScreen != nil {
		m.chatScreen.SetSize(w, h)
	}
	if m.musicScreen != nil {
		m.musicScreen.SetSize(w, h)
	}
	if m.galleryScreen != nil {
		m.galleryScreen.SetSize(w, h)
	}
	if m.settingsScreen != nil {
		m.settingsScreen.SetSize(w, h)
	}
	if m.accountFormScreen != nil {
		m.accountFormScreen.SetSize(w, h)
	}
	if m.logsScreen != nil {
		m.logsScreen.SetSize(w, h)
	}
	if m.filePickerScreen != nil {
		m.filePickerScreen.SetSize(w, h)
	}
	if m.modalScreen != nil {
		m.modalScreen.SetSize(w, h)
	}
	if m.loadingScreen != nil {
		m.loadingScreen.SetSize(w, h)
	}
}

func (m *Model) handleFocusMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	title := m.indicator.Focus()
	return m, tea.Batch(tea.SetWindowTitle(title), m.markReadCmd())
}

func (m *Model) handleBlurMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.indicator.Blur()
	return m, nil
}

func (m *Model) handleErrorMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	errorMessage := msg.(errorMsg)
	m.logger.Error("Action failed", "op", errorMessage.op, "err", errorMessage.err)

	// Pop loading screen if it's active, so error modal replaces it properly
	if m.CurrentScreen() == ScreenLoading {
		m.PopScreen()
	}
	if m.chatScreen != nil {
		m.chatScreen.SetSending(false)
	}

	m.modalScreen = NewModalScreen(ModalTypeError, errorMessage.op+" failed", api.ErrorText(errorMessage.err), []string{"Close"}, m)
	m.PushScreen(ScreenModal)
	return m, m.modalScreen.Init()
}

// Login

func (m *Model) handleLoginSubmitMsg(msg LoginSubmitMsg) tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	var loadingCmd tea.Cmd
	m.loadingScreen, loadingCmd = NewLoadingScreen("Logging in as "+msg.Username, cancel, m)
	m.PushScreen(ScreenLoading)

	return tea.Batch(loadingCmd, func() tea.Msg {
		defer cancel()
		s, err := m.sessions.Login(ctx, msg.Username, msg.Password)
		if err != nil {
			return loginResultMsg{err: err}
		}
		return loginResultMsg{user: s.User}
	})
}

func (m *Model) handleLoginResultMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	result := msg.(loginResultMsg)
	if m.CurrentScreen() == ScreenLoading {
		m.PopScreen()
	}
	if m.loginScreen == nil {
		return m, nil
	}
	if errors.Is(result.err, context.Canceled) {
		m.logger.Info("Login cancelled")
		return m, nil
	}
	if result.err != nil {
		m.logger.Info("Login failed", "err", result.err)
		return m, m.loginScreen.Failed(loginFailureText(result.err))
	}
	return m, m.loginScreen.Succeeded(result.user)
}

func loginFailureText(err error) string {
	switch {
	case errors.Is(err, api.ErrUserInput):
		return api.ErrorText(err)
	case errors.Is(err, api.ErrTransient):
		return "Could not reach the server"
	default:
		return "Wrong username or password"
	}
}

func (m *Model) handleLoggedInMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	user := msg.(loggedInMsg).user
	m.me = user
	m.route.set(user, "")
	m.joinUserRoom(user)
	m.startBackgroundJobs(user)

	m.friendsScreen = NewFriendsScreen(m)
	m.NavigateTo(ScreenFriends)
	return m, tea.Batch(m.friendsScreen.Init(), tea.SetWindowTitle(m.indicator.SetPeer("")))
}

// Friends

func (m *Model) handleFriendsLoadedMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.friendsScreen == nil {
		return m, nil
	}
	return m, m.friendsScreen.SetEntries(msg.(friendsLoadedMsg).entries)
}

func (m *Model) handleFriendSelectedMsg(msg FriendSelectedMsg) tea.Cmd {
	return m.openChat(msg.Handle)
}

func (m *Model) handleFriendAddMsg(msg FriendAddMsg) tea.Cmd {
	ctx, me := m.ctx, m.me
	return func() tea.Msg {
		if err := m.roster.AddFriend(ctx, me, msg.Name); err != nil {
			return friendChangedMsg{err: err}
		}
		return friendChangedMsg{status: "Added " + msg.Name}
	}
}

func (m *Model) handleFriendRemoveMsg(msg FriendRemoveMsg) tea.Cmd {
	m.modalScreen = NewModalScreen(ModalTypeRemoveFriend, "Remove friend",
		fmt.Sprintf("Remove %s from your friends?", msg.Handle),
		[]string{"Cancel", "Remove"}, m)
	m.modalScreen.subject = msg.Handle
	m.PushScreen(ScreenModal)
	return m.modalScreen.Init()
}

func (m *Model) handleFriendClearHistoryMsg(msg FriendClearHistoryMsg) tea.Cmd {
	m.modalScreen = NewModalScreen(ModalTypeClearHistory, "Clear history",
		fmt.Sprintf("Delete every message between you and %s?", msg.Handle),
		[]string{"Cancel", "Clear"}, m)
	m.modalScreen.subject = msg.Handle
	m.PushScreen(ScreenModal)
	return m.modalScreen.Init()
}

func (m *Model) handleFriendChangedMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	changed := msg.(friendChangedMsg)
	if m.friendsScreen == nil {
		return m, nil
	}
	if changed.err != nil {
		m.logger.Info("Friend change rejected", "err", changed.err)
		return m, m.friendsScreen.SetStatus(api.ErrorText(changed.err))
	}
	m.scheduler.Trigger(jobFriends)
	return m, m.friendsScreen.SetStatus(changed.status)
}

func (m *Model) handleFriendsOpenSettingsMsg() tea.Cmd {
	m.settingsScreen = NewSettingsScreen(m)
	m.PushScreen(ScreenSettings)
	return m.settingsScreen.Init()
}

func (m *Model) handleFriendsLogoutMsg() tea.Cmd {
	m.modalScreen = NewModalScreen(ModalTypeLogout, "Log out", "Log out of glasschat?", []string{"Cancel", "Log out"}, m)
	m.PushScreen(ScreenModal)
	return m.modalScreen.Init()
}

// Chat

func (m *Model) handleChatResetMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	reset := msg.(chatResetMsg)
	if !m.isOpenChat(reset.peer) {
		return m, nil
	}
	m.chatScreen.SetItems(reset.items)
	return m, m.prefetchImages(reset.peer, reset.items)
}

func (m *Model) handleChatAppendMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	appended := msg.(chatAppendMsg)
	if !m.isOpenChat(appended.peer) {
		return m, nil
	}
	m.chatScreen.AppendItems(appended.items)

	cmds := []tea.Cmd{m.prefetchImages(appended.peer, appended.items)}
	delta := chatsync.Delta{Items: appended.items}
	if delta.LastFromPeer() {
		last, _ := delta.Last()
		preview := content.Summary(last.Content)
		incoming := 0
		for _, it := range appended.items {
			if !it.Own {
				incoming++
			}
		}
		m.soundPlayer.PlayAsync()
		if title, changed := m.indicator.Incoming(incoming, preview); changed {
			cmds = append(cmds, tea.SetWindowTitle(title))
		}
		if m.indicator.Focused() {
			cmds = append(cmds, m.markReadCmd())
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) isOpenChat(peer string) bool {
	return m.chat != nil && m.chatScreen != nil && m.chat.Peer() == peer
}

// prefetchImages loads the images of a rendered batch that are not cached
// yet. The chat scrolls to the bottom once all of them are done.
func (m *Model) prefetchImages(peer string, items []chatsync.Item) tea.Cmd {
	var missing []chatsync.Item
	for _, it := range items {
		if it.Content.Kind != content.KindImage {
			continue
		}
		if _, ok := m.images[it.Content.ImageID]; !ok {
			missing = append(missing, it)
		}
	}
	if len(missing) == 0 {
		return func() tea.Msg { return imagesLoadedMsg{peer: peer} }
	}

	ctx, me, client := m.ctx, m.me, m.client
	return func() tea.Msg {
		results := chatsync.PrefetchImages(ctx, missing, func(ctx context.Context, id string) ([]byte, error) {
			data, _, err := client.Image(ctx, me, id)
			return data, err
		})
		return imagesLoadedMsg{peer: peer, results: results}
	}
}

func (m *Model) handleImagesLoadedMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	loaded := msg.(imagesLoadedMsg)
	for _, r := range loaded.results {
		if r.Err != nil {
			m.logger.Debug("Image failed to load", "id", r.ID, "err", r.Err)
		}
		m.images[r.ID] = describeImage(r.Data, r.Err)
	}
	if m.isOpenChat(loaded.peer) {
		m.chatScreen.ImagesLoaded()
	}
	return m, nil
}

func (m *Model) handleChatSendMsg(msg ChatSendMsg) tea.Cmd {
	eng := m.chat
	if eng == nil {
		return nil
	}
	m.chatScreen.SetSending(true)
	ctx := m.ctx
	return func() tea.Msg {
		if err := eng.Send(ctx, msg.Text); err != nil {
			return errorMsg{op: "Send message", err: err}
		}
		m.hintPeer(eng, msg.Text)
		return messageSentMsg{peer: eng.Peer()}
	}
}

// hintPeer tells the push channel a message was stored so the peer's client
// polls right away. The message itself always travels over HTTP.
func (m *Model) hintPeer(eng *chatsync.Engine, body string) {
	if err := m.channel.SendMessage(eng.Me(), eng.Peer(), body); err != nil {
		m.logger.Debug("Push hint skipped", "err", err)
	}
}

func (m *Model) handleMessageSentMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	sent := msg.(messageSentMsg)
	if m.isOpenChat(sent.peer) {
		m.chatScreen.SetSending(false)
		m.chatScreen.ClearInput()
	}
	m.scheduler.Trigger(jobHistory)
	return m, nil
}

func (m *Model) handleChatCloseMsg() tea.Cmd {
	cmd := m.closeChat()
	m.chatScreen = nil
	m.galleryScreen = nil
	m.musicScreen = nil
	m.PopScreen()
	return cmd
}

func (m *Model) handleChatOpenImageMsg(msg ChatOpenImageMsg) tea.Cmd {
	if m.chatScreen == nil {
		return nil
	}
	g := gallery.Collect(m.chatScreen.Items())
	if g.Len() == 0 {
		return m.chatScreen.SetStatus("No images in this conversation")
	}
	if msg.Index < 0 || !g.Open(msg.Index) {
		for g.Next() {
		}
	}
	m.galleryScreen = NewGalleryScreen(g, m)
	m.PushScreen(ScreenGallery)
	return m.galleryScreen.Init()
}

func (m *Model) handleChatPlayMsg(msg ChatPlayMsg) tea.Cmd {
	if st := m.player.Status(); st.Control == msg.Control && st.State != playback.Stopped && st.State != playback.Loading {
		if _, err := m.player.Toggle(); err != nil {
			m.logger.Debug("Toggle failed", "err", err)
		}
		return nil
	}

	ctx, player, client := m.ctx, m.player, m.client
	return tea.Batch(
		func() tea.Msg {
			err := player.Play(ctx, msg.Control, msg.Track)
			if err != nil && !errors.Is(err, context.Canceled) {
				return errorMsg{op: "Play " + msg.Track.Name, err: err}
			}
			return nil
		},
		func() tea.Msg {
			text, err := client.Lyric(ctx, msg.Track.ID)
			if err != nil {
				m.logger.Debug("No lyrics", "track", msg.Track.ID, "err", err)
				return nil
			}
			return lyricsMsg{id: msg.Track.ID, lyrics: playback.ParseLRC(text)}
		},
	)
}

func (m *Model) handleChatToggleMsg() {
	if _, err := m.player.Toggle(); err != nil && !errors.Is(err, playback.ErrIdle) {
		m.logger.Warn("Toggle failed", "err", err)
	}
}

func (m *Model) handleChatSeekMsg(msg ChatSeekMsg) {
	if err := m.player.SeekFraction(msg.Fraction); err != nil && !errors.Is(err, playback.ErrIdle) {
		m.logger.Warn("Seek failed", "err", err)
	}
}

func (m *Model) handlePlaybackMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.chatScreen != nil {
		m.chatScreen.SetPlayback(msg.(playbackMsg).ev)
	}
	return m, nil
}

func (m *Model) handleLyricsMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	l := msg.(lyricsMsg)
	if m.chatScreen != nil {
		m.chatScreen.SetLyrics(l.id, l.lyrics)
	}
	return m, nil
}

func (m *Model) handleChatUploadMsg() tea.Cmd {
	m.filePickerScreen = NewFilePickerScreen(m.lastPickerLocation, m)
	m.PushScreen(ScreenFilePicker)
	return m.filePickerScreen.Init()
}

func (m *Model) handleFilePickerFileSelectedMsg(msg FilePickerFileSelectedMsg) tea.Cmd {
	if m.filePickerScreen != nil {
		m.lastPickerLocation = m.filePickerScreen.GetLastLocation()
	}
	m.PopScreen()

	eng := m.chat
	if eng == nil {
		return nil
	}
	m.chatScreen.SetSending(true)
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		f, err := os.Open(msg.Path)
		if err != nil {
			return errorMsg{op: "Upload image", err: err}
		}
		defer func() { _ = f.Close() }()

		id, err := client.UploadImage(ctx, eng.Me(), filepath.Base(msg.Path), f)
		if err != nil {
			return errorMsg{op: "Upload image", err: err}
		}
		body := content.Image(id)
		if err := eng.SendContent(ctx, body); err != nil {
			return errorMsg{op: "Send image", err: err}
		}
		m.hintPeer(eng, body)
		return messageSentMsg{peer: eng.Peer()}
	}
}

func (m *Model) handleFilePickerCancelledMsg() {
	if m.filePickerScreen != nil {
		m.lastPickerLocation = m.filePickerScreen.GetLastLocation()
	}
	m.PopScreen()
}

// Music

func (m *Model) handleChatOpenMusicMsg() tea.Cmd {
	m.musicScreen = NewMusicScreen(m)
	m.PushScreen(ScreenMusic)
	return m.musicScreen.Init()
}

func (m *Model) handleMusicSearchMsg(msg MusicSearchMsg) tea.Cmd {
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		tracks, err := client.SearchMusic(ctx, msg.Keyword)
		return musicResultsMsg{keyword: msg.Keyword, tracks: tracks, err: err}
	}
}

func (m *Model) handleMusicResultsMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	results := msg.(musicResultsMsg)
	if results.err != nil {
		m.logger.Warn("Music search failed", "keyword", results.keyword, "err", results.err)
	}
	if m.musicScreen == nil {
		return m, nil
	}
	return m, m.musicScreen.SetResults(results.keyword, results.tracks, results.err)
}

func (m *Model) handleMusicSelectedMsg(msg MusicSelectedMsg) tea.Cmd {
	m.PopScreen()
	eng := m.chat
	if eng == nil {
		return nil
	}
	body, err := content.Music(msg.Track)
	if err != nil {
		return func() tea.Msg { return errorMsg{op: "Share music", err: err} }
	}
	m.chatScreen.SetSending(true)
	ctx := m.ctx
	return func() tea.Msg {
		if err := eng.SendContent(ctx, body); err != nil {
			return errorMsg{op: "Share music", err: err}
		}
		m.hintPeer(eng, body)
		return messageSentMsg{peer: eng.Peer()}
	}
}

func (m *Model) handleMusicCancelledMsg() {
	m.PopScreen()
}

// Gallery

func (m *Model) handleGalleryClosedMsg() {
	m.PopScreen()
}

func (m *Model) handleGalleryDownloadMsg(g *gallery.Gallery) tea.Cmd {
	ctx, me, client, dir := m.ctx, m.me, m.client, m.prefs.DownloadDir
	return func() tea.Msg {
		path, err := g.Download(ctx, func(ctx context.Context, id string) ([]byte, string, error) {
			return client.Image(ctx, me, id)
		}, dir)
		return imageDownloadedMsg{path: path, err: err}
	}
}

func (m *Model) handleImageDownloadedMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	done := msg.(imageDownloadedMsg)
	if done.err != nil {
		return m.handleErrorMsg(errorMsg{op: "Download image", err: done.err})
	}
	m.logger.Info("Image saved", "path", done.path)
	if m.galleryScreen != nil {
		return m, m.galleryScreen.SetStatus("Saved to " + done.path)
	}
	return m, nil
}

// Settings

func (m *Model) handleSettingsToggleThemeMsg() {
	dark := m.account.ToggleTheme()
	style.ApplyTheme(dark)
	if m.chatScreen != nil {
		m.chatScreen.rebuildChatContent()
	}
}

func (m *Model) handleSettingsToggleSoundsMsg() tea.Cmd {
	m.prefs.EnableSounds = !m.prefs.EnableSounds
	m.soundPlayer.SetEnabled(m.prefs.EnableSounds)
	return m.persistPreferences()
}

func (m *Model) handleSettingsToggleNotificationsMsg() tea.Cmd {
	m.prefs.EnableNotifications = !m.prefs.EnableNotifications
	m.indicator.SetAllowed(m.prefs.EnableNotifications)
	return m.persistPreferences()
}

func (m *Model) persistPreferences() tea.Cmd {
	if err := m.savePreferences(); err != nil {
		return func() tea.Msg { return errorMsg{op: "Save settings", err: err} }
	}
	return nil
}

func (m *Model) handleSettingsEditMsg(msg SettingsEditMsg) tea.Cmd {
	var cmd tea.Cmd
	m.accountFormScreen, cmd = NewAccountFormScreen(msg.Field, m)
	m.PushScreen(ScreenAccountForm)
	return cmd
}

func (m *Model) handleSettingsCancelledMsg() {
	m.PopScreen()
}

func (m *Model) handleAccountFormSubmitMsg(msg AccountFormSubmitMsg) tea.Cmd {
	m.PopScreen()
	ctx, panel := m.ctx, m.account
	return func() tea.Msg {
		switch msg.Field {
		case AccountFieldUsername:
			if err := panel.ChangeUsername(ctx, msg.Value); err != nil {
				return errorMsg{op: "Change username", err: err}
			}
			return accountChangedMsg{user: msg.Value, status: "Username changed"}
		default:
			if err := panel.ChangePassword(ctx, msg.Value); err != nil {
				return errorMsg{op: "Change password", err: err}
			}
			return accountChangedMsg{status: "Password changed"}
		}
	}
}

func (m *Model) handleAccountFormCancelledMsg() {
	m.PopScreen()
}

func (m *Model) handleAccountChangedMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	changed := msg.(accountChangedMsg)
	if user, ok := m.sessions.CurrentUser(); ok && user != m.me {
		m.leaveUserRoom(m.me)
		m.joinUserRoom(user)
		m.me = user
		m.route.set(user, "")
		m.startBackgroundJobs(user)
	}
	if m.settingsScreen != nil {
		return m, m.settingsScreen.SetStatus(changed.status)
	}
	return m, nil
}

// Logs

func (m *Model) handleLogsCancelledMsg() {
	m.PopScreen()
}

// Modal

// handleModalCancelledMsgHandler wraps handleModalCancelledMsg for the msgHandler signature
func (m *Model) handleModalCancelledMsgHandler(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.PopScreen()
	return m, nil
}

// handleModalButtonClickedMsgHandler wraps handleModalButtonClickedMsg for the msgHandler signature
func (m *Model) handleModalButtonClickedMsgHandler(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m, m.handleModalButtonClickedMsg(msg.(ModalButtonClickedMsg))
}

// handleLoadingCancelledMsgHandler handles when the loading screen is cancelled (ESC pressed)
func (m *Model) handleLoadingCancelledMsgHandler(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.PopScreen()
	return m, nil
}

// handleModalButtonClickedMsg handles modal button clicks
func (m *Model) handleModalButtonClickedMsg(msg ModalButtonClickedMsg) tea.Cmd {
	m.PopScreen()

	ctx, me := m.ctx, m.me
	switch msg.Type {
	case ModalTypeRemoveFriend:
		if msg.ButtonClicked != "Remove" {
			return nil
		}
		return func() tea.Msg {
			if err := m.roster.RemoveFriend(ctx, me, msg.Subject); err != nil {
				return friendChangedMsg{err: err}
			}
			return friendChangedMsg{status: "Removed " + msg.Subject}
		}

	case ModalTypeClearHistory:
		if msg.ButtonClicked != "Clear" {
			return nil
		}
		return func() tea.Msg {
			if err := m.roster.ClearHistory(ctx, me, msg.Subject); err != nil {
				return friendChangedMsg{err: err}
			}
			return friendChangedMsg{status: "Cleared history with " + msg.Subject}
		}

	case ModalTypeLogout:
		if msg.ButtonClicked == "Log out" {
			return m.logout()
		}
	}
	return nil
}

// describeImage summarises fetched image bytes for display.
func describeImage(data []byte, err error) imageInfo {
	if err != nil {
		return imageInfo{err: err}
	}
	return decodeImageInfo(data)
}

// clearStatusAfter is how long inline status lines stay up.
const clearStatusAfter = 3 * time.Second
