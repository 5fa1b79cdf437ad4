package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glasschat/glasschat-client/internal/account"
	"github.com/glasschat/glasschat-client/internal/api"
	"github.com/glasschat/glasschat-client/internal/chatsync"
	"github.com/glasschat/glasschat-client/internal/notify"
	"github.com/glasschat/glasschat-client/internal/playback"
	"github.com/glasschat/glasschat-client/internal/realtime"
	"github.com/glasschat/glasschat-client/internal/roster"
	"github.com/glasschat/glasschat-client/internal/schedule"
	"github.com/glasschat/glasschat-client/internal/session"
	"github.com/glasschat/glasschat-client/internal/storage"
	"github.com/glasschat/glasschat-client/internal/style"
)

// Screen types
type Screen int

// ScreenModel is the interface that all screens must implement
type ScreenModel interface {
	Update(tea.Msg) (ScreenModel, tea.Cmd)
	View() string
}

const (
	ScreenLogin Screen = iota
	ScreenFriends
	ScreenChat
	ScreenMusic
	ScreenGallery
	ScreenSettings
	ScreenAccountForm
	ScreenLogs
	ScreenModal
	ScreenFilePicker
	ScreenLoading
)

// Scheduled jobs
const (
	jobHistory = "history"
	jobFriends = "friends"
	jobUnread  = "unread"
)

const (
	maxPollBackoff  = 30 * time.Second
	friendJitter    = time.Second
	markReadTimeout = 5 * time.Second
)

// routeState is the identity the realtime router sees. It is written by the
// UI and read by the event goroutine.
type routeState struct {
	mu       sync.Mutex
	me, peer string
}

func (r *routeState) set(me, peer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.me, r.peer = me, peer
}

func (r *routeState) get() (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.me, r.peer
}

// Model
type Model struct {
	// post delivers messages from background goroutines to the program.
	post func(tea.Msg)

	// Configuration
	cfgPath     string
	prefs       *Settings
	logger      *slog.Logger
	debugBuffer *DebugBuffer
	soundPlayer *SoundPlayer

	msgHandlers map[reflect.Type]msgHandler

	// Screen state
	screenHistory []Screen // Stack of screens, current screen is last element

	width  int
	height int

	ctx    context.Context
	cancel context.CancelFunc

	// Backend and services
	client    *api.Client
	tab       storage.Store
	shared    storage.Store
	sessions  *session.Manager
	roster    *roster.Roster
	account   *account.Panel
	scheduler *schedule.Scheduler
	channel   *realtime.Channel
	player    *playback.Player
	indicator *notify.Indicator

	resumeToken string
	me          string
	route       routeState

	// Open conversation
	chat       *chatsync.Engine
	chatCancel context.CancelFunc
	images     map[string]imageInfo

	// Screens
	loginScreen       *LoginScreen
	friendsScreen     *FriendsScreen
	chatScreen        *ChatScreen
	musicScreen       *MusicScreen
	galleryScreen     *GalleryScreen
	settingsScreen    *SettingsScreen
	accountFormScreen *AccountFormScreen
	logsScreen        *LogsScreen
	modalScreen       *ModalScreen
	filePickerScreen  *FilePickerScreen
	loadingScreen     *LoadingScreen

	// File picker state
	lastPickerLocation string
}

// CurrentScreen returns the current screen, or ScreenLogin if history is empty
func (m *Model) CurrentScreen() Screen {
	if len(m.screenHistory) == 0 {
		return ScreenLogin
	}
	return m.screenHistory[len(m.screenHistory)-1]
}

// PushScreen adds a new screen to history (modal/overlay pattern)
func (m *Model) PushScreen(screen Screen) {
	m.screenHistory = append(m.screenHistory, screen)
}

// PopScreen removes current screen and returns to previous
// Returns the screen we're now on
func (m *Model) PopScreen() Screen {
	if len(m.screenHistory) <= 1 {
		m.screenHistory = []Screen{ScreenLogin}
		return ScreenLogin
	}
	m.screenHistory = m.screenHistory[:len(m.screenHistory)-1]
	return m.screenHistory[len(m.screenHistory)-1]
}

// ReplaceScreen replaces the current screen without adding to history
func (m *Model) ReplaceScreen(screen Screen) {
	if len(m.screenHistory) == 0 {
		m.screenHistory = []Screen{screen}
	} else {
		m.screenHistory[len(m.screenHistory)-1] = screen
	}
}

// NavigateTo clears history and jumps to a screen (hard navigation)
// Used for login and logout
func (m *Model) NavigateTo(screen Screen) {
	m.screenHistory = []Screen{screen}
}

// currentScreen returns the current screen as a ScreenModel interface
func (m *Model) currentScreen() ScreenModel {
	switch m.CurrentScreen() {
	case ScreenLogin:
		return m.loginScreen
	case ScreenFriends:
		return m.friendsScreen
	case ScreenChat:
		return m.chatScreen
	case ScreenMusic:
		return m.musicScreen
	case ScreenGallery:
		return m.galleryScreen
	case ScreenSettings:
		return m.settingsScreen
	case ScreenAccountForm:
		return m.accountFormScreen
	case ScreenLogs:
		return m.logsScreen
	case ScreenModal:
		return m.modalScreen
	case ScreenFilePicker:
		return m.filePickerScreen
	case ScreenLoading:
		return m.loadingScreen
	}
	return nil
}

// NewModel wires the client services from the config at cfgPath. A
// non-empty resumeToken restores a session registered by another client.
func NewModel(cfgPath, resumeToken string, logger *slog.Logger, db *DebugBuffer) (*Model, error) {
	prefs, err := readConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
	}

	client, err := api.NewClient(prefs.ServerURL, api.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	channel, err := realtime.New(prefs.realtimeURL(), logger)
	if err != nil {
		return nil, err
	}

	shared := storage.Open(filepath.Join(prefs.DataDir, "store"), logger)
	tab := storage.NewSafe("tab", storage.NewMemory(), logger)
	sessions := session.NewManager(client, tab, shared, logger)

	sink := playback.NewSink()
	startDir, _ := os.UserHomeDir()
	ctx, cancel := context.WithCancel(context.Background())

	m := &Model{
		msgHandlers:        make(map[reflect.Type]msgHandler),
		cfgPath:            cfgPath,
		prefs:              prefs,
		logger:             logger,
		debugBuffer:        db,
		soundPlayer:        NewSoundPlayer(sink, prefs.EnableSounds, logger),
		ctx:                ctx,
		cancel:             cancel,
		client:             client,
		tab:                tab,
		shared:             shared,
		sessions:           sessions,
		roster:             roster.New(client, logger),
		account:            account.NewPanel(client, sessions, shared, logger),
		scheduler:          schedule.New(logger),
		channel:            channel,
		player:             playback.NewPlayer(client, sink, playback.WithLogger(logger)),
		indicator:          notify.NewIndicator(prefs.EnableNotifications, notify.Desktop(), logger),
		resumeToken:        resumeToken,
		images:             make(map[string]imageInfo),
		lastPickerLocation: startDir,
		screenHistory:      []Screen{ScreenLogin},
	}
	style.ApplyTheme(m.account.Dark())
	return m, nil
}

func (m *Model) Init() tea.Cmd {
	m.loginScreen = NewLoginScreen(m)

	m.registerHandler(tea.WindowSizeMsg{}, m.handleWindowResize)
	m.registerHandler(tea.FocusMsg{}, m.handleFocusMsg)
	m.registerHandler(tea.BlurMsg{}, m.handleBlurMsg)
	m.registerHandler(errorMsg{}, m.handleErrorMsg)
	m.registerHandler(loginResultMsg{}, m.handleLoginResultMsg)
	m.registerHandler(loggedInMsg{}, m.handleLoggedInMsg)
	m.registerHandler(friendsLoadedMsg{}, m.handleFriendsLoadedMsg)
	m.registerHandler(friendChangedMsg{}, m.handleFriendChangedMsg)
	m.registerHandler(chatResetMsg{}, m.handleChatResetMsg)
	m.registerHandler(chatAppendMsg{}, m.handleChatAppendMsg)
	m.registerHandler(imagesLoadedMsg{}, m.handleImagesLoadedMsg)
	m.registerHandler(messageSentMsg{}, m.handleMessageSentMsg)
	m.registerHandler(musicResultsMsg{}, m.handleMusicResultsMsg)
	m.registerHandler(playbackMsg{}, m.handlePlaybackMsg)
	m.registerHandler(lyricsMsg{}, m.handleLyricsMsg)
	m.registerHandler(accountChangedMsg{}, m.handleAccountChangedMsg)
	m.registerHandler(imageDownloadedMsg{}, m.handleImageDownloadedMsg)
	m.registerHandler(ModalButtonClickedMsg{}, m.handleModalButtonClickedMsgHandler)
	m.registerHandler(ModalCancelledMsg{}, m.handleModalCancelledMsgHandler)
	m.registerHandler(LoadingCancelledMsg{}, m.handleLoadingCancelledMsgHandler)

	if m.resumeToken != "" {
		if s, ok := m.sessions.Resume(m.resumeToken); ok {
			return func() tea.Msg { return loggedInMsg{user: s.User} }
		}
		m.logger.Warn("Unknown session token", "token", m.resumeToken)
	}
	return tea.Batch(m.loginScreen.Init(), tea.SetWindowTitle(notify.AppName))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(playbackMsg); !ok {
		m.logger.Debug("Update UI", "tea.Msg", fmt.Sprintf("%T", msg), "currentScreen", m.CurrentScreen())
	}

	// Handle global keybindings
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.String() == "ctrl+q" {
			return m, tea.Quit
		}
		if keyMsg.String() == "ctrl+l" && m.CurrentScreen() != ScreenLogs {
			m.logsScreen = NewLogsScreen(m.debugBuffer, m)
			m.PushScreen(ScreenLogs)
			return m, m.logsScreen.Init()
		}
	}

	// Check if we have a registered handler for this message type
	msgType := reflect.TypeOf(msg)
	if handler, ok := m.msgHandlers[msgType]; ok {
		return handler(msg)
	}

	if screen := m.currentScreen(); screen != nil {
		_, cmd := screen.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) View() string {
	if screen := m.currentScreen(); screen != nil {
		return screen.View()
	}
	return ""
}

// send delivers msg to the running program from a background goroutine.
func (m *Model) send(msg tea.Msg) {
	if m.post != nil {
		m.post(msg)
	}
}

// Start runs the program and the background workers until the user quits.
func (m *Model) Start() error {
	program := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithReportFocus(),
	)
	m.startWorkers(program.Send)

	_, err := program.Run()
	m.shutdown()
	return err
}

// startWorkers runs the scheduler, the push channel and the event
// forwarders. post receives their messages.
func (m *Model) startWorkers(post func(tea.Msg)) {
	m.post = post
	go m.scheduler.Run(m.ctx)
	go m.channel.Run(m.ctx)
	go m.routeEvents(m.ctx)
	go m.forwardPlayback(m.ctx)
}

// shutdown stops the workers. An open conversation is closed with a read
// receipt first.
func (m *Model) shutdown() {
	if eng := m.chat; eng != nil {
		m.scheduler.Remove(jobHistory)
		eng.Close()
		m.chatCancel()
		m.chat = nil

		ctx, cancel := context.WithTimeout(m.ctx, markReadTimeout)
		if err := eng.MarkRead(ctx); err != nil {
			m.logger.Warn("Read receipt on quit failed", "peer", eng.Peer(), "err", err)
		}
		cancel()
	}
	m.cancel()
	m.player.Close()
}

// routeEvents turns realtime pushes into scheduler triggers. Pushed
// payloads are never rendered; the poll that follows renders them.
func (m *Model) routeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.channel.Events():
			me, peer := m.route.get()
			switch realtime.Route(ev, me, peer) {
			case realtime.ActionPollHistory:
				m.scheduler.Trigger(jobHistory)
			case realtime.ActionRefreshFriends:
				m.scheduler.Trigger(jobFriends)
			}
		}
	}
}

func (m *Model) forwardPlayback(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.player.Events():
			m.send(playbackMsg{ev: ev})
		}
	}
}

// startBackgroundJobs schedules the friend list refresh and the watch on
// the shared unread signal for user me.
func (m *Model) startBackgroundJobs(me string) {
	m.scheduler.Add(schedule.Job{
		Name:       jobFriends,
		Interval:   m.prefs.FriendRefreshInterval,
		Jitter:     friendJitter,
		MaxBackoff: maxPollBackoff,
		Immediate:  true,
		Run: func(ctx context.Context) error {
			entries, err := m.roster.Refresh(ctx, me)
			if err != nil {
				return err
			}
			m.send(friendsLoadedMsg{entries: entries})
			return nil
		},
	})

	last, _ := m.shared.Get(storage.KeyUnreadChanged)
	m.scheduler.Add(schedule.Job{
		Name:     jobUnread,
		Interval: m.prefs.FriendRefreshInterval,
		Run: func(ctx context.Context) error {
			if v, _ := m.shared.Get(storage.KeyUnreadChanged); v != last {
				last = v
				m.scheduler.Trigger(jobFriends)
			}
			return nil
		},
	})
}

// joinUserRoom subscribes to pushes addressed to user, such as unread
// updates for the friend list.
func (m *Model) joinUserRoom(user string) {
	if err := m.channel.Join(realtime.Room{Username: user}); err != nil {
		m.logger.Debug("Joining user room deferred", "user", user, "err", err)
	}
}

func (m *Model) leaveUserRoom(user string) {
	if err := m.channel.Leave(realtime.Room{Username: user}); err != nil {
		m.logger.Debug("Leaving user room", "user", user, "err", err)
	}
}

func (m *Model) stopBackgroundJobs() {
	m.scheduler.Remove(jobFriends)
	m.scheduler.Remove(jobUnread)
	m.scheduler.Remove(jobHistory)
}

// openChat starts syncing the conversation with peer and shows it.
func (m *Model) openChat(peer string) tea.Cmd {
	closeCmd := m.closeChat()

	ctx, cancel := context.WithCancel(m.ctx)
	renderer := newChatRenderer(peer)
	eng := chatsync.New(chatsync.Config{
		Client:   m.client,
		Me:       m.me,
		Peer:     peer,
		Renderer: renderer,
		Shared:   m.shared,
		Logger:   m.logger,
	})
	m.chat = eng
	m.chatCancel = cancel
	go renderer.forward(ctx, m.send)

	m.route.set(m.me, peer)
	if err := m.channel.Join(realtime.Room{Username: m.me, Friend: peer}); err != nil {
		m.logger.Debug("Joining room deferred", "peer", peer, "err", err)
	}

	m.scheduler.Add(schedule.Job{
		Name:       jobHistory,
		Interval:   m.prefs.PollInterval,
		MaxBackoff: maxPollBackoff,
		Run: func(ctx context.Context) error {
			_, err := eng.CheckForNewMessages(ctx)
			return err
		},
	})

	m.chatScreen = NewChatScreen(peer, m)
	m.PushScreen(ScreenChat)
	title := m.indicator.SetPeer(peer)

	return tea.Batch(
		closeCmd,
		m.chatScreen.Init(),
		tea.SetWindowTitle(title),
		func() tea.Msg {
			if err := eng.LoadHistory(ctx); err != nil {
				// The next poll retries the load.
				return nil
			}
			_ = eng.MarkRead(ctx)
			return nil
		},
	)
}

// closeChat stops syncing the open conversation and sends a read receipt.
func (m *Model) closeChat() tea.Cmd {
	if m.chat == nil {
		return nil
	}
	eng := m.chat
	m.scheduler.Remove(jobHistory)
	if err := m.channel.Leave(realtime.Room{Username: eng.Me(), Friend: eng.Peer()}); err != nil {
		m.logger.Debug("Leaving room", "peer", eng.Peer(), "err", err)
	}
	eng.Close()
	m.chatCancel()
	m.chat = nil
	m.chatCancel = nil
	m.player.Stop()
	m.route.set(m.me, "")
	m.scheduler.Trigger(jobFriends)

	title := m.indicator.SetPeer("")
	return tea.Batch(tea.SetWindowTitle(title), func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, markReadTimeout)
		defer cancel()
		_ = eng.MarkRead(ctx)
		return nil
	})
}

// markReadCmd sends a read receipt for the open conversation.
func (m *Model) markReadCmd() tea.Cmd {
	eng := m.chat
	if eng == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		_ = eng.MarkRead(ctx)
		return nil
	}
}

// logout ends the session and returns to the login screen.
func (m *Model) logout() tea.Cmd {
	closeCmd := m.closeChat()
	m.stopBackgroundJobs()
	m.leaveUserRoom(m.me)
	m.account.Logout()
	m.me = ""
	m.route.set("", "")
	m.images = make(map[string]imageInfo)
	m.friendsScreen = nil

	m.loginScreen = NewLoginScreen(m)
	m.NavigateTo(ScreenLogin)
	return tea.Batch(closeCmd, m.loginScreen.Init(), tea.SetWindowTitle(notify.AppName))
}
