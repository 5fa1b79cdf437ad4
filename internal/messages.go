package internal

import (
	"github.com/glasschat/glasschat-client/internal/api"
	"github.com/glasschat/glasschat-client/internal/chatsync"
	"github.com/glasschat/glasschat-client/internal/playback"
	"github.com/glasschat/glasschat-client/internal/roster"
)

// errorMsg reports a failed user action. It is shown in a modal.
type errorMsg struct {
	op  string
	err error
}

// loginResultMsg is the outcome of a login attempt.
type loginResultMsg struct {
	user string
	err  error
}

// loggedInMsg moves a logged in user on to the friend list.
type loggedInMsg struct {
	user string
}

type friendsLoadedMsg struct {
	entries []roster.Entry
}

// friendChangedMsg reports the outcome of an add, remove or clear.
type friendChangedMsg struct {
	status string
	err    error
}

type chatResetMsg struct {
	peer  string
	items []chatsync.Item
}

type chatAppendMsg struct {
	peer  string
	items []chatsync.Item
}

// imagesLoadedMsg is sent once every image of a rendered batch has loaded
// or failed.
type imagesLoadedMsg struct {
	peer    string
	results []chatsync.ImageResult
}

type messageSentMsg struct {
	peer string
}

type musicResultsMsg struct {
	keyword string
	tracks  []api.Track
	err     error
}

type playbackMsg struct {
	ev playback.Event
}

type lyricsMsg struct {
	id     api.ID
	lyrics playback.Lyrics
}

// accountChangedMsg reports a successful account change. user is the
// handle after the change.
type accountChangedMsg struct {
	user   string
	status string
}

type imageDownloadedMsg struct {
	path string
	err  error
}
