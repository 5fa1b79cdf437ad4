package realtime

import "encoding/json"

// Action is what the client does in response to an event.
type Action int

const (
	ActionNone Action = iota
	// ActionPollHistory checks the open conversation for new messages.
	ActionPollHistory
	// ActionRefreshFriends reloads the friend list and its badges.
	ActionRefreshFriends
)

// Route decides how to react to ev for user me with peer open (empty when
// no conversation is open).
func Route(ev Event, me, peer string) Action {
	switch ev.Name {
	case EventNewMessage:
		var m NewMessage
		if err := json.Unmarshal(ev.Data, &m); err != nil || peer == "" {
			return ActionRefreshFriends
		}
		if (m.Sender == peer && (m.Recipient == me || m.Recipient == "")) ||
			(m.Sender == me && m.Recipient == peer) {
			return ActionPollHistory
		}
		return ActionRefreshFriends
	case EventUnreadUpdate:
		return ActionRefreshFriends
	}
	return ActionNone
}
