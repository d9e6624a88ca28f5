package session

import "collabchat/internal/protocol"

// NotifyLevel classifies transient user notifications.
type NotifyLevel string

const (
	NotifyInfo    NotifyLevel = "info"
	NotifySuccess NotifyLevel = "success"
	NotifyError   NotifyLevel = "error"
)

// Presenter is the narrow render surface the manager drives. The manager
// only ever pushes snapshots into it; it never queries the presenter, and
// presenter implementations must not call back into the manager.
type Presenter interface {
	// RenderRoomList replaces the displayed room list snapshot.
	RenderRoomList(rooms []protocol.Room)

	// RenderRoom shows a freshly joined room with its replayed backlog.
	RenderRoom(room protocol.Room, backlog []protocol.Message)

	// ResetRoom returns the room view to its empty, no-membership state.
	ResetRoom()

	// AppendMessage appends one message to the current transcript view.
	AppendMessage(msg protocol.Message)

	// SetPresence replaces the displayed presence set of the current room.
	SetPresence(users []string)

	// SetConnectionStatus updates the connection status text.
	SetConnectionStatus(status string)

	// SetControlsEnabled toggles the send/room controls. Controls are
	// disabled on every transition away from the connected state.
	SetControlsEnabled(enabled bool)

	// Notify shows a transient toast-style notification.
	Notify(level NotifyLevel, message string)
}

// Store is the durable local key-value store used to persist the username
// across sessions.
type Store interface {
	// Get returns the stored value for key, or "" if the key is absent.
	Get(key string) (string, error)

	// Set stores value under key, replacing any existing value.
	Set(key, value string) error
}
