/*
Package hub contains the server-side core of the collaborative chat: connected
users, rooms, and message broadcasting.

This file defines the Hub struct, the central registry of identified
connections and rooms. The hub is the single authority over room membership
and message ordering: every state change happens under its lock and is pushed
to clients as a server event, so all participants converge on the same view.
*/
package hub

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"collabchat/internal/history"
	"collabchat/internal/pkg/errs"
	"collabchat/internal/pkg/logx"
	"collabchat/internal/pkg/randx"
	"collabchat/internal/protocol"
)

// storeTimeout bounds history store calls made while serving a frame.
const storeTimeout = 5 * time.Second

// room tracks one chat room: its metadata and its members in join order.
type room struct {
	meta    protocol.Room
	members []string
}

// Hub is the central registry of connections and rooms.
type Hub struct {
	// mu protects conns, rooms, roomOrder, and the identity fields of every Conn.
	mu sync.Mutex

	// conns maps user ID to the active connection of that user.
	conns map[string]*Conn

	// rooms maps room ID to room state.
	rooms map[string]*room

	// roomOrder preserves creation order for deterministic room listings.
	roomOrder []string

	// store persists and replays message history.
	store history.Store

	// structured logger with hub context.
	logger zerolog.Logger
}

// NewHub constructs a Hub backed by the given history store.
func NewHub(store history.Store) *Hub {
	return &Hub{
		conns:  make(map[string]*Conn),
		rooms:  make(map[string]*room),
		store:  store,
		logger: logx.Logger().With().Str("component", "hub").Logger(),
	}
}

// HandleUserConnect identifies a connection. A second connection for the same
// user ID replaces the first. The server answers with the current room list.
func (h *Hub) HandleUserConnect(c *Conn, userID, username string) {
	userID = strings.TrimSpace(userID)
	username = strings.TrimSpace(username)

	if username == "" || !randx.IsValidUserID(userID) {
		c.sendError(errs.NewError(errs.ErrInvalidParams).Message)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.conns[userID]; ok && old != c {
		h.logger.Warn().Str("user_id", userID).Msg("User ID already connected. Replacing old connection.")
		h.removeFromRoomLocked(old)
		delete(h.conns, userID)
		old.closeSend()
	}

	c.userID = userID
	c.username = username
	c.logger = c.logger.With().Str("user_id", userID).Logger()
	h.conns[userID] = c

	h.logger.Info().Str("user_id", userID).Str("username", username).Msg("User connected")

	c.sendFrame(h.roomsListLocked())
}

// HandleUpdateUsername updates the display name of an identified connection.
func (h *Hub) HandleUpdateUsername(c *Conn, username string) {
	username = strings.TrimSpace(username)
	if username == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.identifiedLocked(c) {
		return
	}

	c.username = username
}

// HandleGetRooms answers with the current room list snapshot.
func (h *Hub) HandleGetRooms(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.identifiedLocked(c) {
		c.sendError(errs.NewError(errs.ErrNotIdentified).Message)
		return
	}

	c.sendFrame(h.roomsListLocked())
}

// HandleCreateRoom creates a new room and confirms it to the creator only.
// Clients refresh their room list in response to the confirmation.
func (h *Hub) HandleCreateRoom(c *Conn, name, description string, private bool) {
	name = strings.TrimSpace(name)

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.identifiedLocked(c) {
		c.sendError(errs.NewError(errs.ErrNotIdentified).Message)
		return
	}

	if name == "" {
		c.sendError(errs.NewError(errs.ErrRoomNameRequired).Message)
		return
	}

	meta := protocol.Room{
		ID:          randx.RoomID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Private:     private,
		CreatedAt:   time.Now().UTC(),
	}

	h.rooms[meta.ID] = &room{meta: meta}
	h.roomOrder = append(h.roomOrder, meta.ID)

	h.logger.Info().Str("room_id", meta.ID).Str("name", meta.Name).Msg("Room created")

	c.sendFrame(protocol.RoomCreatedFrame{
		Type: protocol.TagRoomCreated,
		Room: meta,
	})
}

// HandleJoinRoom moves the user into the given room. Any current membership is
// left implicitly first, with a user_left broadcast to the old room. The
// joining user receives the room metadata, the replayed backlog, and the
// presence set; everyone else in the room receives user_joined.
func (h *Hub) HandleJoinRoom(c *Conn, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.identifiedLocked(c) {
		c.sendError(errs.NewError(errs.ErrNotIdentified).Message)
		return
	}

	r, ok := h.rooms[roomID]
	if !ok {
		c.sendError(errs.NewError(errs.ErrRoomNotFound).Message)
		return
	}

	h.removeFromRoomLocked(c)

	r.members = append(r.members, c.userID)
	c.currentRoom = roomID

	backlog := h.recentHistory(roomID)
	users := h.usersLocked(roomID)

	c.sendFrame(protocol.RoomJoinedFrame{
		Type:     protocol.TagRoomJoined,
		Room:     h.roomSnapshotLocked(r),
		Messages: backlog,
		Users:    users,
	})

	h.broadcastLocked(roomID, protocol.UserEventFrame{
		Type:     protocol.TagUserJoined,
		Username: c.username,
		Users:    users,
	}, c.userID)

	h.logger.Info().
		Str("user_id", c.userID).
		Str("room_id", roomID).
		Int("total_users", len(r.members)).
		Msg("User joined room")
}

// HandleLeaveRoom removes the user from their current room, acknowledges with
// room_left, and broadcasts user_left to the remaining members. Without a
// membership this is a no-op.
func (h *Hub) HandleLeaveRoom(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.identifiedLocked(c) || c.currentRoom == "" {
		return
	}

	h.removeFromRoomLocked(c)

	c.sendFrame(protocol.RoomLeftFrame{Type: protocol.TagRoomLeft})
}

// HandleSendMessage accepts a chat message, persists it, and broadcasts it to
// every member of the room including the sender. Ordering is fixed here, under
// the hub lock, and is identical for all participants.
func (h *Hub) HandleSendMessage(c *Conn, content string) {
	content = strings.TrimSpace(content)

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.identifiedLocked(c) || c.currentRoom == "" || content == "" {
		return
	}

	if len(content) > MaxContentBytes {
		c.sendError(errs.NewError(errs.ErrMessageContentTooLong).Message)
		return
	}

	msg := protocol.Message{
		ID:        randx.MessageID(),
		UserID:    c.userID,
		Username:  c.username,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	if err := h.store.Append(ctx, c.currentRoom, msg); err != nil {
		h.logger.Error().Err(err).Str("room_id", c.currentRoom).Msg("Failed to persist message")
	}
	cancel()

	h.broadcastLocked(c.currentRoom, protocol.NewMessageFrame{
		Type:    protocol.TagNewMessage,
		Message: msg,
	}, "")
}

// Disconnect unregisters a connection. A stale connection that was already
// replaced by a newer one for the same user is ignored.
func (h *Hub) Disconnect(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.userID == "" {
		return
	}

	if current, ok := h.conns[c.userID]; !ok || current != c {
		h.logger.Debug().Str("user_id", c.userID).Msg("Ignoring disconnect for stale connection")
		return
	}

	h.removeFromRoomLocked(c)
	delete(h.conns, c.userID)

	h.logger.Info().Str("user_id", c.userID).Msg("User disconnected")
}

// Shutdown closes every tracked connection's send channel, letting the write
// pumps finish with close frames.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, c := range h.conns {
		delete(h.conns, userID)
		c.closeSend()
	}

	h.logger.Info().Msg("Hub shutdown complete")
}

// identifiedLocked reports whether the connection has completed user_connect
// and is still the tracked connection for its user.
func (h *Hub) identifiedLocked(c *Conn) bool {
	if c.userID == "" {
		return false
	}
	current, ok := h.conns[c.userID]
	return ok && current == c
}

// removeFromRoomLocked takes the connection out of its current room, if any,
// and broadcasts user_left to the remaining members.
func (h *Hub) removeFromRoomLocked(c *Conn) {
	if c.currentRoom == "" {
		return
	}

	roomID := c.currentRoom
	c.currentRoom = ""

	r, ok := h.rooms[roomID]
	if !ok {
		return
	}

	for i, id := range r.members {
		if id == c.userID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}

	h.broadcastLocked(roomID, protocol.UserEventFrame{
		Type:     protocol.TagUserLeft,
		Username: c.username,
		Users:    h.usersLocked(roomID),
	}, c.userID)

	h.logger.Info().
		Str("user_id", c.userID).
		Str("room_id", roomID).
		Int("total_users", len(r.members)).
		Msg("User left room")
}

// roomsListLocked builds the rooms_list frame in room creation order.
func (h *Hub) roomsListLocked() protocol.RoomsListFrame {
	rooms := make([]protocol.Room, 0, len(h.roomOrder))

	for _, roomID := range h.roomOrder {
		if r, ok := h.rooms[roomID]; ok {
			rooms = append(rooms, h.roomSnapshotLocked(r))
		}
	}

	return protocol.RoomsListFrame{
		Type:  protocol.TagRoomsList,
		Rooms: rooms,
	}
}

// roomSnapshotLocked returns the room metadata with the live user count.
func (h *Hub) roomSnapshotLocked(r *room) protocol.Room {
	meta := r.meta
	meta.UserCount = len(r.members)
	return meta
}

// usersLocked returns the usernames of a room's members in join order.
func (h *Hub) usersLocked(roomID string) []string {
	r, ok := h.rooms[roomID]
	if !ok {
		return []string{}
	}

	users := make([]string, 0, len(r.members))
	for _, userID := range r.members {
		if conn, ok := h.conns[userID]; ok {
			users = append(users, conn.username)
		}
	}
	return users
}

// broadcastLocked queues a frame to every member of a room, optionally
// excluding one user ID. Empty excludeUserID broadcasts to everyone.
func (h *Hub) broadcastLocked(roomID string, frame any, excludeUserID string) {
	r, ok := h.rooms[roomID]
	if !ok {
		return
	}

	for _, userID := range r.members {
		if excludeUserID != "" && userID == excludeUserID {
			continue
		}
		if conn, ok := h.conns[userID]; ok {
			conn.sendFrame(frame)
		}
	}
}

// RoomCount reports the number of rooms; used by the health endpoint.
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// UserCount reports the number of identified connections; used by the health endpoint.
func (h *Hub) UserCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// recentHistory loads the replayed backlog for a room join.
func (h *Hub) recentHistory(roomID string) []protocol.Message {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	backlog, err := h.store.Recent(ctx, roomID, history.ReplayLimit)
	if err != nil {
		h.logger.Error().Err(err).Str("room_id", roomID).Msg("Failed to load message history")
		return []protocol.Message{}
	}

	if backlog == nil {
		backlog = []protocol.Message{}
	}

	return backlog
}
