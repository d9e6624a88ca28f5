/*
Package session implements the client-side session manager for the collaborative chat.

This file defines the Manager struct and its public operations: connection
lifecycle (connect, reconnect with linear backoff, close), username handling,
and the room/message operations that emit protocol frames. All resulting state
changes arrive asynchronously through the inbound dispatch path; operations
themselves never mutate room or transcript state.
*/
package session

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"collabchat/internal/pkg/errs"
	"collabchat/internal/pkg/logx"
	"collabchat/internal/pkg/randx"
	"collabchat/internal/protocol"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed between reads before the connection is considered dead.
	// The server pings well inside this window.
	pongWait = 60 * time.Second

	// timeout for the WebSocket opening handshake.
	handshakeTimeout = 10 * time.Second

	// maximum allowed size (in bytes) of a frame received from the server.
	maxMessageSize = 65536

	// DefaultReconnectBackoff is the base delay between reconnect attempts.
	// The delay grows linearly: attempt n waits n times this duration.
	DefaultReconnectBackoff = 2 * time.Second

	// DefaultMaxReconnectAttempts is the reconnect budget. Once exhausted the
	// session fails terminally until an explicit Connect.
	DefaultMaxReconnectAttempts = 5

	// usernameKey is the local store key under which the username persists.
	usernameKey = "collaborative_username"
)

// Connection status texts pushed to the presenter.
const (
	statusConnected    = "Connected"
	statusConnecting   = "Connecting..."
	statusDisconnected = "Disconnected"
)

// Manager owns one logical connection to the room server and mediates all
// room and message traffic through it.
type Manager struct {
	// mu serializes every state mutation: public operations and the inbound
	// dispatch path both run under it, so handlers see a consistent session.
	mu sync.Mutex

	// wsURL is the derived WebSocket endpoint of the room server.
	wsURL string

	// userID is the opaque, process-stable session identifier.
	userID string

	// username is the user-editable display name, persisted to the store.
	username string

	// state is the connection state machine position.
	state State

	// attempts counts unplanned transport losses since the last successful open.
	attempts int

	// conn is the active transport, nil while not connected.
	conn *websocket.Conn

	// dialGen increments per dial so results of superseded dials and reads
	// from replaced connections are discarded.
	dialGen int

	// closed marks an explicit user-initiated shutdown; it suppresses reconnects.
	closed bool

	// rooms is the latest room list snapshot pushed by the server.
	rooms []protocol.Room

	// currentRoom is the active membership, nil when not in a room.
	currentRoom *protocol.Room

	// transcript holds the messages received since join, in receipt order.
	transcript []protocol.Message

	// presence is the set of usernames in the active room, replaced wholesale.
	presence []string

	// leavePending is set after sending leave_room and cleared by room_left.
	// While set, room_joined frames are stale responses to an abandoned join
	// and are discarded.
	leavePending bool

	// reconnectTimer is the pending backoff timer, nil when none is scheduled.
	reconnectTimer *time.Timer

	backoff     time.Duration
	maxAttempts int

	dialer    *websocket.Dialer
	store     Store
	presenter Presenter
	logger    zerolog.Logger
}

// NewManager constructs a session manager talking to the server at serverURL
// (http, https, ws, or wss scheme). It generates the process-stable user ID
// and loads any persisted username from the store.
func NewManager(serverURL string, store Store, presenter Presenter) (*Manager, error) {
	wsURL, err := wsEndpoint(serverURL)
	if err != nil {
		return nil, err
	}

	userID, err := randx.UserID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}

	m := &Manager{
		wsURL:       wsURL,
		userID:      userID,
		state:       StateDisconnected,
		backoff:     DefaultReconnectBackoff,
		maxAttempts: DefaultMaxReconnectAttempts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		store:     store,
		presenter: presenter,
		logger: logx.Logger().With().
			Str("component", "session").
			Str("user_id", userID).
			Logger(),
	}

	username, err := store.Get(usernameKey)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load persisted username")
	} else {
		m.username = username
	}

	return m, nil
}

// wsEndpoint derives the /ws endpoint URL from the server base URL, mapping
// http to ws and https to wss.
func wsEndpoint(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}

	u.Path = "/ws"
	return u.String(), nil
}

// SetUsername stores the display name, persists it, and informs the server if
// connected. A name that trims to empty is ignored.
func (m *Manager) SetUsername(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if name == m.username {
		return
	}

	m.username = name

	if err := m.store.Set(usernameKey, name); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist username")
	}

	if m.state == StateConnected {
		m.writeFrameLocked(protocol.UpdateUsernameFrame{
			Type:     protocol.TagUpdateUsername,
			Username: name,
		})
	}
}

// Connect opens the transport. It requires a username, is a no-op while
// already connected or connecting, and resets the reconnect budget.
func (m *Manager) Connect() {
	m.mu.Lock()

	if m.username == "" {
		m.presenter.Notify(NotifyError, errs.NewError(errs.ErrUsernameRequired).Message)
		m.mu.Unlock()
		return
	}

	if m.state == StateConnected || m.state == StateConnecting {
		m.mu.Unlock()
		return
	}

	m.stopReconnectTimerLocked()
	m.closed = false
	m.attempts = 0
	m.setStateLocked(StateConnecting)
	gen := m.nextDialGenLocked()
	m.mu.Unlock()

	go m.dial(gen)
}

// Close shuts the session down: it cancels any pending reconnect timer,
// closes the transport, and settles in the disconnected state. Room state is
// kept; a later Connect rehydrates it from server pushes.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.leavePending = false
	m.stopReconnectTimerLocked()

	if m.conn != nil {
		deadline := time.Now().Add(writeWait)
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := m.conn.WriteControl(websocket.CloseMessage, closeMsg, deadline); err != nil {
			m.logger.Debug().Err(err).Msg("Failed to send close frame")
		}
		if err := m.conn.Close(); err != nil {
			m.logger.Debug().Err(err).Msg("Connection close error")
		}
		m.conn = nil
	}

	m.setStateLocked(StateDisconnected)
	m.presenter.SetControlsEnabled(false)
}

// RequestRoomList asks the server for the current room list. The response
// arrives asynchronously as a rooms_list frame.
func (m *Manager) RequestRoomList() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected {
		m.logger.Debug().Msg("Ignoring room list request while not connected")
		return
	}

	m.writeFrameLocked(protocol.GetRoomsFrame{Type: protocol.TagGetRooms})
}

// JoinRoom requests membership in the given room. Success arrives as a
// room_joined frame carrying metadata, backlog, and presence.
func (m *Manager) JoinRoom(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(roomID) == "" {
		m.presenter.Notify(NotifyError, errs.NewError(errs.ErrNoRoomSelected).Message)
		return
	}

	if m.state != StateConnected {
		m.presenter.Notify(NotifyError, errs.NewError(errs.ErrNotConnected).Message)
		return
	}

	m.writeFrameLocked(protocol.JoinRoomFrame{
		Type:   protocol.TagJoinRoom,
		RoomID: roomID,
	})
}

// LeaveRoom requests leaving the current room. Membership and presence clear
// only once the server acknowledges with room_left.
func (m *Manager) LeaveRoom() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentRoom == nil {
		m.presenter.Notify(NotifyError, errs.NewError(errs.ErrNotInRoom).Message)
		return
	}

	if m.state != StateConnected {
		m.presenter.Notify(NotifyError, errs.NewError(errs.ErrNotConnected).Message)
		return
	}

	if m.writeFrameLocked(protocol.LeaveRoomFrame{Type: protocol.TagLeaveRoom}) == nil {
		m.leavePending = true
	}
}

// SendMessage submits a chat message. Empty text or a missing membership is a
// silent no-op. The message is not appended locally; it round-trips through
// the server and returns as a new_message frame, keeping ordering
// server-authoritative for every participant including the sender.
func (m *Manager) SendMessage(text string) {
	text = strings.TrimSpace(text)

	m.mu.Lock()
	defer m.mu.Unlock()

	if text == "" || m.currentRoom == nil {
		return
	}

	if m.state != StateConnected {
		// Dropped, not buffered: replaying text composed against a stale room
		// after rehydration would bypass the server-authoritative ordering.
		m.logger.Debug().Msg("Dropping message sent while not connected")
		return
	}

	m.writeFrameLocked(protocol.SendMessageFrame{
		Type:    protocol.TagSendMessage,
		Message: text,
	})
}

// CreateRoom requests creation of a new room. Success arrives as a
// room_created frame, which triggers a room list refresh.
func (m *Manager) CreateRoom(name, description string, private bool) {
	name = strings.TrimSpace(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		m.presenter.Notify(NotifyError, errs.NewError(errs.ErrRoomNameRequired).Message)
		return
	}

	if m.state != StateConnected {
		m.presenter.Notify(NotifyError, errs.NewError(errs.ErrNotConnected).Message)
		return
	}

	m.writeFrameLocked(protocol.CreateRoomFrame{
		Type:        protocol.TagCreateRoom,
		Name:        name,
		Description: strings.TrimSpace(description),
		Private:     private,
	})
}

// dial performs one connection attempt. A successful open announces the user,
// requests the room list, and starts the read loop; a failed open feeds the
// reconnect state machine.
func (m *Manager) dial(gen int) {
	conn, _, err := m.dialer.Dial(m.wsURL, nil)

	m.mu.Lock()

	if m.closed || gen != m.dialGen {
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		m.logger.Warn().Err(err).Str("url", m.wsURL).Msg("Dial failed")
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return
	}

	conn.SetReadLimit(maxMessageSize)

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		m.logger.Error().Err(err).Msg("Failed to set read deadline")
		conn.Close()
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return err
		}
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	m.conn = conn
	m.attempts = 0
	m.setStateLocked(StateConnected)

	m.writeFrameLocked(protocol.UserConnectFrame{
		Type:     protocol.TagUserConnect,
		Username: m.username,
		UserID:   m.userID,
	})
	m.writeFrameLocked(protocol.GetRoomsFrame{Type: protocol.TagGetRooms})

	m.presenter.SetControlsEnabled(true)

	m.mu.Unlock()

	m.logger.Info().Msg("Connected to room server")

	go m.readLoop(conn, gen)
}

// readLoop reads frames until the transport fails, dispatching each frame by
// tag. Dispatch for a connection is strictly sequential, so handlers never
// observe interleaved mutations from the same transport.
func (m *Manager) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Info().Err(err).Msg("Transport closed unexpectedly")
			}
			break
		}

		m.dispatch(data)
	}

	conn.Close()
	m.transportClosed(gen)
}

// transportClosed handles an unplanned transport loss. Membership and
// presence are deliberately kept: the next room_joined push rehydrates them.
// A pending leave dies with the transport; the server forgets the request,
// so joins after the reconnect must not be treated as stale.
func (m *Manager) transportClosed(gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || gen != m.dialGen {
		return
	}

	m.conn = nil
	m.leavePending = false
	m.presenter.SetControlsEnabled(false)
	m.scheduleReconnectLocked()
}

// scheduleReconnectLocked advances the reconnect state machine: it either
// schedules the next linear-backoff attempt or, once the budget is spent,
// fails terminally.
func (m *Manager) scheduleReconnectLocked() {
	if m.attempts >= m.maxAttempts {
		m.setStateLocked(StateFailed)
		m.presenter.Notify(NotifyError, errs.NewError(errs.ErrConnectionLost).Message)
		m.logger.Warn().Int("attempts", m.attempts).Msg("Reconnect budget exhausted")
		return
	}

	m.attempts++
	m.state = StateReconnecting
	m.presenter.SetConnectionStatus(fmt.Sprintf("Reconnecting... (%d/%d)", m.attempts, m.maxAttempts))

	delay := time.Duration(m.attempts) * m.backoff

	// Replacing any pending timer keeps reconnect timers from stacking up.
	m.stopReconnectTimerLocked()
	m.reconnectTimer = time.AfterFunc(delay, m.retryConnect)

	m.logger.Info().
		Int("attempt", m.attempts).
		Dur("delay", delay).
		Msg("Reconnect scheduled")
}

// retryConnect fires from the backoff timer and starts the next dial.
func (m *Manager) retryConnect() {
	m.mu.Lock()

	if m.closed || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}

	m.reconnectTimer = nil
	m.setStateLocked(StateConnecting)
	gen := m.nextDialGenLocked()
	m.mu.Unlock()

	m.dial(gen)
}

func (m *Manager) stopReconnectTimerLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) nextDialGenLocked() int {
	m.dialGen++
	return m.dialGen
}

// setStateLocked transitions the state machine and pushes the matching status
// text. The reconnecting status carries the attempt counter and is set by
// scheduleReconnectLocked directly.
func (m *Manager) setStateLocked(s State) {
	m.state = s

	switch s {
	case StateConnected:
		m.presenter.SetConnectionStatus(statusConnected)
	case StateConnecting:
		m.presenter.SetConnectionStatus(statusConnecting)
	case StateDisconnected, StateFailed:
		m.presenter.SetConnectionStatus(statusDisconnected)
	}
}

// writeFrameLocked marshals and writes one outbound frame. Callers hold mu,
// which also serializes writers on the connection.
func (m *Manager) writeFrameLocked(frame any) error {
	if m.conn == nil {
		return fmt.Errorf("no open connection")
	}

	data, err := json.Marshal(frame)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to marshal outbound frame")
		return err
	}

	m.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to write frame")
		return err
	}

	return nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ReconnectAttempts returns the number of reconnect attempts consumed since
// the last successful open.
func (m *Manager) ReconnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// UserID returns the process-stable session identifier.
func (m *Manager) UserID() string {
	return m.userID
}

// Username returns the current display name.
func (m *Manager) Username() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.username
}

// Rooms returns a copy of the latest room list snapshot.
func (m *Manager) Rooms() []protocol.Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := make([]protocol.Room, len(m.rooms))
	copy(rooms, m.rooms)
	return rooms
}

// CurrentRoom returns a copy of the active room, or nil without a membership.
func (m *Manager) CurrentRoom() *protocol.Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentRoom == nil {
		return nil
	}

	room := *m.currentRoom
	return &room
}

// Transcript returns a copy of the messages received since joining the
// current room, in receipt order.
func (m *Manager) Transcript() []protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	transcript := make([]protocol.Message, len(m.transcript))
	copy(transcript, m.transcript)
	return transcript
}

// Presence returns a copy of the presence set of the current room.
func (m *Manager) Presence() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]string, len(m.presence))
	copy(users, m.presence)
	return users
}
