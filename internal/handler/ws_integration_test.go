package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabchat/internal/configs"
	"collabchat/internal/history"
	"collabchat/internal/hub"
	"collabchat/internal/protocol"
)

const waitTimeout = 3 * time.Second

// newTestServer spins up the full HTTP stack over an in-memory history store.
func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()

	cfg := &configs.AppConfig{Environment: "development"}
	h := hub.NewHub(history.NewMemoryStore())

	srv := httptest.NewServer(Router(h, cfg))
	t.Cleanup(srv.Close)

	return srv, h
}

// wsClient is a raw WebSocket test client speaking the chat protocol.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

// dialClient connects to the server's /ws endpoint.
func dialClient(t *testing.T, srv *httptest.Server) *wsClient {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

// identify connects a client and performs the user_connect handshake,
// consuming the rooms_list reply.
func identify(t *testing.T, srv *httptest.Server, userID, username string) *wsClient {
	t.Helper()

	c := dialClient(t, srv)
	c.send(protocol.UserConnectFrame{
		Type:     protocol.TagUserConnect,
		Username: username,
		UserID:   userID,
	})
	c.expect(protocol.TagRoomsList)
	return c
}

func (c *wsClient) send(frame any) {
	c.t.Helper()

	data, err := json.Marshal(frame)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, data))
}

// expect reads frames until one with the given tag arrives and returns its
// raw bytes.
func (c *wsClient) expect(tag string) []byte {
	c.t.Helper()

	c.conn.SetReadDeadline(time.Now().Add(waitTimeout))
	for {
		_, data, err := c.conn.ReadMessage()
		require.NoErrorf(c.t, err, "waiting for %s frame", tag)

		env, err := protocol.ParseEnvelope(data)
		require.NoError(c.t, err)

		if env.Type == tag {
			return data
		}
	}
}

// expectNext asserts that the very next frame carries the given tag and
// returns its raw bytes.
func (c *wsClient) expectNext(tag string) []byte {
	c.t.Helper()

	c.conn.SetReadDeadline(time.Now().Add(waitTimeout))
	_, data, err := c.conn.ReadMessage()
	require.NoErrorf(c.t, err, "waiting for %s frame", tag)

	env, err := protocol.ParseEnvelope(data)
	require.NoError(c.t, err)
	require.Equal(c.t, tag, env.Type)
	return data
}

// createRoom round-trips a create_room and returns the new room's ID.
func (c *wsClient) createRoom(name string) string {
	c.t.Helper()

	c.send(protocol.CreateRoomFrame{Type: protocol.TagCreateRoom, Name: name})

	var frame protocol.RoomCreatedFrame
	require.NoError(c.t, json.Unmarshal(c.expect(protocol.TagRoomCreated), &frame))
	require.NotEmpty(c.t, frame.Room.ID)
	return frame.Room.ID
}

// joinRoom round-trips a join_room and returns the room_joined frame.
func (c *wsClient) joinRoom(roomID string) protocol.RoomJoinedFrame {
	c.t.Helper()

	c.send(protocol.JoinRoomFrame{Type: protocol.TagJoinRoom, RoomID: roomID})

	var frame protocol.RoomJoinedFrame
	require.NoError(c.t, json.Unmarshal(c.expect(protocol.TagRoomJoined), &frame))
	return frame
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	res, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, 200, res.StatusCode)

	var body struct {
		Code int `json:"code"`
		Data struct {
			Status  string `json:"status"`
			Service string `json:"service"`
			Rooms   int    `json:"rooms"`
			Users   int    `json:"users"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, "ok", body.Data.Status)
	assert.Equal(t, "collabchat", body.Data.Service)
}

func TestUserConnectAnswersWithRoomsList(t *testing.T) {
	srv, h := newTestServer(t)

	identify(t, srv, "user_ana000001", "ana")

	assert.Equal(t, 1, h.UserCount())
}

func TestConnectionAttemptsRateLimited(t *testing.T) {
	srv, _ := newTestServer(t)

	for i := 0; i < ConnectBurst; i++ {
		dialClient(t, srv)
	}

	// The burst is spent; the next attempt is rejected before the upgrade.
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
}

func TestMalformedFrameAnsweredWithError(t *testing.T) {
	srv, _ := newTestServer(t)

	c := dialClient(t, srv)
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	var frame protocol.ErrorFrame
	require.NoError(t, json.Unmarshal(c.expect(protocol.TagError), &frame))
	assert.Equal(t, "Unsupported message format.", frame.Message)
}

func TestMalformedUserIDRejected(t *testing.T) {
	srv, h := newTestServer(t)

	c := dialClient(t, srv)
	c.send(protocol.UserConnectFrame{
		Type:     protocol.TagUserConnect,
		Username: "ana",
		UserID:   "not-a-user-id",
	})

	var frame protocol.ErrorFrame
	require.NoError(t, json.Unmarshal(c.expect(protocol.TagError), &frame))
	assert.Equal(t, "Invalid request parameters.", frame.Message)
	assert.Equal(t, 0, h.UserCount())
}

func TestGetRoomsBeforeIdentifyRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	c := dialClient(t, srv)
	c.send(protocol.GetRoomsFrame{Type: protocol.TagGetRooms})

	var frame protocol.ErrorFrame
	require.NoError(t, json.Unmarshal(c.expect(protocol.TagError), &frame))
	assert.Equal(t, "Please connect before sending requests.", frame.Message)
}

func TestCreateRoomConfirmedToCreatorOnly(t *testing.T) {
	srv, _ := newTestServer(t)

	ana := identify(t, srv, "user_ana000001", "ana")
	bob := identify(t, srv, "user_bob000001", "bob")

	ana.createRoom("General")

	// Other clients learn about the room on their next rooms_list refresh,
	// not through a push: bob's next frame is the list reply, with no
	// room_created in front of it.
	bob.send(protocol.GetRoomsFrame{Type: protocol.TagGetRooms})
	var list protocol.RoomsListFrame
	require.NoError(t, json.Unmarshal(bob.expectNext(protocol.TagRoomsList), &list))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, "General", list.Rooms[0].Name)
}

func TestCreateRoomRequiresName(t *testing.T) {
	srv, _ := newTestServer(t)

	ana := identify(t, srv, "user_ana000001", "ana")
	ana.send(protocol.CreateRoomFrame{Type: protocol.TagCreateRoom, Name: "   "})

	var frame protocol.ErrorFrame
	require.NoError(t, json.Unmarshal(ana.expect(protocol.TagError), &frame))
	assert.Equal(t, "Please enter a room name.", frame.Message)
}

func TestJoinUnknownRoomRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	ana := identify(t, srv, "user_ana000001", "ana")
	ana.send(protocol.JoinRoomFrame{Type: protocol.TagJoinRoom, RoomID: "no-such-room"})

	var frame protocol.ErrorFrame
	require.NoError(t, json.Unmarshal(ana.expect(protocol.TagError), &frame))
	assert.Equal(t, "Room not found.", frame.Message)
}

func TestJoinDeliversBacklogAndPresence(t *testing.T) {
	srv, _ := newTestServer(t)

	ana := identify(t, srv, "user_ana000001", "ana")
	roomID := ana.createRoom("General")
	ana.joinRoom(roomID)

	for i := 1; i <= 3; i++ {
		ana.send(protocol.SendMessageFrame{Type: protocol.TagSendMessage, Message: fmt.Sprintf("msg %d", i)})
		ana.expect(protocol.TagNewMessage)
	}

	bob := identify(t, srv, "user_bob000001", "bob")
	joined := bob.joinRoom(roomID)

	assert.Equal(t, roomID, joined.Room.ID)
	assert.Equal(t, 2, joined.Room.UserCount)
	assert.Equal(t, []string{"ana", "bob"}, joined.Users)

	require.Len(t, joined.Messages, 3)
	assert.Equal(t, "msg 1", joined.Messages[0].Content)
	assert.Equal(t, "msg 3", joined.Messages[2].Content)

	// The existing member is told about the join.
	var event protocol.UserEventFrame
	require.NoError(t, json.Unmarshal(ana.expect(protocol.TagUserJoined), &event))
	assert.Equal(t, "bob", event.Username)
	assert.Equal(t, []string{"ana", "bob"}, event.Users)
}

func TestBacklogCapped(t *testing.T) {
	srv, _ := newTestServer(t)

	ana := identify(t, srv, "user_ana000001", "ana")
	roomID := ana.createRoom("General")
	ana.joinRoom(roomID)

	total := history.ReplayLimit + 5
	for i := 1; i <= total; i++ {
		ana.send(protocol.SendMessageFrame{Type: protocol.TagSendMessage, Message: fmt.Sprintf("msg %d", i)})
		ana.expect(protocol.TagNewMessage)
	}

	bob := identify(t, srv, "user_bob000001", "bob")
	joined := bob.joinRoom(roomID)

	require.Len(t, joined.Messages, history.ReplayLimit)
	// Only the newest messages are replayed, oldest first.
	assert.Equal(t, fmt.Sprintf("msg %d", total-history.ReplayLimit+1), joined.Messages[0].Content)
	assert.Equal(t, fmt.Sprintf("msg %d", total), joined.Messages[len(joined.Messages)-1].Content)
}

func TestBroadcastIncludesSender(t *testing.T) {
	srv, _ := newTestServer(t)

	ana := identify(t, srv, "user_ana000001", "ana")
	bob := identify(t, srv, "user_bob000001", "bob")

	roomID := ana.createRoom("General")
	ana.joinRoom(roomID)
	bob.joinRoom(roomID)
	ana.expect(protocol.TagUserJoined)

	ana.send(protocol.SendMessageFrame{Type: protocol.TagSendMessage, Message: "hello"})

	for _, c := range []*wsClient{ana, bob} {
		var frame protocol.NewMessageFrame
		require.NoError(t, json.Unmarshal(c.expect(protocol.TagNewMessage), &frame))
		assert.Equal(t, "hello", frame.Message.Content)
		assert.Equal(t, "user_ana000001", frame.Message.UserID)
		assert.Equal(t, "ana", frame.Message.Username)
		assert.NotEmpty(t, frame.Message.ID)
	}
}

func TestOversizedMessageRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	ana := identify(t, srv, "user_ana000001", "ana")
	roomID := ana.createRoom("General")
	ana.joinRoom(roomID)

	ana.send(protocol.SendMessageFrame{
		Type:    protocol.TagSendMessage,
		Message: strings.Repeat("x", hub.MaxContentBytes+1),
	})

	var frame protocol.ErrorFrame
	require.NoError(t, json.Unmarshal(ana.expect(protocol.TagError), &frame))
	assert.Equal(t, "Message is too long.", frame.Message)
}

func TestJoinImplicitlyLeavesCurrentRoom(t *testing.T) {
	srv, _ := newTestServer(t)

	ana := identify(t, srv, "user_ana000001", "ana")
	bob := identify(t, srv, "user_bob000001", "bob")

	first := ana.createRoom("First")
	second := ana.createRoom("Second")

	ana.joinRoom(first)
	bob.joinRoom(first)
	ana.expect(protocol.TagUserJoined)

	joined := ana.joinRoom(second)
	assert.Equal(t, second, joined.Room.ID)
	assert.Equal(t, []string{"ana"}, joined.Users)

	// The old room's remaining member sees the departure.
	var event protocol.UserEventFrame
	require.NoError(t, json.Unmarshal(bob.expect(protocol.TagUserLeft), &event))
	assert.Equal(t, "ana", event.Username)
	assert.Equal(t, []string{"bob"}, event.Users)
}

func TestLeaveRoomAcknowledgedAndBroadcast(t *testing.T) {
	srv, _ := newTestServer(t)

	ana := identify(t, srv, "user_ana000001", "ana")
	bob := identify(t, srv, "user_bob000001", "bob")

	roomID := ana.createRoom("General")
	ana.joinRoom(roomID)
	bob.joinRoom(roomID)
	ana.expect(protocol.TagUserJoined)

	bob.send(protocol.LeaveRoomFrame{Type: protocol.TagLeaveRoom})
	bob.expect(protocol.TagRoomLeft)

	var event protocol.UserEventFrame
	require.NoError(t, json.Unmarshal(ana.expect(protocol.TagUserLeft), &event))
	assert.Equal(t, "bob", event.Username)
	assert.Equal(t, []string{"ana"}, event.Users)
}

func TestDisconnectBroadcastsUserLeft(t *testing.T) {
	srv, h := newTestServer(t)

	ana := identify(t, srv, "user_ana000001", "ana")
	bob := identify(t, srv, "user_bob000001", "bob")

	roomID := ana.createRoom("General")
	ana.joinRoom(roomID)
	bob.joinRoom(roomID)
	ana.expect(protocol.TagUserJoined)

	bob.conn.Close()

	var event protocol.UserEventFrame
	require.NoError(t, json.Unmarshal(ana.expect(protocol.TagUserLeft), &event))
	assert.Equal(t, "bob", event.Username)
	assert.Equal(t, []string{"ana"}, event.Users)

	require.Eventually(t, func() bool { return h.UserCount() == 1 }, waitTimeout, time.Millisecond)
}

func TestSecondConnectionReplacesFirst(t *testing.T) {
	srv, h := newTestServer(t)

	first := identify(t, srv, "user_ana000001", "ana")
	identify(t, srv, "user_ana000001", "ana")

	// The replaced connection is shut down by the server.
	first.conn.SetReadDeadline(time.Now().Add(waitTimeout))
	for {
		if _, _, err := first.conn.ReadMessage(); err != nil {
			break
		}
	}

	assert.Equal(t, 1, h.UserCount())
}

func TestUpdateUsernameVisibleToLaterEvents(t *testing.T) {
	srv, _ := newTestServer(t)

	ana := identify(t, srv, "user_ana000001", "ana")
	bob := identify(t, srv, "user_bob000001", "bob")

	roomID := ana.createRoom("General")
	ana.joinRoom(roomID)

	bob.send(protocol.UpdateUsernameFrame{Type: protocol.TagUpdateUsername, Username: "bobby"})
	joined := bob.joinRoom(roomID)

	assert.Equal(t, []string{"ana", "bobby"}, joined.Users)

	var event protocol.UserEventFrame
	require.NoError(t, json.Unmarshal(ana.expect(protocol.TagUserJoined), &event))
	assert.Equal(t, "bobby", event.Username)
}
