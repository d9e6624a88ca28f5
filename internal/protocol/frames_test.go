package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"new_message","message":{"id":"m1"}}`))
	require.NoError(t, err)
	assert.Equal(t, TagNewMessage, env.Type)

	var frame NewMessageFrame
	require.NoError(t, env.Decode(&frame))
	assert.Equal(t, "m1", frame.Message.ID)
}

func TestParseEnvelopeRejectsBadInput(t *testing.T) {
	_, err := ParseEnvelope([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseEnvelope([]byte(`{"message":"no tag"}`))
	assert.Error(t, err)

	_, err = ParseEnvelope([]byte(`{"type":""}`))
	assert.Error(t, err)
}

func TestRoomJoinedFrameWireShape(t *testing.T) {
	// The exact field names the server emits.
	raw := []byte(`{
		"type": "room_joined",
		"room": {"id": "r1", "name": "General", "description": "", "private": false, "userCount": 2},
		"messages": [{"id": "m1", "userId": "u1", "username": "ana", "content": "hi"}],
		"users": ["ana", "bob"]
	}`)

	env, err := ParseEnvelope(raw)
	require.NoError(t, err)
	require.Equal(t, TagRoomJoined, env.Type)

	var frame RoomJoinedFrame
	require.NoError(t, env.Decode(&frame))

	assert.Equal(t, "r1", frame.Room.ID)
	assert.Equal(t, 2, frame.Room.UserCount)
	require.Len(t, frame.Messages, 1)
	assert.Equal(t, "u1", frame.Messages[0].UserID)
	assert.Equal(t, []string{"ana", "bob"}, frame.Users)
}

func TestOutboundFrameWireShape(t *testing.T) {
	data, err := json.Marshal(UserConnectFrame{
		Type:     TagUserConnect,
		Username: "ana",
		UserID:   "user_abcDEF123",
	})
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))

	assert.Equal(t, "user_connect", wire["type"])
	assert.Equal(t, "ana", wire["username"])
	assert.Equal(t, "user_abcDEF123", wire["userId"])
}

func TestSystemMessage(t *testing.T) {
	msg := SystemMessage("bob joined the room")

	assert.Equal(t, SystemUserID, msg.UserID)
	assert.Equal(t, SystemUsername, msg.Username)
	assert.Equal(t, "bob joined the room", msg.Content)
	assert.False(t, msg.Timestamp.IsZero())
}
