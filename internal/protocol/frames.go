/*
Package protocol defines the wire format spoken between the chat client and the room server.

This file enumerates the frame tags and the per-tag frame structures, plus the
envelope used to dispatch an inbound frame by tag before a second, tag-specific
decoding pass.
*/
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client-to-server frame tags.
const (
	TagUpdateUsername = "update_username"
	TagUserConnect    = "user_connect"
	TagGetRooms       = "get_rooms"
	TagJoinRoom       = "join_room"
	TagLeaveRoom      = "leave_room"
	TagSendMessage    = "send_message"
	TagCreateRoom     = "create_room"
)

// Server-to-client frame tags.
const (
	TagRoomsList   = "rooms_list"
	TagRoomJoined  = "room_joined"
	TagRoomLeft    = "room_left"
	TagNewMessage  = "new_message"
	TagUserJoined  = "user_joined"
	TagUserLeft    = "user_left"
	TagRoomUsers   = "room_users"
	TagRoomCreated = "room_created"
	TagError       = "error"
)

// UpdateUsernameFrame informs the server of a changed display name.
type UpdateUsernameFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// UserConnectFrame announces the user after the transport opens.
type UserConnectFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

// GetRoomsFrame requests the current room list snapshot.
type GetRoomsFrame struct {
	Type string `json:"type"`
}

// JoinRoomFrame requests membership in a room. Joining implicitly leaves
// the current room; a session never holds two memberships.
type JoinRoomFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// LeaveRoomFrame requests leaving the current room.
type LeaveRoomFrame struct {
	Type string `json:"type"`
}

// SendMessageFrame submits a chat message. The message is never echoed
// locally; it round-trips and returns as a NewMessageFrame.
type SendMessageFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// CreateRoomFrame requests creation of a new room.
type CreateRoomFrame struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
}

// RoomsListFrame replaces the client's room list snapshot.
type RoomsListFrame struct {
	Type  string `json:"type"`
	Rooms []Room `json:"rooms"`
}

// RoomJoinedFrame confirms a join, carrying the room metadata, the replayed
// message backlog, and the current presence set.
type RoomJoinedFrame struct {
	Type     string    `json:"type"`
	Room     Room      `json:"room"`
	Messages []Message `json:"messages"`
	Users    []string  `json:"users"`
}

// RoomLeftFrame acknowledges a leave request.
type RoomLeftFrame struct {
	Type string `json:"type"`
}

// NewMessageFrame delivers a chat message to every member of a room,
// including the original sender.
type NewMessageFrame struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// UserEventFrame announces a user joining or leaving the current room,
// carrying the replacement presence set.
type UserEventFrame struct {
	Type     string   `json:"type"`
	Username string   `json:"username"`
	Users    []string `json:"users"`
}

// RoomUsersFrame replaces the presence set of the current room.
type RoomUsersFrame struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// RoomCreatedFrame confirms room creation to the creator.
type RoomCreatedFrame struct {
	Type string `json:"type"`
	Room Room   `json:"room"`
}

// ErrorFrame surfaces a server-side application error. It carries no state
// change; clients display the message verbatim.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Envelope holds an inbound frame's tag together with its raw bytes, so a
// dispatcher can route by tag and decode the full frame in a second pass.
type Envelope struct {
	Type string
	Raw  []byte
}

// ParseEnvelope extracts the tag from a raw inbound frame.
func ParseEnvelope(data []byte) (Envelope, error) {
	var head struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(data, &head); err != nil {
		return Envelope{}, fmt.Errorf("invalid frame: %w", err)
	}

	if head.Type == "" {
		return Envelope{}, fmt.Errorf("invalid frame: missing type")
	}

	return Envelope{Type: head.Type, Raw: data}, nil
}

// Decode unmarshals the envelope's raw bytes into the tag-specific frame struct.
func (e Envelope) Decode(dst any) error {
	if err := json.Unmarshal(e.Raw, dst); err != nil {
		return fmt.Errorf("invalid %s frame: %w", e.Type, err)
	}
	return nil
}
