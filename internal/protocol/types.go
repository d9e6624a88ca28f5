/*
Package protocol defines the wire format spoken between the chat client and the room server.

Every frame is a single JSON text message of the shape {"type": string, ...fields}.
This file defines the data types embedded in frames: rooms and chat messages.
*/
package protocol

import "time"

// Room describes a chat room as advertised by the server.
// Room metadata is owned by the server; clients only ever hold snapshots.
type Room struct {
	// ID is the opaque unique identifier of the room.
	ID string `json:"id"`

	// Name is the display name of the room.
	Name string `json:"name"`

	// Description is an optional free-form description.
	Description string `json:"description"`

	// Private marks rooms that should not be advertised openly.
	Private bool `json:"private"`

	// UserCount is the number of users currently in the room.
	UserCount int `json:"userCount"`

	// CreatedAt records when the room was created.
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Message is a single chat message. Messages are immutable once received;
// transcript order is receipt order, never a re-sort by timestamp.
type Message struct {
	// ID is the server-assigned unique identifier of the message.
	ID string `json:"id"`

	// UserID identifies the sender. The reserved value "system" marks
	// synthetic presence messages generated client-side.
	UserID string `json:"userId"`

	// Username is the sender's display name at the time of sending.
	Username string `json:"username"`

	// Content is the message text.
	Content string `json:"content"`

	// Timestamp is the server-side receive time.
	Timestamp time.Time `json:"timestamp"`
}

// SystemUserID is the sender ID used for synthetic system messages.
const SystemUserID = "system"

// SystemUsername is the display name used for synthetic system messages.
const SystemUsername = "System"

// SystemMessage builds a synthetic transcript entry, such as the
// join/leave notices inserted around presence updates.
func SystemMessage(content string) Message {
	return Message{
		UserID:    SystemUserID,
		Username:  SystemUsername,
		Content:   content,
		Timestamp: time.Now(),
	}
}
