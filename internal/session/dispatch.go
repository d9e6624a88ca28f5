/*
Package session implements the client-side session manager for the collaborative chat.

This file contains the inbound dispatch path: every frame read from the
transport is routed by tag to exactly one handler. Handlers are the only code
that mutates room, transcript, and presence state, all under the manager lock,
so every mutation is an application of a server push.
*/
package session

import (
	"fmt"

	"collabchat/internal/protocol"
)

// dispatch routes one inbound frame by tag. Unknown tags are ignored so newer
// servers can add frames without breaking older clients.
func (m *Manager) dispatch(data []byte) {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Server sent invalid frame")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch env.Type {
	case protocol.TagRoomsList:
		m.handleRoomsList(env)
	case protocol.TagRoomJoined:
		m.handleRoomJoined(env)
	case protocol.TagRoomLeft:
		m.handleRoomLeft()
	case protocol.TagNewMessage:
		m.handleNewMessage(env)
	case protocol.TagUserJoined:
		m.handleUserEvent(env, "joined")
	case protocol.TagUserLeft:
		m.handleUserEvent(env, "left")
	case protocol.TagRoomUsers:
		m.handleRoomUsers(env)
	case protocol.TagRoomCreated:
		m.handleRoomCreated(env)
	case protocol.TagError:
		m.handleError(env)
	default:
		m.logger.Debug().Str("tag", env.Type).Msg("Ignoring unknown frame tag")
	}
}

// handleRoomsList replaces the room list snapshot.
func (m *Manager) handleRoomsList(env protocol.Envelope) {
	var frame protocol.RoomsListFrame
	if err := env.Decode(&frame); err != nil {
		m.logger.Warn().Err(err).Msg("Bad rooms_list frame")
		return
	}

	m.rooms = frame.Rooms
	m.presenter.RenderRoomList(m.rooms)
}

// handleRoomJoined atomically replaces membership, transcript, and presence
// with the server's view. A frame arriving after leave_room was sent answers
// an abandoned join and is discarded; the matching room_left is still coming.
func (m *Manager) handleRoomJoined(env protocol.Envelope) {
	var frame protocol.RoomJoinedFrame
	if err := env.Decode(&frame); err != nil {
		m.logger.Warn().Err(err).Msg("Bad room_joined frame")
		return
	}

	if m.leavePending {
		m.logger.Info().Str("room_id", frame.Room.ID).Msg("Discarding stale room_joined after leave request")
		return
	}

	room := frame.Room
	m.currentRoom = &room
	m.transcript = append([]protocol.Message(nil), frame.Messages...)
	m.presence = frame.Users

	m.presenter.RenderRoom(room, m.transcriptCopyLocked())
	m.presenter.SetPresence(m.presence)
	m.presenter.Notify(NotifySuccess, fmt.Sprintf("Joined room: %s", room.Name))
}

// transcriptCopyLocked returns a copy of the transcript for handing to the
// presenter while the lock is held.
func (m *Manager) transcriptCopyLocked() []protocol.Message {
	transcript := make([]protocol.Message, len(m.transcript))
	copy(transcript, m.transcript)
	return transcript
}

// handleRoomLeft clears membership and presence and resets the room view.
func (m *Manager) handleRoomLeft() {
	m.currentRoom = nil
	m.transcript = nil
	m.presence = nil
	m.leavePending = false

	m.presenter.ResetRoom()
	m.presenter.SetPresence(nil)
	m.presenter.Notify(NotifyInfo, "Left the room")
}

// handleNewMessage appends one message to the transcript in receipt order.
func (m *Manager) handleNewMessage(env protocol.Envelope) {
	var frame protocol.NewMessageFrame
	if err := env.Decode(&frame); err != nil {
		m.logger.Warn().Err(err).Msg("Bad new_message frame")
		return
	}

	if m.currentRoom == nil {
		m.logger.Debug().Msg("Ignoring new_message without membership")
		return
	}

	m.transcript = append(m.transcript, frame.Message)
	m.presenter.AppendMessage(frame.Message)
}

// handleUserEvent appends a synthetic system message for a join/leave and
// replaces the presence set.
func (m *Manager) handleUserEvent(env protocol.Envelope, verb string) {
	var frame protocol.UserEventFrame
	if err := env.Decode(&frame); err != nil {
		m.logger.Warn().Err(err).Msg("Bad user event frame")
		return
	}

	if m.currentRoom != nil {
		system := protocol.SystemMessage(fmt.Sprintf("%s %s the room", frame.Username, verb))
		m.transcript = append(m.transcript, system)
		m.presenter.AppendMessage(system)
	}

	m.presence = frame.Users
	m.presenter.SetPresence(m.presence)
}

// handleRoomUsers replaces the presence set.
func (m *Manager) handleRoomUsers(env protocol.Envelope) {
	var frame protocol.RoomUsersFrame
	if err := env.Decode(&frame); err != nil {
		m.logger.Warn().Err(err).Msg("Bad room_users frame")
		return
	}

	m.presence = frame.Users
	m.presenter.SetPresence(m.presence)
}

// handleRoomCreated confirms creation and refreshes the room list.
func (m *Manager) handleRoomCreated(env protocol.Envelope) {
	var frame protocol.RoomCreatedFrame
	if err := env.Decode(&frame); err != nil {
		m.logger.Warn().Err(err).Msg("Bad room_created frame")
		return
	}

	m.presenter.Notify(NotifySuccess, fmt.Sprintf("Room %q created successfully!", frame.Room.Name))

	m.writeFrameLocked(protocol.GetRoomsFrame{Type: protocol.TagGetRooms})
}

// handleError surfaces a server-reported error verbatim. No state changes.
func (m *Manager) handleError(env protocol.Envelope) {
	var frame protocol.ErrorFrame
	if err := env.Decode(&frame); err != nil {
		m.logger.Warn().Err(err).Msg("Bad error frame")
		return
	}

	m.presenter.Notify(NotifyError, frame.Message)
}
