/*
Package hub contains the server-side core of the collaborative chat: connected
users, rooms, and message broadcasting.

This file defines the Conn struct, representing one active WebSocket
connection. It manages the connection lifecycle, the message communication
loops (ReadPump and WritePump), and routes inbound frames to the Hub.
*/
package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"collabchat/internal/pkg/errs"
	"collabchat/internal/pkg/logx"
	"collabchat/internal/protocol"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// MaxContentBytes is the maximum allowed size (in bytes) for message content.
	MaxContentBytes = 5000

	// send channel capacity per connection.
	sendChannelBuffer = 256
)

// Conn represents an active WebSocket connection and, once identified through
// a user_connect frame, its associated user.
type Conn struct {
	// hub is the central registry this connection belongs to.
	hub *Hub

	// underlying WebSocket connection object.
	ws *websocket.Conn

	// userID identifies the user; empty until user_connect arrives.
	// Guarded by hub.mu, like all identity and room fields.
	userID string

	// username is the display name announced by the client.
	username string

	// currentRoom is the ID of the joined room, empty when not in a room.
	currentRoom string

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewConn constructs a Conn for an upgraded WebSocket connection.
func NewConn(h *Hub, wsConn *websocket.Conn) *Conn {
	connLogger := logx.Logger().With().
		Str("component", "hub").
		Str("remote_addr", wsConn.RemoteAddr().String()).
		Logger()

	return &Conn{
		hub:    h,
		ws:     wsConn,
		send:   make(chan []byte, sendChannelBuffer),
		logger: connLogger,
	}
}

// ReadPump handles reading frames from the WebSocket connection.
// It handles heartbeats (Pong), frame parsing, and performs cleanup upon
// connection closure.
func (c *Conn) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.ws.SetReadLimit(maxMessageSize)

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		c.processInboundFrame(data)
	}
}

// cleanupOnDisconnect unregisters the connection from the hub and closes the socket.
func (c *Conn) cleanupOnDisconnect() {
	c.hub.Disconnect(c)

	if err := c.ws.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}
}

// processInboundFrame routes one raw frame by tag to the matching hub handler.
// Unknown tags are ignored for forward compatibility.
func (c *Conn) processInboundFrame(data []byte) {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid frame")
		c.sendError(errs.NewError(errs.ErrInvalidJSONFormat).Message)
		return
	}

	switch env.Type {
	case protocol.TagUserConnect:
		var frame protocol.UserConnectFrame
		if err := env.Decode(&frame); err != nil {
			c.logger.Warn().Err(err).Msg("Bad user_connect frame")
			return
		}
		c.hub.HandleUserConnect(c, frame.UserID, frame.Username)

	case protocol.TagUpdateUsername:
		var frame protocol.UpdateUsernameFrame
		if err := env.Decode(&frame); err != nil {
			c.logger.Warn().Err(err).Msg("Bad update_username frame")
			return
		}
		c.hub.HandleUpdateUsername(c, frame.Username)

	case protocol.TagGetRooms:
		c.hub.HandleGetRooms(c)

	case protocol.TagCreateRoom:
		var frame protocol.CreateRoomFrame
		if err := env.Decode(&frame); err != nil {
			c.logger.Warn().Err(err).Msg("Bad create_room frame")
			return
		}
		c.hub.HandleCreateRoom(c, frame.Name, frame.Description, frame.Private)

	case protocol.TagJoinRoom:
		var frame protocol.JoinRoomFrame
		if err := env.Decode(&frame); err != nil {
			c.logger.Warn().Err(err).Msg("Bad join_room frame")
			return
		}
		c.hub.HandleJoinRoom(c, frame.RoomID)

	case protocol.TagLeaveRoom:
		c.hub.HandleLeaveRoom(c)

	case protocol.TagSendMessage:
		var frame protocol.SendMessageFrame
		if err := env.Decode(&frame); err != nil {
			c.logger.Warn().Err(err).Msg("Bad send_message frame")
			return
		}
		c.hub.HandleSendMessage(c, frame.Message)

	default:
		c.logger.Warn().Str("tag", env.Type).Msg("Client sent unsupported frame tag")
	}
}

// WritePump handles writing frames from the send channel to the WebSocket
// connection, interleaved with periodic pings.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one frame pulled from the send channel.
// Returns true if the WritePump loop should continue.
func (c *Conn) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.ws.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping to keep the heartbeat alive.
// Returns false if the WritePump loop should terminate.
func (c *Conn) writePingMessage() bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// sendFrame marshals the frame and queues it for delivery. A full queue drops
// the frame rather than blocking the hub.
func (c *Conn) sendFrame(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error marshaling frame for client")
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Send channel full, dropping frame")
	}
}

// sendError sends an error frame with the given user-facing message.
func (c *Conn) sendError(message string) {
	c.sendFrame(protocol.ErrorFrame{
		Type:    protocol.TagError,
		Message: message,
	})
}

// closeSend closes the send channel, instructing WritePump to finish with a
// close frame. The hub only calls this for connections it still tracks, which
// guarantees a single close per connection.
func (c *Conn) closeSend() {
	close(c.send)
}
