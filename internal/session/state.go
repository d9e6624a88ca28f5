/*
Package session implements the client-side session manager for the collaborative chat.

It owns one logical connection to the room server: connection lifecycle with
linear-backoff reconnection, room membership, message traffic, and presence
tracking. All state the manager holds is a snapshot of server state; it is
never mutated optimistically ahead of a server acknowledgment.
*/
package session

// State represents the current state of the connection to the room server.
type State int

const (
	// StateDisconnected means the session is not connected and no reconnect is pending.
	StateDisconnected State = iota

	// StateConnecting means the session is establishing a connection.
	StateConnecting

	// StateConnected means the session is connected and ready.
	StateConnected

	// StateReconnecting means the session lost its transport and a retry is scheduled.
	StateReconnecting

	// StateFailed means the reconnect budget is exhausted; only an explicit
	// Connect can revive the session.
	StateFailed
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
