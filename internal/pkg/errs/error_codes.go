/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally
and in messages surfaced to users over the wire.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request or frame parameter validation failed.
	ErrInvalidParams = 1001

	// ErrInvalidJSONFormat indicates that an inbound frame was not valid JSON.
	ErrInvalidJSONFormat = 1002

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1003
)

// 2xxx: Room and Content Business Logic Errors
const (
	// ErrRoomNotFound indicates that the requested room does not exist.
	ErrRoomNotFound = 2101

	// ErrRoomNameRequired indicates a room create request with an empty name.
	ErrRoomNameRequired = 2102

	// ErrNoRoomSelected indicates a join request without a selected room.
	ErrNoRoomSelected = 2103

	// ErrNotInRoom indicates a room operation while not a member of any room.
	ErrNotInRoom = 2104

	// ErrMessageContentTooLong indicates that message content exceeded the maximum length.
	ErrMessageContentTooLong = 2201
)

// 3xxx: Session and Connection Errors
const (
	// ErrUsernameRequired indicates a connect attempt without a username.
	ErrUsernameRequired = 3001

	// ErrNotConnected indicates an operation that requires an open connection.
	ErrNotConnected = 3002

	// ErrConnectionLost indicates the reconnect budget was exhausted.
	ErrConnectionLost = 3003

	// ErrNotIdentified indicates a frame arrived before user_connect.
	ErrNotIdentified = 3004
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general internal error.
	ErrUnknown = 5000
)
