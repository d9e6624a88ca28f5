/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to
standardize user-facing notifications and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrInvalidJSONFormat: {Code: ErrInvalidJSONFormat, Message: "Unsupported message format."},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Room and Content Business Logic Errors
	ErrRoomNotFound:          {Code: ErrRoomNotFound, Message: "Room not found."},
	ErrRoomNameRequired:      {Code: ErrRoomNameRequired, Message: "Please enter a room name."},
	ErrNoRoomSelected:        {Code: ErrNoRoomSelected, Message: "Please select a room first."},
	ErrNotInRoom:             {Code: ErrNotInRoom, Message: "You are not in a room."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},

	// 3xxx: Session and Connection Errors
	ErrUsernameRequired: {Code: ErrUsernameRequired, Message: "Please enter a username first."},
	ErrNotConnected:     {Code: ErrNotConnected, Message: "Not connected to the server."},
	ErrConnectionLost:   {Code: ErrConnectionLost, Message: "Connection lost. Please refresh the page."},
	ErrNotIdentified:    {Code: ErrNotIdentified, Message: "Please connect before sending requests."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
