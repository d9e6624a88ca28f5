/*
Package randx provides functions for generating cryptographically secure random identifiers.

It generates the process-stable client user IDs, UUID room IDs, and UUID message IDs
used throughout the chat protocol.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// UserIDPrefix is the required prefix for client-generated user IDs.
	UserIDPrefix = "user_"

	// UserIDRawLength is the fixed length of the Base62 part of a user ID.
	UserIDRawLength = 9
)

// UserID generates a client user identifier of the form "user_" followed by
// UserIDRawLength Base62 characters, using crypto/rand. The ID is generated
// once per process and identifies the session across reconnects.
func UserID() (string, error) {
	result := make([]byte, UserIDRawLength)

	for i := 0; i < UserIDRawLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for user id: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return UserIDPrefix + string(result), nil
}

// RoomID generates a UUID v4 string to serve as a unique room identifier.
func RoomID() string {
	return uuid.New().String()
}

// MessageID generates a UUID v4 string to serve as a unique message identifier.
func MessageID() string {
	return uuid.New().String()
}

// IsValidUserID checks if the given string is a well-formed client user ID.
func IsValidUserID(id string) bool {
	if !strings.HasPrefix(id, UserIDPrefix) {
		return false
	}

	rawID := id[len(UserIDPrefix):]

	if len(rawID) != UserIDRawLength {
		return false
	}

	for _, char := range rawID {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}
