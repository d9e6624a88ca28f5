package randx

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserIDFormat(t *testing.T) {
	id, err := UserID()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, UserIDPrefix))
	assert.Len(t, id, len(UserIDPrefix)+UserIDRawLength)
	assert.True(t, IsValidUserID(id))
}

func TestUserIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		id, err := UserID()
		require.NoError(t, err)

		_, dup := seen[id]
		require.False(t, dup, "duplicate user id %s", id)
		seen[id] = struct{}{}
	}
}

func TestIsValidUserID(t *testing.T) {
	cases := []struct {
		name string
		id   string
		want bool
	}{
		{name: "valid", id: "user_abcDEF123", want: true},
		{name: "missing prefix", id: "abcDEF123", want: false},
		{name: "wrong prefix", id: "usr_abcDEF123", want: false},
		{name: "too short", id: "user_abc", want: false},
		{name: "too long", id: "user_abcDEF1234", want: false},
		{name: "non base62 char", id: "user_abcDEF12!", want: false},
		{name: "empty", id: "", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValidUserID(tc.id))
		})
	}
}

func TestRoomAndMessageIDsAreUUIDs(t *testing.T) {
	_, err := uuid.Parse(RoomID())
	assert.NoError(t, err)

	_, err = uuid.Parse(MessageID())
	assert.NoError(t, err)

	assert.NotEqual(t, MessageID(), MessageID())
}
