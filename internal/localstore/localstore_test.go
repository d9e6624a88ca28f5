package localstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("collaborative_username", "ana"))

	got, err := s.Get("collaborative_username")
	require.NoError(t, err)
	assert.Equal(t, "ana", got)
}

func TestGetMissingKeyReturnsEmpty(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get("nope")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestSetReplacesExistingValue(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("k", "first"))
	require.NoError(t, s.Set("k", "second"))

	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestValuesSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("collaborative_username", "ana"))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get("collaborative_username")
	require.NoError(t, err)
	assert.Equal(t, "ana", got)
}

func TestOpenCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("k", "v"))
}
