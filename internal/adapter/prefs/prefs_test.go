package prefs

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestStore_DefaultsWhenEmpty(t *testing.T) {
	s := openTest(t, filepath.Join(t.TempDir(), "prefs"))
	defer s.Close()

	token, err := s.Token()
	require.NoError(t, err)
	assert.Empty(t, token)

	seen, err := s.TutorialSeen()
	require.NoError(t, err)
	assert.False(t, seen)

	layer, err := s.MapLayer()
	require.NoError(t, err)
	assert.Empty(t, layer)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prefs")

	s := openTest(t, dir)
	require.NoError(t, s.SetToken("tok-1"))
	require.NoError(t, s.SetTutorialSeen(true))
	require.NoError(t, s.SetMapLayer("satellite"))
	require.NoError(t, s.Close())

	s = openTest(t, dir)
	defer s.Close()

	token, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	seen, err := s.TutorialSeen()
	require.NoError(t, err)
	assert.True(t, seen)

	layer, err := s.MapLayer()
	require.NoError(t, err)
	assert.Equal(t, "satellite", layer)
}

func TestStore_ClearToken(t *testing.T) {
	s := openTest(t, filepath.Join(t.TempDir(), "prefs"))
	defer s.Close()

	require.NoError(t, s.SetToken("tok-1"))
	require.NoError(t, s.ClearToken())
	token, err := s.Token()
	require.NoError(t, err)
	assert.Empty(t, token)

	// Clearing an absent token is not an error.
	require.NoError(t, s.ClearToken())
}
