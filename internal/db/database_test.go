package db

import (
	"path/filepath"
	"testing"

	"github.com/calvinwijaya/count-jack/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()

	d, err := Open(filepath.Join(t.TempDir(), "settings.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDriverFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "postgres", driverFor("postgres://user:pw@localhost/countjack?sslmode=disable"))
	assert.Equal(t, "postgres", driverFor("postgresql://localhost/countjack"))
	assert.Equal(t, "sqlite3", driverFor("./data/count-jack.db"))
	assert.Equal(t, "sqlite3", driverFor(":memory:"))
}

func TestSaveAndLoadSettings(t *testing.T) {
	t.Parallel()

	d := openTestDB(t)
	cfg := game.Config{NumDecks: 3, NumHands: 2, Difficulty: game.Hard}

	require.NoError(t, d.SaveSettings("abc", cfg))

	s, err := d.LoadSettings("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", s.SessionID)
	assert.Equal(t, cfg, s.Config)
	assert.False(t, s.CreatedAt.IsZero())
}

func TestSaveSettingsUpdatesExisting(t *testing.T) {
	t.Parallel()

	d := openTestDB(t)
	require.NoError(t, d.SaveSettings("abc", game.DefaultConfig()))

	first, err := d.LoadSettings("abc")
	require.NoError(t, err)

	updated := game.Config{NumDecks: 1, NumHands: 3, Difficulty: game.Easy}
	require.NoError(t, d.SaveSettings("abc", updated))

	s, err := d.LoadSettings("abc")
	require.NoError(t, err)
	assert.Equal(t, updated, s.Config)
	assert.True(t, s.CreatedAt.Equal(first.CreatedAt), "created_at is kept on update")
}

func TestLoadMissingSettings(t *testing.T) {
	t.Parallel()

	d := openTestDB(t)
	_, err := d.LoadSettings("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSettings(t *testing.T) {
	t.Parallel()

	d := openTestDB(t)
	require.NoError(t, d.SaveSettings("abc", game.DefaultConfig()))

	require.NoError(t, d.DeleteSettings("abc"))
	require.ErrorIs(t, d.DeleteSettings("abc"), ErrNotFound)

	_, err := d.LoadSettings("abc")
	require.ErrorIs(t, err, ErrNotFound)
}
