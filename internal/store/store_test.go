package store

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/calvinwijaya/count-jack/internal/db"
	"github.com/calvinwijaya/count-jack/internal/game"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, id string, cfg game.Config, created time.Time) *Session {
	t.Helper()

	g, err := game.NewGame(cfg, game.Options{})
	require.NoError(t, err)
	t.Cleanup(g.Close)
	return &Session{ID: id, Game: g, CreatedAt: created}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	second := newSession(t, "b", game.DefaultConfig(), base.Add(time.Minute))
	first := newSession(t, "a", game.DefaultConfig(), base)
	require.NoError(t, s.Save(second))
	require.NoError(t, s.Save(first))

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Same(t, first, got)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	require.NoError(t, s.Delete("a"))
	_, err = s.Get("a")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete("a"), ErrNotFound)
}

func TestDatabaseStoreRestoresSettings(t *testing.T) {
	t.Parallel()

	database, err := db.Open(filepath.Join(t.TempDir(), "sessions.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	factory := func(cfg game.Config) (*game.Game, error) {
		return game.NewGame(cfg, game.Options{})
	}

	cfg := game.Config{NumDecks: 2, NumHands: 3, Difficulty: game.Easy}
	first := NewDatabaseStore(database, factory)
	require.NoError(t, first.Save(newSession(t, "abc", cfg, time.Now())))

	// A second store over the same database stands in for a restarted server.
	second := NewDatabaseStore(database, factory)
	sess, err := second.Get("abc")
	require.NoError(t, err)
	t.Cleanup(sess.Game.Close)

	assert.Equal(t, cfg, sess.Game.Config())
	assert.Equal(t, game.PhaseIdle, sess.Game.Snapshot().Phase)

	again, err := second.Get("abc")
	require.NoError(t, err)
	assert.Same(t, sess, again)

	require.NoError(t, second.Delete("abc"))
	_, err = first.Get("abc")
	assert.NoError(t, err, "the first store still holds its live session")

	_, err = NewDatabaseStore(database, factory).Get("abc")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, second.Delete("abc"), ErrNotFound)
}

func openTestDatabase(t *testing.T) *db.Database {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "sessions.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestDatabaseStoreConcurrentRestoreSharesSession(t *testing.T) {
	t.Parallel()

	database := openTestDatabase(t)
	cfg := game.Config{NumDecks: 1, NumHands: 2, Difficulty: game.Hard}
	require.NoError(t, database.SaveSettings("abc", cfg))

	var built atomic.Int32
	s := NewDatabaseStore(database, func(cfg game.Config) (*game.Game, error) {
		built.Add(1)
		return game.NewGame(cfg, game.Options{})
	})
	t.Cleanup(func() { s.Close() })

	const callers = 16
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		got   = make([]*Session, callers)
		errs  = make([]error, callers)
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			got[i], errs[i] = s.Get("abc")
		}()
	}
	close(start)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, got[0], got[i])
	}
	assert.Equal(t, int32(1), built.Load())
	assert.Equal(t, cfg, got[0].Game.Config())
}

// resolvedGame returns a game sitting in its restart countdown
func resolvedGame(t *testing.T) *game.Game {
	t.Helper()

	g, err := game.NewGame(
		game.Config{NumDecks: 1, NumHands: 1, Difficulty: game.Hard},
		game.Options{Clock: quartz.NewMock(t), Rand: game.NewRand(3)},
	)
	require.NoError(t, err)
	t.Cleanup(g.Close)

	_, err = g.Start()
	require.NoError(t, err)
	if g.Snapshot().Phase == game.PhasePlaying {
		_, err = g.Stand(0)
		require.NoError(t, err)
	}

	snap := g.Snapshot()
	require.Equal(t, game.PhaseResolved, snap.Phase)
	require.NotNil(t, snap.Countdown)
	return g
}

func TestMemoryStoreCloseStopsGames(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	g := resolvedGame(t)
	require.NoError(t, s.Save(&Session{ID: "a", Game: g, CreatedAt: time.Now()}))

	require.NoError(t, s.Close())

	assert.Nil(t, g.Snapshot().Countdown, "countdown cancelled")
	list, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDatabaseStoreCloseKeepsSettings(t *testing.T) {
	t.Parallel()

	database := openTestDatabase(t)
	factory := func(cfg game.Config) (*game.Game, error) {
		return game.NewGame(cfg, game.Options{})
	}

	s := NewDatabaseStore(database, factory)
	g := resolvedGame(t)
	require.NoError(t, s.Save(&Session{ID: "a", Game: g, CreatedAt: time.Now()}))

	require.NoError(t, s.Close())
	assert.Nil(t, g.Snapshot().Countdown)

	sess, err := NewDatabaseStore(database, factory).Get("a")
	require.NoError(t, err)
	t.Cleanup(sess.Game.Close)
	assert.Equal(t, g.Config(), sess.Game.Config())
}
