package store

import (
	"errors"
	"fmt"

	"github.com/calvinwijaya/count-jack/internal/db"
	"github.com/calvinwijaya/count-jack/internal/game"
	"golang.org/x/sync/singleflight"
)

// GameFactory builds an idle game for a restored session
type GameFactory func(cfg game.Config) (*game.Game, error)

// DatabaseStore keeps live sessions in memory and their table settings in the
// database, so a session id survives a restart with its configuration.
type DatabaseStore struct {
	mem     *MemoryStore
	db      *db.Database
	newGame GameFactory

	// restores collapses concurrent restores of one id into a single game
	restores singleflight.Group
}

// NewDatabaseStore creates a new database store
func NewDatabaseStore(database *db.Database, newGame GameFactory) *DatabaseStore {
	return &DatabaseStore{
		mem:     NewMemoryStore(),
		db:      database,
		newGame: newGame,
	}
}

// Save stores the session and persists its settings
func (s *DatabaseStore) Save(sess *Session) error {
	if err := s.db.SaveSettings(sess.ID, sess.Game.Config()); err != nil {
		return fmt.Errorf("saving settings for %s: %w", sess.ID, err)
	}
	return s.mem.Save(sess)
}

// Get returns a live session or restores an idle one from saved settings
func (s *DatabaseStore) Get(id string) (*Session, error) {
	if sess, err := s.mem.Get(id); err == nil {
		return sess, nil
	}

	v, err, _ := s.restores.Do(id, func() (any, error) {
		return s.restore(id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// restore rebuilds a session from its settings. A caller that lost the race
// to an earlier restore finds that session in memory.
func (s *DatabaseStore) restore(id string) (*Session, error) {
	if sess, err := s.mem.Get(id); err == nil {
		return sess, nil
	}

	settings, err := s.db.LoadSettings(id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings for %s: %w", id, err)
	}

	g, err := s.newGame(settings.Config)
	if err != nil {
		return nil, fmt.Errorf("restoring session %s: %w", id, err)
	}

	sess := &Session{ID: id, Game: g, CreatedAt: settings.CreatedAt}
	if err := s.mem.Save(sess); err != nil {
		g.Close()
		return nil, err
	}
	return sess, nil
}

// Delete removes the session and its settings
func (s *DatabaseStore) Delete(id string) error {
	memErr := s.mem.Delete(id)
	dbErr := s.db.DeleteSettings(id)

	if errors.Is(memErr, ErrNotFound) && errors.Is(dbErr, db.ErrNotFound) {
		return ErrNotFound
	}
	if dbErr != nil && !errors.Is(dbErr, db.ErrNotFound) {
		return fmt.Errorf("deleting settings for %s: %w", id, dbErr)
	}
	return nil
}

// List returns the live sessions
func (s *DatabaseStore) List() ([]*Session, error) {
	return s.mem.List()
}

// Close stops every live game. Saved settings are kept for the next start.
func (s *DatabaseStore) Close() error {
	return s.mem.Close()
}
