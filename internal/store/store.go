package store

import (
	"errors"
	"time"

	"github.com/calvinwijaya/count-jack/internal/game"
)

// ErrNotFound is returned when no session exists for an id
var ErrNotFound = errors.New("session not found")

// Session is one player's table
type Session struct {
	ID        string     `json:"id"`
	Game      *game.Game `json:"-"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Store defines the interface for session storage
type Store interface {
	// Save stores a session, replacing any with the same id
	Save(s *Session) error

	// Get retrieves a session by id
	Get(id string) (*Session, error)

	// Delete removes a session and stops its game
	Delete(id string) error

	// List returns all sessions
	List() ([]*Session, error)

	// Close stops the games of all live sessions
	Close() error
}
