package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/calvinwijaya/count-jack/internal/game"
	"github.com/charmbracelet/log"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no settings are stored for a session
var ErrNotFound = errors.New("settings not found")

type Database struct {
	db     *sql.DB
	driver string
	logger *log.Logger
}

// Settings is the persisted table setup of a session
type Settings struct {
	SessionID string      `json:"sessionId"`
	Config    game.Config `json:"config"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// driverFor picks the SQL driver from the DSN: PostgreSQL URLs use lib/pq,
// anything else is treated as a SQLite file path.
func driverFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite3"
}

// Open creates a new database connection and makes sure the schema exists
func Open(dsn string, logger *log.Logger) (*Database, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	driver := driverFor(dsn)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	// Set connection parameters
	if driver == "sqlite3" {
		// A single connection keeps ":memory:" databases shared and avoids
		// SQLITE_BUSY on concurrent writes.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := initTables(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("Database ready", "driver", driver)
	return &Database{db: db, driver: driver, logger: logger}, nil
}

// initTables creates the necessary tables if they don't exist
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS session_settings (
			id TEXT PRIMARY KEY,
			num_decks INTEGER NOT NULL,
			num_hands INTEGER NOT NULL,
			difficulty TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("error creating session_settings table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// SaveSettings stores the configuration of a session, replacing earlier settings
func (d *Database) SaveSettings(sessionID string, cfg game.Config) error {
	now := time.Now().UTC()
	_, err := d.db.Exec(`
		INSERT INTO session_settings (id, num_decks, num_hands, difficulty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE
		SET num_decks = excluded.num_decks,
			num_hands = excluded.num_hands,
			difficulty = excluded.difficulty,
			updated_at = excluded.updated_at
	`, sessionID, cfg.NumDecks, cfg.NumHands, string(cfg.Difficulty), now)
	if err != nil {
		return err
	}

	d.logger.Debug("Settings saved", "session", sessionID, "decks", cfg.NumDecks, "hands", cfg.NumHands)
	return nil
}

// LoadSettings returns the stored configuration of a session
func (d *Database) LoadSettings(sessionID string) (Settings, error) {
	s := Settings{SessionID: sessionID}
	var difficulty string

	err := d.db.QueryRow(`
		SELECT num_decks, num_hands, difficulty, created_at, updated_at
		FROM session_settings WHERE id = $1
	`, sessionID).Scan(
		&s.Config.NumDecks,
		&s.Config.NumHands,
		&difficulty,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, ErrNotFound
	}
	if err != nil {
		return Settings{}, err
	}

	s.Config.Difficulty = game.Difficulty(difficulty)
	return s, nil
}

// DeleteSettings removes the stored configuration of a session
func (d *Database) DeleteSettings(sessionID string) error {
	res, err := d.db.Exec("DELETE FROM session_settings WHERE id = $1", sessionID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
