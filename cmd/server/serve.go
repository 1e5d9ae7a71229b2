package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/calvinwijaya/count-jack/internal/api"
	"github.com/calvinwijaya/count-jack/internal/config"
	"github.com/calvinwijaya/count-jack/internal/db"
	"github.com/calvinwijaya/count-jack/internal/game"
	"github.com/calvinwijaya/count-jack/internal/store"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
)

// ServeCmd runs the HTTP and WebSocket server
type ServeCmd struct {
	Config   string `kong:"default='count-jack.hcl',env='COUNT_JACK_CONFIG',help='Path to the HCL configuration file'"`
	Port     int    `kong:"env='COUNT_JACK_PORT',help='Server port, overrides the config file'"`
	Database string `kong:"env='COUNT_JACK_DATABASE',help='SQLite path or postgres:// URL, overrides the config file'"`
	Frontend string `kong:"env='COUNT_JACK_FRONTEND_URL',help='Frontend URL for CORS, overrides the config file'"`
	Seed     uint64 `kong:"help='Deterministic shuffle seed (optional)'"`
	Debug    bool   `kong:"help='Enable debug logging'"`
}

func (c *ServeCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	c.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		return err
	}

	newGame := gameFactory(cfg, logger)

	// Initialize the store
	var sessions store.Store
	if cfg.Server.Database != "" {
		database, err := openDatabase(cfg.Server.Database, logger)
		if err != nil {
			return err
		}
		defer database.Close()

		sessions = store.NewDatabaseStore(database, newGame)
		logger.Info("Session settings persisted", "database", redact(cfg.Server.Database))
	} else {
		sessions = store.NewMemoryStore()
		logger.Info("In-memory session store initialized")
	}

	hub := api.NewHub(logger.WithPrefix("ws"))
	handlers := api.NewHandlers(sessions, hub, newGame, cfg.GameConfig(), logger.WithPrefix("api"))

	// Set up router
	r := mux.NewRouter()
	handlers.RegisterRoutes(r)
	r.Use(accessLog(logger.WithPrefix("http")))

	// Configure CORS
	co := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.Server.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      co.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx := setupSignalHandler(logger)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		logger.Info("Starting server", "address", srv.Addr, "frontend", cfg.Server.FrontendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		return shutdown(srv, sessions)
	})

	return g.Wait()
}

// shutdown stops accepting requests, then stops every session's countdown
func shutdown(srv *http.Server, sessions store.Store) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := srv.Shutdown(ctx)
	return errors.Join(err, sessions.Close())
}

// applyOverrides copies set flags over the file configuration
func (c *ServeCmd) applyOverrides(cfg *config.Config) {
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Database != "" {
		cfg.Server.Database = c.Database
	}
	if c.Frontend != "" {
		cfg.Server.FrontendURL = c.Frontend
	}
	if c.Seed != 0 {
		cfg.Table.Seed = c.Seed
	}
	if c.Debug {
		cfg.Server.LogLevel = "debug"
	}
}

func newLogger(level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
	}), nil
}

// gameFactory builds games with the configured timing. A seed makes each
// session's shoe order reproducible.
func gameFactory(cfg *config.Config, logger *log.Logger) store.GameFactory {
	ticks := cfg.ReshuffleTicks()
	seed := cfg.Table.Seed
	gameLogger := logger.WithPrefix("game")

	return func(gc game.Config) (*game.Game, error) {
		opts := game.DefaultOptions()
		opts.Logger = gameLogger
		opts.ReshuffleCountdown = ticks
		if seed != 0 {
			opts.Rand = game.NewRand(seed)
		}
		return game.NewGame(gc, opts)
	}
}

// openDatabase opens the settings database, creating the data directory for SQLite paths
func openDatabase(dsn string, logger *log.Logger) (*db.Database, error) {
	if !strings.Contains(dsn, "://") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	database, err := db.Open(dsn, logger.WithPrefix("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// redact hides credentials in a database URL
func redact(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***@" + rest[at+1:]
	}
	return dsn
}

// accessLog logs method, path and duration of every request
func accessLog(logger *log.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("Request", "method", r.Method, "path", r.RequestURI, "duration", time.Since(start))
		})
	}
}
