package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/calvinwijaya/count-jack/internal/game"
	"github.com/calvinwijaya/count-jack/internal/store"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Handlers contains all the API handlers
type Handlers struct {
	store    store.Store
	hub      *Hub
	logger   *log.Logger
	newGame  store.GameFactory
	defaults game.Config

	mu       sync.Mutex
	attached map[string]attachment
}

// attachment is the hub subscription of one live game
type attachment struct {
	game        *game.Game
	unsubscribe func()
}

// NewHandlers creates a new instance of Handlers. defaults fills any table
// setting a new session leaves out.
func NewHandlers(s store.Store, hub *Hub, newGame store.GameFactory, defaults game.Config, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Handlers{
		store:    s,
		hub:      hub,
		logger:   logger,
		newGame:  newGame,
		defaults: defaults,
		attached: make(map[string]attachment),
	}
}

// RegisterRoutes registers all API routes
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/difficulties", h.ListDifficulties).Methods("GET")

	// Session endpoints
	r.HandleFunc("/api/session", h.CreateSession).Methods("POST")
	r.HandleFunc("/api/session", h.ListSessions).Methods("GET")
	r.HandleFunc("/api/session/{id}", h.GetSession).Methods("GET")
	r.HandleFunc("/api/session/{id}", h.DeleteSession).Methods("DELETE")
	r.HandleFunc("/api/session/{id}/{command:configure|start|reset|hit|stand|split|guess}", h.RunCommand).Methods("POST")

	// WebSocket endpoint
	r.HandleFunc("/ws", h.ServeWS)
}

// response helper function to send JSON responses
func response(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// error response helper function
func errorResponse(w http.ResponseWriter, status int, message string) {
	response(w, status, map[string]string{"error": message})
}

// statusFor maps a command or storage error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrInvalidCommand):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes an optional JSON body into v
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// SessionView is a session with its current table state
type SessionView struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"createdAt"`
	State     game.Snapshot `json:"state"`
}

// CommandResult is the state after a command and the events it produced
type CommandResult struct {
	State  game.Snapshot    `json:"state"`
	Events []game.Event     `json:"events"`
	Guess  *game.CountGuess `json:"guess,omitempty"`
}

func viewOf(sess *store.Session) SessionView {
	return SessionView{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		State:     sess.Game.Snapshot(),
	}
}

// withDefaults fills unset fields of cfg from base
func withDefaults(cfg, base game.Config) game.Config {
	if cfg.NumDecks == 0 {
		cfg.NumDecks = base.NumDecks
	}
	if cfg.NumHands == 0 {
		cfg.NumHands = base.NumHands
	}
	if cfg.Difficulty == "" {
		cfg.Difficulty = base.Difficulty
	}
	return cfg
}

// ListDifficulties returns the selectable difficulty options
func (h *Handlers) ListDifficulties(w http.ResponseWriter, r *http.Request) {
	response(w, http.StatusOK, game.Difficulties())
}

// CreateSession starts a new idle table
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var cfg game.Config
	if err := decodeBody(r, &cfg); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	cfg = withDefaults(cfg, h.defaults)

	g, err := h.newGame(cfg)
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}

	sess := &store.Session{
		ID:        uuid.New().String(),
		Game:      g,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.Save(sess); err != nil {
		g.Close()
		h.logger.Error("Failed to save session", "session", sess.ID, "error", err)
		errorResponse(w, http.StatusInternalServerError, "Failed to save session")
		return
	}
	h.attach(sess)

	h.logger.Info("Session created", "session", sess.ID, "decks", cfg.NumDecks, "hands", cfg.NumHands, "difficulty", cfg.Difficulty)
	response(w, http.StatusCreated, viewOf(sess))
}

// ListSessions returns every live session
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.List()
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Error retrieving sessions")
		return
	}

	views := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, viewOf(sess))
	}
	response(w, http.StatusOK, views)
}

// GetSession returns the current state of a session
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(mux.Vars(r)["id"])
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	response(w, http.StatusOK, viewOf(sess))
}

// DeleteSession stops a session's game and forgets it
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	h.detach(id)
	if err := h.store.Delete(id); err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}

	h.logger.Info("Session deleted", "session", id)
	w.WriteHeader(http.StatusNoContent)
}

// RunCommand executes a game command named by the route
func (h *Handlers) RunCommand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	sess, err := h.session(vars["id"])
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}

	var cmd Command
	if vars["command"] == "configure" {
		var cfg game.Config
		if err := decodeBody(r, &cfg); err != nil {
			errorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		cmd.Config = &cfg
	} else if err := decodeBody(r, &cmd); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	cmd.Type = vars["command"]

	result, err := h.execute(sess, cmd)
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	response(w, http.StatusOK, result)
}

// ServeWS upgrades a connection and streams a session's snapshots to it
func (h *Handlers) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	if id == "" {
		errorResponse(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	sess, err := h.session(id)
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "session", id, "error", err)
		return
	}

	h.hub.serve(conn, id, sess.Game.Snapshot, func(cmd Command) error {
		_, err := h.execute(sess, cmd)
		return err
	})
}

// session loads a session and makes sure its game feeds the hub
func (h *Handlers) session(id string) (*store.Session, error) {
	sess, err := h.store.Get(id)
	if err != nil {
		return nil, err
	}
	h.attach(sess)
	return sess, nil
}

// execute runs one command against a session's game
func (h *Handlers) execute(sess *store.Session, cmd Command) (CommandResult, error) {
	g := sess.Game

	var (
		events []game.Event
		guess  *game.CountGuess
		err    error
	)
	switch cmd.Type {
	case "configure":
		if cmd.Config == nil {
			return CommandResult{}, fmt.Errorf("configure needs a config: %w", game.ErrInvalidConfig)
		}
		events, err = g.Configure(withDefaults(*cmd.Config, g.Config()))
		if err == nil {
			if saveErr := h.store.Save(sess); saveErr != nil {
				return CommandResult{}, fmt.Errorf("saving session %s: %w", sess.ID, saveErr)
			}
		}
	case "start":
		events, err = g.Start()
	case "reset":
		events = g.Reset()
	case "hit":
		events, err = g.Hit(cmd.Hand)
	case "stand":
		events, err = g.Stand(cmd.Hand)
	case "split":
		events, err = g.Split(cmd.Hand)
	case "guess":
		var result game.CountGuess
		result, err = g.GuessCount(cmd.Count)
		guess = &result
	default:
		err = fmt.Errorf("unknown command %q: %w", cmd.Type, game.ErrInvalidCommand)
	}
	if err != nil {
		return CommandResult{}, err
	}

	if events == nil {
		events = []game.Event{}
	}
	return CommandResult{State: g.Snapshot(), Events: events, Guess: guess}, nil
}

// attach subscribes the hub to a session's game once per game instance
func (h *Handlers) attach(sess *store.Session) {
	if h.hub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if a, ok := h.attached[sess.ID]; ok {
		if a.game == sess.Game {
			return
		}
		a.unsubscribe()
	}

	id := sess.ID
	unsubscribe := sess.Game.Subscribe(func(snap game.Snapshot, events []game.Event) {
		h.hub.BroadcastSnapshot(id, snap, events)
	})
	h.attached[id] = attachment{game: sess.Game, unsubscribe: unsubscribe}
}

// detach removes a session's hub subscription
func (h *Handlers) detach(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if a, ok := h.attached[id]; ok {
		a.unsubscribe()
		delete(h.attached, id)
	}
}
