package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/calvinwijaya/count-jack/internal/game"
	"github.com/calvinwijaya/count-jack/internal/store"
	"github.com/coder/quartz"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	hub   *Hub
	store *store.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	clock := quartz.NewMock(t)
	factory := func(cfg game.Config) (*game.Game, error) {
		return game.NewGame(cfg, game.Options{Clock: clock, Rand: game.NewRand(1)})
	}

	sessions := store.NewMemoryStore()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := mux.NewRouter()
	NewHandlers(sessions, hub, factory, game.DefaultConfig(), nil).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{Server: srv, hub: hub, store: sessions}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) createSession(t *testing.T, cfg any) SessionView {
	t.Helper()

	resp := s.do(t, http.MethodPost, "/api/session", cfg)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[SessionView](t, resp)
}

func TestListDifficulties(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/api/difficulties", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[[]game.DifficultySetting](t, resp)
	require.Len(t, got, 3)
	assert.Equal(t, "Easy (10s)", got[0].Label)
	assert.Equal(t, 7, got[1].RestartDelaySeconds)
	assert.Equal(t, game.Hard, got[2].Key)
}

func TestCreateSession(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	view := s.createSession(t, nil)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, game.PhaseIdle, view.State.Phase)
	assert.Equal(t, game.DefaultConfig(), view.State.Config)

	view = s.createSession(t, map[string]any{"numHands": 2, "difficulty": "easy"})
	assert.Equal(t, game.Config{NumDecks: 5, NumHands: 2, Difficulty: game.Easy}, view.State.Config)

	resp := s.do(t, http.MethodPost, "/api/session", map[string]any{"numDecks": 9})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, resp)["error"], "number of decks")

	resp = s.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]SessionView](t, resp), 2)
}

func TestUnknownSession(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/session/missing", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/session/missing/start", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/session/missing", nil).StatusCode)
}

func TestSessionCommands(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	id := s.createSession(t, nil).ID
	path := "/api/session/" + id

	resp := s.do(t, http.MethodPost, path+"/guess", map[string]int{"count": 0})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no count while idle")

	resp = s.do(t, http.MethodPost, path+"/configure", map[string]any{"numDecks": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[CommandResult](t, resp)
	assert.Equal(t, 1, result.State.Config.NumDecks)
	assert.Equal(t, game.Medium, result.State.Config.Difficulty)

	resp = s.do(t, http.MethodPost, path+"/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result = decode[CommandResult](t, resp)
	assert.Contains(t, []game.Phase{game.PhasePlaying, game.PhaseResolved}, result.State.Phase)
	require.Len(t, result.State.Hands, 1)
	assert.Len(t, result.State.Hands[0].Cards, 2)
	assert.NotEmpty(t, result.Events)

	resp = s.do(t, http.MethodPost, path+"/hit", map[string]int{"hand": 5})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodPost, path+"/configure", map[string]any{"numDecks": 2})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "configure needs idle")

	resp = s.do(t, http.MethodPost, path+"/guess", map[string]int{"count": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result = decode[CommandResult](t, resp)
	require.NotNil(t, result.Guess)
	assert.Equal(t, 3, result.Guess.Guess)
	assert.Equal(t, result.State.Count.Running, result.Guess.Actual)
	assert.Equal(t, result.Guess.Actual == 3, result.Guess.Correct)

	resp = s.do(t, http.MethodPost, path+"/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result = decode[CommandResult](t, resp)
	assert.Equal(t, game.PhaseIdle, result.State.Phase)
	assert.Empty(t, result.State.Hands)
	assert.Nil(t, result.State.Guess)

	resp = s.do(t, http.MethodPost, path+"/shuffle", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	id := s.createSession(t, nil).ID

	resp := s.do(t, http.MethodDelete, "/api/session/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err := s.store.Get(id)
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/session/"+id, nil).StatusCode)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusBadRequest, statusFor(game.ErrInvalidConfig))
	assert.Equal(t, http.StatusConflict, statusFor(game.ErrInvalidCommand))
	assert.Equal(t, http.StatusNotFound, statusFor(store.ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func dialSession(t *testing.T, s *testServer, id string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?sessionId=" + id
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// wsFrame mirrors Message with a typed snapshot
type wsFrame struct {
	Type      string        `json:"type"`
	SessionID string        `json:"sessionId"`
	Data      game.Snapshot `json:"data"`
	Events    []game.Event  `json:"events"`
	Error     string        `json:"error"`
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebSocketSession(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	id := s.createSession(t, nil).ID
	conn := dialSession(t, s, id)

	first := readFrame(t, conn)
	assert.Equal(t, "snapshot", first.Type)
	assert.Equal(t, id, first.SessionID)
	assert.Equal(t, game.PhaseIdle, first.Data.Phase)

	require.NoError(t, conn.WriteJSON(Command{Type: "start"}))
	dealt := readFrame(t, conn)
	assert.Equal(t, "snapshot", dealt.Type)
	assert.Contains(t, []game.Phase{game.PhasePlaying, game.PhaseResolved}, dealt.Data.Phase)
	assert.NotEmpty(t, dealt.Events)

	require.NoError(t, conn.WriteJSON(Command{Type: "hit", Hand: 4}))
	rejected := readFrame(t, conn)
	assert.Equal(t, "error", rejected.Type)
	assert.NotEmpty(t, rejected.Error)

	// REST commands reach WebSocket watchers too.
	resp := s.do(t, http.MethodPost, "/api/session/"+id+"/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reset := readFrame(t, conn)
	assert.Equal(t, "snapshot", reset.Type)
	assert.Equal(t, game.PhaseIdle, reset.Data.Phase)
}

func TestWebSocketErrorsOnlyReachSender(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	id := s.createSession(t, nil).ID
	sender := dialSession(t, s, id)
	watcher := dialSession(t, s, id)
	readFrame(t, sender)
	readFrame(t, watcher)

	require.Eventually(t, func() bool { return s.hub.Clients(id) == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, "error", readFrame(t, sender).Type)

	require.NoError(t, sender.WriteJSON(Command{Type: "start"}))
	assert.Equal(t, "snapshot", readFrame(t, sender).Type)

	// The watcher's next frame is the deal, not either error.
	assert.Equal(t, "snapshot", readFrame(t, watcher).Type)
}

func TestWebSocketUnknownSession(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?sessionId=missing"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
