package server

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"squares/internal/board"
	"squares/internal/config"

	"github.com/gin-gonic/gin"
)

const testSecret = "test-secret-do-not-use"

type testApp struct {
	ts     *httptest.Server
	ledger *board.MemoryLedger
	hub    *Hub
	admin  string
	alice  string
	bob    string
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithStore(t, board.NewMemoryStore())
}

func newTestAppWithStore(t *testing.T, store board.Store) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.AuthSecret = testSecret

	ledger := board.NewMemoryLedger(nil)
	hub := NewHub(nil)
	engine := board.New(store, hub.Ledger(ledger))
	srv := New(engine, hub, cfg, nil)
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	return &testApp{
		ts:     ts,
		ledger: ledger,
		hub:    hub,
		admin:  issueToken(t, "admin-1", true),
		alice:  issueToken(t, "user-alice", false),
		bob:    issueToken(t, "user-bob", false),
	}
}

func issueToken(t *testing.T, userID string, admin bool) string {
	t.Helper()
	token, err := NewAuthenticator(testSecret, nil).Issue(userID, admin, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (a *testApp) do(t *testing.T, method, path, token string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	body := bytes.NewReader(nil)
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	decoded := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp, decoded
}

func (a *testApp) expect(t *testing.T, method, path, token string, payload any, status int) map[string]any {
	t.Helper()
	resp, body := a.do(t, method, path, token, payload)
	if resp.StatusCode != status {
		t.Fatalf("%s %s: expected status %d, got %d (%v)", method, path, status, resp.StatusCode, body)
	}
	return body
}

// createGame returns the game id and the square ids keyed by "row,col".
func (a *testApp) createGame(t *testing.T) (string, map[string]string) {
	t.Helper()
	body := a.expect(t, http.MethodPost, "/api/games", a.admin, map[string]any{
		"name":      "Big Game",
		"closes_at": time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339),
	}, http.StatusCreated)
	game := body["game"].(map[string]any)
	squares := body["squares"].([]any)
	if len(squares) != board.GridSize*board.GridSize {
		t.Fatalf("expected %d squares, got %d", board.GridSize*board.GridSize, len(squares))
	}
	ids := make(map[string]string, len(squares))
	for _, raw := range squares {
		square := raw.(map[string]any)
		key := cellKey(int(square["row"].(float64)), int(square["col"].(float64)))
		ids[key] = square["id"].(string)
	}
	return game["id"].(string), ids
}

func cellKey(row, col int) string {
	return string(rune('0'+row)) + "," + string(rune('0'+col))
}

func squarePath(gameID, squareID, action string) string {
	return "/api/games/" + gameID + "/squares/" + squareID + "/" + action
}
