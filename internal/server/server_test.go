package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/unityboard/internal/config"
	sqliteRepo "github.com/sakif/unityboard/internal/repository/sqlite"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "app.js"), []byte("console.log(1)"), 0o644))

	cfg := &config.Config{
		DBPath:      ":memory:",
		StaticDir:   staticDir,
		CORSOrigins: []string{"http://localhost:5173"},
		JWTSecret:   "test-secret-key-for-server-tests",
		JWTExpiry:   time.Hour,
		Upload:      config.UploadConfig{Dir: t.TempDir(), MaxBytes: 1 << 20},
		Reminder:    config.ReminderConfig{Interval: time.Hour, Window: 24 * time.Hour},
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(cfg, db, nil, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, staticDir
}

// call sends a JSON request and decodes the JSON reply into a generic map.
func call(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out), "response must be JSON")
	return resp.StatusCode, out
}

func register(t *testing.T, ts *httptest.Server, name string) string {
	t.Helper()
	status, body := call(t, ts, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": name + "@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["token"].(string)
}

func idOf(t *testing.T, body map[string]any, key string) string {
	t.Helper()
	obj, ok := body[key].(map[string]any)
	require.True(t, ok, "missing %q in %v", key, body)
	return obj["id"].(string)
}

// =========================================================================
// ENVELOPE AND AUTH
// =========================================================================

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	status, body := call(t, ts, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ok"])
}

func TestProtectedRouteWithoutTokenIs401(t *testing.T) {
	ts, _ := newTestServer(t)
	status, body := call(t, ts, http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "Unauthorized", body["error"])
}

func TestBadTokenIs401(t *testing.T) {
	ts, _ := newTestServer(t)
	status, _ := call(t, ts, http.MethodGet, "/api/auth/me", "not.a.jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUnknownAPIRouteIsJSON404(t *testing.T) {
	ts, _ := newTestServer(t)
	status, body := call(t, ts, http.MethodGet, "/api/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["ok"])
}

func TestRegisterValidationNamesTheField(t *testing.T) {
	ts, _ := newTestServer(t)
	status, body := call(t, ts, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ada", "email": "not-an-email", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "email", body["field"])
}

func TestRegisterThenMe(t *testing.T) {
	ts, _ := newTestServer(t)
	token := register(t, ts, "ada")

	status, body := call(t, ts, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	assert.Equal(t, "ada@example.com", user["email"])
	assert.NotContains(t, user, "passwordHash")
}

// =========================================================================
// PROJECTS AND DISCUSSIONS
// =========================================================================

func TestPublicProjectIsReadableAnonymously(t *testing.T) {
	ts, _ := newTestServer(t)
	token := register(t, ts, "owner")

	status, body := call(t, ts, http.MethodPost, "/api/projects", token, map[string]any{
		"name": "Open Source", "visibility": "public",
	})
	require.Equal(t, http.StatusCreated, status, body)
	projectID := idOf(t, body, "project")

	status, body = call(t, ts, http.MethodGet, "/api/projects/"+projectID, "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Open Source", body["project"].(map[string]any)["name"])

	status, body = call(t, ts, http.MethodGet, "/api/projects/public", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["projects"], 1)
}

func TestLockedThreadRejectsMemberPosts(t *testing.T) {
	ts, _ := newTestServer(t)
	owner := register(t, ts, "owner")
	member := register(t, ts, "member")

	_, body := call(t, ts, http.MethodPost, "/api/projects", owner, map[string]any{"name": "Team"})
	projectID := idOf(t, body, "project")

	status, _ := call(t, ts, http.MethodPost, "/api/projects/"+projectID+"/join", member, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, ts, http.MethodPost, "/api/projects/"+projectID+"/threads", owner, map[string]any{
		"title": "Release plan",
	})
	require.Equal(t, http.StatusCreated, status, body)
	threadID := idOf(t, body, "thread")

	status, _ = call(t, ts, http.MethodPatch, "/api/threads/"+threadID, owner, map[string]any{"locked": true})
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, ts, http.MethodPost, "/api/threads/"+threadID+"/messages", member, map[string]any{
		"text": "can I still post?",
	})
	assert.Equal(t, http.StatusLocked, status)
	assert.Equal(t, false, body["ok"])

	status, _ = call(t, ts, http.MethodPost, "/api/threads/"+threadID+"/messages", owner, map[string]any{
		"text": "owners can",
	})
	assert.Equal(t, http.StatusCreated, status)

	status, body = call(t, ts, http.MethodGet, "/api/threads/"+threadID+"/messages", member, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["messages"], 1)
}

func TestMissingProjectIs404(t *testing.T) {
	ts, _ := newTestServer(t)
	token := register(t, ts, "ada")
	status, body := call(t, ts, http.MethodGet, "/api/projects/nope/tasks", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Not found", body["error"])
}

// =========================================================================
// STATIC CLIENT
// =========================================================================

func TestSPAFallback(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/projects/abc/board")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>app</html>", string(b))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	resp, err = ts.Client().Get(ts.URL + "/app.js")
	require.NoError(t, err)
	b, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "console.log(1)", string(b))
}

func TestOriginHosts(t *testing.T) {
	got := originHosts([]string{"http://localhost:5173", "https://board.example.com", "*", "::bad"})
	assert.Equal(t, []string{"localhost:5173", "board.example.com", "*"}, got)
}
