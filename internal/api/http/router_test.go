package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/notes-service/internal/api/http/handlers"
	"github.com/spec-kit/notes-service/internal/auth"
	"github.com/spec-kit/notes-service/internal/config"
	"github.com/spec-kit/notes-service/internal/events"
	"github.com/spec-kit/notes-service/internal/observability"
	"github.com/spec-kit/notes-service/internal/repository"
	"github.com/spec-kit/notes-service/internal/service"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testServer struct {
	app   *fiber.App
	clock *clock
	auth  *service.AuthService
	store *repository.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clk := &clock{t: time.Now()}
	tokens, err := auth.NewTokenService("access-secret", "refresh-secret", auth.WithClock(clk.Now))
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	metrics := observability.NewMetrics()
	session := auth.NewSessionTransport(false)

	authService := service.NewAuthService(config.AuthConfig{BcryptCost: 4}, service.AuthDependencies{
		UserRepo:   store.Users(),
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Metrics:    metrics,
	})
	noteService := service.NewNoteService(service.NoteDependencies{
		NoteRepo:   store.Notes(),
		Dispatcher: dispatcher,
	})

	app := fiber.New()
	RegisterMiddlewares(app, MiddlewareConfig{
		Logger:         zap.NewNop(),
		Metrics:        metrics,
		Timeout:        5 * time.Second,
		AllowedOrigins: []string{"http://localhost:5173"},
	})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("notes-service", "test", map[string]handlers.Pinger{"store": store.Users()}),
		Auth:           handlers.NewAuthHandler(authService, session),
		Notes:          handlers.NewNotesHandler(noteService),
		Todos:          handlers.NewTodosHandler(noteService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, session, metrics),
		Metrics:        metrics,
	})
	return &testServer{app: app, clock: clk, auth: authService, store: store}
}

// client keeps cookies between requests the way a browser would.
type client struct {
	t       *testing.T
	srv     *testServer
	cookies map[string]string
}

func (s *testServer) client(t *testing.T) *client {
	return &client{t: t, srv: s, cookies: map[string]string{}}
}

type response struct {
	status  int
	body    map[string]any
	cookies map[string]*nethttp.Cookie
}

func (c *client) do(method, path string, body any, headers ...string) response {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	for name, value := range c.cookies {
		req.AddCookie(&nethttp.Cookie{Name: name, Value: value})
	}

	resp, err := c.srv.app.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, cookies: map[string]*nethttp.Cookie{}}
	for _, ck := range resp.Cookies() {
		out.cookies[ck.Name] = ck
		if ck.Value == "" {
			delete(c.cookies, ck.Name)
		} else {
			c.cookies[ck.Name] = ck.Value
		}
	}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func (c *client) register(username string) response {
	c.t.Helper()
	res := c.do(nethttp.MethodPost, "/api/auth/register", map[string]string{"username": username, "password": "pw-" + username})
	require.Equal(c.t, nethttp.StatusCreated, res.status, res.body)
	return res
}

func (c *client) createNote(title string) string {
	c.t.Helper()
	res := c.do(nethttp.MethodPost, "/api/notes", map[string]any{"title": title})
	require.Equal(c.t, nethttp.StatusCreated, res.status, res.body)
	return res.body["note"].(map[string]any)["id"].(string)
}

func assertCleared(t *testing.T, res response) {
	t.Helper()
	for _, name := range []string{auth.AccessCookieName, auth.RefreshCookieName} {
		ck, ok := res.cookies[name]
		require.True(t, ok, "%s not cleared", name)
		assert.Empty(t, ck.Value)
		assert.True(t, ck.Expires.Before(time.Now()))
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	reg := c.register("alice")
	assert.Equal(t, true, reg.body["success"])
	user := reg.body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password")
	require.Contains(t, reg.cookies, auth.AccessCookieName)
	require.Contains(t, reg.cookies, auth.RefreshCookieName)
	assert.True(t, reg.cookies[auth.AccessCookieName].HttpOnly)
	assert.Equal(t, nethttp.SameSiteStrictMode, reg.cookies[auth.AccessCookieName].SameSite)

	me := c.do(nethttp.MethodGet, "/api/auth/me", nil)
	require.Equal(t, nethttp.StatusOK, me.status)
	assert.Equal(t, "alice", me.body["user"].(map[string]any)["username"])

	srv.clock.Advance(16 * time.Minute)
	expired := c.do(nethttp.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, expired.status)
	assert.Equal(t, "TOKEN_EXPIRED", expired.body["code"])

	oldRefresh := c.cookies[auth.RefreshCookieName]
	refreshed := c.do(nethttp.MethodPost, "/api/auth/refresh-token", nil)
	require.Equal(t, nethttp.StatusOK, refreshed.status)
	require.Contains(t, refreshed.cookies, auth.AccessCookieName)
	require.Contains(t, refreshed.cookies, auth.RefreshCookieName)
	assert.NotEqual(t, oldRefresh, c.cookies[auth.RefreshCookieName])

	again := c.do(nethttp.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, nethttp.StatusOK, again.status)
}

func TestRefresh_NoCookie(t *testing.T) {
	c := newTestServer(t).client(t)

	res := c.do(nethttp.MethodPost, "/api/auth/refresh-token", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, res.status)
	assert.Equal(t, "UNAUTHORIZED", res.body["code"])
	assert.Empty(t, res.cookies)
}

func TestRefresh_InvalidTokenKeepsCookies(t *testing.T) {
	c := newTestServer(t).client(t)
	c.cookies[auth.RefreshCookieName] = "not-a-token"

	res := c.do(nethttp.MethodPost, "/api/auth/refresh-token", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, res.status)
	assert.Equal(t, "UNAUTHORIZED", res.body["code"])
	assert.Empty(t, res.cookies)
}

func TestRefresh_ExpiredClearsCookies(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	c.register("alice")

	srv.clock.Advance(8 * 24 * time.Hour)
	res := c.do(nethttp.MethodPost, "/api/auth/refresh-token", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, res.status)
	assert.Equal(t, "SESSION_EXPIRED", res.body["code"])
	assertCleared(t, res)
	assert.Empty(t, c.cookies)
}

func TestBearerHeaderFallback(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	c.register("alice")
	token := c.cookies[auth.AccessCookieName]

	bare := srv.client(t)
	res := bare.do(nethttp.MethodGet, "/api/auth/me", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, nethttp.StatusOK, res.status)

	none := bare.do(nethttp.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, none.status)
	assert.Equal(t, "UNAUTHORIZED", none.body["code"])
}

func TestRegisterAndLoginErrors(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	c.register("alice")

	dup := srv.client(t).do(nethttp.MethodPost, "/api/auth/register", map[string]string{"username": "alice", "password": "x"})
	assert.Equal(t, nethttp.StatusBadRequest, dup.status)
	assert.Equal(t, "username already exists", dup.body["error"])
	assert.Equal(t, "VALIDATION_FAILED", dup.body["code"])

	bad := srv.client(t).do(nethttp.MethodPost, "/api/auth/login", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, nethttp.StatusBadRequest, bad.status)
	assert.Empty(t, bad.cookies)

	ok := srv.client(t).do(nethttp.MethodPost, "/api/auth/login", map[string]string{"username": "alice", "password": "pw-alice"})
	assert.Equal(t, nethttp.StatusOK, ok.status)
	assert.Contains(t, ok.cookies, auth.AccessCookieName)
}

func TestLogoutClearsCookies(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	c.register("alice")

	res := c.do(nethttp.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, nethttp.StatusOK, res.status)
	assertCleared(t, res)

	anonymous := srv.client(t).do(nethttp.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, nethttp.StatusOK, anonymous.status)
	assertCleared(t, anonymous)
}

func TestMe_UserVanished(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	reg := c.register("alice")

	// The gate never reads the store, so a deleted account still passes it and /me reports 404.
	srv.store.DeleteUser(reg.body["user"].(map[string]any)["id"].(string))
	res := c.do(nethttp.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, nethttp.StatusNotFound, res.status)
	assert.Equal(t, "NOT_FOUND", res.body["code"])

	refresh := c.do(nethttp.MethodPost, "/api/auth/refresh-token", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, refresh.status)
	assert.Equal(t, "UNAUTHORIZED", refresh.body["code"])
}

func TestAdminRoute(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.auth.EnsureAdmin(context.Background(), "root", "toor"))

	user := srv.client(t)
	user.register("alice")
	forbidden := user.do(nethttp.MethodGet, "/api/auth/admin", nil)
	assert.Equal(t, nethttp.StatusForbidden, forbidden.status)
	assert.Equal(t, "FORBIDDEN", forbidden.body["code"])

	admin := srv.client(t)
	login := admin.do(nethttp.MethodPost, "/api/auth/login", map[string]string{"username": "root", "password": "toor"})
	require.Equal(t, nethttp.StatusOK, login.status)
	assert.Equal(t, "admin", login.body["user"].(map[string]any)["role"])

	granted := admin.do(nethttp.MethodGet, "/api/auth/admin", nil)
	assert.Equal(t, nethttp.StatusOK, granted.status)

	anonymous := srv.client(t).do(nethttp.MethodGet, "/api/auth/admin", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, anonymous.status)
}

func TestNoteOwnership(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.client(t)
	alice.register("alice")
	bob := srv.client(t)
	bob.register("bob")

	noteID := alice.createNote("Alice's secret")
	added := alice.do(nethttp.MethodPost, "/api/todos/"+noteID, map[string]any{"text": "hidden"})
	require.Equal(t, nethttp.StatusCreated, added.status)
	todoPath := "/api/todos/" + noteID + "/" + added.body["todoItem"].(map[string]any)["id"].(string)

	for _, tc := range []struct {
		method string
		path   string
		body   any
	}{
		{nethttp.MethodGet, "/api/notes/" + noteID, nil},
		{nethttp.MethodPut, "/api/notes/" + noteID, map[string]any{"title": "pwned"}},
		{nethttp.MethodDelete, "/api/notes/" + noteID, nil},
		{nethttp.MethodGet, "/api/notes/" + noteID + "/text-content", nil},
		{nethttp.MethodPost, "/api/todos/" + noteID, map[string]any{"text": "x"}},
		{nethttp.MethodPost, "/api/todos/" + noteID, map[string]any{"text": ""}},
		{nethttp.MethodPut, todoPath, map[string]any{"completed": true}},
		{nethttp.MethodDelete, todoPath, nil},
	} {
		res := bob.do(tc.method, tc.path, tc.body)
		assert.Equal(t, nethttp.StatusForbidden, res.status, "%s %s", tc.method, tc.path)
		assert.Equal(t, "FORBIDDEN", res.body["code"])
	}

	missing := bob.do(nethttp.MethodGet, "/api/notes/does-not-exist", nil)
	assert.Equal(t, nethttp.StatusNotFound, missing.status)

	own := alice.do(nethttp.MethodGet, "/api/notes/"+noteID, nil)
	require.Equal(t, nethttp.StatusOK, own.status)
	ownNote := own.body["note"].(map[string]any)
	assert.Equal(t, "Alice's secret", ownNote["title"])
	todos := ownNote["todoItems"].([]any)
	require.Len(t, todos, 1)
	assert.Equal(t, false, todos[0].(map[string]any)["completed"])

	bobsList := bob.do(nethttp.MethodGet, "/api/notes", nil)
	assert.Equal(t, float64(0), bobsList.body["count"])
}

func TestNotesAndTodosFlow(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	c.register("alice")

	created := c.do(nethttp.MethodPost, "/api/notes", map[string]any{
		"title":       "Trip",
		"contentHtml": "<p>Pack bags</p>",
		"tags":        []string{"travel"},
	})
	require.Equal(t, nethttp.StatusCreated, created.status)
	note := created.body["note"].(map[string]any)
	noteID := note["id"].(string)
	assert.Equal(t, "#ffffff", note["color"])
	assert.Equal(t, map[string]any{"ops": []any{}}, note["content"])

	archived := c.do(nethttp.MethodPost, "/api/notes", map[string]any{"title": "Old", "isArchived": true})
	require.Equal(t, nethttp.StatusCreated, archived.status)

	list := c.do(nethttp.MethodGet, "/api/notes", nil)
	assert.Equal(t, float64(1), list.body["count"])
	withArchived := c.do(nethttp.MethodGet, "/api/notes?isArchived=true", nil)
	assert.Equal(t, float64(1), withArchived.body["count"])
	searched := c.do(nethttp.MethodGet, "/api/notes?search=pack", nil)
	assert.Equal(t, float64(1), searched.body["count"])

	todo := c.do(nethttp.MethodPost, "/api/todos/"+noteID, map[string]any{"text": "passport"})
	require.Equal(t, nethttp.StatusCreated, todo.status)
	todoID := todo.body["todoItem"].(map[string]any)["id"].(string)

	done := c.do(nethttp.MethodPut, "/api/todos/"+noteID+"/"+todoID, map[string]any{"completed": true})
	require.Equal(t, nethttp.StatusOK, done.status)
	assert.Equal(t, true, done.body["todoItem"].(map[string]any)["completed"])

	text := c.do(nethttp.MethodGet, "/api/notes/"+noteID+"/text-content", nil)
	require.Equal(t, nethttp.StatusOK, text.status)
	assert.Equal(t, "Trip. Pack bags. Todo list: Completed:  passport", text.body["textContent"])

	tags := c.do(nethttp.MethodGet, "/api/notes/tags/all", nil)
	require.Equal(t, nethttp.StatusOK, tags.status)
	assert.Equal(t, []any{map[string]any{"name": "travel", "count": float64(1)}}, tags.body["tags"])

	updated := c.do(nethttp.MethodPut, "/api/notes/"+noteID, map[string]any{"isPinned": true, "reminder": "2026-05-01T08:00:00Z"})
	require.Equal(t, nethttp.StatusOK, updated.status)
	assert.Equal(t, true, updated.body["note"].(map[string]any)["isPinned"])
	assert.NotNil(t, updated.body["note"].(map[string]any)["reminder"])

	cleared := c.do(nethttp.MethodPut, "/api/notes/"+noteID, map[string]any{"reminder": nil})
	require.Equal(t, nethttp.StatusOK, cleared.status)
	assert.Nil(t, cleared.body["note"].(map[string]any)["reminder"])

	removedTodo := c.do(nethttp.MethodDelete, "/api/todos/"+noteID+"/"+todoID, nil)
	assert.Equal(t, nethttp.StatusOK, removedTodo.status)

	deleted := c.do(nethttp.MethodDelete, "/api/notes/"+noteID, nil)
	assert.Equal(t, nethttp.StatusOK, deleted.status)
	gone := c.do(nethttp.MethodGet, "/api/notes/"+noteID, nil)
	assert.Equal(t, nethttp.StatusNotFound, gone.status)
}

func TestNotesRequireAuthentication(t *testing.T) {
	c := newTestServer(t).client(t)
	res := c.do(nethttp.MethodGet, "/api/notes", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, res.status)
	assert.Equal(t, "access denied, no token provided", res.body["error"])
}

func TestUnknownRouteAndProbes(t *testing.T) {
	c := newTestServer(t).client(t)

	unknown := c.do(nethttp.MethodGet, "/nope", nil)
	assert.Equal(t, nethttp.StatusNotFound, unknown.status)
	assert.Equal(t, "NOT_FOUND", unknown.body["code"])

	live := c.do(nethttp.MethodGet, "/health/live", nil)
	assert.Equal(t, nethttp.StatusOK, live.status)
	ready := c.do(nethttp.MethodGet, "/health/ready", nil)
	assert.Equal(t, nethttp.StatusOK, ready.status)
	assert.Equal(t, "ok", ready.body["dependencies"].(map[string]any)["store"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	c.do(nethttp.MethodGet, "/api/auth/me", nil)

	req := httptest.NewRequest(nethttp.MethodGet, "/metrics", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `notes_auth_outcomes_total{outcome="missing",stage="gate"} 1`)
	assert.Contains(t, string(body), "notes_http_requests_total")
}
