package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cookiesByName(resp *http.Response) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, ck := range resp.Cookies() {
		out[ck.Name] = ck
	}
	return out
}

func TestSessionTransport_Attach(t *testing.T) {
	for _, secure := range []bool{false, true} {
		session := NewSessionTransport(secure)
		app := fiber.New()
		app.Get("/", func(c *fiber.Ctx) error {
			session.Attach(c, "access-value", "refresh-value")
			return c.SendStatus(http.StatusOK)
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)

		cookies := cookiesByName(resp)
		access := cookies[AccessCookieName]
		refresh := cookies[RefreshCookieName]
		require.NotNil(t, access)
		require.NotNil(t, refresh)

		assert.Equal(t, "access-value", access.Value)
		assert.Equal(t, 900, access.MaxAge)
		assert.Equal(t, "refresh-value", refresh.Value)
		assert.Equal(t, 7*24*3600, refresh.MaxAge)
		for _, ck := range []*http.Cookie{access, refresh} {
			assert.True(t, ck.HttpOnly)
			assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
			assert.Equal(t, secure, ck.Secure)
			assert.Equal(t, "/", ck.Path)
		}
	}
}

func TestSessionTransport_Clear(t *testing.T) {
	session := NewSessionTransport(false)
	app := fiber.New()
	app.Post("/logout", func(c *fiber.Ctx) error {
		session.Clear(c)
		return c.SendStatus(http.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.NoError(t, err)

	cookies := cookiesByName(resp)
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		ck := cookies[name]
		require.NotNil(t, ck, name)
		assert.Empty(t, ck.Value)
		assert.True(t, ck.Expires.Before(time.Now()), "cookie %s must already be expired", name)
		assert.LessOrEqual(t, ck.MaxAge, 0)
	}

	setCookies := resp.Header.Values("Set-Cookie")
	require.Len(t, setCookies, 2)
	for _, raw := range setCookies {
		raw = strings.ToLower(raw)
		assert.Contains(t, raw, "expires=tue, 10 nov 2009 23:00:00 gmt")
		assert.NotContains(t, raw, "max-age")
	}
}

func TestSessionTransport_Extract(t *testing.T) {
	session := NewSessionTransport(false)
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(session.Extract(c))
	})

	tests := []struct {
		name   string
		cookie string
		header string
		want   string
	}{
		{name: "none"},
		{name: "cookie", cookie: "from-cookie", want: "from-cookie"},
		{name: "header", header: "Bearer from-header", want: "from-header"},
		{name: "lowercase scheme", header: "bearer from-header", want: "from-header"},
		{name: "cookie wins", cookie: "from-cookie", header: "Bearer from-header", want: "from-cookie"},
		{name: "other scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "bare header", header: "from-header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(body))
		})
	}
}
