package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// Cookie names shared with the SPA.
const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

// SessionTransport carries tokens between client and server in http-only cookies,
// with the Authorization header accepted as a fallback for non-browser clients.
type SessionTransport struct {
	secure bool
}

// NewSessionTransport builds a transport; secure marks cookies for HTTPS only.
func NewSessionTransport(secure bool) *SessionTransport {
	return &SessionTransport{secure: secure}
}

// Attach stores both tokens as cookies.
func (s *SessionTransport) Attach(c *fiber.Ctx, accessToken, refreshToken string) {
	c.Cookie(s.cookie(AccessCookieName, accessToken, int(AccessTokenTTL.Seconds())))
	c.Cookie(s.cookie(RefreshCookieName, refreshToken, int(RefreshTokenTTL.Seconds())))
}

// Clear overwrites both cookies with empty, already expired values. The expiry is sent as
// Expires=Tue, 10 Nov 2009 23:00:00 GMT with no Max-Age attribute.
func (s *SessionTransport) Clear(c *fiber.Ctx) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		// fasthttp drops non-positive Max-Age, so expiry is expressed through Expires.
		cookie := s.cookie(name, "", 0)
		cookie.Expires = fasthttp.CookieExpireDelete
		c.Cookie(cookie)
	}
}

// Extract returns the access token from the cookie, then the bearer header, or "".
func (s *SessionTransport) Extract(c *fiber.Ctx) string {
	if token := c.Cookies(AccessCookieName); token != "" {
		return token
	}
	header := c.Get(fiber.HeaderAuthorization)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RefreshToken returns the refresh token cookie value, or "".
func (s *SessionTransport) RefreshToken(c *fiber.Ctx) string {
	return c.Cookies(RefreshCookieName)
}

func (s *SessionTransport) cookie(name, value string, maxAge int) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   s.secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	}
}
