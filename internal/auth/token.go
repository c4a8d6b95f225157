package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/notes-service/internal/domain"
)

// Token lifetimes. The cookie max-ages in session.go mirror these.
const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// ErrMissingSecret is returned at construction when a signing secret is empty.
var ErrMissingSecret = errors.New("token signing secret is not configured")

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	UserID   string      `json:"id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. It carries the user id only,
// so role changes reach the client on the next refresh.
type RefreshClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// VerifyResult is the outcome of checking a token against a secret.
// Exactly one of: Valid with Claims set; Expired (signature was good); neither (malformed or forged).
type VerifyResult[C jwt.Claims] struct {
	Valid   bool
	Expired bool
	Claims  C
}

// TokenService issues and verifies access and refresh tokens.
//
// Refresh tokens are not persisted and there is no revocation list: a refresh
// token stays usable until it expires, even after logout.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) TokenOption {
	return func(ts *TokenService) {
		ts.now = now
	}
}

// NewTokenService builds a service signing with two distinct secrets.
func NewTokenService(accessSecret, refreshSecret string, opts ...TokenOption) (*TokenService, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, ErrMissingSecret
	}
	ts := &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts, nil
}

// IssueAccessToken signs {id, username, role} with the access secret.
func (ts *TokenService) IssueAccessToken(user *domain.User) (string, time.Time, error) {
	now := ts.now()
	expiresAt := now.Add(AccessTokenTTL)
	claims := &AccessClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken signs {id} with the refresh secret.
func (ts *TokenService) IssueRefreshToken(user *domain.User) (string, time.Time, error) {
	now := ts.now()
	expiresAt := now.Add(RefreshTokenTTL)
	claims := &RefreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyAccess checks a token against the access secret.
func (ts *TokenService) VerifyAccess(tokenStr string) VerifyResult[*AccessClaims] {
	return Verify(tokenStr, ts.accessSecret, &AccessClaims{}, ts.now)
}

// VerifyRefresh checks a token against the refresh secret.
func (ts *TokenService) VerifyRefresh(tokenStr string) VerifyResult[*RefreshClaims] {
	return Verify(tokenStr, ts.refreshSecret, &RefreshClaims{}, ts.now)
}

// Verify parses tokenStr into claims using secret. The signature is checked
// before expiry, so Expired is only reported for tokens signed with secret.
func Verify[C jwt.Claims](tokenStr string, secret []byte, claims C, now func() time.Time) VerifyResult[C] {
	var none C
	if tokenStr == "" {
		return VerifyResult[C]{Claims: none}
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	switch {
	case err == nil && parsed.Valid:
		return VerifyResult[C]{Valid: true, Claims: claims}
	case errors.Is(err, jwt.ErrTokenExpired):
		return VerifyResult[C]{Expired: true, Claims: none}
	default:
		return VerifyResult[C]{Claims: none}
	}
}
