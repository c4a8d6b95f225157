package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/notes-service/internal/domain"
)

const (
	testAccessSecret  = "test-access-secret"
	testRefreshSecret = "test-refresh-secret"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTokenService(t *testing.T, clock *fakeClock) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testAccessSecret, testRefreshSecret, WithClock(clock.Now))
	require.NoError(t, err)
	return ts
}

func testUser(role domain.Role) *domain.User {
	return &domain.User{ID: "64f0c2a1e4b0a1b2c3d4e5f6", Username: "alice", Role: role}
}

func TestNewTokenService_RequiresSecrets(t *testing.T) {
	_, err := NewTokenService("", testRefreshSecret)
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = NewTokenService(testAccessSecret, "")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestTokenService_AccessRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	ts := newTestTokenService(t, clock)

	for _, role := range []domain.Role{domain.RoleUser, domain.RoleAdmin} {
		user := testUser(role)
		token, exp, err := ts.IssueAccessToken(user)
		require.NoError(t, err)
		assert.Equal(t, clock.Now().Add(AccessTokenTTL), exp)

		res := ts.VerifyAccess(token)
		require.True(t, res.Valid)
		assert.False(t, res.Expired)
		require.NotNil(t, res.Claims)
		assert.Equal(t, user.ID, res.Claims.UserID)
		assert.Equal(t, user.Username, res.Claims.Username)
		assert.Equal(t, role, res.Claims.Role)
	}
}

func TestTokenService_RefreshCarriesIDOnly(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	ts := newTestTokenService(t, clock)

	token, exp, err := ts.IssueRefreshToken(testUser(domain.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(RefreshTokenTTL), exp)

	res := ts.VerifyRefresh(token)
	require.True(t, res.Valid)
	assert.Equal(t, "64f0c2a1e4b0a1b2c3d4e5f6", res.Claims.UserID)

	raw := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, raw)
	require.NoError(t, err)
	assert.NotContains(t, raw, "role")
	assert.NotContains(t, raw, "username")
}

func TestTokenService_CrossSecretFails(t *testing.T) {
	ts := newTestTokenService(t, &fakeClock{t: time.Now()})
	user := testUser(domain.RoleUser)

	access, _, err := ts.IssueAccessToken(user)
	require.NoError(t, err)
	refresh, _, err := ts.IssueRefreshToken(user)
	require.NoError(t, err)

	asRefresh := ts.VerifyRefresh(access)
	assert.False(t, asRefresh.Valid)
	assert.False(t, asRefresh.Expired)
	assert.Nil(t, asRefresh.Claims)

	asAccess := ts.VerifyAccess(refresh)
	assert.False(t, asAccess.Valid)
	assert.False(t, asAccess.Expired)
	assert.Nil(t, asAccess.Claims)
}

func TestTokenService_Expired(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	ts := newTestTokenService(t, clock)

	token, _, err := ts.IssueAccessToken(testUser(domain.RoleUser))
	require.NoError(t, err)

	clock.Advance(AccessTokenTTL + time.Second)
	res := ts.VerifyAccess(token)
	assert.False(t, res.Valid)
	assert.True(t, res.Expired)
	assert.Nil(t, res.Claims)
}

func TestVerify_CraftedPastExpiry(t *testing.T) {
	claims := &AccessClaims{
		UserID: "u1",
		Role:   domain.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	res := Verify(token, []byte(testAccessSecret), &AccessClaims{}, time.Now)
	assert.False(t, res.Valid)
	assert.True(t, res.Expired)
	assert.Nil(t, res.Claims)

	// An expired token with a foreign signature is invalid, not expired.
	forged := Verify(token, []byte("another-secret"), &AccessClaims{}, time.Now)
	assert.False(t, forged.Valid)
	assert.False(t, forged.Expired)
}

func TestVerify_Malformed(t *testing.T) {
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		res := Verify(token, []byte(testAccessSecret), &AccessClaims{}, time.Now)
		assert.False(t, res.Valid, token)
		assert.False(t, res.Expired, token)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	claims := &AccessClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	res := Verify(token, []byte(testAccessSecret), &AccessClaims{}, time.Now)
	assert.False(t, res.Valid)
	assert.False(t, res.Expired)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &AccessClaims{UserID: "u1"}).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	res := Verify(token, []byte(testAccessSecret), &AccessClaims{}, time.Now)
	assert.False(t, res.Valid)
}
