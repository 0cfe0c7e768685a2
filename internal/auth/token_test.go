package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTokens(t *testing.T, clock *fakeClock) *Tokens {
	t.Helper()
	tokens, err := NewTokens(TokenConfig{
		SigningKey: testKey,
		Issuer:     "propertyhub",
		Audience:   "propertyhub-web",
		TTL:        60 * time.Minute,
	}, WithClock(clock.Now))
	require.NoError(t, err)
	return tokens
}

func TestTokenExpiryBoundary(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	tokens := newTestTokens(t, clock)
	acct := Account{ID: "acct-1", Email: "jo@example.com", DisplayName: "Jo"}

	raw, exp, err := tokens.Issue(acct, BuildFacts(Identity{Account: acct}))
	require.NoError(t, err)
	assert.True(t, clock.t.Add(60*time.Minute).Equal(exp))

	clock.Advance(59 * time.Minute)
	p, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", p.AccountID)
	assert.True(t, exp.Equal(p.ExpiresAt), "expiry %v != %v", exp, p.ExpiresAt)

	clock.Advance(2 * time.Minute)
	_, err = tokens.Parse(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRoundTripPreservesFacts(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tokens := newTestTokens(t, clock)
	id := identityWith(
		[]string{"Global Admin", "Auditor"},
		[]WorkstreamGrant{
			wsGrant("ws-hub", "Property Hub", PermissionAdmin),
			wsGrant("ws-fin", "Finance", PermissionRead),
			wsGrant("ws-pm", "Property Management", PermissionEdit),
		},
		[]PropertyGroupGrant{
			{PropertyGroupID: "pg-1", Active: true},
			{PropertyGroupID: "pg-2", Active: true},
			{PropertyGroupID: "pg-3", Active: false},
		},
	)
	facts := BuildFacts(id)

	raw, _, err := tokens.Issue(id.Account, facts)
	require.NoError(t, err)
	p, err := tokens.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, facts, p.Facts)
	assert.Equal(t, "jo@example.com", p.Email)
	assert.Equal(t, "Jo", p.DisplayName)
}

func TestTokenRoundTripWithoutGrants(t *testing.T) {
	tokens := newTestTokens(t, &fakeClock{t: time.Now()})
	acct := Account{ID: "acct-2", Email: "nobody@example.com"}
	facts := BuildFacts(Identity{Account: acct})
	raw, _, err := tokens.Issue(acct, facts)
	require.NoError(t, err)
	p, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, facts, p.Facts)
}

func TestTokenClaimsShape(t *testing.T) {
	tokens := newTestTokens(t, &fakeClock{t: time.Now()})
	id := identityWith([]string{"Auditor"}, []WorkstreamGrant{wsGrant("ws-hub", "Property Hub", PermissionRead)}, nil)
	raw, _, err := tokens.Issue(id.Account, BuildFacts(id))
	require.NoError(t, err)

	var claims Claims
	_, _, err = jwt.NewParser().ParseUnverified(raw, &claims)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.Subject)
	assert.Equal(t, "propertyhub", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"propertyhub-web"}, claims.Audience)
	assert.NotEmpty(t, claims.ID)
	assert.False(t, claims.GlobalAdmin)
	assert.Equal(t, []string{"Auditor"}, claims.Roles)
	assert.Equal(t, []WorkstreamClaim{{ID: "ws-hub", Permission: "Read", PropertyHub: true}}, claims.Workstreams)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tokens := newTestTokens(t, clock)
	acct := Account{ID: "acct-1", Email: "jo@example.com"}

	other, err := NewTokens(TokenConfig{
		SigningKey: []byte(strings.Repeat("z", 32)),
		Issuer:     "propertyhub",
		Audience:   "propertyhub-web",
	}, WithClock(clock.Now))
	require.NoError(t, err)
	wrongKey, _, err := other.Issue(acct, BuildFacts(Identity{}))
	require.NoError(t, err)

	wrongAud, err := NewTokens(TokenConfig{SigningKey: testKey, Issuer: "propertyhub", Audience: "mobile"}, WithClock(clock.Now))
	require.NoError(t, err)
	wrongAudience, _, err := wrongAud.Issue(acct, BuildFacts(Identity{}))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acct-1",
			Issuer:    "propertyhub",
			Audience:  jwt.ClaimStrings{"propertyhub-web"},
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "acct-1",
			Issuer:   "propertyhub",
			Audience: jwt.ClaimStrings{"propertyhub-web"},
		},
	}).SignedString(testKey)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"wrong key":      wrongKey,
		"wrong audience": wrongAudience,
		"alg none":       unsigned,
		"no expiry":      noExpiry,
		"garbage":        "not.a.token",
		"empty":          "",
	} {
		_, err := tokens.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestParseRejectsUnknownPermissionClaim(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tokens := newTestTokens(t, clock)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Workstreams: []WorkstreamClaim{{ID: "ws-1", Permission: "Owner"}},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acct-1",
			Issuer:    "propertyhub",
			Audience:  jwt.ClaimStrings{"propertyhub-web"},
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}).SignedString(testKey)
	require.NoError(t, err)
	_, err = tokens.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokensValidatesConfig(t *testing.T) {
	_, err := NewTokens(TokenConfig{SigningKey: []byte("short"), Issuer: "i", Audience: "a"})
	assert.Error(t, err)
	_, err = NewTokens(TokenConfig{SigningKey: testKey, Audience: "a"})
	assert.Error(t, err)
	_, err = NewTokens(TokenConfig{SigningKey: testKey, Issuer: "i", Audience: "a", TTL: -time.Minute})
	assert.Error(t, err)

	tokens, err := NewTokens(TokenConfig{SigningKey: testKey, Issuer: "i", Audience: "a"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, tokens.TTL())

	_, _, err = tokens.Issue(Account{}, Facts{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
