package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type credStub struct {
	byEmail map[string]Identity
	err     error
}

func (s *credStub) IdentityByEmail(_ context.Context, email string) (Identity, error) {
	if s.err != nil {
		return Identity{}, s.err
	}
	id, ok := s.byEmail[email]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return id, nil
}

func (s *credStub) IdentityByID(_ context.Context, accountID string) (Identity, error) {
	if s.err != nil {
		return Identity{}, s.err
	}
	for _, id := range s.byEmail {
		if id.Account.ID == accountID {
			return id, nil
		}
	}
	return Identity{}, ErrNotFound
}

func newCredStub(t *testing.T, active bool) *credStub {
	t.Helper()
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	id := identityWith(nil, []WorkstreamGrant{wsGrant("ws-hub", "Property Hub", PermissionAdmin)},
		[]PropertyGroupGrant{{AccountID: "acct-1", PropertyGroupID: "pg-1", Active: true}})
	id.Account.PasswordHash = hash
	id.Account.Active = active
	return &credStub{byEmail: map[string]Identity{id.Account.Email: id}}
}

func TestVerifyFailuresAreUniform(t *testing.T) {
	ctx := context.Background()
	active := NewVerifier(newCredStub(t, true))
	inactive := NewVerifier(newCredStub(t, false))

	cases := []struct {
		name     string
		v        *Verifier
		email    string
		password string
	}{
		{"unknown email", active, "nobody@example.com", "correct horse"},
		{"email case differs", active, "Jo@example.com", "correct horse"},
		{"wrong password", active, "jo@example.com", "wrong horse"},
		{"inactive with correct password", inactive, "jo@example.com", "correct horse"},
		{"empty password", active, "jo@example.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.v.Verify(ctx, tc.email, tc.password)
			require.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestVerifyReturnsGrants(t *testing.T) {
	v := NewVerifier(newCredStub(t, true))
	id, err := v.Verify(context.Background(), "jo@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", id.Account.ID)
	assert.Len(t, id.Workstreams, 1)
	assert.Len(t, id.PropertyGroups, 1)
}

func TestVerifyPropagatesStoreOutage(t *testing.T) {
	outage := errors.New("connection refused")
	v := NewVerifier(&credStub{err: outage})
	_, err := v.Verify(context.Background(), "jo@example.com", "correct horse")
	require.ErrorIs(t, err, outage)
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
}

func TestServiceLoginAndAuthenticate(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
	store := newCredStub(t, true)
	svc, err := NewService(store, newTestTokens(t, clock))
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "jo@example.com", "nope-nope")
	require.Equal(t, ErrInvalidCredentials, err)

	sess, err := svc.Login(context.Background(), "jo@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.True(t, sess.ExpiresAt.Equal(clock.t.Add(time.Hour)))

	p, err := svc.Authenticate(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.Facts, p.Facts)
	ok, err := Resolve(p.Facts, PropertyHubAdminAccess())
	require.NoError(t, err)
	assert.True(t, ok)

	id, err := svc.Me(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", id.Account.Email)
}

func TestDeactivationBlocksLoginButNotIssuedTokens(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	store := newCredStub(t, true)
	svc, err := NewService(store, newTestTokens(t, clock))
	require.NoError(t, err)

	sess, err := svc.Login(context.Background(), "jo@example.com", "correct horse")
	require.NoError(t, err)

	id := store.byEmail["jo@example.com"]
	id.Account.Active = false
	store.byEmail["jo@example.com"] = id

	_, err = svc.Login(context.Background(), "jo@example.com", "correct horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	p, err := svc.Authenticate(sess.Token)
	require.NoError(t, err, "tokens stay valid until expiry")

	_, err = svc.Me(context.Background(), p)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMeUnknownSubject(t *testing.T) {
	svc, err := NewService(&credStub{byEmail: map[string]Identity{}}, newTestTokens(t, &fakeClock{t: time.Now()}))
	require.NoError(t, err)
	_, err = svc.Me(context.Background(), Principal{AccountID: "ghost"})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordAlgorithms(t *testing.T) {
	for _, alg := range []string{HashBcrypt, HashArgon2id} {
		hash, err := HashPasswordWith(alg, "long enough pw")
		require.NoError(t, err, alg)
		require.NoError(t, VerifyPassword(hash, "long enough pw"), alg)
		require.Error(t, VerifyPassword(hash, "long enough pW"), alg)
	}
	_, err := HashPassword("short")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = HashPasswordWith("md5", "long enough pw")
	require.Error(t, err)
	require.Error(t, VerifyPassword("$argon2id$garbage", "x"))
}
