package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"propertyhub.org/internal/obs"
)

// Session is what a successful login hands back to the caller.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Account   Account
	Facts     Facts
}

// Service ties the verifier, claims builder and token codec together.
type Service struct {
	store    CredentialStore
	verifier *Verifier
	tokens   *Tokens
}

func NewService(store CredentialStore, tokens *Tokens) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: credential store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token codec is required")
	}
	return &Service{store: store, verifier: NewVerifier(store), tokens: tokens}, nil
}

// Login verifies the credentials and issues a bearer token. Every
// credential failure is reported to the caller as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	id, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			obs.ObserveLogin("denied")
			obs.Logger().LogAttrs(ctx, slog.LevelWarn, "auth.login_failed", slog.String("reason", err.Error()))
			return Session{}, ErrInvalidCredentials
		}
		obs.ObserveLogin("error")
		return Session{}, fmt.Errorf("auth: verify: %w", err)
	}
	facts := BuildFacts(id)
	token, exp, err := s.tokens.Issue(id.Account, facts)
	if err != nil {
		obs.ObserveLogin("error")
		return Session{}, err
	}
	obs.ObserveLogin("ok")
	return Session{Token: token, ExpiresAt: exp, Account: id.Account, Facts: facts}, nil
}

// Authenticate validates a bearer token. It never touches the store.
func (s *Service) Authenticate(token string) (Principal, error) {
	return s.tokens.Parse(token)
}

// Me re-reads the caller's account. A subject that no longer resolves to an
// active account is treated as an invalid token.
func (s *Service) Me(ctx context.Context, p Principal) (Identity, error) {
	id, err := s.store.IdentityByID(ctx, p.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: subject no longer exists", ErrInvalidToken)
		}
		return Identity{}, err
	}
	if !id.Account.Active {
		return Identity{}, fmt.Errorf("%w: account inactive", ErrInvalidToken)
	}
	return id, nil
}
