package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	decoyOnce sync.Once
	decoyHash string
)

// Verifier checks an email/password pair against the credential store.
type Verifier struct {
	store CredentialStore
}

func NewVerifier(store CredentialStore) *Verifier {
	return &Verifier{store: store}
}

// Verify returns the account and its grants when the email exists, the
// account is active and the password matches. Every failure wraps
// ErrInvalidCredentials; the wrapped detail is for server logs only.
func (v *Verifier) Verify(ctx context.Context, email, password string) (Identity, error) {
	if email == "" || password == "" {
		return Identity{}, fmt.Errorf("%w: empty email or password", ErrInvalidCredentials)
	}
	id, err := v.store.IdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Spend the same bcrypt time as a real comparison.
			_ = VerifyPassword(decoy(), password)
			return Identity{}, fmt.Errorf("%w: unknown email", ErrInvalidCredentials)
		}
		return Identity{}, err
	}
	if err := VerifyPassword(id.Account.PasswordHash, password); err != nil {
		return Identity{}, fmt.Errorf("%w: password mismatch", ErrInvalidCredentials)
	}
	if !id.Account.Active {
		return Identity{}, fmt.Errorf("%w: account inactive", ErrInvalidCredentials)
	}
	return id, nil
}

func decoy() string {
	decoyOnce.Do(func() {
		decoyHash, _ = HashPassword("decoy-password-never-matches")
	})
	return decoyHash
}
