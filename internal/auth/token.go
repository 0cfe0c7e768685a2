package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultTokenTTL = 60 * time.Minute
	minSigningKey   = 32
)

// Principal is the caller reconstructed from a validated bearer token.
type Principal struct {
	AccountID   string
	Email       string
	DisplayName string
	Facts       Facts
	ExpiresAt   time.Time
}

// WorkstreamClaim is one (workstream, permission) pair inside a token.
type WorkstreamClaim struct {
	ID          string `json:"id"`
	Permission  string `json:"permission"`
	PropertyHub bool   `json:"property_hub,omitempty"`
}

// Claims is the JWT payload.
type Claims struct {
	Email          string            `json:"email"`
	Name           string            `json:"name,omitempty"`
	Roles          []string          `json:"roles,omitempty"`
	Workstreams    []WorkstreamClaim `json:"workstreams,omitempty"`
	PropertyGroups []string          `json:"property_groups,omitempty"`
	GlobalAdmin    bool              `json:"global_admin"`
	jwt.RegisteredClaims
}

// TokenConfig is read once at startup.
type TokenConfig struct {
	SigningKey []byte
	Issuer     string
	Audience   string
	TTL        time.Duration
}

// Tokens issues and validates HS256 bearer tokens. It holds no mutable
// state after construction and is safe for concurrent use.
type Tokens struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// TokenOption configures Tokens.
type TokenOption func(*Tokens) error

// WithClock overrides the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(t *Tokens) error {
		if now == nil {
			return errors.New("auth: clock must not be nil")
		}
		t.now = now
		return nil
	}
}

// NewTokens validates cfg. A missing or short key is a configuration error.
func NewTokens(cfg TokenConfig, opts ...TokenOption) (*Tokens, error) {
	if len(cfg.SigningKey) < minSigningKey {
		return nil, fmt.Errorf("auth: signing key must be at least %d bytes", minSigningKey)
	}
	if strings.TrimSpace(cfg.Issuer) == "" || strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("auth: issuer and audience are required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.TTL < 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	t := &Tokens{
		key:      append([]byte(nil), cfg.SigningKey...),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	t.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return t.now() }),
	)
	return t, nil
}

func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for account carrying facts. It returns the token and
// its expiry.
func (t *Tokens) Issue(account Account, facts Facts) (string, time.Time, error) {
	if account.ID == "" {
		return "", time.Time{}, fmt.Errorf("%w: subject required", ErrInvalidInput)
	}
	now := t.now().UTC().Truncate(time.Second)
	exp := now.Add(t.ttl)
	claims := Claims{
		Email:          account.Email,
		Name:           account.DisplayName,
		Roles:          facts.RoleList(),
		PropertyGroups: facts.PropertyGroupList(),
		GlobalAdmin:    facts.GlobalAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{t.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	for _, id := range facts.WorkstreamIDs() {
		ws := facts.Workstreams[id]
		claims.Workstreams = append(claims.Workstreams, WorkstreamClaim{
			ID:          id,
			Permission:  string(ws.Permission),
			PropertyHub: ws.PropertyHub,
		})
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse validates signature, issuer, audience and expiry, then rebuilds the
// caller's facts. Every failure wraps ErrInvalidToken.
func (t *Tokens) Parse(raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	var claims Claims
	_, err := t.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	facts := newFacts()
	for _, r := range claims.Roles {
		facts.addRole(r)
	}
	if claims.GlobalAdmin {
		facts.GlobalAdmin = true
	}
	for _, ws := range claims.Workstreams {
		if ws.ID == "" {
			continue
		}
		if _, seen := facts.Workstreams[ws.ID]; seen {
			continue
		}
		perm, err := ParsePermissionKind(ws.Permission)
		if err != nil {
			return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		facts.Workstreams[ws.ID] = WorkstreamAccess{Permission: perm, PropertyHub: ws.PropertyHub}
	}
	for _, g := range claims.PropertyGroups {
		if g != "" {
			facts.PropertyGroups[g] = struct{}{}
		}
	}
	p := Principal{
		AccountID:   claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		Facts:       facts,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return p, nil
}
