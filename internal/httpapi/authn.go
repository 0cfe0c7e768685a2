package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"propertyhub.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth validates the bearer token and attaches the principal. The
// store is not consulted; facts come from the token alone.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			unauthorized(w, r, err.Error())
			return
		}

		principal, err := a.auth.Authenticate(token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				unauthorized(w, r, "invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireChecks rejects callers whose facts fail any of checks.
func RequireChecks(checks ...auth.Check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				unauthorized(w, r, "authentication required")
				return
			}
			if err := auth.Require(principal.Facts, checks...); err != nil {
				handleError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principalOrAbort(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r, "authentication required")
	}
	return p, ok
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="propertyhub"`)
	writeError(w, r, http.StatusUnauthorized, msg)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
