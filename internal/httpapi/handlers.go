package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"propertyhub.org/internal/audit"
	"propertyhub.org/internal/auth"
	"propertyhub.org/internal/obs"
	"propertyhub.org/internal/records"
	"propertyhub.org/internal/stream"
)

const serviceName = "propertyhub-api"

// readinessChecker reports whether dependencies can serve traffic.
type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe pings the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// AuditLister serves GET /v1/audit.
type AuditLister interface {
	List(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
}

// Options wires the services behind the HTTP layer.
type Options struct {
	Version string
	Ready   readinessChecker
	Auth    *auth.Service
	Admin   *auth.Admin
	Records *records.Service
	Audit   AuditLister
	// Feed enables /v1/audit/stream when set.
	Feed *stream.Feed

	CORSOrigins    []string
	LoginBurst     int
	LoginPerSecond float64
}

// API is the HTTP layer.
type API struct {
	router     chi.Router
	ready      readinessChecker
	version    string
	auth       *auth.Service
	admin      *auth.Admin
	records    *records.Service
	audit      AuditLister
	feed       *stream.Feed
	origins    []string
	rateBurst  int
	ratePerSec float64
}

func New(opts Options) (*API, error) {
	if opts.Auth == nil || opts.Admin == nil || opts.Records == nil || opts.Audit == nil {
		return nil, errors.New("httpapi: auth, admin, records and audit services are required")
	}
	a := &API{
		ready:      opts.Ready,
		version:    opts.Version,
		auth:       opts.Auth,
		admin:      opts.Admin,
		records:    opts.Records,
		audit:      opts.Audit,
		feed:       opts.Feed,
		origins:    opts.CORSOrigins,
		rateBurst:  opts.LoginBurst,
		ratePerSec: opts.LoginPerSecond,
	}
	if a.ready == nil {
		a.ready = ReadyProbe{}
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 5
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 1
	}
	a.router = a.routes()
	return a, nil
}

// Handler returns the root handler for the HTTP server.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID, LoggingJSON, obs.Instrument, SecurityHeaders, CORS(a.origins))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.With(func(next http.Handler) http.Handler {
		return RateLimit(next, a.rateBurst, a.ratePerSec)
	}).Post("/auth/login", a.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(a.withAuth)

		r.Get("/auth/me", a.handleMe)
		r.Get("/v1/access", a.handleAccess)

		r.Route("/v1/records/{type}", func(r chi.Router) {
			r.Get("/", a.listRecords)
			r.Get("/{id}", a.getRecord)

			write := r.With(RequireChecks(auth.PropertyHubAdminAccess()))
			write.Post("/", a.createRecord)
			write.Put("/{id}", a.updateRecord)
			write.Delete("/{id}", a.deleteRecord)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireChecks(auth.GlobalAdmin()))

			r.Post("/v1/accounts", a.createAccount)
			r.Patch("/v1/accounts/{id}", a.updateAccount)
			r.Post("/v1/accounts/{id}/password", a.resetPassword)
			r.Post("/v1/accounts/{id}/roles", a.assignRole)
			r.Delete("/v1/accounts/{id}/roles/{roleID}", a.removeRole)
			r.Put("/v1/accounts/{id}/workstreams/{wsID}", a.grantWorkstream)
			r.Delete("/v1/accounts/{id}/workstreams/{wsID}", a.revokeWorkstream)
			r.Put("/v1/accounts/{id}/property-groups/{groupID}", a.grantPropertyGroup)
			r.Delete("/v1/accounts/{id}/property-groups/{groupID}", a.revokePropertyGroup)

			r.Post("/v1/roles", a.createRole)
			r.Post("/v1/workstreams", a.createWorkstream)
			r.Post("/v1/property-groups", a.createPropertyGroup)

			r.Get("/v1/audit", a.listAudit)
			r.Get("/v1/audit/stream", a.auditStream)
		})
	})
	return r
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.Logger().Warn("readiness_failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// handleError maps service errors onto status codes. Forbidden responses
// carry only the static reason of the failed check.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var forbidden *auth.ForbiddenError
	switch {
	case errors.As(err, &forbidden):
		obs.ObserveDenial(forbidden.Check.String())
		writeError(w, r, http.StatusForbidden, forbidden.Reason)
	case errors.Is(err, auth.ErrForbidden):
		obs.ObserveDenial("unknown")
		writeError(w, r, http.StatusForbidden, "Access denied")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, auth.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, records.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, auth.ErrUnknownPermission),
		errors.Is(err, records.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, "resource already exists")
	default:
		obs.Logger().LogAttrs(r.Context(), slog.LevelError, "request_failed",
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return val, nil
}
