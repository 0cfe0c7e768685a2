package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"propertyhub.org/internal/ids"
	"propertyhub.org/internal/obs"
)

// Recorder appends audit entries. It is called after a mutation has
// committed, so a failed append cannot undo the mutation.
type Recorder struct {
	store     Store
	now       func() time.Time
	publisher Publisher
}

// Publisher receives every entry after it has been stored.
type Publisher interface {
	Publish(e Entry)
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithPublisher forwards appended entries to p.
func WithPublisher(p Publisher) Option {
	return func(r *Recorder) {
		r.publisher = p
	}
}

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one entry attributed to actorID. Request id and source
// address are taken from ctx.
func (r *Recorder) Record(ctx context.Context, actorID string, c Change) (Entry, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Entry{}, fmt.Errorf("%w: actor required", ErrInvalidEntry)
	}
	if !c.Action.Valid() {
		return Entry{}, fmt.Errorf("%w: unknown action %q", ErrInvalidEntry, c.Action)
	}
	if strings.TrimSpace(c.EntityType) == "" || strings.TrimSpace(c.EntityID) == "" {
		return Entry{}, fmt.Errorf("%w: entity type and id required", ErrInvalidEntry)
	}
	e := Entry{
		ID:             ids.New(),
		OccurredAt:     r.now().UTC(),
		ActorAccountID: actorID,
		Action:         c.Action,
		EntityType:     c.EntityType,
		EntityID:       c.EntityID,
		OldSummary:     c.Old,
		NewSummary:     c.New,
		SourceAddress:  SourceAddressFromContext(ctx),
		RequestID:      RequestIDFromContext(ctx),
	}
	if r.store == nil {
		return Entry{}, fmt.Errorf("audit: store unavailable")
	}
	if err := r.store.AppendAudit(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("audit: append: %w", err)
	}
	obs.ObserveAuditEntry(string(e.Action))
	if r.publisher != nil {
		r.publisher.Publish(e)
	}
	obs.Logger().LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("audit_id", e.ID),
		slog.String("actor", e.ActorAccountID),
		slog.String("action", string(e.Action)),
		slog.String("entity_type", e.EntityType),
		slog.String("entity_id", e.EntityID),
		slog.String("request_id", e.RequestID),
		slog.String("source", e.SourceAddress),
	)
	return e, nil
}

// Track records c and swallows the error. The mutation already happened, so
// a failure is logged and counted for later reconciliation.
func (r *Recorder) Track(ctx context.Context, actorID string, c Change) {
	if _, err := r.Record(ctx, actorID, c); err != nil {
		obs.ObserveAuditFailure()
		obs.Logger().LogAttrs(ctx, slog.LevelError, "audit_write_failed",
			slog.String("actor", actorID),
			slog.String("action", string(c.Action)),
			slog.String("entity_type", c.EntityType),
			slog.String("entity_id", c.EntityID),
			slog.String("request_id", RequestIDFromContext(ctx)),
			slog.String("error", err.Error()),
		)
	}
}

// List returns entries newest first.
func (r *Recorder) List(ctx context.Context, f Filter) ([]Entry, error) {
	if r.store == nil {
		return nil, fmt.Errorf("audit: store unavailable")
	}
	return r.store.ListAudit(ctx, f.Normalize())
}
