package audit

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidEntry = errors.New("audit: invalid entry")

// Action is the kind of mutation an entry records.
type Action string

const (
	ActionCreate        Action = "Create"
	ActionUpdate        Action = "Update"
	ActionDelete        Action = "Delete"
	ActionResetPassword Action = "ResetPassword"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionResetPassword:
		return true
	}
	return false
}

// Entry is one immutable audit record. Summaries are free text snapshots
// and are not checked against the real entity state.
type Entry struct {
	ID             string    `json:"id"`
	OccurredAt     time.Time `json:"occurred_at"`
	ActorAccountID string    `json:"actor_account_id"`
	Action         Action    `json:"action"`
	EntityType     string    `json:"entity_type"`
	EntityID       string    `json:"entity_id"`
	OldSummary     string    `json:"old_summary,omitempty"`
	NewSummary     string    `json:"new_summary,omitempty"`
	SourceAddress  string    `json:"source_address,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
}

// Change describes a committed mutation to be recorded.
type Change struct {
	Action     Action
	EntityType string
	EntityID   string
	Old        string
	New        string
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	EntityType string
	EntityID   string
	ActorID    string
	Limit      int
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Normalize clamps the limit into [1, MaxListLimit].
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}

// Store appends entries and lists them newest first. There is no update or
// delete path.
type Store interface {
	AppendAudit(ctx context.Context, e Entry) error
	ListAudit(ctx context.Context, f Filter) ([]Entry, error)
}
