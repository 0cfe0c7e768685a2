package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("records: not found")
	ErrInvalidInput = errors.New("records: invalid input")
)

// Type is one of the record kinds kept for property management.
type Type string

const (
	TypeProperty   Type = "property"
	TypeTenancy    Type = "tenancy"
	TypeJournal    Type = "journal"
	TypeContactLog Type = "contact_log"
	TypeTag        Type = "tag"
)

var types = []Type{TypeProperty, TypeTenancy, TypeJournal, TypeContactLog, TypeTag}

func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown record type %q", ErrInvalidInput, s)
}

// Record is the generic envelope shared by every record type.
type Record struct {
	ID              string    `json:"id"`
	Type            Type      `json:"type"`
	PropertyGroupID string    `json:"property_group_id,omitempty"`
	Title           string    `json:"title"`
	Body            string    `json:"body,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Patch carries optional changes for Update.
type Patch struct {
	Title           *string
	Body            *string
	PropertyGroupID *string
}

// Visibility bounds which records a listing may return. Ungrouped records
// are always visible; grouped ones only when All is set or their group is
// in Groups.
type Visibility struct {
	All    bool
	Groups []string
}

// Allows reports whether a record in groupID is visible.
func (v Visibility) Allows(groupID string) bool {
	if v.All || groupID == "" {
		return true
	}
	for _, g := range v.Groups {
		if g == groupID {
			return true
		}
	}
	return false
}

// Repository persists records. ListRecords applies vis before limit.
type Repository interface {
	CreateRecord(ctx context.Context, r Record) (Record, error)
	GetRecord(ctx context.Context, typ Type, id string) (Record, error)
	ListRecords(ctx context.Context, typ Type, vis Visibility, limit int) ([]Record, error)
	UpdateRecord(ctx context.Context, r Record) (Record, error)
	DeleteRecord(ctx context.Context, typ Type, id string) error
}
