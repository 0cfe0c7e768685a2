package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"propertyhub.org/internal/audit"
	"propertyhub.org/internal/auth"
	"propertyhub.org/internal/ids"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Tracker records committed changes without failing the caller.
type Tracker interface {
	Track(ctx context.Context, actorID string, c audit.Change)
}

// Service gates record CRUD behind the permission resolver. Reads need
// Property Hub access, writes need Property Hub Admin, and records that
// belong to a property group also need access to that group. Permission is
// checked before an entity is loaded, and a record hidden by its group is
// reported as missing, so denials never reveal existence.
type Service struct {
	repo  Repository
	audit Tracker
	now   func() time.Time
}

func NewService(repo Repository, tracker Tracker) (*Service, error) {
	if repo == nil {
		return nil, errors.New("records: repository is required")
	}
	if tracker == nil {
		return nil, errors.New("records: audit tracker is required")
	}
	return &Service{repo: repo, audit: tracker, now: time.Now}, nil
}

func (s *Service) Create(ctx context.Context, p auth.Principal, in Record) (Record, error) {
	if err := auth.Require(p.Facts, auth.PropertyHubAdminAccess()); err != nil {
		return Record{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.PropertyGroupID = strings.TrimSpace(in.PropertyGroupID)
	if in.Title == "" {
		return Record{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	typ, err := ParseType(string(in.Type))
	if err != nil {
		return Record{}, err
	}
	in.Type = typ
	if err := requireGroup(p, in.PropertyGroupID); err != nil {
		return Record{}, err
	}
	now := s.now().UTC()
	in.ID = ids.New()
	in.CreatedAt = now
	in.UpdatedAt = now
	rec, err := s.repo.CreateRecord(ctx, in)
	if err != nil {
		return Record{}, err
	}
	s.audit.Track(ctx, p.AccountID, audit.Change{
		Action:     audit.ActionCreate,
		EntityType: string(rec.Type),
		EntityID:   rec.ID,
		New:        summary(rec),
	})
	return rec, nil
}

func (s *Service) Get(ctx context.Context, p auth.Principal, typ Type, id string) (Record, error) {
	if err := auth.Require(p.Facts, auth.PropertyHubAccess()); err != nil {
		return Record{}, err
	}
	return s.load(ctx, p, typ, id)
}

// List returns the records of typ the caller may see.
func (s *Service) List(ctx context.Context, p auth.Principal, typ Type, limit int) ([]Record, error) {
	if err := auth.Require(p.Facts, auth.PropertyHubAccess()); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	vis := Visibility{All: p.Facts.GlobalAdmin, Groups: p.Facts.PropertyGroupList()}
	out, err := s.repo.ListRecords(ctx, typ, vis, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, p auth.Principal, typ Type, id string, patch Patch) (Record, error) {
	if err := auth.Require(p.Facts, auth.PropertyHubAdminAccess()); err != nil {
		return Record{}, err
	}
	before, err := s.load(ctx, p, typ, id)
	if err != nil {
		return Record{}, err
	}
	after := before
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return Record{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		after.Title = title
	}
	if patch.Body != nil {
		after.Body = *patch.Body
	}
	if patch.PropertyGroupID != nil {
		group := strings.TrimSpace(*patch.PropertyGroupID)
		if err := requireGroup(p, group); err != nil {
			return Record{}, err
		}
		after.PropertyGroupID = group
	}
	after.UpdatedAt = s.now().UTC()
	rec, err := s.repo.UpdateRecord(ctx, after)
	if err != nil {
		return Record{}, err
	}
	s.audit.Track(ctx, p.AccountID, audit.Change{
		Action:     audit.ActionUpdate,
		EntityType: string(rec.Type),
		EntityID:   rec.ID,
		Old:        summary(before),
		New:        summary(rec),
	})
	return rec, nil
}

func (s *Service) Delete(ctx context.Context, p auth.Principal, typ Type, id string) error {
	if err := auth.Require(p.Facts, auth.PropertyHubAdminAccess()); err != nil {
		return err
	}
	before, err := s.load(ctx, p, typ, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRecord(ctx, typ, before.ID); err != nil {
		return err
	}
	s.audit.Track(ctx, p.AccountID, audit.Change{
		Action:     audit.ActionDelete,
		EntityType: string(before.Type),
		EntityID:   before.ID,
		Old:        summary(before),
	})
	return nil
}

// load fetches the record and applies the property group check. A record
// outside the caller's groups is indistinguishable from a missing one.
func (s *Service) load(ctx context.Context, p auth.Principal, typ Type, id string) (Record, error) {
	id = strings.TrimSpace(id)
	if !ids.Valid(id) {
		return Record{}, ErrNotFound
	}
	rec, err := s.repo.GetRecord(ctx, typ, id)
	if err != nil {
		return Record{}, err
	}
	if requireGroup(p, rec.PropertyGroupID) != nil {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func requireGroup(p auth.Principal, groupID string) error {
	if groupID == "" {
		return nil
	}
	return auth.Require(p.Facts, auth.PropertyGroupAccess(groupID))
}

func summary(r Record) string {
	if r.PropertyGroupID == "" {
		return r.Title
	}
	return r.Title + " [group " + r.PropertyGroupID + "]"
}
