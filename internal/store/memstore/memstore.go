// Package memstore keeps accounts, grants, audit entries and records in
// process memory. It backs tests and the API's dev mode when no database
// DSN is configured.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"propertyhub.org/internal/audit"
	"propertyhub.org/internal/auth"
	"propertyhub.org/internal/ids"
	"propertyhub.org/internal/records"
)

var (
	_ auth.Store         = (*Store)(nil)
	_ audit.Store        = (*Store)(nil)
	_ records.Repository = (*Store)(nil)
)

type pair struct{ a, b string }

// Store is safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	accounts     map[string]auth.Account
	emails       map[string]string
	roles        map[string]auth.Role
	roleNames    map[string]string
	accountRoles map[pair]time.Time
	workstreams  map[string]auth.Workstream
	wsNames      map[string]string
	wsGrants     map[pair]auth.WorkstreamGrant
	groups       map[string]auth.PropertyGroup
	groupNames   map[string]string
	groupGrants  map[pair]auth.PropertyGroupGrant
	auditLog     []audit.Entry
	records      map[string]records.Record
}

func New() *Store {
	return &Store{
		now:          time.Now,
		accounts:     map[string]auth.Account{},
		emails:       map[string]string{},
		roles:        map[string]auth.Role{},
		roleNames:    map[string]string{},
		accountRoles: map[pair]time.Time{},
		workstreams:  map[string]auth.Workstream{},
		wsNames:      map[string]string{},
		wsGrants:     map[pair]auth.WorkstreamGrant{},
		groups:       map[string]auth.PropertyGroup{},
		groupNames:   map[string]string{},
		groupGrants:  map[pair]auth.PropertyGroupGrant{},
		records:      map[string]records.Record{},
	}
}

// Credential reads ------------------------------------------------------

func (s *Store) IdentityByEmail(_ context.Context, email string) (auth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return auth.Identity{}, auth.ErrNotFound
	}
	return s.identityLocked(id), nil
}

func (s *Store) IdentityByID(_ context.Context, accountID string) (auth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[accountID]; !ok {
		return auth.Identity{}, auth.ErrNotFound
	}
	return s.identityLocked(accountID), nil
}

// identityLocked returns grants sorted by id so BuildFacts sees a
// stable sequence.
func (s *Store) identityLocked(accountID string) auth.Identity {
	out := auth.Identity{Account: s.accounts[accountID]}
	for k, at := range s.accountRoles {
		if k.a == accountID {
			out.Roles = append(out.Roles, auth.RoleGrant{AccountID: accountID, Role: s.roles[k.b], CreatedAt: at})
		}
	}
	sort.Slice(out.Roles, func(i, j int) bool { return out.Roles[i].Role.ID < out.Roles[j].Role.ID })
	for k, g := range s.wsGrants {
		if k.a == accountID {
			g.Workstream = s.workstreams[k.b]
			out.Workstreams = append(out.Workstreams, g)
		}
	}
	sort.Slice(out.Workstreams, func(i, j int) bool {
		return out.Workstreams[i].Workstream.ID < out.Workstreams[j].Workstream.ID
	})
	for k, g := range s.groupGrants {
		if k.a == accountID {
			out.PropertyGroups = append(out.PropertyGroups, g)
		}
	}
	sort.Slice(out.PropertyGroups, func(i, j int) bool {
		return out.PropertyGroups[i].PropertyGroupID < out.PropertyGroups[j].PropertyGroupID
	})
	return out
}

// Accounts --------------------------------------------------------------

func (s *Store) CreateAccount(_ context.Context, a auth.Account) (auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.emails[a.Email]; taken {
		return auth.Account{}, fmt.Errorf("%w: email already registered", auth.ErrConflict)
	}
	now := s.now().UTC()
	if a.ID == "" {
		a.ID = ids.New()
	}
	a.CreatedAt, a.UpdatedAt = now, now
	s.accounts[a.ID] = a
	s.emails[a.Email] = a.ID
	return a, nil
}

func (s *Store) UpdateAccount(_ context.Context, accountID string, upd auth.AccountUpdate) (auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return auth.Account{}, auth.ErrNotFound
	}
	if upd.DisplayName != nil {
		a.DisplayName = *upd.DisplayName
	}
	if upd.PasswordHash != nil {
		a.PasswordHash = *upd.PasswordHash
	}
	if upd.Active != nil {
		a.Active = *upd.Active
	}
	a.UpdatedAt = s.now().UTC()
	s.accounts[accountID] = a
	return a, nil
}

// Roles -----------------------------------------------------------------

func (s *Store) CreateRole(_ context.Context, name, kind string) (auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.roleNames[name]; taken {
		return auth.Role{}, fmt.Errorf("%w: role %q exists", auth.ErrConflict, name)
	}
	r := auth.Role{ID: ids.New(), Name: name, Kind: kind}
	s.roles[r.ID] = r
	s.roleNames[name] = r.ID
	return r, nil
}

func (s *Store) RoleByName(_ context.Context, name string) (auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.roleNames[name]
	if !ok {
		return auth.Role{}, auth.ErrNotFound
	}
	return s.roles[id], nil
}

func (s *Store) AssignRole(_ context.Context, accountID, roleID string) (auth.RoleGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return auth.RoleGrant{}, auth.ErrNotFound
	}
	role, ok := s.roles[roleID]
	if !ok {
		return auth.RoleGrant{}, auth.ErrNotFound
	}
	k := pair{accountID, roleID}
	if _, exists := s.accountRoles[k]; exists {
		return auth.RoleGrant{}, fmt.Errorf("%w: role already assigned", auth.ErrConflict)
	}
	at := s.now().UTC()
	s.accountRoles[k] = at
	return auth.RoleGrant{AccountID: accountID, Role: role, CreatedAt: at}, nil
}

func (s *Store) RemoveRole(_ context.Context, accountID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pair{accountID, roleID}
	if _, ok := s.accountRoles[k]; !ok {
		return auth.ErrNotFound
	}
	delete(s.accountRoles, k)
	return nil
}

// Workstreams -----------------------------------------------------------

func (s *Store) CreateWorkstream(_ context.Context, ws auth.Workstream) (auth.Workstream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.wsNames[ws.Name]; taken {
		return auth.Workstream{}, fmt.Errorf("%w: workstream %q exists", auth.ErrConflict, ws.Name)
	}
	if ws.ID == "" {
		ws.ID = ids.New()
	}
	s.workstreams[ws.ID] = ws
	s.wsNames[ws.Name] = ws.ID
	return ws, nil
}

func (s *Store) UpsertWorkstreamGrant(_ context.Context, accountID, workstreamID string, perm auth.PermissionKind) (auth.WorkstreamGrant, auth.PermissionKind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return auth.WorkstreamGrant{}, "", auth.ErrNotFound
	}
	ws, ok := s.workstreams[workstreamID]
	if !ok {
		return auth.WorkstreamGrant{}, "", auth.ErrNotFound
	}
	k := pair{accountID, workstreamID}
	prev, existed := s.wsGrants[k]
	g := auth.WorkstreamGrant{AccountID: accountID, Workstream: ws, Permission: perm, CreatedAt: s.now().UTC()}
	if existed {
		g.CreatedAt = prev.CreatedAt
	}
	s.wsGrants[k] = g
	return g, prev.Permission, nil
}

func (s *Store) DeleteWorkstreamGrant(_ context.Context, accountID, workstreamID string) (auth.WorkstreamGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pair{accountID, workstreamID}
	g, ok := s.wsGrants[k]
	if !ok {
		return auth.WorkstreamGrant{}, auth.ErrNotFound
	}
	delete(s.wsGrants, k)
	g.Workstream = s.workstreams[workstreamID]
	return g, nil
}

// Property groups -------------------------------------------------------

func (s *Store) CreatePropertyGroup(_ context.Context, name string) (auth.PropertyGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.groupNames[name]; taken {
		return auth.PropertyGroup{}, fmt.Errorf("%w: property group %q exists", auth.ErrConflict, name)
	}
	g := auth.PropertyGroup{ID: ids.New(), Name: name}
	s.groups[g.ID] = g
	s.groupNames[name] = g.ID
	return g, nil
}

func (s *Store) SetPropertyGroupGrant(_ context.Context, accountID, groupID string, active bool) (auth.PropertyGroupGrant, *bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return auth.PropertyGroupGrant{}, nil, auth.ErrNotFound
	}
	if _, ok := s.groups[groupID]; !ok {
		return auth.PropertyGroupGrant{}, nil, auth.ErrNotFound
	}
	now := s.now().UTC()
	k := pair{accountID, groupID}
	g, existed := s.groupGrants[k]
	if !existed {
		if !active {
			return auth.PropertyGroupGrant{}, nil, auth.ErrNotFound
		}
		g = auth.PropertyGroupGrant{AccountID: accountID, PropertyGroupID: groupID, Active: true, CreatedAt: now, UpdatedAt: now}
		s.groupGrants[k] = g
		return g, nil, nil
	}
	was := g.Active
	g.Active = active
	g.UpdatedAt = now
	s.groupGrants[k] = g
	return g, &was, nil
}

// Audit -----------------------------------------------------------------

func (s *Store) AppendAudit(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLog = append(s.auditLog, e)
	return nil
}

func (s *Store) ListAudit(_ context.Context, f audit.Filter) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f = f.Normalize()
	var out []audit.Entry
	for i := len(s.auditLog) - 1; i >= 0 && len(out) < f.Limit; i-- {
		e := s.auditLog[i]
		if f.EntityType != "" && e.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != "" && e.EntityID != f.EntityID {
			continue
		}
		if f.ActorID != "" && e.ActorAccountID != f.ActorID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Records ---------------------------------------------------------------

func (s *Store) CreateRecord(_ context.Context, r records.Record) (records.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.PropertyGroupID != "" {
		if _, ok := s.groups[r.PropertyGroupID]; !ok {
			return records.Record{}, fmt.Errorf("%w: unknown property group", records.ErrInvalidInput)
		}
	}
	if _, exists := s.records[r.ID]; exists {
		return records.Record{}, fmt.Errorf("%w: duplicate record id", records.ErrInvalidInput)
	}
	s.records[r.ID] = r
	return r, nil
}

func (s *Store) GetRecord(_ context.Context, typ records.Type, id string) (records.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok || r.Type != typ {
		return records.Record{}, records.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListRecords(_ context.Context, typ records.Type, vis records.Visibility, limit int) ([]records.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []records.Record
	for _, r := range s.records {
		if r.Type == typ && vis.Allows(r.PropertyGroupID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateRecord(_ context.Context, r records.Record) (records.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[r.ID]
	if !ok || cur.Type != r.Type {
		return records.Record{}, records.ErrNotFound
	}
	if r.PropertyGroupID != "" {
		if _, ok := s.groups[r.PropertyGroupID]; !ok {
			return records.Record{}, fmt.Errorf("%w: unknown property group", records.ErrInvalidInput)
		}
	}
	r.CreatedAt = cur.CreatedAt
	s.records[r.ID] = r
	return r, nil
}

func (s *Store) DeleteRecord(_ context.Context, typ records.Type, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.Type != typ {
		return records.ErrNotFound
	}
	delete(s.records, id)
	return nil
}
