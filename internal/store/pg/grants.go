package pg

import (
	"context"
	"database/sql"
	"errors"

	"propertyhub.org/internal/auth"
	"propertyhub.org/internal/ids"
)

func (s *Store) CreateRole(ctx context.Context, name, kind string) (auth.Role, error) {
	if s.db == nil {
		return auth.Role{}, errUnavailable
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Role{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var kindID string
	if err := tx.QueryRowContext(ctx, `
		insert into role_kinds (id, name) values ($1, $2)
		on conflict (name) do update set name = excluded.name
		returning id
	`, ids.New(), kind).Scan(&kindID); err != nil {
		return auth.Role{}, err
	}
	role := auth.Role{Kind: kind}
	if err := tx.QueryRowContext(ctx, `
		insert into roles (id, name, kind_id) values ($1, $2, $3)
		returning id, name
	`, ids.New(), name, kindID).Scan(&role.ID, &role.Name); err != nil {
		return auth.Role{}, mapWriteError(err)
	}
	if err := tx.Commit(); err != nil {
		return auth.Role{}, err
	}
	return role, nil
}

func (s *Store) RoleByName(ctx context.Context, name string) (auth.Role, error) {
	if s.db == nil {
		return auth.Role{}, errUnavailable
	}
	var role auth.Role
	err := s.db.QueryRowContext(ctx, `
		select r.id, r.name, k.name
		from roles r
		join role_kinds k on k.id = r.kind_id
		where r.name = $1
	`, name).Scan(&role.ID, &role.Name, &role.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	return role, err
}

func (s *Store) AssignRole(ctx context.Context, accountID, roleID string) (auth.RoleGrant, error) {
	if s.db == nil {
		return auth.RoleGrant{}, errUnavailable
	}
	grant := auth.RoleGrant{AccountID: accountID}
	err := s.db.QueryRowContext(ctx, `
		select r.id, r.name, k.name
		from roles r
		join role_kinds k on k.id = r.kind_id
		where r.id = $1
	`, roleID).Scan(&grant.Role.ID, &grant.Role.Name, &grant.Role.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.RoleGrant{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.RoleGrant{}, err
	}
	if err := s.db.QueryRowContext(ctx, `
		insert into account_roles (account_id, role_id) values ($1, $2)
		returning created_at
	`, accountID, roleID).Scan(&grant.CreatedAt); err != nil {
		return auth.RoleGrant{}, mapWriteError(err)
	}
	return grant, nil
}

func (s *Store) RemoveRole(ctx context.Context, accountID, roleID string) error {
	if s.db == nil {
		return errUnavailable
	}
	res, err := s.db.ExecContext(ctx, `delete from account_roles where account_id = $1 and role_id = $2`, accountID, roleID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) CreateWorkstream(ctx context.Context, ws auth.Workstream) (auth.Workstream, error) {
	if s.db == nil {
		return auth.Workstream{}, errUnavailable
	}
	if ws.ID == "" {
		ws.ID = ids.New()
	}
	var out auth.Workstream
	if err := s.db.QueryRowContext(ctx, `
		insert into workstreams (id, name, property_hub) values ($1, $2, $3)
		returning id, name, property_hub
	`, ws.ID, ws.Name, ws.PropertyHub).Scan(&out.ID, &out.Name, &out.PropertyHub); err != nil {
		return auth.Workstream{}, mapWriteError(err)
	}
	return out, nil
}

// UpsertWorkstreamGrant relies on the (account_id, workstream_id) unique
// key so a pair never holds two grants.
func (s *Store) UpsertWorkstreamGrant(ctx context.Context, accountID, workstreamID string, perm auth.PermissionKind) (auth.WorkstreamGrant, auth.PermissionKind, error) {
	if s.db == nil {
		return auth.WorkstreamGrant{}, "", errUnavailable
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.WorkstreamGrant{}, "", err
	}
	defer func() { _ = tx.Rollback() }()

	grant := auth.WorkstreamGrant{AccountID: accountID, Permission: perm}
	err = tx.QueryRowContext(ctx, `
		select id, name, property_hub from workstreams where id = $1
	`, workstreamID).Scan(&grant.Workstream.ID, &grant.Workstream.Name, &grant.Workstream.PropertyHub)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.WorkstreamGrant{}, "", auth.ErrNotFound
	}
	if err != nil {
		return auth.WorkstreamGrant{}, "", err
	}

	var prev sql.NullString
	err = tx.QueryRowContext(ctx, `
		select permission from workstream_grants
		where account_id = $1 and workstream_id = $2
		for update
	`, accountID, workstreamID).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return auth.WorkstreamGrant{}, "", err
	}

	if err := tx.QueryRowContext(ctx, `
		insert into workstream_grants (account_id, workstream_id, permission)
		values ($1, $2, $3)
		on conflict (account_id, workstream_id)
		do update set permission = excluded.permission, updated_at = now()
		returning created_at
	`, accountID, workstreamID, string(perm)).Scan(&grant.CreatedAt); err != nil {
		return auth.WorkstreamGrant{}, "", mapWriteError(err)
	}
	if err := tx.Commit(); err != nil {
		return auth.WorkstreamGrant{}, "", err
	}
	return grant, auth.PermissionKind(prev.String), nil
}

func (s *Store) DeleteWorkstreamGrant(ctx context.Context, accountID, workstreamID string) (auth.WorkstreamGrant, error) {
	if s.db == nil {
		return auth.WorkstreamGrant{}, errUnavailable
	}
	grant := auth.WorkstreamGrant{AccountID: accountID}
	var perm string
	err := s.db.QueryRowContext(ctx, `
		delete from workstream_grants g
		using workstreams w
		where g.account_id = $1 and g.workstream_id = $2 and w.id = g.workstream_id
		returning w.id, w.name, w.property_hub, g.permission, g.created_at
	`, accountID, workstreamID).Scan(&grant.Workstream.ID, &grant.Workstream.Name, &grant.Workstream.PropertyHub, &perm, &grant.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.WorkstreamGrant{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.WorkstreamGrant{}, err
	}
	grant.Permission = auth.PermissionKind(perm)
	return grant, nil
}

func (s *Store) CreatePropertyGroup(ctx context.Context, name string) (auth.PropertyGroup, error) {
	if s.db == nil {
		return auth.PropertyGroup{}, errUnavailable
	}
	var pg auth.PropertyGroup
	if err := s.db.QueryRowContext(ctx, `
		insert into property_groups (id, name) values ($1, $2)
		returning id, name
	`, ids.New(), name).Scan(&pg.ID, &pg.Name); err != nil {
		return auth.PropertyGroup{}, mapWriteError(err)
	}
	return pg, nil
}

// SetPropertyGroupGrant updates the existing row when there is one, so
// revoking and re-granting never produces a second row for the pair.
func (s *Store) SetPropertyGroupGrant(ctx context.Context, accountID, groupID string, active bool) (auth.PropertyGroupGrant, *bool, error) {
	if s.db == nil {
		return auth.PropertyGroupGrant{}, nil, errUnavailable
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.PropertyGroupGrant{}, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	grant := auth.PropertyGroupGrant{AccountID: accountID, PropertyGroupID: groupID, Active: active}
	var was bool
	err = tx.QueryRowContext(ctx, `
		select active from property_group_grants
		where account_id = $1 and property_group_id = $2
		for update
	`, accountID, groupID).Scan(&was)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !active {
			return auth.PropertyGroupGrant{}, nil, auth.ErrNotFound
		}
		if err := tx.QueryRowContext(ctx, `
			insert into property_group_grants (account_id, property_group_id, active)
			values ($1, $2, true)
			returning created_at, updated_at
		`, accountID, groupID).Scan(&grant.CreatedAt, &grant.UpdatedAt); err != nil {
			return auth.PropertyGroupGrant{}, nil, mapWriteError(err)
		}
		if err := tx.Commit(); err != nil {
			return auth.PropertyGroupGrant{}, nil, err
		}
		return grant, nil, nil
	case err != nil:
		return auth.PropertyGroupGrant{}, nil, err
	}

	if err := tx.QueryRowContext(ctx, `
		update property_group_grants set active = $3, updated_at = now()
		where account_id = $1 and property_group_id = $2
		returning created_at, updated_at
	`, accountID, groupID, active).Scan(&grant.CreatedAt, &grant.UpdatedAt); err != nil {
		return auth.PropertyGroupGrant{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return auth.PropertyGroupGrant{}, nil, err
	}
	return grant, &was, nil
}
