package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"propertyhub.org/internal/auth"
	"propertyhub.org/internal/ids"
)

const accountColumns = `id, email, display_name, password_hash, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (auth.Account, error) {
	var a auth.Account
	err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Account{}, auth.ErrNotFound
	}
	return a, err
}

// IdentityByEmail matches the email exactly, including case.
func (s *Store) IdentityByEmail(ctx context.Context, email string) (auth.Identity, error) {
	return s.identity(ctx, `select `+accountColumns+` from accounts where email = $1`, email)
}

func (s *Store) IdentityByID(ctx context.Context, accountID string) (auth.Identity, error) {
	return s.identity(ctx, `select `+accountColumns+` from accounts where id = $1`, accountID)
}

// identity loads the account and every grant inside one read-only
// repeatable-read transaction.
func (s *Store) identity(ctx context.Context, query string, arg string) (auth.Identity, error) {
	if s.db == nil {
		return auth.Identity{}, errUnavailable
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return auth.Identity{}, err
	}
	defer func() { _ = tx.Rollback() }()

	acct, err := scanAccount(tx.QueryRowContext(ctx, query, arg))
	if err != nil {
		return auth.Identity{}, err
	}
	id := auth.Identity{Account: acct}

	if id.Roles, err = rolesFor(ctx, tx, acct.ID); err != nil {
		return auth.Identity{}, err
	}
	if id.Workstreams, err = workstreamGrantsFor(ctx, tx, acct.ID); err != nil {
		return auth.Identity{}, err
	}
	if id.PropertyGroups, err = groupGrantsFor(ctx, tx, acct.ID); err != nil {
		return auth.Identity{}, err
	}
	if err := tx.Commit(); err != nil {
		return auth.Identity{}, err
	}
	return id, nil
}

func rolesFor(ctx context.Context, tx *sql.Tx, accountID string) ([]auth.RoleGrant, error) {
	rows, err := tx.QueryContext(ctx, `
		select r.id, r.name, k.name, ar.created_at
		from account_roles ar
		join roles r on r.id = ar.role_id
		join role_kinds k on k.id = r.kind_id
		where ar.account_id = $1
		order by r.id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.RoleGrant
	for rows.Next() {
		g := auth.RoleGrant{AccountID: accountID}
		if err := rows.Scan(&g.Role.ID, &g.Role.Name, &g.Role.Kind, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func workstreamGrantsFor(ctx context.Context, tx *sql.Tx, accountID string) ([]auth.WorkstreamGrant, error) {
	rows, err := tx.QueryContext(ctx, `
		select w.id, w.name, w.property_hub, g.permission, g.created_at
		from workstream_grants g
		join workstreams w on w.id = g.workstream_id
		where g.account_id = $1
		order by w.id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.WorkstreamGrant
	for rows.Next() {
		var (
			g    = auth.WorkstreamGrant{AccountID: accountID}
			perm string
		)
		if err := rows.Scan(&g.Workstream.ID, &g.Workstream.Name, &g.Workstream.PropertyHub, &perm, &g.CreatedAt); err != nil {
			return nil, err
		}
		if g.Permission, err = auth.ParsePermissionKind(perm); err != nil {
			return nil, fmt.Errorf("workstream grant %s: %w", g.Workstream.ID, err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func groupGrantsFor(ctx context.Context, tx *sql.Tx, accountID string) ([]auth.PropertyGroupGrant, error) {
	rows, err := tx.QueryContext(ctx, `
		select property_group_id, active, created_at, updated_at
		from property_group_grants
		where account_id = $1
		order by property_group_id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.PropertyGroupGrant
	for rows.Next() {
		g := auth.PropertyGroupGrant{AccountID: accountID}
		if err := rows.Scan(&g.PropertyGroupID, &g.Active, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) CreateAccount(ctx context.Context, a auth.Account) (auth.Account, error) {
	if s.db == nil {
		return auth.Account{}, errUnavailable
	}
	if a.ID == "" {
		a.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into accounts (id, email, display_name, password_hash, active)
		values ($1, $2, $3, $4, $5)
		returning `+accountColumns,
		a.ID, a.Email, a.DisplayName, a.PasswordHash, a.Active)
	acct, err := scanAccount(row)
	if err != nil {
		return auth.Account{}, mapWriteError(err)
	}
	return acct, nil
}

func (s *Store) UpdateAccount(ctx context.Context, accountID string, upd auth.AccountUpdate) (auth.Account, error) {
	if s.db == nil {
		return auth.Account{}, errUnavailable
	}
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	if upd.DisplayName != nil {
		setClauses = append(setClauses, fmt.Sprintf("display_name = $%d", idx))
		args = append(args, *upd.DisplayName)
		idx++
	}
	if upd.PasswordHash != nil {
		setClauses = append(setClauses, fmt.Sprintf("password_hash = $%d", idx))
		args = append(args, *upd.PasswordHash)
		idx++
	}
	if upd.Active != nil {
		setClauses = append(setClauses, fmt.Sprintf("active = $%d", idx))
		args = append(args, *upd.Active)
		idx++
	}
	if len(setClauses) == 0 {
		return scanAccount(s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where id = $1`, accountID))
	}
	setClauses = append(setClauses, "updated_at = now()")
	query := fmt.Sprintf(`update accounts set %s where id = $%d returning %s`,
		strings.Join(setClauses, ", "), idx, accountColumns)
	args = append(args, accountID)
	return scanAccount(s.db.QueryRowContext(ctx, query, args...))
}
