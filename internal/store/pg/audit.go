package pg

import (
	"context"
	"fmt"
	"strings"

	"propertyhub.org/internal/audit"
)

// AppendAudit inserts one row. The audit_log table has no update or delete
// path in this package.
func (s *Store) AppendAudit(ctx context.Context, e audit.Entry) error {
	if s.db == nil {
		return errUnavailable
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (id, occurred_at, actor_account_id, action, entity_type, entity_id,
			old_summary, new_summary, source_address, request_id)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.OccurredAt, e.ActorAccountID, string(e.Action), e.EntityType, e.EntityID,
		nullIfEmpty(e.OldSummary), nullIfEmpty(e.NewSummary), nullIfEmpty(e.SourceAddress), nullIfEmpty(e.RequestID))
	return err
}

func (s *Store) ListAudit(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	if s.db == nil {
		return nil, errUnavailable
	}
	f = f.Normalize()
	var (
		where []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("entity_type", f.EntityType)
	add("entity_id", f.EntityID)
	add("actor_account_id", f.ActorID)

	query := `
		select id, occurred_at, actor_account_id, action, entity_type, entity_id,
			coalesce(old_summary, ''), coalesce(new_summary, ''),
			coalesce(source_address, ''), coalesce(request_id, '')
		from audit_log`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" order by occurred_at desc, id desc limit $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			e      audit.Entry
			action string
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.ActorAccountID, &action, &e.EntityType, &e.EntityID,
			&e.OldSummary, &e.NewSummary, &e.SourceAddress, &e.RequestID); err != nil {
			return nil, err
		}
		e.Action = audit.Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
