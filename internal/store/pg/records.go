package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"propertyhub.org/internal/records"
)

const recordColumns = `id, record_type, coalesce(property_group_id, ''), title, body, created_at, updated_at`

func scanRecord(row rowScanner) (records.Record, error) {
	var (
		r   records.Record
		typ string
	)
	err := row.Scan(&r.ID, &typ, &r.PropertyGroupID, &r.Title, &r.Body, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return records.Record{}, records.ErrNotFound
	}
	if err != nil {
		return records.Record{}, err
	}
	r.Type = records.Type(typ)
	return r, nil
}

func mapRecordWriteError(err error) error {
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return fmt.Errorf("%w: unknown property group", records.ErrInvalidInput)
	}
	return err
}

func (s *Store) CreateRecord(ctx context.Context, r records.Record) (records.Record, error) {
	if s.db == nil {
		return records.Record{}, errUnavailable
	}
	row := s.db.QueryRowContext(ctx, `
		insert into records (id, record_type, property_group_id, title, body, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning `+recordColumns,
		r.ID, string(r.Type), nullIfEmpty(r.PropertyGroupID), r.Title, r.Body, r.CreatedAt, r.UpdatedAt)
	rec, err := scanRecord(row)
	if err != nil {
		return records.Record{}, mapRecordWriteError(err)
	}
	return rec, nil
}

func (s *Store) GetRecord(ctx context.Context, typ records.Type, id string) (records.Record, error) {
	if s.db == nil {
		return records.Record{}, errUnavailable
	}
	return scanRecord(s.db.QueryRowContext(ctx, `
		select `+recordColumns+` from records where id = $1 and record_type = $2
	`, id, string(typ)))
}

func (s *Store) ListRecords(ctx context.Context, typ records.Type, vis records.Visibility, limit int) ([]records.Record, error) {
	if s.db == nil {
		return nil, errUnavailable
	}
	where, args := visibilityClause(vis, string(typ), limit)
	rows, err := s.db.QueryContext(ctx, `
		select `+recordColumns+` from records
		where record_type = $1`+where+`
		order by id desc
		limit $2
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []records.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// visibilityClause narrows a listing to ungrouped records plus vis.Groups.
// Group ids are bound from $3 onwards.
func visibilityClause(vis records.Visibility, typ string, limit int) (string, []any) {
	args := []any{typ, limit}
	if vis.All {
		return "", args
	}
	if len(vis.Groups) == 0 {
		return " and property_group_id is null", args
	}
	marks := make([]string, len(vis.Groups))
	for i, g := range vis.Groups {
		args = append(args, g)
		marks[i] = fmt.Sprintf("$%d", len(args))
	}
	return " and (property_group_id is null or property_group_id in (" + strings.Join(marks, ", ") + "))", args
}

func (s *Store) UpdateRecord(ctx context.Context, r records.Record) (records.Record, error) {
	if s.db == nil {
		return records.Record{}, errUnavailable
	}
	row := s.db.QueryRowContext(ctx, `
		update records
		set title = $3, body = $4, property_group_id = $5, updated_at = $6
		where id = $1 and record_type = $2
		returning `+recordColumns,
		r.ID, string(r.Type), r.Title, r.Body, nullIfEmpty(r.PropertyGroupID), r.UpdatedAt)
	rec, err := scanRecord(row)
	if err != nil {
		return records.Record{}, mapRecordWriteError(err)
	}
	return rec, nil
}

func (s *Store) DeleteRecord(ctx context.Context, typ records.Type, id string) error {
	if s.db == nil {
		return errUnavailable
	}
	res, err := s.db.ExecContext(ctx, `delete from records where id = $1 and record_type = $2`, id, string(typ))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return records.ErrNotFound
	}
	return nil
}
