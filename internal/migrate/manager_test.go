package migrate

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	in := `create table a (x text default 'a;b');
insert into a values ('it''s');

create function f() returns trigger as $$
begin
    raise exception 'nope';
end;
$$ language plpgsql;
`
	got := splitStatements(in)
	require.Len(t, got, 3)
	require.Equal(t, "create table a (x text default 'a;b');", got[0])
	require.Equal(t, "insert into a values ('it''s');", got[1])
	require.Contains(t, got[2], "raise exception 'nope';")
	require.Contains(t, got[2], "language plpgsql;")
}

func TestCollectSQLSortsAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0002_b.up.sql":   {Data: []byte("select 2;")},
		"sql/0001_a.up.sql":   {Data: []byte("select 1;")},
		"sql/0001_a.down.sql": {Data: []byte("select 0;")},
		"sql/README":          {Data: []byte("docs")},
	}
	files, err := collectSQL(fsys, "sql", ".up.sql")
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, "0001_a.up.sql", files[0].Base)
	require.Equal(t, "sql/0002_b.up.sql", files[1].Path)

	missing, err := collectSQL(fsys, "nope", ".sql")
	require.NoError(t, err)
	require.Empty(t, missing)
}

func expectEnsureTables(mock sqlmock.Sqlmock) {
	mock.ExpectExec(`create table if not exists schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`create table if not exists schema_seeds`).WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestUpAppliesOnlyPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"sql/0001_a.up.sql": {Data: []byte("create table a (id text);")},
		"sql/0002_b.up.sql": {Data: []byte("create table b (id text); create table c (id text);")},
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewManager(db, fsys, "sql", "", WithClock(func() time.Time { return at }))

	expectEnsureTables(mock)
	mock.ExpectQuery(`select name from schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(`create table b`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`create table c`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(`insert into schema_migrations`).
		WithArgs("0002_b.up.sql", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	applied, err := m.Up(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"0002_b.up.sql"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownRollsBackLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"sql/0001_a.up.sql":   {Data: []byte("create table a (id text);")},
		"sql/0001_a.down.sql": {Data: []byte("drop table a;")},
	}
	m := NewManager(db, fsys, "sql", "")

	expectEnsureTables(mock)
	mock.ExpectQuery(`select name from schema_migrations order by applied_at`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(`drop table a`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(`delete from schema_migrations where name = \$1`).
		WithArgs("0001_a.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))

	name, err := m.Down(context.Background())
	require.NoError(t, err)
	require.Equal(t, "0001_a.up.sql", name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownWithNothingApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewManager(db, fstest.MapFS{}, "sql", "")
	expectEnsureTables(mock)
	mock.ExpectQuery(`select name from schema_migrations order by applied_at`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	_, err = m.Down(context.Background())
	require.ErrorIs(t, err, ErrNothingApplied)
}

func TestFailedMigrationIsNotRecorded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{"sql/0001_a.up.sql": {Data: []byte("create table a (id text);")}}
	m := NewManager(db, fsys, "sql", "")

	expectEnsureTables(mock)
	mock.ExpectQuery(`select name from schema_migrations`).WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec(`create table a`).WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	applied, err := m.Up(context.Background())
	require.Error(t, err)
	require.Empty(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}
