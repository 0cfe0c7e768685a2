package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"propertyhub.org/internal/records"
)

var recordCols = []string{"id", "record_type", "property_group_id", "title", "body", "created_at", "updated_at"}

func TestCreateRecordUnknownGroup(t *testing.T) {
	store, mock := newMock(t)
	at := time.Now().UTC()
	mock.ExpectQuery("insert into records").
		WithArgs("rec-1", "property", "pg-x", "12 Elm St", "", at, at).
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	_, err := store.CreateRecord(context.Background(), records.Record{
		ID: "rec-1", Type: records.TypeProperty, PropertyGroupID: "pg-x", Title: "12 Elm St", CreatedAt: at, UpdatedAt: at,
	})
	if !errors.Is(err, records.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetRecordScopedByType(t *testing.T) {
	store, mock := newMock(t)
	at := time.Now().UTC()
	mock.ExpectQuery("from records where id = \\$1 and record_type = \\$2").WithArgs("rec-1", "tenancy").
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow("rec-1", "tenancy", "", "Lease", "12 months", at, at))
	mock.ExpectQuery("from records where id = \\$1 and record_type = \\$2").WithArgs("rec-1", "journal").
		WillReturnRows(sqlmock.NewRows(recordCols))

	rec, err := store.GetRecord(context.Background(), records.TypeTenancy, "rec-1")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if rec.Type != records.TypeTenancy || rec.PropertyGroupID != "" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, err := store.GetRecord(context.Background(), records.TypeJournal, "rec-1"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRecords(t *testing.T) {
	store, mock := newMock(t)
	at := time.Now().UTC()
	mock.ExpectQuery("from records\\s+where record_type = \\$1\\s+order by id desc\\s+limit \\$2").WithArgs("tag", 2).
		WillReturnRows(sqlmock.NewRows(recordCols).
			AddRow("rec-2", "tag", "pg-1", "vip", "", at, at).
			AddRow("rec-1", "tag", "", "arrears", "", at, at))

	out, err := store.ListRecords(context.Background(), records.TypeTag, records.Visibility{All: true}, 2)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(out) != 2 || out[0].ID != "rec-2" || out[0].PropertyGroupID != "pg-1" {
		t.Fatalf("unexpected records: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListRecordsFiltersGroupsBeforeLimit(t *testing.T) {
	store, mock := newMock(t)
	at := time.Now().UTC()
	mock.ExpectQuery("where record_type = \\$1 and \\(property_group_id is null or property_group_id in \\(\\$3, \\$4\\)\\)\\s+order by id desc\\s+limit \\$2").
		WithArgs("tag", 1, "pg-1", "pg-2").
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow("rec-1", "tag", "pg-2", "vip", "", at, at))

	out, err := store.ListRecords(context.Background(), records.TypeTag, records.Visibility{Groups: []string{"pg-1", "pg-2"}}, 1)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(out) != 1 || out[0].PropertyGroupID != "pg-2" {
		t.Fatalf("unexpected records: %+v", out)
	}

	mock.ExpectQuery("where record_type = \\$1 and property_group_id is null\\s+order by id desc\\s+limit \\$2").
		WithArgs("tag", 1).
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow("rec-0", "tag", "", "arrears", "", at, at))

	out, err = store.ListRecords(context.Background(), records.TypeTag, records.Visibility{}, 1)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(out) != 1 || out[0].ID != "rec-0" {
		t.Fatalf("unexpected records: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteRecordMissing(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("delete from records").WithArgs("rec-9", "property").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.DeleteRecord(context.Background(), records.TypeProperty, "rec-9"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
