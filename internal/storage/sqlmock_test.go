package storage

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

// TestTenantDeleteExactSQL asserts the exact statement issued by Delete,
// independent of SQLite's actual execution semantics.
func TestTenantDeleteExactSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM tenants WHERE id=\?`).
		WithArgs("tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := &tenantStore{db: db}
	if err := store.Delete(context.Background(), "tenant-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTenantDeleteNotFoundSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM tenants WHERE id=\?`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := &tenantStore{db: db}
	if err := store.Delete(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

