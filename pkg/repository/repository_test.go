package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/mkurosawa/receiptd/pkg/repository"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("duplicate")
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE items (id TEXT PRIMARY KEY, name TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func scanItem(s repository.Scanner) (string, error) {
	var name string
	err := s.Scan(&name)
	return name, err
}

func TestWithTxCommits(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	got, err := repository.WithTx(ctx, db, func(tx *sql.Tx) (string, error) {
		_, err := tx.ExecContext(ctx, `INSERT INTO items (id, name) VALUES ('a', 'first')`)
		return "a", err
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
	if got != "a" {
		t.Errorf("WithTx() = %q", got)
	}

	name, err := repository.QueryOne(ctx, db, `SELECT name FROM items WHERE id = 'a'`, nil, scanItem)
	if err != nil {
		t.Fatalf("QueryOne() error = %v", err)
	}
	if name != "first" {
		t.Errorf("name = %q", name)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := repository.WithTx(ctx, db, func(tx *sql.Tx) (string, error) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO items (id, name) VALUES ('a', 'first')`); err != nil {
			return "", err
		}
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	items, err := repository.QueryMany(ctx, db, `SELECT name FROM items`, nil, scanItem)
	if err != nil {
		t.Fatalf("QueryMany() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("rows after rollback = %d, want 0", len(items))
	}
}

func TestQueryManyEmptyResult(t *testing.T) {
	db := openDB(t)

	items, err := repository.QueryMany(context.Background(), db, `SELECT name FROM items`, nil, scanItem)
	if err != nil {
		t.Fatalf("QueryMany() error = %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("QueryMany() = %v, want empty non-nil slice", items)
	}
}

func TestMapError(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `INSERT INTO items (id, name) VALUES ('a', 'first')`); err != nil {
		t.Fatal(err)
	}
	_, constraintErr := db.ExecContext(ctx, `INSERT INTO items (id, name) VALUES ('a', 'second')`)
	if constraintErr == nil {
		t.Fatal("expected constraint violation")
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil passes through", nil, nil},
		{"no rows maps to not found", sql.ErrNoRows, errNotFound},
		{"primary key violation maps to duplicate", constraintErr, errDuplicate},
		{"other errors pass through", context.DeadlineExceeded, context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repository.MapError(tt.err, errNotFound, errDuplicate)
			if !errors.Is(got, tt.want) && got != tt.want {
				t.Errorf("MapError() = %v, want %v", got, tt.want)
			}
		})
	}
}
