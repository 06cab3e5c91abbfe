package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestClearDatabase_ClearsAllTables(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewRecordRepo(db)
	if err := repo.StartSession(ctx, Session{ID: "s1", Source: "replay:dump.bin", StartedAt: time.Now()}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := repo.InsertBatch(ctx, "s1", []ArchivedRecord{{Seq: 1, Kind: 0x01, At: time.Now(), Body: "STRING: hi"}}); err != nil {
		t.Fatalf("seed records: %v", err)
	}

	if err := ClearDatabase(ctx, db); err != nil {
		t.Fatalf("clear database: %v", err)
	}

	for _, table := range []string{"records", "sessions"} {
		var count int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count != 0 {
			t.Fatalf("expected %s to be empty, got %d rows", table, count)
		}
	}
}

func TestClearDatabase_NilDB(t *testing.T) {
	if err := ClearDatabase(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func TestOpenCreatesArchiveDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "archive.db")
	db, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	var timeout int
	if err := db.QueryRowContext(context.Background(), `PRAGMA busy_timeout;`).Scan(&timeout); err != nil {
		t.Fatalf("read busy timeout: %v", err)
	}
	if timeout != busyTimeoutMS {
		t.Fatalf("expected busy timeout %d, got %d", busyTimeoutMS, timeout)
	}
}
