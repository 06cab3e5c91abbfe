package persistence

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/skobkin/d7logger/internal/record"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestOpen_SetsSchemaVersion(t *testing.T) {
	db := openTestDB(t)

	var version int
	if err := db.QueryRowContext(context.Background(), `PRAGMA user_version;`).Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != SchemaVersion {
		t.Fatalf("expected schema version %d, got %d", SchemaVersion, version)
	}
}

func TestOpen_MigratesV1Database(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "archive.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range append(append([]string{}, migrations[0]...), `PRAGMA user_version = 1;`) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			t.Fatalf("seed v1 schema: %v", err)
		}
	}
	_ = db.Close()

	migrated, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open migrated db: %v", err)
	}
	defer func() { _ = migrated.Close() }()

	var index string
	if err := migrated.QueryRowContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'index' AND name = 'records_session_kind_idx'
	`).Scan(&index); err != nil {
		t.Fatalf("expected records index after migration: %v", err)
	}
}

func TestRecordRepo_InsertAndListInSeqOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepo(openTestDB(t))

	started := time.Date(2024, 3, 5, 14, 7, 9, 123456000, time.UTC)
	if err := repo.StartSession(ctx, Session{ID: "s1", Source: "serial:/dev/ttyUSB0", StartedAt: started}); err != nil {
		t.Fatalf("start session: %v", err)
	}

	batch := []ArchivedRecord{
		{Seq: 2, Kind: record.KindStack, Layer: "MAC", At: started.Add(time.Millisecond), PayloadLen: 2, Body: "MAC: ok", Raw: []byte("ok")},
		{Seq: 1, Kind: record.KindString, At: started, PayloadLen: 5, Body: "STRING: Hello", Raw: []byte("Hello")},
	}
	if err := repo.InsertBatch(ctx, "s1", batch); err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	if err := repo.InsertBatch(ctx, "s1", batch[:1]); err != nil {
		t.Fatalf("re-insert batch: %v", err)
	}

	n, err := repo.CountBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 records, got %d", n)
	}

	recs, err := repo.ListBySession(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 || recs[0].Seq != 1 || recs[1].Seq != 2 {
		t.Fatalf("unexpected records order: %+v", recs)
	}
	if recs[0].Kind != record.KindString || recs[0].Layer != "" || !bytes.Equal(recs[0].Raw, []byte("Hello")) {
		t.Fatalf("unexpected first record: %+v", recs[0])
	}
	if recs[1].Layer != "MAC" {
		t.Fatalf("expected MAC layer, got %q", recs[1].Layer)
	}
	if !recs[0].At.Equal(started) {
		t.Fatalf("expected microsecond timestamp %s, got %s", started, recs[0].At)
	}
}

func TestRecordRepo_SessionsReportCounts(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepo(openTestDB(t))

	base := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new"} {
		if err := repo.StartSession(ctx, Session{ID: id, Source: "replay:x", StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("start session %s: %v", id, err)
		}
	}
	if err := repo.InsertBatch(ctx, "old", []ArchivedRecord{{Seq: 1, Kind: record.KindTrace, At: base, Body: "TRACE: x"}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.EndSession(ctx, "old", base.Add(time.Minute)); err != nil {
		t.Fatalf("end session: %v", err)
	}

	sessions, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "new" || !sessions[0].EndedAt.IsZero() || sessions[0].RecordCount != 0 {
		t.Fatalf("unexpected newest session: %+v", sessions[0])
	}
	if sessions[1].ID != "old" || sessions[1].RecordCount != 1 || !sessions[1].EndedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("unexpected ended session: %+v", sessions[1])
	}
}
