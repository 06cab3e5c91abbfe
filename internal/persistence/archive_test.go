package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/skobkin/d7logger/internal/record"
)

type kindFormatter struct{}

func (kindFormatter) Text(rec record.Record) string {
	return rec.Kind().String()
}

func TestArchive_StoresEveryRecordAndEndsSession(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")
	at := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

	a, err := OpenArchive(ctx, path, Session{ID: "run-1", Source: "replay:dump.bin", StartedAt: at}, kindFormatter{}, discardLogger())
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	a.now = func() time.Time { return at.Add(time.Minute) }

	first := []record.Record{
		record.StringLog{Base: record.Base{At: at, Length: 5}, Message: "Hello"},
		record.StackLog{Base: record.Base{At: at, Length: 2}, Layer: record.LookupLayer(0x03), Message: "ok"},
	}
	second := []record.Record{
		record.DllResponse{Base: record.Base{At: at, Length: 2}, FrameType: 1, SpectrumID: 0x2A},
	}
	if err := a.Write(ctx, first); err != nil {
		t.Fatalf("write first batch: %v", err)
	}
	if err := a.Write(ctx, second); err != nil {
		t.Fatalf("write second batch: %v", err)
	}
	if err := a.Write(ctx, nil); err != nil {
		t.Fatalf("write empty batch: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}

	db, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewRecordRepo(db)

	recs, err := repo.ListBySession(ctx, "run-1", 0)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[1].Layer != "MAC" || recs[1].Body != "stack" {
		t.Fatalf("unexpected stack record: %+v", recs[1])
	}
	if recs[2].Kind != record.KindDllResponse || string(recs[2].Raw) != "\x01\x2A" {
		t.Fatalf("unexpected dll response record: %+v", recs[2])
	}

	sessions, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].RecordCount != 3 || !sessions[0].EndedAt.Equal(at.Add(time.Minute)) {
		t.Fatalf("unexpected session: %+v", sessions)
	}
}
