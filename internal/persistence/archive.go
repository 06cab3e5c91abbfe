package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/skobkin/d7logger/internal/record"
)

// Formatter renders the archived body of a record.
type Formatter interface {
	Text(rec record.Record) string
}

// Archive stores every decoded record of one session, regardless of display
// filters. Writes go through a WriterQueue so a slow disk never stalls the
// consumer that feeds it.
type Archive struct {
	db        *sql.DB
	repo      *RecordRepo
	writer    *WriterQueue
	format    Formatter
	sessionID string
	logger    *slog.Logger
	now       func() time.Time
	seq       int64
}

// OpenArchive opens the database at path and starts a session.
func OpenArchive(ctx context.Context, path string, s Session, format Formatter, logger *slog.Logger) (*Archive, error) {
	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	repo := NewRecordRepo(db)
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	if err := repo.StartSession(ctx, s); err != nil {
		_ = db.Close()
		return nil, err
	}

	writer := NewWriterQueue(logger, 64)
	writer.Start(context.WithoutCancel(ctx))

	return &Archive{
		db:        db,
		repo:      repo,
		writer:    writer,
		format:    format,
		sessionID: s.ID,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (a *Archive) Name() string {
	return "archive"
}

func (a *Archive) SessionID() string {
	return a.sessionID
}

func (a *Archive) Write(ctx context.Context, recs []record.Record) error {
	if len(recs) == 0 {
		return nil
	}

	batch := make([]ArchivedRecord, 0, len(recs))
	for _, rec := range recs {
		a.seq++
		batch = append(batch, a.archived(a.seq, rec))
	}

	name := fmt.Sprintf("insert records %d-%d", batch[0].Seq, batch[len(batch)-1].Seq)
	return a.writer.Enqueue(ctx, name, func(ctx context.Context) error {
		return a.repo.InsertBatch(ctx, a.sessionID, batch)
	})
}

// Close waits for pending writes, ends the session and closes the database.
func (a *Archive) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.writer.Close(ctx); err != nil {
		_ = a.db.Close()
		return fmt.Errorf("flush archive: %w", err)
	}
	if err := a.repo.EndSession(ctx, a.sessionID, a.now()); err != nil {
		_ = a.db.Close()
		return err
	}
	if failed := a.writer.Failed(); failed > 0 {
		a.logger.Warn("archive dropped batches", "session", a.sessionID, "batches", failed)
	}

	return a.db.Close()
}

func (a *Archive) archived(seq int64, rec record.Record) ArchivedRecord {
	out := ArchivedRecord{
		Seq:        seq,
		Kind:       rec.Kind(),
		At:         rec.CapturedAt(),
		PayloadLen: rec.PayloadLen(),
		Raw:        record.Payload(rec),
	}
	if s, ok := rec.(record.StackLog); ok {
		out.Layer = s.Layer.Name
	}
	if a.format != nil {
		out.Body = a.format.Text(rec)
	}

	return out
}
