package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skobkin/d7logger/internal/record"
)

// Session is one logger run archived in the database.
type Session struct {
	ID          string
	Source      string
	StartedAt   time.Time
	EndedAt     time.Time
	RecordCount int64
}

// ArchivedRecord is a decoded record as stored in the archive.
type ArchivedRecord struct {
	Seq        int64
	Kind       record.Kind
	Layer      string
	At         time.Time
	PayloadLen int
	Body       string
	Raw        []byte
}

type RecordRepo struct {
	db *sql.DB
}

func NewRecordRepo(db *sql.DB) *RecordRepo {
	return &RecordRepo{db: db}
}

func (r *RecordRepo) StartSession(ctx context.Context, s Session) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions(session_id, source, started_at)
		VALUES(?, ?, ?)
	`, s.ID, s.Source, timeToUnixMicros(s.StartedAt)); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// EndSession stamps the end time and the final record count.
func (r *RecordRepo) EndSession(ctx context.Context, id string, endedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET ended_at = ?,
			record_count = (SELECT COUNT(*) FROM records WHERE records.session_id = sessions.session_id)
		WHERE session_id = ?
	`, timeToUnixMicros(endedAt), id); err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	return nil
}

// InsertBatch stores records in one transaction.
func (r *RecordRepo) InsertBatch(ctx context.Context, sessionID string, recs []ArchivedRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert records tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO records(session_id, seq, kind, layer, at, payload_len, body, raw)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert record: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, rec := range recs {
		raw := rec.Raw
		if raw == nil {
			raw = []byte{}
		}
		if _, err := stmt.ExecContext(ctx, sessionID, rec.Seq, int(rec.Kind), nullableString(rec.Layer),
			timeToUnixMicros(rec.At), rec.PayloadLen, rec.Body, raw); err != nil {
			return fmt.Errorf("insert record %d: %w", rec.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert records tx: %w", err)
	}

	return nil
}

func (r *RecordRepo) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE session_id = ?`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}

	return n, nil
}

// ListBySession returns a session's records in decode order. A non-positive
// limit returns all of them.
func (r *RecordRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]ArchivedRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, kind, layer, at, payload_len, body, raw
		FROM records
		WHERE session_id = ?
		ORDER BY seq ASC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []ArchivedRecord
	for rows.Next() {
		var (
			rec   ArchivedRecord
			kind  int
			layer sql.NullString
			at    int64
		)
		if err := rows.Scan(&rec.Seq, &kind, &layer, &at, &rec.PayloadLen, &rec.Body, &rec.Raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Kind = record.Kind(kind) // #nosec G115 -- kind column holds a single byte
		rec.Layer = layer.String
		rec.At = unixMicrosToTime(at)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return out, nil
}

// ListSessions returns archived sessions, newest first.
func (r *RecordRepo) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.session_id, s.source, s.started_at, s.ended_at,
			CASE WHEN s.ended_at IS NULL
				THEN (SELECT COUNT(*) FROM records r WHERE r.session_id = s.session_id)
				ELSE s.record_count
			END
		FROM sessions s
		ORDER BY s.started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []Session
	for rows.Next() {
		var (
			s       Session
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Source, &started, &ended, &s.RecordCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.StartedAt = unixMicrosToTime(started)
		if ended.Valid {
			s.EndedAt = unixMicrosToTime(ended.Int64)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return out, nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
