package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aengwo/rfid-project/internal/campus/store"
	dbpkg "github.com/aengwo/rfid-project/internal/db"
)

const eventColumns = `e.id, e.card_id, e.user_id, COALESCE(u.name, ''), COALESCE(e.reader_id, ''),
  e.location, e.direction, e.outcome, e.reason, e.occurred_at_ms, e.requested_at_ms,
  e.time_in_ms, e.time_out_ms`

// openEntryPredicate matches granted entries with no time_out that are newer
// than the last granted exit for the same card and location.
const openEntryPredicate = `e.direction = 'entry' AND e.outcome = 'granted' AND e.time_out_ms IS NULL
  AND e.id > COALESCE((
    SELECT MAX(x.id) FROM access_events x
    WHERE x.card_id = e.card_id AND x.location = e.location
      AND x.direction = 'exit' AND x.outcome = 'granted'
  ), 0)`

type AccessLogStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessLogStore(db *sql.DB, writer *dbpkg.Worker) *AccessLogStore {
	return &AccessLogStore{db: db, writer: writer}
}

// WithScanTx runs fn inside one writer transaction.
func (s *AccessLogStore) WithScanTx(ctx context.Context, fn func(ctx context.Context, tx store.ScanTx) error) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &scanTx{tx: tx})
	})
}

func (s *AccessLogStore) OpenEntry(ctx context.Context, cardID, location string) (store.AccessEventRecord, bool, error) {
	return openEntry(ctx, s.db, cardID, location)
}

func (s *AccessLogStore) OpenEntries(ctx context.Context, location string) ([]store.AccessEventRecord, error) {
	query := `SELECT ` + eventColumns + `
FROM access_events e LEFT JOIN users u ON u.id = e.user_id
WHERE ` + openEntryPredicate
	var args []any
	if location != "" {
		query += ` AND e.location = ?`
		args = append(args, location)
	}
	query += ` ORDER BY e.location, e.id;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("OpenEntries: %w", err)
	}
	return collectEvents(rows)
}

func (s *AccessLogStore) ListEvents(ctx context.Context, q store.EventQuery) ([]store.AccessEventRecord, error) {
	var (
		conds []string
		args  []any
	)
	if !q.Since.IsZero() {
		conds = append(conds, "e.occurred_at_ms >= ?")
		args = append(args, toMs(q.Since))
	}
	if !q.Until.IsZero() {
		conds = append(conds, "e.occurred_at_ms < ?")
		args = append(args, toMs(q.Until))
	}
	if q.Location != "" {
		conds = append(conds, "e.location = ?")
		args = append(args, q.Location)
	}
	if q.CardID != "" {
		conds = append(conds, "e.card_id = ?")
		args = append(args, q.CardID)
	}

	query := `SELECT ` + eventColumns + `
FROM access_events e LEFT JOIN users u ON u.id = e.user_id`
	if len(conds) > 0 {
		query += "\nWHERE " + strings.Join(conds, " AND ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query += "\nORDER BY e.id DESC LIMIT ?;"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListEvents: %w", err)
	}
	return collectEvents(rows)
}

// scanTx adapts a writer transaction to store.ScanTx.
type scanTx struct {
	tx *sql.Tx
}

func (t *scanTx) LookupCard(ctx context.Context, cardID string) (store.UserRecord, bool, error) {
	return lookupCard(ctx, t.tx, cardID)
}

func (t *scanTx) OpenEntry(ctx context.Context, cardID, location string) (store.AccessEventRecord, bool, error) {
	return openEntry(ctx, t.tx, cardID, location)
}

func (t *scanTx) AppendEvent(ctx context.Context, rec store.AccessEventRecord) (int64, error) {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	res, err := t.tx.ExecContext(ctx, `
INSERT INTO access_events(
  card_id, user_id, reader_id, location, direction, outcome, reason,
  occurred_at_ms, requested_at_ms, time_in_ms, time_out_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.CardID, nullInt64(rec.UserID), nullString(rec.ReaderID), rec.Location,
		rec.Direction, rec.Outcome, rec.Reason,
		toMs(rec.OccurredAt), nullMs(rec.RequestedAt), nullMs(rec.TimeIn), nullMs(rec.TimeOut),
	)
	if err != nil {
		return 0, fmt.Errorf("AppendEvent insert: %w", err)
	}
	return res.LastInsertId()
}

func (t *scanTx) CloseInterval(ctx context.Context, entryID int64, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
UPDATE access_events
SET time_out_ms = ?
WHERE id = ? AND direction = 'entry' AND outcome = 'granted' AND time_out_ms IS NULL;`,
		toMs(at), entryID,
	)
	if err != nil {
		return false, fmt.Errorf("CloseInterval: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("CloseInterval rows: %w", err)
	}
	return n == 1, nil
}

func openEntry(ctx context.Context, q queryer, cardID, location string) (store.AccessEventRecord, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+eventColumns+`
FROM access_events e LEFT JOIN users u ON u.id = e.user_id
WHERE e.card_id = ? AND e.location = ? AND `+openEntryPredicate+`
ORDER BY e.id DESC
LIMIT 1;`, cardID, location)

	rec, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.AccessEventRecord{}, false, nil
	}
	if err != nil {
		return store.AccessEventRecord{}, false, fmt.Errorf("OpenEntry: %w", err)
	}
	return rec, true, nil
}

func scanEvent(r rowScanner) (store.AccessEventRecord, error) {
	var (
		rec                            store.AccessEventRecord
		userID                         sql.NullInt64
		occurredMs                     int64
		requestedMs, timeInMs, timeOut sql.NullInt64
	)
	if err := r.Scan(&rec.ID, &rec.CardID, &userID, &rec.UserName, &rec.ReaderID,
		&rec.Location, &rec.Direction, &rec.Outcome, &rec.Reason, &occurredMs,
		&requestedMs, &timeInMs, &timeOut); err != nil {
		return store.AccessEventRecord{}, err
	}
	if userID.Valid {
		id := userID.Int64
		rec.UserID = &id
	}
	rec.OccurredAt = fromMs(occurredMs)
	rec.RequestedAt = timePtr(requestedMs)
	rec.TimeIn = timePtr(timeInMs)
	rec.TimeOut = timePtr(timeOut)
	return rec, nil
}

func collectEvents(rows *sql.Rows) ([]store.AccessEventRecord, error) {
	defer rows.Close()
	var out []store.AccessEventRecord
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event rows: %w", err)
	}
	return out, nil
}
