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

const readerColumns = `reader_id, name, location, status, last_seen_at_ms,
  COALESCE(last_ip, ''), COALESCE(last_fw_version, '')`

type ReaderStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewReaderStore(db *sql.DB, writer *dbpkg.Worker) *ReaderStore {
	return &ReaderStore{db: db, writer: writer}
}

func (s *ReaderStore) GetReader(ctx context.Context, readerID string) (store.ReaderRecord, bool, error) {
	rec, err := getReader(ctx, s.db, readerID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ReaderRecord{}, false, nil
	}
	if err != nil {
		return store.ReaderRecord{}, false, fmt.Errorf("GetReader: %w", err)
	}
	return rec, true, nil
}

func (s *ReaderStore) ListReaders(ctx context.Context) ([]store.ReaderRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+readerColumns+` FROM readers ORDER BY reader_id;`)
	if err != nil {
		return nil, fmt.Errorf("ListReaders: %w", err)
	}
	defer rows.Close()

	var out []store.ReaderRecord
	for rows.Next() {
		rec, err := scanReader(rows)
		if err != nil {
			return nil, fmt.Errorf("ListReaders scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListReaders rows: %w", err)
	}
	return out, nil
}

func (s *ReaderStore) UpsertReader(ctx context.Context, rec store.ReaderRecord) (store.ReaderRecord, error) {
	nowMs := time.Now().UTC().UnixMilli()

	var out store.ReaderRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO readers(reader_id, name, location, status, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(reader_id) DO UPDATE SET
  name = excluded.name,
  location = excluded.location,
  status = excluded.status,
  updated_at_ms = excluded.updated_at_ms;
`, rec.ReaderID, rec.Name, rec.Location, rec.Status, nowMs, nowMs); err != nil {
			return fmt.Errorf("UpsertReader: %w", err)
		}
		var err error
		out, err = getReader(ctx, tx, rec.ReaderID)
		return err
	})
	if err != nil {
		return store.ReaderRecord{}, err
	}
	return out, nil
}

// MarkSeen ensures the reader row exists and updates last_seen.
func (s *ReaderStore) MarkSeen(ctx context.Context, readerID string, t time.Time) error {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := toMs(t)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureReader(ctx, tx, readerID, ms); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE readers
SET last_seen_at_ms = ?,
    updated_at_ms   = ?
WHERE reader_id = ?;
`, ms, ms, readerID); err != nil {
			return fmt.Errorf("MarkSeen update reader: %w", err)
		}
		return nil
	})
}

func getReader(ctx context.Context, q queryer, readerID string) (store.ReaderRecord, error) {
	return scanReader(q.QueryRowContext(ctx, `SELECT `+readerColumns+` FROM readers WHERE reader_id = ?;`, readerID))
}

func scanReader(r rowScanner) (store.ReaderRecord, error) {
	var (
		rec      store.ReaderRecord
		lastSeen sql.NullInt64
	)
	if err := r.Scan(&rec.ReaderID, &rec.Name, &rec.Location, &rec.Status, &lastSeen,
		&rec.LastIP, &rec.LastFirmware); err != nil {
		return store.ReaderRecord{}, err
	}
	rec.LastSeen = timePtr(lastSeen)
	return rec, nil
}
