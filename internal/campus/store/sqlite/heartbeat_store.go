package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aengwo/rfid-project/internal/campus/store"
	dbpkg "github.com/aengwo/rfid-project/internal/db"
)

type HeartbeatStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewHeartbeatStore(db *sql.DB, writer *dbpkg.Worker) *HeartbeatStore {
	return &HeartbeatStore{db: db, writer: writer}
}

// RecordHeartbeat appends a heartbeat row and refreshes the reader's
// snapshot columns in the same transaction.
func (s *HeartbeatStore) RecordHeartbeat(ctx context.Context, readerID string, rec store.HeartbeatRecord) error {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return nil
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	recvMs := toMs(rec.ReceivedAt)

	fw := strings.TrimSpace(rec.Request.FirmwareVersion)
	ip := strings.TrimSpace(rec.Request.IP)

	var rssi any
	if rec.Request.RSSIDbm != nil {
		rssi = *rec.Request.RSSIDbm
	}

	var uptimeMs any
	if rec.Request.UptimeSeconds != 0 {
		uptimeMs = int64(rec.Request.UptimeSeconds) * 1000
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureReader(ctx, tx, readerID, recvMs); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO reader_heartbeats(
  reader_id, received_at_ms, uptime_ms, fw_version, wifi_rssi, ip
) VALUES (?, ?, ?, ?, ?, ?);
`, readerID, recvMs, uptimeMs, nullString(fw), rssi, nullString(ip)); err != nil {
			return fmt.Errorf("RecordHeartbeat insert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE readers
SET last_seen_at_ms = ?,
    last_ip = COALESCE(?, last_ip),
    last_fw_version = COALESCE(?, last_fw_version),
    last_wifi_rssi = ?,
    updated_at_ms = ?
WHERE reader_id = ?;
`, recvMs, nullString(ip), nullString(fw), rssi, recvMs, readerID); err != nil {
			return fmt.Errorf("RecordHeartbeat update snapshot: %w", err)
		}

		return nil
	})
}

// PruneOlderThan deletes heartbeat rows received before cutoff and returns
// how many were removed.
func (s *HeartbeatStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := toMs(cutoff)

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM reader_heartbeats
WHERE received_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
