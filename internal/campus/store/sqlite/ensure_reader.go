package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// ensureReader guarantees a readers row exists so heartbeats can reference
// it. Readers first seen this way start inactive with no location until an
// admin registers them.
//
// Must be called inside an existing transaction.
func ensureReader(ctx context.Context, tx *sql.Tx, readerID string, nowMs int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO readers(
  reader_id, status, created_at_ms, updated_at_ms
) VALUES (?, 'inactive', ?, ?);
`, readerID, nowMs, nowMs); err != nil {
		return fmt.Errorf("ensureReader %s: %w", readerID, err)
	}
	return nil
}
