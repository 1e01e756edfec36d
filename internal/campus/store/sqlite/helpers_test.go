package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/aengwo/rfid-project/internal/campus/store"
	sqlitestore "github.com/aengwo/rfid-project/internal/campus/store/sqlite"
	"github.com/aengwo/rfid-project/internal/db"
)

// openTestDB returns a temp-file SQLite database opened with the production
// DSN and migrations. It is closed when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(context.Background(), db.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
		Env:  "dev",
	})
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn. The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

func seedUser(t *testing.T, ds *sqlitestore.DirectoryStore, cardID, name, status string) store.UserRecord {
	t.Helper()
	u, err := ds.CreateUser(context.Background(), store.UserRecord{
		CardID:      cardID,
		Name:        name,
		Email:       cardID + "@uni.test",
		Status:      status,
		AccessLevel: 1,
	})
	if err != nil {
		t.Fatalf("seedUser(%s): %v", cardID, err)
	}
	return u
}

// appendEvent writes rec through a scan transaction.
func appendEvent(t *testing.T, as *sqlitestore.AccessLogStore, rec store.AccessEventRecord) int64 {
	t.Helper()
	var id int64
	err := as.WithScanTx(context.Background(), func(ctx context.Context, tx store.ScanTx) error {
		var err error
		id, err = tx.AppendEvent(ctx, rec)
		return err
	})
	if err != nil {
		t.Fatalf("appendEvent: %v", err)
	}
	return id
}

func ptr[T any](v T) *T { return &v }

var base = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
