package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aengwo/rfid-project/internal/campus/store"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside the writer's transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func toMs(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMs(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMs(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMs(*t)
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMs(v.Int64)
	return &t
}

func nullString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on
// the given table.column.
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var (
	_ store.DirectoryStore = (*DirectoryStore)(nil)
	_ store.AccessLogStore = (*AccessLogStore)(nil)
	_ store.ReportStore    = (*ReportStore)(nil)
	_ store.ReaderStore    = (*ReaderStore)(nil)
	_ store.HeartbeatStore = (*HeartbeatStore)(nil)
	_ store.WalletStore    = (*WalletStore)(nil)
)
