package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aengwo/rfid-project/internal/campus/store"
)

// ReportStore runs aggregate queries on the read pool. It never writes.
type ReportStore struct {
	db *sql.DB
}

func NewReportStore(db *sql.DB) *ReportStore {
	return &ReportStore{db: db}
}

func (s *ReportStore) CountEvents(ctx context.Context, q store.CountQuery) (int64, error) {
	where, args := countWhere(q)
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_events WHERE `+where+`;`, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountEvents: %w", err)
	}
	return n, nil
}

func (s *ReportStore) GroupCounts(ctx context.Context, q store.CountQuery, b store.Bucket) ([]store.BucketCount, error) {
	keyExpr, keyArgs, err := bucketExpr(b, q.UTCOffset)
	if err != nil {
		return nil, err
	}
	locExpr := "''"
	if q.ByLocation {
		locExpr = "location"
	}
	where, whereArgs := countWhere(q)

	query := `
SELECT ` + locExpr + ` AS loc, ` + keyExpr + ` AS k, COUNT(*)
FROM access_events
WHERE ` + where + `
GROUP BY loc, k
ORDER BY loc, k;`

	rows, err := s.db.QueryContext(ctx, query, append(keyArgs, whereArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("GroupCounts: %w", err)
	}
	defer rows.Close()

	var out []store.BucketCount
	for rows.Next() {
		var bc store.BucketCount
		if err := rows.Scan(&bc.Location, &bc.Key, &bc.Count); err != nil {
			return nil, fmt.Errorf("GroupCounts scan: %w", err)
		}
		out = append(out, bc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GroupCounts rows: %w", err)
	}
	return out, nil
}

func (s *ReportStore) GrantedMovements(ctx context.Context, from, to time.Time) ([]store.Movement, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT e.user_id, u.name, e.card_id, e.location, e.direction, e.occurred_at_ms
FROM access_events e JOIN users u ON u.id = e.user_id
WHERE e.outcome = 'granted' AND e.occurred_at_ms >= ? AND e.occurred_at_ms < ?
ORDER BY e.id;`, toMs(from), toMs(to))
	if err != nil {
		return nil, fmt.Errorf("GrantedMovements: %w", err)
	}
	defer rows.Close()

	var out []store.Movement
	for rows.Next() {
		var (
			m  store.Movement
			ms int64
		)
		if err := rows.Scan(&m.UserID, &m.UserName, &m.CardID, &m.Location, &m.Direction, &ms); err != nil {
			return nil, fmt.Errorf("GrantedMovements scan: %w", err)
		}
		m.OccurredAt = fromMs(ms)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GrantedMovements rows: %w", err)
	}
	return out, nil
}

func countWhere(q store.CountQuery) (string, []any) {
	conds := []string{"occurred_at_ms >= ?", "occurred_at_ms < ?"}
	args := []any{toMs(q.From), toMs(q.To)}
	if q.Location != "" {
		conds = append(conds, "location = ?")
		args = append(args, q.Location)
	}
	if q.Direction != "" {
		conds = append(conds, "direction = ?")
		args = append(args, q.Direction)
	}
	if q.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, q.Outcome)
	}
	return strings.Join(conds, " AND "), args
}

// bucketExpr returns the SQL expression computing the bucket key of an
// event in local time, plus its bound arguments.
func bucketExpr(b store.Bucket, offset time.Duration) (string, []any, error) {
	modifier := fmt.Sprintf("%+d seconds", int64(offset/time.Second))
	var format string
	switch b {
	case store.BucketNone:
		return "''", nil, nil
	case store.BucketDay:
		format = "%Y-%m-%d"
	case store.BucketHour:
		format = "%H"
	case store.BucketWeekday:
		format = "%w"
	default:
		return "", nil, fmt.Errorf("unknown bucket %d", b)
	}
	return "strftime(?, occurred_at_ms / 1000, 'unixepoch', ?)", []any{format, modifier}, nil
}
