package store

import (
	"context"
	"time"
)

// AccessEventRecord is one scan outcome in the access log. UserName is
// filled by reads and ignored on insert.
type AccessEventRecord struct {
	ID          int64
	CardID      string
	UserID      *int64
	UserName    string
	ReaderID    string
	Location    string
	Direction   string
	Outcome     string
	Reason      string
	OccurredAt  time.Time
	RequestedAt *time.Time // optional device-reported timestamp
	TimeIn      *time.Time
	TimeOut     *time.Time
}

type EventQuery struct {
	Since    time.Time // inclusive; zero means unbounded
	Until    time.Time // exclusive; zero means unbounded
	Location string
	CardID   string
	Limit    int
}

// ScanTx is the view of the store a single scan evaluation runs against.
// Everything done through it commits or rolls back together.
type ScanTx interface {
	LookupCard(ctx context.Context, cardID string) (UserRecord, bool, error)
	OpenEntry(ctx context.Context, cardID, location string) (AccessEventRecord, bool, error)
	AppendEvent(ctx context.Context, rec AccessEventRecord) (int64, error)
	// CloseInterval sets time_out on the entry row if it is still open and
	// reports whether it did.
	CloseInterval(ctx context.Context, entryID int64, at time.Time) (bool, error)
}

// AccessLogStore persists the append-only access log.
type AccessLogStore interface {
	WithScanTx(ctx context.Context, fn func(ctx context.Context, tx ScanTx) error) error

	// OpenEntry returns the granted entry for (card, location) whose
	// interval has not been closed by a later granted exit.
	OpenEntry(ctx context.Context, cardID, location string) (AccessEventRecord, bool, error)
	// OpenEntries lists every open interval, optionally for one location.
	OpenEntries(ctx context.Context, location string) ([]AccessEventRecord, error)
	// ListEvents returns events newest first.
	ListEvents(ctx context.Context, q EventQuery) ([]AccessEventRecord, error)
}
