package store

import (
	"context"
	"time"
)

// Bucket selects the calendar unit GroupCounts groups by. Keys are computed
// after shifting timestamps by CountQuery.UTCOffset.
type Bucket int

const (
	BucketNone    Bucket = iota // one group (per location when ByLocation)
	BucketDay                   // key "YYYY-MM-DD"
	BucketHour                  // key "00".."23"
	BucketWeekday               // key "0".."6", Sunday = 0
)

type CountQuery struct {
	From      time.Time // inclusive
	To        time.Time // exclusive
	Location  string    // optional
	Direction string    // optional
	Outcome   string    // optional
	// ByLocation adds location to the grouping key.
	ByLocation bool
	UTCOffset  time.Duration
}

type BucketCount struct {
	Location string
	Key      string
	Count    int64
}

// Movement is a granted event used for dwell-time pairing.
type Movement struct {
	UserID     int64
	UserName   string
	CardID     string
	Location   string
	Direction  string
	OccurredAt time.Time
}

// ReportStore answers read-only aggregate queries over the access log.
type ReportStore interface {
	CountEvents(ctx context.Context, q CountQuery) (int64, error)
	GroupCounts(ctx context.Context, q CountQuery, b Bucket) ([]BucketCount, error)
	// GrantedMovements returns granted events of registered users in
	// [from, to), ordered by log position.
	GrantedMovements(ctx context.Context, from, to time.Time) ([]Movement, error)
}
