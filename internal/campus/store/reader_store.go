package store

import (
	"context"
	"time"

	"github.com/aengwo/rfid-project/internal/campus/types"
)

type ReaderRecord struct {
	ReaderID     string
	Name         string
	Location     string
	Status       string
	LastSeen     *time.Time
	LastIP       string
	LastFirmware string
}

type ReaderStore interface {
	GetReader(ctx context.Context, readerID string) (ReaderRecord, bool, error)
	ListReaders(ctx context.Context) ([]ReaderRecord, error)
	// UpsertReader sets name, location and status, creating the reader if needed.
	UpsertReader(ctx context.Context, rec ReaderRecord) (ReaderRecord, error)
	// MarkSeen records contact from a reader, creating it inactive if unknown.
	MarkSeen(ctx context.Context, readerID string, t time.Time) error
}

type HeartbeatRecord struct {
	ReceivedAt time.Time
	Request    types.HeartbeatRequest
}

type HeartbeatStore interface {
	RecordHeartbeat(ctx context.Context, readerID string, rec HeartbeatRecord) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
