package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aengwo/rfid-project/internal/campus/store"
	"github.com/aengwo/rfid-project/internal/campus/types"
)

var ErrInvalidReaderStatus = fmt.Errorf("%w: status must be active, inactive or maintenance", ErrInvalidInput)

// ReaderRegistry tracks the RFID readers that post scans and heartbeats.
type ReaderRegistry struct {
	store store.ReaderStore
	now   func() time.Time
}

func NewReaderRegistry(st store.ReaderStore) *ReaderRegistry {
	return &ReaderRegistry{store: st, now: time.Now}
}

// Get returns the reader and whether it is registered. An empty id is
// never known.
func (r *ReaderRegistry) Get(ctx context.Context, readerID string) (store.ReaderRecord, bool, error) {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return store.ReaderRecord{}, false, nil
	}
	return r.store.GetReader(ctx, readerID)
}

// Location returns the configured location of an active reader, or "".
func (r *ReaderRegistry) Location(ctx context.Context, readerID string) (string, error) {
	rec, ok, err := r.Get(ctx, readerID)
	if err != nil || !ok || rec.Status != types.ReaderActive {
		return "", err
	}
	return rec.Location, nil
}

func (r *ReaderRegistry) NoteSeen(ctx context.Context, readerID string) error {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return nil
	}
	return r.store.MarkSeen(ctx, readerID, r.now().UTC())
}

func (r *ReaderRegistry) List(ctx context.Context) ([]types.Reader, error) {
	recs, err := r.store.ListReaders(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Reader, 0, len(recs))
	for _, rec := range recs {
		out = append(out, readerFromRecord(rec))
	}
	return out, nil
}

// Register creates or updates a reader's name, location and status.
func (r *ReaderRegistry) Register(ctx context.Context, readerID string, in types.ReaderInput) (types.Reader, error) {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return types.Reader{}, ErrInvalidReaderID
	}
	status := strings.ToLower(strings.TrimSpace(in.Status))
	switch status {
	case "":
		status = types.ReaderActive
	case types.ReaderActive, types.ReaderInactive, types.ReaderMaintenance:
	default:
		return types.Reader{}, ErrInvalidReaderStatus
	}

	rec, err := r.store.UpsertReader(ctx, store.ReaderRecord{
		ReaderID: readerID,
		Name:     strings.TrimSpace(in.Name),
		Location: strings.TrimSpace(in.Location),
		Status:   status,
	})
	if err != nil {
		return types.Reader{}, err
	}
	return readerFromRecord(rec), nil
}
