package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aengwo/rfid-project/internal/campus/notify"
	"github.com/aengwo/rfid-project/internal/campus/service"
	"github.com/aengwo/rfid-project/internal/campus/store"
	"github.com/aengwo/rfid-project/internal/campus/store/memory"
	"github.com/aengwo/rfid-project/internal/campus/types"
)

// Tuesday, 15:00 UTC.
var fixedNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func fixedClock() service.Clock {
	return service.Clock{Location: time.UTC, Now: func() time.Time { return fixedNow }}
}

type harness struct {
	store     *memory.Store
	published *notify.Recorder
	readers   *service.ReaderRegistry
	evaluator *service.Evaluator
	occupancy *service.Occupancy
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ms := memory.New()
	rec := &notify.Recorder{}
	readers := service.NewReaderRegistry(ms)
	return &harness{
		store:     ms,
		published: rec,
		readers:   readers,
		evaluator: service.NewEvaluator(ms, readers, service.EvaluatorOptions{
			ScanTimeout: time.Second,
			Publisher:   rec,
		}),
		occupancy: service.NewOccupancy(ms, ms, service.Clock{}),
	}
}

func seedUser(t *testing.T, ms *memory.Store, cardID, name, status string) store.UserRecord {
	t.Helper()
	u, err := ms.CreateUser(context.Background(), store.UserRecord{
		CardID:       cardID,
		Name:         name,
		Email:        cardID + "@example.test",
		Status:       status,
		AccessLevel:  1,
		BalanceCents: 50000,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", cardID, err)
	}
	return u
}

// appendEvent writes a raw event, bypassing evaluation.
func appendEvent(t *testing.T, ms *memory.Store, rec store.AccessEventRecord) int64 {
	t.Helper()
	if rec.Outcome == "" {
		rec.Outcome = types.OutcomeGranted
	}
	if rec.Outcome == types.OutcomeGranted && rec.Direction == types.DirectionEntry && rec.TimeIn == nil {
		at := rec.OccurredAt
		rec.TimeIn = &at
	}
	var id int64
	err := ms.WithScanTx(context.Background(), func(ctx context.Context, tx store.ScanTx) error {
		var err error
		id, err = tx.AppendEvent(ctx, rec)
		return err
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	return id
}

func ptr[T any](v T) *T { return &v }

// mapCache is an in-process ReportCache.
type mapCache struct {
	mu     sync.Mutex
	values map[string]any
	loads  int
	stores int
}

func newMapCache() *mapCache { return &mapCache{values: make(map[string]any)} }

func (c *mapCache) Load(_ context.Context, key string, dst any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return false
	}
	c.loads++
	switch d := dst.(type) {
	case *[]types.WeeklyPattern:
		*d = v.([]types.WeeklyPattern)
	case *[]types.DwellHours:
		*d = v.([]types.DwellHours)
	case *[]types.TrafficPoint:
		*d = v.([]types.TrafficPoint)
	default:
		return false
	}
	return true
}

func (c *mapCache) Store(_ context.Context, key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores++
	c.values[key] = v
}
