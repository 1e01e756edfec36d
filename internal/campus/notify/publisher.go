// Package notify publishes committed access events to downstream
// subscribers. Publishing is best effort: the access log is the source of
// truth and a failed publish never undoes a scan.
package notify

import (
	"context"
	"sync"

	"github.com/aengwo/rfid-project/internal/campus/types"
)

type Publisher interface {
	PublishAccessEvent(ctx context.Context, ev types.AccessEvent) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) PublishAccessEvent(context.Context, types.AccessEvent) error { return nil }

// Recorder keeps published events in memory. Used by tests and by dev
// servers without a broker.
type Recorder struct {
	mu     sync.Mutex
	events []types.AccessEvent
	Err    error
}

func (r *Recorder) PublishAccessEvent(_ context.Context, ev types.AccessEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []types.AccessEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.AccessEvent, len(r.events))
	copy(out, r.events)
	return out
}
