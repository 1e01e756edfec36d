package service

import (
	"context"
	"slices"
	"strings"

	"github.com/aengwo/rfid-project/internal/campus/store"
	"github.com/aengwo/rfid-project/internal/campus/types"
)

// Occupancy answers who is inside where. It keeps no state of its own and
// recomputes every answer from the access log.
type Occupancy struct {
	log     store.AccessLogStore
	reports store.ReportStore
	clock   Clock
}

func NewOccupancy(ls store.AccessLogStore, rs store.ReportStore, clock Clock) *Occupancy {
	return &Occupancy{log: ls, reports: rs, clock: clock}
}

// IsInside reports whether the card has an open interval at location.
func (o *Occupancy) IsInside(ctx context.Context, cardID, location string) (bool, error) {
	id, err := NormalizeCardID(cardID)
	if err != nil {
		return false, err
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return false, ErrInvalidLocation
	}
	_, ok, err := o.log.OpenEntry(ctx, id, location)
	return ok, err
}

// CurrentPopulation is today's granted entries minus today's granted exits
// at location, never below zero.
func (o *Occupancy) CurrentPopulation(ctx context.Context, location string) (int64, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return 0, ErrInvalidLocation
	}
	from, to := o.clock.today()

	q := store.CountQuery{From: from, To: to, Location: location, Outcome: types.OutcomeGranted}
	q.Direction = types.DirectionEntry
	entries, err := o.reports.CountEvents(ctx, q)
	if err != nil {
		return 0, err
	}
	q.Direction = types.DirectionExit
	exits, err := o.reports.CountEvents(ctx, q)
	if err != nil {
		return 0, err
	}
	return max(entries-exits, 0), nil
}

// Populations returns the current population of every location with
// granted traffic today, sorted by location.
func (o *Occupancy) Populations(ctx context.Context) ([]types.Population, error) {
	from, to := o.clock.today()
	q := store.CountQuery{From: from, To: to, Outcome: types.OutcomeGranted, ByLocation: true}

	q.Direction = types.DirectionEntry
	entries, err := o.reports.GroupCounts(ctx, q, store.BucketNone)
	if err != nil {
		return nil, err
	}
	q.Direction = types.DirectionExit
	exits, err := o.reports.GroupCounts(ctx, q, store.BucketNone)
	if err != nil {
		return nil, err
	}

	net := make(map[string]int64)
	for _, r := range entries {
		net[r.Location] += r.Count
	}
	for _, r := range exits {
		net[r.Location] -= r.Count
	}

	out := make([]types.Population, 0, len(net))
	for loc, n := range net {
		out = append(out, types.Population{Location: loc, Population: max(n, 0)})
	}
	slices.SortFunc(out, func(a, b types.Population) int { return strings.Compare(a.Location, b.Location) })
	return out, nil
}

// Occupants lists the cards with an open interval, optionally at one
// location.
func (o *Occupancy) Occupants(ctx context.Context, location string) ([]types.Occupant, error) {
	recs, err := o.log.OpenEntries(ctx, strings.TrimSpace(location))
	if err != nil {
		return nil, err
	}
	out := make([]types.Occupant, 0, len(recs))
	for _, r := range recs {
		timeIn := r.OccurredAt
		if r.TimeIn != nil {
			timeIn = *r.TimeIn
		}
		out = append(out, types.Occupant{
			CardID:   r.CardID,
			UserID:   r.UserID,
			UserName: r.UserName,
			Location: r.Location,
			TimeIn:   formatTime(timeIn),
		})
	}
	return out, nil
}
