package service

import (
	"cmp"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aengwo/rfid-project/internal/campus/store"
	"github.com/aengwo/rfid-project/internal/campus/types"
)

const (
	trendDays         = 7
	patternWindowDays = 30
	defaultDwellLimit = 10
	defaultExportRows = 1000
	maxExportRows     = 10000
)

// ReportCache holds computed report payloads for a short time. A nil
// ReportCache disables caching.
type ReportCache interface {
	Load(ctx context.Context, key string, dst any) bool
	Store(ctx context.Context, key string, v any)
}

// Reporting computes read-only views over the access log. "Today" and
// calendar days are taken in the clock's zone.
type Reporting struct {
	reports   store.ReportStore
	log       store.AccessLogStore
	directory store.DirectoryStore
	cache     ReportCache
	clock     Clock
}

func NewReporting(rs store.ReportStore, ls store.AccessLogStore, ds store.DirectoryStore, cache ReportCache, clock Clock) *Reporting {
	return &Reporting{reports: rs, log: ls, directory: ds, cache: cache, clock: clock}
}

func (r *Reporting) DailyTotals(ctx context.Context) (types.DailyTotals, error) {
	from, to := r.clock.today()

	users, err := r.directory.CountUsers(ctx)
	if err != nil {
		return types.DailyTotals{}, err
	}
	events, err := r.reports.CountEvents(ctx, store.CountQuery{From: from, To: to})
	if err != nil {
		return types.DailyTotals{}, err
	}
	denied, err := r.reports.CountEvents(ctx, store.CountQuery{From: from, To: to, Outcome: types.OutcomeDenied})
	if err != nil {
		return types.DailyTotals{}, err
	}
	return types.DailyTotals{TotalUsers: users, TodayEvents: events, TodayDenied: denied}, nil
}

// Trend returns event counts for the last seven days, today first. Days
// without events are present with a zero count.
func (r *Reporting) Trend(ctx context.Context) ([]types.DayCount, error) {
	today, end := r.clock.today()
	from := today.AddDate(0, 0, -(trendDays - 1))

	rows, err := r.reports.GroupCounts(ctx, store.CountQuery{
		From: from, To: end, UTCOffset: r.clock.utcOffset(),
	}, store.BucketDay)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]int64, len(rows))
	for _, row := range rows {
		byDay[row.Key] += row.Count
	}

	out := make([]types.DayCount, 0, trendDays)
	for i := 0; i < trendDays; i++ {
		d := today.AddDate(0, 0, -i).Format(time.DateOnly)
		out = append(out, types.DayCount{Date: d, Count: byDay[d]})
	}
	return out, nil
}

// Hourly returns today's events in 24 hourly buckets.
func (r *Reporting) Hourly(ctx context.Context) ([]types.HourCount, error) {
	from, to := r.clock.today()
	rows, err := r.reports.GroupCounts(ctx, store.CountQuery{
		From: from, To: to, UTCOffset: r.clock.utcOffset(),
	}, store.BucketHour)
	if err != nil {
		return nil, err
	}

	out := make([]types.HourCount, 24)
	for h := range out {
		out[h].Hour = h
	}
	for _, row := range rows {
		h, err := strconv.Atoi(row.Key)
		if err != nil || h < 0 || h > 23 {
			return nil, fmt.Errorf("hourly: bad bucket %q", row.Key)
		}
		out[h].Count += row.Count
	}
	return out, nil
}

func (r *Reporting) Stats(ctx context.Context) (types.Stats, error) {
	totals, err := r.DailyTotals(ctx)
	if err != nil {
		return types.Stats{}, err
	}
	trend, err := r.Trend(ctx)
	if err != nil {
		return types.Stats{}, err
	}
	hourly, err := r.Hourly(ctx)
	if err != nil {
		return types.Stats{}, err
	}
	return types.Stats{DailyTotals: totals, Trend: trend, Hourly: hourly}, nil
}

// WeeklyPattern counts granted entries per location and weekday over the
// trailing 30 days. Days[0] is Monday.
func (r *Reporting) WeeklyPattern(ctx context.Context) ([]types.WeeklyPattern, error) {
	now := r.clock.now()
	key := "weekly:" + now.Format(time.DateOnly)
	var out []types.WeeklyPattern
	if r.cache != nil && r.cache.Load(ctx, key, &out) {
		return out, nil
	}

	rows, err := r.reports.GroupCounts(ctx, store.CountQuery{
		From:       now.AddDate(0, 0, -patternWindowDays),
		To:         now,
		Direction:  types.DirectionEntry,
		Outcome:    types.OutcomeGranted,
		ByLocation: true,
		UTCOffset:  r.clock.utcOffset(),
	}, store.BucketWeekday)
	if err != nil {
		return nil, err
	}

	byLoc := make(map[string]*types.WeeklyPattern)
	out = []types.WeeklyPattern{}
	for _, row := range rows {
		w, err := strconv.Atoi(row.Key)
		if err != nil || w < 0 || w > 6 {
			return nil, fmt.Errorf("weekly pattern: bad weekday %q", row.Key)
		}
		p, ok := byLoc[row.Location]
		if !ok {
			out = append(out, types.WeeklyPattern{Location: row.Location})
			p = &out[len(out)-1]
			byLoc[row.Location] = p
		}
		p.Days[mondayFirst(time.Weekday(w))] += row.Count
	}
	slices.SortFunc(out, func(a, b types.WeeklyPattern) int { return strings.Compare(a.Location, b.Location) })

	if r.cache != nil {
		r.cache.Store(ctx, key, out)
	}
	return out, nil
}

// mondayFirst maps time.Weekday (Sunday=0) to a Monday=0 index.
func mondayFirst(w time.Weekday) int {
	return (int(w) + 6) % 7
}

type dwellKey struct {
	userID   int64
	location string
}

// DwellHours sums, per user, the time between each granted entry and the
// next granted exit at the same location on the same local day, over the
// trailing 30 days. Entries with no such exit count until now. Results are
// ordered by hours descending and rounded to one decimal.
func (r *Reporting) DwellHours(ctx context.Context, limit int) ([]types.DwellHours, error) {
	if limit <= 0 {
		limit = defaultDwellLimit
	}
	now := r.clock.now()
	key := fmt.Sprintf("dwell:%s:%d", now.Format("2006-01-02T15"), limit)
	var out []types.DwellHours
	if r.cache != nil && r.cache.Load(ctx, key, &out) {
		return out, nil
	}

	moves, err := r.reports.GrantedMovements(ctx, now.AddDate(0, 0, -patternWindowDays), now)
	if err != nil {
		return nil, err
	}

	totals := make(map[int64]*types.DwellHours)
	open := make(map[dwellKey]time.Time)
	add := func(m store.Movement, d time.Duration) {
		t, ok := totals[m.UserID]
		if !ok {
			t = &types.DwellHours{UserID: m.UserID, Name: m.UserName, CardID: m.CardID}
			totals[m.UserID] = t
		}
		t.Hours += d.Hours()
	}

	last := make(map[dwellKey]store.Movement)
	for _, m := range moves {
		k := dwellKey{m.UserID, m.Location}
		switch m.Direction {
		case types.DirectionEntry:
			if in, ok := open[k]; ok {
				add(last[k], now.Sub(in))
			}
			open[k] = m.OccurredAt
			last[k] = m
		case types.DirectionExit:
			in, ok := open[k]
			if !ok {
				continue
			}
			if r.clock.startOfDay(in).Equal(r.clock.startOfDay(m.OccurredAt)) {
				add(m, m.OccurredAt.Sub(in))
			} else {
				add(m, now.Sub(in))
			}
			delete(open, k)
			delete(last, k)
		}
	}
	for k, in := range open {
		add(last[k], now.Sub(in))
	}

	out = make([]types.DwellHours, 0, len(totals))
	for _, t := range totals {
		t.Hours = math.Round(t.Hours*10) / 10
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b types.DwellHours) int {
		if c := cmp.Compare(b.Hours, a.Hours); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	if len(out) > limit {
		out = out[:limit]
	}

	if r.cache != nil {
		r.cache.Store(ctx, key, out)
	}
	return out, nil
}

// CampusTraffic counts granted entries per local day and location over the
// last seven days, oldest day first.
func (r *Reporting) CampusTraffic(ctx context.Context) ([]types.TrafficPoint, error) {
	today, end := r.clock.today()
	key := "traffic:" + r.clock.now().Format("2006-01-02T15:04")
	var out []types.TrafficPoint
	if r.cache != nil && r.cache.Load(ctx, key, &out) {
		return out, nil
	}

	rows, err := r.reports.GroupCounts(ctx, store.CountQuery{
		From:       today.AddDate(0, 0, -(trendDays - 1)),
		To:         end,
		Direction:  types.DirectionEntry,
		Outcome:    types.OutcomeGranted,
		ByLocation: true,
		UTCOffset:  r.clock.utcOffset(),
	}, store.BucketDay)
	if err != nil {
		return nil, err
	}

	out = make([]types.TrafficPoint, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.TrafficPoint{Date: row.Key, Location: row.Location, Count: row.Count})
	}
	slices.SortFunc(out, func(a, b types.TrafficPoint) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.Location, b.Location)
	})

	if r.cache != nil {
		r.cache.Store(ctx, key, out)
	}
	return out, nil
}

// Events returns raw log rows, newest first.
func (r *Reporting) Events(ctx context.Context, q store.EventQuery) ([]types.AccessEvent, error) {
	if q.CardID != "" {
		id, err := NormalizeCardID(q.CardID)
		if err != nil {
			return nil, err
		}
		q.CardID = id
	}
	if q.Limit <= 0 || q.Limit > maxExportRows {
		q.Limit = defaultExportRows
	}
	recs, err := r.log.ListEvents(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]types.AccessEvent, 0, len(recs))
	for _, rec := range recs {
		out = append(out, eventFromRecord(rec))
	}
	return out, nil
}

// Export returns up to limit rows of the log, newest first, for CSV output.
func (r *Reporting) Export(ctx context.Context, limit int) ([]types.AccessEvent, error) {
	return r.Events(ctx, store.EventQuery{Limit: limit})
}

var exportHeader = []string{"RFID Card ID", "Name", "Timestamp", "Access Point", "Direction", "Status", "Reason"}

// WriteEventsCSV writes events with a header row. Unknown users are
// exported as "Unknown" and empty reasons as "-".
func WriteEventsCSV(w io.Writer, events []types.AccessEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, ev := range events {
		name := ev.UserName
		if name == "" {
			name = "Unknown"
		}
		reason := ev.Reason
		if reason == "" {
			reason = "-"
		}
		if err := cw.Write([]string{ev.CardID, name, ev.OccurredAt, ev.Location, ev.Direction, ev.Outcome, reason}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
