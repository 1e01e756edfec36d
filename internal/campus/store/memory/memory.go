// Package memory holds in-memory store implementations used by tests and
// throwaway dev servers. They follow the same semantics as the SQLite
// stores, including one open interval per card and location.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aengwo/rfid-project/internal/campus/store"
	"github.com/aengwo/rfid-project/internal/campus/types"
)

// Store implements DirectoryStore, AccessLogStore, ReportStore, ReaderStore
// and HeartbeatStore over one mutex.
type Store struct {
	mu sync.RWMutex

	users      []store.UserRecord
	nextUserID int64

	events      []store.AccessEventRecord
	nextEventID int64

	readers    map[string]store.ReaderRecord
	heartbeats []store.HeartbeatRecord

	failWrites error
}

var (
	_ store.DirectoryStore = (*Store)(nil)
	_ store.AccessLogStore = (*Store)(nil)
	_ store.ReportStore    = (*Store)(nil)
	_ store.ReaderStore    = (*Store)(nil)
	_ store.HeartbeatStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		readers: make(map[string]store.ReaderRecord),
	}
}

// FailWrites makes every subsequent write return err until called with nil.
// Test-only helper.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = err
}

// Events returns a copy of all recorded events in log order. Test-only helper.
func (s *Store) Events() []store.AccessEventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.AccessEventRecord, len(s.events))
	for i, e := range s.events {
		out[i] = s.withName(e)
	}
	return out
}

// ── Directory ────────────────────────────────────────────────────────────────

func (s *Store) LookupCard(_ context.Context, cardID string) (store.UserRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupCard(cardID)
}

func (s *Store) lookupCard(cardID string) (store.UserRecord, bool, error) {
	for _, u := range s.users {
		if u.CardID == cardID {
			return u, true, nil
		}
	}
	return store.UserRecord{}, false, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (store.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.userIndex(id)
	if i < 0 {
		return store.UserRecord{}, store.ErrNotFound
	}
	return s.users[i], nil
}

func (s *Store) ListUsers(_ context.Context, q store.UserQuery) ([]store.UserSummary, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(q.Search))
	var matched []store.UserSummary
	for i := len(s.users) - 1; i >= 0; i-- {
		u := s.users[i]
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.CardID), search) {
			continue
		}
		sum := store.UserSummary{UserRecord: u}
		for _, e := range s.events {
			if e.UserID != nil && *e.UserID == u.ID && (sum.LastAccess == nil || e.OccurredAt.After(*sum.LastAccess)) {
				t := e.OccurredAt
				sum.LastAccess = &t
			}
		}
		matched = append(matched, sum)
	}

	total := int64(len(matched))
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	if q.Offset >= len(matched) {
		return nil, total, nil
	}
	end := min(q.Offset+limit, len(matched))
	return matched[q.Offset:end], total, nil
}

func (s *Store) CreateUser(_ context.Context, u store.UserRecord) (store.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return store.UserRecord{}, s.failWrites
	}
	if err := s.checkUnique(u); err != nil {
		return store.UserRecord{}, err
	}
	s.nextUserID++
	u.ID = s.nextUserID
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.UpdatedAt = u.CreatedAt
	s.users = append(s.users, u)
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u store.UserRecord) (store.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return store.UserRecord{}, s.failWrites
	}
	i := s.userIndex(u.ID)
	if i < 0 {
		return store.UserRecord{}, store.ErrNotFound
	}
	if err := s.checkUnique(u); err != nil {
		return store.UserRecord{}, err
	}
	cur := s.users[i]
	cur.CardID, cur.Name, cur.Email, cur.Phone = u.CardID, u.Name, u.Email, u.Phone
	cur.Status, cur.AccessLevel = u.Status, u.AccessLevel
	cur.UpdatedAt = time.Now().UTC()
	s.users[i] = cur
	return cur, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	i := s.userIndex(id)
	if i < 0 {
		return store.ErrNotFound
	}
	for _, e := range s.events {
		if e.UserID != nil && *e.UserID == id {
			return store.ErrReferenced
		}
	}
	s.users = append(s.users[:i], s.users[i+1:]...)
	return nil
}

func (s *Store) CountUsers(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *Store) userIndex(id int64) int {
	for i, u := range s.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) checkUnique(u store.UserRecord) error {
	for _, other := range s.users {
		if other.ID == u.ID {
			continue
		}
		if other.CardID == u.CardID {
			return store.ErrCardInUse
		}
		if strings.EqualFold(other.Email, u.Email) {
			return store.ErrEmailInUse
		}
	}
	return nil
}

func (s *Store) withName(e store.AccessEventRecord) store.AccessEventRecord {
	if e.UserID != nil {
		if i := s.userIndex(*e.UserID); i >= 0 {
			e.UserName = s.users[i].Name
		}
	}
	return e
}

// ── Access log ───────────────────────────────────────────────────────────────

// WithScanTx holds the write lock for the whole of fn and undoes its changes
// if fn fails.
func (s *Store) WithScanTx(ctx context.Context, fn func(ctx context.Context, tx store.ScanTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}

	tx := &scanTx{s: s, eventsLen: len(s.events), nextID: s.nextEventID}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) OpenEntry(_ context.Context, cardID, location string) (store.AccessEventRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.openEntry(cardID, location)
	return rec, ok, nil
}

func (s *Store) openEntry(cardID, location string) (store.AccessEventRecord, bool) {
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if e.CardID != cardID || e.Location != location || e.Outcome != types.OutcomeGranted {
			continue
		}
		if e.Direction == types.DirectionExit {
			return store.AccessEventRecord{}, false
		}
		if e.TimeOut == nil {
			return s.withName(e), true
		}
		return store.AccessEventRecord{}, false
	}
	return store.AccessEventRecord{}, false
}

func (s *Store) OpenEntries(_ context.Context, location string) ([]store.AccessEventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.AccessEventRecord
	for _, e := range s.events {
		if location != "" && e.Location != location {
			continue
		}
		if e.Direction != types.DirectionEntry || e.Outcome != types.OutcomeGranted || e.TimeOut != nil {
			continue
		}
		if open, ok := s.openEntry(e.CardID, e.Location); ok && open.ID == e.ID {
			out = append(out, open)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListEvents(_ context.Context, q store.EventQuery) ([]store.AccessEventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	var out []store.AccessEventRecord
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.events[i]
		if !q.Since.IsZero() && e.OccurredAt.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && !e.OccurredAt.Before(q.Until) {
			continue
		}
		if q.Location != "" && e.Location != q.Location {
			continue
		}
		if q.CardID != "" && e.CardID != q.CardID {
			continue
		}
		out = append(out, s.withName(e))
	}
	return out, nil
}

type scanTx struct {
	s         *Store
	eventsLen int
	nextID    int64
	closed    []int // indexes whose time_out this tx set
}

func (t *scanTx) LookupCard(_ context.Context, cardID string) (store.UserRecord, bool, error) {
	return t.s.lookupCard(cardID)
}

func (t *scanTx) OpenEntry(_ context.Context, cardID, location string) (store.AccessEventRecord, bool, error) {
	rec, ok := t.s.openEntry(cardID, location)
	return rec, ok, nil
}

func (t *scanTx) AppendEvent(_ context.Context, rec store.AccessEventRecord) (int64, error) {
	if rec.Direction == types.DirectionEntry && rec.Outcome == types.OutcomeGranted && rec.TimeOut == nil {
		if _, open := t.s.openEntry(rec.CardID, rec.Location); open {
			return 0, fmt.Errorf("AppendEvent: open interval exists for %s at %s", rec.CardID, rec.Location)
		}
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	t.s.nextEventID++
	rec.ID = t.s.nextEventID
	rec.UserName = ""
	t.s.events = append(t.s.events, rec)
	return rec.ID, nil
}

func (t *scanTx) CloseInterval(_ context.Context, entryID int64, at time.Time) (bool, error) {
	for i := range t.s.events {
		e := &t.s.events[i]
		if e.ID != entryID {
			continue
		}
		if e.Direction != types.DirectionEntry || e.Outcome != types.OutcomeGranted || e.TimeOut != nil {
			return false, nil
		}
		at := at.UTC()
		e.TimeOut = &at
		t.closed = append(t.closed, i)
		return true, nil
	}
	return false, nil
}

func (t *scanTx) rollback() {
	for _, i := range t.closed {
		if i < t.eventsLen {
			t.s.events[i].TimeOut = nil
		}
	}
	t.s.events = t.s.events[:t.eventsLen]
	t.s.nextEventID = t.nextID
}

// ── Reports ──────────────────────────────────────────────────────────────────

func (s *Store) CountEvents(_ context.Context, q store.CountQuery) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.events {
		if matches(e, q) {
			n++
		}
	}
	return n, nil
}

func (s *Store) GroupCounts(_ context.Context, q store.CountQuery, b store.Bucket) ([]store.BucketCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type groupKey struct{ loc, key string }
	counts := make(map[groupKey]int64)
	for _, e := range s.events {
		if !matches(e, q) {
			continue
		}
		local := e.OccurredAt.UTC().Add(q.UTCOffset)
		var k groupKey
		if q.ByLocation {
			k.loc = e.Location
		}
		switch b {
		case store.BucketNone:
		case store.BucketDay:
			k.key = local.Format("2006-01-02")
		case store.BucketHour:
			k.key = local.Format("15")
		case store.BucketWeekday:
			k.key = fmt.Sprintf("%d", int(local.Weekday()))
		default:
			return nil, errors.New("unknown bucket")
		}
		counts[k]++
	}

	out := make([]store.BucketCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, store.BucketCount{Location: k.loc, Key: k.key, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (s *Store) GrantedMovements(_ context.Context, from, to time.Time) ([]store.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Movement
	for _, e := range s.events {
		if e.Outcome != types.OutcomeGranted || e.UserID == nil {
			continue
		}
		if e.OccurredAt.Before(from) || !e.OccurredAt.Before(to) {
			continue
		}
		i := s.userIndex(*e.UserID)
		if i < 0 {
			continue
		}
		out = append(out, store.Movement{
			UserID:     *e.UserID,
			UserName:   s.users[i].Name,
			CardID:     e.CardID,
			Location:   e.Location,
			Direction:  e.Direction,
			OccurredAt: e.OccurredAt,
		})
	}
	return out, nil
}

func matches(e store.AccessEventRecord, q store.CountQuery) bool {
	if e.OccurredAt.Before(q.From) || !e.OccurredAt.Before(q.To) {
		return false
	}
	if q.Location != "" && e.Location != q.Location {
		return false
	}
	if q.Direction != "" && e.Direction != q.Direction {
		return false
	}
	if q.Outcome != "" && e.Outcome != q.Outcome {
		return false
	}
	return true
}

// ── Readers & heartbeats ─────────────────────────────────────────────────────

func (s *Store) GetReader(_ context.Context, readerID string) (store.ReaderRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.readers[readerID]
	return rec, ok, nil
}

func (s *Store) ListReaders(_ context.Context) ([]store.ReaderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.ReaderRecord, 0, len(s.readers))
	for _, r := range s.readers {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReaderID < out[j].ReaderID })
	return out, nil
}

func (s *Store) UpsertReader(_ context.Context, rec store.ReaderRecord) (store.ReaderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return store.ReaderRecord{}, s.failWrites
	}
	cur := s.readers[rec.ReaderID]
	cur.ReaderID, cur.Name, cur.Location, cur.Status = rec.ReaderID, rec.Name, rec.Location, rec.Status
	s.readers[rec.ReaderID] = cur
	return cur, nil
}

func (s *Store) MarkSeen(_ context.Context, readerID string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	s.touchReader(readerID, t)
	return nil
}

func (s *Store) touchReader(readerID string, t time.Time) store.ReaderRecord {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	rec, ok := s.readers[readerID]
	if !ok {
		rec = store.ReaderRecord{ReaderID: readerID, Status: types.ReaderInactive}
	}
	rec.LastSeen = &t
	s.readers[readerID] = rec
	return rec
}

func (s *Store) RecordHeartbeat(_ context.Context, readerID string, rec store.HeartbeatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	r := s.touchReader(readerID, rec.ReceivedAt)
	if ip := strings.TrimSpace(rec.Request.IP); ip != "" {
		r.LastIP = ip
	}
	if fw := strings.TrimSpace(rec.Request.FirmwareVersion); fw != "" {
		r.LastFirmware = fw
	}
	s.readers[readerID] = r
	s.heartbeats = append(s.heartbeats, rec)
	return nil
}

func (s *Store) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return 0, s.failWrites
	}
	kept := s.heartbeats[:0]
	var deleted int64
	for _, hb := range s.heartbeats {
		if hb.ReceivedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, hb)
	}
	s.heartbeats = kept
	return deleted, nil
}
