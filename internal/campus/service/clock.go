package service

import "time"

// Clock supplies "now" and the zone that day boundaries are computed in.
type Clock struct {
	Location *time.Location
	Now      func() time.Time
}

func (c Clock) zone() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now().In(c.zone())
	}
	return c.Now().In(c.zone())
}

// startOfDay returns local midnight of t's calendar day.
func (c Clock) startOfDay(t time.Time) time.Time {
	t = t.In(c.zone())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.zone())
}

// today returns [midnight, next midnight) for the current local day.
func (c Clock) today() (time.Time, time.Time) {
	from := c.startOfDay(c.now())
	return from, from.AddDate(0, 0, 1)
}

// utcOffset is the zone offset at now. Store-side grouping shifts every
// timestamp by this one offset, so buckets near a DST change can be off
// by an hour.
func (c Clock) utcOffset() time.Duration {
	_, off := c.now().Zone()
	return time.Duration(off) * time.Second
}
