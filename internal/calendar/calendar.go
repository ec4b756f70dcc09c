// Package calendar computes the fixed set of bookable instants for a day and
// validates arbitrary instants against the same policy. The generator and the
// validity predicate must never diverge: IsValidSlot is the authoritative gate
// the booking engine applies to client-supplied instants.
package calendar

import "time"

// Policy describes which instants of a day are bookable. The default policy
// yields slots at minute 30 of every hour from 10 through 20, excluding the
// 12:30 and 18:30 break slots — 9 slots per day.
type Policy struct {
	OpenHour   int
	CloseHour  int
	BreakHours []int
	SlotMinute int
	Location   *time.Location
}

// DefaultPolicy returns the shop's standard schedule in the given location.
// A nil location means time.Local.
func DefaultPolicy(loc *time.Location) Policy {
	if loc == nil {
		loc = time.Local
	}
	return Policy{
		OpenHour:   10,
		CloseHour:  20,
		BreakHours: []int{12, 18},
		SlotMinute: 30,
		Location:   loc,
	}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func (p Policy) isBreak(hour int) bool {
	for _, h := range p.BreakHours {
		if h == hour {
			return true
		}
	}
	return false
}

// GenerateDailySlots returns the ordered legal slot instants (epoch
// milliseconds) for the calendar day containing the given time.
func (p Policy) GenerateDailySlots(day time.Time) []int64 {
	loc := p.location()
	d := day.In(loc)
	base := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)

	slots := make([]int64, 0, p.CloseHour-p.OpenHour+1)
	for h := p.OpenHour; h <= p.CloseHour; h++ {
		if p.isBreak(h) {
			continue
		}
		slot := base.Add(time.Duration(h)*time.Hour + time.Duration(p.SlotMinute)*time.Minute)
		slots = append(slots, slot.UnixMilli())
	}
	return slots
}

// IsValidSlot reports whether an arbitrary instant is a legal slot: minute
// equals the slot minute, second and millisecond are zero, and the hour falls
// inside the opening hours outside breaks.
func (p Policy) IsValidSlot(instant int64) bool {
	t := time.UnixMilli(instant).In(p.location())

	if t.Minute() != p.SlotMinute {
		return false
	}
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return false
	}

	h := t.Hour()
	if h < p.OpenHour || h > p.CloseHour {
		return false
	}
	return !p.isBreak(h)
}

// DayRange returns the [from, to) epoch-millisecond bounds of the calendar day
// containing the given time. Handy for day-scoped slot queries.
func (p Policy) DayRange(day time.Time) (int64, int64) {
	loc := p.location()
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return start.UnixMilli(), start.AddDate(0, 0, 1).UnixMilli()
}
