// Package period resolves named reporting periods into concrete time ranges.
package period

import (
	"time"

	apperrors "stocktrail/internal/errors"
)

// Name is a symbolic reporting period.
type Name string

const (
	Day        Name = "day"
	TenDays    Name = "10days"
	ThisMonth  Name = "thisMonth"
	LastMonth  Name = "lastMonth"
	Last3Month Name = "last3Months"
	Custom     Name = "custom"
	All        Name = "all"

	// Aliases used by the top-selling view. Both run up to now rather than
	// to the end of the month.
	MonthToDate      Name = "month"
	ThreeMonthToDate Name = "3months"
)

// Names lists every accepted period name.
var Names = []Name{Day, TenDays, ThisMonth, LastMonth, Last3Month, Custom, All, MonthToDate, ThreeMonthToDate}

// Valid reports whether n is a known period name. The empty name is valid
// and means All.
func (n Name) Valid() bool {
	if n == "" {
		return true
	}
	for _, known := range Names {
		if n == known {
			return true
		}
	}
	return false
}

const dateLayout = "2006-01-02"

// Range is an inclusive instant range. A nil bound is unbounded.
type Range struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Bounded returns a range with both ends set.
func Bounded(start, end time.Time) Range {
	return Range{Start: &start, End: &end}
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// Resolve maps a period name (and, for Custom, the caller's bounds) to a
// range in now's location. Unknown or empty names resolve to All.
func Resolve(name Name, start, end string, now time.Time) (Range, error) {
	today := StartOfDay(now)

	switch name {
	case Day:
		return Bounded(today, EndOfDay(now)), nil
	case TenDays:
		return Bounded(today.AddDate(0, 0, -9), EndOfDay(now)), nil
	case ThisMonth:
		first := StartOfMonth(now)
		return Bounded(first, EndOfMonth(first)), nil
	case LastMonth:
		first := StartOfMonth(now).AddDate(0, -1, 0)
		return Bounded(first, EndOfMonth(first)), nil
	case Last3Month:
		first := StartOfMonth(now)
		return Bounded(first.AddDate(0, -3, 0), EndOfMonth(first.AddDate(0, -1, 0))), nil
	case MonthToDate:
		return Bounded(StartOfMonth(now), now), nil
	case ThreeMonthToDate:
		return Bounded(StartOfMonth(now).AddDate(0, -2, 0), now), nil
	case Custom:
		return resolveCustom(start, end, now.Location())
	default:
		return Range{}, nil
	}
}

func resolveCustom(start, end string, loc *time.Location) (Range, error) {
	if start == "" || end == "" {
		return Range{}, apperrors.WithMessage(apperrors.ErrInvalidRange, "Custom period requires both startDate and endDate")
	}

	from, _, err := parseBound(start, loc)
	if err != nil {
		return Range{}, apperrors.WithMessage(apperrors.ErrInvalidRange, "Invalid startDate: "+start)
	}
	to, dateOnly, err := parseBound(end, loc)
	if err != nil {
		return Range{}, apperrors.WithMessage(apperrors.ErrInvalidRange, "Invalid endDate: "+end)
	}
	if dateOnly {
		to = EndOfDay(to)
	}
	if to.Before(from) {
		return Range{}, apperrors.WithMessage(apperrors.ErrInvalidRange, "endDate is before startDate")
	}

	return Bounded(from, to), nil
}

// parseBound accepts an RFC 3339 instant or a YYYY-MM-DD date in loc.
func parseBound(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, false, nil
}

// ParseDate parses a single date or instant. A date-only value resolves to
// the start of that day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, _, err := parseBound(s, loc)
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidRange, "Invalid date: "+s)
	}
	return t, nil
}

// Week returns the Sunday-to-Saturday week containing anchor.
func Week(anchor time.Time) Range {
	sunday := StartOfDay(anchor).AddDate(0, 0, -int(anchor.Weekday()))
	return Bounded(sunday, EndOfDay(sunday.AddDate(0, 0, 6)))
}

// GoalWindow is the elapsed part of a goal: from the start of its first day
// up to now, capped at the deadline.
func GoalWindow(start, deadline, now time.Time) Range {
	end := now
	if deadline.Before(now) {
		end = deadline
	}
	return Bounded(StartOfDay(start), end)
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last millisecond of t's day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// StartOfMonth returns midnight on the first of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns the last millisecond of t's month.
func EndOfMonth(t time.Time) time.Time {
	return EndOfDay(StartOfMonth(t).AddDate(0, 1, -1))
}
