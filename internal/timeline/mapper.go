package timeline

import (
	"errors"
	"fmt"
	"time"

	"schedgen/internal/model"
)

var (
	// ErrOutOfBounds reports a selection outside [MinOffset, MaxOffset].
	ErrOutOfBounds = errors.New("timeline: selection out of bounds")
	// ErrEmptyInterval reports a zero-length or inverted selection.
	ErrEmptyInterval = errors.New("timeline: selection is empty or inverted")
)

// DefaultOrigin is Monday 1970-01-05, the reference week used by the UI.
var DefaultOrigin = time.Date(1970, time.January, 5, 0, 0, 0, 0, time.Local)

// Mapper converts between wall-clock points of the reference week and
// minute offsets from its Monday 00:00.
type Mapper struct {
	origin time.Time
}

// NewMapper returns a Mapper anchored at 00:00 in loc of the calendar date of
// origin, which must be a Monday. A nil loc means time.Local.
func NewMapper(origin time.Time, loc *time.Location) (*Mapper, error) {
	if loc == nil {
		loc = time.Local
	}
	o := time.Date(origin.Year(), origin.Month(), origin.Day(), 0, 0, 0, 0, loc)
	if o.Weekday() != time.Monday {
		return nil, fmt.Errorf("timeline: reference origin %s is a %s, want Monday", o.Format("2006-01-02"), o.Weekday())
	}
	return &Mapper{origin: o}, nil
}

// Origin returns the reference Monday 00:00.
func (m *Mapper) Origin() time.Time {
	return m.origin
}

// Location returns the display location of the reference week.
func (m *Mapper) Location() *time.Location {
	return m.origin.Location()
}

// Offset forward-maps a wall-clock point. Only weekday, hour and minute are
// used; Sunday maps to day -1 so a Sunday selection yields negative offsets.
func (m *Mapper) Offset(t time.Time) int {
	t = t.In(m.origin.Location())
	day := int(t.Weekday()) - 1
	return day*model.MinutesPerDay + minuteOfDay(t)
}

// Time reverse-maps a minute offset onto the reference week. It counts
// calendar days and wall-clock minutes, so a DST change inside the week does
// not shift later points.
func (m *Mapper) Time(offset int) time.Time {
	day := offset / model.MinutesPerDay
	if offset%model.MinutesPerDay < 0 {
		day--
	}
	minute := offset - day*model.MinutesPerDay
	o := m.origin
	return time.Date(o.Year(), o.Month(), o.Day()+day, 0, minute, 0, 0, o.Location())
}

// Select converts a drag selection into an interval. Both ends are placed on
// the day the selection starts: only the time of day of end is used, except
// that an end at the following midnight closes the start day. Selections
// outside the allowed offset range and empty or inverted ones are rejected.
func (m *Mapper) Select(start, end time.Time) (model.Interval, error) {
	loc := m.origin.Location()
	start, end = start.In(loc), end.In(loc)

	s := m.Offset(start)
	dayBase := s - minuteOfDay(start)
	e := dayBase + minuteOfDay(end)
	nextMidnight := time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, loc)
	if end.Equal(nextMidnight) {
		e = dayBase + model.MinutesPerDay
	}

	iv := model.Interval{Start: s, End: e}
	return iv, Validate(iv)
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Validate reports whether iv may enter a selected interval set.
func Validate(iv model.Interval) error {
	if iv.Start < model.MinOffset || iv.End > model.MaxOffset {
		return ErrOutOfBounds
	}
	if iv.Start >= iv.End {
		return ErrEmptyInterval
	}
	return nil
}

// Wrap folds the pre-Monday representation into the end of the week so every
// offset lies in [0, MaxOffset]. Intervals starting before the origin move
// forward one week; one straddling the origin is split in two. The result is
// merged again because a folded interval may meet one already at the end of
// the week.
func Wrap(set []model.Interval) []model.Interval {
	out := make([]model.Interval, 0, len(set)+1)
	for _, iv := range set {
		switch {
		case iv.Start >= 0:
			out = append(out, iv)
		case iv.End <= 0:
			out = append(out, model.Interval{
				Start: iv.Start + model.MinutesPerWeek,
				End:   iv.End + model.MinutesPerWeek,
			})
		default:
			out = append(out,
				model.Interval{Start: iv.Start + model.MinutesPerWeek, End: model.MinutesPerWeek},
				model.Interval{Start: 0, End: iv.End},
			)
		}
	}
	clamped := out[:0]
	for _, iv := range out {
		iv.End = min(iv.End, model.MaxOffset)
		if iv.Start < iv.End {
			clamped = append(clamped, iv)
		}
	}
	return Merge(clamped)
}
