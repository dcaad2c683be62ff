package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"schedgen/internal/model"
)

const (
	defaultTermWeeks = 15
	maxTermWeeks     = 60
)

// Term is the span a weekly schedule repeats over.
type Term struct {
	// Start is the first day of the term. Its time of day is ignored.
	Start time.Time
	// Weeks is the number of weeks covered, starting with the week that
	// contains Start.
	Weeks int
}

// weekStart returns Monday 00:00 of the week containing t, in t's location.
func weekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	back := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -back)
}

// Bounds returns the first moment of the term and the exclusive end of its
// last week.
func (t Term) Bounds() (time.Time, time.Time) {
	start := time.Date(t.Start.Year(), t.Start.Month(), t.Start.Day(), 0, 0, 0, 0, t.Start.Location())
	end := weekStart(start).AddDate(0, 0, 7*t.Weeks)
	return start, end
}

// Occurrence is one dated meeting of a weekly event.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// ExpandWeekly lists the dated meetings of a weekly event inside term. The
// event is placed by its minute offsets, so only its weekday and time of day
// matter. Meetings falling before Start in the first week are skipped.
func ExpandWeekly(ev model.Event, term Term) ([]Occurrence, error) {
	if term.Weeks <= 0 {
		term.Weeks = defaultTermWeeks
	}
	if term.Weeks > maxTermWeeks {
		return nil, fmt.Errorf("ics: term of %d weeks exceeds %d", term.Weeks, maxTermWeeks)
	}
	if ev.EndOffset <= ev.StartOffset {
		return nil, errors.New("ics: event has no duration")
	}

	termStart, termEnd := term.Bounds()
	first := weekStart(termStart).Add(time.Duration(ev.StartOffset) * time.Minute)
	for first.Before(termStart) {
		first = first.AddDate(0, 0, 7)
	}
	if !first.Before(termEnd) {
		return []Occurrence{}, nil
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.WEEKLY,
		Dtstart: first,
		Until:   termEnd.Add(-time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("ics: weekly rule: %w", err)
	}

	dur := time.Duration(ev.EndOffset-ev.StartOffset) * time.Minute
	starts := r.All()
	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		out = append(out, Occurrence{Start: s, End: s.Add(dur)})
	}
	return out, nil
}

// weeklyRule renders the RRULE value for count weekly repetitions.
func weeklyRule(count int) string {
	opt := rrule.ROption{
		Freq:  rrule.WEEKLY,
		Count: count,
	}
	return opt.String()
}
