package session

import (
	"slices"

	"schedgen/internal/model"
)

// Hint texts shown under the calendar.
const (
	HintSelect  = "Click and drag to indicate busy times. Click to remove busy times. Then, enter valid course names and click Generate Schedules."
	HintLoaded  = "Please clear the calendar to select new busy times."
	hintNothing = ""
)

// View is a consistent snapshot of a session for rendering.
type View struct {
	Query     string
	Intervals []model.Interval

	// Events holds busy events followed by the class events of the current
	// schedule.
	Events []model.Event

	// Schedule is the current schedule, nil when none is shown.
	Schedule model.Schedule
	Index    int
	Count    int

	Loaded      bool
	Loading     bool
	Error       string
	CanPrevious bool
	CanNext     bool

	// Selectable reports whether busy intervals may be drawn or removed.
	Selectable bool
	Hint       string
}

// View projects the current state. Colors for courses seen for the first
// time are assigned here.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	v := View{
		Query:       s.query,
		Intervals:   slices.Clone(s.intervals),
		Index:       s.browser.Index(),
		Count:       s.browser.Len(),
		Loaded:      s.loaded,
		Loading:     s.loading,
		Error:       s.errMsg,
		CanPrevious: s.browser.CanPrevious(),
		CanNext:     s.browser.CanNext(),
		Selectable:  !s.loaded,
	}

	v.Events = slices.Clone(s.busy)
	if cur, ok := s.browser.Current(); ok {
		v.Schedule = cur
		v.Events = append(v.Events, s.projector.Project(cur)...)
	}

	switch {
	case s.loaded:
		v.Hint = HintLoaded
	case v.Count == 0 && !s.loading && s.errMsg == "":
		v.Hint = HintSelect
	default:
		v.Hint = hintNothing
	}
	return v
}
