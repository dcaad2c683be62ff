// Package session holds the state of one schedule-browsing session: the
// selected busy intervals, the schedules returned by the scheduling service,
// and the colors assigned to courses.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	appLog "schedgen/internal/log"
	"schedgen/internal/browser"
	"schedgen/internal/model"
	"schedgen/internal/projector"
	"schedgen/internal/solver"
	"schedgen/internal/timeline"
)

// User-facing messages for transport failures.
const (
	MsgServerDown  = "Server is down. Please try again later."
	MsgFetchFailed = "Failed to fetch schedules from server."
)

// Keys understood by HandleKey.
const (
	KeySubmit   = "Enter"
	KeyPrevious = "ArrowLeft"
	KeyNext     = "ArrowRight"
)

var (
	// ErrSchedulesLoaded reports an interval edit attempted while schedule
	// results are shown; the calendar must be cleared first.
	ErrSchedulesLoaded = errors.New("session: schedules loaded, clear the calendar first")
	// ErrSubmitInFlight reports a submission while another is outstanding.
	ErrSubmitInFlight = errors.New("session: a submission is already in flight")
	// ErrStaleResponse reports a response discarded because the session was
	// cleared or resubmitted while it was outstanding.
	ErrStaleResponse = errors.New("session: response superseded")
)

// Generator is the remote scheduling service.
type Generator interface {
	Generate(ctx context.Context, body string) ([]model.Schedule, error)
}

// Session is safe for concurrent use.
type Session struct {
	mapper    *timeline.Mapper
	projector *projector.Projector
	gen       Generator

	mu sync.Mutex

	query     string
	intervals []model.Interval
	busy      []model.Event

	browser browser.Browser
	loaded  bool
	loading bool
	errMsg  string

	// token identifies the current submission; responses carrying an older
	// token are dropped.
	token uint64

	lastSeen time.Time
}

// New returns an empty session. colors is owned by the session from here on.
func New(mapper *timeline.Mapper, colors *projector.ColorCache, gen Generator) *Session {
	return &Session{
		mapper:    mapper,
		projector: projector.New(mapper, colors),
		gen:       gen,
		intervals: []model.Interval{},
		busy:      []model.Event{},
		lastSeen:  time.Now(),
	}
}

// setIntervals replaces the interval set and its events together. Callers
// hold s.mu.
func (s *Session) setIntervals(set []model.Interval) {
	s.intervals = set
	s.busy = s.projector.Busy(set)
}

// SelectSlot adds a drag-selected busy interval. Out-of-bounds and empty
// selections are discarded with a diagnostic and reported as an error.
func (s *Session) SelectSlot(start, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.loaded {
		return ErrSchedulesLoaded
	}
	iv, err := s.mapper.Select(start, end)
	if err != nil {
		appLog.Warn("selected time discarded", "start", iv.Start, "end", iv.End, "reason", err.Error())
		return err
	}
	s.setIntervals(timeline.Merge(s.intervals, iv))
	appLog.Debug("busy interval added", "start", iv.Start, "end", iv.End, "interval_count", len(s.intervals))
	return nil
}

// AddInterval adds a busy interval given directly as minute offsets.
func (s *Session) AddInterval(iv model.Interval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.loaded {
		return ErrSchedulesLoaded
	}
	if err := timeline.Validate(iv); err != nil {
		appLog.Warn("interval discarded", "start", iv.Start, "end", iv.End, "reason", err.Error())
		return err
	}
	s.setIntervals(timeline.Merge(s.intervals, iv))
	return nil
}

// RemoveInterval drops the busy interval with exactly these bounds. It
// reports whether one was removed.
func (s *Session) RemoveInterval(iv model.Interval) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.loaded {
		return false, ErrSchedulesLoaded
	}
	next := timeline.Remove(s.intervals, iv)
	if len(next) == len(s.intervals) {
		return false, nil
	}
	s.setIntervals(next)
	return true, nil
}

// SetQuery stores the free-text course query used by keyboard submission.
func (s *Session) SetQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.query = q
}

// Submit sends the busy intervals and query to the scheduling service and
// installs the result. Only one submission runs at a time. A whitespace-only
// query is a no-op returning solver.ErrEmptyQuery.
//
// Service and transport failures are recorded as the session error message
// and also returned.
func (s *Session) Submit(ctx context.Context, query string) error {
	s.mu.Lock()
	s.touch()
	s.query = query

	body, err := solver.Encode(s.intervals, query)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.loading {
		s.mu.Unlock()
		return ErrSubmitInFlight
	}

	s.loading = true
	s.errMsg = ""
	s.browser.Reset()
	s.token++
	token := s.token
	s.mu.Unlock()

	schedules, genErr := s.gen.Generate(ctx, body)

	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.token {
		appLog.Info("discarding stale schedule response", "token", token, "current", s.token)
		return ErrStaleResponse
	}
	s.loading = false

	if genErr != nil {
		s.browser.Reset()
		s.errMsg = userMessage(genErr)
		appLog.Error("schedule submission failed", genErr, "body", body)
		return genErr
	}

	s.browser.Install(schedules)
	s.loaded = true
	s.errMsg = ""
	appLog.Info("schedules installed", "count", len(schedules))
	return nil
}

// userMessage maps a Generate error to the text shown to the user.
func userMessage(err error) string {
	var svcErr *solver.ServiceError
	switch {
	case errors.As(err, &svcErr):
		return svcErr.Message
	case errors.Is(err, solver.ErrServiceUnreachable):
		return MsgServerDown
	default:
		return MsgFetchFailed
	}
}

// Previous moves to the previous schedule; false at the first one.
func (s *Session) Previous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.browser.Previous()
}

// Next moves to the next schedule; false at the last one.
func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.browser.Next()
}

// Clear resets the calendar: busy intervals, schedules and cursor. An
// outstanding submission is invalidated. The last error message is kept.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.setIntervals([]model.Interval{})
	s.browser.Reset()
	s.loaded = false
	s.loading = false
	s.token++
}

// HandleKey dispatches a keyboard shortcut against the current state. It
// reports whether the key is bound.
func (s *Session) HandleKey(ctx context.Context, key string) (bool, error) {
	switch key {
	case KeySubmit:
		s.mu.Lock()
		q := s.query
		s.mu.Unlock()
		return true, s.Submit(ctx, q)
	case KeyPrevious:
		s.Previous()
		return true, nil
	case KeyNext:
		s.Next()
		return true, nil
	default:
		return false, nil
	}
}

func (s *Session) touch() {
	s.lastSeen = time.Now()
}

// IdleSince reports when the session was last used.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
