package model

import "time"

// Minute-offset conventions shared by every package. Offsets count minutes
// from Monday 00:00 of the reference week.
const (
	MinutesPerDay  = 1440
	MinutesPerWeek = 7 * MinutesPerDay // 10080

	// MinOffset allows a selection on the Sunday preceding the week start.
	MinOffset = -MinutesPerDay
	// MaxOffset is the last minute of the week.
	MaxOffset = MinutesPerWeek - 1
)

// Interval is a busy time block drawn by the user.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Session is one weekly meeting of a course section, as returned by the
// scheduling service.
type Session struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Course is a single course inside a schedule candidate. Each session kind
// may be absent; the *Name fields label the chosen section of that kind.
type Course struct {
	Title string `json:"title"`

	Lecture    []Session `json:"lecture,omitempty"`
	Discussion []Session `json:"discussion,omitempty"`
	Lab        []Session `json:"lab,omitempty"`

	LectureName    string `json:"lecture_name,omitempty"`
	DiscussionName string `json:"discussion_name,omitempty"`
	LabName        string `json:"lab_name,omitempty"`
}

// Schedule is one complete, non-conflicting weekly timetable candidate.
type Schedule []Course

// EventKind distinguishes user busy blocks from class sessions.
type EventKind string

const (
	EventKindBusy  EventKind = "busy"
	EventKindClass EventKind = "class"
)

// Event is a displayable calendar block.
type Event struct {
	Title string
	Kind  EventKind

	// Start / End are wall-clock points in the reference week.
	Start time.Time
	End   time.Time

	// StartOffset / EndOffset are the minute offsets Start / End were
	// derived from. Busy events are removed by these values.
	StartOffset int
	EndOffset   int

	// Color is a CSS color value.
	Color string
}
