// Package projector turns schedule candidates and busy intervals into
// calendar events.
package projector

import (
	"schedgen/internal/model"
	"schedgen/internal/timeline"
)

// BusyColor is the fixed highlight used for busy intervals.
const BusyColor = "rgba(200, 0, 0, 0.5)"

// BusyTitle labels every busy-interval event.
const BusyTitle = "Busy"

// Projector expands schedules into flat event lists.
type Projector struct {
	mapper *timeline.Mapper
	colors *ColorCache
}

// New returns a Projector placing events on mapper's reference week and
// coloring them through colors.
func New(mapper *timeline.Mapper, colors *ColorCache) *Projector {
	return &Projector{mapper: mapper, colors: colors}
}

// sessionKind pairs a course's session list with the name of its section.
type sessionKind struct {
	sessions []model.Session
	name     string
}

func kinds(c model.Course) []sessionKind {
	return []sessionKind{
		{c.Lecture, c.LectureName},
		{c.Discussion, c.DiscussionName},
		{c.Lab, c.LabName},
	}
}

// Project returns one event per session occurrence of every course in s,
// ordered by course, then lecture, discussion, lab.
func (p *Projector) Project(s model.Schedule) []model.Event {
	events := make([]model.Event, 0)
	for _, course := range s {
		for _, k := range kinds(course) {
			for _, sess := range k.sessions {
				title := course.Title + " " + k.name + " "
				events = append(events, model.Event{
					Title:       title,
					Kind:        model.EventKindClass,
					Start:       p.mapper.Time(sess.Start),
					End:         p.mapper.Time(sess.End),
					StartOffset: sess.Start,
					EndOffset:   sess.End,
					Color:       p.colors.Color(title),
				})
			}
		}
	}
	return events
}

// Busy returns the events drawn for a selected interval set.
func (p *Projector) Busy(set []model.Interval) []model.Event {
	events := make([]model.Event, 0, len(set))
	for _, iv := range set {
		events = append(events, model.Event{
			Title:       BusyTitle,
			Kind:        model.EventKindBusy,
			Start:       p.mapper.Time(iv.Start),
			End:         p.mapper.Time(iv.End),
			StartOffset: iv.Start,
			EndOffset:   iv.End,
			Color:       BusyColor,
		})
	}
	return events
}
