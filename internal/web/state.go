package web

import (
	"fmt"
	"net/http"
	"time"

	"schedgen/internal/model"
	"schedgen/internal/session"
)

// eventStyle mirrors the inline style the page applies to one event block.
type eventStyle struct {
	BackgroundColor string  `json:"background_color"`
	BorderRadius    string  `json:"border_radius"`
	Opacity         float64 `json:"opacity"`
}

type eventDTO struct {
	Title       string          `json:"title"`
	Kind        model.EventKind `json:"kind"`
	Start       string          `json:"start"`
	End         string          `json:"end"`
	StartOffset int             `json:"start_offset"`
	EndOffset   int             `json:"end_offset"`
	Style       eventStyle      `json:"style"`
}

type dayDTO struct {
	Date  string `json:"date"`
	Label string `json:"label"`
}

// weekDTO describes the grid the page draws: Sunday-first columns and the
// visible hour window.
type weekDTO struct {
	Days         []dayDTO `json:"days"`
	DayStartHour int      `json:"day_start_hour"`
	DayEndHour   int      `json:"day_end_hour"`
}

type stateResponse struct {
	Query     string           `json:"query"`
	Intervals []model.Interval `json:"intervals"`
	Events    []eventDTO       `json:"events"`

	Index   int    `json:"index"`
	Count   int    `json:"count"`
	Heading string `json:"heading,omitempty"`

	Loaded      bool   `json:"loaded"`
	Loading     bool   `json:"loading"`
	Message     string `json:"message,omitempty"`
	CanPrevious bool   `json:"can_prev"`
	CanNext     bool   `json:"can_next"`
	Selectable  bool   `json:"selectable"`
	Hint        string `json:"hint,omitempty"`

	Week weekDTO `json:"week"`
}

func styleFor(ev model.Event) eventStyle {
	if ev.Kind == model.EventKindBusy {
		return eventStyle{BackgroundColor: ev.Color, BorderRadius: "0px", Opacity: 0.8}
	}
	return eventStyle{BackgroundColor: ev.Color, BorderRadius: "4px", Opacity: 0.9}
}

// heading is the "Schedule i of n" caption, empty when nothing is shown.
func heading(v session.View) string {
	if v.Count == 0 || v.Loading {
		return ""
	}
	return fmt.Sprintf("Schedule %d of %d", v.Index+1, v.Count)
}

func (s *Server) week() weekDTO {
	// The grid starts on the Sunday before the reference Monday.
	sunday := s.mapper.Origin().AddDate(0, 0, -1)
	days := make([]dayDTO, 0, 7)
	for i := 0; i < 7; i++ {
		d := sunday.AddDate(0, 0, i)
		days = append(days, dayDTO{
			Date:  d.Format("2006-01-02"),
			Label: d.Weekday().String(),
		})
	}
	return weekDTO{
		Days:         days,
		DayStartHour: s.cfg.DayStartHour,
		DayEndHour:   s.cfg.DayEndHour,
	}
}

func (s *Server) buildState(v session.View) stateResponse {
	events := make([]eventDTO, 0, len(v.Events))
	for _, ev := range v.Events {
		events = append(events, eventDTO{
			Title:       ev.Title,
			Kind:        ev.Kind,
			Start:       wallClock(ev.Start),
			End:         wallClock(ev.End),
			StartOffset: ev.StartOffset,
			EndOffset:   ev.EndOffset,
			Style:       styleFor(ev),
		})
	}

	return stateResponse{
		Query:       v.Query,
		Intervals:   v.Intervals,
		Events:      events,
		Index:       v.Index,
		Count:       v.Count,
		Heading:     heading(v),
		Loaded:      v.Loaded,
		Loading:     v.Loading,
		Message:     v.Error,
		CanPrevious: v.CanPrevious,
		CanNext:     v.CanNext,
		Selectable:  v.Selectable,
		Hint:        v.Hint,
		Week:        s.week(),
	}
}

func (s *Server) writeState(w http.ResponseWriter, status int, sess *session.Session) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, s.buildState(sess.View()))
}

// wallClock formats t the way the page sends selections back.
func wallClock(t time.Time) string {
	return t.Format(wallClockLayout)
}
