package ics

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedgen/internal/model"
)

func classEvent(title string, start, end int) model.Event {
	return model.Event{
		Title:       title,
		Kind:        model.EventKindClass,
		StartOffset: start,
		EndOffset:   end,
		Color:       "#3357FF",
	}
}

func TestTermBounds(t *testing.T) {
	// Wednesday
	term := Term{Start: time.Date(2026, time.August, 26, 15, 0, 0, 0, time.UTC), Weeks: 2}
	start, end := term.Bounds()
	assert.Equal(t, time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC), end)
}

func TestExpandWeekly(t *testing.T) {
	// Monday 2026-08-24
	term := Term{Start: time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC), Weeks: 3}

	occ, err := ExpandWeekly(classEvent("CS2110 LEC 001 ", 600, 675), term)
	require.NoError(t, err)
	require.Len(t, occ, 3)
	assert.WithinDuration(t, time.Date(2026, time.August, 24, 10, 0, 0, 0, time.UTC), occ[0].Start, 0)
	assert.WithinDuration(t, time.Date(2026, time.August, 24, 11, 15, 0, 0, time.UTC), occ[0].End, 0)
	assert.WithinDuration(t, time.Date(2026, time.September, 7, 10, 0, 0, 0, time.UTC), occ[2].Start, 0)
}

func TestExpandWeeklySkipsBeforeTermStart(t *testing.T) {
	// Term starts on a Wednesday; the Monday meeting of week one is skipped.
	term := Term{Start: time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC), Weeks: 3}

	occ, err := ExpandWeekly(classEvent("CS2110 LEC 001 ", 600, 675), term)
	require.NoError(t, err)
	require.Len(t, occ, 2)
	assert.WithinDuration(t, time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC), occ[0].Start, 0)

	// Friday meeting is still in week one.
	occ, err = ExpandWeekly(classEvent("CS2110 DIS 201 ", 4*1440+600, 4*1440+650), term)
	require.NoError(t, err)
	assert.Len(t, occ, 3)
}

func TestExpandWeeklyRejects(t *testing.T) {
	term := Term{Start: time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC), Weeks: 100}
	_, err := ExpandWeekly(classEvent("X", 0, 60), term)
	assert.Error(t, err)

	term.Weeks = 2
	_, err = ExpandWeekly(classEvent("X", 60, 60), term)
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	events := []model.Event{
		{Title: "Busy", Kind: model.EventKindBusy, StartOffset: 0, EndOffset: 60},
		classEvent("CS2110 LEC 001 ", 600, 675),
		classEvent("CS2110 LEC 001 ", 3480, 3555),
		classEvent("MATH1920 DIS 202 ", 1500, 1550),
	}
	opts := ExportOptions{
		Term: Term{Start: time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC), Weeks: 14},
		Now:  time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
		Name: "Schedule 1 of 3",
	}

	out, err := Export(events, opts)
	require.NoError(t, err)

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)

	vevents := cal.Events()
	require.Len(t, vevents, 3, "busy events are not exported")

	first := vevents[0]
	assert.Equal(t, "CS2110 LEC 001", strings.TrimSpace(first.GetProperty(ical.ComponentPropertySummary).Value))
	rule := first.GetProperty(ical.ComponentPropertyRrule).Value
	assert.Contains(t, rule, "FREQ=WEEKLY")
	assert.Contains(t, rule, "COUNT=14")

	start, err := first.GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2026, time.August, 24, 10, 0, 0, 0, time.UTC)))

	assert.NotEqual(t,
		first.GetProperty(ical.ComponentPropertyUniqueId).Value,
		vevents[1].GetProperty(ical.ComponentPropertyUniqueId).Value,
	)
}

func TestExportStableUIDs(t *testing.T) {
	ev := classEvent("CS2110 LEC 001 ", 600, 675)
	assert.Equal(t, eventUID(ev), eventUID(ev))
	assert.True(t, strings.HasSuffix(eventUID(ev), "@schedgen"))
}

func TestExportRequiresTermStart(t *testing.T) {
	_, err := Export([]model.Event{classEvent("X", 0, 60)}, ExportOptions{})
	assert.Error(t, err)
}
