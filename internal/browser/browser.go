// Package browser keeps the candidate schedules returned by the scheduling
// service and a cursor over them.
package browser

import "schedgen/internal/model"

// Browser is an ordered schedule set with a clamped cursor. The zero value
// is an empty browser.
type Browser struct {
	schedules []model.Schedule
	index     int
}

// Install replaces the schedule set and moves the cursor to the first entry.
func (b *Browser) Install(schedules []model.Schedule) {
	b.schedules = schedules
	b.index = 0
}

// Reset empties the browser.
func (b *Browser) Reset() {
	b.Install(nil)
}

// Previous moves back one schedule. It reports false at the first entry.
func (b *Browser) Previous() bool {
	if !b.CanPrevious() {
		return false
	}
	b.index--
	return true
}

// Next moves forward one schedule. It reports false at the last entry.
func (b *Browser) Next() bool {
	if !b.CanNext() {
		return false
	}
	b.index++
	return true
}

func (b *Browser) CanPrevious() bool { return b.index > 0 }
func (b *Browser) CanNext() bool     { return b.index < len(b.schedules)-1 }
func (b *Browser) Index() int        { return b.index }
func (b *Browser) Len() int          { return len(b.schedules) }

// Current returns the schedule under the cursor, if any.
func (b *Browser) Current() (model.Schedule, bool) {
	if len(b.schedules) == 0 {
		return nil, false
	}
	return b.schedules[b.index], true
}
