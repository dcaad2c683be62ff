package timeline

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedgen/internal/model"
)

func newUTCMapper(t *testing.T) *Mapper {
	t.Helper()
	m, err := NewMapper(DefaultOrigin, time.UTC)
	require.NoError(t, err)
	return m
}

func at(day, hour, minute int) time.Time {
	return time.Date(1970, time.January, day, hour, minute, 0, 0, time.UTC)
}

func TestNewMapperRequiresMonday(t *testing.T) {
	_, err := NewMapper(time.Date(1970, time.January, 6, 0, 0, 0, 0, time.UTC), time.UTC)
	assert.Error(t, err)

	m := newUTCMapper(t)
	assert.Equal(t, at(5, 0, 0), m.Origin())
}

func TestOffset(t *testing.T) {
	m := newUTCMapper(t)

	tests := []struct {
		name string
		in   time.Time
		want int
	}{
		{"monday midnight", at(5, 0, 0), 0},
		{"monday 09:30", at(5, 9, 30), 570},
		{"wednesday 14:00", at(7, 14, 0), 2*1440 + 840},
		{"saturday 23:00", at(10, 23, 0), 5*1440 + 1380},
		{"sunday before the week", at(4, 9, 0), -1440 + 540},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.Offset(tc.in))
		})
	}
}

func TestTimeRoundTrip(t *testing.T) {
	m := newUTCMapper(t)
	for _, off := range []int{-1440, -900, 0, 570, 8580} {
		assert.Equal(t, off, m.Offset(m.Time(off)), "offset %d", off)
	}
	assert.Equal(t, at(4, 22, 0), m.Time(-120))
}

func TestSelect(t *testing.T) {
	m := newUTCMapper(t)

	got, err := m.Select(at(5, 9, 0), at(5, 10, 30))
	require.NoError(t, err)
	assert.Equal(t, model.Interval{Start: 540, End: 630}, got)

	got, err = m.Select(at(4, 8, 0), at(4, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, model.Interval{Start: -960, End: -900}, got)

	got, err = m.Select(at(10, 22, 0), at(11, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, model.Interval{Start: 5*1440 + 1320, End: 6 * 1440}, got, "following midnight closes saturday")

	got, err = m.Select(at(4, 23, 0), at(5, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, model.Interval{Start: -60, End: 0}, got)

	_, err = m.Select(at(5, 9, 0), at(5, 9, 0))
	assert.ErrorIs(t, err, ErrEmptyInterval)
}

func TestSelectStaysOnStartDay(t *testing.T) {
	m := newUTCMapper(t)

	// Monday 09:00 to Wednesday 10:00 keeps only Monday 09:00-10:00.
	got, err := m.Select(at(5, 9, 0), at(7, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, model.Interval{Start: 540, End: 600}, got)

	// An end earlier in the day than the start is inverted on the start day.
	_, err = m.Select(at(5, 15, 0), at(6, 9, 0))
	assert.ErrorIs(t, err, ErrEmptyInterval)

	// Midnight two days later is not the following midnight.
	_, err = m.Select(at(5, 9, 0), at(7, 0, 0))
	assert.ErrorIs(t, err, ErrEmptyInterval)
}

func TestTimeAcrossDSTChange(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Clocks jump forward on Sunday 2026-03-08, the day before this Monday.
	m, err := NewMapper(time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC), ny)
	require.NoError(t, err)

	for _, off := range []int{-1440, -1380, -900, -60, 0, 600, 8580} {
		assert.Equal(t, off, m.Offset(m.Time(off)), "offset %d", off)
	}
	assert.Equal(t, time.Date(2026, time.March, 8, 0, 0, 0, 0, ny), m.Time(-1440))
	assert.Equal(t, time.Date(2026, time.March, 8, 9, 0, 0, 0, ny), m.Time(-900))

	got, err := m.Select(time.Date(2026, time.March, 8, 9, 0, 0, 0, ny), time.Date(2026, time.March, 8, 10, 0, 0, 0, ny))
	require.NoError(t, err)
	assert.Equal(t, model.Interval{Start: -900, End: -840}, got)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(iv(-1440, -1380)))
	assert.NoError(t, Validate(iv(10000, 10079)))
	assert.ErrorIs(t, Validate(iv(-1441, 0)), ErrOutOfBounds)
	assert.ErrorIs(t, Validate(iv(10000, 10080)), ErrOutOfBounds)
	assert.ErrorIs(t, Validate(iv(60, 60)), ErrEmptyInterval)
	assert.ErrorIs(t, Validate(iv(90, 60)), ErrEmptyInterval)
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name string
		in   []model.Interval
		want []model.Interval
	}{
		{
			name: "empty",
			in:   nil,
			want: []model.Interval{},
		},
		{
			name: "sunday interval moves to the end of the week",
			in:   []model.Interval{iv(-120, -60)},
			want: []model.Interval{iv(9960, 10020)},
		},
		{
			name: "positive intervals untouched",
			in:   []model.Interval{iv(0, 60), iv(120, 180)},
			want: []model.Interval{iv(0, 60), iv(120, 180)},
		},
		{
			name: "result stays sorted",
			in:   []model.Interval{iv(-120, -60), iv(0, 60)},
			want: []model.Interval{iv(0, 60), iv(9960, 10020)},
		},
		{
			name: "straddling interval is split",
			in:   []model.Interval{iv(-60, 60)},
			want: []model.Interval{iv(0, 60), iv(10020, 10079)},
		},
		{
			name: "end clamped to last minute",
			in:   []model.Interval{iv(-60, 0)},
			want: []model.Interval{iv(10020, 10079)},
		},
		{
			name: "folded interval merges with end of week",
			in:   []model.Interval{iv(-1440, -1000), iv(9000, 9100)},
			want: []model.Interval{iv(8640, 9100)},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Wrap(tc.in)
			assert.Equal(t, tc.want, got)
			for _, w := range got {
				assert.GreaterOrEqual(t, w.Start, 0)
				assert.LessOrEqual(t, w.End, model.MaxOffset)
			}
		})
	}
}
