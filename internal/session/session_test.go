package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedgen/internal/model"
	"schedgen/internal/projector"
	"schedgen/internal/solver"
	"schedgen/internal/timeline"
)

// generatorStub records request bodies and answers with a canned result.
// When gate is set, Generate blocks until it is closed.
type generatorStub struct {
	mu        sync.Mutex
	bodies    []string
	schedules []model.Schedule
	err       error
	gate      chan struct{}
	started   chan struct{}
}

func (g *generatorStub) Generate(ctx context.Context, body string) ([]model.Schedule, error) {
	g.mu.Lock()
	g.bodies = append(g.bodies, body)
	gate, started := g.gate, g.started
	g.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return g.schedules, g.err
}

func (g *generatorStub) calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.bodies...)
}

func newSession(t *testing.T, gen Generator) *Session {
	t.Helper()
	m, err := timeline.NewMapper(timeline.DefaultOrigin, time.UTC)
	require.NoError(t, err)
	return New(m, projector.NewColorCache(nil, rand.New(rand.NewSource(1))), gen)
}

func at(day, hour, minute int) time.Time {
	return time.Date(1970, time.January, day, hour, minute, 0, 0, time.UTC)
}

func threeSchedules() []model.Schedule {
	out := make([]model.Schedule, 3)
	for i := range out {
		out[i] = model.Schedule{{
			Title:          "CS101",
			Lecture:        []model.Session{{Start: 600 + i*60, End: 650 + i*60}, {Start: 3480, End: 3530}},
			Discussion:     []model.Session{{Start: 1500, End: 1550}},
			LectureName:    fmt.Sprintf("LEC %d", i+1),
			DiscussionName: "DIS 1",
		}}
	}
	return out
}

func TestSelectSlotMergesAndProjects(t *testing.T) {
	s := newSession(t, &generatorStub{})

	require.NoError(t, s.SelectSlot(at(5, 9, 0), at(5, 10, 0)))
	require.NoError(t, s.SelectSlot(at(5, 9, 30), at(5, 11, 0)))
	require.NoError(t, s.SelectSlot(at(4, 20, 0), at(4, 21, 0)))

	v := s.View()
	assert.Equal(t, []model.Interval{{Start: -240, End: -180}, {Start: 540, End: 660}}, v.Intervals)
	require.Len(t, v.Events, 2)
	assert.Equal(t, model.EventKindBusy, v.Events[1].Kind)
	assert.Equal(t, at(5, 9, 0), v.Events[1].Start)
	assert.Equal(t, at(5, 11, 0), v.Events[1].End)
	assert.True(t, v.Selectable)
	assert.Equal(t, HintSelect, v.Hint)
}

func TestSelectSlotRejectsEmpty(t *testing.T) {
	s := newSession(t, &generatorStub{})

	assert.ErrorIs(t, s.SelectSlot(at(5, 9, 0), at(5, 9, 0)), timeline.ErrEmptyInterval)
	assert.ErrorIs(t, s.SelectSlot(at(5, 15, 0), at(6, 9, 0)), timeline.ErrEmptyInterval)
	assert.Empty(t, s.View().Intervals)
}

func TestSelectSlotAcrossDaysKeepsStartDay(t *testing.T) {
	s := newSession(t, &generatorStub{})

	require.NoError(t, s.SelectSlot(at(5, 9, 0), at(7, 10, 0)))
	require.NoError(t, s.SelectSlot(at(10, 22, 0), at(11, 0, 0)))

	v := s.View()
	assert.Equal(t, []model.Interval{{Start: 540, End: 600}, {Start: 8520, End: 8640}}, v.Intervals)
	require.Len(t, v.Events, 2)
	assert.Equal(t, at(5, 9, 0), v.Events[0].Start)
	assert.Equal(t, at(5, 10, 0), v.Events[0].End)
	assert.Equal(t, at(11, 0, 0), v.Events[1].End)
}

func TestAddIntervalOutOfBounds(t *testing.T) {
	s := newSession(t, &generatorStub{})

	assert.ErrorIs(t, s.AddInterval(model.Interval{Start: -2000, End: 0}), timeline.ErrOutOfBounds)
	assert.ErrorIs(t, s.AddInterval(model.Interval{Start: 10000, End: 10100}), timeline.ErrOutOfBounds)
	assert.Empty(t, s.View().Intervals)
}

func TestRemoveInterval(t *testing.T) {
	s := newSession(t, &generatorStub{})
	require.NoError(t, s.AddInterval(model.Interval{Start: 0, End: 60}))
	require.NoError(t, s.AddInterval(model.Interval{Start: 120, End: 180}))

	removed, err := s.RemoveInterval(model.Interval{Start: 0, End: 60})
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.RemoveInterval(model.Interval{Start: 0, End: 60})
	require.NoError(t, err)
	assert.False(t, removed)

	v := s.View()
	assert.Equal(t, []model.Interval{{Start: 120, End: 180}}, v.Intervals)
	assert.Len(t, v.Events, 1)
}

func TestSubmitEmptyQueryIsNoop(t *testing.T) {
	gen := &generatorStub{}
	s := newSession(t, gen)

	assert.ErrorIs(t, s.Submit(context.Background(), "   "), solver.ErrEmptyQuery)
	assert.Empty(t, gen.calls())
	assert.False(t, s.View().Loading)
}

func TestSubmitDefaultBody(t *testing.T) {
	gen := &generatorStub{schedules: threeSchedules()}
	s := newSession(t, gen)

	require.NoError(t, s.Submit(context.Background(), "CS101"))
	assert.Equal(t, []string{"default CS101"}, gen.calls())
}

func TestSubmitWrapsSundayIntervals(t *testing.T) {
	gen := &generatorStub{schedules: []model.Schedule{}}
	s := newSession(t, gen)
	require.NoError(t, s.AddInterval(model.Interval{Start: -120, End: -60}))
	require.NoError(t, s.AddInterval(model.Interval{Start: 0, End: 60}))

	require.NoError(t, s.Submit(context.Background(), " CS2110 MATH1920 "))
	assert.Equal(t, []string{"0,60;9960,10020 CS2110 MATH1920"}, gen.calls())

	v := s.View()
	assert.Equal(t, []model.Interval{{Start: -120, End: -60}, {Start: 0, End: 60}}, v.Intervals, "stored set keeps the sunday form")
}

func TestSubmitThreeSchedulesAndBrowse(t *testing.T) {
	s := newSession(t, &generatorStub{schedules: threeSchedules()})
	require.NoError(t, s.AddInterval(model.Interval{Start: 0, End: 60}))

	require.NoError(t, s.Submit(context.Background(), "CS101"))

	v := s.View()
	assert.True(t, v.Loaded)
	assert.False(t, v.Loading)
	assert.Equal(t, 0, v.Index)
	assert.Equal(t, 3, v.Count)
	assert.False(t, v.CanPrevious)
	assert.True(t, v.CanNext)
	assert.False(t, v.Selectable)
	assert.Equal(t, HintLoaded, v.Hint)

	// one busy event plus three class events
	require.Len(t, v.Events, 4)
	classColor := v.Events[1].Color
	for _, ev := range v.Events[1:] {
		assert.Equal(t, model.EventKindClass, ev.Kind)
		assert.Equal(t, classColor, ev.Color)
	}

	assert.False(t, s.Previous(), "previous from index 0 is rejected")
	assert.True(t, s.Next())
	assert.True(t, s.Next())
	assert.False(t, s.Next(), "next from index 2 is rejected")

	v = s.View()
	assert.Equal(t, 2, v.Index)
	assert.Equal(t, "LEC 3", v.Schedule[0].LectureName)
	assert.Equal(t, classColor, v.Events[1].Color, "course keeps its color across navigation")

	assert.ErrorIs(t, s.AddInterval(model.Interval{Start: 200, End: 300}), ErrSchedulesLoaded)
	_, err := s.RemoveInterval(model.Interval{Start: 0, End: 60})
	assert.ErrorIs(t, err, ErrSchedulesLoaded)
}

func TestSubmitResetsIndex(t *testing.T) {
	s := newSession(t, &generatorStub{schedules: threeSchedules()})
	require.NoError(t, s.Submit(context.Background(), "CS101"))
	s.Next()
	s.Next()

	require.NoError(t, s.Submit(context.Background(), "CS101"))
	assert.Equal(t, 0, s.View().Index)
}

func TestSubmitServiceError(t *testing.T) {
	gen := &generatorStub{schedules: threeSchedules()}
	s := newSession(t, gen)
	require.NoError(t, s.AddInterval(model.Interval{Start: 0, End: 60}))
	require.NoError(t, s.Submit(context.Background(), "CS101"))

	gen.schedules = nil
	gen.err = &solver.ServiceError{Message: "No valid schedules found"}
	err := s.Submit(context.Background(), "CS101 CS102")
	require.Error(t, err)

	v := s.View()
	assert.Equal(t, "No valid schedules found", v.Error)
	assert.Equal(t, 0, v.Count)
	assert.Nil(t, v.Schedule)
	assert.False(t, v.Loading)
	assert.Equal(t, []model.Interval{{Start: 0, End: 60}}, v.Intervals, "busy intervals survive errors")
}

func TestSubmitTransportErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unreachable", fmt.Errorf("%w: dial tcp: connection refused", solver.ErrServiceUnreachable), MsgServerDown},
		{"garbled", fmt.Errorf("%w: unexpected response", solver.ErrFetchFailed), MsgFetchFailed},
		{"other", errors.New("boom"), MsgFetchFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newSession(t, &generatorStub{err: tc.err})
			assert.Error(t, s.Submit(context.Background(), "CS101"))

			v := s.View()
			assert.Equal(t, tc.want, v.Error)
			assert.False(t, v.Loading)
		})
	}
}

func TestSubmitSuccessClearsError(t *testing.T) {
	gen := &generatorStub{err: &solver.ServiceError{Message: "unknown course CS9999"}}
	s := newSession(t, gen)
	assert.Error(t, s.Submit(context.Background(), "CS9999"))
	assert.Equal(t, "unknown course CS9999", s.View().Error)

	gen.err = nil
	gen.schedules = threeSchedules()
	require.NoError(t, s.Submit(context.Background(), "CS101"))
	assert.Empty(t, s.View().Error)
}

func TestSubmitSingleFlight(t *testing.T) {
	gen := &generatorStub{
		schedules: threeSchedules(),
		gate:      make(chan struct{}),
		started:   make(chan struct{}, 1),
	}
	s := newSession(t, gen)

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "CS101") }()
	<-gen.started

	assert.True(t, s.View().Loading)
	assert.ErrorIs(t, s.Submit(context.Background(), "CS102"), ErrSubmitInFlight)

	close(gen.gate)
	require.NoError(t, <-done)
	assert.Len(t, gen.calls(), 1)
	assert.Equal(t, 3, s.View().Count)
}

func TestClearDiscardsInFlightResponse(t *testing.T) {
	gen := &generatorStub{
		schedules: threeSchedules(),
		gate:      make(chan struct{}),
		started:   make(chan struct{}, 1),
	}
	s := newSession(t, gen)
	require.NoError(t, s.AddInterval(model.Interval{Start: 0, End: 60}))

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "CS101") }()
	<-gen.started

	s.Clear()
	close(gen.gate)
	assert.ErrorIs(t, <-done, ErrStaleResponse)

	v := s.View()
	assert.False(t, v.Loaded)
	assert.False(t, v.Loading)
	assert.Equal(t, 0, v.Count)
	assert.Empty(t, v.Intervals)
	assert.Empty(t, v.Events)
}

func TestClear(t *testing.T) {
	s := newSession(t, &generatorStub{schedules: threeSchedules()})
	require.NoError(t, s.AddInterval(model.Interval{Start: 0, End: 60}))
	require.NoError(t, s.Submit(context.Background(), "CS101"))
	s.Next()

	s.Clear()

	v := s.View()
	assert.False(t, v.Loaded)
	assert.Equal(t, 0, v.Index)
	assert.Equal(t, 0, v.Count)
	assert.Empty(t, v.Intervals)
	assert.True(t, v.Selectable)
	require.NoError(t, s.AddInterval(model.Interval{Start: 200, End: 300}))
}

func TestHandleKey(t *testing.T) {
	gen := &generatorStub{schedules: threeSchedules()}
	s := newSession(t, gen)
	ctx := context.Background()

	s.SetQuery("  ")
	bound, err := s.HandleKey(ctx, KeySubmit)
	assert.True(t, bound)
	assert.ErrorIs(t, err, solver.ErrEmptyQuery)

	s.SetQuery("CS101")
	_, err = s.HandleKey(ctx, KeySubmit)
	require.NoError(t, err)
	assert.Equal(t, []string{"default CS101"}, gen.calls())

	_, _ = s.HandleKey(ctx, KeyNext)
	_, _ = s.HandleKey(ctx, KeyNext)
	_, _ = s.HandleKey(ctx, KeyNext)
	assert.Equal(t, 2, s.View().Index)

	_, _ = s.HandleKey(ctx, KeyPrevious)
	assert.Equal(t, 1, s.View().Index)

	bound, err = s.HandleKey(ctx, "Escape")
	assert.False(t, bound)
	assert.NoError(t, err)
	assert.Len(t, gen.calls(), 1)
}
