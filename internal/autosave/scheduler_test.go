package autosave

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock fires callbacks synchronously from Advance, in deadline order.
type fakeClock struct {
	now    time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	end := c.now + d
	for {
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && t.at <= end {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
		t := due[0]
		c.now = t.at
		t.fired = true
		t.f()
	}
	c.now = end
}

func (c *fakeClock) AdvanceTo(at time.Duration) { c.Advance(at - c.now) }

type flushCall struct {
	at      time.Duration
	trigger Trigger
	done    func(error)
}

type harness struct {
	clock   *fakeClock
	sched   *Scheduler
	flushes []flushCall
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clock: &fakeClock{}}
	logger, _ := test.NewNullLogger()
	h.sched = New(2*time.Second, h.clock, func(tr Trigger, done func(error)) {
		h.flushes = append(h.flushes, flushCall{at: h.clock.now, trigger: tr, done: done})
	}, logrus.NewEntry(logger))
	return h
}

func (h *harness) last() flushCall { return h.flushes[len(h.flushes)-1] }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestDebounce_CoalescesBurst(t *testing.T) {
	h := newHarness(t)
	for _, at := range []int{0, 500, 900} {
		h.clock.AdvanceTo(ms(at))
		h.sched.Mutated()
		assert.Equal(t, Scheduled, h.sched.State())
	}

	h.clock.AdvanceTo(ms(2899))
	assert.Empty(t, h.flushes)

	h.clock.AdvanceTo(ms(2900))
	require.Len(t, h.flushes, 1)
	assert.Equal(t, ms(2900), h.flushes[0].at)
	assert.Equal(t, Auto, h.flushes[0].trigger)
	assert.Equal(t, Flushing, h.sched.State())

	h.flushes[0].done(nil)
	assert.Equal(t, Idle, h.sched.State())

	h.clock.Advance(10 * time.Second)
	assert.Len(t, h.flushes, 1)
}

func TestSaveNow_CancelsPendingTimer(t *testing.T) {
	h := newHarness(t)
	h.sched.Mutated()
	h.clock.AdvanceTo(ms(1000))

	h.sched.SaveNow()
	require.Len(t, h.flushes, 1)
	assert.Equal(t, Manual, h.flushes[0].trigger)
	assert.Equal(t, ms(1000), h.flushes[0].at)
	assert.False(t, h.sched.Pending())

	h.flushes[0].done(nil)
	h.clock.Advance(10 * time.Second)
	assert.Len(t, h.flushes, 1, "cancelled timer never fires")
	assert.Equal(t, Idle, h.sched.State())
}

func TestTimerDuringFlight_DefersFollowup(t *testing.T) {
	h := newHarness(t)
	h.sched.Mutated()
	h.clock.AdvanceTo(ms(2000))
	require.Len(t, h.flushes, 1)

	h.clock.AdvanceTo(ms(2100))
	h.sched.Mutated()
	assert.Equal(t, Flushing, h.sched.State())

	h.clock.AdvanceTo(ms(4100))
	assert.Len(t, h.flushes, 1, "never two flushes in flight")
	assert.Equal(t, FlushingWithFollowup, h.sched.State())

	h.clock.AdvanceTo(ms(5000))
	h.flushes[0].done(nil)
	require.Len(t, h.flushes, 2)
	assert.Equal(t, Followup, h.flushes[1].trigger)
	assert.Equal(t, ms(5000), h.flushes[1].at)

	h.flushes[1].done(nil)
	assert.Equal(t, Idle, h.sched.State())
}

func TestMutationDuringFlight_TimerStillPending(t *testing.T) {
	h := newHarness(t)
	h.sched.Mutated()
	h.clock.AdvanceTo(ms(2000))
	require.Len(t, h.flushes, 1)

	h.clock.AdvanceTo(ms(2500))
	h.sched.Mutated()
	h.flushes[0].done(nil)
	assert.Equal(t, Scheduled, h.sched.State())

	h.clock.AdvanceTo(ms(4500))
	require.Len(t, h.flushes, 2)
	assert.Equal(t, Auto, h.flushes[1].trigger)
}

func TestManualFlight_DirtyGetsOneFollowup(t *testing.T) {
	h := newHarness(t)
	h.sched.SaveNow()
	require.Len(t, h.flushes, 1)

	h.sched.Mutated()
	h.sched.Mutated()
	h.flushes[0].done(nil)

	require.Len(t, h.flushes, 2)
	assert.Equal(t, Followup, h.flushes[1].trigger)
	assert.False(t, h.sched.Pending())

	h.flushes[1].done(nil)
	assert.Equal(t, Idle, h.sched.State())
	h.clock.Advance(10 * time.Second)
	assert.Len(t, h.flushes, 2)
}

func TestSaveNowDuringFlight_RunsAfterResolution(t *testing.T) {
	h := newHarness(t)
	h.sched.Mutated()
	h.clock.AdvanceTo(ms(2000))
	require.Len(t, h.flushes, 1)

	h.sched.SaveNow()
	assert.Equal(t, FlushingWithFollowup, h.sched.State())
	assert.Len(t, h.flushes, 1)

	h.flushes[0].done(errors.New("boom"))
	require.Len(t, h.flushes, 2)
	assert.Equal(t, Manual, h.flushes[1].trigger)
}

func TestFailedFlush_DoesNotRetry(t *testing.T) {
	h := newHarness(t)
	h.sched.Mutated()
	h.clock.AdvanceTo(ms(2000))
	h.last().done(errors.New("unreachable"))
	assert.Equal(t, Idle, h.sched.State())

	h.clock.Advance(time.Minute)
	assert.Len(t, h.flushes, 1)

	h.sched.Mutated()
	h.clock.Advance(2 * time.Second)
	assert.Len(t, h.flushes, 2, "the next mutation reschedules")
}

func TestStop_IgnoresLateEvents(t *testing.T) {
	h := newHarness(t)
	h.sched.Mutated()
	h.clock.AdvanceTo(ms(2000))
	h.sched.Mutated()

	h.sched.Stop()
	h.flushes[0].done(nil)
	h.clock.Advance(time.Minute)
	h.sched.Mutated()
	h.sched.SaveNow()

	assert.Len(t, h.flushes, 1)
	assert.Equal(t, Stopped, h.sched.State())
}

func TestDone_IdempotentAndStale(t *testing.T) {
	h := newHarness(t)
	h.sched.SaveNow()
	first := h.last()
	h.sched.SaveNow()
	first.done(nil)
	require.Len(t, h.flushes, 2)

	first.done(nil)
	assert.Equal(t, Flushing, h.sched.State(), "a repeated completion is ignored")
}
