// Package autosave debounces document mutations into flushes against the
// persistence endpoint, keeping at most one flush in flight.
package autosave

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultDelay is the idle window after the last mutation.
const DefaultDelay = 2 * time.Second

// State of the scheduler.
type State int

const (
	// Idle: nothing pending, nothing in flight.
	Idle State = iota
	// Scheduled: the debounce timer is running.
	Scheduled
	// Flushing: one flush is in flight. A debounce timer may be running for
	// mutations made since it started.
	Flushing
	// FlushingWithFollowup: one flush is in flight and another is due the
	// moment it resolves.
	FlushingWithFollowup
	// Stopped: torn down; every event is ignored.
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Flushing:
		return "flushing"
	case FlushingWithFollowup:
		return "flushing_with_followup"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Trigger says why a flush started.
type Trigger int

const (
	Auto Trigger = iota
	Manual
	Followup
)

func (t Trigger) String() string {
	switch t {
	case Manual:
		return "manual"
	case Followup:
		return "followup"
	}
	return "auto"
}

// FlushFunc starts one flush of the latest document snapshot. It must call
// done exactly once when the flush resolves; extra calls are ignored. done
// must be invoked on the same event sequence that drives the Scheduler.
type FlushFunc func(trigger Trigger, done func(err error))

// Scheduler is the debounce state machine. It is driven from a single event
// sequence and needs no locking: Mutated, SaveNow, Stop, timer callbacks and
// flush completions must all run on that sequence.
type Scheduler struct {
	delay time.Duration
	clock Clock
	flush FlushFunc
	log   *logrus.Entry

	state State
	timer Timer
	// gen invalidates timer callbacks that fire after being replaced.
	gen uint64
	// flight identifies the in-flight flush.
	flight uint64
	// manual is set when the in-flight flush was a manual save.
	manual bool
	// dirty is set when the document changed after the in-flight flush began.
	dirty bool
	// followupManual is set when a manual save was requested mid-flight.
	followupManual bool
}

// New returns an idle scheduler. A zero delay uses DefaultDelay.
func New(delay time.Duration, clock Clock, flush FlushFunc, log *logrus.Entry) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{delay: delay, clock: clock, flush: flush, log: log.WithField("component", "autosave")}
}

func (s *Scheduler) State() State { return s.state }

// Pending reports whether a debounce timer is running.
func (s *Scheduler) Pending() bool { return s.timer != nil }

// Mutated records a document mutation and restarts the idle window.
func (s *Scheduler) Mutated() {
	switch s.state {
	case Idle, Scheduled:
		s.arm()
		s.state = Scheduled
	case Flushing:
		s.dirty = true
		s.arm()
	case FlushingWithFollowup:
		// the follow-up reads the snapshot when it starts
		s.dirty = true
	}
}

// SaveNow flushes immediately, cancelling any pending timer. A flush already
// in flight is not cancelled; the requested save runs as soon as it resolves.
func (s *Scheduler) SaveNow() {
	switch s.state {
	case Idle, Scheduled:
		s.disarm()
		s.start(Manual)
	case Flushing, FlushingWithFollowup:
		s.disarm()
		s.followupManual = true
		s.state = FlushingWithFollowup
	}
}

// Stop tears the scheduler down. Pending timers are cancelled and a flush
// that resolves later is ignored.
func (s *Scheduler) Stop() {
	s.disarm()
	s.state = Stopped
}

func (s *Scheduler) arm() {
	s.disarm()
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.delay, func() { s.fire(gen) })
}

func (s *Scheduler) disarm() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Scheduler) fire(gen uint64) {
	if gen != s.gen {
		return
	}
	s.timer = nil
	switch s.state {
	case Scheduled:
		s.start(Auto)
	case Flushing:
		s.state = FlushingWithFollowup
	}
}

func (s *Scheduler) start(trigger Trigger) {
	s.flight++
	flight := s.flight
	s.state = Flushing
	s.manual = trigger == Manual
	s.dirty = false
	s.followupManual = false
	s.log.WithFields(logrus.Fields{"trigger": trigger, "flight": flight}).Debug("autosave: flush start")

	var resolved bool
	s.flush(trigger, func(err error) {
		if resolved {
			return
		}
		resolved = true
		s.complete(flight, err)
	})
}

func (s *Scheduler) complete(flight uint64, err error) {
	if s.state == Stopped || flight != s.flight {
		return
	}
	entry := s.log.WithField("flight", flight)
	if err != nil {
		entry.WithError(err).Warn("autosave: flush failed")
	} else {
		entry.Debug("autosave: flush done")
	}

	switch {
	case s.state == FlushingWithFollowup:
		trigger := Followup
		if s.followupManual {
			trigger = Manual
		}
		s.disarm()
		s.start(trigger)
	case s.manual && s.dirty:
		s.disarm()
		s.start(Followup)
	case s.timer != nil:
		s.state = Scheduled
	default:
		s.state = Idle
	}
}
