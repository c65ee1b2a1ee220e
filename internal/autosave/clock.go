package autosave

import "time"

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Implementations must deliver f on the event
// sequence that drives the Scheduler.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// PostClock runs timer callbacks through post, which hands them to the
// owner's event loop.
type PostClock struct {
	Post func(func())
}

func (c PostClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() { c.Post(f) })
}
