package drag

import "time"

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports false if the callback has
	// already run or been stopped.
	Stop() bool
}

// Scheduler runs delayed callbacks and tells the time.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (wallClock) Now() time.Time {
	return time.Now()
}

// WallClock is the Scheduler backed by the time package.
func WallClock() Scheduler {
	return wallClock{}
}
