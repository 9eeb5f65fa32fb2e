package realtime

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop cancels the timer. It returns false if the timer already fired or was stopped.
	Stop() bool
}

// Clock schedules the manager's handshake, auth-timeout and reconnect timers.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall-clock implementation backed by time.AfterFunc.
var SystemClock Clock = systemClock{}

// stopTimer cancels t if set and clears the handle.
func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
