/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package syncthink

import "time"

// Timer is a pending callback scheduled on a Clock.
type Timer interface {
	Stop() bool
}

// Clock supplies the current time and schedules callbacks. Sessions never
// touch the time package directly, so tests can drive rounds by hand.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock {
	return realClock{}
}
