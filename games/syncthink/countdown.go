/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package syncthink

import (
	"sync"
	"time"
)

// Countdown ticks once per second and fires onExpire when it reaches zero.
//
// Callbacks run with lock held, and Start/Cancel must be called with lock
// held too. Each run has its own generation, and a callback only acts while
// its generation is current, so one that races a Cancel or a restart does
// nothing.
type Countdown struct {
	clock Clock
	lock  sync.Locker

	remaining int
	stopped   bool
	gen       uint64
	timer     Timer

	onTick   func(remaining int)
	onExpire func()
}

func NewCountdown(clock Clock, lock sync.Locker) *Countdown {
	return &Countdown{
		clock:   clock,
		lock:    lock,
		stopped: true,
	}
}

func (c *Countdown) Start(seconds int, onTick func(remaining int), onExpire func()) {
	c.Cancel()

	if seconds < 0 {
		seconds = 0
	}

	c.gen++
	c.remaining = seconds
	c.onTick = onTick
	c.onExpire = onExpire
	c.stopped = false

	c.arm()
}

func (c *Countdown) Cancel() {
	if c.stopped {
		return
	}

	c.stopped = true
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Countdown) Remaining() int {
	return c.remaining
}

func (c *Countdown) Running() bool {
	return !c.stopped
}

func (c *Countdown) arm() {
	gen := c.gen
	c.timer = c.clock.AfterFunc(time.Second, func() {
		c.fire(gen)
	})
}

func (c *Countdown) fire(gen uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.stopped || gen != c.gen {
		return
	}

	if c.remaining > 0 {
		c.remaining--
	}

	if c.onTick != nil {
		c.onTick(c.remaining)
	}

	// onTick may have cancelled or restarted us
	if c.stopped || gen != c.gen {
		return
	}

	if c.remaining > 0 {
		c.arm()
		return
	}

	c.stopped = true
	c.timer = nil
	if c.onExpire != nil {
		c.onExpire()
	}
}
