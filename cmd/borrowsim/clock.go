package main

import (
	"sync"
	"time"
)

// timeLapseClock runs simulated time faster than wall time, so loans can run overdue within seconds.
type timeLapseClock struct {
	mu        sync.Mutex
	realStart time.Time
	simStart  time.Time
	factor    float64
	now       func() time.Time
}

// newTimeLapseClock starts simulated time at simStart. Every real second advances it by perSecond.
func newTimeLapseClock(simStart time.Time, perSecond time.Duration, now func() time.Time) *timeLapseClock {
	return &timeLapseClock{
		realStart: now(),
		simStart:  simStart,
		factor:    float64(perSecond) / float64(time.Second),
		now:       now,
	}
}

func (c *timeLapseClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := c.now().Sub(c.realStart)

	return c.simStart.Add(time.Duration(float64(elapsed) * c.factor))
}
