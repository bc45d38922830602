package core

import "time"

// Clock measures elapsed time since Start. Elapsed and Delta are seconds.
type Clock struct {
	start   time.Time
	last    time.Time
	elapsed float64
	delta   float64
	now     func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Updates the provided clock. Should be called once per frame, just before
// checking elapsed or delta time. Has no effect on non-started clocks.
func (c *Clock) Update() {
	if c.start.IsZero() {
		return
	}
	t := c.now()
	c.elapsed = t.Sub(c.start).Seconds()
	c.delta = t.Sub(c.last).Seconds()
	c.last = t
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.start = c.now()
	c.last = c.start
	c.elapsed = 0
	c.delta = 0
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.start = time.Time{}
}

func (c *Clock) Elapsed() float64 {
	return c.elapsed
}

// Delta is the time between the two most recent updates.
func (c *Clock) Delta() float64 {
	return c.delta
}
