package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockDelta(t *testing.T) {
	assert := assert.New(t)

	base := time.Unix(100, 0)
	now := base
	c := NewClock()
	c.now = func() time.Time { return now }

	c.Update()
	assert.Zero(c.Elapsed())

	c.Start()
	now = base.Add(250 * time.Millisecond)
	c.Update()
	assert.InDelta(0.25, c.Delta(), 1e-9)
	now = base.Add(400 * time.Millisecond)
	c.Update()
	assert.InDelta(0.15, c.Delta(), 1e-9)
	assert.InDelta(0.4, c.Elapsed(), 1e-9)

	c.Stop()
	now = base.Add(time.Second)
	c.Update()
	assert.InDelta(0.4, c.Elapsed(), 1e-9)
}
