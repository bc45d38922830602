package core

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

type counter struct {
	hits int
	last string
}

func TestNotifierDeliversInOrder(t *testing.T) {
	assert := assert.New(t)

	var n Notifier[string]
	var order []int
	a, b := &counter{}, &counter{}
	Subscribe(&n, a, func(c *counter, e string) { c.hits++; c.last = e; order = append(order, 1) })
	Subscribe(&n, b, func(c *counter, e string) { c.hits++; order = append(order, 2) })

	n.Emit("dirty")

	assert.Equal(1, a.hits)
	assert.Equal("dirty", a.last)
	assert.Equal(1, b.hits)
	assert.Equal([]int{1, 2}, order)
}

func TestNotifierCancel(t *testing.T) {
	assert := assert.New(t)

	var n Notifier[int]
	c := &counter{}
	sub := Subscribe(&n, c, func(c *counter, _ int) { c.hits++ })
	n.Emit(1)
	sub.Cancel()
	n.Emit(2)

	assert.Equal(1, c.hits)
	assert.Equal(0, n.Len())
}

func TestNotifierDropsCollectedOwners(t *testing.T) {
	assert := assert.New(t)

	var n Notifier[int]
	func() {
		c := &counter{}
		Subscribe(&n, c, func(c *counter, _ int) { c.hits++ })
	}()
	runtime.GC()
	runtime.GC()

	n.Emit(1)
	assert.Equal(0, n.Len())
}

func TestNotifierIgnoresNilOwner(t *testing.T) {
	var n Notifier[int]
	Subscribe[counter](&n, nil, func(c *counter, _ int) {})
	assert.Equal(t, 0, n.Len())
}
