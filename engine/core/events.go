package core

import (
	"sync"
	"weak"
)

// Notifier delivers events of type E synchronously to its subscribers, in
// subscription order. Subscribers are held weakly: once the owning object
// is garbage collected its callback is dropped on the next Emit.
type Notifier[E any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []*subscriber[E]
}

type subscriber[E any] struct {
	id      uint64
	deliver func(E) bool
}

// Subscription cancels a registration made with Subscribe.
type Subscription struct {
	cancel func()
}

func (s Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

/**
 * @brief Registers fn to be called with owner on every Emit while owner is alive.
 * fn must not capture owner itself, otherwise the owner can never be collected.
 * @param n The notifier to subscribe to.
 * @param owner The subscribing object, referenced weakly.
 * @param fn The callback.
 * @returns A subscription handle that can cancel the registration.
 */
func Subscribe[T any, E any](n *Notifier[E], owner *T, fn func(*T, E)) Subscription {
	if n == nil || owner == nil || fn == nil {
		return Subscription{}
	}
	wp := weak.Make(owner)

	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, &subscriber[E]{
		id: id,
		deliver: func(e E) bool {
			o := wp.Value()
			if o == nil {
				return false
			}
			fn(o, e)
			return true
		},
	})
	n.mu.Unlock()

	return Subscription{cancel: func() { n.remove(id) }}
}

func (n *Notifier[E]) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			return
		}
	}
}

// Emit calls every live subscriber. Callbacks may subscribe or cancel
// during delivery, changes take effect on the next Emit.
func (n *Notifier[E]) Emit(e E) {
	n.mu.Lock()
	snapshot := make([]*subscriber[E], len(n.subs))
	copy(snapshot, n.subs)
	n.mu.Unlock()

	var dead []uint64
	for _, s := range snapshot {
		if !s.deliver(e) {
			dead = append(dead, s.id)
		}
	}
	for _, id := range dead {
		n.remove(id)
	}
}

// Len reports the number of registered subscribers, dead ones included
// until the next Emit prunes them.
func (n *Notifier[E]) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
