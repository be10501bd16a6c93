// Package stream provides a minimal "current value + change stream" primitive.
// Stores that need to broadcast state (session user, cart contents, payment
// list) embed a Value instead of hand-rolling subscriber bookkeeping.
package stream

import "sync"

// Value holds a current value of type T and fans every update out to all
// subscribers. Semantics are last-write-wins: a slow subscriber that falls
// behind misses intermediate values but always observes the latest one
// eventually, because sends never block the writer.
type Value[T any] struct {
	mu   sync.Mutex
	cur  T
	subs map[int]chan T
	next int
}

// New creates a Value seeded with the given initial value.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		cur:  initial,
		subs: make(map[int]chan T),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Set stores a new value and broadcasts it to all subscribers.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cur = val
	for _, ch := range v.subs {
		v.send(ch, val)
	}
}

// Subscribe registers a new subscriber. The channel receives the current
// value immediately, then every subsequent update. The returned cancel
// function removes the subscription and closes the channel; it is safe to
// call more than once.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.next
	v.next++
	ch := make(chan T, 16)
	v.subs[id] = ch
	ch <- v.cur

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			if sub, ok := v.subs[id]; ok {
				delete(v.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// send delivers without blocking. If the subscriber's buffer is full, the
// oldest pending value is dropped to make room for the newest one.
func (v *Value[T]) send(ch chan T, val T) {
	for {
		select {
		case ch <- val:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
