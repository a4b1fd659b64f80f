// Package observe provides a value holder that re-emits to subscribers on change.
package observe

import "sync"

// Value is a concurrency-safe observable. Subscribers always see the latest value;
// intermediate values may be skipped when a subscriber falls behind, so producers
// never block on slow consumers.
type Value[T any] struct {
	mu     sync.RWMutex
	val    T
	nextID int
	subs   map[int]chan T
}

// New returns a Value holding initial
func New[T any](initial T) *Value[T] {
	return &Value[T]{val: initial, subs: make(map[int]chan T)}
}

// Get returns the current value
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.val
}

// Set stores val and notifies every subscriber. Notification happens under the
// write lock so subscribers observe values in Set order.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.val = val
	for _, ch := range v.subs {
		offer(ch, val)
	}
}

// Update applies fn to the current value and stores the result atomically
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.val = fn(v.val)
	for _, ch := range v.subs {
		offer(ch, v.val)
	}
	return v.val
}

// Subscribe returns a channel that receives the current value immediately and
// every later one. The returned cancel func closes the channel.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++
	ch := make(chan T, 1)
	ch <- v.val
	v.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.subs, id)
			close(ch)
		})
	}
}

// offer replaces any unread value in ch with val
func offer[T any](ch chan T, val T) {
	select {
	case <-ch:
	default:
	}
	ch <- val
}
