package flow

import (
	"sync"
	"time"
)

// TTL is a small keyed cache; an expired entry is dropped by the Get that finds it.
type TTL[K comparable, V any] struct {
	mu   sync.Mutex
	data map[K]entry[V]
	now  func() time.Time
}

type entry[V any] struct {
	val V
	exp time.Time
}

// NewTTL creates a cache using now as its clock, time.Now when nil.
func NewTTL[K comparable, V any](now func() time.Time) *TTL[K, V] {
	if now == nil {
		now = time.Now
	}
	return &TTL[K, V]{data: make(map[K]entry[V]), now: now}
}

// Get returns the value and true if present and unexpired, else the zero value and false.
func (t *TTL[K, V]) Get(k K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.data[k]
	if ok && t.now().After(e.exp) {
		delete(t.data, k)
		ok = false
	}
	if !ok {
		var zero V
		return zero, false
	}
	return e.val, true
}

func (t *TTL[K, V]) Set(k K, v V, ttl time.Duration) {
	t.mu.Lock()
	t.data[k] = entry[V]{val: v, exp: t.now().Add(ttl)}
	t.mu.Unlock()
}

func (t *TTL[K, V]) Delete(k K) {
	t.mu.Lock()
	delete(t.data, k)
	t.mu.Unlock()
}

func (t *TTL[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.data)
}
