// Package dedupe tracks batch idempotency keys so a resubmitted batch maps
// back to the batch it first created.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 50000

// Deduper remembers which batch an idempotency key created.
type Deduper interface {
	// Claim binds key to batchID unless key is already bound. It returns the
	// bound batch id and whether the key had been claimed before.
	Claim(ctx context.Context, key, batchID string) (string, bool)

	// Release forgets key so a rejected submission can be retried.
	Release(ctx context.Context, key string)

	Size() int
}

type entry struct {
	key     string
	batchID string
}

// inMemoryDeduper keeps claims in insertion order. When bounded, the oldest
// claim is evicted to make room. A non-positive maxSize means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	claims  map[string]*list.Element
	order   *list.List
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.claims = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, key, batchID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.claims[key]; ok {
		return el.Value.(entry).batchID, true //nolint:forcetypeassert // only entry values are stored
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	d.claims[key] = d.order.PushBack(entry{key: key, batchID: batchID})
	return batchID, false
}

func (d *inMemoryDeduper) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.claims[key]; ok {
		d.order.Remove(el)
		delete(d.claims, key)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	d.order.Remove(front)
	delete(d.claims, front.Value.(entry).key) //nolint:forcetypeassert // only entry values are stored
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
