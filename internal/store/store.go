// Package store presents one add/update/delete/subscribe contract over a
// collection of ledger records, independent of which backend realizes it.
package store

import (
	"context"
	"sync"

	"github.com/rudro-kalix/business-management/internal/ledger"
)

// Adapter is the backing store for a Collection. The local adapter delivers
// snapshots synchronously after each write; the remote adapter delivers them
// asynchronously from its live feed. Subscribe wires the adapter's snapshot
// callback; the returned func tears the feed down.
type Adapter[E ledger.Entity[E]] interface {
	Add(ctx context.Context, record E) error
	Update(ctx context.Context, record E) error
	Delete(ctx context.Context, id string) error
	Subscribe(onSnapshot func(records []E)) (unsubscribe func(), err error)
}

// Collection holds the in-memory snapshot of one entity type and fans every
// replacement out to its subscribers. The active adapter is a session-scoped
// decision made through Bind, never a per-call parameter.
type Collection[E ledger.Entity[E]] struct {
	mu      sync.Mutex
	adapter Adapter[E]
	unbind  func()
	records []E
	subs    map[int]func([]E)
	nextSub int
}

func NewCollection[E ledger.Entity[E]]() *Collection[E] {
	return &Collection[E]{subs: make(map[int]func([]E))}
}

// Bind switches the collection to a new backing adapter. Any previous feed is
// torn down and the in-memory snapshot is cleared (and broadcast as empty)
// before the first snapshot from the new adapter can arrive, so no record
// from the old backend is ever visible as belonging to the new one.
func (c *Collection[E]) Bind(adapter Adapter[E]) error {
	c.mu.Lock()
	if c.unbind != nil {
		c.unbind()
		c.unbind = nil
	}

	c.adapter = adapter
	c.records = nil
	notify := c.fanoutLocked()
	c.mu.Unlock()

	notify()

	// Subscribe outside the lock: the local adapter calls back synchronously.
	unbind, err := adapter.Subscribe(c.replace)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.unbind = unbind
	c.mu.Unlock()

	return nil
}

// Unbind tears down the active feed and clears the snapshot. The collection
// rejects writes until it is bound again.
func (c *Collection[E]) Unbind() {
	c.mu.Lock()

	if c.unbind != nil {
		c.unbind()
		c.unbind = nil
	}

	c.adapter = nil
	c.records = nil
	notify := c.fanoutLocked()
	c.mu.Unlock()

	notify()
}

// Snapshot returns a copy of the latest in-memory collection.
func (c *Collection[E]) Snapshot() []E {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]E, len(c.records))
	copy(out, c.records)

	return out
}

// Add routes the record to the active adapter. The id is assigned by the
// adapter; subscribers learn about the new record through the next snapshot.
func (c *Collection[E]) Add(ctx context.Context, record E) error {
	adapter, err := c.active()
	if err != nil {
		return err
	}

	return adapter.Add(ctx, record)
}

// Update replaces a record wholesale. It rejects ids unknown to the current
// snapshot so a stale client cannot resurrect a deleted record.
func (c *Collection[E]) Update(ctx context.Context, record E) error {
	adapter, err := c.active()
	if err != nil {
		return err
	}

	if !c.has(record.EntityID()) {
		return ledger.ErrNotFound
	}

	return adapter.Update(ctx, record)
}

// Delete removes a record by id. Deleting an id that is already absent is a
// no-op, not an error.
func (c *Collection[E]) Delete(ctx context.Context, id string) error {
	adapter, err := c.active()
	if err != nil {
		return err
	}

	if !c.has(id) {
		return nil
	}

	return adapter.Delete(ctx, id)
}

// Subscribe registers a listener that receives the full current collection on
// every change, starting with the snapshot held right now. Multiple
// subscriptions are additive; the returned func removes this one.
func (c *Collection[E]) Subscribe(fn func(records []E)) (unsubscribe func()) {
	c.mu.Lock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	current := make([]E, len(c.records))
	copy(current, c.records)
	c.mu.Unlock()

	fn(current)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Collection[E]) active() (Adapter[E], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.adapter == nil {
		return nil, ledger.ErrNotConnected
	}

	return c.adapter, nil
}

func (c *Collection[E]) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.records {
		if r.EntityID() == id {
			return true
		}
	}

	return false
}

// replace installs a full snapshot from the adapter. There is no field-level
// merge: the snapshot wholly supersedes whatever was held before.
func (c *Collection[E]) replace(records []E) {
	c.mu.Lock()
	c.records = records
	notify := c.fanoutLocked()
	c.mu.Unlock()

	notify()
}

// fanoutLocked captures the current subscribers and snapshot; the returned
// func delivers them and must be called with the mutex released, so that a
// subscriber may call back into the collection.
func (c *Collection[E]) fanoutLocked() func() {
	subs := make([]func([]E), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}

	records := make([]E, len(c.records))
	copy(records, c.records)

	return func() {
		for _, fn := range subs {
			out := make([]E, len(records))
			copy(out, records)
			fn(out)
		}
	}
}
