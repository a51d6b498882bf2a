package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rudro-kalix/business-management/internal/ledger"
)

// Adapter backs a store.Collection with a durable device-local snapshot.
// Every successful write serializes the entire resulting collection back to
// storage; there is no append log. Records here never carry an ownerId.
type Adapter[E ledger.Entity[E]] struct {
	kv     KV
	key    string
	seed   []E
	logger *slog.Logger

	mu         sync.Mutex
	onSnapshot func([]E)
}

// NewAdapter creates a local adapter persisting under the given key. seed is
// written on first use, or whenever the stored snapshot cannot be parsed.
func NewAdapter[E ledger.Entity[E]](kv KV, key string, seed []E, logger *slog.Logger) *Adapter[E] {
	return &Adapter[E]{kv: kv, key: key, seed: seed, logger: logger}
}

// Records loads the current durable snapshot. A missing snapshot seeds the
// built-in defaults; a corrupt one is recovered the same way rather than
// surfaced as fatal.
func (a *Adapter[E]) Records() ([]E, error) {
	raw, ok, err := a.kv.Get(a.key)
	if err != nil {
		return nil, err
	}

	if !ok {
		return a.reseed()
	}

	var records []E
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		a.logger.Warn("local snapshot corrupt, reseeding defaults", "key", a.key, "error", err)
		return a.reseed()
	}

	return records, nil
}

func (a *Adapter[E]) reseed() ([]E, error) {
	records := make([]E, len(a.seed))
	copy(records, a.seed)

	if err := a.save(records); err != nil {
		return nil, err
	}

	return records, nil
}

func (a *Adapter[E]) save(records []E) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", a.key, err)
	}

	return a.kv.Set(a.key, string(data))
}

func (a *Adapter[E]) Add(_ context.Context, record E) error {
	record = record.Normalized()
	if err := record.Validate(); err != nil {
		return err
	}

	// Local records get a random id and never an owner.
	record = record.WithID(uuid.NewString()).WithOwner("")

	records, err := a.Records()
	if err != nil {
		return err
	}

	records = append(records, record)
	if err := a.save(records); err != nil {
		return err
	}

	a.notify(records)

	return nil
}

func (a *Adapter[E]) Update(_ context.Context, record E) error {
	record = record.Normalized()
	if err := record.Validate(); err != nil {
		return err
	}

	record = record.WithOwner("")

	records, err := a.Records()
	if err != nil {
		return err
	}

	found := false

	for i, r := range records {
		if r.EntityID() == record.EntityID() {
			records[i] = record
			found = true

			break
		}
	}

	if !found {
		return ledger.ErrNotFound
	}

	if err := a.save(records); err != nil {
		return err
	}

	a.notify(records)

	return nil
}

func (a *Adapter[E]) Delete(_ context.Context, id string) error {
	records, err := a.Records()
	if err != nil {
		return err
	}

	kept := records[:0]

	for _, r := range records {
		if r.EntityID() != id {
			kept = append(kept, r)
		}
	}

	if len(kept) == len(records) {
		return nil
	}

	if err := a.save(kept); err != nil {
		return err
	}

	a.notify(kept)

	return nil
}

// Subscribe delivers the current durable snapshot immediately and after every
// subsequent write.
func (a *Adapter[E]) Subscribe(onSnapshot func([]E)) (func(), error) {
	records, err := a.Records()
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.onSnapshot = onSnapshot
	a.mu.Unlock()

	onSnapshot(records)

	return func() {
		a.mu.Lock()
		a.onSnapshot = nil
		a.mu.Unlock()
	}, nil
}

func (a *Adapter[E]) notify(records []E) {
	a.mu.Lock()
	fn := a.onSnapshot
	a.mu.Unlock()

	if fn != nil {
		fn(records)
	}
}
