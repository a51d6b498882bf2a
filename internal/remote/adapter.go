package remote

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rudro-kalix/business-management/internal/ledger"
)

// DefaultPollInterval is how often the live view refreshes between writes.
const DefaultPollInterval = 30 * time.Second

// Adapter realizes the store.Adapter contract over a Backend collection.
// Writes pre-flight-check the principal and fail with ErrUnauthorized before
// any backend call; every write stamps the record's owner from the current
// principal, overriding whatever the caller supplied.
type Adapter[E ledger.Entity[E]] struct {
	backend    Backend
	collection string
	interval   time.Duration
	logger     *slog.Logger

	mu         sync.Mutex
	onSnapshot func([]E)
	cancel     context.CancelFunc
	gen        int
}

func NewAdapter[E ledger.Entity[E]](backend Backend, collection string, logger *slog.Logger) *Adapter[E] {
	return &Adapter[E]{
		backend:    backend,
		collection: collection,
		interval:   DefaultPollInterval,
		logger:     logger,
	}
}

func (a *Adapter[E]) Add(ctx context.Context, record E) error {
	principal := a.backend.Principal()
	if principal == nil {
		return ledger.ErrUnauthorized
	}

	record = record.Normalized()
	if err := record.Validate(); err != nil {
		return err
	}

	// The backend assigns the id; the principal owns the record.
	record = record.WithID("").WithOwner(principal.ID)

	if _, err := a.backend.Add(ctx, a.collection, record); err != nil {
		return err
	}

	a.refresh(ctx)

	return nil
}

func (a *Adapter[E]) Update(ctx context.Context, record E) error {
	principal := a.backend.Principal()
	if principal == nil {
		return ledger.ErrUnauthorized
	}

	record = record.Normalized()
	if err := record.Validate(); err != nil {
		return err
	}

	id := record.EntityID()

	// The id is pinned by the query filter, not the payload.
	record = record.WithID("").WithOwner(principal.ID)

	if err := a.backend.Update(ctx, a.collection, id, record); err != nil {
		return err
	}

	a.refresh(ctx)

	return nil
}

func (a *Adapter[E]) Delete(ctx context.Context, id string) error {
	if a.backend.Principal() == nil {
		return ledger.ErrUnauthorized
	}

	if err := a.backend.Delete(ctx, a.collection, id); err != nil {
		return err
	}

	a.refresh(ctx)

	return nil
}

// Subscribe starts the live feed for the authenticated principal's records.
// With no principal it is a no-op that never calls back; the session clears
// any previously-held data itself.
func (a *Adapter[E]) Subscribe(onSnapshot func([]E)) (func(), error) {
	if a.backend.Principal() == nil {
		return func() {}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}

	a.gen++
	gen := a.gen
	a.onSnapshot = onSnapshot
	a.cancel = cancel
	a.mu.Unlock()

	a.refresh(ctx)

	go a.poll(ctx)

	return func() {
		cancel()

		// A stale unsubscribe from a superseded subscription must not tear
		// down the feed a newer Subscribe installed.
		a.mu.Lock()
		if a.gen == gen {
			a.cancel = nil
			a.onSnapshot = nil
		}
		a.mu.Unlock()
	}, nil
}

func (a *Adapter[E]) poll(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refresh(ctx)
		}
	}
}

// refresh re-queries the owned collection and delivers it as a full snapshot.
// Read failures never tear the feed down: access-control rejections are
// logged loudly, other transport errors quietly.
func (a *Adapter[E]) refresh(ctx context.Context) {
	principal := a.backend.Principal()
	if principal == nil {
		return
	}

	var records []E
	if err := a.backend.List(ctx, a.collection, principal.ID, &records); err != nil {
		if errors.Is(err, ledger.ErrPermissionDenied) {
			a.logger.Error("backend denied access to collection, check your access rules",
				"collection", a.collection, "error", err)
		} else {
			a.logger.Warn("live refresh failed", "collection", a.collection, "error", err)
		}

		return
	}

	a.mu.Lock()
	fn := a.onSnapshot
	a.mu.Unlock()

	if fn != nil {
		fn(records)
	}
}
