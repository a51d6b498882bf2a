// Package session drives the backend-mode lifecycle as an explicit state
// machine: Disconnected (local mode), ConnectedUnauthenticated and
// ConnectedAuthenticated. Each transition deterministically rebinds the
// entity collections, so there is no ordering ambiguity between auth changes
// and (re)subscription.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rudro-kalix/business-management/internal/ledger"
	"github.com/rudro-kalix/business-management/internal/localstore"
	"github.com/rudro-kalix/business-management/internal/remote"
	"github.com/rudro-kalix/business-management/internal/store"
)

// State is the session's position in the backend-mode lifecycle.
type State string

const (
	StateDisconnected             State = "disconnected"
	StateConnectedUnauthenticated State = "connected"
	StateConnectedAuthenticated   State = "authenticated"
)

// ErrInvalidState rejects a transition that is not legal from the current
// state, such as connecting twice.
var ErrInvalidState = errors.New("transition not allowed in current session state")

// Session owns the active backend handle, the principal and both entity
// collections. It replaces any global backend singleton: every operation
// reaches storage through this object.
type Session struct {
	kv      localstore.KV
	backend remote.Backend
	logger  *slog.Logger

	localTx   *localstore.Adapter[ledger.Transaction]
	localExp  *localstore.Adapter[ledger.Expense]
	remoteTx  *remote.Adapter[ledger.Transaction]
	remoteExp *remote.Adapter[ledger.Expense]

	transactions *store.Collection[ledger.Transaction]
	expenses     *store.Collection[ledger.Expense]

	mu         sync.Mutex
	state      State
	removeAuth func()
}

// New builds a session in local mode, with both collections bound to the
// durable device store.
func New(kv localstore.KV, backend remote.Backend, logger *slog.Logger) (*Session, error) {
	s := &Session{
		kv:      kv,
		backend: backend,
		logger:  logger,
		state:   StateDisconnected,

		localTx:   localstore.NewAdapter(kv, localstore.KeyTransactions, localstore.SeedTransactions(), logger),
		localExp:  localstore.NewAdapter(kv, localstore.KeyExpenses, localstore.SeedExpenses(), logger),
		remoteTx:  remote.NewAdapter[ledger.Transaction](backend, remote.CollectionTransactions, logger),
		remoteExp: remote.NewAdapter[ledger.Expense](backend, remote.CollectionExpenses, logger),

		transactions: store.NewCollection[ledger.Transaction](),
		expenses:     store.NewCollection[ledger.Expense](),
	}

	if err := s.bindLocal(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Session) Transactions() *store.Collection[ledger.Transaction] { return s.transactions }
func (s *Session) Expenses() *store.Collection[ledger.Expense]         { return s.expenses }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) Principal() *remote.Principal {
	return s.backend.Principal()
}

// Backend exposes the remote handle for collaborators that operate at the
// backend boundary, such as the migration coordinator.
func (s *Session) Backend() remote.Backend {
	return s.backend
}

// Connect initializes the remote backend and switches both collections to
// remote mode. The collections are cleared before any live data can arrive;
// they stay empty until a principal is authenticated. The configuration blob
// is persisted so the session can be restored on the next run.
func (s *Session) Connect(ctx context.Context, cfg remote.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateDisconnected {
		return fmt.Errorf("%w: already connected", ErrInvalidState)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := s.backend.Initialize(cfg); err != nil {
		return err
	}

	blob, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding remote config: %w", err)
	}

	if err := s.kv.Set(localstore.KeyRemoteConfig, string(blob)); err != nil {
		return fmt.Errorf("persisting remote config: %w", err)
	}

	s.removeAuth = s.backend.OnPrincipalChange(s.handlePrincipalChange)
	s.state = StateConnectedUnauthenticated

	return s.bindRemote()
}

// Restore re-connects using the configuration blob persisted by a previous
// Connect. It reports whether a blob was found.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	blob, ok, err := s.kv.Get(localstore.KeyRemoteConfig)
	if err != nil || !ok {
		return false, err
	}

	var cfg remote.Config
	if err := json.Unmarshal([]byte(blob), &cfg); err != nil {
		return false, fmt.Errorf("%w: stored remote config does not parse", ledger.ErrConfigInvalid)
	}

	return true, s.Connect(ctx, cfg)
}

// Login authenticates a principal and starts the live subscriptions for both
// collections.
func (s *Session) Login(ctx context.Context, creds remote.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return ledger.ErrNotConnected
	}

	principal, err := s.backend.Authenticate(ctx, creds)
	if err != nil {
		return err
	}

	s.logger.Info("signed in", "principal", principal.ID)
	s.state = StateConnectedAuthenticated

	return s.bindRemote()
}

// Logout drops the principal, tears down the live subscriptions and clears
// the in-memory collections immediately so no data attributed to the old
// principal remains visible.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return ledger.ErrNotConnected
	}

	if err := s.backend.SignOut(ctx); err != nil {
		return err
	}

	s.state = StateConnectedUnauthenticated

	return s.bindRemote()
}

// Disconnect tears down remote subscriptions and the auth listener, forgets
// the stored remote configuration and returns both collections to the
// durable local snapshots.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return nil
	}

	if s.removeAuth != nil {
		s.removeAuth()
		s.removeAuth = nil
	}

	if s.state == StateConnectedAuthenticated {
		if err := s.backend.SignOut(ctx); err != nil {
			return err
		}
	}

	if err := s.kv.Remove(localstore.KeyRemoteConfig); err != nil {
		return err
	}

	s.state = StateDisconnected

	return s.bindLocal()
}

// LocalSnapshots reads the durable local collections regardless of the
// active mode. The migration coordinator works from these, never from the
// in-memory remote view.
func (s *Session) LocalSnapshots() ([]ledger.Transaction, []ledger.Expense, error) {
	txs, err := s.localTx.Records()
	if err != nil {
		return nil, nil, err
	}

	exps, err := s.localExp.Records()
	if err != nil {
		return nil, nil, err
	}

	return txs, exps, nil
}

func (s *Session) bindLocal() error {
	if err := s.transactions.Bind(s.localTx); err != nil {
		return err
	}

	return s.expenses.Bind(s.localExp)
}

func (s *Session) bindRemote() error {
	if err := s.transactions.Bind(s.remoteTx); err != nil {
		return err
	}

	return s.expenses.Bind(s.remoteExp)
}

// handlePrincipalChange reacts to login/logout signals raised by the backend
// itself, such as token expiry. Losing the principal clears the collections
// at once; gaining one (token refresh, external sign-in) starts the feed.
func (s *Session) handlePrincipalChange(p *remote.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case p == nil && s.state == StateConnectedAuthenticated:
		s.logger.Info("principal lost, clearing ledger data")
		s.state = StateConnectedUnauthenticated

		if err := s.bindRemote(); err != nil {
			s.logger.Error("rebinding after principal loss", "error", err)
		}
	case p != nil && s.state == StateConnectedUnauthenticated:
		s.logger.Info("principal restored", "principal", p.ID)
		s.state = StateConnectedAuthenticated

		if err := s.bindRemote(); err != nil {
			s.logger.Error("rebinding after sign-in", "error", err)
		}
	}
}
