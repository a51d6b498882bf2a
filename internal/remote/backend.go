// Package remote backs the entity store with a live, authenticated,
// multi-device-visible collection.
package remote

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rudro-kalix/business-management/internal/ledger"
)

// Collection names on the remote backend.
const (
	CollectionTransactions = "transactions"
	CollectionExpenses     = "expenses"
)

// Config is the operator-supplied remote backend configuration. It is
// validated eagerly, before any connection attempt.
type Config struct {
	ProjectURL string `json:"projectUrl"`
	APIKey     string `json:"apiKey"`
}

func (c Config) Validate() error {
	if c.ProjectURL == "" {
		return fmt.Errorf("%w: project URL is required", ledger.ErrConfigInvalid)
	}

	u, err := url.Parse(c.ProjectURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: project URL must be an http(s) URL", ledger.ErrConfigInvalid)
	}

	if c.APIKey == "" {
		return fmt.Errorf("%w: API key is required", ledger.ErrConfigInvalid)
	}

	return nil
}

// Principal is the authenticated identity under which remote reads and
// writes are scoped.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Credentials identify a principal to the identity provider.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// BatchOp is one record of an atomic batch write.
type BatchOp struct {
	Collection string
	Record     any
}

//go:generate mockgen -source=backend.go -destination=backend_mock.go -package=remote

// Backend is the remote store consumed by the sync adapter, the session and
// the migration coordinator. BatchWrite is atomic: either every record in the
// batch is applied or none is.
type Backend interface {
	Initialize(cfg Config) error
	Authenticate(ctx context.Context, creds Credentials) (*Principal, error)
	SignOut(ctx context.Context) error
	Principal() *Principal
	OnPrincipalChange(fn func(p *Principal)) (remove func())

	// List decodes the records of collection owned by owner into out,
	// ordered by date descending.
	List(ctx context.Context, collection, owner string, out any) error
	Add(ctx context.Context, collection string, record any) (id string, err error)
	Update(ctx context.Context, collection, id string, record any) error
	Delete(ctx context.Context, collection, id string) error
	BatchWrite(ctx context.Context, batch []BatchOp) error
}
