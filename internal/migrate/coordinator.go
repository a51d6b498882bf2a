// Package migrate performs the one-shot bulk transfer of the locally-held
// ledger into the remote backend.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rudro-kalix/business-management/internal/ledger"
	"github.com/rudro-kalix/business-management/internal/remote"
)

// ErrNotConfirmed rejects a migration the operator has not explicitly
// confirmed. Migration duplicates data in effect, so confirmation is part of
// the contract, not UI sugar.
var ErrNotConfirmed = errors.New("migration requires explicit confirmation")

type Coordinator struct {
	backend remote.Backend
	logger  *slog.Logger
}

func NewCoordinator(backend remote.Backend, logger *slog.Logger) *Coordinator {
	return &Coordinator{backend: backend, logger: logger}
}

type Result struct {
	Transactions int `json:"transactions"`
	Expenses     int `json:"expenses"`
}

// Run commits every local transaction and expense to the remote backend in a
// single atomic batch. Each migrated record gets a fresh backend-assigned id
// (local ids are never reused) and is stamped with the current principal.
// Local records are left untouched; clearing them is a separate operator
// decision.
//
// Run has no idempotency guard: invoking it again duplicates every record
// under new ids. The operator confirms before every run.
func (c *Coordinator) Run(ctx context.Context, transactions []ledger.Transaction, expenses []ledger.Expense, confirm bool) (*Result, error) {
	if !confirm {
		return nil, ErrNotConfirmed
	}

	principal := c.backend.Principal()
	if principal == nil {
		return nil, ledger.ErrUnauthorized
	}

	batch := make([]remote.BatchOp, 0, len(transactions)+len(expenses))

	for _, t := range transactions {
		t = t.Normalized().WithID("").WithOwner(principal.ID)
		batch = append(batch, remote.BatchOp{Collection: remote.CollectionTransactions, Record: t})
	}

	for _, e := range expenses {
		e = e.Normalized().WithID("").WithOwner(principal.ID)
		batch = append(batch, remote.BatchOp{Collection: remote.CollectionExpenses, Record: e})
	}

	if len(batch) == 0 {
		return &Result{}, nil
	}

	if err := c.backend.BatchWrite(ctx, batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrMigrationFailed, err)
	}

	c.logger.Info("migration complete",
		"transactions", len(transactions), "expenses", len(expenses), "principal", principal.ID)

	return &Result{Transactions: len(transactions), Expenses: len(expenses)}, nil
}
