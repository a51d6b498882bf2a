package migrate_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rudro-kalix/business-management/internal/ledger"
	"github.com/rudro-kalix/business-management/internal/migrate"
	"github.com/rudro-kalix/business-management/internal/remote"
)

func localRecords() ([]ledger.Transaction, []ledger.Expense) {
	txs := []ledger.Transaction{
		{
			ID:           "local-t1",
			Date:         "2023-10-24",
			CustomerName: "Alice Johnson",
			PlanType:     ledger.PlanPlus,
			CostPrice:    20,
			SalePrice:    28,
			Quantity:     1,
			Currency:     "USD",
		},
		{
			ID:        "local-t2",
			Date:      "2023-10-25",
			PlanType:  ledger.PlanGo,
			CostPrice: 15,
			SalePrice: 22,
			Quantity:  2,
			Currency:  "USD",
		},
	}
	exps := []ledger.Expense{
		{ID: "local-e1", Date: "2023-10-24", Category: ledger.CategoryGmail, Amount: 4.5},
	}

	return txs, exps
}

func TestCoordinator_RunMigratesAllRecords(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	txs, exps := localRecords()

	backend := remote.NewMockBackend(ctrl)
	backend.EXPECT().Principal().Return(&remote.Principal{ID: "user-1"})
	backend.EXPECT().
		BatchWrite(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, batch []remote.BatchOp) error {
			require.Len(t, batch, 3)

			for _, op := range batch[:2] {
				assert.Equal(t, remote.CollectionTransactions, op.Collection)

				tx := op.Record.(ledger.Transaction)
				assert.Empty(t, tx.ID, "the backend assigns fresh ids")
				assert.Equal(t, "user-1", tx.OwnerID)
			}

			exp := batch[2].Record.(ledger.Expense)
			assert.Equal(t, remote.CollectionExpenses, batch[2].Collection)
			assert.Empty(t, exp.ID)
			assert.Equal(t, "user-1", exp.OwnerID)

			return nil
		})

	coordinator := migrate.NewCoordinator(backend, slog.Default())

	result, err := coordinator.Run(context.Background(), txs, exps, true)
	require.NoError(t, err)
	assert.Equal(t, &migrate.Result{Transactions: 2, Expenses: 1}, result)

	// The local snapshot is input only; migration never mutates it.
	assert.Equal(t, "local-t1", txs[0].ID)
	assert.Equal(t, "local-e1", exps[0].ID)
}

func TestCoordinator_RunRequiresConfirmation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	txs, exps := localRecords()

	coordinator := migrate.NewCoordinator(remote.NewMockBackend(ctrl), slog.Default())

	_, err := coordinator.Run(context.Background(), txs, exps, false)
	assert.ErrorIs(t, err, migrate.ErrNotConfirmed)
}

func TestCoordinator_RunRequiresPrincipal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	txs, exps := localRecords()

	backend := remote.NewMockBackend(ctrl)
	backend.EXPECT().Principal().Return(nil)

	coordinator := migrate.NewCoordinator(backend, slog.Default())

	_, err := coordinator.Run(context.Background(), txs, exps, true)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
}

func TestCoordinator_RunEmptyLedger(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := remote.NewMockBackend(ctrl)
	backend.EXPECT().Principal().Return(&remote.Principal{ID: "user-1"})

	coordinator := migrate.NewCoordinator(backend, slog.Default())

	result, err := coordinator.Run(context.Background(), nil, nil, true)
	require.NoError(t, err)
	assert.Equal(t, &migrate.Result{}, result)
}

func TestCoordinator_RunBatchFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	txs, exps := localRecords()

	backend := remote.NewMockBackend(ctrl)
	backend.EXPECT().Principal().Return(&remote.Principal{ID: "user-1"})
	backend.EXPECT().BatchWrite(gomock.Any(), gomock.Any()).Return(errors.New("rpc failed"))

	coordinator := migrate.NewCoordinator(backend, slog.Default())

	_, err := coordinator.Run(context.Background(), txs, exps, true)
	assert.ErrorIs(t, err, ledger.ErrMigrationFailed)
}
