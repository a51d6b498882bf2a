package remote_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudro-kalix/business-management/internal/ledger"
	"github.com/rudro-kalix/business-management/internal/remote"
)

func batchClient(t *testing.T, handler http.HandlerFunc) *remote.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := remote.NewClient(slog.Default())
	require.NoError(t, c.Initialize(remote.Config{ProjectURL: srv.URL, APIKey: "anon-key"}))

	return c
}

func batchOps() []remote.BatchOp {
	return []remote.BatchOp{
		{Collection: remote.CollectionTransactions, Record: validTx()},
	}
}

func TestClient_BatchWriteCommits(t *testing.T) {
	c := batchClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/ledger_batch_import", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, c.BatchWrite(context.Background(), batchOps()))
}

func TestClient_BatchWriteAccessDenied(t *testing.T) {
	// The rest client surfaces server-side rejections as the response body,
	// not as an error, so the rejection must be detected from the payload.
	c := batchClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code":"42501","message":"permission denied for table transactions"}`)
	})

	err := c.BatchWrite(context.Background(), batchOps())
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrPermissionDenied)
}

func TestClient_BatchWriteMissingFunction(t *testing.T) {
	c := batchClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":"PGRST202","message":"Could not find the function public.ledger_batch_import"}`)
	})

	err := c.BatchWrite(context.Background(), batchOps())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ledger.ErrPermissionDenied)
}
