package session_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rudro-kalix/business-management/internal/ledger"
	"github.com/rudro-kalix/business-management/internal/localstore"
	"github.com/rudro-kalix/business-management/internal/remote"
	"github.com/rudro-kalix/business-management/internal/session"
)

var testConfig = remote.Config{
	ProjectURL: "https://abc.supabase.co",
	APIKey:     "anon-key",
}

func newSession(t *testing.T, backend remote.Backend) (*session.Session, localstore.KV) {
	t.Helper()

	kv := localstore.NewMemKV()

	sess, err := session.New(kv, backend, slog.Default())
	require.NoError(t, err)

	return sess, kv
}

func TestSession_StartsInLocalModeWithSeeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sess, _ := newSession(t, remote.NewMockBackend(ctrl))

	assert.Equal(t, session.StateDisconnected, sess.State())
	assert.Len(t, sess.Transactions().Snapshot(), len(localstore.SeedTransactions()))
	assert.Len(t, sess.Expenses().Snapshot(), len(localstore.SeedExpenses()))
}

func TestSession_ConnectClearsCollectionsAndPersistsConfig(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := remote.NewMockBackend(ctrl)
	backend.EXPECT().Initialize(testConfig).Return(nil)
	backend.EXPECT().OnPrincipalChange(gomock.Any()).Return(func() {})
	backend.EXPECT().Principal().Return(nil).AnyTimes()

	sess, kv := newSession(t, backend)

	require.NoError(t, sess.Connect(context.Background(), testConfig))

	assert.Equal(t, session.StateConnectedUnauthenticated, sess.State())
	assert.Empty(t, sess.Transactions().Snapshot())
	assert.Empty(t, sess.Expenses().Snapshot())

	_, found, err := kv.Get(localstore.KeyRemoteConfig)
	require.NoError(t, err)
	assert.True(t, found, "remote config persists for session restore")
}

func TestSession_ConnectTwice(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := remote.NewMockBackend(ctrl)
	backend.EXPECT().Initialize(testConfig).Return(nil)
	backend.EXPECT().OnPrincipalChange(gomock.Any()).Return(func() {})
	backend.EXPECT().Principal().Return(nil).AnyTimes()

	sess, _ := newSession(t, backend)

	require.NoError(t, sess.Connect(context.Background(), testConfig))

	err := sess.Connect(context.Background(), testConfig)
	assert.ErrorIs(t, err, session.ErrInvalidState)
}

func TestSession_ConnectRejectsInvalidConfig(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sess, kv := newSession(t, remote.NewMockBackend(ctrl))

	err := sess.Connect(context.Background(), remote.Config{})
	assert.ErrorIs(t, err, ledger.ErrConfigInvalid)
	assert.Equal(t, session.StateDisconnected, sess.State())

	_, found, err := kv.Get(localstore.KeyRemoteConfig)
	require.NoError(t, err)
	assert.False(t, found, "a rejected config must not be persisted")
}

func TestSession_LoginBeforeConnect(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sess, _ := newSession(t, remote.NewMockBackend(ctrl))

	err := sess.Login(context.Background(), remote.Credentials{Email: "a@b.c", Password: "pw"})
	assert.ErrorIs(t, err, ledger.ErrNotConnected)
}

func TestSession_LoginStartsLiveFeed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	principal := &remote.Principal{ID: "user-1", Email: "a@b.c"}
	owned := []ledger.Transaction{{
		ID:        "r1",
		OwnerID:   "user-1",
		Date:      "2024-02-01",
		PlanType:  ledger.PlanPlus,
		CostPrice: 20,
		SalePrice: 28,
		Quantity:  1,
		Currency:  "USD",
	}}

	authenticated := false

	backend := remote.NewMockBackend(ctrl)
	backend.EXPECT().Initialize(testConfig).Return(nil)
	backend.EXPECT().OnPrincipalChange(gomock.Any()).Return(func() {})
	backend.EXPECT().Principal().DoAndReturn(func() *remote.Principal {
		if authenticated {
			return principal
		}
		return nil
	}).AnyTimes()
	backend.EXPECT().
		Authenticate(gomock.Any(), remote.Credentials{Email: "a@b.c", Password: "pw"}).
		DoAndReturn(func(context.Context, remote.Credentials) (*remote.Principal, error) {
			authenticated = true
			return principal, nil
		})
	backend.EXPECT().
		List(gomock.Any(), remote.CollectionTransactions, "user-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, out any) error {
			*(out.(*[]ledger.Transaction)) = owned
			return nil
		}).
		MinTimes(1)
	backend.EXPECT().
		List(gomock.Any(), remote.CollectionExpenses, "user-1", gomock.Any()).
		Return(nil).
		MinTimes(1)

	sess, _ := newSession(t, backend)

	require.NoError(t, sess.Connect(context.Background(), testConfig))
	require.NoError(t, sess.Login(context.Background(), remote.Credentials{Email: "a@b.c", Password: "pw"}))

	assert.Equal(t, session.StateConnectedAuthenticated, sess.State())

	snapshot := sess.Transactions().Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "r1", snapshot[0].ID)
}

func TestSession_LogoutClearsCollections(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	principal := &remote.Principal{ID: "user-1"}
	authenticated := false

	backend := remote.NewMockBackend(ctrl)
	backend.EXPECT().Initialize(testConfig).Return(nil)
	backend.EXPECT().OnPrincipalChange(gomock.Any()).Return(func() {})
	backend.EXPECT().Principal().DoAndReturn(func() *remote.Principal {
		if authenticated {
			return principal
		}
		return nil
	}).AnyTimes()
	backend.EXPECT().
		Authenticate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, remote.Credentials) (*remote.Principal, error) {
			authenticated = true
			return principal, nil
		})
	backend.EXPECT().List(gomock.Any(), gomock.Any(), "user-1", gomock.Any()).Return(nil).AnyTimes()
	backend.EXPECT().SignOut(gomock.Any()).DoAndReturn(func(context.Context) error {
		authenticated = false
		return nil
	})

	sess, _ := newSession(t, backend)

	require.NoError(t, sess.Connect(context.Background(), testConfig))
	require.NoError(t, sess.Login(context.Background(), remote.Credentials{Email: "a@b.c", Password: "pw"}))
	require.NoError(t, sess.Logout(context.Background()))

	assert.Equal(t, session.StateConnectedUnauthenticated, sess.State())
	assert.Empty(t, sess.Transactions().Snapshot())
}

func TestSession_DisconnectRestoresLocalData(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	removed := false

	backend := remote.NewMockBackend(ctrl)
	backend.EXPECT().Initialize(testConfig).Return(nil)
	backend.EXPECT().OnPrincipalChange(gomock.Any()).Return(func() { removed = true })
	backend.EXPECT().Principal().Return(nil).AnyTimes()

	sess, kv := newSession(t, backend)

	require.NoError(t, sess.Connect(context.Background(), testConfig))
	require.NoError(t, sess.Disconnect(context.Background()))

	assert.Equal(t, session.StateDisconnected, sess.State())
	assert.True(t, removed, "the auth listener must be detached")
	assert.Len(t, sess.Transactions().Snapshot(), len(localstore.SeedTransactions()))

	_, found, err := kv.Get(localstore.KeyRemoteConfig)
	require.NoError(t, err)
	assert.False(t, found, "disconnect forgets the stored remote config")
}

func TestSession_DisconnectWhenDisconnected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sess, _ := newSession(t, remote.NewMockBackend(ctrl))

	assert.NoError(t, sess.Disconnect(context.Background()))
	assert.Equal(t, session.StateDisconnected, sess.State())
}

func TestSession_RestoreReconnectsFromStoredConfig(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := remote.NewMockBackend(ctrl)
	backend.EXPECT().Initialize(testConfig).Return(nil)
	backend.EXPECT().OnPrincipalChange(gomock.Any()).Return(func() {})
	backend.EXPECT().Principal().Return(nil).AnyTimes()

	kv := localstore.NewMemKV()
	require.NoError(t, kv.Set(localstore.KeyRemoteConfig,
		`{"projectUrl":"https://abc.supabase.co","apiKey":"anon-key"}`))

	sess, err := session.New(kv, backend, slog.Default())
	require.NoError(t, err)

	found, err := sess.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, session.StateConnectedUnauthenticated, sess.State())
}

func TestSession_RestoreWithoutStoredConfig(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sess, _ := newSession(t, remote.NewMockBackend(ctrl))

	found, err := sess.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, session.StateDisconnected, sess.State())
}

func TestSession_PrincipalLossClearsData(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	principal := &remote.Principal{ID: "user-1"}
	authenticated := false

	var onChange func(*remote.Principal)

	backend := remote.NewMockBackend(ctrl)
	backend.EXPECT().Initialize(testConfig).Return(nil)
	backend.EXPECT().
		OnPrincipalChange(gomock.Any()).
		DoAndReturn(func(fn func(*remote.Principal)) func() {
			onChange = fn
			return func() {}
		})
	backend.EXPECT().Principal().DoAndReturn(func() *remote.Principal {
		if authenticated {
			return principal
		}
		return nil
	}).AnyTimes()
	backend.EXPECT().
		Authenticate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, remote.Credentials) (*remote.Principal, error) {
			authenticated = true
			return principal, nil
		})
	backend.EXPECT().List(gomock.Any(), gomock.Any(), "user-1", gomock.Any()).Return(nil).AnyTimes()

	sess, _ := newSession(t, backend)

	require.NoError(t, sess.Connect(context.Background(), testConfig))
	require.NoError(t, sess.Login(context.Background(), remote.Credentials{Email: "a@b.c", Password: "pw"}))
	require.NotNil(t, onChange)

	// Simulate the backend losing the principal, as on token expiry.
	authenticated = false
	onChange(nil)

	assert.Equal(t, session.StateConnectedUnauthenticated, sess.State())
	assert.Empty(t, sess.Transactions().Snapshot())
}

func TestSession_UnauthenticatedRemoteWrites(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := remote.NewMockBackend(ctrl)
	backend.EXPECT().Initialize(testConfig).Return(nil)
	backend.EXPECT().OnPrincipalChange(gomock.Any()).Return(func() {})
	backend.EXPECT().Principal().Return(nil).AnyTimes()

	sess, _ := newSession(t, backend)

	require.NoError(t, sess.Connect(context.Background(), testConfig))

	err := sess.Transactions().Add(context.Background(), ledger.Transaction{
		Date:      "2024-02-01",
		PlanType:  ledger.PlanPlus,
		CostPrice: 20,
		SalePrice: 28,
		Quantity:  1,
		Currency:  "USD",
	})
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
}
