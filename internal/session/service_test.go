package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-checkout/pkg/auth"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

var jwtCfg = config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 30}

func mint(t *testing.T, now time.Time) string {
	t.Helper()
	token, err := auth.MintAccessToken(jwtCfg, now, auth.AccessTokenPayload{
		UserID: "user-1",
		Email:  "ada@example.com",
		Name:   "Ada",
		Role:   enums.UserRoleBuyer,
	})
	require.NoError(t, err)
	return token
}

func TestSignInStoresUserAndToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc, err := NewService(store, jwtCfg, nil)
	require.NoError(t, err)

	token := mint(t, time.Now())
	state, err := svc.SignIn(ctx, "sess-1", token)
	require.NoError(t, err)
	assert.True(t, state.IsAuthenticated)
	require.NotNil(t, state.User)
	assert.Equal(t, "user-1", state.User.ID)
	assert.Equal(t, enums.UserRoleBuyer, state.User.Role)

	got, err := svc.Token(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, token, got)

	loaded, err := svc.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, loaded.IsAuthenticated)
}

func TestSignInRejectsBadToken(t *testing.T) {
	svc, err := NewService(NewMemoryStore(), jwtCfg, nil)
	require.NoError(t, err)

	_, err = svc.SignIn(context.Background(), "sess-1", "not-a-jwt")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.SignIn(context.Background(), "sess-1", " ")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestClearTokenKeepsUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc, err := NewService(store, jwtCfg, nil)
	require.NoError(t, err)
	token := mint(t, time.Now())
	_, err = svc.SignIn(ctx, "sess-1", token)
	require.NoError(t, err)

	require.NoError(t, svc.ClearToken(ctx, "sess-1", token))
	state, err := svc.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, state.IsAuthenticated)
	assert.Empty(t, state.Token)
	require.NotNil(t, state.User)

	stored, err := svc.Token(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestClearTokenIgnoresNewerSignIn(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(NewMemoryStore(), jwtCfg, nil)
	require.NoError(t, err)
	current := mint(t, time.Now())
	_, err = svc.SignIn(ctx, "sess-1", current)
	require.NoError(t, err)

	require.NoError(t, svc.ClearToken(ctx, "sess-1", "rejected-earlier"))
	token, err := svc.Token(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, current, token)
}

// gatedStore parks the first Load until release is closed.
type gatedStore struct {
	*MemoryStore
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (g *gatedStore) Load(ctx context.Context, key string) (AuthState, bool, error) {
	state, found, err := g.MemoryStore.Load(ctx, key)
	g.once.Do(func() {
		close(g.loaded)
		<-g.release
	})
	return state, found, err
}

func TestClearTokenSerializesWithSignIn(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{MemoryStore: NewMemoryStore(), loaded: make(chan struct{}), release: make(chan struct{})}
	old := mint(t, time.Now().Add(-time.Minute))
	require.NoError(t, store.MemoryStore.Save(ctx, "sess-1", AuthState{User: &User{ID: "user-1"}, Token: old, IsAuthenticated: true}))
	svc, err := NewService(store, jwtCfg, nil)
	require.NoError(t, err)

	cleared := make(chan error, 1)
	go func() { cleared <- svc.ClearToken(ctx, "sess-1", old) }()
	<-store.loaded

	fresh := mint(t, time.Now())
	signedIn := make(chan error, 1)
	go func() {
		_, err := svc.SignIn(ctx, "sess-1", fresh)
		signedIn <- err
	}()

	select {
	case err := <-signedIn:
		t.Fatalf("sign-in finished while a clear was in progress: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	close(store.release)
	require.NoError(t, <-cleared)
	require.NoError(t, <-signedIn)

	stored, _, err := store.MemoryStore.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, fresh, stored.Token)
	assert.True(t, stored.IsAuthenticated)
}

func TestGetClearsExpiredToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc, err := NewService(store, jwtCfg, nil)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "sess-1", AuthState{
		User:            &User{ID: "user-1"},
		Token:           mint(t, time.Now().Add(-2*time.Hour)),
		IsAuthenticated: true,
	}))

	state, err := svc.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, state.IsAuthenticated)

	stored, _, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, stored.Token)
}

func TestSignOutDeletesState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc, err := NewService(store, jwtCfg, nil)
	require.NoError(t, err)
	_, err = svc.SignIn(ctx, "sess-1", mint(t, time.Now()))
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, "sess-1"))
	_, found, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, found)
}
