package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rbac-console/internal/gateway"
	"github.com/noah-isme/rbac-console/internal/gateway/gatewaytest"
	"github.com/noah-isme/rbac-console/internal/models"
	"github.com/noah-isme/rbac-console/internal/permission"
	appErrors "github.com/noah-isme/rbac-console/pkg/errors"
)

func newGatewayClient(srv *gatewaytest.Server) *gateway.Client {
	return gateway.NewClient(gateway.Config{BaseURL: srv.URL}, srv.Client(), nil)
}

func TestNewStoreInitialState(t *testing.T) {
	ctx := context.Background()

	empty := NewStore(ctx, nil, NewMemoryTokenStore(""), nil)
	snap := empty.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)

	held := NewStore(ctx, nil, NewMemoryTokenStore("persisted"), nil)
	snap = held.Snapshot()
	assert.Equal(t, StateResuming, snap.State)
	assert.True(t, snap.Loading)
	assert.Equal(t, "persisted", snap.Token)
}

func TestLoginPersistsTokenAndResumeRestoresUser(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	client := newGatewayClient(srv)
	tokens := NewMemoryTokenStore("")
	ctx := context.Background()

	store := NewStore(ctx, client, tokens, nil)
	snap, err := store.Login(ctx, gatewaytest.PrincipalEmail, gatewaytest.PrincipalPassword)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, snap.State)
	require.NotNil(t, snap.User)
	assert.Equal(t, models.RolePrincipal, snap.User.Role)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)

	persisted, err := tokens.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Token, persisted)

	fresh := NewStore(ctx, client, tokens, nil)
	resumed := fresh.Resume(ctx)
	assert.Equal(t, StateAuthenticated, resumed.State)
	require.NotNil(t, resumed.User)
	assert.Equal(t, snap.User.ID, resumed.User.ID)
	assert.Equal(t, snap.User.Email, resumed.User.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	tokens := NewMemoryTokenStore("")
	ctx := context.Background()

	store := NewStore(ctx, newGatewayClient(srv), tokens, nil)
	snap, err := store.Login(ctx, gatewaytest.PrincipalEmail, "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCredential))
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, MessageInvalidCredentials, snap.Error)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)

	persisted, _ := tokens.Load(ctx)
	assert.Empty(t, persisted)

	cleared := store.ClearError()
	assert.Equal(t, StateAnonymous, cleared.State)
	assert.Empty(t, cleared.Error)
}

func TestLoginTransportFailure(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	client := newGatewayClient(srv)
	srv.Close()

	store := NewStore(context.Background(), client, nil, nil)
	snap, err := store.Login(context.Background(), gatewaytest.PrincipalEmail, gatewaytest.PrincipalPassword)
	require.Error(t, err)
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, MessageLoginFailed, snap.Error)
}

func TestLogoutClearsEverything(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	client := newGatewayClient(srv)
	tokens := NewMemoryTokenStore("")
	ctx := context.Background()

	store := NewStore(ctx, client, tokens, nil)
	_, err := store.Login(ctx, gatewaytest.TeacherEmail, gatewaytest.TeacherPassword)
	require.NoError(t, err)
	require.True(t, store.Can(permission.CanAccessReports))

	snap := store.Logout(ctx)
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
	assert.Empty(t, store.Token())
	assert.False(t, store.Can(permission.CanAccessProfile))

	persisted, _ := tokens.Load(ctx)
	assert.Empty(t, persisted)
}

func TestResumeWithRejectedTokenIsSilent(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	tokens := NewMemoryTokenStore("expired-token")
	ctx := context.Background()

	store := NewStore(ctx, newGatewayClient(srv), tokens, nil)
	snap := store.Resume(ctx)
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Empty(t, snap.Error)
	assert.Empty(t, snap.Token)

	persisted, _ := tokens.Load(ctx)
	assert.Empty(t, persisted)
}

func TestResumeOnlyActsWhenResuming(t *testing.T) {
	gw := &fakeGateway{}
	store := NewStore(context.Background(), gw, NewMemoryTokenStore(""), nil)

	snap := store.Resume(context.Background())
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Zero(t, gw.currentUserCalls)
}

func TestCanFollowsRole(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	ctx := context.Background()
	store := NewStore(ctx, newGatewayClient(srv), nil, nil)

	_, err := store.Login(ctx, gatewaytest.StudentEmail, gatewaytest.StudentPassword)
	require.NoError(t, err)
	assert.True(t, store.Can(permission.CanAccessProfile))
	assert.False(t, store.Can(permission.CanAccessUsers))
	assert.False(t, store.Can(permission.CanAccessReports))
}

func TestSaveFailureStillAuthenticates(t *testing.T) {
	gw := &fakeGateway{token: "tok", user: &models.User{ID: "1", Role: models.RoleTeacher}}
	store := NewStore(context.Background(), gw, failingTokenStore{}, nil)

	snap, err := store.Login(context.Background(), "t@school.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, "tok", snap.Token)
}

func TestLogoutSupersedesInFlightLogin(t *testing.T) {
	gw := &fakeGateway{
		token:   "tok",
		user:    &models.User{ID: "1", Role: models.RolePrincipal},
		release: make(chan struct{}),
		entered: make(chan struct{}),
	}
	tokens := NewMemoryTokenStore("")
	store := NewStore(context.Background(), gw, tokens, nil)

	var wg sync.WaitGroup
	var loginErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, loginErr = store.Login(context.Background(), "p@school.com", "pw")
	}()

	<-gw.entered
	assert.Equal(t, StateAuthenticating, store.Snapshot().State)
	assert.True(t, store.Snapshot().Loading)
	store.Logout(context.Background())
	close(gw.release)
	wg.Wait()

	assert.ErrorIs(t, loginErr, ErrSuperseded)
	snap := store.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Empty(t, snap.Token)
	persisted, _ := tokens.Load(context.Background())
	assert.Empty(t, persisted)
}

func TestLoginMessage(t *testing.T) {
	assert.Equal(t, MessageInvalidCredentials, loginMessage(appErrors.WithStatus(appErrors.ErrCredential, http.StatusUnauthorized)))
	assert.Equal(t, MessageLoginFailed, loginMessage(appErrors.ErrNetwork))
	assert.Equal(t, MessageLoginFailed, loginMessage(errors.New("plain")))
}

type fakeGateway struct {
	mu               sync.Mutex
	token            string
	user             *models.User
	loginErr         error
	currentUserCalls int
	entered          chan struct{}
	release          chan struct{}
}

func (f *fakeGateway) Login(ctx context.Context, email, password string) (string, error) {
	if f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		<-f.release
	}
	return f.token, f.loginErr
}

func (f *fakeGateway) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentUserCalls++
	if f.user == nil {
		return nil, appErrors.WithStatus(appErrors.ErrSessionInvalid, http.StatusUnauthorized)
	}
	return f.user, nil
}

type failingTokenStore struct{}

func (failingTokenStore) Load(ctx context.Context) (string, error) { return "", nil }
func (failingTokenStore) Save(ctx context.Context, token string) error {
	return errors.New("disk full")
}
func (failingTokenStore) Clear(ctx context.Context) error { return nil }
