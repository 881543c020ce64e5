// Package session owns the signed-in user of the console: it logs in, resumes a
// persisted token and logs out, and answers capability checks for the current user.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/rbac-console/internal/models"
	"github.com/noah-isme/rbac-console/internal/permission"
	appErrors "github.com/noah-isme/rbac-console/pkg/errors"
)

// State is the lifecycle position of a session.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateResuming       State = "resuming"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateError          State = "error"
)

// Messages surfaced by a failed login.
const (
	MessageInvalidCredentials = "Invalid credentials"
	MessageLoginFailed        = "Login failed"
)

// ErrSuperseded is returned by Login when a later Login or Logout replaced the attempt
// before it completed.
var ErrSuperseded = errors.New("session: login superseded")

// Gateway is the subset of the API gateway the session needs.
type Gateway interface {
	Login(ctx context.Context, email, password string) (string, error)
	CurrentUser(ctx context.Context, token string) (*models.User, error)
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	State   State
	User    *models.User
	Token   string
	Loading bool
	Error   string
}

// Authenticated reports whether a user is signed in.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated
}

// Store is the session state machine. The mutex is never held across a gateway call.
type Store struct {
	gateway Gateway
	tokens  TokenStore
	logger  *zap.Logger

	mu      sync.Mutex
	state   State
	user    *models.User
	token   string
	loading bool
	errMsg  string
	seq     uint64

	// persistMu orders token persistence with the attempt sequence so a superseded
	// login can never write its token after a newer Logout cleared it.
	persistMu sync.Mutex
}

// NewStore reads the persisted token once. With a token the store starts in
// StateResuming, otherwise in StateAnonymous.
func NewStore(ctx context.Context, gateway Gateway, tokens TokenStore, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokens == nil {
		tokens = NewMemoryTokenStore("")
	}
	s := &Store{gateway: gateway, tokens: tokens, logger: logger, state: StateAnonymous}

	token, err := tokens.Load(ctx)
	if err != nil {
		logger.Warn("failed to load persisted token", zap.Error(err))
	}
	if token != "" {
		s.token = token
		s.state = StateResuming
		s.loading = true
	}
	return s
}

// Snapshot returns the current session.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Token returns the bearer token of the current session, empty when signed out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Can reports whether the current user holds capability. It is false without a user.
func (s *Store) Can(capability permission.Capability) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return false
	}
	return permission.Capable(s.user.Role, capability)
}

// Resume validates the persisted token. It only acts in StateResuming. A rejected
// token moves the session to StateAnonymous and clears the persisted token; the
// failure itself is never surfaced.
func (s *Store) Resume(ctx context.Context) Snapshot {
	s.mu.Lock()
	if s.state != StateResuming {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	s.seq++
	attempt := s.seq
	token := s.token
	s.mu.Unlock()

	user, err := s.gateway.CurrentUser(ctx, token)

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if attempt != s.seq {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	if err == nil {
		s.user = cloneUser(user)
		s.state = StateAuthenticated
		s.loading = false
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	s.resetLocked(StateAnonymous)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("persisted session rejected", zap.Error(err))
	s.clearPersisted(ctx)
	return snap
}

// Login authenticates and loads the profile of the new token. Both calls must
// succeed before the token is persisted. On failure the session moves to StateError
// with a message and no token.
func (s *Store) Login(ctx context.Context, email, password string) (Snapshot, error) {
	s.mu.Lock()
	s.seq++
	attempt := s.seq
	s.state = StateAuthenticating
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()

	token, err := s.gateway.Login(ctx, email, password)
	var user *models.User
	if err == nil {
		user, err = s.gateway.CurrentUser(ctx, token)
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if superseded, snap := s.superseded(attempt); superseded {
		return snap, ErrSuperseded
	}

	if err != nil {
		s.mu.Lock()
		s.resetLocked(StateError)
		s.errMsg = loginMessage(err)
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.clearPersisted(ctx)
		return snap, err
	}

	if saveErr := s.tokens.Save(ctx, token); saveErr != nil {
		s.logger.Warn("failed to persist session token", zap.Error(saveErr))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt != s.seq {
		return s.snapshotLocked(), ErrSuperseded
	}
	s.state = StateAuthenticated
	s.user = cloneUser(user)
	s.token = token
	s.loading = false
	s.errMsg = ""
	return s.snapshotLocked(), nil
}

// Logout forgets the user and token and clears the persisted token. It makes no
// gateway call and supersedes any login or resume in flight.
func (s *Store) Logout(ctx context.Context) Snapshot {
	s.mu.Lock()
	s.seq++
	s.resetLocked(StateAnonymous)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.clearPersisted(ctx)
	return snap
}

// ClearError leaves StateError for StateAnonymous and drops the message.
func (s *Store) ClearError() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
	if s.state == StateError {
		s.state = StateAnonymous
	}
	return s.snapshotLocked()
}

func (s *Store) superseded(attempt uint64) (bool, Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return attempt != s.seq, s.snapshotLocked()
}

func (s *Store) resetLocked(state State) {
	s.state = state
	s.user = nil
	s.token = ""
	s.loading = false
	s.errMsg = ""
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		State:   s.state,
		User:    cloneUser(s.user),
		Token:   s.token,
		Loading: s.loading,
		Error:   s.errMsg,
	}
}

func (s *Store) clearPersisted(ctx context.Context) {
	if err := s.tokens.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear persisted token", zap.Error(err))
	}
}

// loginMessage maps a login failure to the message shown to the user: rejected
// calls read as bad credentials, transport failures as a failed login.
func loginMessage(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return MessageInvalidCredentials
	}
	return MessageLoginFailed
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	copy := *u
	return &copy
}
