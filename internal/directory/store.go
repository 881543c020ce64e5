// Package directory holds the paginated user directory of the console: the query
// (search, role filter, page, page size), the last fetched page and the user
// management calls.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/rbac-console/internal/dto"
	"github.com/noah-isme/rbac-console/internal/models"
	appErrors "github.com/noah-isme/rbac-console/pkg/errors"
)

// DefaultPageSize is the page size of a new store.
const DefaultPageSize = 10

// PageSizes lists the accepted page sizes.
var PageSizes = []int{5, 10, 20, 50}

// Messages set on the store when a call fails.
const (
	MessageFetchFailed  = "Failed to fetch users"
	MessageCreateFailed = "Failed to create user"
	MessageUpdateFailed = "Failed to update user"
	MessageDeleteFailed = "Failed to delete user"
)

// Gateway is the subset of the API gateway the directory needs.
type Gateway interface {
	ListUsers(ctx context.Context, token string, q dto.ListUsersQuery) (*dto.ListUsersResponse, error)
	CreateUser(ctx context.Context, token string, req dto.CreateUserRequest) (*models.User, error)
	UpdateUser(ctx context.Context, token, id string, req dto.UpdateUserRequest) (*models.User, error)
	DeleteUser(ctx context.Context, token, id string) error
}

// TokenSource supplies the bearer token of the current session.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

// Token returns f().
func (f TokenFunc) Token() string { return f() }

// Config tunes a Store.
type Config struct {
	PageSize             int
	RefreshAfterMutation bool
}

// Query is the directory query state.
type Query struct {
	Search   string
	Role     models.Role
	Page     int
	PageSize int
}

// Snapshot is a point-in-time copy of the directory.
type Snapshot struct {
	Query      Query
	List       []models.User
	TotalItems int
	TotalPages int
	Loading    bool
	Error      string
	// Stale is set by a successful mutation and cleared by the next successful fetch.
	Stale bool
}

// Store is the user directory state. The mutex is never held across a gateway call.
type Store struct {
	gateway Gateway
	tokens  TokenSource
	logger  *zap.Logger
	refresh bool

	mu         sync.Mutex
	query      Query
	list       []models.User
	totalItems int
	totalPages int
	loading    bool
	errMsg     string
	stale      bool
	fetchSeq   uint64
	inFlight   int
}

// NewStore constructs a Store. An unsupported Config.PageSize falls back to
// DefaultPageSize.
func NewStore(gateway Gateway, tokens TokenSource, logger *zap.Logger, cfg Config) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}
	pageSize := cfg.PageSize
	if !ValidPageSize(pageSize) {
		pageSize = DefaultPageSize
	}
	return &Store{
		gateway:    gateway,
		tokens:     tokens,
		logger:     logger,
		refresh:    cfg.RefreshAfterMutation,
		query:      Query{Page: 1, PageSize: pageSize},
		list:       []models.User{},
		totalPages: 1,
	}
}

// ValidPageSize reports whether size is one of PageSizes.
func ValidPageSize(size int) bool {
	for _, s := range PageSizes {
		if s == size {
			return true
		}
	}
	return false
}

// Snapshot returns the current directory state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Fetch loads the page described by the current query. On success it replaces the
// list and totals; on failure it keeps the previous list and records an error. A
// response to a fetch that is no longer the latest is discarded.
func (s *Store) Fetch(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	s.fetchSeq++
	attempt := s.fetchSeq
	s.inFlight++
	s.loading = true
	s.errMsg = ""
	q := s.query
	s.mu.Unlock()

	res, err := s.gateway.ListUsers(ctx, s.tokens.Token(), dto.ListUsersQuery{
		Page:   q.Page,
		Limit:  q.PageSize,
		Search: q.Search,
		Role:   q.Role,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	latest := attempt == s.fetchSeq
	if latest {
		s.loading = false
	} else {
		s.loading = s.inFlight > 0
	}

	if !latest {
		s.logger.Debug("discarding stale directory page", zap.Uint64("attempt", attempt), zap.Uint64("latest", s.fetchSeq))
		return s.snapshotLocked(), nil
	}

	if err != nil {
		s.errMsg = failureMessage(MessageFetchFailed, err)
		s.logger.Warn("directory fetch failed", zap.Error(err))
		return s.snapshotLocked(), err
	}

	s.list = make([]models.User, len(res.Users))
	copy(s.list, res.Users)
	s.totalItems = res.Total
	s.totalPages = res.TotalPages
	if s.totalPages < 1 {
		s.totalPages = 1
	}
	s.stale = false
	return s.snapshotLocked(), nil
}

// SetSearchTerm updates the search term and returns to page 1. It does not fetch.
func (s *Store) SetSearchTerm(term string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query.Search = term
	s.query.Page = 1
	return s.snapshotLocked()
}

// SetRoleFilter updates the role filter and returns to page 1. An empty role clears
// the filter. It does not fetch.
func (s *Store) SetRoleFilter(role models.Role) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query.Role = role
	s.query.Page = 1
	return s.snapshotLocked()
}

// SetPageSize updates the page size and returns to page 1. Sizes outside PageSizes
// are rejected and leave the query untouched.
func (s *Store) SetPageSize(size int) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ValidPageSize(size) {
		return s.snapshotLocked(), appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("page size must be one of %v", PageSizes))
	}
	s.query.PageSize = size
	s.query.Page = 1
	return s.snapshotLocked(), nil
}

// SetPage moves to page p without clamping it to TotalPages.
func (s *Store) SetPage(p int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query.Page = p
	return s.snapshotLocked()
}

// ClearFilters drops the search term and role filter and returns to page 1.
func (s *Store) ClearFilters() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query.Search = ""
	s.query.Role = ""
	s.query.Page = 1
	return s.snapshotLocked()
}

// ClearError drops the current error message.
func (s *Store) ClearError() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
	return s.snapshotLocked()
}

// Create creates a user and returns the gateway's record. The list is not touched.
func (s *Store) Create(ctx context.Context, req dto.CreateUserRequest) (*models.User, error) {
	user, err := s.gateway.CreateUser(ctx, s.tokens.Token(), req)
	if err != nil {
		return nil, s.mutationFailed(MessageCreateFailed, err)
	}
	s.mutationSucceeded(ctx)
	return user, nil
}

// Update applies a partial update and returns the gateway's record. The list is not
// touched.
func (s *Store) Update(ctx context.Context, id string, req dto.UpdateUserRequest) (*models.User, error) {
	user, err := s.gateway.UpdateUser(ctx, s.tokens.Token(), id, req)
	if err != nil {
		return nil, s.mutationFailed(MessageUpdateFailed, err)
	}
	s.mutationSucceeded(ctx)
	return user, nil
}

// Delete removes a user and returns its id. The list is not touched.
func (s *Store) Delete(ctx context.Context, id string) (string, error) {
	if err := s.gateway.DeleteUser(ctx, s.tokens.Token(), id); err != nil {
		return "", s.mutationFailed(MessageDeleteFailed, err)
	}
	s.mutationSucceeded(ctx)
	return id, nil
}

func (s *Store) mutationFailed(message string, err error) error {
	s.mu.Lock()
	s.errMsg = failureMessage(message, err)
	s.mu.Unlock()
	s.logger.Warn("directory mutation failed", zap.String("operation", message), zap.Error(err))
	return err
}

func (s *Store) mutationSucceeded(ctx context.Context) {
	s.mu.Lock()
	s.stale = true
	s.errMsg = ""
	s.mu.Unlock()

	if !s.refresh {
		return
	}
	if _, err := s.Fetch(ctx); err != nil {
		s.logger.Warn("refresh after mutation failed", zap.Error(err))
	}
}

func (s *Store) snapshotLocked() Snapshot {
	list := make([]models.User, len(s.list))
	copy(list, s.list)
	return Snapshot{
		Query:      s.query,
		List:       list,
		TotalItems: s.totalItems,
		TotalPages: s.totalPages,
		Loading:    s.loading,
		Error:      s.errMsg,
		Stale:      s.stale,
	}
}

// failureMessage prefixes the gateway's own message when the call was rejected.
func failureMessage(prefix string, err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Status != 0 && appErr.Err != nil {
		return prefix + ": " + appErr.Err.Error()
	}
	return prefix
}
