package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/rbac-console/internal/dto"
	"github.com/noah-isme/rbac-console/internal/models"
	appErrors "github.com/noah-isme/rbac-console/pkg/errors"
)

type mockUserRepo struct {
	users      map[string]*models.User
	listErr    error
	countErr   error
	lastFilter models.UserFilter
	listCalls  int
	auditLogs  []*models.AuditLog
	auditErr   error
}

func newMockUserRepo(users ...models.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*models.User)}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.listCalls++
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, len(users), nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if u, ok := m.users[id]; ok {
		u.LastLogin = &ts
	}
	return nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return m.auditErr
}

func newTestUserService(repo *mockUserRepo) *UserService {
	return NewUserService(repo, nil, zap.NewNop(), nil, UserServiceConfig{PasswordCost: bcrypt.MinCost})
}

func TestUserServiceListPagination(t *testing.T) {
	repo := newMockUserRepo(
		models.User{ID: "1", Email: "a@school.com", Role: models.RoleStudent},
		models.User{ID: "2", Email: "b@school.com", Role: models.RoleStudent},
	)
	svc := newTestUserService(repo)

	resp, err := svc.List(context.Background(), dto.ListUsersQuery{Page: 0, Limit: 0, Search: "  ali ", Role: "Student"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 10, resp.Limit)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.TotalPages)
	require.NotNil(t, repo.lastFilter.Role)
	assert.Equal(t, models.RoleStudent, *repo.lastFilter.Role)
	assert.Equal(t, "ali", repo.lastFilter.Search)
}

func TestUserServiceListTotalPagesRoundsUp(t *testing.T) {
	var users []models.User
	for i := 0; i < 23; i++ {
		users = append(users, models.User{ID: string(rune('a' + i))})
	}
	svc := newTestUserService(newMockUserRepo(users...))

	resp, err := svc.List(context.Background(), dto.ListUsersQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.TotalPages)
}

func TestUserServiceListCapsLimit(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil, nil, UserServiceConfig{MaxPageSize: 50})

	resp, err := svc.List(context.Background(), dto.ListUsersQuery{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 50, resp.Limit)
	assert.Equal(t, 0, resp.TotalPages)
	assert.NotNil(t, resp.Users)
}

func TestUserServiceListRejectsUnknownRole(t *testing.T) {
	svc := newTestUserService(newMockUserRepo())

	_, err := svc.List(context.Background(), dto.ListUsersQuery{Role: "janitor"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceListRepositoryError(t *testing.T) {
	repo := newMockUserRepo()
	repo.listErr = errors.New("db down")
	svc := newTestUserService(repo)

	_, err := svc.List(context.Background(), dto.ListUsersQuery{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreate(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo)

	user, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Name:     "New Teacher",
		Email:    "New.Teacher@School.com",
		Password: "secret1",
		Role:     "Teacher",
	}, "actor", models.RequestMeta{IP: "127.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "new.teacher@school.com", user.Email)
	assert.Equal(t, models.RoleTeacher, user.Role)
	assert.Equal(t, models.StatusActive, user.Status)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
	require.NotNil(t, repo.auditLogs[0].UserID)
	assert.Equal(t, "actor", *repo.auditLogs[0].UserID)
}

func TestUserServiceCreateDefaultsToStudent(t *testing.T) {
	svc := newTestUserService(newMockUserRepo())

	user, err := svc.Create(context.Background(), dto.CreateUserRequest{Name: "S", Email: "s@school.com", Password: "secret1"}, "", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo(models.User{ID: "1", Email: "dup@school.com"})
	svc := newTestUserService(repo)

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{Name: "X", Email: "DUP@school.com", Password: "secret1"}, "", models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestUserServiceCreateValidation(t *testing.T) {
	svc := newTestUserService(newMockUserRepo())

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{Name: "X", Email: "not-an-email", Password: "1"}, "", models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceUpdatePartial(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("oldpass"), bcrypt.MinCost)
	repo := newMockUserRepo(models.User{ID: "1", Name: "Old", Email: "old@school.com", Role: models.RoleStudent, Status: models.StatusActive, PasswordHash: string(hash)})
	svc := newTestUserService(repo)

	name := "Renamed"
	password := "newpass"
	user, err := svc.Update(context.Background(), "1", dto.UpdateUserRequest{Name: &name, Password: &password}, "actor", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", user.Name)
	assert.Equal(t, "old@school.com", user.Email)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["1"].PasswordHash), []byte("newpass")))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserUpdate, repo.auditLogs[0].Action)
}

func TestUserServiceUpdateEmailConflict(t *testing.T) {
	repo := newMockUserRepo(
		models.User{ID: "1", Email: "a@school.com"},
		models.User{ID: "2", Email: "b@school.com"},
	)
	svc := newTestUserService(repo)

	email := "B@school.com"
	_, err := svc.Update(context.Background(), "1", dto.UpdateUserRequest{Email: &email}, "", models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestUserServiceUpdateNotFound(t *testing.T) {
	svc := newTestUserService(newMockUserRepo())

	name := "x"
	_, err := svc.Update(context.Background(), "missing", dto.UpdateUserRequest{Name: &name}, "", models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceDelete(t *testing.T) {
	repo := newMockUserRepo(models.User{ID: "1", Email: "a@school.com"})
	svc := newTestUserService(repo)

	require.NoError(t, svc.Delete(context.Background(), "1", "actor", models.RequestMeta{IP: "10.0.0.1"}))
	assert.Empty(t, repo.users)
	require.Len(t, repo.auditLogs, 1)
	entry := repo.auditLogs[0]
	assert.Equal(t, models.AuditActionUserDelete, entry.Action)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "1", *entry.ResourceID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "actor", *entry.UserID)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)

	err := svc.Delete(context.Background(), "1", "actor", models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceSeedDefaults(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo)

	created, err := svc.SeedDefaults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(DefaultUsers), created)

	principal, err := repo.FindByEmail(context.Background(), "principal@school.com")
	require.NoError(t, err)
	assert.Equal(t, models.RolePrincipal, principal.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte("principal123")))

	created, err = svc.SeedDefaults(context.Background())
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestUserServiceAuditFailureDoesNotFailMutation(t *testing.T) {
	repo := newMockUserRepo(models.User{ID: "1", Email: "a@school.com"})
	repo.auditErr = errors.New("audit down")
	svc := newTestUserService(repo)

	require.NoError(t, svc.Delete(context.Background(), "1", "", models.RequestMeta{}))
	require.Len(t, repo.auditLogs, 1)
	assert.Nil(t, repo.auditLogs[0].UserID)
}
