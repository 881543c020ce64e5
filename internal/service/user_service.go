package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/rbac-console/internal/dto"
	"github.com/noah-isme/rbac-console/internal/models"
	appErrors "github.com/noah-isme/rbac-console/pkg/errors"
)

const (
	userListCachePrefix  = "users:list:"
	userListCachePattern = "users:list:*"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Count(ctx context.Context) (int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserServiceConfig tunes user management.
type UserServiceConfig struct {
	PasswordCost int
	MaxPageSize  int
	CacheTTL     time.Duration
}

// DefaultUser is an account created on an empty directory.
type DefaultUser struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

// DefaultUsers are the accounts seeded on first start.
var DefaultUsers = []DefaultUser{
	{Name: "Principal User", Email: "principal@school.com", Password: "principal123", Role: models.RolePrincipal},
	{Name: "Teacher User", Email: "teacher@school.com", Password: "teacher123", Role: models.RoleTeacher},
	{Name: "Student User", Email: "student@school.com", Password: "student123", Role: models.RoleStudent},
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
	cache     *CacheService
	config    UserServiceConfig
	auditor   AuditRecorder
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger, cache *CacheService, config UserServiceConfig) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.PasswordCost == 0 {
		config.PasswordCost = bcrypt.DefaultCost
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = 1000
	}
	return &UserService{repo: repo, validator: validate, logger: logger, cache: cache, config: config}
}

// WithAuditRecorder routes audit entries through r instead of the repository.
func (s *UserService) WithAuditRecorder(r AuditRecorder) *UserService {
	s.auditor = r
	return s
}

// List returns one page of users and pagination metadata.
func (s *UserService) List(ctx context.Context, query dto.ListUsersQuery) (*dto.ListUsersResponse, error) {
	role, ok := models.ParseRole(string(query.Role))
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role filter")
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > s.config.MaxPageSize {
		limit = s.config.MaxPageSize
	}
	search := strings.TrimSpace(query.Search)

	cacheKey := fmt.Sprintf("%s%s:%d:%d:%s", userListCachePrefix, role, page, limit, strings.ToLower(search))
	var cached dto.ListUsersResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	filter := models.UserFilter{Search: search, Page: page, Limit: limit}
	if role != "" {
		filter.Role = &role
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}

	resp := &dto.ListUsersResponse{
		Users:      users,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}
	_ = s.cache.Set(ctx, cacheKey, resp, s.config.CacheTTL)
	return resp, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create adds a new user.
func (s *UserService) Create(ctx context.Context, req dto.CreateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	req.Role = models.Role(strings.ToLower(string(req.Role)))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}

	if err := s.ensureEmailFree(ctx, req.Email, ""); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.PasswordCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		Status:       req.Status,
		PasswordHash: string(passwordHash),
	}
	if user.Role == "" {
		user.Role = models.RoleStudent
	}
	if user.Status == "" {
		user.Status = models.StatusActive
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"id": user.ID, "email": user.Email, "role": user.Role})
	s.audit(ctx, models.AuditActionUserCreate, actorID, user.ID, nil, newPayload, meta)
	s.invalidate(ctx)

	return user, nil
}

// Update applies the provided fields to a user. A provided password is re-hashed.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email
	}
	if req.Role != nil {
		role := models.Role(strings.ToLower(string(*req.Role)))
		req.Role = &role
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"name": user.Name, "email": user.Email, "role": user.Role, "status": user.Status})

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil && *req.Email != user.Email {
		if err := s.ensureEmailFree(ctx, *req.Email, user.ID); err != nil {
			return nil, err
		}
		user.Email = *req.Email
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Status != nil {
		user.Status = *req.Status
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.config.PasswordCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		user.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"name": user.Name, "email": user.Email, "role": user.Role, "status": user.Status, "password_changed": req.Password != nil})
	s.audit(ctx, models.AuditActionUserUpdate, actorID, user.ID, oldPayload, newPayload, meta)
	s.invalidate(ctx)

	return user, nil
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	s.audit(ctx, models.AuditActionUserDelete, actorID, id, nil, []byte(`{"deleted":true}`), meta)
	s.invalidate(ctx)
	return nil
}

// SeedDefaults creates DefaultUsers when the directory is empty. It returns the number
// of users created.
func (s *UserService) SeedDefaults(ctx context.Context) (int, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	if total > 0 {
		return 0, nil
	}

	created := 0
	for _, def := range DefaultUsers {
		if _, err := s.Create(ctx, dto.CreateUserRequest{
			Name:     def.Name,
			Email:    def.Email,
			Password: def.Password,
			Role:     def.Role,
		}, "", models.RequestMeta{}); err != nil {
			return created, err
		}
		created++
	}
	s.logger.Info("seeded default users", zap.Int("count", created))
	return created, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		if existing.ID == selfID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	return nil
}

func (s *UserService) audit(ctx context.Context, action, actorID, resourceID string, oldValues, newValues []byte, meta models.RequestMeta) {
	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		Action:     action,
		Resource:   "users",
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
		CreatedAt:  time.Now().UTC(),
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if err := s.recordAudit(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *UserService) recordAudit(ctx context.Context, entry *models.AuditLog) error {
	if s.auditor != nil {
		return s.auditor.Record(ctx, entry)
	}
	return s.repo.CreateAuditLog(ctx, entry)
}

func (s *UserService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, userListCachePattern)
	_ = s.cache.Invalidate(ctx, reportCachePattern)
}
