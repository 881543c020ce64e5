package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/rbac-console/internal/models"
)

// MemoryUserRepository keeps users in process memory. It backs local runs without
// PostgreSQL and the in-process gateway used by client tests.
type MemoryUserRepository struct {
	mu        sync.RWMutex
	users     map[string]*models.User
	seq       int64
	order     map[string]int64
	auditLogs []models.AuditLog
}

// NewMemoryUserRepository returns an empty in-memory repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]*models.User),
		order: make(map[string]int64),
	}
}

// FindByEmail returns a user by email address.
func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range r.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

// FindByID returns a user by identifier.
func (r *MemoryUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *u
	return &copy, nil
}

// UpdateLastLogin updates the last login timestamp.
func (r *MemoryUserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastLogin = &ts
		u.UpdatedAt = ts
	}
	return nil
}

// List returns one page of users in insertion order plus the total match count.
func (r *MemoryUserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var matched []*models.User
	for _, u := range r.users {
		if filter.Role != nil && u.Role != models.Role(strings.ToLower(string(*filter.Role))) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) && !strings.Contains(u.Email, search) {
			continue
		}
		matched = append(matched, u)
	}
	sort.Slice(matched, func(i, j int) bool {
		return r.order[matched[i].ID] < r.order[matched[j].ID]
	})

	page, limit := normalisePage(filter.Page, filter.Limit)
	offset := (page - 1) * limit
	users := []models.User{}
	for i := offset; i < len(matched) && i < offset+limit; i++ {
		users = append(users, *matched[i])
	}
	return users, len(matched), nil
}

// Count returns the number of stored users.
func (r *MemoryUserRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}

// Create stores a new user.
func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(user.Email)

	copy := *user
	r.users[user.ID] = &copy
	r.seq++
	r.order[user.ID] = r.seq
	return nil
}

// Update replaces the stored user.
func (r *MemoryUserRepository) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	user.UpdatedAt = time.Now().UTC()
	copy := *user
	r.users[user.ID] = &copy
	return nil
}

// Delete removes a user.
func (r *MemoryUserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.users, id)
	delete(r.order, id)
	return nil
}

// RoleStatusCounts groups users by role and status.
func (r *MemoryUserRepository) RoleStatusCounts(ctx context.Context) ([]models.RoleStatusCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	type key struct {
		role   models.Role
		status models.UserStatus
	}
	counts := make(map[key]int)
	for _, u := range r.users {
		counts[key{u.Role, u.Status}]++
	}
	rows := make([]models.RoleStatusCount, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, models.RoleStatusCount{Role: k.role, Status: k.status, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Role != rows[j].Role {
			return rows[i].Role < rows[j].Role
		}
		return rows[i].Status < rows[j].Status
	})
	return rows, nil
}

// CreateAuditLog records an audit entry.
func (r *MemoryUserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	r.auditLogs = append(r.auditLogs, *log)
	return nil
}

// AuditLogs returns a copy of the recorded audit entries.
func (r *MemoryUserRepository) AuditLogs() []models.AuditLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AuditLog, len(r.auditLogs))
	copy(out, r.auditLogs)
	return out
}
