package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rbac-console/internal/models"
)

func seedMemory(t *testing.T, repo *MemoryUserRepository, n int, role models.Role) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Create(context.Background(), &models.User{
			Name:   fmt.Sprintf("%s %02d", role, i),
			Email:  fmt.Sprintf("%s%02d@school.com", role, i),
			Role:   role,
			Status: models.StatusActive,
		}))
	}
}

func TestMemoryListPaginatesInInsertionOrder(t *testing.T) {
	repo := NewMemoryUserRepository()
	seedMemory(t, repo, 23, models.RoleStudent)

	users, total, err := repo.List(context.Background(), models.UserFilter{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 23, total)
	require.Len(t, users, 3)
	assert.Equal(t, "student 20", users[0].Name)

	users, total, err = repo.List(context.Background(), models.UserFilter{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 23, total)
	assert.Empty(t, users)
}

func TestMemoryListFilters(t *testing.T) {
	repo := NewMemoryUserRepository()
	seedMemory(t, repo, 3, models.RoleStudent)
	seedMemory(t, repo, 2, models.RoleTeacher)

	role := models.Role("TEACHER")
	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, users, 2)

	_, total, err = repo.List(context.Background(), models.UserFilter{Search: "STUDENT01"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestMemoryListSearchMatchesWildcardsLiterally(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &models.User{Name: "Half_Price 50%", Email: "half@school.com", Role: models.RoleStudent}))
	require.NoError(t, repo.Create(ctx, &models.User{Name: "HalfXPrice 500", Email: "halfx@school.com", Role: models.RoleStudent}))

	users, total, err := repo.List(ctx, models.UserFilter{Search: "half_price 50%"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "half@school.com", users[0].Email)
}

func TestMemoryDeleteAndFind(t *testing.T) {
	repo := NewMemoryUserRepository()
	user := &models.User{Name: "A", Email: "A@school.com", Role: models.RoleStudent}
	require.NoError(t, repo.Create(context.Background(), user))

	found, err := repo.FindByEmail(context.Background(), "a@SCHOOL.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	require.NoError(t, repo.Delete(context.Background(), user.ID))
	_, err = repo.FindByID(context.Background(), user.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.ErrorIs(t, repo.Delete(context.Background(), user.ID), sql.ErrNoRows)
}

func TestMemoryRoleStatusCounts(t *testing.T) {
	repo := NewMemoryUserRepository()
	seedMemory(t, repo, 2, models.RoleStudent)
	require.NoError(t, repo.Create(context.Background(), &models.User{Name: "x", Email: "x@school.com", Role: models.RoleStudent, Status: models.StatusInactive}))

	rows, err := repo.RoleStatusCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.RoleStatusCount{Role: models.RoleStudent, Status: models.StatusActive, Count: 2}, rows[0])
	assert.Equal(t, 1, rows[1].Count)
}
