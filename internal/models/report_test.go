package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewReportSummary(t *testing.T) {
	now := time.Now()
	summary := NewReportSummary([]RoleStatusCount{
		{Role: RolePrincipal, Status: StatusActive, Count: 1},
		{Role: RoleTeacher, Status: StatusActive, Count: 2},
		{Role: RoleStudent, Status: StatusActive, Count: 4},
		{Role: RoleStudent, Status: StatusInactive, Count: 1},
	}, now)

	assert.Equal(t, 8, summary.TotalUsers)
	assert.Equal(t, 5, summary.ByRole[RoleStudent])
	assert.Equal(t, 7, summary.Active)
	assert.Equal(t, 1, summary.Inactive)
	assert.InDelta(t, 87.5, summary.ActivePercentage, 0.001)
	assert.InDelta(t, 62.5, summary.StudentPercentage, 0.001)
	assert.Equal(t, now, summary.GeneratedAt)
}

func TestNewReportSummaryEmpty(t *testing.T) {
	summary := NewReportSummary(nil, time.Now())
	assert.Zero(t, summary.TotalUsers)
	assert.Zero(t, summary.ActivePercentage)
	assert.Len(t, summary.ByRole, 3)
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Teacher ")
	assert.True(t, ok)
	assert.Equal(t, RoleTeacher, r)

	r, ok = ParseRole("")
	assert.True(t, ok)
	assert.Equal(t, Role(""), r)

	_, ok = ParseRole("janitor")
	assert.False(t, ok)
}
