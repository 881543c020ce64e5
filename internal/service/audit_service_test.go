package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rbac-console/internal/dto"
	"github.com/noah-isme/rbac-console/internal/models"
	"github.com/noah-isme/rbac-console/pkg/jobs"
)

type recordingAuditRepo struct {
	mu      sync.Mutex
	entries []string
	failFor int
}

func (r *recordingAuditRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor > 0 {
		r.failFor--
		return errors.New("audit table locked")
	}
	r.entries = append(r.entries, log.ID)
	return nil
}

func (r *recordingAuditRepo) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

func TestAuditQueueWritesInBackground(t *testing.T) {
	repo := &recordingAuditRepo{failFor: 1}
	audit := NewAuditQueue(repo, nil, jobs.QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
	audit.Start(context.Background())

	require.NoError(t, audit.Record(context.Background(), &models.AuditLog{ID: "a1", Action: models.AuditActionLogin}))
	require.NoError(t, audit.Record(context.Background(), &models.AuditLog{ID: "a2", Action: models.AuditActionUserCreate}))
	require.NoError(t, audit.Close(context.Background()))

	assert.ElementsMatch(t, []string{"a1", "a2"}, repo.ids())
}

func TestAuditQueueFallsBackInline(t *testing.T) {
	repo := &recordingAuditRepo{}
	audit := NewAuditQueue(repo, nil, jobs.QueueConfig{})

	require.NoError(t, audit.Record(context.Background(), &models.AuditLog{ID: "before-start", Action: models.AuditActionLogin}))
	assert.Equal(t, []string{"before-start"}, repo.ids())
}

func TestUserServiceUsesAuditRecorder(t *testing.T) {
	repo := newMockUserRepo()
	recorder := &recordingAuditRepo{}
	svc := newTestUserService(repo).WithAuditRecorder(NewAuditQueue(recorder, nil, jobs.QueueConfig{}))

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{Name: "Q", Email: "queued@school.com", Password: "secret1"}, "actor", models.RequestMeta{})
	require.NoError(t, err)

	assert.Len(t, recorder.ids(), 1)
	assert.Empty(t, repo.auditLogs)
}
