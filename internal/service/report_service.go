package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rbac-console/internal/models"
	appErrors "github.com/noah-isme/rbac-console/pkg/errors"
)

const (
	reportSummaryCacheKey = "reports:summary"
	reportCachePattern    = "reports:*"
)

type reportRepository interface {
	RoleStatusCounts(ctx context.Context) ([]models.RoleStatusCount, error)
}

// ReportService aggregates the user directory for the reports view.
type ReportService struct {
	repo   reportRepository
	cache  *CacheService
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportRepository, cache *CacheService, logger *zap.Logger, ttl time.Duration) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, cache: cache, logger: logger, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Summary returns role and status counts with percentages.
func (s *ReportService) Summary(ctx context.Context) (*models.ReportSummary, error) {
	var cached models.ReportSummary
	if hit, _ := s.cache.Get(ctx, reportSummaryCacheKey, &cached); hit {
		return &cached, nil
	}

	rows, err := s.repo.RoleStatusCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build report summary")
	}

	summary := models.NewReportSummary(rows, s.now())
	_ = s.cache.Set(ctx, reportSummaryCacheKey, summary, s.ttl)
	return &summary, nil
}
