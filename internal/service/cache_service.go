package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/report-card-api/internal/dto"
	appErrors "github.com/noah-isme/report-card-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// OverviewCacheKey is the snapshot key of one student's year.
func OverviewCacheKey(studentID string, year int) string {
	return fmt.Sprintf("overview:%s:%d", studentID, year)
}

func overviewStudentPattern(studentID string) string {
	return fmt.Sprintf("overview:%s:*", studentID)
}

// CacheService stores overview snapshots produced by the background task.
// Every method is a no-op when caching is disabled.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// LoadOverview returns the stored snapshot, reporting false on a miss.
func (s *CacheService) LoadOverview(ctx context.Context, studentID string, year int) (*dto.YearOverview, bool, error) {
	if !s.Enabled() {
		return nil, false, nil
	}
	key := OverviewCacheKey(studentID, year)
	start := time.Now()
	var overview dto.YearOverview
	err := s.repo.Get(ctx, key, &overview)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false, err
	}
	return &overview, true, nil
}

// StoreOverview writes the snapshot with the configured TTL.
func (s *CacheService) StoreOverview(ctx context.Context, studentID string, year int, overview *dto.YearOverview) error {
	if !s.Enabled() || overview == nil {
		return nil
	}
	key := OverviewCacheKey(studentID, year)
	start := time.Now()
	err := s.repo.Set(ctx, key, overview, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// InvalidateStudent drops every snapshot of the student. Failures are logged only so
// writes never fail because Redis is unavailable.
func (s *CacheService) InvalidateStudent(ctx context.Context, studentID string) {
	if !s.Enabled() || studentID == "" {
		return
	}
	pattern := overviewStudentPattern(studentID)
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
