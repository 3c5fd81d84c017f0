package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/report-card-api/internal/dto"
	"github.com/noah-isme/report-card-api/internal/models"
	appErrors "github.com/noah-isme/report-card-api/pkg/errors"
)

// memoryCache mimics the Redis repository with JSON round trips.
type memoryCache struct {
	data     map[string][]byte
	ttls     map[string]time.Duration
	getErr   error
	patterns []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

func sampleOverview() *dto.YearOverview {
	avg := models.MustScore("85")
	return &dto.YearOverview{
		ReportCards: []models.ReportCardDetail{{
			ReportCard: models.ReportCard{ID: "c1", StudentID: "s1", Term: "Fall", Year: 2024},
			Marks: []models.MarkDetail{
				{ID: "m1", Score: models.MustScore("80"), Subject: models.Subject{ID: "sub1", Name: "Math", Code: "MATH"}},
				{ID: "m2", Score: models.MustScore("90"), Subject: models.Subject{ID: "sub2", Name: "Physics", Code: "PHY"}},
			},
			StudentDetail: &models.Student{ID: "s1", Name: "Ada", DateOfBirth: models.MustDate("2010-01-01")},
		}},
		SubjectAverages: []dto.SubjectAverage{
			{SubjectID: "sub1", SubjectName: "Math", AverageScore: models.MustScore("80")},
			{SubjectID: "sub2", SubjectName: "Physics", AverageScore: models.MustScore("90")},
		},
		OverallAverage: &avg,
	}
}

func TestCacheServiceRoundTripsOverview(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, NewMetricsService(), 5*time.Minute, nil, true)

	require.NoError(t, svc.StoreOverview(context.Background(), "s1", 2024, sampleOverview()))
	assert.Equal(t, 5*time.Minute, repo.ttls["overview:s1:2024"])

	loaded, hit, err := svc.LoadOverview(context.Background(), "s1", 2024)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "85.00", loaded.OverallAverage.String())
	assert.Equal(t, "2010-01-01", loaded.ReportCards[0].StudentDetail.DateOfBirth.String())

	svc.InvalidateStudent(context.Background(), "s1")
	assert.Equal(t, []string{"overview:s1:*"}, repo.patterns)
	_, hit, err = svc.LoadOverview(context.Background(), "s1", 2024)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, 0, nil, false)

	require.NoError(t, svc.StoreOverview(context.Background(), "s1", 2024, sampleOverview()))
	assert.Empty(t, repo.data)
	_, hit, err := svc.LoadOverview(context.Background(), "s1", 2024)
	require.NoError(t, err)
	assert.False(t, hit)
	svc.InvalidateStudent(context.Background(), "s1")
	assert.Empty(t, repo.patterns)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	repo := newMemoryCache()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, 0, nil, true)

	_, hit, err := svc.LoadOverview(context.Background(), "s1", 2024)
	assert.Error(t, err)
	assert.False(t, hit)
}
