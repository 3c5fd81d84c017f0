package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/report-card-api/internal/dto"
	"github.com/noah-isme/report-card-api/pkg/jobs"
)

type overviewComputer interface {
	Compute(ctx context.Context, studentID string, year int) (*dto.YearOverview, error)
}

type overviewStore interface {
	StoreOverview(ctx context.Context, studentID string, year int, overview *dto.YearOverview) error
}

// OverviewTask recomputes overviews off the request path and stores the snapshot.
// It only reads from the database, so repeated or overlapping runs are harmless.
type OverviewTask struct {
	overview overviewComputer
	store    overviewStore
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewOverviewTask constructs the background handler.
func NewOverviewTask(overview overviewComputer, store overviewStore, metrics *MetricsService, logger *zap.Logger) *OverviewTask {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverviewTask{overview: overview, store: store, metrics: metrics, logger: logger}
}

// Handle implements jobs.Handler.
func (t *OverviewTask) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(dto.OverviewTaskPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.Type)
	}
	overview, err := t.overview.Compute(ctx, payload.StudentID, payload.Year)
	if err != nil {
		return fmt.Errorf("recompute overview for %s/%d: %w", payload.StudentID, payload.Year, err)
	}
	if t.store != nil {
		if err := t.store.StoreOverview(ctx, payload.StudentID, payload.Year, overview); err != nil {
			return fmt.Errorf("store overview for %s/%d: %w", payload.StudentID, payload.Year, err)
		}
	}
	t.logger.Debug("overview recomputed",
		zap.String("job_id", job.ID),
		zap.String("student_id", payload.StudentID),
		zap.Int("year", payload.Year),
		zap.Int("report_cards", len(overview.ReportCards)))
	return nil
}

// ObserveResult feeds queue outcomes into metrics; wire it as jobs.QueueConfig.OnResult.
func (t *OverviewTask) ObserveResult(_ jobs.Job, outcome jobs.Outcome, duration time.Duration) {
	t.metrics.ObserveTaskRun(string(outcome), duration)
}
