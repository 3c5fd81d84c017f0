package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/report-card-api/internal/dto"
	"github.com/noah-isme/report-card-api/internal/models"
	"github.com/noah-isme/report-card-api/pkg/jobs"
	appErrors "github.com/noah-isme/report-card-api/pkg/errors"
)

type overviewRepository interface {
	ReportCardsForYear(ctx context.Context, studentID string, year int) ([]models.ReportCard, error)
	MarksForReportCards(ctx context.Context, reportCardIDs []string) ([]models.MarkDetail, error)
}

// jobEnqueuer accepts background jobs without blocking.
type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// OverviewService builds the yearly overview of a student's report cards.
type OverviewService struct {
	repo     overviewRepository
	students studentReader
	queue    jobEnqueuer
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewOverviewService constructs an OverviewService. queue may be nil, in which case
// no background recompute is scheduled.
func NewOverviewService(repo overviewRepository, students studentReader, queue jobEnqueuer, metrics *MetricsService, logger *zap.Logger) *OverviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverviewService{repo: repo, students: students, queue: queue, metrics: metrics, logger: logger}
}

// ParseYear validates the raw year query parameter.
func ParseYear(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, appErrors.Validation("year is required to filter data")
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Validation("year must be an integer")
	}
	return year, nil
}

// AverageOverview computes the overview synchronously and then schedules a background
// recompute. Scheduling failures never affect the response.
func (s *OverviewService) AverageOverview(ctx context.Context, studentID, rawYear string) (*dto.YearOverview, error) {
	year, err := ParseYear(rawYear)
	if err != nil {
		return nil, err
	}
	overview, err := s.compute(ctx, studentID, year, "request")
	if err != nil {
		return nil, err
	}
	s.ScheduleRecompute(studentID, year)
	return overview, nil
}

// YearReportCards returns the same view as AverageOverview without scheduling work.
func (s *OverviewService) YearReportCards(ctx context.Context, studentID, rawYear string) (*dto.YearOverview, error) {
	year, err := ParseYear(rawYear)
	if err != nil {
		return nil, err
	}
	return s.compute(ctx, studentID, year, "request")
}

// Compute builds the overview for an already validated year.
func (s *OverviewService) Compute(ctx context.Context, studentID string, year int) (*dto.YearOverview, error) {
	return s.compute(ctx, studentID, year, "task")
}

func (s *OverviewService) compute(ctx context.Context, studentID string, year int, source string) (*dto.YearOverview, error) {
	start := time.Now()
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	cards, err := s.repo.ReportCardsForYear(ctx, studentID, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report cards")
	}
	ids := make([]string, 0, len(cards))
	for _, card := range cards {
		ids = append(ids, card.ID)
	}
	marks, err := s.repo.MarksForReportCards(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
	}
	overview := ComputeOverview(student, cards, marks)
	s.metrics.ObserveOverviewCompute(source, time.Since(start))
	return overview, nil
}

// ScheduleRecompute enqueues an overview.recompute job for the student and year.
func (s *OverviewService) ScheduleRecompute(studentID string, year int) {
	if s.queue == nil {
		return
	}
	job := jobs.Job{
		Type:    dto.OverviewJobType,
		Payload: dto.OverviewTaskPayload{StudentID: studentID, Year: year},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.metrics.RecordTaskEnqueue("rejected")
		s.logger.Warn("failed to schedule overview recompute",
			zap.String("student_id", studentID), zap.Int("year", year), zap.Error(err))
		return
	}
	s.metrics.RecordTaskEnqueue("accepted")
}

// ComputeOverview aggregates cards and their marks. Marks are expected in subject
// name order; each card lists its own marks in that order. Averages are pooled across
// cards and rounded half away from zero to two places.
func ComputeOverview(student *models.Student, cards []models.ReportCard, marks []models.MarkDetail) *dto.YearOverview {
	overview := &dto.YearOverview{
		ReportCards:     make([]models.ReportCardDetail, 0, len(cards)),
		SubjectAverages: make([]dto.SubjectAverage, 0),
	}

	byCard := make(map[string][]models.MarkDetail, len(cards))
	for _, mark := range marks {
		byCard[mark.ReportCardID] = append(byCard[mark.ReportCardID], mark)
	}
	for _, card := range cards {
		cardMarks := byCard[card.ID]
		if cardMarks == nil {
			cardMarks = make([]models.MarkDetail, 0)
		}
		overview.ReportCards = append(overview.ReportCards, models.ReportCardDetail{
			ReportCard:    card,
			Marks:         cardMarks,
			StudentDetail: student,
		})
	}

	type bucket struct {
		name  string
		sum   decimal.Decimal
		count int64
	}
	var order []string
	buckets := make(map[string]*bucket)
	total := decimal.Zero
	var counted int64
	for _, card := range cards {
		for _, mark := range byCard[card.ID] {
			b, ok := buckets[mark.Subject.ID]
			if !ok {
				b = &bucket{name: mark.Subject.Name}
				buckets[mark.Subject.ID] = b
				order = append(order, mark.Subject.ID)
			}
			b.sum = b.sum.Add(mark.Score.Decimal)
			b.count++
			total = total.Add(mark.Score.Decimal)
			counted++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		ni, nj := buckets[order[i]].name, buckets[order[j]].name
		if ni != nj {
			return ni < nj
		}
		return order[i] < order[j]
	})
	for _, id := range order {
		b := buckets[id]
		overview.SubjectAverages = append(overview.SubjectAverages, dto.SubjectAverage{
			SubjectID:    id,
			SubjectName:  b.name,
			AverageScore: mean(b.sum, b.count),
		})
	}

	if counted > 0 {
		avg := mean(total, counted)
		overview.OverallAverage = &avg
	}
	return overview
}

func mean(sum decimal.Decimal, count int64) models.Score {
	return models.ScoreFromDecimal(sum.DivRound(decimal.NewFromInt(count), models.ScorePlaces))
}
