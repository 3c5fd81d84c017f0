package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/report-card-api/internal/models"
	"github.com/noah-isme/report-card-api/internal/repository"
	"github.com/noah-isme/report-card-api/pkg/jobs"
)

// fakeStore is an in-memory stand-in for PostgreSQL enforcing the same constraints.
type fakeStore struct {
	mu       sync.Mutex
	seq      int
	base     time.Time
	students map[string]*models.Student
	subjects map[string]*models.Subject
	cards    map[string]*models.ReportCard
	marks    map[string]*models.Mark
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		base:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		students: map[string]*models.Student{},
		subjects: map[string]*models.Subject{},
		cards:    map[string]*models.ReportCard{},
		marks:    map[string]*models.Mark{},
	}
}

func (f *fakeStore) next(prefix string) (string, time.Time) {
	f.seq++
	return fmt.Sprintf("%s-%03d", prefix, f.seq), f.base.Add(time.Duration(f.seq) * time.Second)
}

func (f *fakeStore) addStudent(name string) *models.Student {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ts := f.next("student")
	s := &models.Student{ID: id, Name: name, Email: strings.ToLower(name) + "@example.com", DateOfBirth: models.MustDate("2010-01-01"), CreatedAt: ts, UpdatedAt: ts}
	f.students[id] = s
	return s
}

func (f *fakeStore) addSubject(name, code string) *models.Subject {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ts := f.next("subject")
	s := &models.Subject{ID: id, Name: name, Code: code, CreatedAt: ts, UpdatedAt: ts}
	f.subjects[id] = s
	return s
}

func (f *fakeStore) addCard(studentID, term string, year int) *models.ReportCard {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ts := f.next("card")
	c := &models.ReportCard{ID: id, StudentID: studentID, Term: term, Year: year, CreatedAt: ts, UpdatedAt: ts}
	f.cards[id] = c
	return c
}

func (f *fakeStore) addMark(cardID, subjectID, score string) *models.Mark {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ts := f.next("mark")
	m := &models.Mark{ID: id, ReportCardID: cardID, SubjectID: subjectID, Score: models.MustScore(score), CreatedAt: ts, UpdatedAt: ts}
	f.marks[id] = m
	return m
}

func (f *fakeStore) detail(m *models.Mark) models.MarkDetail {
	return models.MarkDetail{ID: m.ID, ReportCardID: m.ReportCardID, Score: m.Score, Subject: *f.subjects[m.SubjectID]}
}

type fakeStudentRepo struct{ *fakeStore }

func (r fakeStudentRepo) List(_ context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Student, 0)
	for _, s := range r.students {
		q := strings.ToLower(filter.Search)
		if q == "" || strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.Email), q) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, len(out), nil
}

func (r fakeStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (r fakeStudentRepo) ExistsByEmail(_ context.Context, email string, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.students {
		if strings.EqualFold(s.Email, email) && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeStudentRepo) Create(_ context.Context, student *models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	student.ID, student.CreatedAt = r.next("student")
	student.UpdatedAt = student.CreatedAt
	cp := *student
	r.students[student.ID] = &cp
	return nil
}

func (r fakeStudentRepo) Update(_ context.Context, student *models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *student
	r.students[student.ID] = &cp
	return nil
}

func (r fakeStudentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.students[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.students, id)
	for cid, c := range r.cards {
		if c.StudentID == id {
			delete(r.cards, cid)
			for mid, m := range r.marks {
				if m.ReportCardID == cid {
					delete(r.marks, mid)
				}
			}
		}
	}
	return nil
}

type fakeSubjectRepo struct{ *fakeStore }

func (r fakeSubjectRepo) List(_ context.Context, _ models.SubjectFilter) ([]models.Subject, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Subject, 0, len(r.subjects))
	for _, s := range r.subjects {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, len(out), nil
}

func (r fakeSubjectRepo) FindByID(_ context.Context, id string) (*models.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (r fakeSubjectRepo) ExistsByCode(_ context.Context, code string, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subjects {
		if s.Code == code && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeSubjectRepo) Create(_ context.Context, subject *models.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	subject.ID, subject.CreatedAt = r.next("subject")
	cp := *subject
	r.subjects[subject.ID] = &cp
	return nil
}

func (r fakeSubjectRepo) Update(_ context.Context, subject *models.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *subject
	r.subjects[subject.ID] = &cp
	return nil
}

func (r fakeSubjectRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subjects[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.subjects, id)
	for mid, m := range r.marks {
		if m.SubjectID == id {
			delete(r.marks, mid)
		}
	}
	return nil
}

func (r fakeSubjectRepo) StudentIDsForSubject(_ context.Context, id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	out := make([]string, 0)
	for _, m := range r.marks {
		if m.SubjectID != id {
			continue
		}
		if c, ok := r.cards[m.ReportCardID]; ok && !seen[c.StudentID] {
			seen[c.StudentID] = true
			out = append(out, c.StudentID)
		}
	}
	return out, nil
}

type fakeReportCardRepo struct {
	*fakeStore
	// skipPrecheck simulates a concurrent insert slipping past ExistsForTerm.
	skipPrecheck bool
}

func (r fakeReportCardRepo) List(_ context.Context, filter models.ReportCardFilter) ([]models.ReportCard, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ReportCard, 0)
	for _, c := range r.cards {
		if filter.StudentID != "" && c.StudentID != filter.StudentID {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, len(out), nil
}

func (r fakeReportCardRepo) FindByID(_ context.Context, id string) (*models.ReportCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (r fakeReportCardRepo) ExistsForTerm(_ context.Context, studentID, term string, year int, excludeID string) (bool, error) {
	if r.skipPrecheck {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflicts(studentID, term, year, excludeID), nil
}

func (r fakeReportCardRepo) conflicts(studentID, term string, year int, excludeID string) bool {
	for _, c := range r.cards {
		if c.StudentID == studentID && strings.EqualFold(c.Term, term) && c.Year == year && c.ID != excludeID {
			return true
		}
	}
	return false
}

func (r fakeReportCardRepo) Create(_ context.Context, card *models.ReportCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(card.StudentID, card.Term, card.Year, "") {
		return fmt.Errorf("create report card: %w", repository.ErrUniqueViolation)
	}
	card.ID, card.CreatedAt = r.next("card")
	cp := *card
	r.cards[card.ID] = &cp
	return nil
}

func (r fakeReportCardRepo) Update(_ context.Context, card *models.ReportCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(card.StudentID, card.Term, card.Year, card.ID) {
		return fmt.Errorf("update report card: %w", repository.ErrUniqueViolation)
	}
	cp := *card
	r.cards[card.ID] = &cp
	return nil
}

func (r fakeReportCardRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cards[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.cards, id)
	for mid, m := range r.marks {
		if m.ReportCardID == id {
			delete(r.marks, mid)
		}
	}
	return nil
}

type fakeMarkRepo struct{ *fakeStore }

func (r fakeMarkRepo) List(_ context.Context, filter models.MarkFilter) ([]models.MarkDetail, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	marks := make([]*models.Mark, 0)
	for _, m := range r.marks {
		if filter.ReportCardID != "" && m.ReportCardID != filter.ReportCardID {
			continue
		}
		marks = append(marks, m)
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].CreatedAt.Before(marks[j].CreatedAt) })
	out := make([]models.MarkDetail, 0, len(marks))
	for _, m := range marks {
		out = append(out, r.detail(m))
	}
	return out, len(out), nil
}

func (r fakeMarkRepo) FindByID(_ context.Context, id string) (*models.Mark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.marks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *m
	return &cp, nil
}

func (r fakeMarkRepo) FindDetailByID(_ context.Context, id string) (*models.MarkDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.marks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d := r.detail(m)
	return &d, nil
}

func (r fakeMarkRepo) ExistsForSubject(_ context.Context, reportCardID, subjectID string, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.marks {
		if m.ReportCardID == reportCardID && m.SubjectID == subjectID && m.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeMarkRepo) Create(_ context.Context, mark *models.Mark) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mark.ID, mark.CreatedAt = r.next("mark")
	cp := *mark
	r.marks[mark.ID] = &cp
	return nil
}

func (r fakeMarkRepo) Update(_ context.Context, mark *models.Mark) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *mark
	r.marks[mark.ID] = &cp
	return nil
}

func (r fakeMarkRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.marks[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.marks, id)
	return nil
}

type fakeOverviewRepo struct{ *fakeStore }

func (r fakeOverviewRepo) ReportCardsForYear(_ context.Context, studentID string, year int) ([]models.ReportCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ReportCard, 0)
	for _, c := range r.cards {
		if c.StudentID == studentID && c.Year == year {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r fakeOverviewRepo) MarksForReportCards(_ context.Context, ids []string) ([]models.MarkDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	out := make([]models.MarkDetail, 0)
	for _, m := range r.marks {
		if wanted[m.ReportCardID] {
			out = append(out, r.detail(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject.Name != out[j].Subject.Name {
			return out[i].Subject.Name < out[j].Subject.Name
		}
		if out[i].Subject.ID != out[j].Subject.ID {
			return out[i].Subject.ID < out[j].Subject.ID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// recordingInvalidator remembers which students had snapshots dropped.
type recordingInvalidator struct {
	mu       sync.Mutex
	students []string
}

func (r *recordingInvalidator) InvalidateStudent(_ context.Context, studentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.students = append(r.students, studentID)
}

func (r *recordingInvalidator) invalidated() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.students...)
}

// fakeQueue captures enqueued jobs; err makes every Enqueue fail.
type fakeQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (q *fakeQueue) Enqueue(job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}
