package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/report-card-api/internal/models"
	appErrors "github.com/noah-isme/report-card-api/pkg/errors"
)

func newMarkFixture() (*fakeStore, *MarkService, *recordingInvalidator) {
	store := newFakeStore()
	inv := &recordingInvalidator{}
	svc := NewMarkService(fakeMarkRepo{store}, fakeReportCardRepo{fakeStore: store}, fakeSubjectRepo{store}, inv, nil, nil)
	return store, svc, inv
}

func scorePtr(v string) *models.Score {
	s := models.MustScore(v)
	return &s
}

func TestMarkCreateAndDuplicateConflict(t *testing.T) {
	store, svc, inv := newMarkFixture()
	student := store.addStudent("Ada")
	math := store.addSubject("Math", "MATH")
	card := store.addCard(student.ID, "Fall", 2024)

	mark, err := svc.Create(context.Background(), MarkRequest{ReportCardID: card.ID, SubjectID: math.ID, Score: scorePtr("80.5")})
	require.NoError(t, err)
	assert.Equal(t, "80.50", mark.Score.String())
	assert.Equal(t, []string{student.ID}, inv.invalidated())

	_, err = svc.Create(context.Background(), MarkRequest{ReportCardID: card.ID, SubjectID: math.ID, Score: scorePtr("70")})
	require.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestMarkCreateValidatesReferencesAndScore(t *testing.T) {
	store, svc, _ := newMarkFixture()
	student := store.addStudent("Ada")
	math := store.addSubject("Math", "MATH")
	card := store.addCard(student.ID, "Fall", 2024)

	_, err := svc.Create(context.Background(), MarkRequest{ReportCardID: "ghost", SubjectID: math.ID, Score: scorePtr("1")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), MarkRequest{ReportCardID: card.ID, SubjectID: "ghost", Score: scorePtr("1")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), MarkRequest{ReportCardID: card.ID, SubjectID: math.ID, Score: scorePtr("1.005")})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "decimal places")

	_, err = svc.Create(context.Background(), MarkRequest{ReportCardID: card.ID, SubjectID: math.ID, Score: scorePtr("1000")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), MarkRequest{ReportCardID: card.ID, SubjectID: math.ID})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "score is required")
}

func TestMarkUpdateKeepsOwnSubject(t *testing.T) {
	store, svc, _ := newMarkFixture()
	student := store.addStudent("Ada")
	math := store.addSubject("Math", "MATH")
	physics := store.addSubject("Physics", "PHY")
	card := store.addCard(student.ID, "Fall", 2024)
	mark := store.addMark(card.ID, math.ID, "50")
	store.addMark(card.ID, physics.ID, "60")

	updated, err := svc.Update(context.Background(), mark.ID, MarkRequest{ReportCardID: card.ID, SubjectID: math.ID, Score: scorePtr("55")})
	require.NoError(t, err)
	assert.Equal(t, "55.00", updated.Score.String())

	_, err = svc.Patch(context.Background(), mark.ID, PatchMarkRequest{SubjectID: &physics.ID})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Update(context.Background(), "missing", MarkRequest{ReportCardID: card.ID, SubjectID: math.ID, Score: scorePtr("1")})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestMarkGetAndDelete(t *testing.T) {
	store, svc, inv := newMarkFixture()
	student := store.addStudent("Ada")
	math := store.addSubject("Math", "MATH")
	card := store.addCard(student.ID, "Fall", 2024)
	mark := store.addMark(card.ID, math.ID, "50")

	detail, err := svc.Get(context.Background(), mark.ID)
	require.NoError(t, err)
	assert.Equal(t, "MATH", detail.Subject.Code)

	require.NoError(t, svc.Delete(context.Background(), mark.ID))
	assert.Equal(t, []string{student.ID}, inv.invalidated())
	_, err = svc.Get(context.Background(), mark.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestMarkListFiltersByReportCard(t *testing.T) {
	store, svc, _ := newMarkFixture()
	student := store.addStudent("Ada")
	math := store.addSubject("Math", "MATH")
	fall := store.addCard(student.ID, "Fall", 2024)
	spring := store.addCard(student.ID, "Spring", 2024)
	store.addMark(fall.ID, math.ID, "50")
	store.addMark(spring.ID, math.ID, "60")

	marks, _, err := svc.List(context.Background(), models.MarkFilter{ReportCardID: spring.ID})
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, "60.00", marks[0].Score.String())
}
