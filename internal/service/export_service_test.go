package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/report-card-api/pkg/errors"
)

func TestExportCSVComputesOnMiss(t *testing.T) {
	store, overview, _ := newOverviewFixture()
	student := store.addStudent("Ada")
	math := store.addSubject("Math", "MATH")
	card := store.addCard(student.ID, "Fall", 2024)
	store.addMark(card.ID, math.ID, "80")

	svc := NewExportService(overview, NewCacheService(newMemoryCache(), nil, time.Minute, nil, true), nil)
	file, err := svc.Export(context.Background(), student.ID, "2024", "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
	body := string(file.Body)
	assert.Contains(t, body, "Fall,2024,Math,MATH,80.00")
	assert.Contains(t, body, "Overall average: 80.00")
}

func TestExportPrefersSnapshot(t *testing.T) {
	_, overview, _ := newOverviewFixture()
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, nil, true)
	require.NoError(t, cache.StoreOverview(context.Background(), "s1", 2024, sampleOverview()))

	svc := NewExportService(overview, cache, nil)
	file, err := svc.Export(context.Background(), "s1", "2024", "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF")))
}

func TestExportValidation(t *testing.T) {
	_, overview, _ := newOverviewFixture()
	svc := NewExportService(overview, nil, nil)

	_, err := svc.Export(context.Background(), "s1", "", "csv")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Export(context.Background(), "s1", "2024", "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Export(context.Background(), "ghost", "2024", "csv")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
