//go:build integration

package repositories

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sanity/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
	"github.com/ekaya-inc/ekaya-sanity/pkg/testhelpers"
)

// reportTestContext holds test dependencies for report repository tests.
type reportTestContext struct {
	t          *testing.T
	engineDB   *testhelpers.EngineDB
	repo       ReportRepository
	reportType string
}

// setupReportTest gives each test its own report type so tests sharing the
// container never see each other's rows.
func setupReportTest(t *testing.T) *reportTestContext {
	engineDB := testhelpers.GetEngineDB(t)
	tc := &reportTestContext{
		t:          t,
		engineDB:   engineDB,
		repo:       NewReportRepository(engineDB.DB),
		reportType: "test_" + uuid.NewString(),
	}
	t.Cleanup(func() {
		_, _ = engineDB.DB.Exec(context.Background(), `DELETE FROM sanity_reports WHERE report_type = $1`, tc.reportType)
	})
	return tc
}

func (tc *reportTestContext) create(title string, fails int) *models.StoredReport {
	tc.t.Helper()
	results, err := json.Marshal(map[string]any{"summary": map[string]any{"fails": fails}})
	require.NoError(tc.t, err)
	report := &models.StoredReport{
		Title:       title,
		ReportType:  tc.reportType,
		FailCount:   fails,
		TotalChecks: 10,
		Results:     results,
	}
	require.NoError(tc.t, tc.repo.Create(context.Background(), report))
	return report
}

func TestReportRepository_CreateAndGet(t *testing.T) {
	tc := setupReportTest(t)
	ctx := context.Background()

	created := tc.create("first run", 2)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, models.ReportStatusCompleted, created.Status)

	got, err := tc.repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "first run", got.Title)
	assert.Equal(t, 2, got.FailCount)
	assert.JSONEq(t, `{"summary": {"fails": 2}}`, string(got.Results))

	_, err = tc.repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReportRepository_ListAndCount(t *testing.T) {
	tc := setupReportTest(t)
	ctx := context.Background()

	tc.create("a", 0)
	tc.create("b", 1)
	last := tc.create("c", 0)

	all, err := tc.repo.List(ctx, tc.reportType, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, last.ID, all[0].ID, "newest first")

	limited, err := tc.repo.List(ctx, tc.reportType, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	total, passed, err := tc.repo.Count(ctx, tc.reportType)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, passed)

	none, err := tc.repo.List(ctx, "no_such_type", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReportRepository_Delete(t *testing.T) {
	tc := setupReportTest(t)
	ctx := context.Background()

	report := tc.create("to delete", 0)
	require.NoError(t, tc.repo.Delete(ctx, report.ID))

	err := tc.repo.Delete(ctx, report.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
