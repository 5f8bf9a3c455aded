package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

// mockReportRepository is an in-memory ReportRepository.
type mockReportRepository struct {
	reports   []*models.StoredReport
	createErr error
	listErr   error
}

func (m *mockReportRepository) Create(ctx context.Context, report *models.StoredReport) error {
	if m.createErr != nil {
		return m.createErr
	}
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	report.CreatedAt = time.Date(2026, 1, 1, 0, 0, len(m.reports), 0, time.UTC)
	m.reports = append(m.reports, report)
	return nil
}

func (m *mockReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoredReport, error) {
	for _, r := range m.reports {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockReportRepository) List(ctx context.Context, reportType string, limit int) ([]*models.StoredReport, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.StoredReport
	for i := len(m.reports) - 1; i >= 0; i-- {
		if m.reports[i].ReportType == reportType {
			out = append(out, m.reports[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockReportRepository) Count(ctx context.Context, reportType string) (int, int, error) {
	var total, passed int
	for _, r := range m.reports {
		if r.ReportType != reportType {
			continue
		}
		total++
		if r.FailCount == 0 {
			passed++
		}
	}
	return total, passed, nil
}

func (m *mockReportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	for i, r := range m.reports {
		if r.ID == id {
			m.reports = append(m.reports[:i], m.reports[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("report %s: %w", id, apperrors.ErrNotFound)
}

func dataReport(title string, fails int) *models.DataSanityReport {
	checks := []models.CheckResult{{Check: "ok", Result: true}}
	for i := 0; i < fails; i++ {
		checks = append(checks, models.CheckResult{Check: "bad", Result: false})
	}
	return &models.DataSanityReport{ID: uuid.New(), Title: title, Checks: checks, Summary: models.Summarize(checks)}
}

func TestReportService_Save(t *testing.T) {
	repo := &mockReportRepository{}
	svc := NewReportService(repo, zap.NewNop())

	report := dataReport("nightly", 2)
	stored, err := svc.Save(context.Background(), report)
	require.NoError(t, err)

	assert.Equal(t, report.ID, stored.ID)
	assert.Equal(t, "nightly", stored.Title)
	assert.Equal(t, models.ReportTypeDataSanity, stored.ReportType)
	assert.Equal(t, models.ReportStatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.FailCount)
	assert.Equal(t, 3, stored.TotalChecks)

	var decoded models.DataSanityReport
	require.NoError(t, json.Unmarshal(stored.Results, &decoded))
	assert.Equal(t, report.Summary, decoded.Summary)
}

func TestReportService_SaveAPIReport(t *testing.T) {
	repo := &mockReportRepository{}
	svc := NewReportService(repo, zap.NewNop())

	report := &models.APISanityReport{
		ID:    uuid.New(),
		Title: "api",
		APIs:  []models.APIRecord{{APIName: "a", ParamMatch: true}, {APIName: "b"}},
	}
	stored, err := svc.Save(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, models.ReportTypeAPISanity, stored.ReportType)
	assert.Equal(t, 1, stored.FailCount)
	assert.Equal(t, 2, stored.TotalChecks)
}

func TestReportService_SaveError(t *testing.T) {
	boom := errors.New("insert failed")
	svc := NewReportService(&mockReportRepository{createErr: boom}, zap.NewNop())
	_, err := svc.Save(context.Background(), dataReport("x", 0))
	assert.ErrorIs(t, err, boom)
}

func TestReportService_Summary(t *testing.T) {
	repo := &mockReportRepository{}
	svc := NewReportService(repo, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := svc.Save(ctx, dataReport(fmt.Sprintf("run %d", i), i%3))
		require.NoError(t, err)
	}
	_, err := svc.Save(ctx, &models.APISanityReport{ID: uuid.New(), Title: "other type"})
	require.NoError(t, err)

	overview, err := svc.Summary(ctx, models.ReportTypeDataSanity)
	require.NoError(t, err)
	assert.Equal(t, 12, overview.TotalReports)
	assert.Equal(t, 4, overview.Passed)
	assert.Equal(t, 8, overview.Failed)
	assert.Equal(t, "33.3%", overview.PassRate)
	require.Len(t, overview.RecentReports, 10)
	assert.Equal(t, "run 11", overview.RecentReports[0].Title)

	empty, err := svc.Summary(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, "0%", empty.PassRate)
	assert.NotNil(t, empty.RecentReports)
}

func TestReportService_SummaryListError(t *testing.T) {
	boom := errors.New("query failed")
	svc := NewReportService(&mockReportRepository{listErr: boom}, zap.NewNop())
	_, err := svc.Summary(context.Background(), models.ReportTypeDataSanity)
	assert.ErrorIs(t, err, boom)
}

func TestReportService_Delete(t *testing.T) {
	repo := &mockReportRepository{}
	svc := NewReportService(repo, zap.NewNop())
	ctx := context.Background()

	stored, err := svc.Save(ctx, dataReport("x", 0))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, stored.ID))
	assert.ErrorIs(t, svc.Delete(ctx, stored.ID), apperrors.ErrNotFound)

	_, err = svc.Get(ctx, stored.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
