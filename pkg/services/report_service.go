package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
	"github.com/ekaya-inc/ekaya-sanity/pkg/repositories"
)

// recentReportLimit caps ReportOverview.RecentReports.
const recentReportLimit = 10

// ReportService persists assembled reports and summarizes their history.
type ReportService interface {
	Save(ctx context.Context, report models.Report) (*models.StoredReport, error)
	Get(ctx context.Context, id uuid.UUID) (*models.StoredReport, error)
	List(ctx context.Context, reportType string, limit int) ([]*models.StoredReport, error)
	// Summary counts reports of one type; a report passes when it has no failing checks.
	Summary(ctx context.Context, reportType string) (*models.ReportOverview, error)
	// Delete returns apperrors.ErrNotFound when the report does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

type reportService struct {
	repo   repositories.ReportRepository
	logger *zap.Logger
}

var _ ReportService = (*reportService)(nil)

// NewReportService creates a report service over repo.
func NewReportService(repo repositories.ReportRepository, logger *zap.Logger) ReportService {
	return &reportService{
		repo:   repo,
		logger: logger.Named("report-service"),
	}
}

func (s *reportService) Save(ctx context.Context, report models.Report) (*models.StoredReport, error) {
	results, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	stored := &models.StoredReport{
		ID:          reportID(report),
		Title:       report.ReportTitle(),
		ReportType:  report.ReportType(),
		Status:      models.ReportStatusCompleted,
		FailCount:   report.FailCount(),
		TotalChecks: report.CheckCount(),
		Results:     results,
	}
	if err := s.repo.Create(ctx, stored); err != nil {
		return nil, err
	}

	s.logger.Info("Saved report",
		zap.String("report_id", stored.ID.String()),
		zap.String("report_type", stored.ReportType),
		zap.Int("fail_count", stored.FailCount))
	return stored, nil
}

// reportID reuses the identifier the engine assigned, if any.
func reportID(report models.Report) uuid.UUID {
	switch r := report.(type) {
	case *models.DataSanityReport:
		return r.ID
	case *models.APISanityReport:
		return r.ID
	}
	return uuid.Nil
}

func (s *reportService) Get(ctx context.Context, id uuid.UUID) (*models.StoredReport, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *reportService) List(ctx context.Context, reportType string, limit int) ([]*models.StoredReport, error) {
	return s.repo.List(ctx, reportType, limit)
}

func (s *reportService) Summary(ctx context.Context, reportType string) (*models.ReportOverview, error) {
	total, passed, err := s.repo.Count(ctx, reportType)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.List(ctx, reportType, recentReportLimit)
	if err != nil {
		return nil, err
	}

	overview := &models.ReportOverview{
		TotalReports:  total,
		Passed:        passed,
		Failed:        total - passed,
		PassRate:      models.PassRate(passed, total),
		RecentReports: make([]models.RecentReport, 0, len(recent)),
	}
	for _, r := range recent {
		overview.RecentReports = append(overview.RecentReports, models.RecentReport{
			ID:          r.ID,
			Title:       r.Title,
			FailCount:   r.FailCount,
			TotalChecks: r.TotalChecks,
			CreatedAt:   r.CreatedAt,
		})
	}
	return overview, nil
}

func (s *reportService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deleted report", zap.String("report_id", id.String()))
	return nil
}
