package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sanity/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sanity/pkg/database"
	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

// ReportRepository provides data access for persisted sanity reports.
type ReportRepository interface {
	Create(ctx context.Context, report *models.StoredReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StoredReport, error)
	// List returns reports of one type, newest first. A limit <= 0 returns all.
	List(ctx context.Context, reportType string, limit int) ([]*models.StoredReport, error)
	// Count returns how many reports of the type exist and how many of them had no failures.
	Count(ctx context.Context, reportType string) (total, passed int, err error)
	// Delete returns apperrors.ErrNotFound when no row matched.
	Delete(ctx context.Context, id uuid.UUID) error
}

type reportRepository struct {
	db *database.DB
}

// NewReportRepository creates a repository over db.
func NewReportRepository(db *database.DB) ReportRepository {
	return &reportRepository{db: db}
}

var _ ReportRepository = (*reportRepository)(nil)

const reportColumns = `id, title, report_type, status, fail_count, total_checks, results, created_at`

func (r *reportRepository) Create(ctx context.Context, report *models.StoredReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.Status == "" {
		report.Status = models.ReportStatusCompleted
	}

	query := `
		INSERT INTO sanity_reports (id, title, report_type, status, fail_count, total_checks, results)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		report.ID,
		report.Title,
		report.ReportType,
		report.Status,
		report.FailCount,
		report.TotalChecks,
		[]byte(report.Results),
	).Scan(&report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (r *reportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoredReport, error) {
	query := `SELECT ` + reportColumns + ` FROM sanity_reports WHERE id = $1`

	report, err := scanReport(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("report %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

func (r *reportRepository) List(ctx context.Context, reportType string, limit int) ([]*models.StoredReport, error) {
	query := `SELECT ` + reportColumns + `
		FROM sanity_reports
		WHERE report_type = $1
		ORDER BY created_at DESC, id`
	args := []any{reportType}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []*models.StoredReport{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}

func (r *reportRepository) Count(ctx context.Context, reportType string) (int, int, error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE fail_count = 0)
		FROM sanity_reports
		WHERE report_type = $1`

	var total, passed int
	if err := r.db.QueryRow(ctx, query, reportType).Scan(&total, &passed); err != nil {
		return 0, 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return total, passed, nil
}

func (r *reportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM sanity_reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("report %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func scanReport(row pgx.Row) (*models.StoredReport, error) {
	var report models.StoredReport
	var results []byte
	err := row.Scan(
		&report.ID,
		&report.Title,
		&report.ReportType,
		&report.Status,
		&report.FailCount,
		&report.TotalChecks,
		&results,
		&report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	report.Results = results
	return &report, nil
}
