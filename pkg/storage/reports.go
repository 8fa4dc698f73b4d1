package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReportStatus is the lifecycle state of a stored report
type ReportStatus string

const (
	ReportPending    ReportStatus = "pending"
	ReportProcessing ReportStatus = "processing"
	ReportCompleted  ReportStatus = "completed"
	ReportFailed     ReportStatus = "failed"
)

// Report is one analysis run and its outcome. ResultJSON holds the
// serialized analysis batch once the run completes.
type Report struct {
	ID           string
	UserID       int64
	Query        string
	PeriodDays   int
	SampleSize   int
	ResultJSON   string
	Status       ReportStatus
	ErrorMessage string
	CostUSD      float64
	PriceRUB     float64
	CreatedAt    time.Time
}

// CreateReport inserts a pending report and returns its generated ID
func (s *Store) CreateReport(ctx context.Context, userID int64, query string, periodDays, sampleSize int) (*Report, error) {
	report := &Report{
		ID:         uuid.NewString(),
		UserID:     userID,
		Query:      query,
		PeriodDays: periodDays,
		SampleSize: sampleSize,
		Status:     ReportPending,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, user_id, query, period_days, sample_size, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID, report.UserID, report.Query, report.PeriodDays, report.SampleSize, report.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	return report, nil
}

// MarkReportProcessing transitions a report to processing
func (s *Store) MarkReportProcessing(ctx context.Context, reportID string) error {
	return s.setReportStatus(ctx, reportID, ReportProcessing)
}

// CompleteReport stores the result payload and costs and marks the
// report completed
func (s *Store) CompleteReport(ctx context.Context, reportID, resultJSON string, costUSD, priceRUB float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET result_json = ?, cost_usd = ?, price_rub = ?, status = ?
		 WHERE id = ?`,
		resultJSON, costUSD, priceRUB, ReportCompleted, reportID)
	if err != nil {
		return fmt.Errorf("failed to complete report: %w", err)
	}
	return requireRow(res, reportID)
}

// FailReport records the failure reason and marks the report failed
func (s *Store) FailReport(ctx context.Context, reportID, errorMessage string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET error_message = ?, status = ? WHERE id = ?`,
		errorMessage, ReportFailed, reportID)
	if err != nil {
		return fmt.Errorf("failed to fail report: %w", err)
	}
	return requireRow(res, reportID)
}

func (s *Store) setReportStatus(ctx context.Context, reportID string, status ReportStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ? WHERE id = ?`, status, reportID)
	if err != nil {
		return fmt.Errorf("failed to update report status: %w", err)
	}
	return requireRow(res, reportID)
}

// GetReport loads one report by ID
func (s *Store) GetReport(ctx context.Context, reportID string) (*Report, error) {
	var r Report
	var resultJSON, errorMessage sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, query, period_days, sample_size, result_json, status,
		        error_message, cost_usd, price_rub, created_at
		 FROM reports WHERE id = ?`, reportID).
		Scan(&r.ID, &r.UserID, &r.Query, &r.PeriodDays, &r.SampleSize, &resultJSON,
			&r.Status, &errorMessage, &r.CostUSD, &r.PriceRUB, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %s not found", reportID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	r.ResultJSON = resultJSON.String
	r.ErrorMessage = errorMessage.String
	return &r, nil
}

// ListReports returns a user's most recent reports, newest first
func (s *Store) ListReports(ctx context.Context, userID int64, limit int) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, query, period_days, sample_size, result_json, status,
		        error_message, cost_usd, price_rub, created_at
		 FROM reports WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		var resultJSON, errorMessage sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &r.Query, &r.PeriodDays, &r.SampleSize,
			&resultJSON, &r.Status, &errorMessage, &r.CostUSD, &r.PriceRUB, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		r.ResultJSON = resultJSON.String
		r.ErrorMessage = errorMessage.String
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// CleanupOldReports deletes reports older than the retention period and
// returns how many were removed
func (s *Store) CleanupOldReports(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reports WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up reports: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.InfoWithFields("cleaned up old reports", map[string]interface{}{
			"deleted":        deleted,
			"retention_days": retentionDays,
		})
	}
	return deleted, nil
}

func requireRow(res sql.Result, reportID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("report %s not found", reportID)
	}
	return nil
}
