package rebalancing

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ReportRepository persists cycle reports to the portfolio database.
type ReportRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewReportRepository creates a new cycle report repository.
func NewReportRepository(db *sql.DB, log zerolog.Logger) *ReportRepository {
	return &ReportRepository{
		db:  db,
		log: log.With().Str("repo", "cycle_report").Logger(),
	}
}

// Save inserts one cycle report. The full report is stored as JSON alongside
// the columns used for querying.
func (r *ReportRepository) Save(report *CycleReport) error {
	blob, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal cycle report: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO cycle_reports
			(strategy, started_at, finished_at, final_state, turnover, estimated_cost,
			 orders_planned, orders_executed, orders_failed, orders_deferred, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.Portfolio,
		report.StartedAt.UTC().Format(time.RFC3339),
		report.FinishedAt.UTC().Format(time.RFC3339),
		string(report.FinalState),
		report.Turnover,
		report.EstimatedCost,
		report.OrdersPlanned,
		report.OrdersExecuted,
		report.OrdersFailed,
		report.OrdersDeferred,
		string(blob),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cycle report: %w", err)
	}
	return nil
}

// List returns the most recent reports for a portfolio, newest first.
func (r *ReportRepository) List(portfolio string, limit int) ([]CycleReport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT report_json FROM cycle_reports
		WHERE strategy = ?
		ORDER BY started_at DESC
		LIMIT ?`, portfolio, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle reports: %w", err)
	}
	defer rows.Close()

	var reports []CycleReport
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan cycle report: %w", err)
		}
		var report CycleReport
		if err := json.Unmarshal([]byte(blob), &report); err != nil {
			r.log.Warn().Err(err).Msg("Skipping unreadable cycle report row")
			continue
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// Latest returns the most recent report for a portfolio, or nil when none
// has been recorded yet.
func (r *ReportRepository) Latest(portfolio string) (*CycleReport, error) {
	reports, err := r.List(portfolio, 1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return &reports[0], nil
}
