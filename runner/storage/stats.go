package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// ProjectStats summarizes the deployment history of one project
type ProjectStats struct {
	Project         string         `json:"project"`
	TotalRuns       int            `json:"total_runs"`
	Succeeded       int            `json:"succeeded"`
	Failed          int            `json:"failed"`
	LastStatus      string         `json:"last_status,omitempty"`
	LastRunAt       *time.Time     `json:"last_run_at,omitempty"`
	FailuresByStage map[string]int `json:"failures_by_stage"`
}

// GetProjectStats returns run counts, the latest status and failures grouped
// by the stage they happened at
func (s *Storage) GetProjectStats(projectName string) (*ProjectStats, error) {
	stats := &ProjectStats{
		Project:         projectName,
		FailuresByStage: make(map[string]int),
	}

	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM runs
		WHERE project_name = ?`,
		projectName,
	).Scan(&stats.TotalRuns, &stats.Succeeded, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	var lastStatus string
	var lastRunAt time.Time
	err = s.db.QueryRow(
		"SELECT status, started_at FROM runs WHERE project_name = ? ORDER BY started_at DESC, id DESC LIMIT 1",
		projectName,
	).Scan(&lastStatus, &lastRunAt)
	switch {
	case err == sql.ErrNoRows:
		return stats, nil
	case err != nil:
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	stats.LastStatus = lastStatus
	stats.LastRunAt = &lastRunAt

	rows, err := s.db.Query(`
		SELECT failed_at, COUNT(*)
		FROM runs
		WHERE project_name = ? AND status = 'failed'
		GROUP BY failed_at`,
		projectName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, fmt.Errorf("failed to scan failures: %w", err)
		}
		stats.FailuresByStage[stage] = count
	}

	return stats, rows.Err()
}
