package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a run does not exist.
var ErrRunNotFound = errors.New("run not found")

const runColumns = "id, uuid, project_name, status, failed_at, error, started_at, finished_at, duration"

// CreateRun creates a new run record
func (s *Storage) CreateRun(runUUID, projectName string) (*Run, error) {
	now := time.Now()
	result, err := s.db.Exec(
		"INSERT INTO runs (uuid, project_name, status, started_at) VALUES (?, ?, ?, ?)",
		runUUID, projectName, "running", now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get run ID: %w", err)
	}

	return &Run{
		ID:          int(id),
		UUID:        runUUID,
		ProjectName: projectName,
		Status:      "running",
		StartedAt:   now,
	}, nil
}

// FinishRun records the final status of a run
func (s *Storage) FinishRun(runID int, status, failedAt, errMsg string, duration time.Duration) error {
	now := time.Now()
	_, err := s.db.Exec(
		"UPDATE runs SET status = ?, failed_at = ?, error = ?, finished_at = ?, duration = ? WHERE id = ?",
		status, failedAt, errMsg, now, duration.String(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return nil
}

// GetRuns retrieves all runs, ordered by most recent first
func (s *Storage) GetRuns(limit int) ([]*Run, error) {
	return s.queryRuns(
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, id DESC LIMIT ?",
		limit,
	)
}

// GetRunsByProject retrieves the runs of one project, most recent first
func (s *Storage) GetRunsByProject(projectName string, limit int) ([]*Run, error) {
	return s.queryRuns(
		"SELECT "+runColumns+" FROM runs WHERE project_name = ? ORDER BY started_at DESC, id DESC LIMIT ?",
		projectName, limit,
	)
}

// GetRun retrieves a single run by ID
func (s *Storage) GetRun(runID int) (*Run, error) {
	row := s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

func (s *Storage) queryRuns(query string, args ...any) ([]*Run, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var finishedAt sql.NullTime
	var duration sql.NullString

	err := row.Scan(&r.ID, &r.UUID, &r.ProjectName, &r.Status, &r.FailedAt, &r.Error, &r.StartedAt, &finishedAt, &duration)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Time
	}
	if duration.Valid {
		durationStr := duration.String
		r.Duration = &durationStr
	}

	return &r, nil
}
