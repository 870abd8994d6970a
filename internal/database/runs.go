package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const runColumns = `id, input_path, output_path, provider, model, status,
	row_count, failure_count, error, started_at, finished_at`

// StartRun records the beginning of a run and returns its ID.
func (db *DB) StartRun(inputPath, outputPath, provider, model string) (string, error) {
	id := uuid.New().String()
	_, err := db.conn.Exec(
		`INSERT INTO runs (id, input_path, output_path, provider, model, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, inputPath, outputPath, provider, model, RunRunning,
	)
	if err != nil {
		return "", fmt.Errorf("starting run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the end of a run. A non-nil runErr marks the run failed.
func (db *DB) FinishRun(id string, rows, failures int, runErr error) error {
	status := RunCompleted
	var errText *string
	if runErr != nil {
		status = RunFailed
		s := runErr.Error()
		errText = &s
	}

	_, err := db.conn.Exec(
		`UPDATE runs SET status = ?, row_count = ?, failure_count = ?, error = ?,
		finished_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?`,
		status, rows, failures, errText, id,
	)
	return err
}

// GetRun returns the run whose ID equals or starts with idPrefix.
// It returns nil when nothing matches and an error when the prefix is ambiguous.
func (db *DB) GetRun(idPrefix string) (*Run, error) {
	rows, err := db.conn.Query(
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY started_at LIMIT 2`,
		idPrefix, escapeLike(idPrefix)+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	switch len(runs) {
	case 0:
		return nil, nil
	case 1:
		return &runs[0], nil
	}
	for i := range runs {
		if runs[i].ID == idPrefix {
			return &runs[i], nil
		}
	}
	return nil, fmt.Errorf("run ID prefix %q is ambiguous", idPrefix)
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

// DeleteRun removes a run and its annotations.
func (db *DB) DeleteRun(id string) error {
	_, err := db.conn.Exec(`DELETE FROM runs WHERE id = ?`, id)
	return err
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.InputPath, &r.OutputPath, &r.Provider, &r.Model, &r.Status,
			&r.RowCount, &r.FailureCount, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' {
			// LIKE wildcards; run IDs never contain them.
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
