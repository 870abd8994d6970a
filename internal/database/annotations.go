package database

import "fmt"

// RecordAnnotation stores one output row of a run.
func (db *DB) RecordAnnotation(a Annotation) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO annotations
		(run_id, row_index, comment, summary, theme, status, error_text)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.RowIndex, a.Comment, a.Summary, a.Theme, a.Status, a.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("recording row %d: %w", a.RowIndex, err)
	}
	return nil
}

// GetAnnotations returns a run's rows in input order.
func (db *DB) GetAnnotations(runID string) ([]Annotation, error) {
	rows, err := db.conn.Query(
		`SELECT run_id, row_index, comment, summary, theme, status, error_text, created_at
		FROM annotations WHERE run_id = ? ORDER BY row_index`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Annotation
	for rows.Next() {
		var a Annotation
		if err := rows.Scan(&a.RunID, &a.RowIndex, &a.Comment, &a.Summary, &a.Theme,
			&a.Status, &a.ErrorText, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetThemeCounts returns how many successful rows of a run carry each theme,
// most frequent first.
func (db *DB) GetThemeCounts(runID string) ([]ThemeCount, error) {
	rows, err := db.conn.Query(
		`SELECT theme, COUNT(*) AS n FROM annotations
		WHERE run_id = ? AND status = ? AND theme != ''
		GROUP BY theme ORDER BY n DESC, theme`, runID, StatusOK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ThemeCount
	for rows.Next() {
		var tc ThemeCount
		if err := rows.Scan(&tc.Theme, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
