package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rescuekit/autorun/internal/script"
)

// ReadRuns returns recorded runs matching the filter, newest first,
// each with its script records attached in execution order.
func (j *Journal) ReadRuns(ctx context.Context, filter HistoryFilter) ([]script.Run, error) {
	query, params := filter.compile()

	rows, err := j.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []script.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	for i := range runs {
		records, err := j.readRecords(ctx, runs[i].Token)
		if err != nil {
			return nil, err
		}
		runs[i].Records = records
	}

	// Return empty slice instead of nil
	if runs == nil {
		runs = []script.Run{}
	}

	return runs, nil
}

// ReadRun retrieves a single run by token.
// Returns sql.ErrNoRows if not found.
func (j *Journal) ReadRun(ctx context.Context, token string) (script.Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT token, source, source_kind, scripts_staged, failures, exit_code, started_at, finished_at
		FROM runs
		WHERE token = ?
	`, token)

	run, err := scanRun(row)
	if err != nil {
		return script.Run{}, err
	}

	records, err := j.readRecords(ctx, token)
	if err != nil {
		return script.Run{}, err
	}
	run.Records = records

	return run, nil
}

// readRecords returns the script records for a run ordered by execution
// position.
func (j *Journal) readRecords(ctx context.Context, token string) ([]script.Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT base_name, exit_code, log_path, aborted
		FROM script_runs
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query script records: %w", err)
	}
	defer rows.Close()

	var records []script.Record
	for rows.Next() {
		var rec script.Record
		if err := rows.Scan(&rec.BaseName, &rec.ExitCode, &rec.LogPath, &rec.Aborted); err != nil {
			return nil, fmt.Errorf("scan script record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate script records: %w", err)
	}

	// Return empty slice instead of nil
	if records == nil {
		records = []script.Record{}
	}

	return records, nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (script.Run, error) {
	var run script.Run
	var kind, started, finished string

	err := row.Scan(
		&run.Token,
		&run.Source,
		&kind,
		&run.Staged,
		&run.Failures,
		&run.ExitCode,
		&started,
		&finished,
	)
	if err == sql.ErrNoRows {
		return script.Run{}, err
	}
	if err != nil {
		return script.Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.Kind = script.SourceKind(kind)

	if run.Started, err = parseTime(started); err != nil {
		return script.Run{}, fmt.Errorf("scan run: %w", err)
	}
	if run.Finished, err = parseTime(finished); err != nil {
		return script.Run{}, fmt.Errorf("scan run: %w", err)
	}

	return run, nil
}
