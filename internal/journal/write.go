package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/rescuekit/autorun/internal/script"
)

// WriteRun persists a finished run and its script records in one
// transaction. Uses ON CONFLICT(token) DO NOTHING for idempotency, so
// replaying the same run is harmless.
func (j *Journal) WriteRun(ctx context.Context, run *script.Run) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(token, source, source_kind, scripts_staged, failures, exit_code, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`,
		run.Token,
		run.Source,
		string(run.Kind),
		run.Staged,
		run.Failures,
		run.ExitCode,
		formatTime(run.Started),
		formatTime(run.Finished),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	for seq, rec := range run.Records {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO script_runs
			(run_token, seq, base_name, exit_code, log_path, aborted)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_token, seq) DO NOTHING
		`,
			run.Token,
			seq,
			rec.BaseName,
			rec.ExitCode,
			rec.LogPath,
			rec.Aborted,
		)
		if err != nil {
			return fmt.Errorf("write script record %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}

	return nil
}

// formatTime stores timestamps as RFC 3339 UTC text. Sub-second precision
// is kept so runs on the same boot still order correctly.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
