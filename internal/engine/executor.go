package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rescuekit/autorun/internal/config"
	"github.com/rescuekit/autorun/internal/script"
)

const (
	// SpawnFailureExit is the synthesized exit code recorded when a script
	// cannot be launched at all, matching the shell convention for
	// "command not found".
	SpawnFailureExit = 127

	// ExitCodeSuffix names the sidecar file persisted next to each log.
	ExitCodeSuffix = ".exitcode"

	// LogSuffix names the per-script combined output log.
	LogSuffix = ".log"

	// termGrace is how long a script gets between SIGTERM and SIGKILL when
	// the run context is cancelled.
	termGrace = 10 * time.Second

	// drainGrace bounds the wait for trailing output after the script
	// exited. A background child that inherited the output pipe and keeps
	// it open must not stall the run forever.
	drainGrace = 2 * time.Second
)

// runScripts executes the staged list strictly in order, one at a time.
// Sequential execution is what gives the stop-on-failure policy a defined
// meaning: every script before the failing one ran to completion, nothing
// after it started.
func (e *Engine) runScripts(ctx context.Context, staged []script.Staged, cfg config.Config) ([]script.Record, int) {
	records := make([]script.Record, 0, len(staged))
	failures := 0

	for i, s := range staged {
		e.trace.Record(EventScriptStarted, map[string]string{"base_name": s.BaseName})
		slog.Info("running script", "script", s.BaseName, "path", s.LocalPath)

		rec := e.executeOne(ctx, s)

		failed := rec.ExitCode != 0
		abort := failed && !cfg.IgnoreFailure
		rec.Aborted = abort
		records = append(records, rec)
		if failed {
			failures++
		}
		e.trace.Record(EventScriptFinished, map[string]string{
			"base_name": s.BaseName,
			"exit_code": strconv.Itoa(rec.ExitCode),
		})

		if abort {
			skipped := len(staged) - i - 1
			slog.Error("script failed, aborting remaining scripts",
				"script", s.BaseName, "exit_code", rec.ExitCode, "skipped", skipped)
			e.trace.Record(EventRunAborted, map[string]string{
				"failed":  s.BaseName,
				"skipped": strconv.Itoa(skipped),
			})
			break
		}
		if failed {
			slog.Warn("script failed, continuing",
				"script", s.BaseName, "exit_code", rec.ExitCode)
		}
	}
	return records, failures
}

// executeOne runs a single staged script, streams its combined output to
// the console and the per-script log, and persists the exit code sidecar.
// It never returns an error: every failure mode collapses into the record's
// exit code.
func (e *Engine) executeOne(ctx context.Context, s script.Staged) script.Record {
	logPath := filepath.Join(e.guard.Paths().LogsDir(), s.BaseName+LogSuffix)
	rec := script.Record{BaseName: s.BaseName, LogPath: logPath}

	dest := e.console
	logFile, err := os.Create(logPath)
	if err != nil {
		slog.Error("cannot create script log, forwarding to console only",
			"script", s.BaseName, "error", err)
	} else {
		dest = io.MultiWriter(e.console, logFile)
	}

	rec.ExitCode = e.spawn(ctx, s, dest)

	if logFile != nil {
		if err := logFile.Close(); err != nil {
			slog.Warn("closing script log failed", "log", logPath, "error", err)
		}
	}
	e.writeSidecar(s.BaseName, rec.ExitCode)
	return rec
}

// spawn starts the script directly, with no intermediate shell, and copies
// its combined stdout+stderr to dest as it is produced.
//
// Both output streams share one pipe write end, so interleaving follows the
// kernel's ordering of the child's writes. The copier goroutine is the only
// concurrency in the engine: each chunk it reads lands in dest immediately,
// which keeps live progress output working, and the main thread blocks in
// Wait until the script is done.
func (e *Engine) spawn(ctx context.Context, s script.Staged, dest io.Writer) int {
	pr, pw, err := os.Pipe()
	if err != nil {
		slog.Error("cannot create output pipe", "script", s.BaseName, "error", err)
		return SpawnFailureExit
	}

	cmd := exec.CommandContext(ctx, s.LocalPath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = pw
	cmd.Stderr = pw
	// On cancellation the script gets SIGTERM and a grace period before the
	// kill. The child stays in our process group, so terminal-generated
	// signals and foreground reads keep working for interactive scripts.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = termGrace

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		slog.Error("cannot start script",
			"script", s.BaseName, "path", s.LocalPath, "error", err)
		return SpawnFailureExit
	}
	pw.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 32*1024)
		for {
			n, rerr := pr.Read(buf)
			if n > 0 {
				if _, werr := dest.Write(buf[:n]); werr != nil {
					slog.Warn("output forwarding failed",
						"script", s.BaseName, "error", werr)
				}
			}
			if rerr != nil {
				return
			}
		}
	}()

	werr := cmd.Wait()

	// Flush whatever the script wrote last. The pipe reaches EOF once every
	// write end is closed; if something the script left behind still holds
	// one, cut the stream after the grace period.
	select {
	case <-done:
	case <-time.After(drainGrace):
		slog.Warn("output still open after script exit, closing stream",
			"script", s.BaseName)
	}
	pr.Close()
	<-done

	if werr == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(werr, &ee) {
		return ee.ExitCode()
	}
	slog.Error("waiting for script failed", "script", s.BaseName, "error", werr)
	return SpawnFailureExit
}

// writeSidecar persists the textual exit code next to the log. Best-effort:
// a sidecar write problem is logged, never escalated.
func (e *Engine) writeSidecar(baseName string, exitCode int) {
	path := filepath.Join(e.guard.Paths().LogsDir(), baseName+ExitCodeSuffix)
	data := []byte(strconv.Itoa(exitCode) + "\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Error("cannot write exit code sidecar", "path", path, "error", err)
	}
}
