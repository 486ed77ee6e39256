// Package engine orchestrates one autorun session end to end: acquire the
// single-instance lock, load the effective configuration, resolve the
// configured source, normalize and execute the staged scripts, clean up,
// and gate on a keypress.
//
// The engine is strictly sequential. Scripts run one at a time in discovery
// order, which is what gives the stop-on-failure policy a defined meaning.
// Every milestone is recorded in a sequence-stamped trace, and the run
// summary is written to the journal when one is attached.
package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/rescuekit/autorun/internal/config"
	"github.com/rescuekit/autorun/internal/journal"
	"github.com/rescuekit/autorun/internal/script"
	"github.com/rescuekit/autorun/internal/session"
	"github.com/rescuekit/autorun/internal/source"
	"github.com/rescuekit/autorun/internal/stage"
)

// Engine drives one session. Construct with New, run once with Run.
//
// Thread-safety model:
//   - Run(): must be called from exactly one goroutine, once per Engine
//   - Trace(): safe from any goroutine
//
// The configuration value is immutable after load; no component mutates it.
type Engine struct {
	guard    *session.Guard
	resolver *source.Resolver
	journal  *journal.Journal
	tokens   TokenGenerator
	clock    *Clock
	trace    *Trace

	docPath     string
	cmdlinePath string
	console     io.Writer
	now         func() time.Time
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithJournal attaches a run journal. Without one, nothing is persisted
// beyond logs and sidecar files.
func WithJournal(j *journal.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithTokenGenerator replaces the run token source. Tests use FixedGenerator
// for reproducible traces.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Engine) { e.tokens = g }
}

// WithConfigDoc overrides the effective configuration document location.
func WithConfigDoc(path string) Option {
	return func(e *Engine) { e.docPath = path }
}

// WithCmdline overrides the boot command line location.
func WithCmdline(path string) Option {
	return func(e *Engine) { e.cmdlinePath = path }
}

// WithConsole redirects the live script output and the keypress prompt.
func WithConsole(w io.Writer) Option {
	return func(e *Engine) { e.console = w }
}

// WithNow replaces the wall clock used for run timestamps.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over the given session guard and source resolver.
func New(guard *session.Guard, resolver *source.Resolver, opts ...Option) *Engine {
	clock := NewClock()
	e := &Engine{
		guard:       guard,
		resolver:    resolver,
		tokens:      UUIDv7Generator{},
		clock:       clock,
		trace:       NewTrace(clock),
		docPath:     session.DefaultConfigDoc,
		cmdlinePath: session.DefaultCmdline,
		console:     os.Stdout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Trace returns the events recorded so far, in order.
func (e *Engine) Trace() []TraceEvent {
	return e.trace.Events()
}

// Run executes one full session.
//
// The returned Run summary is nil exactly when another instance holds the
// lock; the caller exits 0 and touches nothing. A non-nil error is always
// fatal (*FatalError for configuration and mount failures) and means the
// process must exit non-zero. Script failures are not errors: they are
// reported through the summary's Failures and ExitCode fields.
//
// The lock is released on every return path.
func (e *Engine) Run(ctx context.Context) (*script.Run, error) {
	acquired, err := e.guard.Acquire()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, nil
	}
	defer e.guard.Release()

	run := &script.Run{
		Token:   e.tokens.Generate(),
		Started: e.now(),
	}
	e.trace.Record(EventRunStarted, map[string]string{"token": run.Token})
	slog.Info("autorun starting", "token", run.Token)

	cfg, err := config.Load(e.docPath, e.cmdlinePath)
	if err != nil {
		code := CodeConfigMissing
		if errors.Is(err, config.ErrDocInvalid) {
			code = CodeConfigInvalid
		}
		slog.Error("cannot load configuration", "doc", e.docPath, "error", err)
		return nil, newConfigError(code, err)
	}
	e.trace.Record(EventConfigLoaded, map[string]string{
		"source":   cfg.Source,
		"suffixes": cfg.Suffixes,
		"attempts": strconv.Itoa(cfg.Attempts),
		"disabled": strconv.FormatBool(cfg.Disabled),
	})
	slog.Info("configuration loaded",
		"source", cfg.Source, "suffixes", cfg.Suffixes,
		"attempts", cfg.Attempts, "disabled", cfg.Disabled)

	run.Source = cfg.Source
	run.Kind = source.Classify(cfg.Source)

	if cfg.Disabled {
		slog.Info("autorun disabled, nothing to do")
		e.trace.Record(EventRunDisabled, nil)
		return e.finish(ctx, run)
	}

	if err := e.guard.EnsureDirectories(); err != nil {
		return nil, err
	}

	e.trace.Record(EventSourceClassified, map[string]string{
		"kind":   string(run.Kind),
		"source": cfg.Source,
	})

	staged, err := e.resolver.Resolve(ctx, cfg)
	if err != nil {
		var me *source.MountError
		if errors.As(err, &me) {
			slog.Error("mount failed", "source", cfg.Source, "error", err)
			return nil, newMountError(cfg.Source, err)
		}
		return nil, err
	}
	run.Staged = len(staged)
	for _, s := range staged {
		e.trace.Record(EventScriptStaged, map[string]string{
			"base_name":   s.BaseName,
			"source_path": s.SourcePath,
		})
	}

	for _, s := range staged {
		stage.Normalize(s)
		e.trace.Record(EventScriptNormalized, map[string]string{
			"base_name": s.BaseName,
		})
	}

	records, failures := e.runScripts(ctx, staged, cfg)
	run.Records = records
	run.Failures = failures
	run.ExitCode = failures

	e.guard.Cleanup(staged, cfg)
	e.trace.Record(EventCleanupDone, map[string]string{
		"kept": strconv.FormatBool(cfg.NoDelete),
	})

	e.guard.InteractiveGate(cfg, len(records) > 0)

	return e.finish(ctx, run)
}

// finish stamps the run, records the closing trace event, and writes the
// journal row. Journal problems are logged, never fatal: the run's outcome
// is already decided.
func (e *Engine) finish(ctx context.Context, run *script.Run) (*script.Run, error) {
	run.Finished = e.now()
	e.trace.Record(EventRunFinished, map[string]string{
		"scripts":  strconv.Itoa(len(run.Records)),
		"failures": strconv.Itoa(run.Failures),
	})
	slog.Info("autorun finished",
		"token", run.Token, "scripts", len(run.Records), "failures", run.Failures)

	if e.journal != nil {
		if err := e.journal.WriteRun(ctx, run); err != nil {
			slog.Error("journal write failed", "token", run.Token, "error", err)
		}
	}
	return run, nil
}
