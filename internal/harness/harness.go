package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rescuekit/autorun/internal/engine"
	"github.com/rescuekit/autorun/internal/session"
	"github.com/rescuekit/autorun/internal/source"
)

// workspacePlaceholder replaces the scenario's temporary directory in trace
// fields so golden files stay stable across runs.
const workspacePlaceholder = "<workspace>"

// defaultToken is the run token when a scenario does not fix one.
const defaultToken = "run-scenario"

// Run executes one scenario against a real engine and returns the result.
//
// Each scenario runs in a fresh temporary workspace for isolation: the
// effective configuration document, the medium holding candidate scripts,
// and the engine's state tree all live under it and are removed afterwards.
// Script logs are captured into the result before removal. A fixed token
// generator keeps traces reproducible.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "autorun-harness-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	media := filepath.Join(dir, "media")
	if err := os.MkdirAll(media, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scenario medium: %w", err)
	}
	for _, file := range scenario.Scripts {
		path := filepath.Join(media, file.Name)
		if err := os.WriteFile(path, []byte(file.render()), 0o755); err != nil {
			return nil, fmt.Errorf("failed to write script %q: %w", file.Name, err)
		}
	}

	docPath, err := writeConfigDoc(dir, scenario.Config)
	if err != nil {
		return nil, err
	}

	cmdlinePath := filepath.Join(dir, "cmdline")
	if scenario.Cmdline != "" {
		if err := os.WriteFile(cmdlinePath, []byte(scenario.Cmdline), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write command line: %w", err)
		}
	}

	paths := session.Paths{
		BaseDir:  filepath.Join(dir, "state"),
		LockFile: filepath.Join(dir, "autorun.lock"),
		Sentinel: filepath.Join(dir, "autorun.nowait"),
	}
	if scenario.LockHeld {
		if err := os.WriteFile(paths.LockFile, []byte("1\n"), 0o644); err != nil {
			return nil, fmt.Errorf("failed to plant foreign lock: %w", err)
		}
	}

	// Scripts read EOF immediately and the keypress gate never blocks.
	guard := session.NewGuard(paths,
		session.WithInput(strings.NewReader("")),
		session.WithOutput(io.Discard))

	resolver := source.NewResolver(paths.ScriptsDir(), paths.MountDir(),
		source.WithLocalDirs([]string{media}))

	token := scenario.Token
	if token == "" {
		token = defaultToken
	}
	console := &bytes.Buffer{}
	eng := engine.New(guard, resolver,
		engine.WithConfigDoc(docPath),
		engine.WithCmdline(cmdlinePath),
		engine.WithConsole(console),
		engine.WithTokenGenerator(engine.NewFixedGenerator(token)))

	// Engine progress lines would drown test output.
	restore := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer slog.SetDefault(restore)

	summary, err := eng.Run(context.Background())
	if err != nil {
		return nil, fmt.Errorf("engine run failed: %w", err)
	}

	result := NewResult()
	result.Summary = summary
	result.Trace = eng.Trace()
	result.Console = console.String()
	result.redactions = map[string]string{dir: workspacePlaceholder}
	captureLogs(paths.LogsDir(), result)

	applyExpect(scenario, result)
	applyAssertions(scenario, result)
	return result, nil
}

// writeConfigDoc writes an effective configuration document whose autorun
// scope holds the scenario's options. A nil map yields an empty scope.
func writeConfigDoc(dir string, options map[string]any) (string, error) {
	if options == nil {
		options = map[string]any{}
	}
	doc := map[string]map[string]any{"autorun": options}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal config doc: %w", err)
	}
	path := filepath.Join(dir, "effective-config.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write config doc: %w", err)
	}
	return path, nil
}

// captureLogs copies every script log into the result before the workspace
// is removed. A missing logs directory just means nothing executed.
func captureLogs(logsDir string, result *Result) {
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, engine.LogSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(logsDir, name))
		if err != nil {
			continue
		}
		result.Logs[name] = string(data)
	}
}

// applyExpect checks the scenario's expect clause against the run summary.
// Only fields the scenario sets are checked.
func applyExpect(scenario *Scenario, result *Result) {
	expect := scenario.Expect
	if expect == nil {
		return
	}

	summary := result.Summary
	if summary == nil {
		if expect.Skipped == nil || !*expect.Skipped {
			result.AddError("run was skipped: another instance held the lock")
		}
		return
	}
	if expect.Skipped != nil && *expect.Skipped {
		result.AddError("expected the run to be skipped, but it executed")
	}

	if expect.Staged != nil && summary.Staged != *expect.Staged {
		result.AddError(fmt.Sprintf("staged = %d, want %d", summary.Staged, *expect.Staged))
	}
	if expect.Failures != nil && summary.Failures != *expect.Failures {
		result.AddError(fmt.Sprintf("failures = %d, want %d", summary.Failures, *expect.Failures))
	}
	if expect.ExitCode != nil && summary.ExitCode != *expect.ExitCode {
		result.AddError(fmt.Sprintf("exit code = %d, want %d", summary.ExitCode, *expect.ExitCode))
	}

	if expect.ScriptsRun != nil {
		ran := make([]string, len(summary.Records))
		for i, rec := range summary.Records {
			ran[i] = rec.BaseName
		}
		if !equalStrings(ran, expect.ScriptsRun) {
			result.AddError(fmt.Sprintf("scripts run = %v, want %v", ran, expect.ScriptsRun))
		}
	}

	if expect.Aborted != nil {
		aborted := false
		for _, rec := range summary.Records {
			if rec.Aborted {
				aborted = true
				break
			}
		}
		if aborted != *expect.Aborted {
			result.AddError(fmt.Sprintf("aborted = %v, want %v", aborted, *expect.Aborted))
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
