package session

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rescuekit/autorun/internal/config"
	"github.com/rescuekit/autorun/internal/script"
)

// Guard enforces single-instance execution and manages the session
// filesystem lifecycle. The lock discipline is first-acquirer-wins: a second
// invocation while the lock exists performs no work, and the caller exits 0.
type Guard struct {
	paths Paths
	in    io.Reader
	out   io.Writer
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithInput replaces the keypress source (stdin by default).
func WithInput(r io.Reader) GuardOption {
	return func(g *Guard) { g.in = r }
}

// WithOutput replaces the prompt destination (stdout by default).
func WithOutput(w io.Writer) GuardOption {
	return func(g *Guard) { g.out = w }
}

// NewGuard creates a Guard over the given paths.
func NewGuard(paths Paths, opts ...GuardOption) *Guard {
	g := &Guard{
		paths: paths,
		in:    os.Stdin,
		out:   os.Stdout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Paths returns the session locations the guard operates on.
func (g *Guard) Paths() Paths { return g.paths }

// Acquire creates the lock file holding this process id. It reports false,
// without error, when another instance already holds the lock; the caller is
// expected to exit 0 and leave the first instance's state untouched.
func (g *Guard) Acquire() (bool, error) {
	f, err := os.OpenFile(g.paths.LockFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			slog.Info("another instance holds the lock, nothing to do",
				"lock", g.paths.LockFile)
			return false, nil
		}
		return false, fmt.Errorf("create lock file %s: %w", g.paths.LockFile, err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()
		os.Remove(g.paths.LockFile)
		return false, fmt.Errorf("write lock file %s: %w", g.paths.LockFile, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(g.paths.LockFile)
		return false, fmt.Errorf("close lock file %s: %w", g.paths.LockFile, err)
	}

	slog.Debug("lock acquired", "lock", g.paths.LockFile, "pid", os.Getpid())
	return true, nil
}

// Release removes the lock file. Called on every exit path, including after
// fatal errors, so it never fails the run: a removal problem is logged and
// swallowed.
func (g *Guard) Release() {
	if err := os.Remove(g.paths.LockFile); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to remove lock file",
			"lock", g.paths.LockFile, "error", err)
	}
}

// EnsureDirectories creates the base working tree. Idempotent.
func (g *Guard) EnsureDirectories() error {
	dirs := []string{
		g.paths.ScriptsDir(),
		g.paths.LogsDir(),
		g.paths.MountDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Cleanup deletes the staged local copies unless the no-delete option keeps
// them for inspection. Logs and sidecar files always remain.
func (g *Guard) Cleanup(staged []script.Staged, cfg config.Config) {
	if cfg.NoDelete {
		slog.Debug("keeping staged copies", "count", len(staged))
		return
	}
	for _, s := range staged {
		if err := os.Remove(s.LocalPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove staged copy",
				"path", s.LocalPath, "error", err)
		}
	}
}

// InteractiveGate blocks for one keypress after scripts ran, so console
// output stays readable before the boot sequence continues. The user-settable
// sentinel file forces the wait off for exactly one run: its presence is
// consumed here and the file is deleted.
func (g *Guard) InteractiveGate(cfg config.Config, scriptsRan bool) {
	noWait := cfg.NoWait
	if _, err := os.Stat(g.paths.Sentinel); err == nil {
		noWait = true
		if err := os.Remove(g.paths.Sentinel); err != nil {
			slog.Warn("failed to remove no-wait sentinel",
				"path", g.paths.Sentinel, "error", err)
		}
		slog.Debug("no-wait sentinel consumed", "path", g.paths.Sentinel)
	}

	if noWait || !scriptsRan {
		return
	}

	fmt.Fprint(g.out, "autorun finished, press return to continue... ")
	buf := make([]byte, 1)
	if _, err := g.in.Read(buf); err != nil && err != io.EOF {
		slog.Debug("keypress read failed", "error", err)
	}
	fmt.Fprintln(g.out)
}
