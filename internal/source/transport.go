package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rescuekit/autorun/internal/script"
)

// Transport is one source-specific staging strategy. Mount and Unmount are
// no-ops for transports without mount state; Discover stages one candidate
// per suffix, in suffix order, and silently skips missing candidates.
type Transport interface {
	Mount(ctx context.Context) error
	Discover(ctx context.Context, suffixes []string) ([]script.Staged, error)
	Unmount(ctx context.Context) error
}

// scanDir stages every candidate present in dir, in suffix order. A missing
// candidate is a miss, not an error; a failed copy is logged and the
// candidate skipped, so the staged list only ever holds complete copies.
func scanDir(ctx context.Context, dir string, suffixes []string, stagingDir string) ([]script.Staged, error) {
	var staged []script.Staged
	for _, suffix := range suffixes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := script.BaseNamePrefix + suffix
		src := filepath.Join(dir, name)

		info, err := os.Stat(src)
		if err != nil || info.IsDir() {
			continue
		}

		s, err := stageFile(src, filepath.Join(stagingDir, name), name)
		if err != nil {
			slog.Warn("failed to stage candidate", "source", src, "error", err)
			continue
		}
		slog.Debug("candidate staged", "source", src, "local", s.LocalPath)
		staged = append(staged, s)
	}
	return staged, nil
}

// stageFile copies src into the staging directory and marks the copy
// executable. The copy goes through a temp file and a rename, so a partial
// copy never appears under the candidate's name.
func stageFile(src, dst, baseName string) (script.Staged, error) {
	in, err := os.Open(src)
	if err != nil {
		return script.Staged{}, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), baseName+".stage-*")
	if err != nil {
		return script.Staged{}, err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return script.Staged{}, fmt.Errorf("copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return script.Staged{}, err
	}
	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		return script.Staged{}, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return script.Staged{}, err
	}

	return script.Staged{SourcePath: src, LocalPath: dst, BaseName: baseName}, nil
}

// localTransport scans the fixed default directories. First directory with
// at least one candidate wins; there is no union across directories.
type localTransport struct {
	dirs       []string
	stagingDir string
}

func (t *localTransport) Mount(context.Context) error   { return nil }
func (t *localTransport) Unmount(context.Context) error { return nil }

func (t *localTransport) Discover(ctx context.Context, suffixes []string) ([]script.Staged, error) {
	for _, dir := range t.dirs {
		staged, err := scanDir(ctx, dir, suffixes, t.stagingDir)
		if err != nil {
			return nil, err
		}
		if len(staged) > 0 {
			slog.Debug("local directory matched", "dir", dir, "count", len(staged))
			return staged, nil
		}
	}
	return nil, nil
}
