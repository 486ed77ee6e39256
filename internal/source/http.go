package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rescuekit/autorun/internal/script"
)

// httpTransport fetches candidates from a URL. The retry loop is bounded by
// the configured attempt count with one RetryDelay pause between rounds;
// exhausting the attempts without staging anything is not an error.
type httpTransport struct {
	baseURL    string
	attempts   int
	stagingDir string
	client     *http.Client
	sleep      func(ctx context.Context, d time.Duration)
}

func (t *httpTransport) Mount(context.Context) error   { return nil }
func (t *httpTransport) Unmount(context.Context) error { return nil }

func (t *httpTransport) Discover(ctx context.Context, suffixes []string) ([]script.Staged, error) {
	for attempt := 1; attempt <= t.attempts; attempt++ {
		if attempt > 1 {
			t.sleep(ctx, RetryDelay)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		slog.Debug("fetch round", "url", t.baseURL,
			"attempt", attempt, "of", t.attempts)
		staged := t.fetchRound(ctx, suffixes)
		if len(staged) > 0 {
			return staged, nil
		}
	}
	slog.Info("network source yielded nothing",
		"url", t.baseURL, "attempts", t.attempts)
	return nil, nil
}

// fetchRound tries every suffixed candidate once. Fetch failures of
// individual candidates are misses, logged at debug.
func (t *httpTransport) fetchRound(ctx context.Context, suffixes []string) []script.Staged {
	var staged []script.Staged
	for _, suffix := range suffixes {
		name := script.BaseNamePrefix + suffix
		url := candidateURL(t.baseURL, name)

		s, err := t.fetchOne(ctx, url, name)
		if err != nil {
			slog.Debug("candidate not fetched", "url", url, "error", err)
			continue
		}
		staged = append(staged, s)
	}
	return staged
}

func (t *httpTransport) fetchOne(ctx context.Context, url, name string) (script.Staged, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return script.Staged{}, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return script.Staged{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused for the next candidate.
		io.Copy(io.Discard, resp.Body)
		return script.Staged{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	dst := filepath.Join(t.stagingDir, name)
	tmp, err := os.CreateTemp(t.stagingDir, name+".fetch-*")
	if err != nil {
		return script.Staged{}, err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return script.Staged{}, fmt.Errorf("download %s: %w", url, err)
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

	return script.Staged{SourcePath: url, LocalPath: dst, BaseName: name}, nil
}

// candidateURL joins the configured URL and a candidate name without
// doubling slashes.
func candidateURL(base, name string) string {
	return strings.TrimSuffix(base, "/") + "/" + name
}
