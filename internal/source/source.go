// Package source classifies the configured autorun source and drives the
// matching transport to stage candidate files.
//
// Exactly one transport is active per resolution. Mount lifecycle and the
// network retry policy live here; the transports themselves only know how to
// prepare a source and scan it for candidates.
package source

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rescuekit/autorun/internal/config"
	"github.com/rescuekit/autorun/internal/script"
)

// DefaultLocalDirs is the fixed priority order scanned when no source is
// configured. The first directory yielding at least one candidate wins;
// later directories are never scanned.
var DefaultLocalDirs = []string{
	"/run/autorun/media",
	"/root",
	"/usr/share/autorun",
}

// RetryDelay is the pause between network fetch rounds.
const RetryDelay = time.Second

// Classify maps a source string onto its transport kind. Empty and
// unrecognized sources fall back to the local default directories.
func Classify(source string) script.SourceKind {
	switch {
	case strings.HasPrefix(source, "/dev/"):
		return script.KindDevice
	case strings.HasPrefix(source, "nfs://"):
		return script.KindNFS
	case strings.HasPrefix(source, "smb://"):
		return script.KindSMB
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return script.KindHTTP
	default:
		return script.KindLocal
	}
}

// Resolver stages candidates for one engine run.
type Resolver struct {
	stagingDir string
	mountDir   string
	localDirs  []string
	mounter    Mounter
	client     *http.Client
	sleep      func(ctx context.Context, d time.Duration)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMounter replaces the system mount/umount invocations, for tests.
func WithMounter(m Mounter) Option {
	return func(r *Resolver) { r.mounter = m }
}

// WithHTTPClient replaces the default fetch client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithLocalDirs replaces the default directory priority list.
func WithLocalDirs(dirs []string) Option {
	return func(r *Resolver) { r.localDirs = dirs }
}

// WithSleep replaces the retry pause, so tests run without real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration)) Option {
	return func(r *Resolver) { r.sleep = fn }
}

// NewResolver creates a Resolver staging into stagingDir and mounting
// device/share sources at mountDir.
func NewResolver(stagingDir, mountDir string, opts ...Option) *Resolver {
	r := &Resolver{
		stagingDir: stagingDir,
		mountDir:   mountDir,
		localDirs:  DefaultLocalDirs,
		mounter:    ExecMounter{},
		client:     defaultClient(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve classifies cfg.Source, mounts if the transport needs it, stages
// one candidate per suffix, and always unmounts after a successful mount. A
// failed mount is fatal and returns a *MountError with no unmount attempted.
// Finding nothing is not an error: the run proceeds with an empty list.
func (r *Resolver) Resolve(ctx context.Context, cfg config.Config) ([]script.Staged, error) {
	kind := Classify(cfg.Source)
	t := r.transportFor(kind, cfg)

	if err := t.Mount(ctx); err != nil {
		return nil, err
	}

	staged, derr := t.Discover(ctx, cfg.SuffixList())

	// Unmount happens regardless of what discovery found. The result only
	// gets logged: a stuck unmount must not change the run's outcome.
	if err := t.Unmount(ctx); err != nil {
		slog.Warn("unmount failed", "source", cfg.Source, "error", err)
	}

	if derr != nil {
		return nil, derr
	}
	slog.Info("source resolved",
		"kind", string(kind), "source", cfg.Source, "staged", len(staged))
	return staged, nil
}

func (r *Resolver) transportFor(kind script.SourceKind, cfg config.Config) Transport {
	switch kind {
	case script.KindDevice, script.KindNFS, script.KindSMB:
		spec, fstype, opts := mountSpec(kind, cfg.Source)
		return &mountTransport{
			spec:       spec,
			fstype:     fstype,
			opts:       opts,
			mountDir:   r.mountDir,
			stagingDir: r.stagingDir,
			mounter:    r.mounter,
		}
	case script.KindHTTP:
		return &httpTransport{
			baseURL:    cfg.Source,
			attempts:   cfg.Attempts,
			stagingDir: r.stagingDir,
			client:     r.client,
			sleep:      r.sleep,
		}
	default:
		return &localTransport{
			dirs:       r.localDirs,
			stagingDir: r.stagingDir,
		}
	}
}

// mountSpec rebuilds the mount(8) source argument, filesystem type and
// options for a device or share source string.
func mountSpec(kind script.SourceKind, source string) (spec, fstype string, opts []string) {
	switch kind {
	case script.KindNFS:
		host, path, _ := strings.Cut(strings.TrimPrefix(source, "nfs://"), "/")
		return host + ":/" + path, "nfs", []string{"nolock"}
	case script.KindSMB:
		return "//" + strings.TrimPrefix(source, "smb://"), "cifs", nil
	default:
		return source, "", nil
	}
}

// defaultClient mirrors the tuning used for short-lived fetches of small
// files: bounded total request time, a small idle pool.
func defaultClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// sleepContext pauses for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
