package source

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rescuekit/autorun/internal/script"
)

// Mounter mounts and unmounts filesystems. The production implementation
// execs the system tools; tests substitute a fake so no real mounts happen.
type Mounter interface {
	Mount(ctx context.Context, spec, target, fstype string, opts []string) error
	Unmount(ctx context.Context, target string) error
}

// ExecMounter drives mount(8) and umount(8). An empty fstype lets mount
// auto-detect, which is what removable block devices need.
type ExecMounter struct{}

func (ExecMounter) Mount(ctx context.Context, spec, target, fstype string, opts []string) error {
	args := make([]string, 0, 6+len(opts)*2)
	if fstype != "" {
		args = append(args, "-t", fstype)
	}
	for _, o := range opts {
		args = append(args, "-o", o)
	}
	args = append(args, spec, target)

	out, err := exec.CommandContext(ctx, "mount", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount %s on %s: %w: %s",
			spec, target, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (ExecMounter) Unmount(ctx context.Context, target string) error {
	out, err := exec.CommandContext(ctx, "umount", target).CombinedOutput()
	if err != nil {
		return fmt.Errorf("umount %s: %w: %s",
			target, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// MountError reports a failed mount of a device or network share. It is
// fatal for the run: there is no fallback transport, and no unmount is
// attempted for a mount that never succeeded.
type MountError struct {
	Spec   string
	Target string
	Err    error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("mount %s on %s: %v", e.Spec, e.Target, e.Err)
}

func (e *MountError) Unwrap() error { return e.Err }

// mountTransport serves block devices and network shares: mount at the
// scratch mount point, scan once, unmount.
type mountTransport struct {
	spec       string
	fstype     string
	opts       []string
	mountDir   string
	stagingDir string
	mounter    Mounter
}

func (t *mountTransport) Mount(ctx context.Context) error {
	if err := t.mounter.Mount(ctx, t.spec, t.mountDir, t.fstype, t.opts); err != nil {
		return &MountError{Spec: t.spec, Target: t.mountDir, Err: err}
	}
	return nil
}

func (t *mountTransport) Discover(ctx context.Context, suffixes []string) ([]script.Staged, error) {
	return scanDir(ctx, t.mountDir, suffixes, t.stagingDir)
}

func (t *mountTransport) Unmount(ctx context.Context) error {
	return t.mounter.Unmount(ctx, t.mountDir)
}
