package session

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescuekit/autorun/internal/config"
	"github.com/rescuekit/autorun/internal/script"
)

// testPaths returns Paths rooted in a fresh temp dir.
func testPaths(t *testing.T) Paths {
	t.Helper()
	dir := t.TempDir()
	return Paths{
		BaseDir:  filepath.Join(dir, "autorun"),
		LockFile: filepath.Join(dir, "autorun.lock"),
		Sentinel: filepath.Join(dir, "autorun.nowait"),
	}
}

// countingReader records how many reads the gate performed.
type countingReader struct {
	reads int
}

func (r *countingReader) Read(p []byte) (int, error) {
	r.reads++
	if len(p) > 0 {
		p[0] = '\n'
	}
	return 1, nil
}

func TestGuard_AcquireWritesPid(t *testing.T) {
	g := NewGuard(testPaths(t))

	ok, err := g.Acquire()
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := os.ReadFile(g.Paths().LockFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestGuard_SecondAcquireIsNoOp(t *testing.T) {
	paths := testPaths(t)

	first := NewGuard(paths)
	ok, err := first.Acquire()
	require.NoError(t, err)
	require.True(t, ok)
	before, err := os.ReadFile(paths.LockFile)
	require.NoError(t, err)

	// A second invocation sees the lock and reports false without error.
	second := NewGuard(paths)
	ok, err = second.Acquire()
	require.NoError(t, err)
	assert.False(t, ok)

	// The first instance's lock content is untouched.
	after, err := os.ReadFile(paths.LockFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGuard_ReleaseRemovesLock(t *testing.T) {
	g := NewGuard(testPaths(t))

	ok, err := g.Acquire()
	require.NoError(t, err)
	require.True(t, ok)

	g.Release()
	_, err = os.Stat(g.Paths().LockFile)
	assert.True(t, os.IsNotExist(err))

	// Releasing an already-released lock is harmless.
	g.Release()
}

func TestGuard_AcquireAfterRelease(t *testing.T) {
	g := NewGuard(testPaths(t))

	ok, err := g.Acquire()
	require.NoError(t, err)
	require.True(t, ok)
	g.Release()

	ok, err = g.Acquire()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuard_EnsureDirectoriesIdempotent(t *testing.T) {
	g := NewGuard(testPaths(t))

	require.NoError(t, g.EnsureDirectories())
	require.NoError(t, g.EnsureDirectories())

	for _, dir := range []string{
		g.Paths().ScriptsDir(),
		g.Paths().LogsDir(),
		g.Paths().MountDir(),
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestGuard_CleanupRemovesStagedCopies(t *testing.T) {
	g := NewGuard(testPaths(t))
	require.NoError(t, g.EnsureDirectories())

	local := filepath.Join(g.Paths().ScriptsDir(), "autorun1")
	require.NoError(t, os.WriteFile(local, []byte("#!/bin/sh\n"), 0o755))
	staged := []script.Staged{{SourcePath: "/src/autorun1", LocalPath: local, BaseName: "autorun1"}}

	g.Cleanup(staged, config.Config{NoDelete: false})
	_, err := os.Stat(local)
	assert.True(t, os.IsNotExist(err))
}

func TestGuard_CleanupHonorsNoDelete(t *testing.T) {
	g := NewGuard(testPaths(t))
	require.NoError(t, g.EnsureDirectories())

	local := filepath.Join(g.Paths().ScriptsDir(), "autorun")
	require.NoError(t, os.WriteFile(local, []byte("#!/bin/sh\n"), 0o755))
	staged := []script.Staged{{LocalPath: local, BaseName: "autorun"}}

	g.Cleanup(staged, config.Config{NoDelete: true})
	_, err := os.Stat(local)
	assert.NoError(t, err)
}

func TestGuard_InteractiveGateReadsOneKeypress(t *testing.T) {
	in := &countingReader{}
	var out bytes.Buffer
	g := NewGuard(testPaths(t), WithInput(in), WithOutput(&out))

	g.InteractiveGate(config.Config{NoWait: false}, true)

	assert.Equal(t, 1, in.reads)
	assert.Contains(t, out.String(), "press return")
}

func TestGuard_InteractiveGateSkipsWhenNothingRan(t *testing.T) {
	in := &countingReader{}
	g := NewGuard(testPaths(t), WithInput(in), WithOutput(&bytes.Buffer{}))

	g.InteractiveGate(config.Config{NoWait: false}, false)
	assert.Zero(t, in.reads)
}

func TestGuard_InteractiveGateSkipsWhenNoWait(t *testing.T) {
	in := &countingReader{}
	g := NewGuard(testPaths(t), WithInput(in), WithOutput(&bytes.Buffer{}))

	g.InteractiveGate(config.Config{NoWait: true}, true)
	assert.Zero(t, in.reads)
}

func TestGuard_SentinelForcesNoWaitAndIsConsumed(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, os.WriteFile(paths.Sentinel, nil, 0o644))

	in := &countingReader{}
	g := NewGuard(paths, WithInput(in), WithOutput(&bytes.Buffer{}))

	g.InteractiveGate(config.Config{NoWait: false}, true)

	assert.Zero(t, in.reads)
	_, err := os.Stat(paths.Sentinel)
	assert.True(t, os.IsNotExist(err), "sentinel is deleted after being consumed")
}

func TestPaths_DerivedLocations(t *testing.T) {
	p := Paths{BaseDir: "/var/lib/autorun"}

	assert.Equal(t, "/var/lib/autorun/scripts", p.ScriptsDir())
	assert.Equal(t, "/var/lib/autorun/logs", p.LogsDir())
	assert.Equal(t, "/var/lib/autorun/mnt", p.MountDir())
	assert.Equal(t, "/var/lib/autorun/journal.db", p.JournalPath())
}
