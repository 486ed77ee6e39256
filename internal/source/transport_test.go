package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescuekit/autorun/internal/config"
	"github.com/rescuekit/autorun/internal/testutil"
)

func TestResolver_LocalDiscoveryOrderFollowsSuffixes(t *testing.T) {
	media := t.TempDir()
	staging := t.TempDir()
	testutil.WriteExecutable(t, media, "autorun", "#!/bin/sh\n")
	testutil.WriteExecutable(t, media, "autorun1", "#!/bin/sh\n")
	testutil.WriteExecutable(t, media, "autorun3", "#!/bin/sh\n")

	r := NewResolver(staging, t.TempDir(), WithLocalDirs([]string{media}))
	staged, err := r.Resolve(context.Background(), config.Config{Suffixes: "3,1"})
	require.NoError(t, err)

	var names []string
	for _, s := range staged {
		names = append(names, s.BaseName)
	}
	assert.Equal(t, []string{"autorun", "autorun3", "autorun1"}, names)
}

func TestResolver_LocalFirstDirectoryWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	staging := t.TempDir()
	testutil.WriteExecutable(t, first, "autorun1", "echo first\n")
	testutil.WriteExecutable(t, second, "autorun", "echo second\n")
	testutil.WriteExecutable(t, second, "autorun1", "echo second\n")

	r := NewResolver(staging, t.TempDir(), WithLocalDirs([]string{first, second}))
	staged, err := r.Resolve(context.Background(), config.Config{Suffixes: "1"})
	require.NoError(t, err)

	// Only the first directory's single candidate, no union with the second.
	require.Len(t, staged, 1)
	assert.Equal(t, filepath.Join(first, "autorun1"), staged[0].SourcePath)
	data, err := os.ReadFile(staged[0].LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "echo first\n", string(data))
}

func TestResolver_LocalSkipsMissingDirectories(t *testing.T) {
	present := t.TempDir()
	staging := t.TempDir()
	testutil.WriteExecutable(t, present, "autorun", "echo hi\n")

	missing := filepath.Join(t.TempDir(), "not-there")
	r := NewResolver(staging, t.TempDir(), WithLocalDirs([]string{missing, present}))

	staged, err := r.Resolve(context.Background(), config.Config{})
	require.NoError(t, err)
	require.Len(t, staged, 1)
	assert.Equal(t, "autorun", staged[0].BaseName)
}

func TestResolver_LocalNothingFoundIsNotAnError(t *testing.T) {
	r := NewResolver(t.TempDir(), t.TempDir(),
		WithLocalDirs([]string{t.TempDir()}))

	staged, err := r.Resolve(context.Background(), config.Config{})
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestResolver_StagedCopiesAreExecutable(t *testing.T) {
	media := t.TempDir()
	staging := t.TempDir()
	// Source deliberately not executable; the staged copy must be.
	require.NoError(t, os.WriteFile(filepath.Join(media, "autorun"), []byte("echo x\n"), 0o644))

	r := NewResolver(staging, t.TempDir(), WithLocalDirs([]string{media}))
	staged, err := r.Resolve(context.Background(), config.Config{})
	require.NoError(t, err)
	require.Len(t, staged, 1)

	info, err := os.Stat(staged[0].LocalPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.Equal(t, staging, filepath.Dir(staged[0].LocalPath))
}

func TestResolver_DirectoryNamedLikeCandidateIsSkipped(t *testing.T) {
	media := t.TempDir()
	staging := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(media, "autorun"), 0o755))
	testutil.WriteExecutable(t, media, "autorun1", "echo real\n")

	r := NewResolver(staging, t.TempDir(), WithLocalDirs([]string{media}))
	staged, err := r.Resolve(context.Background(), config.Config{Suffixes: "1"})
	require.NoError(t, err)

	require.Len(t, staged, 1)
	assert.Equal(t, "autorun1", staged[0].BaseName)
}

func TestResolver_DuplicateSuffixStagesTwice(t *testing.T) {
	media := t.TempDir()
	staging := t.TempDir()
	testutil.WriteExecutable(t, media, "autorun1", "echo twice\n")

	r := NewResolver(staging, t.TempDir(), WithLocalDirs([]string{media}))
	staged, err := r.Resolve(context.Background(), config.Config{Suffixes: "1,1"})
	require.NoError(t, err)

	// Duplicates in the suffix list are preserved, so the candidate appears
	// twice and will execute twice.
	require.Len(t, staged, 2)
	assert.Equal(t, staged[0].LocalPath, staged[1].LocalPath)
}

func TestStageFile_FailedCopyLeavesNothingBehind(t *testing.T) {
	staging := t.TempDir()

	_, err := stageFile(filepath.Join(t.TempDir(), "missing"), filepath.Join(staging, "autorun"), "autorun")
	require.Error(t, err)

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory stays clean after a failed copy")
}

func TestResolver_CancelledContextStopsDiscovery(t *testing.T) {
	media := t.TempDir()
	testutil.WriteExecutable(t, media, "autorun", "echo hi\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewResolver(t.TempDir(), t.TempDir(), WithLocalDirs([]string{media}))
	_, err := r.Resolve(ctx, config.Config{})
	assert.ErrorIs(t, err, context.Canceled)
}
