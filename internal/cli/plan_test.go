package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescuekit/autorun/internal/script"
	"github.com/rescuekit/autorun/internal/testutil"
)

func executePlan(t *testing.T, rootOpts *RootOptions, args []string) (*bytes.Buffer, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewPlanCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	return out, cmd.Execute()
}

func TestPlan_LocalDefaults(t *testing.T) {
	dir := t.TempDir()
	docPath := testutil.WriteConfigDoc(t, dir, map[string]any{})

	out, err := executePlan(t, &RootOptions{Format: "text"}, []string{
		"--config-doc", docPath,
		"--cmdline", filepath.Join(dir, "cmdline"),
	})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "(local default directories)")
	assert.Contains(t, out.String(), "Kind:   local")
	assert.Contains(t, out.String(), "=== Candidates ===")
	assert.Contains(t, out.String(), "  autorun\n")
}

func TestPlan_DeviceShowsMountLine(t *testing.T) {
	dir := t.TempDir()
	docPath := testutil.WriteConfigDoc(t, dir, map[string]any{
		"ar_source":   "/dev/sdb1",
		"ar_suffixes": "1,2",
	})

	out, err := executePlan(t, &RootOptions{Format: "text"}, []string{
		"--config-doc", docPath,
		"--cmdline", filepath.Join(dir, "cmdline"),
		"--base-dir", filepath.Join(dir, "state"),
	})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Mount:  /dev/sdb1 (type auto)")
	assert.Contains(t, out.String(), "  autorun1\n")
	assert.Contains(t, out.String(), "  autorun2\n")
	assert.Contains(t, out.String(), filepath.Join(dir, "state", "mnt"))
}

func TestPlan_HTTPShowsFetchRounds(t *testing.T) {
	dir := t.TempDir()
	docPath := testutil.WriteConfigDoc(t, dir, map[string]any{
		"ar_source":   "http://boot.example/scripts",
		"ar_attempts": 2,
	})

	out, err := executePlan(t, &RootOptions{Format: "text"}, []string{
		"--config-doc", docPath,
		"--cmdline", filepath.Join(dir, "cmdline"),
	})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Fetch:  up to 2 round(s)")
	assert.Contains(t, out.String(), "http://boot.example/scripts/autorun")
}

func TestPlan_DisabledShortCircuits(t *testing.T) {
	dir := t.TempDir()
	docPath := testutil.WriteConfigDoc(t, dir, map[string]any{"ar_disable": true})

	out, err := executePlan(t, &RootOptions{Format: "text"}, []string{
		"--config-doc", docPath,
		"--cmdline", filepath.Join(dir, "cmdline"),
	})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "disabled")
	assert.NotContains(t, out.String(), "=== Candidates ===")
}

func TestPlan_CmdlineOverridesSuffixes(t *testing.T) {
	dir := t.TempDir()
	docPath := testutil.WriteConfigDoc(t, dir, map[string]any{"ar_suffixes": "1,2"})
	cmdlinePath := filepath.Join(dir, "cmdline")
	require.NoError(t, os.WriteFile(cmdlinePath, []byte("quiet autoruns=7 ro\n"), 0o644))

	out, err := executePlan(t, &RootOptions{Format: "text"}, []string{
		"--config-doc", docPath,
		"--cmdline", cmdlinePath,
	})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "  autorun7\n")
	assert.NotContains(t, out.String(), "  autorun1\n")
}

func TestPlan_JSONOutput(t *testing.T) {
	dir := t.TempDir()
	docPath := testutil.WriteConfigDoc(t, dir, map[string]any{
		"ar_source":   "nfs://files.example/share",
		"ar_suffixes": "9",
	})

	out, err := executePlan(t, &RootOptions{Format: "json"}, []string{
		"--config-doc", docPath,
		"--cmdline", filepath.Join(dir, "cmdline"),
	})
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   PlanResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, script.KindNFS, resp.Data.Plan.Kind)
	assert.Equal(t, "files.example:/share", resp.Data.Plan.MountSpec)
	assert.Equal(t, []string{"", "9"}, resp.Data.Suffixes)
	assert.Equal(t, []string{"autorun", "autorun9"}, resp.Data.Plan.Candidates)
}

func TestPlan_MissingDocFails(t *testing.T) {
	dir := t.TempDir()

	_, err := executePlan(t, &RootOptions{Format: "text"}, []string{
		"--config-doc", filepath.Join(dir, "missing.json"),
		"--cmdline", filepath.Join(dir, "cmdline"),
	})

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
