// Package testutil provides shared helpers for tests that exercise the
// engine end to end: a fake mounter, and writers for candidate scripts and
// effective configuration documents.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// WriteExecutable writes a shell script into dir and marks it executable.
// Returns the full path.
func WriteExecutable(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write executable %s: %v", path, err)
	}
	return path
}

// ExitingScript returns a minimal POSIX script that prints its name and
// exits with the given code.
func ExitingScript(name string, code int) string {
	script := "#!/bin/sh\necho running " + name + "\n"
	if code != 0 {
		script += "exit " + strconv.Itoa(code) + "\n"
	}
	return script
}

// WriteConfigDoc writes an effective configuration document containing only
// an autorun scope with the given options. Returns the document path.
func WriteConfigDoc(t *testing.T, dir string, options map[string]any) string {
	t.Helper()
	doc := map[string]map[string]any{"autorun": options}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("marshal config doc: %v", err)
	}
	path := filepath.Join(dir, "effective-config.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config doc %s: %v", path, err)
	}
	return path
}
