package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MountCall records one Mount invocation.
type MountCall struct {
	Spec   string
	Target string
	Fstype string
	Opts   []string
}

// FakeMounter implements source.Mounter without touching the system. On
// Mount it materializes Files into the target directory, modelling a medium
// with candidates on it, and removes them again on Unmount.
type FakeMounter struct {
	MountErr   error
	UnmountErr error
	Files      map[string]string // candidate name -> content

	mu       sync.Mutex
	mounts   []MountCall
	unmounts []string
	written  []string
}

func (m *FakeMounter) Mount(_ context.Context, spec, target, fstype string, opts []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mounts = append(m.mounts, MountCall{Spec: spec, Target: target, Fstype: fstype, Opts: opts})
	if m.MountErr != nil {
		return m.MountErr
	}
	for name, content := range m.Files {
		path := filepath.Join(target, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("fake mount: %w", err)
		}
		m.written = append(m.written, path)
	}
	return nil
}

func (m *FakeMounter) Unmount(_ context.Context, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unmounts = append(m.unmounts, target)
	for _, path := range m.written {
		os.Remove(path)
	}
	m.written = nil
	return m.UnmountErr
}

// Mounts returns the recorded Mount calls.
func (m *FakeMounter) Mounts() []MountCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MountCall(nil), m.mounts...)
}

// Unmounts returns the recorded Unmount targets.
func (m *FakeMounter) Unmounts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unmounts...)
}
