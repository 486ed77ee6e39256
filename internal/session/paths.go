// Package session owns the filesystem contract of one engine run: the
// single-instance lock, the base working tree, post-run cleanup of staged
// copies, and the interactive keypress gate shown after scripts ran.
package session

import "path/filepath"

// Well-known locations on a live system. Every one of them is overridable
// through CLI flags so tests and unusual images can relocate the whole tree.
const (
	DefaultBaseDir   = "/var/lib/autorun"
	DefaultLockFile  = "/run/autorun.lock"
	DefaultSentinel  = "/run/autorun.nowait"
	DefaultConfigDoc = "/run/autorun/effective-config.json"
	DefaultCmdline   = "/proc/cmdline"
)

// Paths locates the session's files. The base directory holds everything a
// run produces; the lock file and the no-wait sentinel live outside it on
// the volatile /run filesystem so they disappear on reboot.
type Paths struct {
	BaseDir  string
	LockFile string
	Sentinel string
}

// DefaultPaths returns the live-system locations.
func DefaultPaths() Paths {
	return Paths{
		BaseDir:  DefaultBaseDir,
		LockFile: DefaultLockFile,
		Sentinel: DefaultSentinel,
	}
}

// ScriptsDir is the private staging directory for discovered candidates.
func (p Paths) ScriptsDir() string { return filepath.Join(p.BaseDir, "scripts") }

// LogsDir holds one log and one exit-code sidecar per executed script.
func (p Paths) LogsDir() string { return filepath.Join(p.BaseDir, "logs") }

// MountDir is the scratch mount point for device and network-share sources.
func (p Paths) MountDir() string { return filepath.Join(p.BaseDir, "mnt") }

// JournalPath is the run journal database.
func (p Paths) JournalPath() string { return filepath.Join(p.BaseDir, "journal.db") }
