// Package script provides the shared record types for the autorun engine.
//
// This package contains type definitions only. All other internal packages
// import script; script imports nothing internal. This keeps it the
// foundational layer with no circular dependencies.
//
// All JSON tags use snake_case. Timestamps are wall-clock because the run
// journal and history output are operator-facing; ordering within a run is
// carried by trace sequence numbers, not by time.
package script

import "time"

// BaseNamePrefix is the fixed stem of every candidate file name. A candidate
// for suffix "1" is named "autorun1"; the empty suffix yields the bare name.
const BaseNamePrefix = "autorun"

// SourceKind identifies which transport serves a configured source string.
type SourceKind string

const (
	KindLocal  SourceKind = "local"
	KindDevice SourceKind = "device"
	KindNFS    SourceKind = "nfs"
	KindSMB    SourceKind = "smb"
	KindHTTP   SourceKind = "http"
)

// Staged is one discovered candidate copied into the staging directory.
// The list of Staged values is append-only and ordered: discovery order is
// execution order. The engine owns the local copy; the source path is never
// written to.
type Staged struct {
	SourcePath string `json:"source_path"`
	LocalPath  string `json:"local_path"`
	BaseName   string `json:"base_name"`
}

// Record is the outcome of executing one staged script. Aborted marks the
// record whose non-zero exit stopped the remaining sequence under the
// fail-fast policy.
type Record struct {
	BaseName string `json:"base_name"`
	ExitCode int    `json:"exit_code"`
	LogPath  string `json:"log_path"`
	Aborted  bool   `json:"aborted"`
}

// Run summarizes one engine session for the journal and for history output.
// Failures counts records with a non-zero exit code; ExitCode is the process
// exit status the engine reported (0 or the failure count).
type Run struct {
	Token    string     `json:"token"`
	Source   string     `json:"source"`
	Kind     SourceKind `json:"source_kind"`
	Staged   int        `json:"scripts_staged"`
	Records  []Record   `json:"records"`
	Failures int        `json:"failures"`
	ExitCode int        `json:"exit_code"`
	Started  time.Time  `json:"started_at"`
	Finished time.Time  `json:"finished_at"`
}
