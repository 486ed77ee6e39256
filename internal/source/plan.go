package source

import (
	"slices"

	"github.com/rescuekit/autorun/internal/config"
	"github.com/rescuekit/autorun/internal/script"
)

// Plan describes what Resolve would do for a configuration, without
// mounting, fetching, or staging anything. It backs the plan subcommand.
type Plan struct {
	Kind       script.SourceKind `json:"kind"`
	Source     string            `json:"source,omitempty"`
	MountSpec  string            `json:"mount_spec,omitempty"`
	Filesystem string            `json:"filesystem,omitempty"`
	MountOpts  []string          `json:"mount_opts,omitempty"`
	Candidates []string          `json:"candidates"`
	Probes     []string          `json:"probes"`
	Attempts   int               `json:"attempts,omitempty"`
}

// Plan computes the probe plan for cfg.
func (r *Resolver) Plan(cfg config.Config) Plan {
	kind := Classify(cfg.Source)
	p := Plan{Kind: kind, Source: cfg.Source}

	for _, suffix := range cfg.SuffixList() {
		p.Candidates = append(p.Candidates, script.BaseNamePrefix+suffix)
	}

	switch kind {
	case script.KindDevice, script.KindNFS, script.KindSMB:
		p.MountSpec, p.Filesystem, p.MountOpts = mountSpec(kind, cfg.Source)
		p.Probes = []string{r.mountDir}
	case script.KindHTTP:
		p.Attempts = cfg.Attempts
		for _, name := range p.Candidates {
			p.Probes = append(p.Probes, candidateURL(cfg.Source, name))
		}
	default:
		p.Probes = slices.Clone(r.localDirs)
	}
	return p
}
