package config

import (
	"os"
	"strings"
)

// CmdlineToken is the legacy boot parameter that overrides the suffixes
// option. Newer per-key overrides happen upstream in the configuration
// provider; this token is kept for images whose boot menus predate it.
const CmdlineToken = "autoruns="

// suffixOverride scans the boot command line for the legacy token and
// returns its value. When the token repeats, the last occurrence wins,
// matching how the kernel treats repeated parameters. An unreadable command
// line is treated as empty: the override is legacy convenience, not worth
// failing the run over.
func suffixOverride(cmdlinePath string) (suffixes string, ok bool) {
	data, err := os.ReadFile(cmdlinePath)
	if err != nil {
		return "", false
	}
	for _, tok := range strings.Fields(string(data)) {
		if v, found := strings.CutPrefix(tok, CmdlineToken); found {
			suffixes, ok = v, true
		}
	}
	return suffixes, ok
}
