package journal

import "strings"

// HistoryFilter narrows the runs returned by ReadRuns. The zero value
// selects every recorded run.
type HistoryFilter struct {
	// Last limits the result to the N most recent runs. Zero means no limit.
	Last int

	// Source keeps only runs whose configured source matches exactly.
	Source string

	// FailedOnly keeps only runs with at least one failed script.
	FailedOnly bool
}

// compile builds the parameterized runs query for the filter.
//
// Every query carries ORDER BY with the token as tiebreaker so results
// are deterministic, and all values are bound, never interpolated.
func (f HistoryFilter) compile() (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT token, source, source_kind, scripts_staged, failures, exit_code, started_at, finished_at FROM runs`)

	var conds []string
	var params []any
	if f.Source != "" {
		conds = append(conds, "source = ?")
		params = append(params, f.Source)
	}
	if f.FailedOnly {
		conds = append(conds, "failures > 0")
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	sb.WriteString(" ORDER BY started_at DESC, token COLLATE BINARY DESC")

	if f.Last > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, f.Last)
	}

	return sb.String(), params
}
