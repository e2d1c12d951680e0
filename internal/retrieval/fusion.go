package retrieval

import "sort"

// SemanticDecision records why the vector branch did or didn't run, for
// the metadata.semantic_* fields.
type SemanticDecision struct {
	Triggered     bool
	SkippedReason string // e.g. "lexical_short_circuit", "mode_off", "embedder_unavailable"
	RatioUsed     float64
}

// blendScores combines a lexical-scored row set with a vector-scored
// row set via a convex combination weighted by ratio (the vector
// branch's share), merging rows by ID and summing contributions for
// rows present in both. Rows are assumed
// already normalized to comparable ranges by their respective callers.
func blendScores(lexical, vector []*Row, ratio float64) []*Row {
	byID := make(map[string]*Row, len(lexical)+len(vector))
	order := make([]string, 0, len(lexical)+len(vector))

	for _, r := range lexical {
		cp := *r
		cp.Score = cp.BM25Score * (1 - ratio)
		byID[cp.ID] = &cp
		order = append(order, cp.ID)
	}
	for _, r := range vector {
		if existing, ok := byID[r.ID]; ok {
			existing.VecScore = r.VecScore
			existing.Score += r.VecScore * ratio
			existing.InBoth = true
			continue
		}
		cp := *r
		cp.Score = cp.VecScore * ratio
		byID[cp.ID] = &cp
		order = append(order, cp.ID)
	}

	out := make([]*Row, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, byID[id])
	}
	SortDeterministic(out)
	return out
}

// shouldShortCircuit reports whether the lexical top score is
// confident enough to skip the vector branch entirely.
func shouldShortCircuit(lexical []*Row, threshold float64) bool {
	if len(lexical) == 0 {
		return false
	}
	return lexical[0].BM25Score >= threshold
}

// SortDeterministic orders rows by (score desc, path asc, line_start
// asc, line_end asc, id asc), the tie-break used for every result
// ordering so repeated queries return a stable order.
func SortDeterministic(rows []*Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.LineStart != b.LineStart {
			return a.LineStart < b.LineStart
		}
		if a.LineEnd != b.LineEnd {
			return a.LineEnd < b.LineEnd
		}
		return a.ID < b.ID
	})
}
