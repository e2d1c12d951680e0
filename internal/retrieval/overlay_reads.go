package retrieval

// mergeOverlayRows implements the overlay-aware read: base
// rows whose path is tombstoned in the overlay are dropped, then base
// and overlay rows are merged by mergeKey with the overlay row winning
// on collision, and every surviving row is tagged with its
// SourceLayer.
func mergeOverlayRows(base, overlay []*Row, tombstonedPaths map[string]bool) []*Row {
	merged := make(map[string]*Row, len(base)+len(overlay))
	order := make([]string, 0, len(base)+len(overlay))

	for _, r := range base {
		if tombstonedPaths[r.Path] {
			continue
		}
		cp := *r
		cp.SourceLayer = LayerBase
		merged[cp.mergeKey] = &cp
		order = append(order, cp.mergeKey)
	}
	for _, r := range overlay {
		cp := *r
		cp.SourceLayer = LayerOverlay
		if _, exists := merged[cp.mergeKey]; !exists {
			order = append(order, cp.mergeKey)
		}
		merged[cp.mergeKey] = &cp // overlay wins on collision
	}

	out := make([]*Row, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, merged[k])
	}
	return out
}
