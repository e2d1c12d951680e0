package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeOverlayRows_OverlayWinsOnMergeKeyCollision(t *testing.T) {
	base := []*Row{{ID: "base-sym", Path: "a.go", Content: "base body", mergeKey: "stable-1"}}
	overlay := []*Row{{ID: "overlay-sym", Path: "a.go", Content: "edited body", mergeKey: "stable-1"}}

	merged := mergeOverlayRows(base, overlay, nil)
	require.Len(t, merged, 1)
	assert.Equal(t, "overlay-sym", merged[0].ID)
	assert.Equal(t, LayerOverlay, merged[0].SourceLayer)
	assert.Equal(t, "edited body", merged[0].Content)
}

func TestMergeOverlayRows_DisjointRows_KeepsBoth(t *testing.T) {
	base := []*Row{{ID: "base-only", Path: "a.go", mergeKey: "stable-a"}}
	overlay := []*Row{{ID: "overlay-only", Path: "b.go", mergeKey: "stable-b"}}

	merged := mergeOverlayRows(base, overlay, nil)
	require.Len(t, merged, 2)
	assert.Equal(t, LayerBase, merged[0].SourceLayer)
	assert.Equal(t, LayerOverlay, merged[1].SourceLayer)
}

func TestMergeOverlayRows_TombstonedBasePath_IsDropped(t *testing.T) {
	base := []*Row{{ID: "removed", Path: "deleted.go", mergeKey: "stable-x"}}
	tombstones := map[string]bool{"deleted.go": true}

	merged := mergeOverlayRows(base, nil, tombstones)
	assert.Empty(t, merged)
}

func TestMergeOverlayRows_EmptyInputs_ReturnsEmpty(t *testing.T) {
	merged := mergeOverlayRows(nil, nil, nil)
	assert.Empty(t, merged)
}
