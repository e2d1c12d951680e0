package vs

import (
	"sync"

	"github.com/coder/hnsw"
)

// annIndex is a lazily-built HNSW graph over a partition's vectors,
// used only as a candidate pre-filter: the exact cosine rerank in
// exactTopK always has the final say on ranking.
// Grounded on the reference internal/store/hnsw.go graph setup.
type annIndex struct {
	once  sync.Once
	graph *hnsw.Graph[int]
	byKey map[int]*Vector
}

func (p *partition) annIndex(minRows int) (*annIndex, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ann != nil {
		return p.ann, nil
	}

	idx := &annIndex{graph: hnsw.NewGraph[int](), byKey: make(map[int]*Vector, len(p.vectors))}
	idx.graph.Distance = hnsw.CosineDistance
	idx.graph.M = 16
	idx.graph.EfSearch = 64

	for i, v := range p.vectors {
		idx.graph.Add(hnsw.MakeNode(i, normalizeCopy(v.Values)))
		idx.byKey[i] = v
	}
	p.ann = idx
	return idx, nil
}

// preFilter returns up to n candidate vectors nearest to query
// according to the approximate graph; the caller reranks exactly.
func (a *annIndex) preFilter(query []float32, n int) []*Vector {
	nodes := a.graph.Search(normalizeCopy(query), n)
	out := make([]*Vector, 0, len(nodes))
	for _, node := range nodes {
		if v, ok := a.byKey[node.Key]; ok {
			out = append(out, v)
		}
	}
	return out
}
