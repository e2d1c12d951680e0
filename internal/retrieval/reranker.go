package retrieval

import (
	"context"
	"strings"
)

// RerankFailureReason is the closed set of classified rerank-provider
// failures, so callers can report *why* the local fallback fired
// without leaking provider error text that could carry a credential.
type RerankFailureReason string

const (
	RerankMissingAPIKey RerankFailureReason = "rerank_missing_api_key"
	RerankTimeout       RerankFailureReason = "rerank_timeout"
	RerankHTTPError     RerankFailureReason = "rerank_http_error"
	RerankUnconfigured  RerankFailureReason = "rerank_unconfigured"
)

// RerankedDoc is a single reranked document, referencing the original
// row by its position in the input slice.
type RerankedDoc struct {
	Index int
	Score float64
}

// Reranker is the black-box external rerank provider boundary. Implementations wrap
// whatever HTTP/gRPC reranking service is configured.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]RerankedDoc, error)
}

// RerankFailureError classifies a Reranker failure into the closed
// reason set without retaining the underlying cause's text, so a
// caller logging or surfacing the reason can never leak provider
// response bodies or headers.
type RerankFailureError struct {
	Reason RerankFailureReason
}

func (e *RerankFailureError) Error() string { return string(e.Reason) }

// rerankOrFallback calls provider if configured; on any error, or when
// provider is nil, it falls back to the deterministic local rule-based
// reranker (phrase boost + token overlap) and reports why.
func rerankOrFallback(ctx context.Context, provider Reranker, query string, rows []*Row) (RerankFailureReason, bool) {
	if provider == nil {
		localRerank(query, rows)
		return RerankUnconfigured, false
	}

	docs := make([]string, len(rows))
	for i, r := range rows {
		docs[i] = r.Content
	}
	reranked, err := provider.Rerank(ctx, query, docs)
	if err != nil {
		reason := RerankHTTPError
		var rfe *RerankFailureError
		if ok := asRerankFailure(err, &rfe); ok {
			reason = rfe.Reason
		}
		localRerank(query, rows)
		return reason, false
	}

	for _, d := range reranked {
		if d.Index >= 0 && d.Index < len(rows) {
			rows[d.Index].Score = d.Score
		}
	}
	SortDeterministic(rows)
	return "", true
}

func asRerankFailure(err error, target **RerankFailureError) bool {
	if rfe, ok := err.(*RerankFailureError); ok {
		*target = rfe
		return true
	}
	return false
}

// localRerank is the deterministic fallback: a phrase boost (the full
// query appears verbatim in the document) plus a token-overlap ratio,
// added to the existing lexical/semantic score rather than replacing it.
func localRerank(query string, rows []*Row) {
	qLower := strings.ToLower(strings.TrimSpace(query))
	qTokens := queryTokens(query)
	qTokenSet := make(map[string]bool, len(qTokens))
	for _, t := range qTokens {
		qTokenSet[strings.ToLower(t)] = true
	}

	for _, r := range rows {
		content := strings.ToLower(r.Content)
		if qLower != "" && strings.Contains(content, qLower) {
			r.Score += 0.20
		}
		if len(qTokenSet) > 0 {
			docTokens := queryTokens(r.Content)
			matched := 0
			seen := make(map[string]bool, len(docTokens))
			for _, t := range docTokens {
				tl := strings.ToLower(t)
				if qTokenSet[tl] && !seen[tl] {
					matched++
					seen[tl] = true
				}
			}
			overlap := float64(matched) / float64(len(qTokenSet))
			r.Score += overlap * 0.15
		}
	}
	SortDeterministic(rows)
}
