package vs

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

// SQLiteStore is the default VS backend: vectors live in the shared RS
// database's semantic_vectors table, and each (project, ref, model)
// partition is decoded into memory on first use and cached, since
// brute-force cosine search needs the full float32 matrix resident.
type SQLiteStore struct {
	db    *sql.DB
	cache *lru.Cache[PartitionKey, *partition]

	mu        sync.Mutex
	useANN    bool
	annMinRows int
}

type partition struct {
	mu      sync.RWMutex
	vectors []*Vector
	ann     *annIndex // lazily built, nil until first ANN-eligible search
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithANN enables an HNSW pre-filter for partitions with at least
// minRows vectors, falling back to exhaustive brute force below that.
func WithANN(minRows int) Option {
	return func(s *SQLiteStore) {
		s.useANN = true
		s.annMinRows = minRows
	}
}

// NewSQLiteStore wraps db (the shared RS connection) with an
// in-memory partition cache bounded to cacheSize entries.
func NewSQLiteStore(db *sql.DB, cacheSize int, opts ...Option) (*SQLiteStore, error) {
	cache, err := lru.New[PartitionKey, *partition](cacheSize)
	if err != nil {
		return nil, ccerrors.InternalError("failed to create vector partition cache", err)
	}
	s := &SQLiteStore{db: db, cache: cache, annMinRows: 2000}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *SQLiteStore) Backend() Backend { return BackendSQLite }
func (s *SQLiteStore) Available() bool  { return true }
func (s *SQLiteStore) Close() error     { return nil } // db lifecycle owned by rs.Store

// WarmPartitions reports how many (project, ref, model) partitions are
// currently decoded in memory, surfaced on the health endpoint's
// warmset status.
func (s *SQLiteStore) WarmPartitions() int { return s.cache.Len() }

// Upsert writes vectors and invalidates the cached partition for each
// distinct (project, ref, model) touched, so the next search re-reads
// from SQLite.
func (s *SQLiteStore) Upsert(ctx context.Context, vectors []*Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO semantic_vectors (project_id, ref, symbol_stable_id, snippet_hash, embedding_model_version, dim, vector_blob, content_hash, line_start, line_end, language, path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, ref, embedding_model_version, symbol_stable_id, snippet_hash) DO UPDATE SET
			dim = excluded.dim,
			vector_blob = excluded.vector_blob,
			content_hash = excluded.content_hash,
			line_start = excluded.line_start,
			line_end = excluded.line_end,
			language = excluded.language,
			path = excluded.path
	`)
	if err != nil {
		return ccerrors.SqliteError("failed to prepare vector upsert", err)
	}
	defer stmt.Close()

	touched := map[PartitionKey]struct{}{}
	for _, v := range vectors {
		if _, err := stmt.ExecContext(ctx, v.ProjectID, v.Ref, v.SymbolStableID, v.SnippetHash, v.EmbeddingModelVersion,
			len(v.Values), encodeBlob(v.Values), v.ContentHash, v.LineStart, v.LineEnd, v.Language, v.Path); err != nil {
			return ccerrors.SqliteError("failed to upsert vector", err)
		}
		touched[PartitionKey{ProjectID: v.ProjectID, Ref: v.Ref, EmbeddingModelVersion: v.EmbeddingModelVersion}] = struct{}{}
	}
	for k := range touched {
		s.cache.Remove(k)
		if err := s.touchMeta(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) touchMeta(ctx context.Context, k PartitionKey) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM semantic_vectors WHERE project_id = ? AND ref = ? AND embedding_model_version = ?`,
		k.ProjectID, k.Ref, k.EmbeddingModelVersion).Scan(&count); err != nil {
		return ccerrors.SqliteError("failed to count partition rows", err)
	}
	dim := 0
	_ = s.db.QueryRowContext(ctx, `SELECT dim FROM semantic_vectors WHERE project_id = ? AND ref = ? AND embedding_model_version = ? LIMIT 1`,
		k.ProjectID, k.Ref, k.EmbeddingModelVersion).Scan(&dim)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO semantic_vector_meta (project_id, ref, embedding_model_version, dimensions, row_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, ref, embedding_model_version) DO UPDATE SET
			dimensions = excluded.dimensions, row_count = excluded.row_count, updated_at = excluded.updated_at
	`, k.ProjectID, k.Ref, k.EmbeddingModelVersion, dim, count, now)
	if err != nil {
		return ccerrors.SqliteError("failed to update vector partition meta", err)
	}
	return nil
}

// DeleteByPath removes every vector sourced from (project, ref, path).
func (s *SQLiteStore) DeleteByPath(ctx context.Context, projectID, ref, path string) error {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT embedding_model_version FROM semantic_vectors WHERE project_id = ? AND ref = ? AND path = ?`, projectID, ref, path)
	if err != nil {
		return ccerrors.SqliteError("failed to enumerate affected partitions", err)
	}
	var models []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			rows.Close()
			return ccerrors.SqliteError("failed to scan partition model", err)
		}
		models = append(models, m)
	}
	rows.Close()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM semantic_vectors WHERE project_id = ? AND ref = ? AND path = ?`, projectID, ref, path); err != nil {
		return ccerrors.SqliteError("failed to delete vectors by path", err)
	}
	for _, m := range models {
		k := PartitionKey{ProjectID: projectID, Ref: ref, EmbeddingModelVersion: m}
		s.cache.Remove(k)
		if err := s.touchMeta(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// DeleteBySymbol removes every vector (across snippet hashes) for a
// single symbol.
func (s *SQLiteStore) DeleteBySymbol(ctx context.Context, projectID, ref, symbolStableID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM semantic_vectors WHERE project_id = ? AND ref = ? AND symbol_stable_id = ?`, projectID, ref, symbolStableID); err != nil {
		return ccerrors.SqliteError("failed to delete vectors by symbol", err)
	}
	s.invalidateAllForRef(projectID, ref)
	return nil
}

func (s *SQLiteStore) invalidateAllForRef(projectID, ref string) {
	for _, k := range s.cache.Keys() {
		if k.ProjectID == projectID && k.Ref == ref {
			s.cache.Remove(k)
		}
	}
}

func (s *SQLiteStore) loadPartition(ctx context.Context, key PartitionKey) (*partition, error) {
	if p, ok := s.cache.Get(key); ok {
		return p, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol_stable_id, snippet_hash, vector_blob, content_hash, line_start, line_end, language, path
		FROM semantic_vectors WHERE project_id = ? AND ref = ? AND embedding_model_version = ?`,
		key.ProjectID, key.Ref, key.EmbeddingModelVersion)
	if err != nil {
		return nil, ccerrors.SqliteError("failed to load vector partition", err)
	}
	defer rows.Close()

	var vectors []*Vector
	for rows.Next() {
		var v Vector
		var blob []byte
		if err := rows.Scan(&v.SymbolStableID, &v.SnippetHash, &blob, &v.ContentHash, &v.LineStart, &v.LineEnd, &v.Language, &v.Path); err != nil {
			return nil, ccerrors.SqliteError("failed to scan vector row", err)
		}
		v.ProjectID, v.Ref, v.EmbeddingModelVersion = key.ProjectID, key.Ref, key.EmbeddingModelVersion
		values, err := decodeBlob(blob)
		if err != nil {
			return nil, err
		}
		v.Values = values
		vectors = append(vectors, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, ccerrors.SqliteError("failed to iterate vector partition", err)
	}

	p := &partition{vectors: vectors}
	s.cache.Add(key, p)
	return p, nil
}

// Search returns the k nearest vectors to query in partition key by
// cosine similarity. When ANN is enabled and the partition meets the
// row-count threshold, an HNSW pre-filter narrows the candidate set
// before an exact cosine rerank; otherwise search is exhaustive.
func (s *SQLiteStore) Search(ctx context.Context, key PartitionKey, query []float32, k int) ([]*Result, error) {
	p, err := s.loadPartition(ctx, key)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	vectors := p.vectors
	p.mu.RUnlock()
	if len(vectors) == 0 {
		return nil, nil
	}

	candidates := vectors
	if s.useANN && len(vectors) >= s.annMinRows {
		idx, err := p.annIndex(s.annMinRows)
		if err != nil {
			return nil, err
		}
		candidates = idx.preFilter(query, k*10)
	}

	return exactTopK(candidates, query, k), nil
}

func exactTopK(vectors []*Vector, query []float32, k int) []*Result {
	normQuery := normalizeCopy(query)
	results := make([]*Result, 0, len(vectors))
	for _, v := range vectors {
		score := cosineSimilarity(normQuery, v.Values)
		results = append(results, &Result{
			SymbolStableID: v.SymbolStableID,
			SnippetHash:    v.SnippetHash,
			Score:          score,
			Path:           v.Path,
			LineStart:      v.LineStart,
			LineEnd:        v.LineEnd,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Path != results[j].Path {
			return results[i].Path < results[j].Path
		}
		return results[i].SymbolStableID < results[j].SymbolStableID
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

func normalizeCopy(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	var sumSquares float64
	for _, f := range out {
		sumSquares += float64(f) * float64(f)
	}
	if sumSquares == 0 {
		return out
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range out {
		out[i] *= inv
	}
	return out
}

func cosineSimilarity(normA, b []float32) float64 {
	normB := normalizeCopy(b)
	var dot float64
	n := len(normA)
	if len(normB) < n {
		n = len(normB)
	}
	for i := 0; i < n; i++ {
		dot += float64(normA[i]) * float64(normB[i])
	}
	return dot
}

var errUnavailable = errors.New("vector store backend unavailable")
