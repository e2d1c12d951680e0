package li

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	_ "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

const (
	codeTokenizerName = "codecompass_code_tokenizer"
	codeStopFilterName = "codecompass_code_stop"
	codeAnalyzerName   = "codecompass_code_analyzer"
)

var registerOnce sync.Once

func registerAnalyzer() {
	registerOnce.Do(func() {
		_ = registry.RegisterTokenizer(codeTokenizerName, func(map[string]interface{}, *registry.Cache) (analysis.Tokenizer, error) {
			return &codeTokenizer{}, nil
		})
		_ = registry.RegisterTokenFilter(codeStopFilterName, func(map[string]interface{}, *registry.Cache) (analysis.TokenFilter, error) {
			return &codeStopFilter{stopWords: BuildStopWordMap(DefaultStopWords)}, nil
		})
	})
}

type codeTokenizer struct{}

func (t *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeCode(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos, offset := 1, 0
	for _, tok := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), strings.ToLower(tok))
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(tok)
		result = append(result, &analysis.Token{
			Term:     []byte(tok),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}
	return result
}

type codeStopFilter struct{ stopWords map[string]struct{} }

func (f *codeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		if _, isStop := f.stopWords[strings.ToLower(string(tok.Term))]; !isStop {
			result = append(result, tok)
		}
	}
	return result
}

func buildMapping() (*mapping.IndexMappingImpl, error) {
	registerAnalyzer()
	m := bleve.NewIndexMapping()
	if err := m.AddCustomAnalyzer(codeAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     codeTokenizerName,
		"token_filters": []string{lowercase.Name, codeStopFilterName},
	}); err != nil {
		return nil, fmt.Errorf("add custom analyzer: %w", err)
	}
	m.DefaultAnalyzer = codeAnalyzerName

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = keywordAnalyzerName

	doc := bleve.NewDocumentMapping()
	for _, field := range []string{"Path", "ProjectID", "Ref", "SymbolID"} {
		doc.AddFieldMappingsAt(field, keyword)
	}
	m.DefaultMapping = doc
	return m, nil
}

const keywordAnalyzerName = "keyword"

// Set is the lexical index set: three independent Bleve indices rooted
// under one LI directory, opened and closed together.
type Set struct {
	mu       sync.RWMutex
	root     string
	symbols  bleve.Index
	snippets bleve.Index
	files    bleve.Index
}

// Open opens (or creates) the three Bleve indices under root. An empty
// root yields in-memory indices, used for tests.
func Open(root string) (*Set, error) {
	symbolsPath, snippetsPath, filesPath := "", "", ""
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, ccerrors.IoError("failed to create LI root", err)
		}
		symbolsPath = filepath.Join(root, "symbols.bleve")
		snippetsPath = filepath.Join(root, "snippets.bleve")
		filesPath = filepath.Join(root, "files.bleve")
	}

	symbols, err := openOne(symbolsPath)
	if err != nil {
		return nil, err
	}
	snippets, err := openOne(snippetsPath)
	if err != nil {
		_ = symbols.Close()
		return nil, err
	}
	files, err := openOne(filesPath)
	if err != nil {
		_ = symbols.Close()
		_ = snippets.Close()
		return nil, err
	}

	return &Set{root: root, symbols: symbols, snippets: snippets, files: files}, nil
}

func openOne(path string) (bleve.Index, error) {
	m, err := buildMapping()
	if err != nil {
		return nil, ccerrors.InternalError("failed to build LI mapping", err)
	}
	if path == "" {
		idx, err := bleve.NewMemOnly(m)
		if err != nil {
			return nil, ccerrors.InternalError("failed to create in-memory LI index", err)
		}
		return idx, nil
	}
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, m)
	}
	if err != nil {
		return nil, ccerrors.SchemaIncompatible("failed to open LI index at " + path).WithDetail("cause", err.Error())
	}
	return idx, nil
}

// Status reports whether the LI root at path is usable without being
// opened, used by the freshness/health surfaces to avoid paying an
// open+close cycle just to check.
func Status(root string) SchemaStatus {
	if root == "" {
		return StatusNotIndexed
	}
	for _, name := range []string{"symbols.bleve", "snippets.bleve", "files.bleve"} {
		metaPath := filepath.Join(root, name, "index_meta.json")
		info, err := os.Stat(metaPath)
		if os.IsNotExist(err) {
			return StatusNotIndexed
		}
		if err != nil || info.Size() == 0 {
			return StatusCorruptManifest
		}
	}
	return StatusCompatible
}

// CommitAll is a no-op barrier: each IndexSymbols/IndexSnippets/IndexFiles
// call already commits its own Bleve batch synchronously, so by the time
// a caller reaches the end of a job every prior write is durable. It
// exists so pipeline code can mark the publish point explicitly without assuming Bleve's per-call commit
// behavior.
func (s *Set) CommitAll() error {
	return nil
}

func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, idx := range []bleve.Index{s.symbols, s.snippets, s.files} {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func docID(projectID, ref, key string) string {
	return projectID + ":" + ref + ":" + key
}

// IndexSymbols upserts symbol documents.
func (s *Set) IndexSymbols(ctx context.Context, docs []*SymbolDoc) error {
	if len(docs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.symbols.NewBatch()
	for _, d := range docs {
		if err := batch.Index(docID(d.ProjectID, d.Ref, d.SymbolID), d); err != nil {
			return ccerrors.InternalError("failed to stage symbol doc", err)
		}
	}
	if err := s.symbols.Batch(batch); err != nil {
		return ccerrors.InternalError("failed to commit symbol batch", err)
	}
	return nil
}

// IndexSnippets upserts snippet body documents.
func (s *Set) IndexSnippets(ctx context.Context, docs []*SnippetDoc) error {
	if len(docs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.snippets.NewBatch()
	for _, d := range docs {
		if err := batch.Index(docID(d.ProjectID, d.Ref, d.SymbolID), d); err != nil {
			return ccerrors.InternalError("failed to stage snippet doc", err)
		}
	}
	if err := s.snippets.Batch(batch); err != nil {
		return ccerrors.InternalError("failed to commit snippet batch", err)
	}
	return nil
}

// IndexFiles upserts file content-head documents.
func (s *Set) IndexFiles(ctx context.Context, docs []*FileDoc) error {
	if len(docs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.files.NewBatch()
	for _, d := range docs {
		if err := batch.Index(docID(d.ProjectID, d.Ref, d.Path), d); err != nil {
			return ccerrors.InternalError("failed to stage file doc", err)
		}
	}
	if err := s.files.Batch(batch); err != nil {
		return ccerrors.InternalError("failed to commit file batch", err)
	}
	return nil
}

func search(ctx context.Context, idx bleve.Index, field, queryStr string, limit int) ([]*Hit, error) {
	if strings.TrimSpace(queryStr) == "" {
		return nil, nil
	}
	q := bleve.NewMatchQuery(queryStr)
	q.SetField(field)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.IncludeLocations = true

	result, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, ccerrors.InternalError("lexical search failed", err)
	}
	hits := make([]*Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hits = append(hits, &Hit{DocID: h.ID, Score: h.Score, MatchedTerms: matchedTerms(h)})
	}
	return hits, nil
}

func matchedTerms(hit *search.DocumentMatch) []string {
	seen := map[string]struct{}{}
	for _, locs := range hit.Locations {
		for term := range locs {
			seen[term] = struct{}{}
		}
	}
	terms := make([]string, 0, len(seen))
	for t := range seen {
		terms = append(terms, t)
	}
	return terms
}

func (s *Set) SearchSymbols(ctx context.Context, query string, limit int) ([]*Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return search(ctx, s.symbols, "QualifiedName", query, limit)
}

func (s *Set) SearchSnippets(ctx context.Context, query string, limit int) ([]*Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return search(ctx, s.snippets, "Content", query, limit)
}

func (s *Set) SearchFiles(ctx context.Context, query string, limit int) ([]*Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return search(ctx, s.files, "ContentHead", query, limit)
}

// DeleteByPath removes every symbol/snippet/file document that
// originated from (project, ref, path), mirroring rs.DeleteFile.
func (s *Set) DeleteByPath(ctx context.Context, projectID, ref, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := deleteMatchingPath(ctx, s.symbols, "Path", projectID, ref, path); err != nil {
		return err
	}
	if err := deleteMatchingPath(ctx, s.snippets, "Path", projectID, ref, path); err != nil {
		return err
	}
	fileDocID := docID(projectID, ref, path)
	if err := s.files.Delete(fileDocID); err != nil {
		return ccerrors.InternalError("failed to delete file doc", err)
	}
	return nil
}

func deleteMatchingPath(ctx context.Context, idx bleve.Index, field, projectID, ref, path string) error {
	q := bleve.NewTermQuery(path)
	q.SetField(field)
	req := bleve.NewSearchRequest(q)
	req.Size = 10000
	result, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return ccerrors.InternalError("failed to find docs for path delete", err)
	}
	if len(result.Hits) == 0 {
		return nil
	}
	batch := idx.NewBatch()
	for _, h := range result.Hits {
		if strings.HasPrefix(h.ID, docID(projectID, ref, "")) {
			batch.Delete(h.ID)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return ccerrors.InternalError("failed to commit path delete batch", err)
	}
	return nil
}

var _ Index = (*Set)(nil)
