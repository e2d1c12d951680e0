package pipeline

import (
	"context"
	"os"
	"strings"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
	"github.com/signalridge/codecompass/internal/ids"
	"github.com/signalridge/codecompass/internal/li"
	"github.com/signalridge/codecompass/internal/rs"
	"github.com/signalridge/codecompass/internal/scanner"
	"github.com/signalridge/codecompass/internal/vs"
)

const contentHeadBytes = 512

// prepareFile is the parallel-prepare stage body: read, hash,
// short-circuit, parse, extract. Parse failures
// are recorded as a warning, never abort the file.
func (p *Pipeline) prepareFile(ctx context.Context, opts Options, f *scanner.FileInfo) (*preparedFile, error) {
	data, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return nil, ccerrors.IoError("failed to read file: "+f.Path, err)
	}

	contentHash := ids.ContentHash(data)
	pf := &preparedFile{
		path:        f.AbsPath,
		relPath:     f.Path,
		language:    f.Language,
		contentHash: contentHash,
		sizeBytes:   f.Size,
		contentHead: headOf(data, contentHeadBytes),
	}

	if !opts.Force {
		existing, err := p.RS.GetFile(ctx, opts.ProjectID, opts.Ref, f.Path)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ContentHash == contentHash {
			pf.unchanged = true
			return pf, nil
		}
	}

	tree, err := p.Parser.Parse(ctx, data, f.Language)
	if err != nil {
		pf.parseError = err.Error()
		return pf, nil // file is still manifested even though parsing failed
	}

	symbols := p.Extractor.ExtractSymbols(tree, opts.ProjectID, opts.Ref, f.Path)
	callEdges := p.Extractor.ExtractCallEdges(tree, opts.ProjectID, opts.Ref, f.Path, symbols)
	importEdges := p.Extractor.ExtractImportEdges(tree, opts.ProjectID, opts.Ref, f.Path, fileSymbolID(opts.ProjectID, opts.Ref, f.Path))

	lines := strings.Split(string(data), "\n")
	pf.symbols = symbols
	pf.edges = append(callEdges, importEdges...)
	pf.fileDoc = &li.FileDoc{
		ProjectID: opts.ProjectID, Ref: opts.Ref, Path: f.Path,
		Language: f.Language, ContentHead: pf.contentHead,
	}

	for _, sym := range symbols {
		pf.symbolDocs = append(pf.symbolDocs, &li.SymbolDoc{
			SymbolID: sym.SymbolID, ProjectID: sym.ProjectID, Ref: sym.Ref, Path: sym.Path,
			Kind: sym.Kind, QualifiedName: sym.QualifiedName, Name: sym.Name,
			Signature: sym.Signature, Language: sym.Language,
		})
		body := bodyOf(lines, sym.LineStart, sym.LineEnd)
		pf.snippetDocs = append(pf.snippetDocs, &li.SnippetDoc{
			SymbolID: sym.SymbolID, ProjectID: sym.ProjectID, Ref: sym.Ref, Path: sym.Path,
			Content: body, Language: sym.Language, LineStart: sym.LineStart, LineEnd: sym.LineEnd,
		})
	}
	return pf, nil
}

func headOf(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n])
}

func bodyOf(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end || start > len(lines) {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

func fileSymbolID(projectID, ref, path string) string {
	return ids.HashHex16(projectID, ref, path, "file")
}

// writeFile replaces RS and LI content for one file, then stages VS
// writes when an embedder is configured.
func (p *Pipeline) writeFile(ctx context.Context, opts Options, pf *preparedFile) error {
	if err := p.LI.DeleteByPath(ctx, opts.ProjectID, opts.Ref, pf.relPath); err != nil {
		return err
	}
	if err := p.RS.ReplaceSymbolsForFile(ctx, opts.ProjectID, opts.Ref, pf.relPath, pf.symbols); err != nil {
		return err
	}
	if err := p.RS.ReplaceEdgesForFile(ctx, opts.ProjectID, opts.Ref, pf.relPath, pf.edges); err != nil {
		return err
	}
	if err := p.RS.UpsertFiles(ctx, []*rs.FileRecord{{
		ProjectID: opts.ProjectID, Ref: opts.Ref, Path: pf.relPath,
		ContentHash: pf.contentHash, SizeBytes: pf.sizeBytes, Language: pf.language,
		ContentHead: pf.contentHead,
	}}); err != nil {
		return err
	}
	if len(pf.symbolDocs) > 0 {
		if err := p.LI.IndexSymbols(ctx, pf.symbolDocs); err != nil {
			return err
		}
	}
	if len(pf.snippetDocs) > 0 {
		if err := p.LI.IndexSnippets(ctx, pf.snippetDocs); err != nil {
			return err
		}
	}
	if pf.fileDoc != nil {
		if err := p.LI.IndexFiles(ctx, []*li.FileDoc{pf.fileDoc}); err != nil {
			return err
		}
	}
	return p.embedFile(ctx, opts, pf)
}

// embedFile writes embeddings for every symbol extracted from pf when
// both a vector store and an embedder are configured. VS is strictly
// optional.
func (p *Pipeline) embedFile(ctx context.Context, opts Options, pf *preparedFile) error {
	if p.VS == nil || p.Embedder == nil || len(pf.snippetDocs) == 0 {
		return nil
	}
	texts := make([]string, len(pf.snippetDocs))
	for i, s := range pf.snippetDocs {
		texts[i] = s.Content
	}
	values, modelVersion, err := p.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return ccerrors.ExternalProviderError("embedder", err.Error(), err)
	}
	if len(values) != len(pf.snippetDocs) {
		return ccerrors.InternalError("embedder returned a mismatched batch size", nil)
	}
	vectors := make([]*vs.Vector, 0, len(values))
	for i, snip := range pf.snippetDocs {
		vectors = append(vectors, &vs.Vector{
			ProjectID: opts.ProjectID, Ref: opts.Ref, SymbolStableID: symbolStableIDFor(pf, snip.SymbolID),
			SnippetHash: ids.ContentHash([]byte(snip.Content)), EmbeddingModelVersion: modelVersion,
			Values: values[i], ContentHash: ids.ContentHash([]byte(snip.Content)),
			LineStart: snip.LineStart, LineEnd: snip.LineEnd, Language: snip.Language, Path: snip.Path,
		})
	}
	return p.VS.Upsert(ctx, vectors)
}

func symbolStableIDFor(pf *preparedFile, symbolID string) string {
	for _, sym := range pf.symbols {
		if sym.SymbolID == symbolID {
			return sym.SymbolStableID
		}
	}
	return symbolID
}

// removeFile purges every trace of a file no longer present in the scan:
// symbols, snippets, file doc, incident edges, manifest entry, and
// vectors.
func (p *Pipeline) removeFile(ctx context.Context, projectID, ref, path string) error {
	if err := p.LI.DeleteByPath(ctx, projectID, ref, path); err != nil {
		return err
	}
	if err := p.RS.ReplaceSymbolsForFile(ctx, projectID, ref, path, nil); err != nil {
		return err
	}
	if err := p.RS.ReplaceEdgesForFile(ctx, projectID, ref, path, nil); err != nil {
		return err
	}
	if err := p.RS.DeleteFile(ctx, projectID, ref, path); err != nil {
		return err
	}
	if p.VS != nil {
		if err := p.VS.DeleteByPath(ctx, projectID, ref, path); err != nil {
			return err
		}
	}
	return nil
}
