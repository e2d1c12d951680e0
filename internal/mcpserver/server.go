// Package mcpserver registers the seven query tools —
// locate_symbol, search_code, find_references, diff_context,
// get_code_context, build_context_pack, explain_ranking — as MCP tools
// over github.com/modelcontextprotocol/go-sdk. It adapts the engine's
// Go-native request/response shapes onto typed, jsonschema-tagged
// wire structs and maps engine errors onto JSON-RPC error codes;
// workspace-to-project_id routing happens upstream and is accepted
// here only as an opaque project_id field.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/signalridge/codecompass/internal/protocol"
	"github.com/signalridge/codecompass/internal/retrieval"
	"github.com/signalridge/codecompass/pkg/version"
)

// Server bridges MCP clients to a retrieval.Engine.
type Server struct {
	mcp    *mcp.Server
	engine *retrieval.Engine
	logger *slog.Logger
}

// NewServer builds the MCP server and registers all seven query tools.
func NewServer(engine *retrieval.Engine, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("retrieval engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{engine: engine, logger: logger}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "codecompass",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server, e.g. for Serve's caller
// to attach additional transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "locate_symbol",
		Description: "Resolve a symbol by exact or qualified name. Use when you already know (or can guess) the identifier and want its definition site, signature, and kind.",
	}, s.handleLocateSymbol)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code",
		Description: "Hybrid lexical/semantic search over symbols, snippets, and files. Use for natural-language or partial queries where the exact symbol name isn't known.",
	}, s.handleSearchCode)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find_references",
		Description: "Resolve every known caller/usage site of a symbol, each annotated with its one-line call-site context.",
	}, s.handleFindReferences)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "diff_context",
		Description: "Compute the file- and symbol-level changes between two refs of the same project from a merge-base diff.",
	}, s.handleDiffContext)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_code_context",
		Description: "Run a query and greedily fill a token budget with the top-ranked results, at signature depth (breadth) or full body (depth).",
	}, s.handleGetCodeContext)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "build_context_pack",
		Description: "Build a section-organized bundle (definitions/usages/deps/tests/config/docs) for a query, token-budgeted per section, suitable for pasting into an LLM prompt.",
	}, s.handleBuildContextPack)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "explain_ranking",
		Description: "Rerun the ranking pipeline for a query and report the score breakdown (BM25, vector, boosts) that produced a specific result row.",
	}, s.handleExplainRanking)

	s.logger.Info("MCP tools registered", slog.Int("count", 7))
}

func policyModeOf(s string) protocol.PolicyMode {
	m, ok := protocol.ParsePolicyMode(s)
	if !ok {
		return ""
	}
	return m
}

func freshnessPolicyOf(s string) protocol.FreshnessPolicy {
	p, ok := protocol.ParseFreshnessPolicy(s)
	if !ok {
		return ""
	}
	return p
}

func (s *Server) handleLocateSymbol(ctx context.Context, _ *mcp.CallToolRequest, in LocateSymbolInput) (
	*mcp.CallToolResult, LocateSymbolOutput, error,
) {
	if in.ProjectID == "" || in.Name == "" {
		return nil, LocateSymbolOutput{}, NewInvalidParamsError("project_id and name are required")
	}
	result, err := s.engine.LocateSymbol(ctx, retrieval.LocateSymbolRequest{
		ProjectID: in.ProjectID, Ref: in.Ref, Name: in.Name, Kind: in.Kind, Language: in.Language,
		PolicyMode: policyModeOf(in.PolicyMode), FreshnessPolicy: freshnessPolicyOf(in.FreshnessPolicy), Limit: in.Limit,
	})
	if err != nil {
		return nil, LocateSymbolOutput{}, MapError(err)
	}
	return nil, LocateSymbolOutput{Rows: toRowOutputs(result.Rows), Metadata: result.Metadata}, nil
}

func (s *Server) handleSearchCode(ctx context.Context, _ *mcp.CallToolRequest, in SearchCodeInput) (
	*mcp.CallToolResult, SearchCodeOutput, error,
) {
	if in.ProjectID == "" || in.Query == "" {
		return nil, SearchCodeOutput{}, NewInvalidParamsError("project_id and query are required")
	}
	explain := protocol.ExplainOff
	if in.Debug {
		explain = protocol.ExplainFull
	}
	result, err := s.engine.SearchCode(ctx, retrieval.SearchCodeRequest{
		ProjectID: in.ProjectID, Ref: in.Ref, Query: in.Query, Kind: in.Kind, Language: in.Language,
		PolicyMode: policyModeOf(in.PolicyMode), FreshnessPolicy: freshnessPolicyOf(in.FreshnessPolicy),
		RankingExplain: explain, Limit: in.Limit,
	})
	if err != nil {
		return nil, SearchCodeOutput{}, MapError(err)
	}
	return nil, SearchCodeOutput{Rows: toRowOutputs(result.Rows), Metadata: result.Metadata}, nil
}

func (s *Server) handleFindReferences(ctx context.Context, _ *mcp.CallToolRequest, in FindReferencesInput) (
	*mcp.CallToolResult, FindReferencesOutput, error,
) {
	if in.ProjectID == "" || in.SymbolName == "" {
		return nil, FindReferencesOutput{}, NewInvalidParamsError("project_id and symbol_name are required")
	}
	result, err := s.engine.FindReferences(ctx, retrieval.FindReferencesRequest{
		ProjectID: in.ProjectID, Ref: in.Ref, SymbolName: in.SymbolName, Kind: in.Kind,
		PolicyMode: policyModeOf(in.PolicyMode), FreshnessPolicy: freshnessPolicyOf(in.FreshnessPolicy), Limit: in.Limit,
	})
	if err != nil {
		return nil, FindReferencesOutput{}, MapError(err)
	}
	return nil, FindReferencesOutput{Rows: toRowOutputs(result.Rows), Metadata: result.Metadata}, nil
}

func (s *Server) handleDiffContext(ctx context.Context, _ *mcp.CallToolRequest, in DiffContextInput) (
	*mcp.CallToolResult, DiffContextOutput, error,
) {
	if in.ProjectID == "" || in.BaseRef == "" || in.HeadRef == "" {
		return nil, DiffContextOutput{}, NewInvalidParamsError("project_id, base_ref, and head_ref are required")
	}
	changes, err := s.engine.DiffContext(ctx, retrieval.DiffContextRequest{
		ProjectID: in.ProjectID, FromRef: in.BaseRef, ToRef: in.HeadRef, PathFilter: in.PathFilter, Limit: in.Limit,
	})
	if err != nil {
		return nil, DiffContextOutput{}, MapError(err)
	}
	out := make([]DiffChangeOutput, 0, len(changes))
	for _, c := range changes {
		out = append(out, DiffChangeOutput{Path: c.Path, Kind: c.Kind, Symbols: toRowOutputs(c.Symbols)})
	}
	return nil, DiffContextOutput{Changes: out}, nil
}

func (s *Server) handleGetCodeContext(ctx context.Context, _ *mcp.CallToolRequest, in GetCodeContextInput) (
	*mcp.CallToolResult, GetCodeContextOutput, error,
) {
	if in.ProjectID == "" || in.Query == "" {
		return nil, GetCodeContextOutput{}, NewInvalidParamsError("project_id and query are required")
	}
	strategy := protocol.DetailBreadth
	if in.Strategy == string(protocol.DetailDepth) {
		strategy = protocol.DetailDepth
	}
	result, err := s.engine.GetCodeContext(ctx, retrieval.GetCodeContextRequest{
		ProjectID: in.ProjectID, Ref: in.Ref, Query: in.Query, Strategy: strategy, MaxTokens: in.MaxTokens,
		PolicyMode: policyModeOf(in.PolicyMode), FreshnessPolicy: freshnessPolicyOf(in.FreshnessPolicy),
	})
	if err != nil {
		return nil, GetCodeContextOutput{}, MapError(err)
	}
	return nil, GetCodeContextOutput{Rows: toRowOutputs(result.Rows), Metadata: result.Metadata}, nil
}

func (s *Server) handleBuildContextPack(ctx context.Context, _ *mcp.CallToolRequest, in BuildContextPackInput) (
	*mcp.CallToolResult, BuildContextPackOutput, error,
) {
	if in.ProjectID == "" || in.Query == "" {
		return nil, BuildContextPackOutput{}, NewInvalidParamsError("project_id and query are required")
	}
	mode := protocol.ContextPackFull
	if in.Mode == string(protocol.ContextPackEditMinimal) {
		mode = protocol.ContextPackEditMinimal
	}
	var caps map[protocol.ContextPackSection]int
	if len(in.SectionCaps) > 0 {
		caps = make(map[protocol.ContextPackSection]int, len(in.SectionCaps))
		for k, v := range in.SectionCaps {
			caps[protocol.ContextPackSection(k)] = v
		}
	}
	pack, err := s.engine.BuildContextPack(ctx, retrieval.ContextPackRequest{
		ProjectID: in.ProjectID, Ref: in.Ref, Query: in.Query, Mode: mode,
		BudgetTokens: in.BudgetTokens, SectionCaps: caps, PolicyMode: policyModeOf(in.PolicyMode),
		FreshnessPolicy: freshnessPolicyOf(in.FreshnessPolicy),
	})
	if err != nil {
		return nil, BuildContextPackOutput{}, MapError(err)
	}
	sections := make(map[string][]RowOutput, len(pack.Sections))
	for section, rows := range pack.Sections {
		sections[string(section)] = toRowOutputs(rows)
	}
	dropped := make(map[string]int, len(pack.DroppedByBudget))
	for section, n := range pack.DroppedByBudget {
		dropped[string(section)] = n
	}
	return nil, BuildContextPackOutput{
		Sections: sections, DroppedByBudget: dropped, SuggestedNextQueries: pack.SuggestedNextQueries,
		Metadata: pack.Metadata,
	}, nil
}

func (s *Server) handleExplainRanking(ctx context.Context, _ *mcp.CallToolRequest, in ExplainRankingInput) (
	*mcp.CallToolResult, ExplainRankingOutput, error,
) {
	if in.ProjectID == "" || in.Query == "" || in.ResultPath == "" {
		return nil, ExplainRankingOutput{}, NewInvalidParamsError("project_id, query, and result_path are required")
	}
	explanation, err := s.engine.ExplainRanking(ctx, retrieval.ExplainRankingRequest{
		ProjectID: in.ProjectID, Ref: in.Ref, Query: in.Query,
		ResultPath: in.ResultPath, ResultLineStart: in.ResultLineStart,
	})
	if err != nil {
		return nil, ExplainRankingOutput{}, MapError(err)
	}
	return nil, ExplainRankingOutput{
		Row: toRowOutput(explanation.Row), BM25Score: explanation.BM25Score, VecScore: explanation.VecScore,
		FinalScore: explanation.FinalScore, BoostReasons: explanation.BoostReasons,
		SourceLayer: string(explanation.SourceLayer), InBoth: explanation.InBoth,
	}, nil
}
