package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/signalridge/codecompass/internal/config"
	"github.com/signalridge/codecompass/internal/health"
	"github.com/signalridge/codecompass/internal/logging"
	"github.com/signalridge/codecompass/internal/mcpserver"
	"github.com/signalridge/codecompass/internal/policy"
	"github.com/signalridge/codecompass/internal/protocol"
	"github.com/signalridge/codecompass/internal/retrieval"
	"github.com/signalridge/codecompass/internal/rs"
	"github.com/signalridge/codecompass/internal/vs"
)

// healthCacheTTL bounds how often the health payload is recomputed.
const healthCacheTTL = time.Second

func newServeCmd() *cobra.Command {
	var (
		path       string
		healthAddr string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Serve the seven query tools (locate_symbol, search_code,
find_references, diff_context, get_code_context, build_context_pack,
explain_ranking) over the MCP stdio transport, and expose GET /health
over HTTP for liveness/readiness polling.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, path, healthAddr, configPath)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project directory whose data dir backs this server")
	cmd.Flags().StringVar(&healthAddr, "health-addr", "127.0.0.1:8085", "Address to serve GET /health on (empty disables it)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a .codecompass.yaml config file (defaults to <path>/.codecompass.yaml)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, path, healthAddr, configPath string) error {
	// MCP stdio reserves stdout for the wire protocol: route logging to
	// the rotating log file instead of the default stderr handler.
	stopLogging, err := logging.SetupMCPMode()
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer stopLogging()

	root, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	cfgDir := root
	if configPath != "" {
		cfgDir = filepath.Dir(configPath)
	}
	cfg, err := config.Load(cfgDir)
	if err != nil {
		cfg = config.NewConfig()
	}

	dataDirname := cfg.Storage.DataDirName
	if dataDirname == "" {
		dataDirname = dataDirName
	}
	dataDir := filepath.Join(root, dataDirname)
	store, err := rs.Open(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open relational store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if n, err := store.ReconcileInterruptedJobs(ctx); err != nil {
		slog.WarnContext(ctx, "failed to reconcile interrupted jobs", slog.String("error", err.Error()))
	} else if n > 0 {
		slog.InfoContext(ctx, "reconciled jobs interrupted by a prior crash", slog.Int("count", n))
	}

	vectorCacheSize := cfg.Storage.VectorCacheSize
	if vectorCacheSize <= 0 {
		vectorCacheSize = defaultVectorCacheSize
	}
	vectorStore, err := vs.NewSQLiteStore(store.DB(), vectorCacheSize)
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}

	retrievalCfg := retrieval.DefaultConfig()
	if mode, ok := protocol.ParseSemanticMode(cfg.Retrieval.SemanticMode); ok {
		retrievalCfg.SemanticMode = mode
	}
	if cfg.Retrieval.SemanticRatio > 0 {
		retrievalCfg.SemanticRatio = cfg.Retrieval.SemanticRatio
	}
	if cfg.Retrieval.LexicalShortCircuitThreshold > 0 {
		retrievalCfg.LexicalShortCircuitThreshold = cfg.Retrieval.LexicalShortCircuitThreshold
	}
	if fp, ok := protocol.ParseFreshnessPolicy(cfg.Freshness.Policy); ok {
		retrievalCfg.DefaultFreshnessPolicy = fp
	}

	var policyEngine *policy.Engine
	if mode, ok := protocol.ParsePolicyMode(cfg.Policy.Mode); ok {
		policyEngine = policy.New(policy.Config{
			Mode:      mode,
			PathAllow: cfg.Policy.PathAllow,
			PathDeny:  cfg.Policy.PathDeny,
			KindAllow: cfg.Policy.KindAllow,
			KindDeny:  cfg.Policy.KindDeny,
			Redaction: policy.RedactionConfig{BuiltIn: cfg.Policy.Redaction},
		})
	}

	engine, err := retrieval.New(store, vectorStore, nil, nil, policyEngine, dataDir, retrievalCfg)
	if err != nil {
		return fmt.Errorf("failed to create retrieval engine: %w", err)
	}
	defer func() { _ = engine.Close() }()

	mcpSrv, err := mcpserver.NewServer(engine, nil)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	var httpServer *http.Server
	if healthAddr != "" {
		checker := health.New(store, vectorStore, dataDir, healthCacheTTL)
		router := chi.NewRouter()
		router.Get("/health", checker.HTTPHandler())

		listener, err := net.Listen("tcp", healthAddr)
		if err != nil {
			return fmt.Errorf("failed to bind health listener: %w", err)
		}
		httpServer = &http.Server{Handler: router}
		go func() {
			_ = httpServer.Serve(listener)
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
	}

	return mcpSrv.Serve(ctx)
}
