package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalridge/codecompass/internal/config"
	"github.com/signalridge/codecompass/internal/embed"
	"github.com/signalridge/codecompass/internal/ids"
	"github.com/signalridge/codecompass/internal/li"
	"github.com/signalridge/codecompass/internal/output"
	"github.com/signalridge/codecompass/internal/overlay"
	"github.com/signalridge/codecompass/internal/pipeline"
	"github.com/signalridge/codecompass/internal/preflight"
	"github.com/signalridge/codecompass/internal/rs"
	"github.com/signalridge/codecompass/internal/vcsadapter"
	"github.com/signalridge/codecompass/internal/vs"
)

// cruxeJobIDEnv pins the pipeline job ID when codecompass index is
// invoked as a subprocess by an orchestrating caller, instead of
// letting the pipeline mint one from (project, ref, timestamp).
const cruxeJobIDEnv = "CRUXE_JOB_ID"

func newIndexCmd() *cobra.Command {
	var (
		path          string
		force         bool
		ref           string
		configPath    string
		offline       bool
		skipPreflight bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index a project directory",
		Long: `Scan a project directory, extract symbols and snippets, and write
them into the relational store, the full-text index, and (unless
--offline) the vector store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, path, ref, configPath, force, offline, skipPreflight)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project directory to index")
	cmd.Flags().BoolVar(&force, "force", false, "Ignore the content-hash short-circuit and reindex everything")
	cmd.Flags().StringVar(&ref, "ref", "live", "Ref to index under (e.g. a branch or \"live\" for the working tree)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a .codecompass.yaml config file (defaults to <path>/.codecompass.yaml)")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use a static embedder instead of Ollama (BM25-only fidelity)")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip disk/memory/embedder sanity checks before indexing")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path, ref, configPath string, force, offline, skipPreflight bool) error {
	out := output.New(cmd.OutOrStdout())

	root, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root)
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
	if !skipPreflight && !cfg.Indexing.SkipPreflight && preflight.NeedsCheck(dataDir) {
		checker := preflight.New(preflight.WithOutput(cmd.OutOrStdout()))
		results := checker.RunAll(ctx, root)
		checker.PrintResults(results)
		if checker.HasCriticalFailures(results) {
			return fmt.Errorf("preflight checks failed, fix the issues above or pass --skip-preflight")
		}
		if err := preflight.MarkPassed(dataDir); err != nil {
			out.Warningf("failed to record preflight marker: %v", err)
		}
	}

	store, err := rs.Open(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open relational store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if n, reconcileErr := store.ReconcileInterruptedJobs(ctx); reconcileErr != nil {
		out.Warningf("failed to reconcile interrupted jobs: %v", reconcileErr)
	} else if n > 0 {
		out.Warningf("reconciled %d job(s) interrupted by a prior crash", n)
	}

	projectID := ids.ProjectID(root)

	vcsMode := cfg.VCS.Enabled
	if vcsMode {
		if _, vcsErr := vcsadapter.Open(root); vcsErr != nil {
			vcsMode = false
		}
	}

	defaultRef := ref
	if existing, getErr := store.GetProject(ctx, projectID); getErr == nil && existing != nil {
		defaultRef = existing.DefaultRef
	}
	if err := store.UpsertProject(ctx, &rs.Project{ID: projectID, RepoRoot: root, DefaultRef: defaultRef, VCSMode: vcsMode}); err != nil {
		return fmt.Errorf("failed to register project: %w", err)
	}

	if vcsMode && ref != defaultRef {
		return runOverlaySync(ctx, out, store, dataDir, projectID, root, defaultRef, ref)
	}

	liRoot := filepath.Join(dataDir, projectID, "base")
	liSet, err := li.Open(liRoot)
	if err != nil {
		return fmt.Errorf("failed to open full-text index: %w", err)
	}
	defer func() { _ = liSet.Close() }()

	var vectorStore vs.Store
	var emb pipeline.Embedder
	if !offline {
		provider := embed.ParseProvider(cfg.Embeddings.Provider)
		embedCtx, embedCancel := context.WithTimeout(ctx, embedderInitTimeout)
		e, embErr := embed.NewEmbedder(embedCtx, provider, cfg.Embeddings.Model)
		embedCancel()
		if embErr != nil {
			out.Warningf("embedder unavailable, falling back to BM25-only indexing: %v", embErr)
		} else {
			defer func() { _ = e.Close() }()
			emb = &embedderAdapter{Embedder: e}
			vectorCacheSize := cfg.Storage.VectorCacheSize
			if vectorCacheSize <= 0 {
				vectorCacheSize = defaultVectorCacheSize
			}
			sqliteVS, vsErr := vs.NewSQLiteStore(store.DB(), vectorCacheSize)
			if vsErr != nil {
				return fmt.Errorf("failed to create vector store: %w", vsErr)
			}
			vectorStore = sqliteVS
		}
	}

	pl, err := pipeline.New(store, liSet, vectorStore, emb)
	if err != nil {
		return fmt.Errorf("failed to create indexing pipeline: %w", err)
	}

	jobID := os.Getenv(cruxeJobIDEnv)

	out.Statusf("📊", "Indexing %s (ref=%s)...", root, ref)
	result, err := pl.Run(ctx, pipeline.Options{
		ProjectID: projectID,
		RootPath:  root,
		DataDir:   dataDir,
		Ref:       ref,
		Force:     force,
		Workers:   cfg.Indexing.Workers,
		JobID:     jobID,
	})
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	out.Successf("Indexed %d files (%d changed, %d removed), %d symbols", result.FilesScanned, len(result.FilesChanged), len(result.FilesRemoved), result.SymbolCount)
	for _, w := range result.Warnings {
		out.Warning(w)
	}
	return nil
}

// runOverlaySync indexes a non-default ref as a delta against the
// project's default ref, instead of a full base pipeline run: a
// dedicated LI set and RS rows under ref = targetRef, computed by
// diffing targetRef against the merge base with the default ref.
func runOverlaySync(ctx context.Context, out *output.Writer, store *rs.Store, dataDir, projectID, repoRoot, defaultRef, targetRef string) error {
	out.Statusf("📊", "Syncing overlay for %s (ref=%s, base=%s)...", repoRoot, targetRef, defaultRef)
	eng := overlay.New(store, dataDir)
	result, err := eng.Sync(ctx, overlay.SyncOptions{
		ProjectID:  projectID,
		RepoRoot:   repoRoot,
		DefaultRef: defaultRef,
		TargetRef:  targetRef,
	})
	if err != nil {
		return fmt.Errorf("overlay sync failed: %w", err)
	}
	if result.Rebuilt {
		out.Successf("Overlay rebuilt at %s: %d files changed, %d removed", result.HeadCommit, result.FilesChanged, result.FilesDeleted)
	} else {
		out.Successf("Overlay synced at %s: %d files changed, %d removed", result.HeadCommit, result.FilesChanged, result.FilesDeleted)
	}
	return nil
}

const (
	embedderInitTimeout    = 15 * time.Second
	defaultVectorCacheSize = 32
)

// embedderAdapter bridges internal/embed's single-return EmbedBatch
// onto pipeline.Embedder's (vectors, modelVersion, error) shape.
type embedderAdapter struct {
	embed.Embedder
}

func (a *embedderAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, string, error) {
	vectors, err := a.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, "", err
	}
	return vectors, a.Embedder.ModelName(), nil
}
