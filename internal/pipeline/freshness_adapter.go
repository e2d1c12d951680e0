package pipeline

import (
	"context"

	"github.com/signalridge/codecompass/internal/freshness"
)

// FreshnessIndexer adapts *Pipeline to internal/freshness.Indexer so the
// balanced-policy async sync trigger can launch a real indexing run
// without internal/freshness importing this package directly.
type FreshnessIndexer struct {
	*Pipeline
}

func (a FreshnessIndexer) Run(ctx context.Context, opts freshness.IndexOptions) error {
	_, err := a.Pipeline.Run(ctx, Options{
		ProjectID: opts.ProjectID,
		RootPath:  opts.RootPath,
		Ref:       opts.Ref,
		DataDir:   opts.DataDir,
		Mode:      ModeIncremental,
	})
	return err
}

var _ freshness.Indexer = FreshnessIndexer{}
