// Package health implements the GET /health contract: a
// cached snapshot of schema, job, and vector-warmset status across
// every registered project, deliberately omitting the per-tool
// metadata/grammar listings the MCP health tool would include.
package health

import (
	"context"
	"path/filepath"
	"time"

	"github.com/signalridge/codecompass/internal/cache"
	"github.com/signalridge/codecompass/internal/li"
	"github.com/signalridge/codecompass/internal/rs"
	"github.com/signalridge/codecompass/internal/vs"
)

// BranchHealth is the per-(project, ref) status row.
type BranchHealth struct {
	Ref               string          `json:"ref"`
	Status            rs.BranchStatus `json:"status"`
	SchemaStatus      li.SchemaStatus `json:"schema_status"`
	FileCount         int             `json:"file_count"`
	SymbolCount       int             `json:"symbol_count"`
	LastIndexedCommit string          `json:"last_indexed_commit,omitempty"`
	ActiveJobID       string          `json:"active_job_id,omitempty"`
	ActiveJobStatus   rs.JobStatus    `json:"active_job_status,omitempty"`
}

// ProjectHealth is the per-project status row.
type ProjectHealth struct {
	ProjectID string          `json:"project_id"`
	VCSMode   bool            `json:"vcs_mode"`
	Branches  []*BranchHealth `json:"branches"`
}

// Payload is the full GET /health response body.
type Payload struct {
	Status            string           `json:"status"` // "ok" | "degraded"
	InterruptedJobs   int              `json:"interrupted_jobs"`
	WarmPartitions    int              `json:"warmset_partitions"`
	Projects          []*ProjectHealth `json:"projects"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// Checker assembles the health payload from the live stores and caches
// it for 1s.
type Checker struct {
	RS      *rs.Store
	VS      vs.Store // nil if vector search is disabled
	DataDir string
	cache   *cache.TTLCache[*Payload]
}

// New builds a Checker caching its computed payload for ttl.
func New(store *rs.Store, vectorStore vs.Store, dataDir string, ttl time.Duration) *Checker {
	return &Checker{RS: store, VS: vectorStore, DataDir: dataDir, cache: cache.NewTTLCache[*Payload](ttl)}
}

// Check returns the current health payload, serving a cached copy when
// still within the TTL window.
func (c *Checker) Check(ctx context.Context) (*Payload, error) {
	return c.cache.GetOrCompute(func() (*Payload, error) {
		return c.compute(ctx)
	})
}

func (c *Checker) compute(ctx context.Context) (*Payload, error) {
	projects, err := c.RS.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	payload := &Payload{Status: "ok", GeneratedAt: time.Now().UTC()}
	if c.VS != nil {
		payload.WarmPartitions = c.VS.WarmPartitions()
	}

	for _, p := range projects {
		branches, err := c.RS.ListBranches(ctx, p.ID)
		if err != nil {
			return nil, err
		}

		ph := &ProjectHealth{ProjectID: p.ID, VCSMode: p.VCSMode}
		for _, b := range branches {
			bh := &BranchHealth{
				Ref:               b.Ref,
				Status:            b.Status,
				FileCount:         b.FileCount,
				SymbolCount:       b.SymbolCount,
				LastIndexedCommit: b.LastIndexedCommit,
				SchemaStatus:      c.liSchemaStatus(p.ID, b),
			}

			job, err := c.RS.GetActiveJob(ctx, p.ID, b.Ref)
			if err != nil {
				return nil, err
			}
			if job != nil {
				bh.ActiveJobID = job.ID
				bh.ActiveJobStatus = job.Status
				if job.Status == rs.JobInterrupted {
					payload.InterruptedJobs++
					payload.Status = "degraded"
				}
			}
			ph.Branches = append(ph.Branches, bh)
		}
		payload.Projects = append(payload.Projects, ph)
	}
	return payload, nil
}

// liSchemaStatus resolves the on-disk LI root for (project, ref) the
// same way the indexing pipeline and overlay engine lay it out
// and reports its schema status without opening it.
func (c *Checker) liSchemaStatus(projectID string, b *rs.BranchState) li.SchemaStatus {
	if c.DataDir == "" {
		return li.StatusNotIndexed
	}
	root := filepath.Join(c.DataDir, projectID, "base")
	if !b.IsDefaultBranch {
		if b.OverlayDir == "" {
			return li.StatusNotIndexed
		}
		root = b.OverlayDir
	}
	return li.Status(root)
}
