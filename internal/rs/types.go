// Package rs implements the relational store (RS): durable metadata for
// projects, file manifests, symbol relations, edges, jobs, branch state,
// tombstones, and the known-workspace registry. It also
// hosts the semantic_vector_meta/semantic_vectors tables used by the
// SQLite vector-store backend (internal/vs), which share this connection
// rather than opening a second database file.
package rs

import "time"

// JobStatus is the closed enum an index job's state moves through.
type JobStatus string

const (
	JobQueued      JobStatus = "queued"
	JobRunning     JobStatus = "running"
	JobValidating  JobStatus = "validating"
	JobPublished   JobStatus = "published"
	JobFailed      JobStatus = "failed"
	JobRolledBack  JobStatus = "rolled_back"
	JobInterrupted JobStatus = "interrupted"
)

// BranchStatus is the closed enum for branch_state.status. Legacy
// aliases ("idle", "partial_available") are accepted on read and
// normalized to "ready", never re-written in legacy form.
type BranchStatus string

const (
	BranchActive     BranchStatus = "active"
	BranchSyncing    BranchStatus = "syncing"
	BranchRebuilding BranchStatus = "rebuilding"
	BranchIndexing   BranchStatus = "indexing"
	BranchReady      BranchStatus = "ready"
)

func normalizeBranchStatus(s string) BranchStatus {
	switch s {
	case "idle", "partial_available", "ready":
		return BranchReady
	default:
		return BranchStatus(s)
	}
}

// Project is the RS row for a registered or auto-discovered repository.
type Project struct {
	ID             string
	RepoRoot       string
	DefaultRef     string
	VCSMode        bool
	SchemaVersion  int
	ParserVersion  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FileRecord is a keyed (project_id, ref, path) manifest entry.
type FileRecord struct {
	ProjectID   string
	Ref         string
	Path        string
	ContentHash string
	SizeBytes   int64
	Language    string
	MTimeNanos  int64 // 0 if unknown
	ContentHead string
	UpdatedAt   time.Time
}

// SymbolRecord is an extracted symbol, keyed by its ref-local SymbolID.
type SymbolRecord struct {
	SymbolID        string
	SymbolStableID  string
	ProjectID       string
	Ref             string
	Path            string
	Kind            string
	QualifiedName   string
	Name            string
	Signature       string
	LineStart       int
	LineEnd         int
	ParentSymbolID  string
	ContentHash     string
	Language        string
}

// EdgeRecord is a directed relation between symbols.
type EdgeRecord struct {
	ID            int64
	ProjectID     string
	Ref           string
	FromSymbolID  string
	ToSymbolID    string // empty if unresolved
	ToName        string // set when unresolved, or always for documentation
	EdgeType      string
	Confidence    string
	Provider      string
	Outcome       string
	Weight        float64
	SourceFile    string
	SourceLine    int
}

// BranchState is the per-(project, ref) sync/status record.
type BranchState struct {
	ProjectID         string
	Ref               string
	LastIndexedCommit string
	MergeBaseCommit   string
	OverlayDir        string
	IsDefaultBranch   bool
	Status            BranchStatus
	FileCount         int
	SymbolCount       int
	UpdatedAt         time.Time
}

// Tombstone marks a base file as absent in a given ref.
type Tombstone struct {
	ProjectID string
	Ref       string
	Path      string
	CreatedAt time.Time
}

// Job is an indexing lifecycle record.
type Job struct {
	ID              string
	ProjectID       string
	Ref             string
	Status          JobStatus
	Mode            string // full | incremental
	FilesTotal      int
	FilesProcessed  int
	ProgressToken   string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Workspace is a known-workspace registry row, consumed by the (out of
// scope) workspace router; the engine never looks this up itself except
// to serve the health/registry surface.
type Workspace struct {
	Path      string
	ProjectID string
	Allowed   bool
	CreatedAt time.Time
}
