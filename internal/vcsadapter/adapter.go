// Package vcsadapter wraps go-git to provide the narrow VCS surface
// the overlay engine and freshness checker need: resolving a ref to a
// commit, finding a merge base, diffing two commits by name-status,
// and reading a blob at a path.
package vcsadapter

import (
	"bytes"
	"context"
	"io"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/utils/merkletrie"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

// ChangeKind is the name-status classification of a diff entry.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeRenamed  ChangeKind = "renamed"
)

// Change is a single path-level difference between two commits.
type Change struct {
	Path     string
	OldPath  string // set only for ChangeRenamed
	Kind     ChangeKind
}

// Repository wraps a single on-disk git repository.
type Repository struct {
	repo *git.Repository
	root string
}

// Open opens the git repository rooted at path.
func Open(path string) (*Repository, error) {
	r, err := git.PlainOpen(path)
	if err != nil {
		return nil, ccerrors.VcsError("failed to open repository", err)
	}
	return &Repository{repo: r, root: path}, nil
}

// ResolveRef resolves a branch, tag, or short/long commit SHA to a
// full commit hash.
func (r *Repository) ResolveRef(ctx context.Context, ref string) (string, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return "", ccerrors.VcsError("failed to resolve ref "+ref, err)
	}
	return hash.String(), nil
}

// MergeBase returns the merge-base commit hash of refA and refB, used
// by the overlay engine to establish the shared base for a new branch.
func (r *Repository) MergeBase(ctx context.Context, refA, refB string) (string, error) {
	commitA, err := r.commit(refA)
	if err != nil {
		return "", err
	}
	commitB, err := r.commit(refB)
	if err != nil {
		return "", err
	}

	bases, err := commitA.MergeBase(commitB)
	if err != nil {
		return "", ccerrors.MergeBaseFailed(refA, refB, err)
	}
	if len(bases) == 0 {
		return "", ccerrors.MergeBaseFailed(refA, refB, nil)
	}
	return bases[0].Hash.String(), nil
}

func (r *Repository) commit(ref string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, ccerrors.VcsError("failed to resolve ref "+ref, err)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, ccerrors.VcsError("failed to load commit for ref "+ref, err)
	}
	return commit, nil
}

// DiffNameStatus returns the path-level changes between fromRef and
// toRef, used both to bootstrap an overlay from its merge base and to
// compute incremental syncs.
func (r *Repository) DiffNameStatus(ctx context.Context, fromRef, toRef string) ([]*Change, error) {
	fromCommit, err := r.commit(fromRef)
	if err != nil {
		return nil, err
	}
	toCommit, err := r.commit(toRef)
	if err != nil {
		return nil, err
	}

	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, ccerrors.VcsError("failed to load tree for "+fromRef, err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, ccerrors.VcsError("failed to load tree for "+toRef, err)
	}

	changes, err := object.DiffTree(fromTree, toTree)
	if err != nil {
		return nil, ccerrors.VcsError("failed to diff trees", err)
	}

	out := make([]*Change, 0, len(changes))
	for _, c := range changes {
		action, err := c.Action()
		if err != nil {
			return nil, ccerrors.VcsError("failed to classify diff entry", err)
		}
		switch action {
		case merkletrie.Insert:
			out = append(out, &Change{Path: c.To.Name, Kind: ChangeAdded})
		case merkletrie.Delete:
			out = append(out, &Change{Path: c.From.Name, Kind: ChangeDeleted})
		case merkletrie.Modify:
			out = append(out, &Change{Path: c.To.Name, Kind: ChangeModified})
		}
	}
	return out, nil
}

// ReadBlob returns the full content of path as of ref.
func (r *Repository) ReadBlob(ctx context.Context, ref, path string) ([]byte, error) {
	commit, err := r.commit(ref)
	if err != nil {
		return nil, err
	}
	file, err := commit.File(path)
	if err != nil {
		return nil, ccerrors.VcsError("failed to locate file "+path+" at "+ref, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, ccerrors.VcsError("failed to open blob reader for "+path, err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, ccerrors.VcsError("failed to read blob "+path, err)
	}
	return buf.Bytes(), nil
}

// DefaultBranch returns the name of the repository's HEAD branch.
func (r *Repository) DefaultBranch(ctx context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", ccerrors.VcsError("failed to resolve HEAD", err)
	}
	return head.Name().Short(), nil
}
