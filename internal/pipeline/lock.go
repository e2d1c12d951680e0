package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

// JobLock is a per-(project, ref) advisory file lock, held for the
// duration of one indexing run so two processes can never run
// concurrent jobs against the same (project, ref) even across restarts,
// enforced here as a second, process-external guard alongside RS's
// GetActiveJob check.
type JobLock struct {
	fl *flock.Flock
}

// AcquireJobLock tries to take the advisory lock for (projectID, ref)
// under dataDir/locks/. Returns an error immediately if another process
// already holds it — indexing jobs never block waiting for the lock.
func AcquireJobLock(dataDir, projectID, ref string) (*JobLock, error) {
	dir := filepath.Join(dataDir, "locks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ccerrors.IoError("failed to create lock directory", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.lock", projectID, sanitizeRefForFilename(ref)))
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, ccerrors.IoError("failed to acquire job lock", err)
	}
	if !ok {
		return nil, ccerrors.New(ccerrors.KindInvalidInput, "an indexing job is already running for this (project, ref) on another process", nil)
	}
	return &JobLock{fl: fl}, nil
}

// Release unlocks the advisory lock. Safe to call on a nil *JobLock.
func (l *JobLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

func sanitizeRefForFilename(ref string) string {
	out := make([]rune, 0, len(ref))
	for _, r := range ref {
		switch {
		case r == '/' || r == '\\' || r == ':':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
