package overlay

import (
	"path/filepath"
	"strings"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
	"github.com/signalridge/codecompass/internal/ids"
)

// RefHash derives the filesystem-safe directory name for a ref, so refs
// containing "/" (feature/foo) never leak into a path component.
func RefHash(ref string) string {
	return ids.HashHex16(ref)
}

// Dir resolves and validates the overlay directory for (projectID, ref)
// under dataDir, rejecting any path that would resolve outside
// dataDir/projectID/overlays/.
func Dir(dataDir, projectID, ref string) (string, error) {
	root, err := filepath.Abs(dataDir)
	if err != nil {
		return "", ccerrors.IoError("failed to resolve data directory", err)
	}
	candidate, err := filepath.Abs(filepath.Join(root, projectID, "overlays", RefHash(ref)))
	if err != nil {
		return "", ccerrors.IoError("failed to resolve overlay directory", err)
	}
	if !strings.HasPrefix(candidate, root+string(filepath.Separator)) {
		return "", ccerrors.InvalidInput("overlay path escapes the data directory", nil).
			WithDetail("project_id", projectID).WithDetail("ref", ref)
	}
	return candidate, nil
}
