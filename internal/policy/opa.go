package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

const defaultOPATimeout = 3 * time.Second

// opaInput is the payload handed to the OPA binary on stdin, one entry
// per candidate in the same order so the response can be zipped back
// against the input slice.
type opaInput struct {
	Candidates []opaCandidate `json:"candidates"`
}

type opaCandidate struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

type opaOutput struct {
	Allow []bool `json:"allow"`
}

// runOPA invokes the configured OPA binary and returns a per-candidate
// allow/deny verdict slice, or nil if OPA is not configured. Invoking
// an external binary has no idiomatic third-party Go replacement, so
// os/exec is used directly.
func (e *Engine) runOPA(ctx context.Context, candidates []*Candidate) ([]bool, error) {
	cfg := e.Config.OPA
	if cfg == nil || cfg.BinaryPath == "" || len(candidates) == 0 {
		return nil, nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOPATimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	input := opaInput{Candidates: make([]opaCandidate, len(candidates))}
	for i, c := range candidates {
		input.Candidates[i] = opaCandidate{Path: c.Path, Kind: c.Kind}
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, ccerrors.InternalError("failed to marshal OPA input", err)
	}

	args := []string{"eval", "--format", "json", "--input", "-"}
	if cfg.PolicyPath != "" {
		args = append(args, "--data", cfg.PolicyPath)
	}
	cmd := exec.CommandContext(ctx, cfg.BinaryPath, args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, ccerrors.ExternalProviderError("opa", "binary invocation failed", err)
	}

	var out opaOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, ccerrors.ExternalProviderError("opa", "failed to decode verdict output", err)
	}
	if len(out.Allow) != len(candidates) {
		return nil, ccerrors.ExternalProviderError("opa", "verdict count mismatch", nil)
	}
	return out.Allow, nil
}
