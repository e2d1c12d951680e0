// Package policy implements the retrieval-time access/redaction policy
// layer applied to every result set before it leaves the engine:
// path/kind allow-deny gating, secret redaction, and an optional OPA
// verdict pass.
package policy

import (
	"context"
	"time"

	"github.com/signalridge/codecompass/internal/gitignore"
	"github.com/signalridge/codecompass/internal/protocol"
)

// Candidate is the narrow result-row shape the policy engine filters
// and redacts, shared by every retrieval tool's output rows.
type Candidate struct {
	Path    string
	Kind    string
	Content string // snippet/body text subject to redaction
}

// Config is the policy configuration loaded for a project, optionally
// tightened per-request (never loosened) via PolicyMode.Tighten.
type Config struct {
	Mode          protocol.PolicyMode
	PathAllow     []string // gitignore-style globs; empty = allow all
	PathDeny      []string
	KindAllow     []string // empty = allow all kinds
	KindDeny      []string
	Redaction     RedactionConfig
	OPA           *OPAConfig
}

// Verdict is the outcome of one Apply call.
type Verdict struct {
	Allowed       []*Candidate
	BlockedCount  int
	RedactedCount int
	Warnings      []string
}

// Engine evaluates Config against candidate result rows.
type Engine struct {
	Config Config
}

// New builds a policy Engine.
func New(cfg Config) *Engine {
	return &Engine{Config: cfg}
}

// Apply filters and redacts candidates under the configured mode,
// downward-tightened by requestedMode.
func (e *Engine) Apply(ctx context.Context, requestedMode protocol.PolicyMode, candidates []*Candidate) (*Verdict, error) {
	mode := e.Config.Mode.Tighten(requestedMode)
	v := &Verdict{}

	if mode == protocol.PolicyOff {
		v.Allowed = candidates
		return v, nil
	}

	opaVerdicts, err := e.runOPA(ctx, candidates)
	if err != nil {
		if mode == protocol.PolicyStrict {
			return nil, err
		}
		v.Warnings = append(v.Warnings, "opa policy check failed: "+err.Error())
		opaVerdicts = nil
	}

	for i, c := range candidates {
		blocked := e.isBlocked(c) || (opaVerdicts != nil && !opaVerdicts[i])
		if blocked {
			v.BlockedCount++
			if mode == protocol.PolicyAuditOnly {
				v.Allowed = append(v.Allowed, c)
			}
			continue
		}

		redacted, hit := redactSecrets(c.Content, e.Config.Redaction)
		out := c
		if hit {
			v.RedactedCount++
			if mode != protocol.PolicyAuditOnly {
				cp := *c
				cp.Content = redacted
				out = &cp
			}
		}
		v.Allowed = append(v.Allowed, out)
	}
	return v, nil
}

func (e *Engine) isBlocked(c *Candidate) bool {
	if len(e.Config.PathDeny) > 0 && gitignore.MatchesAnyPattern(c.Path, e.Config.PathDeny) {
		return true
	}
	if len(e.Config.PathAllow) > 0 && !gitignore.MatchesAnyPattern(c.Path, e.Config.PathAllow) {
		return true
	}
	if containsFold(e.Config.KindDeny, c.Kind) {
		return true
	}
	if len(e.Config.KindAllow) > 0 && !containsFold(e.Config.KindAllow, c.Kind) {
		return true
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// OPAConfig configures the optional Open Policy Agent verdict pass.
type OPAConfig struct {
	BinaryPath string
	PolicyPath string
	Timeout    time.Duration // defaults to 3s
}
