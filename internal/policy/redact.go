package policy

import (
	"math"
	"regexp"
)

// RedactionConfig configures built-in pattern redaction plus the
// high-entropy token scanner.
type RedactionConfig struct {
	BuiltIn          bool // enable email/AWS-key/bearer-token/PEM-header patterns
	ExtraPatterns    []string
	EntropyEnabled   bool
	EntropyMinLength int     // default 20
	EntropyThreshold float64 // default 4.0 bits/char
}

const (
	defaultEntropyMinLength = 20
	defaultEntropyThreshold = 4.0
)

// builtinPatterns are the detect-secrets-style patterns matched
// explicitly: email, AWS access key, generic Bearer token, and a
// private-key PEM header.
var builtinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]+=*`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----`),
}

// redactSecrets scans content for built-in patterns, extra configured
// patterns, and (if enabled) high-entropy tokens, replacing each match
// with "[REDACTED]". Returns the redacted text and whether any
// redaction occurred.
func redactSecrets(content string, cfg RedactionConfig) (string, bool) {
	if content == "" {
		return content, false
	}
	hit := false
	out := content

	if cfg.BuiltIn {
		for _, pat := range builtinPatterns {
			if pat.MatchString(out) {
				hit = true
				out = pat.ReplaceAllString(out, "[REDACTED]")
			}
		}
	}
	for _, raw := range cfg.ExtraPatterns {
		pat, err := regexp.Compile(raw)
		if err != nil {
			continue
		}
		if pat.MatchString(out) {
			hit = true
			out = pat.ReplaceAllString(out, "[REDACTED]")
		}
	}
	if cfg.EntropyEnabled {
		redacted, found := redactHighEntropyTokens(out, cfg)
		if found {
			hit = true
			out = redacted
		}
	}
	return out, hit
}

// redactHighEntropyTokens scans whitespace-delimited tokens of at least
// minLength characters and replaces any whose Shannon entropy exceeds
// threshold bits/char — catching opaque API keys and tokens that don't
// match a known format. Hand
// rolled on math+regexp: no library in the corpus implements Shannon
// entropy scanning.
func redactHighEntropyTokens(content string, cfg RedactionConfig) (string, bool) {
	minLen := cfg.EntropyMinLength
	if minLen <= 0 {
		minLen = defaultEntropyMinLength
	}
	threshold := cfg.EntropyThreshold
	if threshold <= 0 {
		threshold = defaultEntropyThreshold
	}

	tokenPattern := regexp.MustCompile(`[A-Za-z0-9+/_\-\.=]+`)
	found := false
	out := tokenPattern.ReplaceAllStringFunc(content, func(tok string) string {
		if len(tok) < minLen {
			return tok
		}
		if shannonEntropy(tok) >= threshold {
			found = true
			return "[REDACTED]"
		}
		return tok
	})
	return out, found
}

// shannonEntropy returns the Shannon entropy of s in bits per
// character.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int)
	for _, r := range s {
		counts[r]++
	}
	n := float64(len(s))
	var entropy float64
	for _, count := range counts {
		p := float64(count) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// DefaultRedactionConfig enables the built-in patterns and the entropy
// scanner with conservative defaults.
func DefaultRedactionConfig() RedactionConfig {
	return RedactionConfig{
		BuiltIn:          true,
		EntropyEnabled:   true,
		EntropyMinLength: defaultEntropyMinLength,
		EntropyThreshold: defaultEntropyThreshold,
	}
}
