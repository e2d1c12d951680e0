// Package ids provides deterministic identity and hashing for CodeCompass
// entities: project IDs, ref-local symbol IDs, ref-stable symbol IDs, and
// content hashes. Blake3 is the single hash function used throughout.
package ids

import (
	"strconv"
	"strings"

	"lukechampine.com/blake3"
)

const sep = "|"

// HashHex returns the full 64 hex character Blake3 digest of parts joined
// by "|". Used for symbol_id, symbol_stable_id, and content hashes.
func HashHex(parts ...string) string {
	sum := blake3.Sum256([]byte(strings.Join(parts, sep)))
	return hexEncode(sum[:])
}

// HashHex16 returns the first 16 hex characters of the Blake3 digest of
// parts joined by "|". Used for project_id.
func HashHex16(parts ...string) string {
	full := HashHex(parts...)
	return full[:16]
}

// HashBytes returns the raw Blake3 digest of content. Used for file and
// snippet content hashes where callers want to compare hashes without
// hex round-tripping.
func HashBytes(content []byte) [32]byte {
	return blake3.Sum256(content)
}

// HashBytesHex returns the hex-encoded Blake3 digest of content.
func HashBytesHex(content []byte) string {
	sum := blake3.Sum256(content)
	return hexEncode(sum[:])
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 2)
	for _, c := range b {
		sb.WriteByte(hexDigits[c>>4])
		sb.WriteByte(hexDigits[c&0x0f])
	}
	return sb.String()
}

// ProjectID derives the project_id from a canonicalized repo root path.
func ProjectID(canonicalRepoPath string) string {
	return HashHex16(canonicalRepoPath)
}

// SymbolID derives the ref-local symbol_id. It changes whenever
// (path, kind, line_start, name) changes.
func SymbolID(projectID, ref, path string, kind SymbolKind, lineStart int, name string) string {
	return HashHex(projectID, ref, path, string(kind), strconv.Itoa(lineStart), name)
}

// SymbolStableID derives the ref-stable, line-independent symbol_stable_id,
// unaffected by line movement within the same ref. signature may be empty.
func SymbolStableID(language string, kind SymbolKind, qualifiedName, signature string) string {
	return HashHex("stable_id:v1", language, string(kind), qualifiedName, signature)
}

// ContentHash returns the content hash of file or snippet bytes.
func ContentHash(content []byte) string {
	return HashBytesHex(content)
}
