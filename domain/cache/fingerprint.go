package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// fingerprintLen is the length of the hex fingerprint strings produced below.
const fingerprintLen = 16

// SemanticFingerprint computes the semantic hash for a request identified by
// key and context, optionally disambiguated by the cached value's type name.
//
// When a context is present the fingerprint is derived from the context alone
// (plus the type name when given), so two requests with different literal keys
// but identical context land in the same semantic-index bucket. This is
// deliberate fuzzy reuse: a miss on the literal key can still match an entry
// stored for a structurally equivalent prior request. Without a context, the
// normalized key is hashed instead so unrelated keys do not collide.
func SemanticFingerprint(key string, context map[string]any, valueType string) string {
	var b strings.Builder
	if len(context) > 0 {
		b.WriteString(canonicalJSON(context))
	} else {
		b.WriteString(normalizeKey(key))
	}
	if valueType != "" {
		b.WriteString("|")
		b.WriteString(valueType)
	}
	return hashFingerprint(b.String())
}

// ContextFingerprint computes the context hash over a JSON object with sorted
// keys built from {context, file_path, language}.
func ContextFingerprint(context map[string]any, filePath, language string) string {
	payload := map[string]any{
		"context":   context,
		"file_path": filePath,
		"language":  language,
	}
	return hashFingerprint(canonicalJSON(payload))
}

// hashFingerprint hashes s into a fixed-length hex string.
func hashFingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// normalizeKey lowercases the key and collapses its whitespace-separated
// tokens into a single canonical form.
func normalizeKey(key string) string {
	tokens := strings.Fields(strings.ToLower(key))
	return strings.Join(tokens, " ")
}

// canonicalJSON serializes v deterministically. encoding/json sorts map keys,
// which is the only ordering guarantee the fingerprints rely on.
func canonicalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Fall back to a stable textual rendering for unmarshalable values.
		return fallbackRender(v)
	}
	return string(data)
}

// fallbackRender renders a map deterministically when JSON marshaling fails.
func fallbackRender(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("=?;")
	}
	return b.String()
}
