package cache

import "strings"

// SimilarityWeights configures the contribution of each signal to the
// similarity score. A perfect match across all signals saturates at 1.0.
type SimilarityWeights struct {
	Key      float64
	Semantic float64
	Context  float64
	Language float64
}

// DefaultSimilarityWeights returns the standard signal weights.
func DefaultSimilarityWeights() SimilarityWeights {
	return SimilarityWeights{
		Key:      1.0,
		Semantic: 0.8,
		Context:  0.6,
		Language: 0.3,
	}
}

// Similarity scores how alike two entries are, as a weighted sum of the key
// match (exact, else Jaccard token overlap), semantic-fingerprint equality,
// context-fingerprint equality, and language equality, capped at 1.0.
//
// The score is symmetric: every term compares its two inputs symmetrically.
func Similarity(a, b *Entry, w SimilarityWeights) float64 {
	score := 0.0

	if a.Key == b.Key {
		score += w.Key
	} else {
		score += w.Key * jaccard(a.Key, b.Key)
	}

	if a.SemanticFingerprint != "" && a.SemanticFingerprint == b.SemanticFingerprint {
		score += w.Semantic
	}
	if a.ContextFingerprint != "" && a.ContextFingerprint == b.ContextFingerprint {
		score += w.Context
	}
	if a.Language != "" && a.Language == b.Language {
		score += w.Language
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// KeySimilarity scores two raw keys alone: 1.0 for an exact match, otherwise
// the Jaccard overlap of their lowercased whitespace-split tokens.
func KeySimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return jaccard(a, b)
}

// jaccard computes |A∩B| / |A∪B| over lowercased whitespace-split tokens.
func jaccard(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	intersection := 0
	for t := range tokensA {
		if _, ok := tokensB[t]; ok {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
