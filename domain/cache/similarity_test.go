package cache_test

import (
	"testing"
	"time"

	"github.com/prismworks/prism/domain/cache"
)

func newEntry(key, language string, context map[string]any) *cache.Entry {
	return &cache.Entry{
		Key:                 key,
		Category:            cache.CategoryCompletion,
		CreatedAt:           time.Now(),
		LastAccessedAt:      time.Now(),
		SemanticFingerprint: cache.SemanticFingerprint(key, context, ""),
		ContextFingerprint:  cache.ContextFingerprint(context, "", language),
		Language:            language,
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	weights := cache.DefaultSimilarityWeights()

	t.Run("reflexive and saturated", func(t *testing.T) {
		t.Parallel()

		e := newEntry("explain the parser", "go", map[string]any{"file": "parser.go"})
		if got := cache.Similarity(e, e, weights); got != 1.0 {
			t.Errorf("Similarity(e, e) = %v, want 1.0", got)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		t.Parallel()

		a := newEntry("explain the parser", "go", map[string]any{"file": "parser.go"})
		b := newEntry("explain the lexer", "go", map[string]any{"file": "lexer.go"})
		ab := cache.Similarity(a, b, weights)
		ba := cache.Similarity(b, a, weights)
		if ab != ba {
			t.Errorf("Similarity not symmetric: %v vs %v", ab, ba)
		}
	})

	t.Run("capped at one", func(t *testing.T) {
		t.Parallel()

		ctx := map[string]any{"file": "a.py", "language": "python"}
		a := newEntry("same key", "python", ctx)
		b := newEntry("same key", "python", ctx)
		if got := cache.Similarity(a, b, weights); got != 1.0 {
			t.Errorf("Similarity = %v, want capped 1.0", got)
		}
	})

	t.Run("unrelated entries score low", func(t *testing.T) {
		t.Parallel()

		a := newEntry("summarize report", "en", map[string]any{"file": "report.md"})
		b := newEntry("refactor database", "go", map[string]any{"file": "db.go"})
		if got := cache.Similarity(a, b, weights); got >= 0.5 {
			t.Errorf("Similarity = %v, want < 0.5 for unrelated entries", got)
		}
	})

	t.Run("shared language contributes its weight", func(t *testing.T) {
		t.Parallel()

		a := newEntry("alpha", "go", map[string]any{"file": "a.go"})
		b := newEntry("beta", "go", map[string]any{"file": "b.go"})
		c := newEntry("beta", "rust", map[string]any{"file": "b.rs"})
		withLang := cache.Similarity(a, b, weights)
		withoutLang := cache.Similarity(a, c, weights)
		if withLang <= withoutLang {
			t.Errorf("language match should raise the score: %v vs %v", withLang, withoutLang)
		}
	})
}

func TestKeySimilarity(t *testing.T) {
	t.Parallel()

	t.Run("exact match", func(t *testing.T) {
		t.Parallel()

		if got := cache.KeySimilarity("a b c", "a b c"); got != 1.0 {
			t.Errorf("KeySimilarity = %v, want 1.0", got)
		}
	})

	t.Run("token overlap", func(t *testing.T) {
		t.Parallel()

		// {explain, the, parser} ∩ {explain, the, lexer} = 2, union = 4.
		if got := cache.KeySimilarity("explain the parser", "explain the lexer"); got != 0.5 {
			t.Errorf("KeySimilarity = %v, want 0.5", got)
		}
	})

	t.Run("no overlap", func(t *testing.T) {
		t.Parallel()

		if got := cache.KeySimilarity("alpha", "beta"); got != 0.0 {
			t.Errorf("KeySimilarity = %v, want 0.0", got)
		}
	})

	t.Run("empty key", func(t *testing.T) {
		t.Parallel()

		if got := cache.KeySimilarity("", "alpha"); got != 0.0 {
			t.Errorf("KeySimilarity = %v, want 0.0", got)
		}
	})
}

func TestEntryValid(t *testing.T) {
	t.Parallel()

	t.Run("live before ttl", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		e := &cache.Entry{CreatedAt: now, TTL: time.Minute}
		if !e.Valid(now.Add(59 * time.Second)) {
			t.Error("entry should be valid before TTL elapses")
		}
	})

	t.Run("expired at ttl boundary", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		e := &cache.Entry{CreatedAt: now, TTL: time.Minute}
		if e.Valid(now.Add(time.Minute)) {
			t.Error("entry should be expired once age >= TTL")
		}
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		t.Parallel()

		e := &cache.Entry{CreatedAt: time.Now().Add(-24 * time.Hour)}
		if !e.Valid(time.Now()) {
			t.Error("zero-TTL entry should not expire")
		}
	})
}
