// Package cache provides the domain model for the intelligent response cache:
// cached entries, use-case categories, fingerprinting, similarity scoring, and
// the persistent store boundary.
package cache

import "time"

// Category tags a cached entry with its use case. Each category carries its
// own default time-to-live and capacity budget.
type Category string

// Known cache categories.
const (
	CategoryAnalysis      Category = "analysis"
	CategoryGeneration    Category = "generation"
	CategoryCompletion    Category = "completion"
	CategoryRefactoring   Category = "refactoring"
	CategoryDocumentation Category = "documentation"
)

// Categories returns all known categories in a stable order.
func Categories() []Category {
	return []Category{
		CategoryAnalysis,
		CategoryGeneration,
		CategoryCompletion,
		CategoryRefactoring,
		CategoryDocumentation,
	}
}

// Valid reports whether the category is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryAnalysis, CategoryGeneration, CategoryCompletion,
		CategoryRefactoring, CategoryDocumentation:
		return true
	}
	return false
}

// CategoryConfig holds the per-category retention budget.
type CategoryConfig struct {
	// TTL is the time-to-live applied to new entries in this category.
	TTL time.Duration
	// MaxEntries is the per-category entry budget (0 = no per-category cap).
	MaxEntries int
}

// DefaultCategoryConfigs returns the default per-category retention budgets.
func DefaultCategoryConfigs() map[Category]CategoryConfig {
	return map[Category]CategoryConfig{
		CategoryAnalysis:      {TTL: 30 * time.Minute, MaxEntries: 2000},
		CategoryGeneration:    {TTL: 1 * time.Hour, MaxEntries: 2000},
		CategoryCompletion:    {TTL: 10 * time.Minute, MaxEntries: 5000},
		CategoryRefactoring:   {TTL: 30 * time.Minute, MaxEntries: 1000},
		CategoryDocumentation: {TTL: 2 * time.Hour, MaxEntries: 1000},
	}
}

// Entry is the unit of cached data plus its access metadata.
type Entry struct {
	// Key is the caller-supplied identifier for the logical request.
	// Unique within the live cache.
	Key string
	// Value is the serialized cached payload.
	Value []byte
	// Category partitions retention budgets and approximate lookups.
	Category Category

	CreatedAt      time.Time
	LastAccessedAt time.Time
	AccessCount    int64

	// SemanticFingerprint and ContextFingerprint are fixed-length hashes
	// used by the approximate-lookup indexes.
	SemanticFingerprint string
	ContextFingerprint  string

	// TTL is the category-derived expiry duration.
	TTL time.Duration

	// Confidence is the caller's confidence in the cached value, in [0,1].
	// Predictive reuse is gated on it.
	Confidence float64

	// Optional free-form context, used only for similarity scoring.
	FilePath string
	Language string
	Metadata map[string]string
}

// Valid reports whether the entry is still live at the given instant.
func (e *Entry) Valid(now time.Time) bool {
	if e.TTL <= 0 {
		return true
	}
	return now.Sub(e.CreatedAt) < e.TTL
}

// EstimatedSize returns the entry's approximate serialized footprint in bytes.
// It is an estimate over the variable-length fields plus a fixed overhead for
// timestamps and counters.
func (e *Entry) EstimatedSize() int64 {
	size := int64(len(e.Key) + len(e.Value) +
		len(e.SemanticFingerprint) + len(e.ContextFingerprint) +
		len(e.FilePath) + len(e.Language))
	for k, v := range e.Metadata {
		size += int64(len(k) + len(v))
	}
	return size + 96
}

// Touch records an access at the given instant.
func (e *Entry) Touch(now time.Time) {
	e.LastAccessedAt = now
	e.AccessCount++
}

// Clone returns a deep copy of the entry. Detached persistence writes operate
// on clones so the live entry can keep mutating.
func (e *Entry) Clone() *Entry {
	clone := *e
	clone.Value = make([]byte, len(e.Value))
	copy(clone.Value, e.Value)
	if e.Metadata != nil {
		clone.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}
