// Package weaviate provides a Weaviate-backed persistent store for
// cache entries, so warm-start loads can come from the same vector
// database that serves semantic search elsewhere in a deployment.
package weaviate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/prismworks/prism/domain/cache"
)

const className = "PrismCacheEntry"

// Store is a Weaviate-backed implementation of cache.Store. Each cache
// entry maps to one object of class PrismCacheEntry with a
// deterministic ID derived from the entry key.
type Store struct {
	client *weaviate.Client
}

// NewStore creates a new Weaviate cache store.
func NewStore(cfg weaviate.Config) (*Store, error) {
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, errors.Join(cache.ErrConnectionFailed, err)
	}
	return &Store{client: client}, nil
}

// NewStoreFromClient creates a store from an existing Weaviate client.
func NewStoreFromClient(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// EnsureSchema creates the PrismCacheEntry class if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
	if err != nil {
		return s.wrapError(err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:      className,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "key", DataType: []string{"text"}},
			{Name: "value", DataType: []string{"blob"}},
			{Name: "category", DataType: []string{"text"}},
			{Name: "createdAt", DataType: []string{"date"}},
			{Name: "lastAccessedAt", DataType: []string{"date"}},
			{Name: "accessCount", DataType: []string{"int"}},
			{Name: "semanticFingerprint", DataType: []string{"text"}},
			{Name: "contextFingerprint", DataType: []string{"text"}},
			{Name: "ttlNs", DataType: []string{"int"}},
			{Name: "confidence", DataType: []string{"number"}},
			{Name: "filePath", DataType: []string{"text"}},
			{Name: "language", DataType: []string{"text"}},
			{Name: "metadata", DataType: []string{"text"}},
		},
	}

	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return s.wrapError(err)
	}
	return nil
}

// objectID derives a stable object ID from the entry key so upserts
// replace rather than duplicate.
func objectID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(className+"/"+key)).String()
}

// LoadRecent returns up to limit entries accessed within maxAge,
// most-recently-accessed first.
func (s *Store) LoadRecent(ctx context.Context, limit int, maxAge time.Duration) ([]*cache.Entry, error) {
	cutoff := time.Now().Add(-maxAge)

	where := filters.Where().
		WithPath([]string{"lastAccessedAt"}).
		WithOperator(filters.GreaterThan).
		WithValueDate(cutoff)

	sort := graphql.Sort{Path: []string{"lastAccessedAt"}, Order: graphql.Desc}

	result, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithWhere(where).
		WithSort(sort).
		WithLimit(limit).
		WithFields(
			graphql.Field{Name: "key"},
			graphql.Field{Name: "value"},
			graphql.Field{Name: "category"},
			graphql.Field{Name: "createdAt"},
			graphql.Field{Name: "lastAccessedAt"},
			graphql.Field{Name: "accessCount"},
			graphql.Field{Name: "semanticFingerprint"},
			graphql.Field{Name: "contextFingerprint"},
			graphql.Field{Name: "ttlNs"},
			graphql.Field{Name: "confidence"},
			graphql.Field{Name: "filePath"},
			graphql.Field{Name: "language"},
			graphql.Field{Name: "metadata"},
		).
		Do(ctx)
	if err != nil {
		return nil, s.wrapError(err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("graphql query: %s", result.Errors[0].Message)
	}

	data, ok := result.Data["Get"].(map[string]any)
	if !ok {
		return nil, nil
	}
	items, ok := data[className].([]any)
	if !ok {
		return nil, nil
	}

	var entries []*cache.Entry
	for _, item := range items {
		props, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry, err := entryFromProperties(props)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Upsert writes an entry, replacing any previous object with the same
// derived ID.
func (s *Store) Upsert(ctx context.Context, entry *cache.Entry) error {
	if entry.Key == "" {
		return cache.ErrInvalidKey
	}

	var metadata string
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = string(raw)
	}

	properties := map[string]any{
		"key":                 entry.Key,
		"value":               base64.StdEncoding.EncodeToString(entry.Value),
		"category":            string(entry.Category),
		"createdAt":           entry.CreatedAt.Format(time.RFC3339Nano),
		"lastAccessedAt":      entry.LastAccessedAt.Format(time.RFC3339Nano),
		"accessCount":         entry.AccessCount,
		"semanticFingerprint": entry.SemanticFingerprint,
		"contextFingerprint":  entry.ContextFingerprint,
		"ttlNs":               int64(entry.TTL),
		"confidence":          entry.Confidence,
		"filePath":            entry.FilePath,
		"language":            entry.Language,
		"metadata":            metadata,
	}

	id := objectID(entry.Key)

	// Creator fails on a duplicate ID, so remove any previous object
	// first. A missing object is fine.
	_ = s.client.Data().Deleter().
		WithClassName(className).
		WithID(id).
		Do(ctx)

	_, err := s.client.Data().Creator().
		WithClassName(className).
		WithID(id).
		WithProperties(properties).
		Do(ctx)
	if err != nil {
		return s.wrapError(err)
	}
	return nil
}

// Delete removes the entry with the given key.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.client.Data().Deleter().
		WithClassName(className).
		WithID(objectID(key)).
		Do(ctx)
	if err != nil {
		return s.wrapError(err)
	}
	return nil
}

// Ready reports whether the Weaviate cluster is reachable.
func (s *Store) Ready(ctx context.Context) (bool, error) {
	ready, err := s.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return false, s.wrapError(err)
	}
	return ready, nil
}

func entryFromProperties(props map[string]any) (*cache.Entry, error) {
	e := &cache.Entry{}

	if v, ok := props["key"].(string); ok {
		e.Key = v
	}
	if v, ok := props["value"].(string); ok {
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("decode value: %w", err)
		}
		e.Value = decoded
	}
	if v, ok := props["category"].(string); ok {
		e.Category = cache.Category(v)
	}
	if v, ok := props["createdAt"].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("parse createdAt: %w", err)
		}
		e.CreatedAt = t
	}
	if v, ok := props["lastAccessedAt"].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("parse lastAccessedAt: %w", err)
		}
		e.LastAccessedAt = t
	}
	if v, ok := props["accessCount"].(float64); ok {
		e.AccessCount = int64(v)
	}
	if v, ok := props["semanticFingerprint"].(string); ok {
		e.SemanticFingerprint = v
	}
	if v, ok := props["contextFingerprint"].(string); ok {
		e.ContextFingerprint = v
	}
	if v, ok := props["ttlNs"].(float64); ok {
		e.TTL = time.Duration(int64(v))
	}
	if v, ok := props["confidence"].(float64); ok {
		e.Confidence = v
	}
	if v, ok := props["filePath"].(string); ok {
		e.FilePath = v
	}
	if v, ok := props["language"].(string); ok {
		e.Language = v
	}
	if v, ok := props["metadata"].(string); ok && v != "" {
		if err := json.Unmarshal([]byte(v), &e.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return e, nil
}

// wrapError wraps client errors with domain errors.
func (s *Store) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(cache.ErrOperationTimeout, err)
	}
	return errors.Join(cache.ErrConnectionFailed, err)
}

var _ cache.Store = (*Store)(nil)
