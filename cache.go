package quill

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/quill/dialect/sql"
)

// Cache is the interface for caching query results.
// The cache package provides in-memory and Redis implementations.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies a cached select.
type CacheKey struct {
	Collection string
	// Kind is the terminal that produced the entry: all, first, count,
	// min, max, sum, avg or paginate.
	Kind string
	Hash uint64
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s:%016x", k.Collection, k.Kind, k.Hash)
}

// CachePrefix returns the prefix shared by every key of collection.
func CachePrefix(collection string) string {
	return collection + ":"
}

// snapshot is the canonical form of a compiled select hashed into its
// cache key.
type snapshot struct {
	Dialect  string         `msgpack:"d"`
	Query    string         `msgpack:"q"`
	Params   map[string]any `msgpack:"p"`
	Populate bool           `msgpack:"pop"`
}

// NewCacheKey hashes the compiled statement of a select. Map keys are
// encoded in sorted order, so equal statements always hash equally.
func NewCacheKey(collection, kind, dialect string, st sql.Statement, populate bool) (CacheKey, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(snapshot{Dialect: dialect, Query: st.Query, Params: st.Params, Populate: populate})
	if err != nil {
		return CacheKey{}, fmt.Errorf("quill: encoding cache key: %w", err)
	}
	return CacheKey{Collection: collection, Kind: kind, Hash: xxhash.Sum64(buf.Bytes())}, nil
}

// cacheEntry is the cached outcome of one statement.
type cacheEntry struct {
	Rows         []Row `msgpack:"rows"`
	RowsAffected int64 `msgpack:"n"`
}

func encodeEntry(e *cacheEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(b []byte) (*cacheEntry, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	e := &cacheEntry{}
	if err := dec.Decode(e); err != nil {
		return nil, err
	}
	for _, row := range e.Rows {
		for k, v := range row {
			row[k] = normalize(v)
		}
	}
	return e, nil
}

// normalize maps decoded msgpack values onto the types rows carry when
// they come from storage: signed integers as int64, floats as float64.
func normalize(v any) any {
	switch v := v.(type) {
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v)
		}
	case float32:
		return float64(v)
	case []any:
		for i := range v {
			v[i] = normalize(v[i])
		}
	case map[string]any:
		for k := range v {
			v[k] = normalize(v[k])
		}
	}
	return v
}
