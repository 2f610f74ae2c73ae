// Package cache provides a read-through cache for MITRE control metadata.
//
// Control metadata changes rarely and is shared by every organization, so
// each control id is cached under its own key and a run only queries the
// database for ids that are missing.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/riskfabric/cyberrisk/pkg/logger"
	"github.com/riskfabric/cyberrisk/pkg/models"
)

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = time.Hour

// Backend stores raw cache entries.
type Backend interface {
	// GetMany returns the entries found for keys. Missing keys are absent
	// from the result.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)

	// SetMany stores every entry with the same TTL.
	SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error
}

// Source loads control metadata on a cache miss.
type Source interface {
	ControlMetadata(ctx context.Context, controlIDs []string) (models.ControlMetadata, error)
}

// Stats holds cache statistics.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// MetadataCache wraps a Source with a Backend.
type MetadataCache struct {
	source  Source
	backend Backend
	ttl     time.Duration
	prefix  string
	log     *logger.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewMetadataCache creates a read-through metadata cache.
func NewMetadataCache(source Source, backend Backend, prefix string, ttl time.Duration, log *logger.Logger) *MetadataCache {
	if prefix == "" {
		prefix = "riskengine"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MetadataCache{
		source:  source,
		backend: backend,
		ttl:     ttl,
		prefix:  prefix,
		log:     log.WithComponent("metadata-cache"),
	}
}

func (c *MetadataCache) key(controlID string) string {
	return fmt.Sprintf("%s:mitre_control:%s", c.prefix, controlID)
}

// ControlMetadata returns metadata for controlIDs, serving what it can from
// the backend. Backend failures degrade to the source and are never returned.
func (c *MetadataCache) ControlMetadata(ctx context.Context, controlIDs []string) (models.ControlMetadata, error) {
	out := make(models.ControlMetadata, len(controlIDs))
	if len(controlIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(controlIDs))
	for i, id := range controlIDs {
		keys[i] = c.key(id)
	}

	found, err := c.backend.GetMany(ctx, keys)
	if err != nil {
		c.errors.Add(1)
		c.log.Warn("metadata cache read failed", "error", err)
		found = nil
	}

	var missing []string
	for i, id := range controlIDs {
		data, ok := found[keys[i]]
		if !ok {
			missing = append(missing, id)
			continue
		}
		var rows []models.MitreControl
		if err := json.Unmarshal(data, &rows); err != nil {
			missing = append(missing, id)
			continue
		}
		if len(rows) > 0 {
			out[id] = rows
		}
	}

	c.hits.Add(int64(len(controlIDs) - len(missing)))
	c.misses.Add(int64(len(missing)))
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.source.ControlMetadata(ctx, missing)
	if err != nil {
		return nil, err
	}

	// Unknown ids are cached as empty lists so they are not re-queried.
	entries := make(map[string][]byte, len(missing))
	for _, id := range missing {
		rows := loaded[id]
		if len(rows) > 0 {
			out[id] = rows
		}
		if rows == nil {
			rows = []models.MitreControl{}
		}
		data, err := json.Marshal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to encode control metadata: %w", err)
		}
		entries[c.key(id)] = data
	}

	if err := c.backend.SetMany(ctx, entries, c.ttl); err != nil {
		c.errors.Add(1)
		c.log.Warn("metadata cache write failed", "error", err)
	}

	c.log.Debug("control metadata loaded",
		"requested", len(controlIDs),
		"missing", len(missing),
	)
	return out, nil
}

// Stats returns cache statistics.
func (c *MetadataCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
	}
}
