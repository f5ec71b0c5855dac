package engine

import (
	"fmt"
	"sync"

	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

// ResultCache holds each node's terminal result. A slot is written once by
// the node's own execution and read by every consumer afterwards.
//
// ResultCache is safe for concurrent use.
type ResultCache struct {
	mu      sync.RWMutex
	results map[string]any
}

// NewResultCache creates an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{results: make(map[string]any)}
}

// Store writes id's result. A second write for the same id is rejected with
// a DoubleTerminationError and leaves the first result in place.
func (c *ResultCache) Store(id string, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, done := c.results[id]; done {
		return &DoubleTerminationError{NodeID: id}
	}
	c.results[id] = result
	return nil
}

// Load returns id's result, or pipeline.ErrPreviousNodesNotRun if the node
// has not produced one.
func (c *ResultCache) Load(id string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result, done := c.results[id]
	if !done {
		return nil, fmt.Errorf("%w: %s has no result", pipeline.ErrPreviousNodesNotRun, id)
	}
	return result, nil
}

// Has reports whether id has produced its result.
func (c *ResultCache) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, done := c.results[id]
	return done
}

// Snapshot returns a copy of every stored result.
func (c *ResultCache) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]any, len(c.results))
	for id, r := range c.results {
		out[id] = r
	}
	return out
}
