package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/soypat/volview"
	"github.com/soypat/volview/surfop"
)

// DistanceCache computes distance fields between surfaces and persists the
// result in a Store.
type DistanceCache struct {
	store  Store
	logger *log.Logger

	mu       sync.Mutex
	computed int
}

// Options configures a DistanceCache.
type Options struct {
	// Logger receives cache hit and miss messages. Nil discards them.
	Logger *log.Logger
}

// NewDistanceCache returns a cache persisting artifacts in store.
func NewDistanceCache(store Store, opts Options) *DistanceCache {
	if store == nil {
		panic("nil store")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &DistanceCache{store: store, logger: opts.Logger}
}

// Computed returns how many times this cache computed a distance field.
func (c *DistanceCache) Computed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.computed
}

// GetOrCompute returns the distance field of target with respect to ref.
// If an entry for key is present it is decoded and returned unchanged, unless
// key is a content key whose digest differs from the stored one, in which case
// the field is recomputed and the entry overwritten. A present but unreadable
// entry returns an error wrapping ErrCorrupt.
func (c *DistanceCache) GetOrCompute(ctx context.Context, key Key, ref, target *volview.Surface) (*volview.Surface, volview.Range, error) {
	if err := ValidName(key.Name); err != nil {
		return nil, volview.Range{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := c.store.Get(ctx, key.Name)
	switch {
	case errors.Is(err, ErrNotExist):
		c.logger.Debug("distance field not cached", "key", key)
	case err != nil:
		return nil, volview.Range{}, fmt.Errorf("reading artifact %q: %w", key.Name, err)
	default:
		a, err := UnmarshalArtifact(data)
		if err != nil {
			return nil, volview.Range{}, fmt.Errorf("artifact %q: %w", key.Name, err)
		}
		if key.Logical() || a.Digest == key.Digest {
			c.logger.Debug("distance field cache hit", "key", key, "vertices", len(a.Surface.Vertices))
			return a.Surface, a.Range, nil
		}
		c.logger.Info("stale distance field, recomputing", "key", key)
	}

	field, rng := surfop.DistanceField(ref, target)
	c.computed++
	a := Artifact{Name: key.Name, Digest: key.Digest, Surface: field, Range: rng}
	data, err = a.MarshalBinary()
	if err != nil {
		return nil, volview.Range{}, err
	}
	if err := c.store.Put(ctx, key.Name, data); err != nil {
		return nil, volview.Range{}, fmt.Errorf("writing artifact %q: %w", key.Name, err)
	}
	c.logger.Debug("distance field cached", "key", key, "bytes", len(data))
	return field, rng, nil
}
