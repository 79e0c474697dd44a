package vectorcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dshills/semlaunch/internal/storage"
	"github.com/dshills/semlaunch/pkg/types"
)

var (
	// ErrDimension is returned for vectors of the wrong width.
	ErrDimension = errors.New("vector dimension mismatch")
	// ErrCorruptIndex is returned when a forest file cannot be decoded.
	ErrCorruptIndex = errors.New("corrupt forest index")
)

// Cache answers nearest neighbor queries over two tiers and maps the
// resulting ids back to paths through the metadata store.
//
// The exact tier grows at runtime. The approximate tier is optional and
// immutable once loaded; a rebuilt forest replaces it whole. The cache holds
// no path knowledge of its own.
type Cache struct {
	dim   int
	store storage.Store

	mu    sync.RWMutex
	exact *KDTree

	approx atomic.Pointer[Forest]
}

// Stats describes the tiers.
type Stats struct {
	ExactVectors  int  `json:"exact_vectors"`
	ApproxVectors int  `json:"approx_vectors"`
	ApproxTrees   int  `json:"approx_trees"`
	ApproxLoaded  bool `json:"approx_loaded"`
}

// New creates a cache over store. approx may be nil.
func New(store storage.Store, dim int, approx *Forest) *Cache {
	c := &Cache{
		dim:   dim,
		store: store,
		exact: NewKDTree(dim),
	}
	if approx != nil {
		c.approx.Store(approx)
	}
	return c
}

// Open creates a cache and loads the approximate tier from indexPath. An
// empty path or a missing file leaves the approximate tier out; a file that
// exists but cannot be read is an error.
func Open(store storage.Store, dim int, indexPath string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if indexPath == "" {
		return New(store, dim, nil), nil
	}

	forest, err := LoadForest(indexPath, dim)
	if IsNotExist(err) {
		logger.Info("no approximate index, using exact tier only", "path", indexPath)
		return New(store, dim, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load approximate index: %w", err)
	}

	logger.Info("approximate index loaded", "path", indexPath, "vectors", forest.Len(), "trees", forest.Trees())
	return New(store, dim, forest), nil
}

// AddEmbedToID inserts a vector into the exact tier under id.
func (c *Cache) AddEmbedToID(vector []float32, id types.ID) error {
	v := make([]float32, len(vector))
	copy(v, vector)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exact.Add(v, id)
}

// Nearest returns up to count neighbors from both tiers, ascending by
// distance. The same path may appear more than once when several of its
// vectors are close.
//
// An id without a store row means a vector was indexed without its metadata
// and Nearest panics with an error wrapping types.ErrInvariant.
func (c *Cache) Nearest(ctx context.Context, vector []float32, count int) ([]types.Neighbor, error) {
	if count <= 0 {
		return []types.Neighbor{}, nil
	}

	c.mu.RLock()
	hits, err := c.exact.Nearest(vector, count)
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if approx := c.approx.Load(); approx != nil {
		more, err := approx.Nearest(vector, count)
		if err != nil {
			return nil, err
		}
		hits = append(hits, more...)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > count {
		hits = hits[:count]
	}

	out := make([]types.Neighbor, 0, len(hits))
	for _, h := range hits {
		path, err := c.store.GetPathByID(ctx, h.ID)
		if errors.Is(err, storage.ErrNotFound) {
			panic(fmt.Errorf("%w: vector id %d has no metadata row", types.ErrInvariant, h.ID))
		}
		if err != nil {
			return nil, err
		}
		out = append(out, types.Neighbor{Distance: h.Distance, Path: path})
	}
	return out, nil
}

// Contains reports whether the store already holds item.Path at a state at
// least as rich as item.State.
func (c *Cache) Contains(ctx context.Context, item types.CacheItem) (bool, error) {
	state, err := c.store.GetStateByPath(ctx, item.Path)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return state.Satisfies(item.State), nil
}

// GetIDByPath returns the store id for path; ok is false when the path has no row.
func (c *Cache) GetIDByPath(ctx context.Context, path string) (id types.ID, ok bool, err error) {
	id, err = c.store.GetIDByPath(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Record upserts item in the store and returns the path's id.
func (c *Cache) Record(ctx context.Context, item types.CacheItem) (types.ID, error) {
	return c.store.InsertOrUpdate(ctx, item.Path, item.State)
}

// Stats reports the size of each tier.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	s := Stats{ExactVectors: c.exact.Len()}
	c.mu.RUnlock()
	if approx := c.approx.Load(); approx != nil {
		s.ApproxLoaded = true
		s.ApproxVectors = approx.Len()
		s.ApproxTrees = approx.Trees()
	}
	return s
}

// UseApproximate serves f as the approximate tier from now on. Queries
// already running finish against the previous forest.
func (c *Cache) UseApproximate(f *Forest) error {
	if f == nil {
		return nil
	}
	if f.Dim() != c.dim {
		return fmt.Errorf("%w: forest has %d, cache wants %d", ErrDimension, f.Dim(), c.dim)
	}
	c.approx.Store(f)
	return nil
}
