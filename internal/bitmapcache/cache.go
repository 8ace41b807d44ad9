package bitmapcache

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/rdpgo/rdp-core/internal/metrics"
)

// Cache is the session-scoped vector of Cells described in §3/§4.4. It
// has no intra-session concurrency requirement per §5, but the lock
// keeps it safe for the common case of a reader goroutine draining
// orders while a teardown goroutine flushes the persistent store.
type Cache struct {
	logger hclog.Logger

	mu    sync.Mutex
	cells []*Cell
}

// Options configures a new Cache.
type Options struct {
	// CellCapacities gives one capacity per cell, in cell-id order;
	// len(CellCapacities) is max_cells. Typically 2-5 cells.
	CellCapacities []int
}

// New allocates a Cache with one Cell per entry of opts.CellCapacities.
func New(logger hclog.Logger, opts Options) (*Cache, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if len(opts.CellCapacities) == 0 {
		return nil, fmt.Errorf("bitmapcache: %w: at least one cell is required", ErrBadConfiguration)
	}
	cells := make([]*Cell, len(opts.CellCapacities))
	for i, capacity := range opts.CellCapacities {
		if capacity < 0 {
			return nil, fmt.Errorf("bitmapcache: %w: cell %d capacity %d", ErrBadConfiguration, i, capacity)
		}
		cells[i] = newCell(capacity)
	}
	return &Cache{
		logger: logger.Named("rdp.bitmapcache"),
		cells:  cells,
	}, nil
}

func (c *Cache) cell(cellID int) (*Cell, bool) {
	if cellID < 0 || cellID >= len(c.cells) {
		return nil, false
	}
	return c.cells[cellID], true
}

// Put installs bmp at (cellID, index), freeing any prior occupant. An
// out-of-range cellID or index is a logged error returning failure; it
// never panics (§4.4).
func (c *Cache) Put(cellID, index int, bmp *Bitmap) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cell, ok := c.cell(cellID)
	if !ok {
		c.logger.Error("put: cell id out of range", "cell_id", cellID, "max_cells", len(c.cells))
		return fmt.Errorf("bitmapcache: cell %d: %w", cellID, ErrCellOutOfRange)
	}

	had := cell.get(index) != nil
	if !cell.put(index, bmp) {
		c.logger.Error("put: index out of range", "cell_id", cellID, "index", index, "capacity", cell.Capacity())
		return fmt.Errorf("bitmapcache: index %d: %w", index, ErrIndexOutOfRange)
	}

	resident := 0
	for _, cl := range c.cells {
		cl.each(func(*Bitmap) { resident++ })
	}
	metrics.Registry.SetGauge(metrics.BitmapCacheEntries, float32(resident))
	if had {
		metrics.Registry.IncrCounter(metrics.BitmapCacheEvictions, 1)
	}
	return nil
}

// Get retrieves the bitmap at (cellID, index). A miss — whether the slot
// was never populated or the coordinates are out of range — returns
// (nil, false) rather than an error: legacy servers legitimately
// reference bitmaps they never defined (CachedResourceMissing, §7).
func (c *Cache) Get(cellID, index int) (*Bitmap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cell, ok := c.cell(cellID)
	if !ok {
		metrics.Registry.IncrCounter(metrics.BitmapCacheMisses, 1)
		return nil, false
	}
	bmp := cell.get(index)
	if bmp == nil {
		metrics.Registry.IncrCounter(metrics.BitmapCacheMisses, 1)
		return nil, false
	}
	metrics.Registry.IncrCounter(metrics.BitmapCacheHits, 1)
	return bmp, true
}

// CellCount returns max_cells.
func (c *Cache) CellCount() int {
	return len(c.cells)
}

// CellCapacity returns the capacity of cellID, or -1 if out of range.
func (c *Cache) CellCapacity(cellID int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cell, ok := c.cell(cellID)
	if !ok {
		return -1
	}
	return cell.Capacity()
}

// Each calls fn for every occupied slot across every cell, in cell then
// slot order. Used by the persistent store writer at teardown.
func (c *Cache) Each(fn func(bmp *Bitmap)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cell := range c.cells {
		cell.each(fn)
	}
}
