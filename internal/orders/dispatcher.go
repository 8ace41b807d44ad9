package orders

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/rdpgo/rdp-core/internal/bitmapcache"
)

// Surface is the external offscreen-surface-cache collaborator a MemBlt
// referencing OffscreenCacheID resolves against (§4.4). It is supplied
// by the host application; this package only routes to it.
type Surface interface {
	Get(index int) (*bitmapcache.Bitmap, bool)
}

// BrushCache is the external brush-cache collaborator a Mem3Blt carrying
// CachedBrushFlag resolves against.
type BrushCache interface {
	Get(cacheID int) (brush interface{}, ok bool)
}

// Render is the downstream rendering callback a MemBlt/Mem3Blt is
// forwarded to once its source bitmap has been resolved. style is the
// brush style in effect for this call: for a MemBlt it is always zero; for
// a Mem3Blt it reflects the CACHED_BRUSH temporary override when one
// applies, so a real renderer observes the swapped style during the call
// rather than only before and after it.
type Render func(destX, destY, width, height int, src *bitmapcache.Bitmap, rop int, brush interface{}, style int)

// Dispatcher binds wire order callbacks to a bitmap cache and a
// rendering callback. It is registered only when client-side decoding is
// enabled by configuration (§4.5); it carries no state beyond these
// captured collaborators.
type Dispatcher struct {
	logger     hclog.Logger
	cache      *bitmapcache.Cache
	surface    Surface
	brushes    BrushCache
	render     Render
	sessionBPP int
	codecs     map[CodecID]Codec
}

// Options configures a new Dispatcher.
type Options struct {
	Cache      *bitmapcache.Cache
	Surface    Surface
	Brushes    BrushCache
	Render     Render
	SessionBPP int
	// Codecs, keyed by id, supplements CodecNone for CacheBitmapV3
	// decoding. A caller need not supply CodecNone; it is always present.
	Codecs map[CodecID]Codec
}

// New constructs a Dispatcher from opts, registering CodecNone
// automatically alongside any caller-supplied codecs.
func New(logger hclog.Logger, opts Options) (*Dispatcher, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("orders: a bitmap cache is required")
	}
	if opts.Render == nil {
		return nil, fmt.Errorf("orders: a render callback is required")
	}

	codecs := make(map[CodecID]Codec, len(opts.Codecs)+1)
	for id, c := range opts.Codecs {
		codecs[id] = c
	}
	codecs[CodecNone] = CodecNoneInstance

	return &Dispatcher{
		logger:     logger.Named("rdp.orders"),
		cache:      opts.Cache,
		surface:    opts.Surface,
		brushes:    opts.Brushes,
		render:     opts.Render,
		sessionBPP: opts.SessionBPP,
		codecs:     codecs,
	}, nil
}

// HandleCacheBitmap decodes a v1 order and installs it, freeing any
// predecessor at the same slot. v1 carries no content key, so Key64 is
// left zero (it is never written to the persistent store, §4.4).
func (d *Dispatcher) HandleCacheBitmap(order *CacheBitmap) error {
	bpp := bitmapcache.CoerceBPP(order.BPP, d.sessionBPP)
	pixels, err := d.decode(CodecNone, order.Payload, order.Width, order.Height, bpp)
	if err != nil {
		return err
	}
	bmp := &bitmapcache.Bitmap{Width: order.Width, Height: order.Height, BPP: bpp, Pixels: pixels}
	return d.cache.Put(order.CacheID, order.CacheIndex, bmp)
}

// HandleCacheBitmapV2 is the v2 counterpart; the order carries an
// explicit Compressed flag but, like v1, no content key.
func (d *Dispatcher) HandleCacheBitmapV2(order *CacheBitmapV2) error {
	bpp := bitmapcache.CoerceBPP(order.BPP, d.sessionBPP)
	pixels, err := d.decode(CodecNone, order.Payload, order.Width, order.Height, bpp)
	if err != nil {
		return err
	}
	bmp := &bitmapcache.Bitmap{Width: order.Width, Height: order.Height, BPP: bpp, Pixels: pixels}
	return d.cache.Put(order.CacheID, order.CacheIndex, bmp)
}

// HandleCacheBitmapV3 decodes a v3 order through its declared codec and
// installs the result keyed by its 64-bit content key (§4.4).
func (d *Dispatcher) HandleCacheBitmapV3(order *CacheBitmapV3) error {
	bpp := bitmapcache.CoerceBPP(order.BPP, d.sessionBPP)
	pixels, err := d.decode(order.CodecID, order.Payload, order.Width, order.Height, bpp)
	if err != nil {
		return err
	}
	bmp := &bitmapcache.Bitmap{
		Width:  order.Width,
		Height: order.Height,
		BPP:    bpp,
		Key64:  order.Key64(),
		Pixels: pixels,
	}
	return d.cache.Put(order.CacheID, order.CacheIndex, bmp)
}

func (d *Dispatcher) decode(id CodecID, payload []byte, width, height, bpp int) ([]byte, error) {
	codec, ok := d.codecs[id]
	if !ok {
		return nil, fmt.Errorf("orders: no codec registered for id %d", id)
	}
	return codec.Decode(payload, width, height, bpp)
}

// resolveSource looks a MemBlt's source up, preferring the offscreen
// surface collaborator when cacheId is OffscreenCacheID (§4.4). A miss
// is absorbed, not surfaced as an error (CachedResourceMissing, §7).
func (d *Dispatcher) resolveSource(cacheID, cacheIndex int) (*bitmapcache.Bitmap, bool) {
	if cacheID == OffscreenCacheID {
		if d.surface == nil {
			d.logger.Debug("memblt referenced offscreen cache with no surface collaborator registered")
			return nil, false
		}
		return d.surface.Get(cacheIndex)
	}
	return d.cache.Get(cacheID, cacheIndex)
}

// HandleMemBlt resolves order's source bitmap and forwards to the render
// callback. An unresolved source is silently skipped.
func (d *Dispatcher) HandleMemBlt(order *MemBlt) {
	src, ok := d.resolveSource(order.CacheID, order.CacheIndex)
	if !ok {
		d.logger.Debug("memblt: source bitmap not present, skipping", "cache_id", order.CacheID, "cache_index", order.CacheIndex)
		return
	}
	d.render(order.DestX, order.DestY, order.Width, order.Height, src, order.Rop, nil, 0)
}

// HandleMem3Blt is HandleMemBlt plus brush resolution: if the brush
// carries CachedBrushFlag, it is looked up in the brush cache and the
// style is temporarily swapped for the duration of this call, and the
// swapped value is what the render callback actually receives.
func (d *Dispatcher) HandleMem3Blt(order *Mem3Blt) {
	src, ok := d.resolveSource(order.CacheID, order.CacheIndex)
	if !ok {
		d.logger.Debug("mem3blt: source bitmap not present, skipping", "cache_id", order.CacheID, "cache_index", order.CacheIndex)
		return
	}

	originalStyle := order.BrushStyle
	style := order.BrushStyle
	var brush interface{}
	if order.BrushFlags&CachedBrushFlag != 0 && d.brushes != nil {
		if resolved, found := d.brushes.Get(order.BrushCacheID); found {
			brush = resolved
			style = order.effectiveBrushStyle()
			order.BrushStyle = style
		}
	}

	d.render(order.DestX, order.DestY, order.Width, order.Height, src, order.Rop, brush, style)

	order.BrushStyle = originalStyle
}
