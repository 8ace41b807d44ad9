package orders

// OffscreenCacheID is the cacheId value that routes a MemBlt/Mem3Blt
// source to the offscreen surface cache collaborator instead of a
// bitmap-cache cell (§4.4).
const OffscreenCacheID = 0xFF

// CachedBrushFlag marks a Mem3Blt brush as resolved through the brush
// cache collaborator rather than carried inline.
const CachedBrushFlag = 0x01

// cachedBrushStyle is the style value Mem3Blt temporarily substitutes
// while a cached brush is in effect (§4.4), restored once the drawing
// call returns.
const cachedBrushStyle = 0x03

// CacheBitmap is a v1 CACHE_BITMAP order: no content key, and a
// Compressed flag saying whether the payload is bitmap-compressed.
type CacheBitmap struct {
	CacheID    int
	CacheIndex int
	Width      int
	Height     int
	BPP        int
	Compressed bool
	Payload    []byte
}

// CacheBitmapV2 carries an explicit compressed flag and, like v1, no
// content key.
type CacheBitmapV2 struct {
	CacheID    int
	CacheIndex int
	Width      int
	Height     int
	BPP        int
	Compressed bool
	Payload    []byte
}

// CacheBitmapV3 carries a 64-bit content key (key1 | key2<<32) and an
// explicit codec id.
type CacheBitmapV3 struct {
	CacheID    int
	CacheIndex int
	Width      int
	Height     int
	BPP        int
	Key1       uint32
	Key2       uint32
	CodecID    CodecID
	Payload    []byte
}

// Key64 combines the two 32-bit halves into the persistent store's
// primary key (§4.4).
func (c *CacheBitmapV3) Key64() uint64 {
	return uint64(c.Key1) | uint64(c.Key2)<<32
}

// MemBlt references a cached source bitmap by (cacheId, cacheIndex) and
// blits it to the destination rectangle.
type MemBlt struct {
	CacheID    int
	CacheIndex int
	DestX      int
	DestY      int
	Width      int
	Height     int
	Rop        int
}

// Mem3Blt is a MemBlt plus a brush, optionally resolved through the
// brush cache.
type Mem3Blt struct {
	MemBlt
	BrushCacheID int
	BrushFlags   int
	BrushStyle   int
}

// effectiveBrushStyle returns the effective style for this call, applying the
// CACHED_BRUSH temporary-override rule: the caller restores BrushStyle
// itself once drawing completes, mirroring the original's
// style-swap-then-restore sequencing around an external brush-cache
// lookup.
func (m *Mem3Blt) effectiveBrushStyle() int {
	if m.BrushFlags&CachedBrushFlag != 0 {
		return cachedBrushStyle
	}
	return m.BrushStyle
}
