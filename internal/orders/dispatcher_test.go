package orders

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/rdpgo/rdp-core/internal/bitmapcache"
)

func newTestDispatcher(t *testing.T, render Render, opts Options) *Dispatcher {
	t.Helper()
	cache, err := bitmapcache.New(hclog.NewNullLogger(), bitmapcache.Options{CellCapacities: []int{10, 10}})
	require.NoError(t, err)
	opts.Cache = cache
	if opts.Render == nil {
		opts.Render = render
	}
	d, err := New(hclog.NewNullLogger(), opts)
	require.NoError(t, err)
	return d
}

func TestHandleCacheBitmapInstallsAndCoercesBPP(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, func(int, int, int, int, *bitmapcache.Bitmap, int, interface{}, int) {}, Options{SessionBPP: 15})

	order := &CacheBitmap{CacheID: 0, CacheIndex: 1, Width: 2, Height: 1, BPP: 16, Payload: []byte{1, 2, 3, 4}}
	require.NoError(t, d.HandleCacheBitmap(order))

	bmp, ok := d.cache.Get(0, 1)
	require.True(t, ok)
	require.Equal(t, 15, bmp.BPP, "16bpp order under a 15bpp session coerces to 15")
}

func TestHandleCacheBitmapV3StoresContentKey(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, func(int, int, int, int, *bitmapcache.Bitmap, int, interface{}, int) {}, Options{SessionBPP: 24})

	order := &CacheBitmapV3{
		CacheID: 1, CacheIndex: 0, Width: 1, Height: 1, BPP: 8,
		Key1: 0x1111, Key2: 0x2222, CodecID: CodecNone, Payload: []byte{9},
	}
	require.NoError(t, d.HandleCacheBitmapV3(order))

	bmp, ok := d.cache.Get(1, 0)
	require.True(t, ok)
	require.Equal(t, order.Key64(), bmp.Key64)
}

func TestHandleMemBltSkipsUndefinedSource(t *testing.T) {
	t.Parallel()

	called := false
	d := newTestDispatcher(t, func(int, int, int, int, *bitmapcache.Bitmap, int, interface{}, int) {
		called = true
	}, Options{})

	d.HandleMemBlt(&MemBlt{CacheID: 0, CacheIndex: 4})
	require.False(t, called, "an undefined cache reference must be silently skipped, not rendered or errored")
}

func TestHandleMemBltRendersResolvedSource(t *testing.T) {
	t.Parallel()

	var gotSrc *bitmapcache.Bitmap
	var gotStyle int
	d := newTestDispatcher(t, func(_, _, _, _ int, src *bitmapcache.Bitmap, _ int, _ interface{}, style int) {
		gotSrc = src
		gotStyle = style
	}, Options{})

	bmp := &bitmapcache.Bitmap{Width: 4, Height: 4}
	require.NoError(t, d.cache.Put(0, 2, bmp))

	d.HandleMemBlt(&MemBlt{CacheID: 0, CacheIndex: 2, DestX: 10, DestY: 20, Width: 4, Height: 4})
	require.Same(t, bmp, gotSrc)
	require.Equal(t, 0, gotStyle, "a MemBlt carries no brush, so style is always zero")
}

type stubSurface struct {
	bmp *bitmapcache.Bitmap
}

func (s *stubSurface) Get(index int) (*bitmapcache.Bitmap, bool) {
	if s.bmp == nil {
		return nil, false
	}
	return s.bmp, true
}

func TestHandleMemBltRoutesOffscreenCacheIDToSurface(t *testing.T) {
	t.Parallel()

	surfaceBmp := &bitmapcache.Bitmap{Width: 1, Height: 1}
	surface := &stubSurface{bmp: surfaceBmp}

	var gotSrc *bitmapcache.Bitmap
	d := newTestDispatcher(t, nil, Options{
		Surface: surface,
		Render: func(_, _, _, _ int, src *bitmapcache.Bitmap, _ int, _ interface{}, _ int) {
			gotSrc = src
		},
	})

	d.HandleMemBlt(&MemBlt{CacheID: OffscreenCacheID, CacheIndex: 0})
	require.Same(t, surfaceBmp, gotSrc)
}

type stubBrushCache struct {
	brush interface{}
}

func (b *stubBrushCache) Get(cacheID int) (interface{}, bool) {
	if b.brush == nil {
		return nil, false
	}
	return b.brush, true
}

func TestHandleMem3BltResolvesCachedBrushAndRestoresStyle(t *testing.T) {
	t.Parallel()

	brush := "a-brush"
	brushes := &stubBrushCache{brush: brush}

	var gotBrush interface{}
	var gotStyle int
	d := newTestDispatcher(t, nil, Options{
		Brushes: brushes,
		Render: func(_, _, _, _ int, _ *bitmapcache.Bitmap, _ int, b interface{}, style int) {
			gotBrush = b
			gotStyle = style
		},
	})

	bmp := &bitmapcache.Bitmap{Width: 1, Height: 1}
	require.NoError(t, d.cache.Put(0, 0, bmp))

	order := &Mem3Blt{
		MemBlt:     MemBlt{CacheID: 0, CacheIndex: 0, Width: 1, Height: 1},
		BrushFlags: CachedBrushFlag,
		BrushStyle: 0x07,
	}
	d.HandleMem3Blt(order)

	require.Equal(t, brush, gotBrush)
	require.Equal(t, cachedBrushStyle, gotStyle, "render must observe the swapped style during the call, not just before/after it")
	require.Equal(t, 0x07, order.BrushStyle, "style must be restored once the drawing call returns")
}
