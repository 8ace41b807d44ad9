// Package orders binds incoming drawing-order wire callbacks
// (CacheBitmap v1/v2/v3, MemBlt, Mem3Blt) to the bitmap cache and a
// downstream rendering callback. It carries no state beyond the function
// pointers captured at registration.
package orders

import "fmt"

// CodecID identifies how a CacheBitmapV3 order's pixel payload is
// encoded. NONE is the only codec this package decodes itself; anything
// else is delegated to an external Codec collaborator (RLE, interleaved,
// RemoteFX — out of scope here, see DESIGN.md).
type CodecID int

const (
	CodecNone CodecID = iota
	CodecExternal
)

// Codec decodes a CacheBitmapV3 payload into raw pixels. Registered
// codecs beyond CodecNone are supplied by the host application; this
// package ships no compressed-codec implementation.
type Codec interface {
	ID() CodecID
	Decode(payload []byte, width, height, bpp int) ([]byte, error)
}

// noneCodec treats the payload as already-raw pixels.
type noneCodec struct{}

func (noneCodec) ID() CodecID { return CodecNone }

func (noneCodec) Decode(payload []byte, width, height, bpp int) ([]byte, error) {
	expected := width * height * bytesPerPixel(bpp)
	if len(payload) < expected {
		return nil, fmt.Errorf("orders: uncompressed payload too short: got %d want %d", len(payload), expected)
	}
	return payload[:expected], nil
}

func bytesPerPixel(bpp int) int {
	switch bpp {
	case 8:
		return 1
	case 15, 16:
		return 2
	case 24:
		return 3
	case 32:
		return 4
	default:
		return (bpp + 7) / 8
	}
}

// CodecNoneInstance is the always-available CodecID(NONE) implementation
// every Dispatcher registers by default.
var CodecNoneInstance Codec = noneCodec{}
