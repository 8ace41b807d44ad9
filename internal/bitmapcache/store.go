package bitmapcache

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hashicorp/go-hclog"
)

// PersistentVersion is the only cache version the persistent store
// supports; version 2 is the only version the graphics-effects channel
// delegates to this store (§4.4).
const PersistentVersion = 2

// storeHeader mirrors the file's fixed-size {version, entry-count}
// header (§6).
type storeHeader struct {
	Version    uint32
	EntryCount uint32
}

// recordHeader mirrors one {key64, width, height, size, flags} record
// header (§6); pixel bytes follow immediately after.
type recordHeader struct {
	Key64  uint64
	Width  uint16
	Height uint16
	Size   uint32
	Flags  uint16
}

// WriteFile flushes every occupied cache slot to path in the persistent
// format, skipping entries whose key is zero or whose pixel size would
// not fit in 32 bits (§4.4, §6). It is the caller's responsibility to
// only call this when persistence is enabled and the session negotiated
// PersistentVersion.
func WriteFile(path string, cache *Cache, logger hclog.Logger) error {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("rdp.bitmapcache.store")

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("bitmapcache: creating persistent store: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	var records []*Bitmap
	cache.Each(func(bmp *Bitmap) {
		if bmp.Key64 == 0 {
			return
		}
		if uint64(len(bmp.Pixels)) > math.MaxUint32 {
			logger.Warn("skipping oversized bitmap cache entry", "key64", bmp.Key64, "size", len(bmp.Pixels))
			return
		}
		records = append(records, bmp)
	})

	header := storeHeader{Version: PersistentVersion, EntryCount: uint32(len(records))}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("bitmapcache: writing store header: %w", err)
	}

	for _, bmp := range records {
		rec := recordHeader{
			Key64:  bmp.Key64,
			Width:  uint16(bmp.Width),
			Height: uint16(bmp.Height),
			Size:   uint32(len(bmp.Pixels)),
		}
		if err := binary.Write(w, binary.LittleEndian, rec); err != nil {
			return fmt.Errorf("bitmapcache: writing record header for key %d: %w", bmp.Key64, err)
		}
		if _, err := w.Write(bmp.Pixels); err != nil {
			return fmt.Errorf("bitmapcache: writing pixels for key %d: %w", bmp.Key64, err)
		}
	}

	return w.Flush()
}

// RecordSummary is one record's header, returned by InspectFile without
// reading its pixel bytes into memory.
type RecordSummary struct {
	Key64  uint64
	Width  int
	Height int
	Size   int
}

// InspectFile reads a persistent store's header and every record's
// header, skipping over (not loading) pixel bytes — the read path the
// "cache inspect" CLI command exercises.
func InspectFile(path string) (version uint32, records []RecordSummary, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("bitmapcache: opening persistent store: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var header storeHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return 0, nil, fmt.Errorf("bitmapcache: reading store header: %w", err)
	}

	for i := uint32(0); i < header.EntryCount; i++ {
		var rec recordHeader
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			if err == io.EOF {
				break
			}
			return header.Version, records, fmt.Errorf("bitmapcache: reading record %d header: %w", i, err)
		}
		if _, err := io.CopyN(io.Discard, r, int64(rec.Size)); err != nil {
			return header.Version, records, fmt.Errorf("bitmapcache: skipping record %d pixels: %w", i, err)
		}
		records = append(records, RecordSummary{
			Key64:  rec.Key64,
			Width:  int(rec.Width),
			Height: int(rec.Height),
			Size:   int(rec.Size),
		})
	}

	return header.Version, records, nil
}
