package bitmapcache

import (
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestWriteFileThenInspectRoundTrip(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, 4)
	require.NoError(t, cache.Put(0, 0, &Bitmap{Width: 16, Height: 16, Key64: 42, Pixels: []byte{1, 2, 3, 4}}))
	require.NoError(t, cache.Put(0, 1, &Bitmap{Width: 8, Height: 8, Key64: 99, Pixels: []byte{5, 6}}))

	// key64 == 0 is skipped on write.
	require.NoError(t, cache.Put(0, 2, &Bitmap{Width: 8, Height: 8, Key64: 0, Pixels: []byte{7}}))

	path := filepath.Join(t.TempDir(), "bitmapcache.bin")
	require.NoError(t, WriteFile(path, cache, hclog.NewNullLogger()))

	version, records, err := InspectFile(path)
	require.NoError(t, err)
	require.Equal(t, uint32(PersistentVersion), version)
	require.Len(t, records, 2)

	byKey := make(map[uint64]RecordSummary, len(records))
	for _, r := range records {
		byKey[r.Key64] = r
	}
	require.Equal(t, RecordSummary{Key64: 42, Width: 16, Height: 16, Size: 4}, byKey[42])
	require.Equal(t, RecordSummary{Key64: 99, Width: 8, Height: 8, Size: 2}, byKey[99])
}

func TestWriteFileSkipsZeroKey(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, 2)
	require.NoError(t, cache.Put(0, 0, &Bitmap{Width: 1, Height: 1, Key64: 0, Pixels: []byte{1}}))

	path := filepath.Join(t.TempDir(), "bitmapcache.bin")
	require.NoError(t, WriteFile(path, cache, hclog.NewNullLogger()))

	_, records, err := InspectFile(path)
	require.NoError(t, err)
	require.Empty(t, records)
}
