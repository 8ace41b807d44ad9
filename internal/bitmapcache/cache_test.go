package bitmapcache

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, capacities ...int) *Cache {
	t.Helper()
	c, err := New(hclog.NewNullLogger(), Options{CellCapacities: capacities})
	require.NoError(t, err)
	return c
}

// TestPutGetRoundTrip is the §8 Bitmap Cache property: a put followed by
// a get on the same slot returns exactly what was installed.
func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, 10)
	bmp := &Bitmap{Width: 64, Height: 64, BPP: 16, Pixels: []byte{1, 2, 3}}

	require.NoError(t, cache.Put(0, 3, bmp))
	got, ok := cache.Get(0, 3)
	require.True(t, ok)
	require.Same(t, bmp, got)
}

// TestGetAbsentSlotIsNotAnError is §4.4: a get on a never-populated slot
// returns "absent", not an error — legacy servers reference undefined
// entries routinely (Scenario 5).
func TestGetAbsentSlotIsNotAnError(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, 10)
	bmp, ok := cache.Get(0, 5)
	require.False(t, ok)
	require.Nil(t, bmp)
}

// TestCellOutOfRangeFailsWithoutCrashing covers both Put and Get for
// cell_id >= max_cells, per §9(b)'s unified off-by-one rule.
func TestCellOutOfRangeFailsWithoutCrashing(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, 10, 20)

	err := cache.Put(2, 0, &Bitmap{})
	require.True(t, errors.Is(err, ErrCellOutOfRange))

	bmp, ok := cache.Get(2, 0)
	require.False(t, ok)
	require.Nil(t, bmp)

	bmp, ok = cache.Get(-1, 0)
	require.False(t, ok)
	require.Nil(t, bmp)
}

// TestIndexOutOfRangeFailsWithoutCrashing: idx > capacity is rejected by
// Put; the waiting-list slot itself (idx == capacity) is valid.
func TestIndexOutOfRangeFailsWithoutCrashing(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, 10)

	err := cache.Put(0, 11, &Bitmap{})
	require.True(t, errors.Is(err, ErrIndexOutOfRange))

	require.NoError(t, cache.Put(0, 10, &Bitmap{Width: 1}))
}

// TestPutTwiceOnSameSlotReplacesFirst covers put followed by put on the
// same slot: the second bitmap replaces the first, and a get returns the
// second.
func TestPutTwiceOnSameSlotReplacesFirst(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, 10)
	first := &Bitmap{Width: 1}
	second := &Bitmap{Width: 2}

	require.NoError(t, cache.Put(0, 0, first))
	require.NoError(t, cache.Put(0, 0, second))

	got, ok := cache.Get(0, 0)
	require.True(t, ok)
	require.Same(t, second, got)
}

// TestScenario4WaitingListAliasing is spec.md Scenario 4: cell 0 has
// capacity 10. A put at WaitingListIndex stores into slot 10; a get at
// WaitingListIndex and a get at idx=10 both return that bitmap.
func TestScenario4WaitingListAliasing(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, 10)
	bmp := &Bitmap{Width: 32, Height: 32}

	require.NoError(t, cache.Put(0, WaitingListIndex, bmp))

	viaAlias, ok := cache.Get(0, WaitingListIndex)
	require.True(t, ok)
	require.Same(t, bmp, viaAlias)

	viaDirectSlot, ok := cache.Get(0, 10)
	require.True(t, ok)
	require.Same(t, bmp, viaDirectSlot)
}

// TestScenario6BPPCoercion is spec.md Scenario 6: zero BPP inherits the
// session depth; a 15-bpp session coerces a claimed 16-bpp order down to
// 15; any other explicit BPP passes through unchanged.
func TestScenario6BPPCoercion(t *testing.T) {
	t.Parallel()

	require.Equal(t, 24, CoerceBPP(0, 24))
	require.Equal(t, 15, CoerceBPP(16, 15))
	require.Equal(t, 32, CoerceBPP(32, 15))
	require.Equal(t, 16, CoerceBPP(16, 24))
}

func TestNewRejectsEmptyConfiguration(t *testing.T) {
	t.Parallel()
	_, err := New(hclog.NewNullLogger(), Options{})
	require.True(t, errors.Is(err, ErrBadConfiguration))
}

func TestNewRejectsNegativeCapacity(t *testing.T) {
	t.Parallel()
	_, err := New(hclog.NewNullLogger(), Options{CellCapacities: []int{10, -1}})
	require.True(t, errors.Is(err, ErrBadConfiguration))
}
