package dhash_test

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theflywheel/dhash"
)

// identity places small integer keys in their own slot, which makes the
// layout of a table predictable.
var identity = dhash.HasherFunc[int](func(k int) uint64 { return uint64(k) })

func newStringTable(t *testing.T, capacity int, lf float64, opts ...dhash.Option) *dhash.Table[string, string] {
	t.Helper()
	tbl, err := dhash.New[string, string](dhash.StringHasher{}, capacity, lf, opts...)
	require.NoError(t, err)
	return tbl
}

func TestBasicOperations(t *testing.T) {
	tbl := newStringTable(t, dhash.DefaultCapacity, dhash.DefaultMaxLoadFactor)

	for i := 0; i < 100; i++ {
		require.NoError(t, tbl.Insert("key-"+strconv.Itoa(i), "value-"+strconv.Itoa(i*100)))
	}
	require.Equal(t, 100, tbl.Len())

	for i := 0; i < 100; i++ {
		v, found := tbl.Get("key-" + strconv.Itoa(i))
		require.True(t, found, "key %d not found", i)
		assert.Equal(t, "value-"+strconv.Itoa(i*100), v)
	}

	_, found := tbl.Get("missing")
	assert.False(t, found)
	assert.False(t, tbl.Contains("missing"))
	assert.True(t, tbl.Contains("key-42"))
}

func TestOverwrite(t *testing.T) {
	tbl := newStringTable(t, dhash.DefaultCapacity, dhash.DefaultMaxLoadFactor)

	require.NoError(t, tbl.Insert("42", "100"))
	v, found := tbl.Get("42")
	require.True(t, found)
	require.Equal(t, "100", v)

	require.NoError(t, tbl.Insert("42", "200"))
	assert.Equal(t, 1, tbl.Len())

	v, found = tbl.Get("42")
	require.True(t, found)
	assert.Equal(t, "200", v)
}

func TestInvalidInputs(t *testing.T) {
	testCases := []struct {
		name     string
		capacity int
		lf       float64
		want     error
	}{
		{"Capacity_Zero", 0, 0.75, dhash.ErrInvalidCapacity},
		{"Capacity_One", 1, 0.75, dhash.ErrInvalidCapacity},
		{"Capacity_Negative", -5, 0.75, dhash.ErrInvalidCapacity},
		{"LoadFactor_Zero", 10, 0, dhash.ErrInvalidLoadFactor},
		{"LoadFactor_One", 10, 1, dhash.ErrInvalidLoadFactor},
		{"LoadFactor_Above_One", 10, 1.5, dhash.ErrInvalidLoadFactor},
		{"LoadFactor_NaN", 10, math.NaN(), dhash.ErrInvalidLoadFactor},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := dhash.New[string, string](dhash.StringHasher{}, tc.capacity, tc.lf)
			require.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("Nil_Hasher", func(t *testing.T) {
		_, err := dhash.New[string, string](nil, 10, 0.75)
		require.ErrorIs(t, err, dhash.ErrNilHasher)
	})

	t.Run("Max_Below_Initial", func(t *testing.T) {
		_, err := dhash.New[string, string](dhash.StringHasher{}, 16, 0.75, dhash.WithMaxCapacity(8))
		require.ErrorIs(t, err, dhash.ErrInvalidCapacity)
	})
}

func TestMinimumCapacity(t *testing.T) {
	tbl, err := dhash.New[int, int](identity, 2, 0.5)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, tbl.Insert(i, i*i))
	}
	for i := 0; i < 10; i++ {
		v, found := tbl.Get(i)
		require.True(t, found)
		assert.Equal(t, i*i, v)
	}
}

func TestRemove(t *testing.T) {
	tbl := newStringTable(t, dhash.DefaultCapacity, dhash.DefaultMaxLoadFactor)
	require.NoError(t, tbl.Insert("113", "Jane Doe"))
	require.NoError(t, tbl.Insert("17", "John Roe"))

	removed, ok := tbl.Remove("113")
	require.True(t, ok)
	assert.Equal(t, "113", removed)
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, 1, tbl.Stats().Tombstones)

	_, found := tbl.Get("113")
	assert.False(t, found)

	_, ok = tbl.Remove("113")
	assert.False(t, ok)

	v, found := tbl.Get("17")
	require.True(t, found)
	assert.Equal(t, "John Roe", v)
}

func TestTombstoneKeepsProbeChain(t *testing.T) {
	// Every key starts probing at slot 3 and steps by 4.
	collide := dhash.HasherFunc[string](func(string) uint64 { return 3 })
	tbl, err := dhash.New[string, int](collide, 10, 0.75)
	require.NoError(t, err)

	require.NoError(t, tbl.Insert("a", 1))
	require.NoError(t, tbl.Insert("b", 2))

	_, ok := tbl.Remove("a")
	require.True(t, ok)

	v, found := tbl.Get("b")
	require.True(t, found, "key behind a tombstone must stay reachable")
	assert.Equal(t, 2, v)

	// Updating b must not place a second copy into a's tombstone.
	require.NoError(t, tbl.Insert("b", 20))
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, 1, tbl.Stats().Tombstones)
	v, _ = tbl.Get("b")
	assert.Equal(t, 20, v)

	// A new key reuses the tombstone.
	require.NoError(t, tbl.Insert("c", 3))
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, 0, tbl.Stats().Tombstones)

	got := map[string]int{}
	for k, v := range tbl.Entries() {
		got[k] = v
	}
	assert.Equal(t, map[string]int{"b": 20, "c": 3}, got)
}

func TestResizeScenario(t *testing.T) {
	tbl, err := dhash.New[int, string](identity, 10, 0.75)
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		require.NoError(t, tbl.Insert(i, fmt.Sprint("v", i)))
	}
	require.Equal(t, 10, tbl.Cap())

	// 8/10 exceeds 0.75.
	require.NoError(t, tbl.Insert(7, "v7"))
	assert.Equal(t, 20, tbl.Cap())
	assert.Equal(t, 1, tbl.Stats().Resizes)

	for i := 0; i < 8; i++ {
		v, found := tbl.Get(i)
		require.True(t, found, "key %d lost in resize", i)
		assert.Equal(t, fmt.Sprint("v", i), v)
	}
}

func TestResizeDropsTombstones(t *testing.T) {
	tbl, err := dhash.New[int, int](identity, 10, 0.75)
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		require.NoError(t, tbl.Insert(i, i))
	}
	for i := 0; i < 3; i++ {
		_, ok := tbl.Remove(i)
		require.True(t, ok)
	}
	for i := 7; i < 10; i++ {
		require.NoError(t, tbl.Insert(i, i))
	}
	require.Equal(t, 3, tbl.Stats().Tombstones)
	require.Equal(t, 10, tbl.Cap())

	// 13 probes slots 3 and 8 only, both occupied, so the table must grow.
	require.NoError(t, tbl.Insert(13, 13))

	st := tbl.Stats()
	assert.Equal(t, 8, st.Len)
	assert.Equal(t, 20, st.Capacity)
	assert.Equal(t, 0, st.Tombstones)
}

func TestResizing(t *testing.T) {
	tbl := newStringTable(t, dhash.DefaultCapacity, dhash.DefaultMaxLoadFactor)

	numEntries := 5000
	for i := 0; i < numEntries; i++ {
		key := "key-" + strconv.Itoa(i)
		require.NoError(t, tbl.Insert(key, strconv.Itoa(i)))

		assert.LessOrEqual(t, tbl.LoadFactor(), dhash.DefaultMaxLoadFactor, "after insert %d", i)

		v, found := tbl.Get(key)
		require.True(t, found, "entry %d not found immediately after insertion", i)
		require.Equal(t, strconv.Itoa(i), v)
	}

	for i := 0; i < numEntries; i++ {
		v, found := tbl.Get("key-" + strconv.Itoa(i))
		require.True(t, found, "entry %d not found after all insertions", i)
		require.Equal(t, strconv.Itoa(i), v)
	}
	assert.Greater(t, tbl.Stats().Resizes, 0)
}

func TestMixedWorkload(t *testing.T) {
	tbl, err := dhash.New[int, int](dhash.IntegerHasher[int]{}, 4, 0.6)
	require.NoError(t, err)
	want := map[int]int{}

	for i := 0; i < 3000; i++ {
		k := (i * 7919) % 1000
		switch i % 3 {
		case 0, 1:
			require.NoError(t, tbl.Insert(k, i))
			want[k] = i
		case 2:
			_, ok := tbl.Remove(k)
			_, existed := want[k]
			require.Equal(t, existed, ok, "remove %d", k)
			delete(want, k)
		}
		require.LessOrEqual(t, tbl.LoadFactor(), 0.6)
	}

	got := map[int]int{}
	for k, v := range tbl.Entries() {
		_, dup := got[k]
		require.False(t, dup, "duplicate key %d", k)
		got[k] = v
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, len(want), tbl.Len())
}

func TestForcedGrowthOnShortProbeCycle(t *testing.T) {
	// With hash 1 the step is 2, so in an even-sized table only odd slots
	// are ever probed.
	one := dhash.HasherFunc[string](func(string) uint64 { return 1 })
	tbl, err := dhash.New[string, int](one, 4, 0.9)
	require.NoError(t, err)

	require.NoError(t, tbl.Insert("a", 1))
	require.NoError(t, tbl.Insert("b", 2))
	require.Equal(t, 4, tbl.Cap())

	require.NoError(t, tbl.Insert("c", 3))
	assert.Equal(t, 8, tbl.Cap())
	assert.Equal(t, 3, tbl.Len())
	for k, want := range map[string]int{"a": 1, "b": 2, "c": 3} {
		v, found := tbl.Get(k)
		require.True(t, found)
		assert.Equal(t, want, v)
	}
}

func TestGrowthPastShortProbeCycles(t *testing.T) {
	// With hash 15 the step is 16 from 32 slots up, so the probe cycle is
	// only capacity/16 long and growing from 16 slots takes four doublings.
	fifteen := dhash.HasherFunc[int](func(int) uint64 { return 15 })
	tbl, err := dhash.New[int, int](fifteen, 2, 0.75)
	require.NoError(t, err)

	for i := 0; i < 300; i++ {
		require.NoError(t, tbl.Insert(i, i*10))
		require.LessOrEqual(t, tbl.LoadFactor(), 0.75,
			"load factor exceeded after inserting %d at capacity %d", i, tbl.Cap())
	}
	assert.Equal(t, 300, tbl.Len())

	for i := 0; i < 300; i++ {
		v, found := tbl.Get(i)
		require.True(t, found, "key %d", i)
		assert.Equal(t, i*10, v)
	}
}

func TestTableFull(t *testing.T) {
	one := dhash.HasherFunc[string](func(string) uint64 { return 1 })
	tbl, err := dhash.New[string, int](one, 4, 0.9, dhash.WithMaxCapacity(4))
	require.NoError(t, err)

	require.NoError(t, tbl.Insert("a", 1))
	require.NoError(t, tbl.Insert("b", 2))

	err = tbl.Insert("c", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dhash.ErrTableFull))
	assert.True(t, errors.Is(err, dhash.ErrCapacityLimit))

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, 4, tbl.Cap())
	_, found := tbl.Get("c")
	assert.False(t, found)

	// Updates still work on a full table.
	require.NoError(t, tbl.Insert("a", 10))
	v, _ := tbl.Get("a")
	assert.Equal(t, 10, v)
}

func TestMaxCapacityAllowsOverload(t *testing.T) {
	tbl, err := dhash.New[int, int](identity, 4, 0.5, dhash.WithMaxCapacity(8))
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		require.NoError(t, tbl.Insert(i, i))
	}
	assert.Equal(t, 8, tbl.Cap())
	assert.Equal(t, 6, tbl.Len())
	assert.Greater(t, tbl.LoadFactor(), 0.5)
}

func TestEntriesRestartable(t *testing.T) {
	tbl, err := dhash.New[int, string](identity, 10, 0.75)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, tbl.Insert(i, strconv.Itoa(i)))
	}

	entries := tbl.Entries()
	collect := func() []int {
		var keys []int
		for k := range entries {
			keys = append(keys, k)
		}
		return keys
	}

	first := collect()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, first)
	assert.Equal(t, first, collect())

	// The iterator observes later mutations, including a resize.
	for i := 5; i < 9; i++ {
		require.NoError(t, tbl.Insert(i, strconv.Itoa(i)))
	}
	_, _ = tbl.Remove(0)
	got := collect()
	sort.Ints(got)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, got)

	// Early exit.
	n := 0
	for range tbl.Entries() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)

	var keys []int
	for k := range tbl.Keys() {
		keys = append(keys, k)
	}
	assert.Len(t, keys, 8)
}

func TestString(t *testing.T) {
	tbl, err := dhash.New[int, string](identity, 10, 0.75)
	require.NoError(t, err)
	assert.Equal(t, "", tbl.String())

	require.NoError(t, tbl.Insert(2, "Jane Doe"))
	require.NoError(t, tbl.Insert(1, "John Roe"))
	assert.Equal(t, "(1, John Roe)\n(2, Jane Doe)", tbl.String())
}

func TestVariousHashers(t *testing.T) {
	t.Run("Bytes", func(t *testing.T) {
		tbl, err := dhash.NewDefault[[]byte, int](dhash.BytesHasher{})
		require.NoError(t, err)
		for i := 0; i < 200; i++ {
			require.NoError(t, tbl.Insert([]byte{byte(i), byte(i >> 8), 0xAB}, i))
		}
		for i := 0; i < 200; i++ {
			v, found := tbl.Get([]byte{byte(i), byte(i >> 8), 0xAB})
			require.True(t, found)
			assert.Equal(t, i, v)
		}
	})

	t.Run("Integer", func(t *testing.T) {
		tbl, err := dhash.NewDefault[uint16, int](dhash.IntegerHasher[uint16]{})
		require.NoError(t, err)
		for i := 0; i < 1000; i++ {
			require.NoError(t, tbl.Insert(uint16(i), i))
		}
		assert.Equal(t, 1000, tbl.Len())
	})

	t.Run("Comparable", func(t *testing.T) {
		type point struct{ x, y int }
		tbl, err := dhash.NewDefault[point, string](dhash.NewComparableHasher[point]())
		require.NoError(t, err)
		for x := 0; x < 20; x++ {
			for y := 0; y < 20; y++ {
				require.NoError(t, tbl.Insert(point{x, y}, fmt.Sprintf("%d,%d", x, y)))
			}
		}
		v, found := tbl.Get(point{7, 13})
		require.True(t, found)
		assert.Equal(t, "7,13", v)
		assert.Equal(t, 400, tbl.Len())
	})
}
