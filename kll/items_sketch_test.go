/*
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package kll

import (
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchlib/streamsketch/common"
	"github.com/sketchlib/streamsketch/internal"
)

// checkStructure verifies the sketch's structural invariants: level
// boundaries are non-decreasing, the in-use window fits the single
// allocation, every level above zero is sorted, and the retained items carry
// a total weight of exactly n under the standard per-level weights 2^l.
func checkStructure[C comparable](t *testing.T, s *ItemsSketch[C]) {
	t.Helper()
	require.LessOrEqual(t, int(s.numLevels), _MAX_NUM_LEVELS)
	for l := uint8(0); l < s.numLevels; l++ {
		require.LessOrEqual(t, s.levels[l], s.levels[l+1], "levels must be non-decreasing at %d", l)
	}
	require.Equal(t, uint32(len(s.items)), s.levels[s.numLevels])
	require.LessOrEqual(t, s.levels[s.numLevels], s.maxCapacity)

	weighted := uint64(0)
	for l := uint8(0); l < s.numLevels; l++ {
		segment := s.items[s.levels[l]:s.levels[l+1]]
		weighted += uint64(len(segment)) << l
		if l == 0 && !s.isLevelZeroSorted {
			continue
		}
		for i := 0; i+1 < len(segment); i++ {
			require.False(t, s.compareFn(segment[i+1], segment[i]), "level %d unsorted at %d", l, i)
		}
	}
	require.Equal(t, s.n, weighted, "retained weight must equal the stream length")
	require.Equal(t, s.levels[s.numLevels]-s.levels[0], s.GetNumRetained())
}

// estimatedRank reads the retained items with their standard weights, the
// way a separately built query layer would.
func estimatedRank[C comparable](s *ItemsSketch[C], item C) uint64 {
	rank := uint64(0)
	for l := uint8(0); l < s.numLevels; l++ {
		weight := uint64(1) << l
		for _, v := range s.items[s.levels[l]:s.levels[l+1]] {
			if s.compareFn(v, item) {
				rank += weight
			}
		}
	}
	return rank
}

func retained[C comparable](s *ItemsSketch[C]) []C {
	out := make([]C, 0, s.GetNumRetained())
	return append(out, s.items[s.levels[0]:s.levels[s.numLevels]]...)
}

func TestKllConstructor(t *testing.T) {
	_, err := NewKllItemsSketch[int64](7, common.ItemSketchLongComparator(false))
	assert.Error(t, err)

	_, err = NewKllItemsSketch[int64](200, nil)
	assert.Error(t, err)

	s, err := NewKllItemsSketch[int64](8, common.ItemSketchLongComparator(false))
	require.NoError(t, err)
	assert.Equal(t, uint16(8), s.GetK())

	s, err = NewKllItemsSketchWithDefault[int64](common.ItemSketchLongComparator(false))
	require.NoError(t, err)
	assert.Equal(t, uint16(200), s.GetK())
	assert.True(t, s.IsEmpty())
	assert.False(t, s.IsEstimationMode())
	assert.Equal(t, uint32(0), s.GetNumRetained())
	assert.Equal(t, uint32(993), s.maxCapacity)
	assert.Len(t, s.storage, 993)
}

func TestKllLevelCapacities(t *testing.T) {
	capacities := computeLevelCapacities(200, 8)
	assert.Equal(t, uint16(200), capacities[0])
	assert.Equal(t, uint16(133), capacities[1])
	assert.Equal(t, uint16(89), capacities[2])
	assert.Equal(t, uint16(59), capacities[3])
	assert.Equal(t, uint16(40), capacities[4])

	// non-increasing, floored at m
	for depth := 1; depth < _MAX_NUM_LEVELS; depth++ {
		assert.LessOrEqual(t, capacities[depth], capacities[depth-1])
		assert.GreaterOrEqual(t, capacities[depth], uint16(8))
	}
	assert.Equal(t, uint16(8), capacities[_MAX_NUM_LEVELS-1])

	// the two-phase split for deep levels must not overflow
	assert.Equal(t, uint16(8), max(uint16(8), intCapAux(math.MaxUint16, 59)))
}

func TestKllSmallStreamIsExact(t *testing.T) {
	s, err := NewKllItemsSketchWithDefault[int64](common.ItemSketchLongComparator(false))
	require.NoError(t, err)

	for i := int64(0); i < 50; i++ {
		s.Update(i)
	}
	assert.Equal(t, uint64(50), s.GetN())
	assert.Equal(t, uint32(50), s.GetNumRetained())
	assert.False(t, s.IsEstimationMode())
	checkStructure(t, s)

	items := retained(s)
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	for i := int64(0); i < 50; i++ {
		assert.Equal(t, i, items[i])
	}
}

func TestKllMonotoneStream(t *testing.T) {
	s, err := NewKllItemsSketchWithDefault[int64](common.ItemSketchLongComparator(false))
	require.NoError(t, err)
	s.random = internal.NewSeededBitSource(42, 43)

	const n = 100000
	for i := int64(0); i < n; i++ {
		s.Update(i)
		if i%10000 == 0 {
			checkStructure(t, s)
		}
	}
	checkStructure(t, s)

	assert.Equal(t, uint64(n), s.GetN())
	assert.GreaterOrEqual(t, s.numLevels, uint8(3))
	assert.True(t, s.IsEstimationMode())
	assert.Less(t, s.GetNumRetained(), uint32(n))

	// with k=200 the normalized rank error is about 1.33%; allow 3%
	rank := estimatedRank(s, int64(n/2))
	assert.InDelta(t, n/2, float64(rank), 0.03*n)

	rank = estimatedRank(s, int64(n/10))
	assert.InDelta(t, n/10, float64(rank), 0.03*n)

	assert.Equal(t, uint64(0), estimatedRank(s, int64(0)))
}

func TestKllRandomStream(t *testing.T) {
	s, err := NewKllItemsSketch[float64](128, common.ItemSketchDoubleComparator(false))
	require.NoError(t, err)
	s.random = internal.NewSeededBitSource(7, 9)

	rng := rand.New(rand.NewPCG(99, 101))
	const n = 50000
	for i := 0; i < n; i++ {
		s.Update(rng.Float64())
		if i%5000 == 0 {
			checkStructure(t, s)
		}
	}
	checkStructure(t, s)
	assert.Equal(t, uint64(n), s.GetN())

	// the median of a uniform stream sits near 0.5
	rank := estimatedRank(s, 0.5)
	assert.InDelta(t, n/2, float64(rank), 0.05*n)
}

func TestKllNaNRejected(t *testing.T) {
	s, err := NewKllItemsSketchWithDefault[float64](common.ItemSketchDoubleComparator(false))
	require.NoError(t, err)

	for _, v := range []float64{1.0, math.NaN(), 2.0, math.NaN(), 3.0} {
		s.Update(v)
	}
	assert.Equal(t, uint64(3), s.GetN())

	items := retained(s)
	sort.Float64s(items)
	assert.Equal(t, []float64{1.0, 2.0, 3.0}, items)
}

func TestKllDeterministicWithFixedSeed(t *testing.T) {
	build := func() *ItemsSketch[int64] {
		s, err := NewKllItemsSketchWithDefault[int64](common.ItemSketchLongComparator(false))
		require.NoError(t, err)
		s.random = internal.NewSeededBitSource(5, 6)
		rng := rand.New(rand.NewPCG(1, 2))
		for i := 0; i < 30000; i++ {
			s.Update(int64(rng.Uint64N(1 << 20)))
		}
		return s
	}
	a := build()
	b := build()
	assert.Equal(t, a.numLevels, b.numLevels)
	assert.Equal(t, a.levels[:a.numLevels+1], b.levels[:b.numLevels+1])
	assert.Equal(t, retained(a), retained(b))
}

func TestKllStringItems(t *testing.T) {
	s, err := NewKllItemsSketch[string](64, common.ItemSketchStringComparator(false))
	require.NoError(t, err)
	s.random = internal.NewSeededBitSource(3, 4)

	alphabet := "abcdefghijklmnopqrstuvwxyz"
	for i := 0; i < 10000; i++ {
		c := alphabet[i%len(alphabet)]
		s.Update(string([]byte{c, alphabet[(i/26)%len(alphabet)]}))
	}
	checkStructure(t, s)
	assert.Equal(t, uint64(10000), s.GetN())
}

func TestKllNoAllocationAfterConstruction(t *testing.T) {
	s, err := NewKllItemsSketchWithDefault[int64](common.ItemSketchLongComparator(false))
	require.NoError(t, err)
	s.random = internal.NewSeededBitSource(1, 1)

	storage := &s.storage[0]
	for i := int64(0); i < 200000; i++ {
		s.Update(i)
	}
	// the backing array never moves; only the in-use suffix widens
	assert.Same(t, storage, &s.storage[0])
	assert.LessOrEqual(t, uint32(len(s.items)), s.maxCapacity)
	checkStructure(t, s)
}

func TestKllReverseComparator(t *testing.T) {
	s, err := NewKllItemsSketch[int64](64, common.ItemSketchLongComparator(true))
	require.NoError(t, err)
	s.random = internal.NewSeededBitSource(8, 8)

	const n = 20000
	for i := int64(0); i < n; i++ {
		s.Update(i)
	}
	checkStructure(t, s)

	// under the reversed order, rank counts the items above the query point
	rank := estimatedRank(s, int64(n/2))
	assert.InDelta(t, n/2, float64(rank), 0.05*n)
}
