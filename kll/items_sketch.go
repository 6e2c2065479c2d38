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

// Package kll is an implementation of a very compact quantiles sketch with lazy compaction scheme
// and nearly optimal accuracy per retained quantile.
//
// Reference: https://arxiv.org/abs/1603.05346v2" Optimal Quantile Approximation in Streams
//
// The default k of 200 yields a "single-sided" epsilon of about 1.33% and a
// "double-sided" (PMF) epsilon of about 1.65%, with a confidence of 99%.
//
// See "https://datasketches.apache.org/docs/KLL/KLLSketch.html" KLL Sketch
package kll

import (
	"fmt"
	"math"
	"slices"

	"github.com/sketchlib/streamsketch/common"
	"github.com/sketchlib/streamsketch/internal"
)

// ItemsSketch is a KLL quantiles sketch over a single pre-allocated backing
// array. The occupied region is a suffix of that array: level zero grows by
// decrementing its left boundary, and compactions only ever move data
// rightward, so no update allocates.
//
// For floating-point item types, NaN updates are dropped.
//
// An ItemsSketch is not safe for concurrent use.
type ItemsSketch[C comparable] struct {
	// k is the config that controls the accuracy of the sketch and its memory space usage
	// The default k = 200 results in a normalized rank error of about 1.65%.
	k uint16
	// m is the minimum width of a level
	m                 uint8
	numLevels         uint8
	isLevelZeroSorted bool
	n                 uint64
	maxCapacity       uint32
	// levels[l] .. levels[l+1] bound level l within items
	levels []uint32
	// storage is the single allocation; items is its in-use suffix
	storage []C
	items   []C
	// capacity of a level at a given depth below the top, floored at m
	levelCapacities [_MAX_NUM_LEVELS]uint16
	compareFn       common.CompareFn[C]
	sortFn          func(a, b C) int
	random          *internal.BitSource
}

const (
	_DEFAULT_K = uint16(200)
	_DEFAULT_M = uint8(8)
	_MIN_K     = uint16(_DEFAULT_M)
	_MAX_K     = (1 << 16) - 1

	// 60 levels are enough to index at least 2^60 items.
	_MAX_NUM_LEVELS = 60
)

// NewKllItemsSketch creates a new ItemsSketch with the given k.
// The default k = 200 results in a normalized rank error of about 1.65%.
// Larger K will have smaller error but the sketch will be larger (and slower).
func NewKllItemsSketch[C comparable](k uint16, compareFn common.CompareFn[C]) (*ItemsSketch[C], error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	if compareFn == nil {
		return nil, fmt.Errorf("no compare function provided")
	}
	s := &ItemsSketch[C]{
		k:               k,
		m:               _DEFAULT_M,
		numLevels:       uint8(1),
		levels:          make([]uint32, _MAX_NUM_LEVELS+2),
		levelCapacities: computeLevelCapacities(k, _DEFAULT_M),
		compareFn:       compareFn,
		random:          internal.NewBitSource(),
	}
	s.sortFn = func(a, b C) int {
		if compareFn(a, b) {
			return -1
		}
		if compareFn(b, a) {
			return 1
		}
		return 0
	}
	for h := uint8(0); h < _MAX_NUM_LEVELS; h++ {
		s.maxCapacity += uint32(s.levelCapacity(_MAX_NUM_LEVELS, h))
	}
	s.storage = make([]C, s.maxCapacity)
	s.levels[0] = uint32(k)
	s.levels[1] = uint32(k)
	s.items = s.storage[s.maxCapacity-uint32(k):]
	return s, nil
}

// NewKllItemsSketchWithDefault creates a new ItemsSketch with the default k.
// The default k = 200 results in a normalized rank error of about 1.65%.
func NewKllItemsSketchWithDefault[C comparable](compareFn common.CompareFn[C]) (*ItemsSketch[C], error) {
	return NewKllItemsSketch[C](_DEFAULT_K, compareFn)
}

// IsEmpty returns true if the sketch is empty, otherwise false.
func (s *ItemsSketch[C]) IsEmpty() bool {
	return s.n == 0
}

// GetN returns the value of n (the length of the input stream offered to the sketch)
func (s *ItemsSketch[C]) GetN() uint64 {
	return s.n
}

// GetK returns the value of k (which controls the accuracy of the sketch and its memory space usage)
func (s *ItemsSketch[C]) GetK() uint16 {
	return s.k
}

// GetNumRetained returns the number of quantiles retained by the sketch.
func (s *ItemsSketch[C]) GetNumRetained() uint32 {
	return s.levels[s.numLevels] - s.levels[0]
}

// IsEstimationMode returns true if the sketch is in estimation mode, otherwise false.
func (s *ItemsSketch[C]) IsEstimationMode() bool {
	return s.numLevels > 1
}

// Update inserts an item into the sketch. For floating-point item types a
// NaN item is dropped and n is not incremented.
func (s *ItemsSketch[C]) Update(item C) {
	if !checkUpdateItem(item) {
		return
	}
	index := s.internalUpdate()
	s.items[index] = item
}

func (s *ItemsSketch[C]) internalUpdate() uint32 {
	if s.levels[0] == 0 {
		s.compressWhileUpdating()
	}
	s.n++
	s.isLevelZeroSorted = false
	s.levels[0]--
	return s.levels[0]
}

func checkUpdateItem[C comparable](item C) bool {
	switch v := any(item).(type) {
	case float32:
		return !math.IsNaN(float64(v))
	case float64:
		return !math.IsNaN(v)
	}
	return true
}

// levelCapacity returns the capacity of the level at the given height for a
// sketch numLevels deep.
func (s *ItemsSketch[C]) levelCapacity(numLevels, height uint8) uint16 {
	depth := numLevels - height - 1
	return s.levelCapacities[depth]
}

func (s *ItemsSketch[C]) findLevelToCompact() uint8 {
	for level := uint8(0); ; level++ {
		pop := s.levels[level+1] - s.levels[level]
		capacity := uint32(s.levelCapacity(s.numLevels, level))
		if pop >= capacity {
			return level
		}
	}
}

func (s *ItemsSketch[C]) addEmptyTopLevelToCompletelyFullSketch() {
	curTotalCap := s.levels[s.numLevels]
	deltaCap := uint32(s.levelCapacity(s.numLevels+1, 0))
	newTotalCap := curTotalCap + deltaCap

	// The in-use suffix just widens leftward over the single allocation;
	// nothing is copied.
	s.items = s.storage[s.maxCapacity-newTotalCap:]

	// This loop includes the old "extra" index at the top.
	for i := uint8(0); i <= s.numLevels; i++ {
		s.levels[i] += deltaCap
	}

	s.numLevels++
	s.levels[s.numLevels] = newTotalCap // initialize the new "extra" index at the top
}

func (s *ItemsSketch[C]) compressWhileUpdating() {
	level := s.findLevelToCompact()

	// It is important to add the new top level right here. Be aware that
	// this operation widens the in-use window, shifts the level boundaries
	// and increments numLevels.
	if level == s.numLevels-1 {
		s.addEmptyTopLevelToCompletelyFullSketch()
	}

	rawBeg := s.levels[level]
	rawLim := s.levels[level+1]
	// +2 is OK because we already added a new top level if necessary
	popAbove := s.levels[level+2] - rawLim
	rawPop := rawLim - rawBeg
	oddPop := rawPop&1 == 1
	adjBeg := rawBeg
	adjPop := rawPop
	if oddPop {
		adjBeg++
		adjPop--
	}
	halfAdjPop := adjPop / 2

	// Level zero might not be sorted, so we must sort it if we wish to
	// compact it. The adjustment for an odd number of items rules out
	// reusing a whole-level sort.
	if level == 0 && !s.isLevelZeroSorted {
		slices.SortFunc(s.items[adjBeg:adjBeg+adjPop], s.sortFn)
	}
	if popAbove == 0 {
		s.randomlyHalveUp(adjBeg, adjPop)
	} else {
		s.randomlyHalveDown(adjBeg, adjPop)
		mergeSortedArrays(s.items, adjBeg, halfAdjPop, rawLim, popAbove, adjBeg+halfAdjPop, s.compareFn)
	}
	s.levels[level+1] -= halfAdjPop // adjust boundaries of the level above
	if oddPop {
		s.levels[level] = s.levels[level+1] - 1 // the current level now contains one item
		if s.levels[level] != rawBeg {
			// namely this leftover guy
			s.items[s.levels[level]] = s.items[rawBeg]
		}
	} else {
		s.levels[level] = s.levels[level+1] // the current level is now empty
	}

	// Finally, shift up the data in the levels below so that the freed-up
	// space can be used by level zero.
	if level > 0 {
		copy(s.items[s.levels[0]+halfAdjPop:], s.items[s.levels[0]:rawBeg])
		for lvl := uint8(0); lvl < level; lvl++ {
			s.levels[lvl] += halfAdjPop
		}
	}
}

// randomlyHalveDown keeps the even- or odd-indexed half of a sorted run,
// chosen by one random bit, compacting the survivors into the run's left
// half.
func (s *ItemsSketch[C]) randomlyHalveDown(start, length uint32) {
	halfLength := length / 2
	offset := s.random.Bit()
	j := start + offset
	for i := start; i < start+halfLength; i++ {
		s.items[i] = s.items[j]
		j += 2
	}
}

// randomlyHalveUp keeps the even- or odd-indexed half of a sorted run,
// compacting the survivors into the run's right half.
func (s *ItemsSketch[C]) randomlyHalveUp(start, length uint32) {
	halfLength := length / 2
	offset := s.random.Bit()
	j := start + length - 1 - offset
	for i := start + length - 1; i >= start+halfLength; i-- {
		s.items[i] = s.items[j]
		j -= 2
	}
}
