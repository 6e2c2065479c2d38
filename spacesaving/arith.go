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

// Package spacesaving provides SpaceSaving sketches for frequent item
// estimation.
//
// The implementation roughly follows the book
// Cormode, Graham, and Ke Yi. Small summaries for big data. Cambridge
// University Press, 2020.
// It stores the weights and values in a min-heap and scans the key array in
// blocks, taking a match bitmask per block.
//
// The sketch was introduced in the paper
// Metwally, Ahmed, Divyakant Agrawal, and Amr El Abbadi. "Efficient
// computation of frequent and top-k elements in data streams." International
// conference on database theory. Springer Berlin Heidelberg, 2005.
package spacesaving

import (
	"fmt"
	"math/bits"

	"github.com/sketchlib/streamsketch/internal"
)

// The default capacity gives usable top-k answers for modestly skewed
// streams.
const _DEFAULT_K = 96

// ArithKey enumerates the key types stored directly in the sketch alongside
// their weights.
type ArithKey interface {
	int16 | uint16 | int32 | uint32 | int64 | uint64 | int | uint |
		float32 | float64
}

// Arith is a SpaceSaving sketch over arithmetic keys.
//
// The pair (weights, values) forms a min-heap keyed on weights, with the
// children of slot i at 2i+1 and 2i+2. A value that is not tracked overwrites
// the minimum, which the heap keeps at the root. After construction no
// operation allocates.
//
// An Arith sketch is not safe for concurrent use.
type Arith[T ArithKey] struct {
	k       int
	values  []T
	weights []uint64
}

// NewArith returns a SpaceSaving sketch tracking up to k arithmetic keys.
// k must be a positive multiple of 32, the block size of the key scan.
func NewArith[T ArithKey](k int) (*Arith[T], error) {
	if k <= 0 || k%32 != 0 {
		return nil, fmt.Errorf("K must be a positive multiple of 32: %d", k)
	}
	values := make([]T, k)
	// Distinct dummy keys, so no real input can ever match more than one
	// slot. An input equal to a dummy just claims that slot early; its
	// weight is counted correctly from then on.
	for i := range values {
		values[i] = T(i)
	}
	return &Arith[T]{
		k:       k,
		values:  values,
		weights: make([]uint64, k),
	}, nil
}

// NewArithWithDefault returns a SpaceSaving sketch with the default capacity
// of 96 keys.
func NewArithWithDefault[T ArithKey]() (*Arith[T], error) {
	return NewArith[T](_DEFAULT_K)
}

// Update adds one occurrence of value.
//
// Takes O(K) time to check whether the value is already tracked and O(log K)
// to restore the heap.
func (s *Arith[T]) Update(v T) {
	value := normalized(v)
	i := s.find(value)
	s.weights[i]++
	s.values[i] = value
	s.siftDown(i)
}

// normalized collapses the two IEEE-754 zeros to +0, so that one logical key
// cannot occupy two slots. Identity for integer keys.
func normalized[T ArithKey](value T) T {
	var zero T
	if value == zero {
		return zero
	}
	return value
}

// find returns the index of value in the key array, or 0 when it is absent:
// a miss replaces the current minimum, which the heap invariant keeps at the
// root.
func (s *Arith[T]) find(value T) int {
	i := 0
	for ; i+64 <= s.k; i += 64 {
		if mask := internal.ScanMask64(value, s.values[i:]); mask != 0 {
			return i + bits.TrailingZeros64(mask)
		}
	}
	for ; i+32 <= s.k; i += 32 {
		if mask := internal.ScanMask32(value, s.values[i:]); mask != 0 {
			return i + bits.TrailingZeros64(mask)
		}
	}
	return 0
}

// siftDown restores the min-heap condition after the weight at index i was
// increased, swapping values alongside weights. Ties go left.
func (s *Arith[T]) siftDown(i int) {
	weight := s.weights[i]
	value := s.values[i]
	parent := i
	child := 2*parent + 1
	for child < s.k {
		if right := child + 1; right < s.k && s.weights[child] > s.weights[right] {
			child = right
		}
		if weight <= s.weights[child] {
			break
		}
		s.weights[parent] = s.weights[child]
		s.values[parent] = s.values[child]
		parent = child
		child = 2*parent + 1
	}
	s.weights[parent] = weight
	s.values[parent] = value
}
