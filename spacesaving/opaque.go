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

package spacesaving

import (
	"fmt"
	"math/bits"

	"github.com/sketchlib/streamsketch/internal"
)

// HashFn produces the 128-bit hash of a key.
type HashFn[T comparable] func(value T) (uint64, uint64)

// StringHash hashes a string key with the default seed.
func StringHash(value string) (uint64, uint64) {
	return internal.Hash128([]byte(value), internal.DEFAULT_UPDATE_SEED)
}

// Opaque is a SpaceSaving sketch over keys that are scanned through 64-bit
// fingerprints instead of direct value comparison.
//
// It works like Arith, but the block scan runs over a parallel fingerprint
// array, and every fingerprint match is confirmed against the stored value
// before it counts, disambiguating fingerprint collisions. The heap sift
// carries all three arrays in lockstep.
//
// An Opaque sketch is not safe for concurrent use.
type Opaque[T comparable] struct {
	k       int
	hashFn  HashFn[T]
	hashes  []uint64
	weights []uint64
	values  []T
}

// NewOpaque returns a SpaceSaving sketch tracking up to k opaque keys,
// fingerprinted by hashFn. k must be a positive multiple of 32.
func NewOpaque[T comparable](k int, hashFn HashFn[T]) (*Opaque[T], error) {
	if k <= 0 || k%32 != 0 {
		return nil, fmt.Errorf("K must be a positive multiple of 32: %d", k)
	}
	if hashFn == nil {
		return nil, fmt.Errorf("no hash function provided")
	}
	hashes := make([]uint64, k)
	// Distinct dummy fingerprints, mirroring the arithmetic initializer.
	for i := range hashes {
		hashes[i] = uint64(i)
	}
	return &Opaque[T]{
		k:       k,
		hashFn:  hashFn,
		hashes:  hashes,
		weights: make([]uint64, k),
		values:  make([]T, k),
	}, nil
}

// NewOpaqueWithDefault returns a SpaceSaving sketch with the default capacity
// of 96 keys.
func NewOpaqueWithDefault[T comparable](hashFn HashFn[T]) (*Opaque[T], error) {
	return NewOpaque[T](_DEFAULT_K, hashFn)
}

// Update adds one occurrence of value.
func (s *Opaque[T]) Update(value T) {
	lo, hi := s.hashFn(value)
	s.UpdateWithHash(value, lo, hi)
}

// UpdateWithHash adds one occurrence of a value whose 128-bit hash the caller
// already computed.
//
// Takes O(K) time to check whether the value is already tracked and O(log K)
// to restore the heap.
func (s *Opaque[T]) UpdateWithHash(value T, lo, hi uint64) {
	hash := internal.RollDown(lo, hi)
	i := s.find(value, hash)
	s.hashes[i] = hash
	s.weights[i]++
	s.values[i] = value
	s.siftDown(i)
}

// find scans the fingerprint array for hash and confirms each candidate
// against the stored value. Returns 0 on a miss, the root of the heap.
func (s *Opaque[T]) find(value T, hash uint64) int {
	for i := 0; i+32 <= s.k; i += 32 {
		mask := internal.ScanMask32(hash, s.hashes[i:])
		for mask != 0 {
			j := i + bits.TrailingZeros64(mask)
			if s.values[j] == value {
				return j
			}
			mask &= mask - 1
		}
	}
	return 0
}

// siftDown restores the min-heap condition after the weight at index i was
// increased, moving fingerprints and values alongside weights.
func (s *Opaque[T]) siftDown(i int) {
	weight := s.weights[i]
	hash := s.hashes[i]
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
		s.hashes[parent] = s.hashes[child]
		s.values[parent] = s.values[child]
		parent = child
		child = 2*parent + 1
	}
	s.weights[parent] = weight
	s.hashes[parent] = hash
	s.values[parent] = value
}
