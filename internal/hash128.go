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

package internal

import (
	"encoding/binary"
	"math"
)

const (
	C1 = 0x87c37b91114253d5
	C2 = 0x4cf5ad432745937f
)

type SimpleMurmur3 struct {
	h1 uint64
	h2 uint64
}

// Hash128 computes the 128-bit MurmurHash3-x64 of data, with seed installed
// into both internal lanes.
func Hash128(data []byte, seed uint64) (uint64, uint64) {
	hashState := SimpleMurmur3{h1: seed, h2: seed}

	// Number of full 128-bit blocks of 16 bytes (the body).
	// Possible exclusion of a remainder of up to 15 bytes.
	nblocks := len(data) >> 4 // bytes / 16

	// Process the 128-bit blocks (the body) into the hash
	for i := 0; i < nblocks; i++ {
		k1 := binary.LittleEndian.Uint64(data[i<<4:])
		k2 := binary.LittleEndian.Uint64(data[i<<4+8:])
		hashState.blockMix128(k1, k2)
	}

	// Gather the tail of up to 15 bytes, little endian
	tail := data[nblocks<<4:]
	k1 := uint64(0)
	k2 := uint64(0)
	for i := len(tail) - 1; i >= 8; i-- {
		k2 |= uint64(tail[i]) << ((i - 8) << 3)
	}
	for i := min(len(tail), 8) - 1; i >= 0; i-- {
		k1 |= uint64(tail[i]) << (i << 3)
	}

	return hashState.finalMix128(k1, k2, uint64(len(data)))
}

// Hash128U8 is Hash128 of the single-byte encoding of v.
func Hash128U8(v uint8, seed uint64) (uint64, uint64) {
	return hash128Fixed(uint64(v), 1, seed)
}

// Hash128U16 is Hash128 of the 2-byte little-endian encoding of v.
func Hash128U16(v uint16, seed uint64) (uint64, uint64) {
	return hash128Fixed(uint64(v), 2, seed)
}

// Hash128U32 is Hash128 of the 4-byte little-endian encoding of v.
func Hash128U32(v uint32, seed uint64) (uint64, uint64) {
	return hash128Fixed(uint64(v), 4, seed)
}

// Hash128U64 is Hash128 of the 8-byte little-endian encoding of v.
func Hash128U64(v uint64, seed uint64) (uint64, uint64) {
	return hash128Fixed(v, 8, seed)
}

// Hash128U128 is Hash128 of the 16-byte little-endian encoding of (hi, lo).
func Hash128U128(lo, hi uint64, seed uint64) (uint64, uint64) {
	hashState := SimpleMurmur3{h1: seed, h2: seed}
	hashState.blockMix128(lo, hi)
	return hashState.finalMix128(0, 0, 16)
}

// hash128Fixed hashes a key of up to 8 bytes already assembled in
// little-endian order in k1. A short key never fills a 128-bit block, so the
// whole input is tail.
func hash128Fixed(k1, lenBytes, seed uint64) (uint64, uint64) {
	hashState := SimpleMurmur3{h1: seed, h2: seed}
	return hashState.finalMix128(k1, 0, lenBytes)
}

// Float32HashBits returns the bit pattern f is hashed under. The two IEEE-754
// zeros compare equal but differ in their sign bit, so both map to 0.
func Float32HashBits(f float32) uint32 {
	b := math.Float32bits(f)
	if b&math.MaxInt32 == 0 {
		return 0
	}
	return b
}

// Float64HashBits returns the bit pattern f is hashed under, with the two
// IEEE-754 zeros collapsed to 0.
func Float64HashBits(f float64) uint64 {
	b := math.Float64bits(f)
	if b&math.MaxInt64 == 0 {
		return 0
	}
	return b
}

// RollDown folds a 128-bit hash into a 64-bit fingerprint.
func RollDown(h1, h2 uint64) uint64 {
	return h1 ^ h2
}

// HashableKey enumerates the key types with a fixed-width hash path, plus
// strings, which take the general byte routine.
type HashableKey interface {
	int16 | uint16 | int32 | uint32 | int64 | uint64 | int | uint |
		float32 | float64 | string
}

// HashOf hashes value through the unrolled path for its width.
// Floating-point keys hash their canonicalized bit pattern.
func HashOf[T HashableKey](value T, seed uint64) (uint64, uint64) {
	switch v := any(value).(type) {
	case int16:
		return Hash128U16(uint16(v), seed)
	case uint16:
		return Hash128U16(v, seed)
	case int32:
		return Hash128U32(uint32(v), seed)
	case uint32:
		return Hash128U32(v, seed)
	case int64:
		return Hash128U64(uint64(v), seed)
	case uint64:
		return Hash128U64(v, seed)
	case int:
		return Hash128U64(uint64(v), seed)
	case uint:
		return Hash128U64(uint64(v), seed)
	case float32:
		return Hash128U32(Float32HashBits(v), seed)
	case float64:
		return Hash128U64(Float64HashBits(v), seed)
	case string:
		return Hash128([]byte(v), seed)
	}
	panic("unreachable: HashableKey covers all cases")
}

func mixK1(k1 uint64) uint64 {
	k1 *= C1
	k1 = (k1 << 31) | (k1 >> (64 - 31))
	k1 *= C2
	return k1
}

func mixK2(k2 uint64) uint64 {
	k2 *= C2
	k2 = (k2 << 33) | (k2 >> (64 - 33))
	k2 *= C1
	return k2
}

func finalMix64(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

func (m *SimpleMurmur3) blockMix128(k1, k2 uint64) {
	m.h1 ^= mixK1(k1)
	m.h1 = (m.h1 << 27) | (m.h1 >> (64 - 27))
	m.h1 += m.h2
	m.h1 = m.h1*5 + 0x52dce729

	m.h2 ^= mixK2(k2)
	m.h2 = (m.h2 << 31) | (m.h2 >> (64 - 31))
	m.h2 += m.h1
	m.h2 = m.h2*5 + 0x38495ab5
}

func (m *SimpleMurmur3) finalMix128(k1, k2, inputLengthBytes uint64) (uint64, uint64) {
	m.h1 ^= mixK1(k1)
	m.h2 ^= mixK2(k2)
	m.h1 ^= inputLengthBytes
	m.h2 ^= inputLengthBytes
	m.h1 += m.h2
	m.h2 += m.h1
	m.h1 = finalMix64(m.h1)
	m.h2 = finalMix64(m.h2)
	m.h1 += m.h2
	m.h2 += m.h1
	return m.h1, m.h2
}
