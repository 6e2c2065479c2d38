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
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// BitSource produces unbiased single random bits. It draws 64 bits at a time
// from a PCG generator and shifts them out one per call.
//
// A BitSource is not safe for concurrent use.
type BitSource struct {
	rng  *rand.Rand
	bits uint64
	left int
}

// NewBitSource returns a BitSource seeded from the operating system entropy
// source.
func NewBitSource() *BitSource {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic("reading entropy for BitSource seed: " + err.Error())
	}
	return NewSeededBitSource(
		binary.LittleEndian.Uint64(b[:8]),
		binary.LittleEndian.Uint64(b[8:]))
}

// NewSeededBitSource returns a BitSource with a fixed seed, for reproducible
// runs.
func NewSeededBitSource(seed1, seed2 uint64) *BitSource {
	return &BitSource{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Bit returns a single random bit.
func (b *BitSource) Bit() uint32 {
	if b.left == 0 {
		b.bits = b.rng.Uint64()
		b.left = 64
	}
	bit := uint32(b.bits & 1)
	b.bits >>= 1
	b.left--
	return bit
}
