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
	"errors"
	"strconv"

	"github.com/sketchlib/streamsketch/common"
)

var powersOfThree = []uint64{1, 3, 9, 27, 81, 243, 729, 2187, 6561, 19683, 59049, 177147, 531441,
	1594323, 4782969, 14348907, 43046721, 129140163, 387420489, 1162261467,
	3486784401, 10460353203, 31381059609, 94143178827, 282429536481,
	847288609443, 2541865828329, 7625597484987, 22876792454961, 68630377364883,
	205891132094649}

func checkK(k uint16) error {
	if k < _MIN_K || k > _MAX_K {
		return errors.New("K must be >= " + strconv.Itoa(int(_MIN_K)) + " and <= " + strconv.Itoa(_MAX_K) + ": " + strconv.Itoa(int(k)))
	}
	return nil
}

// intCapAux computes the capacity of a level at the given depth below the
// top, before flooring at m. For depths past 30 the power-of-three table
// would overflow, so the exponent is split and applied in two phases.
func intCapAux(k uint16, depth uint8) uint16 {
	if depth <= 30 {
		return intCapAuxAux(k, depth)
	}
	half := depth / 2
	rest := depth - half
	tmp := intCapAuxAux(k, half)
	return intCapAuxAux(tmp, rest)
}

// intCapAuxAux computes floor((2k * (2/3)^depth + 1) / 2).
func intCapAuxAux(k uint16, depth uint8) uint16 {
	twok := uint64(k) << 1 // for rounding, pre-multiply by 2
	tmp := (twok << depth) / powersOfThree[depth]
	result := (tmp + 1) >> 1 // add 1 and divide by 2
	return uint16(result)
}

// computeLevelCapacities precomputes the per-depth level capacities. The
// capacity function runs on every compaction, so only the first contiguous
// decreasing run is computed; once a depth hits the floor m, every deeper
// entry stays at m.
func computeLevelCapacities(k uint16, m uint8) [_MAX_NUM_LEVELS]uint16 {
	var capacities [_MAX_NUM_LEVELS]uint16
	for i := range capacities {
		capacities[i] = uint16(m)
	}
	for depth := 0; depth < len(capacities); depth++ {
		capacities[depth] = max(uint16(m), intCapAux(k, uint8(depth)))
		if capacities[depth] == uint16(m) {
			break
		}
	}
	return capacities
}

// mergeSortedArrays merges two sorted runs of buf in place, writing the
// result starting at startC. The destination may overlap the sources as long
// as it does not overtake an unread element; a stable two-pointer walk keeps
// that ordering.
func mergeSortedArrays[C comparable](buf []C, startA, lenA, startB, lenB, startC uint32, compareFn common.CompareFn[C]) {
	limA := startA + lenA
	limB := startB + lenB
	limC := startC + lenA + lenB

	a := startA
	b := startB
	for c := startC; c < limC; c++ {
		switch {
		case a == limA:
			buf[c] = buf[b]
			b++
		case b == limB:
			buf[c] = buf[a]
			a++
		case compareFn(buf[b], buf[a]):
			buf[c] = buf[b]
			b++
		default:
			buf[c] = buf[a]
			a++
		}
	}
}
