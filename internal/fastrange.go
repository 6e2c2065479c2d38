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

import "math/bits"

// FastRange32 maps word into [0, p) without a division.
//
// Reference: http://lemire.me/blog/2016/06/27/a-fast-alternative-to-the-modulo-reduction/
func FastRange32(word, p uint32) uint32 {
	return uint32((uint64(word) * uint64(p)) >> 32)
}

// FastRange64 maps word into [0, p) without a division.
func FastRange64(word, p uint64) uint64 {
	hi, _ := bits.Mul64(word, p)
	return hi
}
