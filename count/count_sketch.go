// Package count provides a Count Sketch for unbiased point-frequency
// estimation over a stream of items.
//
// The implementation follows the book
// Cormode, Graham, and Ke Yi. Small summaries for big data. Cambridge
// University Press, 2020.
//
// The sketch was introduced in the paper
// Charikar, Moses, Kevin Chen, and Martin Farach-Colton. "Finding frequent
// items in data streams." International Colloquium on Automata, Languages,
// and Programming. Springer Berlin Heidelberg, 2002.
package count

import (
	"fmt"

	"github.com/sketchlib/streamsketch/internal"
)

const (
	// The default width corresponds to a relative error of about 0.05%.
	_DEFAULT_WIDTH = 2048
	// The default depth of 5 is recommended by "Small Summaries for Big
	// Data" p. 148, which results in a theoretical error probability of
	// about 0.67%.
	_DEFAULT_DEPTH = 5
)

// CountSketch is a depth x width table of signed counters. Each update adds
// +1 or -1 to one counter per row, routed by disjoint bit slices of a single
// 128-bit hash of the item.
//
// Counter overflow is not detected. Callers must keep the total stream weight
// within the int64 range.
//
// A CountSketch is not safe for concurrent use.
type CountSketch[T internal.HashableKey] struct {
	width    int // power of 2
	depth    int // odd
	hashBits int // bits consumed from the hash per row, ctz(2*width)
	counters []int64
	seed     uint64
}

// NewCountSketch creates a CountSketch with the given table dimensions.
// width must be a power of 2 and depth odd; each row consumes ctz(2*width)
// hash bits, and all rows together must fit in the 128-bit hash.
func NewCountSketch[T internal.HashableKey](width, depth int) (*CountSketch[T], error) {
	if !internal.IsPowerOf2(width) {
		return nil, fmt.Errorf("width must be a power of 2: %d", width)
	}
	if depth < 1 || depth&1 == 0 {
		return nil, fmt.Errorf("depth must be positive and odd: %d", depth)
	}
	hashBits, err := internal.ExactLog2(2 * width)
	if err != nil {
		return nil, err
	}
	if hashBits*depth > 128 {
		return nil, fmt.Errorf("hash must have enough bits for each row of the sketch: %d needed, 128 available", hashBits*depth)
	}
	return &CountSketch[T]{
		width:    width,
		depth:    depth,
		hashBits: hashBits,
		counters: make([]int64, width*depth),
		seed:     internal.DEFAULT_UPDATE_SEED,
	}, nil
}

// NewCountSketchWithDefault creates a CountSketch with the default
// dimensions, width 2048 and depth 5.
func NewCountSketchWithDefault[T internal.HashableKey]() (*CountSketch[T], error) {
	return NewCountSketch[T](_DEFAULT_WIDTH, _DEFAULT_DEPTH)
}

// Update adds one occurrence of value to the sketch.
func (c *CountSketch[T]) Update(value T) {
	lo, hi := internal.HashOf(value, c.seed)
	c.UpdateHash(lo, hi)
}

// UpdateHash adds one occurrence of a pre-hashed value. The hash must be the
// 128-bit hash of the value's canonical encoding under the sketch seed.
func (c *CountSketch[T]) UpdateHash(lo, hi uint64) {
	for j := 0; j < c.depth; j++ {
		h, sign := c.route(lo, hi, j)
		c.counters[j*c.width+int(h)] += sign
	}
}

// UpdateWithHash adds one occurrence of a value whose 128-bit hash the caller
// already computed, e.g. when several sketches ingest the same stream.
func (c *CountSketch[T]) UpdateWithHash(_ T, lo, hi uint64) {
	c.UpdateHash(lo, hi)
}

// route extracts row j's bucket and sign from the hash. Row j consumes the
// j-th slice of hashBits bits, reduced to [0, 2*width): the low bit selects
// the sign and the remaining bits the bucket.
//
// When all rows fit in 64 bits, only the low hash word is ever read, which
// keeps the extraction to a single shift and mask.
func (c *CountSketch[T]) route(lo, hi uint64, j int) (uint64, int64) {
	shift := uint(j * c.hashBits)
	var word uint64
	switch {
	case c.hashBits*c.depth <= 64:
		word = lo >> shift
	case shift >= 64:
		word = hi >> (shift - 64)
	case shift == 0:
		word = lo
	default:
		word = lo>>shift | hi<<(64-shift)
	}
	s := word & uint64(2*c.width-1)

	// Map the low bit to a sign: 0 -> -1, 1 -> +1.
	return s >> 1, int64(s&1)*2 - 1
}
