// Package symbolic holds the scratch buffer of candidate children built
// during a step's expansion and interference stages (C3 in SPEC_FULL.md
// §3). It is adapted from the teacher's EpochArena/locatorStore pair: the
// monotonically-growing, reused-across-steps indirection array plays the
// role locatorChunk's chunked directory plays for node indices, here
// generalized to candidate-child indices (NextOID).
package symbolic

import "math"

// Buffer is the symbolic (pre-coalescing) candidate buffer. One entry per
// candidate child produced during stage 3.
type Buffer struct {
	Re             []float64
	Im             []float64
	Size           []int
	Hash           []uint64
	ParentOID      []int
	ChildID        []uint32
	IsUnique       []bool
	RandomSelector []float64

	// NextOID is the indirection array every reordering operates through;
	// it starts as the identity permutation and is partitioned/sorted in
	// place by stage 4 and stage 5/6, never the heavy arrays themselves.
	NextOID []int

	m int // current logical length (<= cap of the slices above)
}

// Resize grows the buffer's logical length to m, reusing backing arrays
// when they are already large enough (the teacher's overallocation
// discipline), and resets NextOID to the identity permutation.
func (b *Buffer) Resize(m int) {
	b.Re = ensureLen(b.Re, m)
	b.Im = ensureLen(b.Im, m)
	b.Size = ensureLenInt(b.Size, m)
	b.Hash = ensureLenU64(b.Hash, m)
	b.ParentOID = ensureLenInt(b.ParentOID, m)
	b.ChildID = ensureLenU32(b.ChildID, m)
	b.IsUnique = ensureLenBool(b.IsUnique, m)
	b.RandomSelector = ensureLen(b.RandomSelector, m)
	b.NextOID = ensureLenInt(b.NextOID, m)
	for i := 0; i < m; i++ {
		b.NextOID[i] = i
	}
	b.m = m
}

// Len returns the buffer's current logical length M.
func (b *Buffer) Len() int {
	return b.m
}

// AbsSq returns the probability weight of candidate i.
func (b *Buffer) AbsSq(i int) float64 {
	re, im := b.Re[i], b.Im[i]
	return re*re + im*im
}

func ensureLen(s []float64, n int) []float64 {
	if cap(s) >= n {
		return s[:n]
	}
	grown := make([]float64, n, growCap(cap(s), n))
	copy(grown, s)
	return grown
}

func ensureLenInt(s []int, n int) []int {
	if cap(s) >= n {
		return s[:n]
	}
	grown := make([]int, n, growCap(cap(s), n))
	copy(grown, s)
	return grown
}

func ensureLenU64(s []uint64, n int) []uint64 {
	if cap(s) >= n {
		return s[:n]
	}
	grown := make([]uint64, n, growCap(cap(s), n))
	copy(grown, s)
	return grown
}

func ensureLenU32(s []uint32, n int) []uint32 {
	if cap(s) >= n {
		return s[:n]
	}
	grown := make([]uint32, n, growCap(cap(s), n))
	copy(grown, s)
	return grown
}

func ensureLenBool(s []bool, n int) []bool {
	if cap(s) >= n {
		return s[:n]
	}
	grown := make([]bool, n, growCap(cap(s), n))
	copy(grown, s)
	return grown
}

// growCap applies the teacher's 1.5x overallocation policy so repeated
// Resize calls across steps amortize to O(1) per new entry.
func growCap(have, need int) int {
	target := int(math.Ceil(float64(have) * 1.5))
	if target < need {
		target = need
	}
	return target
}
