// Package truncate implements the stage-5 memory-bounded stochastic
// selection: a Hoare-partition nth_element equivalent (the standard library
// has no partial-selection primitive, and no repo in the retrieved pack
// implements one either, so this is a small hand-rolled algorithm rather
// than a library pick) plus the Gumbel-style inclusion-probability
// transform that makes the resulting sample an unbiased estimator.
package truncate

import "math"

// RandomSelector computes the Gumbel-style truncation key for a survivor
// with probability weight absSq, given a deterministic pseudo-uniform u in
// (0, 1) derived from the object's hash. Smaller keys are kept first, so
// NthSmallest(..., maxNumObject) retains the objects most likely to survive
// an unbiased sample weighted by absSq.
func RandomSelector(u, absSq float64) float64 {
	if absSq <= 0 {
		return math.Inf(1)
	}
	if u >= 1 {
		u = math.Nextafter(1, 0)
	}
	if u <= 0 {
		u = math.SmallestNonzeroFloat64
	}
	return math.Log(-math.Log(1-u) / absSq)
}

// NthSmallest partitions oids in place so that the k smallest elements by
// key(oid) occupy oids[:k] (unordered within that prefix), the way
// std::nth_element leaves its range partitioned around the kth element.
// It is a no-op if k >= len(oids).
func NthSmallest(oids []int, key func(oid int) float64, k int) {
	if k >= len(oids) || k <= 0 {
		return
	}
	lo, hi := 0, len(oids)-1
	for lo < hi {
		p := hoarePartition(oids, key, lo, hi)
		switch {
		case p == k-1:
			return
		case p < k-1:
			lo = p + 1
		default:
			hi = p
		}
	}
}

// hoarePartition partitions oids[lo:hi+1] around a median-of-three pivot
// and returns the pivot's final index.
func hoarePartition(oids []int, key func(oid int) float64, lo, hi int) int {
	mid := lo + (hi-lo)/2
	medianOfThree(oids, key, lo, mid, hi)
	pivot := key(oids[mid])
	oids[mid], oids[hi] = oids[hi], oids[mid]

	store := lo
	for i := lo; i < hi; i++ {
		if key(oids[i]) < pivot {
			oids[i], oids[store] = oids[store], oids[i]
			store++
		}
	}
	oids[store], oids[hi] = oids[hi], oids[store]
	return store
}

func medianOfThree(oids []int, key func(oid int) float64, a, b, c int) {
	if key(oids[a]) > key(oids[b]) {
		oids[a], oids[b] = oids[b], oids[a]
	}
	if key(oids[b]) > key(oids[c]) {
		oids[b], oids[c] = oids[c], oids[b]
	}
	if key(oids[a]) > key(oids[b]) {
		oids[a], oids[b] = oids[b], oids[a]
	}
}
