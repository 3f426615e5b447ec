// Package objhash provides the default object-hash engine and the
// hash-to-uniform mixer used by stage-5 stochastic truncation.
package objhash

import (
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Sum64 is the package-level default hash for arbitrary-length object
// bytes, used by iqs.DefaultHasher.
func Sum64(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// Stats mirrors the call-count bookkeeping the teacher's hash.Engine keeps,
// generalized from fixed-size leaf/parent hashing to arbitrary-length
// object hashing.
type Stats struct {
	Calls uint64
	Bytes uint64
}

// Engine keeps atomic call-count stats across a run of Sum64/Rule.Hash
// calls, the same shape as the teacher's hash.Engine but without a
// compression-pair contract: a quantum-simulator object has no fixed
// left/right structure, so there is nothing for a parent/leaf split to
// generalize into. It only tracks calls rather than also computing the
// hash, since the hash itself is produced by whatever Rule.Hash the
// caller's rule implements (DefaultHasher's Sum64 or otherwise); a step
// runner tracks every such call through one shared Engine.
type Engine struct {
	calls atomic.Uint64
	bytes atomic.Uint64
}

func NewEngine() *Engine {
	return &Engine{}
}

// Track records one hash call over n bytes.
func (e *Engine) Track(n int) {
	e.calls.Add(1)
	e.bytes.Add(uint64(n))
}

func (e *Engine) Stats() Stats {
	return Stats{Calls: e.calls.Load(), Bytes: e.bytes.Load()}
}

func (e *Engine) ResetStats() {
	e.calls.Store(0)
	e.bytes.Store(0)
}

// Uniform01FromHash maps a 64-bit hash to a pseudo-uniform float64 in
// [0, 1) via a SplitMix64-style mixer. It is deterministic in the hash so
// that truncation sampling (stage 5) is reproducible across runs given the
// same candidate set.
func Uniform01FromHash(h uint64) float64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	// 53 bits of mantissa precision, matching float64's exact-integer range.
	const mantissaBits = 53
	return float64(h>>(64-mantissaBits)) / float64(uint64(1)<<mantissaBits)
}
