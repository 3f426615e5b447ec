package iqs

import "github.com/jolatechno/iqs/internal/objhash"

// Rule is the per-object transition contract a step applies to every
// object in the current state. Enumerate and Expand must agree: Expand
// must be a well-defined function of childIndex in [0, numChildren).
type Rule interface {
	// Enumerate reports how many children the given object produces and
	// the largest byte length any of those children can have.
	Enumerate(object []byte) (numChildren uint32, maxChildSize int)

	// Expand writes the bytes of the childIndex-th child into scratch and
	// multiplies amp in place by the rule's amplitude contribution for that
	// child. It returns the number of bytes written. Expand must never
	// write beyond maxChildSize bytes reported by Enumerate for the same
	// object.
	Expand(object []byte, childIndex uint32, amp *Amplitude, scratch []byte) (childLen int)

	// Hash maps a child's bytes to the key used for interference. Rules
	// that embed DefaultHasher get the engine's default (xxhash/v2-backed)
	// implementation.
	Hash(childBytes []byte) uint64
}

// Modifier is a diagonal (child-free) operator: it mutates an object's
// amplitude, and optionally its bytes in place, without branching into
// multiple children. Steps built from a Modifier skip the symbolic buffer
// and interference entirely.
type Modifier interface {
	Apply(object []byte, amp *Amplitude)
}

// DefaultHasher implements Rule.Hash with the engine's default hash
// (cespare/xxhash/v2). Embed it in a Rule implementation to avoid writing
// a Hash method.
type DefaultHasher struct{}

func (DefaultHasher) Hash(childBytes []byte) uint64 {
	return objhash.Sum64(childBytes)
}
