// Package cluster implements the distributed step pipeline (C7/C8):
// hash-bucket partitioning, collective shard exchange, and the pairwise
// load equalizer, built on top of the adapted ring-buffer transport. No
// repo in the retrieved pack imports a network/RPC/MPI-equivalent library
// directly from source, so "distributed shared-memory nodes" is rendered
// the natural Go way: goroutines-as-ranks communicating over the
// teacher's own queue primitive, matching SPEC_FULL.md §4.7's "modeled
// here as independent goroutine ranks" framing.
package cluster

// Communicator models one rank's view of an SPMD group: membership plus
// the collective and point-to-point primitives the distributed pipeline
// needs. A real network-backed implementation can be substituted without
// touching the partition/coalesce/equalize protocol code.
type Communicator interface {
	Rank() int
	Size() int

	// AllReduceSum sums local across all ranks and returns the total to
	// every rank.
	AllReduceSum(local uint64) uint64

	// Reduce sums local element-wise across all ranks, returning the
	// result only on root; other ranks receive nil.
	Reduce(local []uint64, root int) []uint64

	// Gather collects one uint64 per rank (indexed by rank) on root; other
	// ranks receive nil.
	Gather(local uint64, root int) []uint64

	// Broadcast distributes root's data to every rank. Non-root callers'
	// data argument is ignored.
	Broadcast(data []int, root int) []int

	// AllToAll exchanges variable-length byte payloads: send is this
	// rank's outgoing buffer for every destination concatenated in rank
	// order with sendCounts giving each destination's byte length. It
	// returns the symmetric receive-side counts and concatenated buffer.
	AllToAll(sendCounts []int, send []byte) (recvCounts []int, recv []byte)

	Send(node int, payload []byte)
	Recv(node int) []byte
}
