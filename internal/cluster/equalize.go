package cluster

import "sort"

// Rebalancer abstracts a rank's local object collection enough for the
// equalizer to migrate a contiguous tail slice of objects to a peer,
// keeping this package independent of the iqs.State wire format.
type Rebalancer interface {
	Count() int
	// PopTail removes and returns the serialized form of the last k
	// objects, rebasing any internal offsets to start at 0.
	PopTail(k int) []byte
	// PushBack appends objects received from a peer (as produced by that
	// peer's PopTail) to the end of the local collection.
	PushBack(data []byte)
}

// EqualizeConfig carries the equalizer's tunables (SPEC_FULL.md §6/§4.8).
type EqualizeConfig struct {
	MinSize   int
	Imbalance float64

	// DoubleHandshake reproduces the reference implementation's duplicated
	// send/recv pair per equalizer round (SPEC_FULL.md §9 Open Question).
	// Defaults to false: a single clean exchange.
	DoubleHandshake bool
}

// Equalize balances local's object count against every other rank's,
// running at most ceil(log2 size) rounds or until imbalance drops below
// cfg.Imbalance. It returns the number of rounds actually run.
func Equalize(comm Communicator, local Rebalancer, cfg EqualizeConfig) int {
	size := comm.Size()
	if size <= 1 {
		return 0
	}
	maxRounds := Log2(NextPow2(size))

	round := 0
	for ; round < maxRounds; round++ {
		myCount := uint64(local.Count())
		gathered := comm.Gather(myCount, 0)

		var pairing []int
		if comm.Rank() == 0 {
			pairing = makeEqualPairs(gathered)
		}
		pairing = comm.Broadcast(pairing, 0)

		counts := comm.Broadcast(u64ToInt(gathered), 0)

		partner := pairing[comm.Rank()]
		if partner != comm.Rank() {
			myC := counts[comm.Rank()]
			otherC := counts[partner]
			// The migrate/skip decision must be computed from counts, which
			// both ranks in the pair hold identically after the Broadcast
			// above, never from a rank's own live local.Count(): otherwise
			// the sender and receiver can disagree about whether a payload
			// is coming (the sender skips below its MinSize floor while the
			// receiver still blocks on Recv) and deadlock.
			switch {
			case myC > otherC:
				k := (myC - otherC) / 2
				if k > 0 && myC >= cfg.MinSize {
					payload := local.PopTail(k)
					comm.Send(partner, payload)
					if cfg.DoubleHandshake {
						comm.Send(partner, payload)
						comm.Recv(partner)
						comm.Recv(partner)
					}
				}
			case otherC > myC:
				k := (otherC - myC) / 2
				if k > 0 && otherC >= cfg.MinSize {
					payload := comm.Recv(partner)
					if cfg.DoubleHandshake {
						comm.Recv(partner)
						comm.Send(partner, nil)
						comm.Send(partner, nil)
					}
					local.PushBack(payload)
				}
			}
		}

		if imbalanceBelow(counts, cfg.Imbalance) {
			round++
			break
		}
	}
	return round
}

// makeEqualPairs pairs the largest rank with the smallest, the
// second-largest with the second-smallest, and so on, mirroring the
// reference's make_equal_pairs.
func makeEqualPairs(counts []uint64) []int {
	n := len(counts)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return counts[idx[a]] > counts[idx[b]] })

	pairing := make([]int, n)
	for i := range pairing {
		pairing[i] = i
	}
	lo, hi := 0, n-1
	for lo < hi {
		a, b := idx[lo], idx[hi]
		pairing[a] = b
		pairing[b] = a
		lo++
		hi--
	}
	return pairing
}

func imbalanceBelow(counts []int, threshold float64) bool {
	if len(counts) == 0 {
		return true
	}
	max, sum := 0, 0
	for _, c := range counts {
		if c > max {
			max = c
		}
		sum += c
	}
	if max == 0 {
		return true
	}
	avg := float64(sum) / float64(len(counts))
	return (float64(max)-avg)/float64(max) < threshold
}

func u64ToInt(in []uint64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
