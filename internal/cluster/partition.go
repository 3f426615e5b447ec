package cluster

import (
	"encoding/binary"
	"math"

	"github.com/jolatechno/iqs/internal/wire"
)

// Candidate is one rank's local candidate child metadata feeding the
// distributed interference protocol (SPEC_FULL.md §4.7).
type Candidate struct {
	Hash uint64
	Re   float64
	Im   float64
}

// Coalesce runs the shard/all-to-all/local-coalesce/unshard protocol over
// the local candidates, returning, for each input candidate in the same
// order, whether it survived as a representative and its (possibly
// amplitude-summed) folded value. With a single rank it degenerates to a
// plain local interference pass equivalent to the shared-memory pipeline's
// stage 4.
func Coalesce(comm Communicator, candidates []Candidate, tolerance float64) (isUnique []bool, folded []Candidate) {
	n := len(candidates)
	isUnique = make([]bool, n)
	folded = make([]Candidate, n)
	copy(folded, candidates)

	size := comm.Size()
	if size <= 1 {
		reps := map[uint64]int{}
		for i, c := range candidates {
			if rep, ok := reps[c.Hash]; ok {
				folded[rep].Re += c.Re
				folded[rep].Im += c.Im
			} else {
				reps[c.Hash] = i
				isUnique[i] = true
			}
		}
		for i := range folded {
			if isUnique[i] && folded[i].Re*folded[i].Re+folded[i].Im*folded[i].Im <= tolerance {
				isUnique[i] = false
			}
		}
		return isUnique, folded
	}

	numBuckets := NextPow2(8 * size)

	// 1. local partition by bucket.
	buckets := make([][]int, numBuckets)
	for i, c := range candidates {
		b := Bucket(c.Hash, numBuckets)
		buckets[b] = append(buckets[b], i)
	}
	localCounts := make([]uint64, numBuckets)
	for b := range buckets {
		localCounts[b] = uint64(len(buckets[b]))
	}

	// 2. global load balance: rank 0 reduces per-bucket counts across
	// ranks, packs buckets into `size` contiguous, load-balanced ranges,
	// and broadcasts the resulting boundaries.
	totals := comm.Reduce(localCounts, 0)
	var boundaries []int
	if comm.Rank() == 0 {
		boundaries = packBuckets(totals, size)
	}
	boundaries = comm.Broadcast(boundaries, 0)

	// 3. build the send buffer in destination order.
	sendCounts := make([]int, size)
	order := make([]int, 0, n)
	for dst := 0; dst < size; dst++ {
		for b := boundaries[dst]; b < boundaries[dst+1]; b++ {
			order = append(order, buckets[b]...)
		}
		sendCounts[dst] = countInRange(buckets, boundaries[dst], boundaries[dst+1]) * wire.HashAmpSize
	}

	sendBuf := make([]byte, 0, len(order)*wire.HashAmpSize)
	for _, idx := range order {
		sendBuf = appendHashAmp(sendBuf, candidates[idx].Hash, candidates[idx].Re, candidates[idx].Im)
	}

	recvCounts, recvBuf := comm.AllToAll(sendCounts, sendBuf)

	// 4. local coalesce over everything this rank received, tie-broken by
	// first-arrival (origin-node bias is approximated by processing in
	// receive order, which groups by source rank).
	recvN := len(recvBuf) / wire.HashAmpSize
	recvHash := make([]uint64, recvN)
	recvRe := make([]float64, recvN)
	recvIm := make([]float64, recvN)
	for i := 0; i < recvN; i++ {
		off := i * wire.HashAmpSize
		recvHash[i], recvRe[i], recvIm[i] = decodeHashAmp(recvBuf[off : off+wire.HashAmpSize])
	}
	recvUnique := make([]bool, recvN)
	reps := map[uint64]int{}
	for i, h := range recvHash {
		if rep, ok := reps[h]; ok {
			recvRe[rep] += recvRe[i]
			recvIm[rep] += recvIm[i]
		} else {
			reps[h] = i
			recvUnique[i] = true
		}
	}

	// 5. all-to-all back: ship updated (hash, re, im, isUnique) to the
	// origin ranks in the same per-source layout recvCounts describes.
	const recSize = wire.HashAmpSize + 1
	backSendBuf := make([]byte, 0, recvN*recSize)
	backSendCounts := make([]int, size)
	pos := 0
	for src := 0; src < size; src++ {
		cnt := recvCounts[src] / wire.HashAmpSize
		for k := 0; k < cnt; k++ {
			i := pos + k
			backSendBuf = appendHashAmp(backSendBuf, recvHash[i], recvRe[i], recvIm[i])
			flag := byte(0)
			if recvUnique[i] {
				flag = 1
			}
			backSendBuf = append(backSendBuf, flag)
		}
		backSendCounts[src] = cnt * recSize
		pos += cnt
	}
	_, backRecvBuf := comm.AllToAll(backSendCounts, backSendBuf)

	// 6. unpartition: backRecvBuf is laid out in exactly the `order`
	// sequence this rank sent in step 3, so walk it back in lockstep.
	for k := 0; k*recSize < len(backRecvBuf) && k < len(order); k++ {
		off := k * recSize
		h, re, im := decodeHashAmp(backRecvBuf[off : off+wire.HashAmpSize])
		unique := backRecvBuf[off+wire.HashAmpSize] != 0
		idx := order[k]
		folded[idx] = Candidate{Hash: h, Re: re, Im: im}
		isUnique[idx] = unique && re*re+im*im > tolerance
	}

	return isUnique, folded
}

// packBuckets assigns contiguous bucket ranges to size segments so each
// segment's total count is close to totalLoad/size, a 1-D analogue of the
// reference's load_balancing_begin computation.
func packBuckets(totals []uint64, size int) []int {
	numBuckets := len(totals)
	boundaries := make([]int, size+1)
	if size <= 0 {
		return boundaries
	}
	var total uint64
	for _, t := range totals {
		total += t
	}
	target := float64(total) / float64(size)

	boundaries[0] = 0
	running := uint64(0)
	seg := 1
	for b := 0; b < numBuckets && seg < size; b++ {
		running += totals[b]
		if float64(running) >= target*float64(seg) {
			boundaries[seg] = b + 1
			seg++
		}
	}
	for ; seg <= size; seg++ {
		boundaries[seg] = numBuckets
	}
	return boundaries
}

func countInRange(buckets [][]int, lo, hi int) int {
	n := 0
	for b := lo; b < hi; b++ {
		n += len(buckets[b])
	}
	return n
}

func appendHashAmp(buf []byte, hash uint64, re, im float64) []byte {
	var rec [wire.HashAmpSize]byte
	binary.LittleEndian.PutUint64(rec[0:8], hash)
	binary.LittleEndian.PutUint64(rec[8:16], math.Float64bits(re))
	binary.LittleEndian.PutUint64(rec[16:24], math.Float64bits(im))
	return append(buf, rec[:]...)
}

func decodeHashAmp(b []byte) (hash uint64, re, im float64) {
	hash = binary.LittleEndian.Uint64(b[0:8])
	re = math.Float64frombits(binary.LittleEndian.Uint64(b[8:16]))
	im = math.Float64frombits(binary.LittleEndian.Uint64(b[16:24]))
	return
}
