package iqs

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/jolatechno/iqs/internal/budget"
	"github.com/jolatechno/iqs/internal/cluster"
	"github.com/jolatechno/iqs/internal/objhash"
	"github.com/jolatechno/iqs/internal/parallel"
	"github.com/jolatechno/iqs/internal/truncate"
)

// EqualizeOptions carries the per-call knobs for the distributed
// pipeline's load equalizer, mirroring StepOptions for the shared-memory
// pipeline.
type EqualizeOptions struct {
	// Skip disables the C8 equalizer for this step, leaving whatever
	// imbalance stage 4's hash-bucket partitioning produced.
	Skip bool
}

// stateRebalancer adapts *State to cluster.Rebalancer, letting the
// equalizer migrate a contiguous tail of objects between ranks without the
// cluster package importing State's wire format.
type stateRebalancer struct {
	s *State
}

const rebalanceHeaderSize = 20 // uint32 length + 2*float64 amplitude

func (r stateRebalancer) Count() int { return r.s.NumObject() }

func (r stateRebalancer) PopTail(k int) []byte {
	n := r.s.NumObject()
	if k > n {
		k = n
	}
	start := n - k
	var buf []byte
	for i := start; i < n; i++ {
		objLen := r.s.offset[i+1] - r.s.offset[i]
		var hdr [rebalanceHeaderSize]byte
		binary.LittleEndian.PutUint32(hdr[0:4], uint32(objLen))
		binary.LittleEndian.PutUint64(hdr[4:12], math.Float64bits(r.s.re[i]))
		binary.LittleEndian.PutUint64(hdr[12:20], math.Float64bits(r.s.im[i]))
		buf = append(buf, hdr[:]...)
		buf = append(buf, r.s.bytes[r.s.offset[i]:r.s.offset[i+1]]...)
	}
	r.s.re = r.s.re[:start]
	r.s.im = r.s.im[:start]
	r.s.bytes = r.s.bytes[:r.s.offset[start]]
	r.s.offset = r.s.offset[:start+1]
	return buf
}

func (r stateRebalancer) PushBack(data []byte) {
	pos := 0
	for pos < len(data) {
		objLen := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		re := math.Float64frombits(binary.LittleEndian.Uint64(data[pos+4 : pos+12]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(data[pos+12 : pos+20]))
		start := pos + rebalanceHeaderSize
		obj := data[start : start+objLen]
		r.s.Append(obj, Amplitude{Re: re, Im: im})
		pos = start + objLen
	}
}

// SimulateDistributed runs one step of rule across the ranks reachable
// through comm (SPEC_FULL.md §4.7): stages 1-3 and 5-7 run locally and
// independently per rank exactly as Simulate does, stage 8 normalizes by
// the cluster-wide probability sum, and stage 4's
// interference is replaced by the hash-bucket shard/coalesce/unshard
// protocol in internal/cluster, so a representative and every candidate
// that collides with it anywhere in the cluster fold into one amplitude
// regardless of which rank first produced it. With comm.Size()==1 this
// degenerates to Simulate's local-only interference.
func (r *Runner) SimulateDistributed(comm cluster.Communicator, rule Rule, cur, next *State, opts StepOptions, eqOpts EqualizeOptions) error {
	logger, _ := stepLogger(r.cfg.Logger)
	sym := &r.sym
	r.engine.ResetStats()

	// Unlike Simulate, a locally empty state cannot take an early exit: the
	// cluster's collectives (Coalesce's Reduce/Broadcast/AllToAll, the
	// equalizer's Gather, the closing norm AllReduceSum-equivalent) need
	// every rank to call them the same number of times per step, even with
	// zero local candidates, or the other ranks block on a barrier this
	// rank never reaches.
	n := cur.NumObject()

	mid := opts.MidStep
	emit := func(stage int) {
		if mid != nil {
			mid(stage)
		}
	}

	numChild := make([]int, n+1)
	maxChildSize := int(parallel.ReduceMaxUint64(n, r.cfg.Workers, func(start, end int) uint64 {
		var localMax uint64
		for p := start; p < end; p++ {
			_, obj := cur.Object(p)
			count, maxSize := rule.Enumerate(obj)
			numChild[p+1] = int(count)
			if uint64(maxSize) > localMax {
				localMax = uint64(maxSize)
			}
		}
		return localMax
	}))
	emit(1)

	for p := 0; p < n; p++ {
		numChild[p+1] += numChild[p]
	}
	m := numChild[n]
	sym.Resize(m)
	for p := 0; p < n; p++ {
		begin, end := numChild[p], numChild[p+1]
		for i, c := begin, uint32(0); i < end; i, c = i+1, c+1 {
			sym.ParentOID[i] = p
			sym.ChildID[i] = c
		}
	}
	emit(2)

	if err := parallel.For(m, r.cfg.Workers, func(start, end int) error {
		arena := r.pool.Get(maxChildSize)
		defer r.pool.Put(arena)
		for i := start; i < end; i++ {
			p := sym.ParentOID[i]
			_, parentObj := cur.Object(p)
			amp := Amplitude{Re: cur.re[p], Im: cur.im[p]}
			scratchBuf := arena.Alloc(maxChildSize)
			childLen := rule.Expand(parentObj, sym.ChildID[i], &amp, scratchBuf)
			if childLen > len(scratchBuf) {
				return ErrRuleWroteOOB
			}
			sym.Re[i], sym.Im[i] = amp.Re, amp.Im
			sym.Size[i] = childLen
			sym.Hash[i] = rule.Hash(scratchBuf[:childLen])
			r.engine.Track(childLen)
		}
		return nil
	}); err != nil {
		return err
	}
	emit(3)

	// Stage 4 (distributed): shard every local candidate by hash bucket,
	// exchange and coalesce across ranks, then unshard the folded result
	// back into this rank's symbolic buffer.
	candidates := make([]cluster.Candidate, m)
	for i := 0; i < m; i++ {
		candidates[i] = cluster.Candidate{Hash: sym.Hash[i], Re: sym.Re[i], Im: sym.Im[i]}
	}
	isUnique, folded := cluster.Coalesce(comm, candidates, r.cfg.Tolerance)
	numSurvivors := 0
	for i := 0; i < m; i++ {
		sym.Re[i], sym.Im[i] = folded[i].Re, folded[i].Im
		sym.IsUnique[i] = isUnique[i]
		if isUnique[i] {
			sym.NextOID[numSurvivors] = i
			numSurvivors++
		}
	}
	emit(4)

	maxNumObject := opts.MaxNumObject
	if maxNumObject <= 0 {
		avgSize := 0.0
		if numSurvivors > 0 {
			total := 0
			for _, oid := range sym.NextOID[:numSurvivors] {
				total += sym.Size[oid]
			}
			avgSize = float64(total) / float64(numSurvivors)
		}
		maxNumObject = budget.Estimate(r.cfg.Logger, r.cfg.SafetyMargin, avgSize, r.cfg.MinVectorSize)
	}
	if numSurvivors > maxNumObject {
		survivors := sym.NextOID[:numSurvivors]
		for _, oid := range survivors {
			u := objhash.Uniform01FromHash(sym.Hash[oid])
			sym.RandomSelector[oid] = truncate.RandomSelector(u, sym.AbsSq(oid))
		}
		truncate.NthSmallest(survivors, func(oid int) float64 { return sym.RandomSelector[oid] }, maxNumObject)
		numSurvivors = maxNumObject
		logger.Info("distributed truncation engaged", "rank", comm.Rank(), "kept", numSurvivors)
	}
	emit(5)

	survivors := sym.NextOID[:numSurvivors]
	sort.Ints(survivors)

	next.reset()
	next.growOffsets(numSurvivors)
	next.growAmplitudes(numSurvivors)
	totalBytes := 0
	for i, oid := range survivors {
		next.offset[i] = totalBytes
		next.re[i] = sym.Re[oid]
		next.im[i] = sym.Im[oid]
		totalBytes += sym.Size[oid]
	}
	next.offset[numSurvivors] = totalBytes
	next.growBytes(totalBytes)
	emit(6)

	if err := parallel.For(numSurvivors, r.cfg.Workers, func(start, end int) error {
		for i := start; i < end; i++ {
			oid := survivors[i]
			p := sym.ParentOID[oid]
			_, parentObj := cur.Object(p)
			amp := Amplitude{Re: cur.re[p], Im: cur.im[p]}
			dst := next.bytes[next.offset[i]:next.offset[i+1]]
			childLen := rule.Expand(parentObj, sym.ChildID[oid], &amp, dst)
			if childLen != len(dst) {
				return ErrRuleChildCountMismatch
			}
		}
		return nil
	}); err != nil {
		return err
	}
	emit(7)

	// Stage 8 (distributed): equalize object counts across ranks before
	// normalizing, so normalize's local sum only needs a cluster-wide
	// reduction of each rank's partial probability. The decision to run
	// the equalizer at all must be identical on every rank (eqOpts.Skip
	// and comm.Size() are the same everywhere) since Equalize's Gather and
	// Broadcast calls require every rank's participation; Equalize itself
	// already uses cfg.MinSize to decide, per round, whether any given
	// rank's share of the migration actually moves data.
	if !eqOpts.Skip && comm.Size() > 1 {
		cluster.Equalize(comm, stateRebalancer{s: next}, cluster.EqualizeConfig{
			MinSize:         r.cfg.MinEqualizeSize,
			Imbalance:       r.cfg.EqualizeImbalance,
			DoubleHandshake: r.cfg.DoubleHandshakeEqualize,
		})
	}

	localSum := 0.0
	for i := range next.re {
		localSum += next.re[i]*next.re[i] + next.im[i]*next.im[i]
	}
	// AllReduceSum only sums integers, so the per-rank partial norms are
	// gathered as raw bit patterns and summed in the float domain on root,
	// then broadcast back out the same way Broadcast ships any other
	// scalar (SPEC_FULL.md §4.7's normalize-then-swap closing stage).
	gathered := comm.Gather(math.Float64bits(localSum), 0)
	var sumBits int
	if comm.Rank() == 0 {
		var total float64
		for _, bits := range gathered {
			total += math.Float64frombits(bits)
		}
		sumBits = int(math.Float64bits(total))
	}
	broadcastSum := comm.Broadcast([]int{sumBits}, 0)
	totalSum := math.Float64frombits(uint64(broadcastSum[0]))
	next.totalProba = totalSum
	if totalSum > 0 {
		inv := 1 / math.Sqrt(totalSum)
		for i := range next.re {
			next.re[i] *= inv
			next.im[i] *= inv
		}
	}

	cur.swap(next)
	emit(8)

	return nil
}
