package iqs

import (
	"sort"
	"sync/atomic"

	"github.com/jolatechno/iqs/internal/budget"
	"github.com/jolatechno/iqs/internal/interference"
	"github.com/jolatechno/iqs/internal/objhash"
	"github.com/jolatechno/iqs/internal/parallel"
	"github.com/jolatechno/iqs/internal/scratch"
	"github.com/jolatechno/iqs/internal/symbolic"
	"github.com/jolatechno/iqs/internal/truncate"
)

// StepOptions carries the per-call knobs Simulate needs beyond the
// simulator-wide Config: an explicit survivor cap (0 = ask the memory
// oracle) and an optional stage-boundary observer.
type StepOptions struct {
	MaxNumObject int
	MidStep      func(stage int)
}

// scratchPool and interference map are reused across Simulate calls via a
// Runner, the way the teacher's MemoryManager reuses EpochArenas through a
// warm pool instead of allocating fresh ones every version.
type Runner struct {
	cfg    Config
	pool   scratch.Pool
	imap   *interference.Map
	sym    symbolic.Buffer
	engine *objhash.Engine
}

// NewRunner returns a Runner that owns the symbolic scratch buffer and
// worker arenas for repeated Simulate calls against the same Rule family.
func NewRunner(cfg Config) *Runner {
	cfg = cfg.applyDefaults()
	return &Runner{
		cfg:    cfg,
		imap:   interference.New(parallel.Workers(cfg.Workers)),
		engine: objhash.NewEngine(),
	}
}

// HashStats reports the number of stage-3 Rule.Hash calls
// and bytes hashed since the last Simulate/SimulateDistributed call (each
// call resets the counters at its start), the way StateTree.hasher's stats
// describe one tree-build call.
func (r *Runner) HashStats() objhash.Stats {
	return r.engine.Stats()
}

// Simulate applies one step of rule to cur, leaving the result in cur
// itself (cur and next are swapped internally; next is the scratch buffer
// reused across steps, analogous to the teacher's epoch swap). On error,
// cur is left completely untouched.
func (r *Runner) Simulate(rule Rule, cur, next *State, opts StepOptions) error {
	logger, _ := stepLogger(r.cfg.Logger)
	sym := &r.sym
	r.engine.ResetStats()

	n := cur.NumObject()
	if n == 0 {
		next.reset()
		cur.swap(next)
		return nil
	}

	mid := opts.MidStep
	emit := func(stage int) {
		if mid != nil {
			mid(stage)
		}
	}

	// Stage 1: enumerate.
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

	// Stage 2: prefix sum + scatter parentage.
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

	// Stage 3: expand + hash.
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

	// Stage 4: interference.
	r.imap.Reset()
	prefixLen := m
	if !r.cfg.StrictInterference {
		prefixLen = int(r.cfg.CollisionTestProportion * float64(m))
		if prefixLen > m {
			prefixLen = m
		}
	}

	var collided atomic.Int64
	if err := parallel.For(prefixLen, r.cfg.Workers, func(start, end int) error {
		local := int64(0)
		for i := start; i < end; i++ {
			inserted := r.imap.InsertOrFold(sym.Hash[i], i, func(rep int) {
				sym.Re[rep] += sym.Re[i]
				sym.Im[rep] += sym.Im[i]
			})
			sym.IsUnique[i] = inserted
			if !inserted {
				local++
			}
		}
		if local > 0 {
			collided.Add(local)
		}
		return nil
	}); err != nil {
		return err
	}

	shortCircuit := false
	if !r.cfg.StrictInterference && prefixLen < m {
		collisionFrac := 0.0
		if prefixLen > 0 {
			collisionFrac = float64(collided.Load()) / float64(prefixLen)
		}
		if collisionFrac <= r.cfg.CollisionTolerance {
			shortCircuit = true
		}
	}

	if shortCircuit {
		for i := prefixLen; i < m; i++ {
			sym.IsUnique[i] = true
		}
		logger.Debug("interference short-circuit engaged", "scanned", prefixLen, "total", m)
	} else if prefixLen < m {
		if err := parallel.For(m-prefixLen, r.cfg.Workers, func(lo, hi int) error {
			for i := prefixLen + lo; i < prefixLen+hi; i++ {
				inserted := r.imap.InsertOrFold(sym.Hash[i], i, func(rep int) {
					sym.Re[rep] += sym.Re[i]
					sym.Im[rep] += sym.Im[i]
				})
				sym.IsUnique[i] = inserted
			}
			return nil
		}); err != nil {
			return err
		}
	}

	numSurvivors := 0
	for oid := 0; oid < m; oid++ {
		if sym.IsUnique[oid] && sym.AbsSq(oid) > r.cfg.Tolerance {
			sym.NextOID[numSurvivors] = oid
			numSurvivors++
		}
	}
	emit(4)

	// Stage 5: memory-bounded truncation.
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
		logger.Info("truncation engaged", "kept", numSurvivors, "discarded_from", len(survivors))
	}
	emit(5)

	// Stage 6: compact.
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

	// Stage 7: re-expand directly into next's byte buffer.
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

	// Stage 8: normalize and swap.
	next.normalize()
	cur.swap(next)
	emit(8)

	return nil
}
