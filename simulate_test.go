package iqs

import "testing"

// collapseRule maps every object onto a single fixed child, the simplest
// way to force hash collisions across unrelated parents and exercise
// stage 4's interference fold.
type collapseRule struct{}

func (collapseRule) Enumerate(object []byte) (uint32, int) { return 1, 1 }

func (collapseRule) Expand(object []byte, childIndex uint32, amp *Amplitude, scratch []byte) int {
	scratch[0] = 9
	return 1
}

func (collapseRule) Hash(childBytes []byte) uint64 {
	return DefaultHasher{}.Hash(childBytes)
}

func newTestRunner() *Runner {
	return NewRunner(Config{Workers: 1, StrictInterference: true})
}

func TestHadamardProducesSuperposition(t *testing.T) {
	r := newTestRunner()
	cur := NewState(4, 16)
	cur.Append([]byte{0}, Amplitude{Re: 1})
	next := NewState(4, 16)

	if err := r.Simulate(hadamardRule{Target: 0}, cur, next, StepOptions{}); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if cur.NumObject() != 2 {
		t.Fatalf("NumObject after Hadamard = %d, want 2", cur.NumObject())
	}
	var total float64
	for i := 0; i < cur.NumObject(); i++ {
		amp, _ := cur.Object(i)
		total += amp.AbsSq()
		if !isClose(amp.AbsSq(), 0.5, 1e-9) {
			t.Fatalf("object %d weight = %f, want 0.5", i, amp.AbsSq())
		}
	}
	if !isClose(total, 1.0, 1e-9) {
		t.Fatalf("total probability = %f, want 1", total)
	}
}

func TestInterferenceFoldsCollidingChildren(t *testing.T) {
	r := newTestRunner()
	cur := NewState(4, 16)
	cur.Append([]byte{0}, Amplitude{Re: 0.6})
	cur.Append([]byte{1}, Amplitude{Re: 0.8})
	next := NewState(4, 16)

	if err := r.Simulate(collapseRule{}, cur, next, StepOptions{}); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if cur.NumObject() != 1 {
		t.Fatalf("NumObject after collapse = %d, want 1 (both parents collide)", cur.NumObject())
	}
	amp, obj := cur.Object(0)
	if obj[0] != 9 {
		t.Fatalf("surviving object = %v, want [9]", obj)
	}
	// Both contributions summed (0.6+0.8=1.4) then renormalized to norm 1.
	if !isClose(amp.AbsSq(), 1.0, 1e-9) {
		t.Fatalf("folded weight = %f, want 1 (single survivor, renormalized)", amp.AbsSq())
	}
}

func TestCNOTEntanglesAfterHadamard(t *testing.T) {
	cfg := Config{Workers: 1, StrictInterference: true}
	r := newTestRunner()
	cur := NewState(4, 16)
	cur.Append([]byte{0, 0}, Amplitude{Re: 1})
	next := NewState(4, 16)

	if err := r.Simulate(hadamardRule{Target: 0}, cur, next, StepOptions{}); err != nil {
		t.Fatalf("Hadamard step: %v", err)
	}
	if err := SimulateModifier(cfg, cnotModifier{Control: 0, Target: 1}, cur, cfg.Workers); err != nil {
		t.Fatalf("CNOT step: %v", err)
	}

	if cur.NumObject() != 2 {
		t.Fatalf("NumObject after CNOT = %d, want 2", cur.NumObject())
	}
	seen := map[string]bool{}
	cur.All(func(i int, amp Amplitude, object []byte) {
		seen[string(object)] = true
	})
	if !seen[string([]byte{0, 0})] || !seen[string([]byte{1, 1})] {
		t.Fatalf("expected only |00> and |11> after entangling, got %v", seen)
	}
	if seen[string([]byte{0, 1})] || seen[string([]byte{1, 0})] {
		t.Fatalf("unexpected non-entangled basis state present: %v", seen)
	}
}

func TestPauliXZAntiCommuteSign(t *testing.T) {
	cfg := Config{Workers: 1}
	s := NewState(2, 4)
	s.Append([]byte{1}, Amplitude{Re: 1})

	// X then Z on |1>: X -> |0>, Z leaves |0> unchanged -> amp stays +1.
	xThenZ := NewState(2, 4)
	xThenZ.Append([]byte{1}, Amplitude{Re: 1})
	if err := SimulateModifier(cfg, pauliXModifier{Target: 0}, xThenZ, cfg.Workers); err != nil {
		t.Fatalf("X: %v", err)
	}
	if err := SimulateModifier(cfg, pauliZModifier{Target: 0}, xThenZ, cfg.Workers); err != nil {
		t.Fatalf("Z: %v", err)
	}

	// Z then X on |1>: Z -> amp -1 (bit is 1), X -> |0> with amp -1.
	zThenX := NewState(2, 4)
	zThenX.Append([]byte{1}, Amplitude{Re: 1})
	if err := SimulateModifier(cfg, pauliZModifier{Target: 0}, zThenX, cfg.Workers); err != nil {
		t.Fatalf("Z: %v", err)
	}
	if err := SimulateModifier(cfg, pauliXModifier{Target: 0}, zThenX, cfg.Workers); err != nil {
		t.Fatalf("X: %v", err)
	}

	ampXZ, objXZ := xThenZ.Object(0)
	ampZX, objZX := zThenX.Object(0)
	if objXZ[0] != 0 || objZX[0] != 0 {
		t.Fatalf("expected both orderings to land on |0>, got %v and %v", objXZ, objZX)
	}
	if isClose(ampXZ.Re, ampZX.Re, 1e-9) {
		t.Fatalf("expected X and Z to anti-commute (opposite sign), got %f and %f", ampXZ.Re, ampZX.Re)
	}
}

func TestReverseModifierIsInvolution(t *testing.T) {
	cfg := Config{Workers: 1}
	s := NewState(2, 8)
	s.Append([]byte{1, 0, 1, 1}, Amplitude{Re: 1})

	if err := SimulateModifier(cfg, reverseModifier{}, s, cfg.Workers); err != nil {
		t.Fatalf("reverse 1: %v", err)
	}
	if err := SimulateModifier(cfg, reverseModifier{}, s, cfg.Workers); err != nil {
		t.Fatalf("reverse 2: %v", err)
	}
	_, obj := s.Object(0)
	want := []byte{1, 0, 1, 1}
	for i := range want {
		if obj[i] != want[i] {
			t.Fatalf("reverse(reverse(x)) = %v, want %v", obj, want)
		}
	}
}

func TestTruncationRespectsMaxNumObject(t *testing.T) {
	r := newTestRunner()
	cur := NewState(16, 64)
	for i := 0; i < 8; i++ {
		// The second byte is a per-parent marker so Hadamard's two children
		// never collide across different parents, keeping all 16 distinct.
		cur.Append([]byte{0, byte(100 + i)}, Amplitude{Re: 1})
	}
	next := NewState(16, 64)

	// hadamardRule doubles the object count to 16; cap survivors at 4.
	if err := r.Simulate(hadamardRule{Target: 0}, cur, next, StepOptions{MaxNumObject: 4}); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if cur.NumObject() != 4 {
		t.Fatalf("NumObject after truncation = %d, want 4", cur.NumObject())
	}
	var total float64
	for i := 0; i < cur.NumObject(); i++ {
		amp, _ := cur.Object(i)
		total += amp.AbsSq()
	}
	if !isClose(total, 1.0, 1e-9) {
		t.Fatalf("total probability after truncation+renormalize = %f, want 1", total)
	}
}

func TestSimulateEmptyStateIsNoOp(t *testing.T) {
	r := newTestRunner()
	cur := NewState(4, 16)
	next := NewState(4, 16)
	if err := r.Simulate(hadamardRule{Target: 0}, cur, next, StepOptions{}); err != nil {
		t.Fatalf("Simulate on empty state: %v", err)
	}
	if cur.NumObject() != 0 {
		t.Fatalf("NumObject = %d, want 0", cur.NumObject())
	}
}
