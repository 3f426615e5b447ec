package symbolic

import "testing"

func TestResizeIdentityPermutation(t *testing.T) {
	var b Buffer
	b.Resize(5)
	for i := 0; i < 5; i++ {
		if b.NextOID[i] != i {
			t.Fatalf("NextOID[%d] = %d, want %d", i, b.NextOID[i], i)
		}
	}
	if b.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", b.Len())
	}
}

func TestResizeReusesBackingArrayWhenShrinking(t *testing.T) {
	var b Buffer
	b.Resize(100)
	backing := b.Re
	b.Resize(10)
	if &b.Re[0] != &backing[0] {
		t.Fatalf("Resize to smaller M reallocated instead of reusing backing array")
	}
	if len(b.Re) != 10 {
		t.Fatalf("len(Re) = %d, want 10", len(b.Re))
	}
}

func TestAbsSq(t *testing.T) {
	var b Buffer
	b.Resize(1)
	b.Re[0], b.Im[0] = 3, 4
	if got := b.AbsSq(0); got != 25 {
		t.Fatalf("AbsSq = %v, want 25", got)
	}
}
