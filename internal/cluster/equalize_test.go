package cluster

import (
	"sync"
	"testing"
)

// fakeRebalancer is a test-only Rebalancer over fixed-size 1-byte records.
type fakeRebalancer struct {
	mu      sync.Mutex
	records []byte
}

func (f *fakeRebalancer) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeRebalancer) PopTail(k int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if k > len(f.records) {
		k = len(f.records)
	}
	cut := len(f.records) - k
	out := make([]byte, k)
	copy(out, f.records[cut:])
	f.records = f.records[:cut]
	return out
}

func (f *fakeRebalancer) PushBack(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, data...)
}

func TestMakeEqualPairsPairsExtremes(t *testing.T) {
	counts := []uint64{10, 1, 8, 2}
	pairing := makeEqualPairs(counts)
	if pairing[0] != 1 || pairing[1] != 0 {
		t.Fatalf("expected rank 0 (largest) paired with rank 1 (smallest), got %v", pairing)
	}
	if pairing[2] != 3 || pairing[3] != 2 {
		t.Fatalf("expected rank 2 paired with rank 3, got %v", pairing)
	}
}

func TestEqualizeConvergesImbalance(t *testing.T) {
	size := 4
	comms := NewLocalCluster(size)
	reb := []*fakeRebalancer{
		{records: make([]byte, 100)},
		{records: make([]byte, 0)},
		{records: make([]byte, 0)},
		{records: make([]byte, 0)},
	}
	cfg := EqualizeConfig{MinSize: 1, Imbalance: 0.1}

	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			Equalize(comms[r], reb[r], cfg)
		}(r)
	}
	wg.Wait()

	total := 0
	max := 0
	for _, rb := range reb {
		c := rb.Count()
		total += c
		if c > max {
			max = c
		}
	}
	if total != 100 {
		t.Fatalf("object count not conserved: total = %d, want 100", total)
	}
	if max > 60 {
		t.Fatalf("equalizer left a rank holding %d of 100 objects, expected better balance", max)
	}
}

func TestEqualizeSingleRankNoOp(t *testing.T) {
	comms := NewLocalCluster(1)
	reb := &fakeRebalancer{records: make([]byte, 5)}
	rounds := Equalize(comms[0], reb, EqualizeConfig{MinSize: 1, Imbalance: 0.1})
	if rounds != 0 {
		t.Fatalf("expected 0 rounds for a single rank, got %d", rounds)
	}
	if reb.Count() != 5 {
		t.Fatalf("single-rank equalize must not touch local state, count = %d", reb.Count())
	}
}
