package iqs

import "math"

// State is the packed multiset of (amplitude, object) pairs that a
// simulation carries between steps (C2 in SPEC_FULL.md §3). It owns three
// parallel arrays (Re, Im, and the offset-delimited Bytes) instead of a
// slice of structs, the way the teacher's StateTree owns SoA node arrays
// rather than a tree of pointer-linked nodes.
type State struct {
	re     []float64
	im     []float64
	bytes  []byte
	offset []int // len == numObject+1

	totalProba float64
}

// NewState returns an empty state with preallocated capacity for
// objectCapacity objects and byteCapacity bytes of payload.
func NewState(objectCapacity, byteCapacity int) *State {
	if objectCapacity < 1 {
		objectCapacity = 1
	}
	if byteCapacity < 1 {
		byteCapacity = 1
	}
	s := &State{
		re:     make([]float64, 0, objectCapacity),
		im:     make([]float64, 0, objectCapacity),
		bytes:  make([]byte, 0, byteCapacity),
		offset: make([]int, 1, objectCapacity+1),
	}
	s.offset[0] = 0
	return s
}

// NumObject returns the number of objects currently held.
func (s *State) NumObject() int {
	return len(s.offset) - 1
}

// TotalProba returns the last-computed sum of |amp|^2 across all objects.
func (s *State) TotalProba() float64 {
	return s.totalProba
}

// Object returns the amplitude and byte slice for object i. The returned
// slice aliases State's internal storage and is only valid until the next
// mutating call.
func (s *State) Object(i int) (Amplitude, []byte) {
	return Amplitude{Re: s.re[i], Im: s.im[i]}, s.bytes[s.offset[i]:s.offset[i+1]]
}

// Append grows the state by one object, the overload used by callers
// seeding an initial state rather than by the hot step pipeline (which
// sizes exactly once from the symbolic prefix sum).
func (s *State) Append(object []byte, amp Amplitude) {
	s.re = append(s.re, amp.Re)
	s.im = append(s.im, amp.Im)
	s.bytes = append(s.bytes, object...)
	s.offset = append(s.offset, len(s.bytes))
}

// reset clears the state to zero objects while keeping backing capacity,
// the SoA equivalent of EpochArena.Truncate(1).
func (s *State) reset() {
	s.re = s.re[:0]
	s.im = s.im[:0]
	s.bytes = s.bytes[:0]
	s.offset = s.offset[:1]
	s.offset[0] = 0
	s.totalProba = 0
}

// growAmplitudes ensures re/im have capacity for n objects, overallocating
// by 1.5x like the teacher's vector growth policy.
func (s *State) growAmplitudes(n int) {
	if cap(s.re) < n {
		grown := make([]float64, n, growCap(cap(s.re), n))
		copy(grown, s.re)
		s.re = grown
	}
	s.re = s.re[:n]
	if cap(s.im) < n {
		grown := make([]float64, n, growCap(cap(s.im), n))
		copy(grown, s.im)
		s.im = grown
	}
	s.im = s.im[:n]
}

func (s *State) growBytes(n int) {
	if cap(s.bytes) < n {
		grown := make([]byte, n, growCap(cap(s.bytes), n))
		copy(grown, s.bytes)
		s.bytes = grown
	}
	s.bytes = s.bytes[:n]
}

func (s *State) growOffsets(n int) {
	if cap(s.offset) < n+1 {
		grown := make([]int, n+1, growCap(cap(s.offset), n+1))
		copy(grown, s.offset)
		s.offset = grown
	}
	s.offset = s.offset[:n+1]
}

func growCap(have, need int) int {
	target := int(float64(have) * 1.5)
	if target < need {
		target = need
	}
	return target
}

// swap exchanges the contents of s and other in place (used by Simulate to
// swap current/next state buffers without reallocating).
func (s *State) swap(other *State) {
	*s, *other = *other, *s
}

// normalize divides every amplitude by sqrt(totalProba) so that
// Sum|amp|^2 == 1, after computing totalProba from the current contents.
func (s *State) normalize() {
	var sum float64
	for i := range s.re {
		sum += s.re[i]*s.re[i] + s.im[i]*s.im[i]
	}
	s.totalProba = sum
	if sum <= 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range s.re {
		s.re[i] *= inv
		s.im[i] *= inv
	}
}

// All calls fn for every (amplitude, object) pair in order. fn must not
// retain the object slice past the call.
func (s *State) All(fn func(i int, amp Amplitude, object []byte)) {
	for i := 0; i < s.NumObject(); i++ {
		amp, obj := s.Object(i)
		fn(i, amp, obj)
	}
}
