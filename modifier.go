package iqs

import "github.com/jolatechno/iqs/internal/parallel"

// SimulateModifier applies a diagonal operator to every object in s,
// in place. It bypasses the symbolic buffer and interference entirely
// (SPEC_FULL.md §4.1): there is exactly one child per object and no
// collisions are possible, so the eight-stage pipeline would be pure
// overhead.
func SimulateModifier(cfg Config, modifier Modifier, s *State, workers int) error {
	n := s.NumObject()
	if n == 0 {
		return nil
	}
	err := parallel.For(n, workers, func(start, end int) error {
		for i := start; i < end; i++ {
			_, obj := s.Object(i)
			amp := Amplitude{Re: s.re[i], Im: s.im[i]}
			modifier.Apply(obj, &amp)
			s.re[i], s.im[i] = amp.Re, amp.Im
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.normalize()
	return nil
}
