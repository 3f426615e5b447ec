// Package iqs implements a parallel simulator for discrete, amplitude-weighted
// graph dynamics: a state is a weighted multiset of byte-string objects, each
// carrying a complex amplitude. A Rule enumerates and expands successor
// objects per step; successors that hash-collide have their amplitudes
// summed (interference). When the survivor count exceeds the configured
// memory budget, a hash-seeded stochastic sampler truncates the state
// without biasing the resulting distribution.
package iqs
