// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"math"
	"sync"

	"golang.org/x/exp/rand"
)

// DefaultSeed used by Build when no seed or source is given.
const DefaultSeed uint64 = 0

// Source of randomness used by the augmentations.
//
// A Source is not safe for concurrent use, unless it was created with NewLockedSource.
// Use Split to derive independent sources for parallel workers.
type Source interface {
	// IntN returns a uniformly distributed integer in [0, n). It panics if n <= 0.
	IntN(n int) int

	// Float64 returns a uniformly distributed float in [0.0, 1.0).
	Float64() float64

	// NormFloat64 returns a normally distributed float with mean 0 and standard deviation 1.
	NormFloat64() float64

	// Uint64 returns a uniformly distributed 64-bit value.
	Uint64() uint64
}

// pcgSource implements Source with a PCG generator.
type pcgSource struct {
	rng *rand.Rand
}

// NewSource returns a new Source seeded with the given seed, built on a PCG generator.
// Sources created with the same seed produce the same sequence.
func NewSource(seed uint64) Source {
	return &pcgSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *pcgSource) IntN(n int) int { return s.rng.Intn(n) }
func (s *pcgSource) Float64() float64 { return s.rng.Float64() }
func (s *pcgSource) NormFloat64() float64 { return s.rng.NormFloat64() }
func (s *pcgSource) Uint64() uint64 { return s.rng.Uint64() }

// lockedSource serializes access to a Source.
type lockedSource struct {
	mu  sync.Mutex
	src Source
}

// NewLockedSource returns a Source safe for concurrent use, that wraps src with a mutex.
// If src is already locked, it is returned as is.
func NewLockedSource(src Source) Source {
	if _, ok := src.(*lockedSource); ok {
		return src
	}
	return &lockedSource{src: src}
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.IntN(n)
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Float64()
}

func (s *lockedSource) NormFloat64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.NormFloat64()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

// Split derives a new independent Source from src, consuming one value of src.
// The sequence of derived sources is deterministic for a seeded src.
func Split(src Source) Source {
	return NewSource(src.Uint64())
}

// uniform returns a value uniformly distributed in [low, high).
func uniform(rng Source, low, high float64) float64 {
	return low + (high-low)*rng.Float64()
}

// logUniform returns a value whose logarithm is uniformly distributed in [log(low), log(high)).
func logUniform(rng Source, low, high float64) float64 {
	return math.Exp(uniform(rng, math.Log(low), math.Log(high)))
}

// permutation returns a random permutation of [0, n), using Fisher-Yates.
func permutation(rng Source, n int) []int {
	perm := make([]int, n)
	for ii := range perm {
		perm[ii] = ii
	}
	for ii := n - 1; ii > 0; ii-- {
		jj := rng.IntN(ii + 1)
		perm[ii], perm[jj] = perm[jj], perm[ii]
	}
	return perm
}
