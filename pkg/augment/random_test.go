// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource(t *testing.T) {
	s0, s1, s2 := NewSource(7), NewSource(7), NewSource(8)
	var differ bool
	for range 100 {
		v0, v1, v2 := s0.Uint64(), s1.Uint64(), s2.Uint64()
		require.Equal(t, v0, v1)
		differ = differ || v0 != v2
	}
	assert.True(t, differ, "different seeds should give different sequences")

	for range 1000 {
		require.Less(t, s0.IntN(5), 5)
		f := s0.Float64()
		require.True(t, f >= 0 && f < 1)
	}
}

func TestLockedSource(t *testing.T) {
	locked := NewLockedSource(NewSource(1))
	assert.Same(t, locked, NewLockedSource(locked))

	// Concurrent use draws exactly the values of the underlying sequence.
	const numWorkers, numDraws = 8, 100
	results := make([][]uint64, numWorkers)
	var wg sync.WaitGroup
	for ii := range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range numDraws {
				results[ii] = append(results[ii], locked.Uint64())
			}
		}()
	}
	wg.Wait()
	var all []uint64
	for _, r := range results {
		all = append(all, r...)
	}
	want := make([]uint64, 0, numWorkers*numDraws)
	ref := NewSource(1)
	for range numWorkers * numDraws {
		want = append(want, ref.Uint64())
	}
	slices.Sort(all)
	slices.Sort(want)
	assert.Equal(t, want, all)
}

func TestSplit(t *testing.T) {
	a, b := NewSource(3), NewSource(3)
	sa0, sa1 := Split(a), Split(a)
	sb0 := Split(b)
	assert.Equal(t, sa0.Uint64(), sb0.Uint64())
	assert.NotEqual(t, sa0.Uint64(), sa1.Uint64())
}

func TestUniformAndPermutation(t *testing.T) {
	rng := NewSource(4)
	for range 1000 {
		v := uniform(rng, -2, 3)
		require.True(t, v >= -2 && v < 3)
		v = logUniform(rng, 0.75, 4.0/3.0)
		require.True(t, v >= 0.75-1e-12 && v <= 4.0/3.0+1e-12)
	}
	seen := make(map[[4]int]bool)
	for range 500 {
		perm := permutation(rng, 4)
		sorted := slices.Clone(perm)
		slices.Sort(sorted)
		require.Equal(t, []int{0, 1, 2, 3}, sorted)
		seen[[4]int(perm)] = true
	}
	assert.Len(t, seen, 24)
}
