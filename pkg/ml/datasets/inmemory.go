// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"io"
	"slices"
	"sync"

	"github.com/gomlx/imgaug/pkg/augment"
	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/gomlx/imgaug/pkg/core/tensors/numpy"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// InMemoryDataset yields batches that have been completely read into memory.
//
// It supports shuffling the order of the batches (reshuffled at every Reset) and looping indefinitely.
// It's safe for concurrent use, so it can be wrapped with Parallel.
//
// The yielded tensors are shared across epochs: consumers must not modify or finalize them.
type InMemoryDataset struct {
	name, shortName string
	batches         [][]*tensors.Tensor

	muSampling sync.Mutex
	next       int
	shuffle    []int
	rng        augment.Source
	infinite   bool
}

// InMemory creates a dataset that yields each of the given batches once per epoch, in order.
// Each batch is yielded as a single input.
func InMemory(name string, batches ...*tensors.Tensor) *InMemoryDataset {
	inputs := make([][]*tensors.Tensor, len(batches))
	for ii, batch := range batches {
		inputs[ii] = []*tensors.Tensor{batch}
	}
	return InMemoryFromInputs(name, inputs)
}

// InMemoryFromInputs creates a dataset that yields each element of inputs once per epoch, in order.
// Use it when each yield carries more than one tensor (observations, actions, rewards, etc.).
func InMemoryFromInputs(name string, inputs [][]*tensors.Tensor) *InMemoryDataset {
	return &InMemoryDataset{
		name:    name,
		batches: inputs,
		rng:     augment.NewSource(augment.DefaultSeed),
	}
}

// InMemoryFromNpz reads all the arrays of a `.npz` file, and creates a dataset that yields one array
// at a time, in the lexicographic order of their names.
func InMemoryFromNpz(name, filePath string) (*InMemoryDataset, error) {
	arrays, err := numpy.FromNpzFile(filePath)
	if err != nil {
		return nil, errors.WithMessagef(err, "while reading dataset %q", name)
	}
	keys := make([]string, 0, len(arrays))
	for key := range arrays {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	batches := make([]*tensors.Tensor, len(keys))
	for ii, key := range keys {
		batches[ii] = arrays[key]
	}
	klog.V(1).Infof("InMemoryFromNpz(%q): %d batches read from %q", name, len(batches), filePath)
	return InMemory(name, batches...), nil
}

// Name implements Dataset.
func (mds *InMemoryDataset) Name() string {
	return mds.name
}

// ShortName implements HasShortName.
func (mds *InMemoryDataset) ShortName() string {
	if mds.shortName != "" {
		return mds.shortName
	}
	if len(mds.name) > 3 {
		return mds.name[:3]
	}
	return mds.name
}

// SetName sets the name of the dataset and optionally its ShortName, and returns the updated dataset.
func (mds *InMemoryDataset) SetName(name string, shortName ...string) *InMemoryDataset {
	mds.name = name
	if len(shortName) > 0 {
		mds.shortName = shortName[0]
	}
	return mds
}

// NumBatches returns the number of batches yielded per epoch.
func (mds *InMemoryDataset) NumBatches() int {
	return len(mds.batches)
}

// Memory returns the memory used by the tensors of the dataset, in bytes.
func (mds *InMemoryDataset) Memory() uintptr {
	var memory uintptr
	for _, inputs := range mds.batches {
		for _, t := range inputs {
			memory += t.Memory()
		}
	}
	return memory
}

// Shuffle configures the InMemoryDataset to shuffle the order of the batches, using the given seed.
// At each call to Reset it is reshuffled.
//
// It returns the modified InMemoryDataset, so calls can be cascaded.
func (mds *InMemoryDataset) Shuffle(seed uint64) *InMemoryDataset {
	mds.muSampling.Lock()
	defer mds.muSampling.Unlock()
	mds.rng = augment.NewSource(seed)
	mds.shuffleLocked()
	return mds
}

// shuffleLocked shuffles the yield order. It assumes muSampling is locked.
func (mds *InMemoryDataset) shuffleLocked() {
	if mds.shuffle == nil {
		mds.shuffle = make([]int, len(mds.batches))
	}
	for ii := range mds.shuffle {
		newPos := mds.rng.IntN(ii + 1)
		if newPos == ii {
			mds.shuffle[ii] = ii
		} else {
			// Swap position with the new example.
			mds.shuffle[newPos], mds.shuffle[ii] = ii, mds.shuffle[newPos]
		}
	}
}

// Infinite sets whether the dataset should loop indefinitely. The default is `infinite = false`, which
// causes the dataset to go through the data only once before returning io.EOF.
//
// It returns the modified InMemoryDataset, so calls can be cascaded.
func (mds *InMemoryDataset) Infinite(infinite bool) *InMemoryDataset {
	mds.muSampling.Lock()
	defer mds.muSampling.Unlock()
	mds.infinite = infinite
	return mds
}

// Reset implements Dataset.
func (mds *InMemoryDataset) Reset() {
	mds.muSampling.Lock()
	defer mds.muSampling.Unlock()
	mds.resetLocked()
}

func (mds *InMemoryDataset) resetLocked() {
	mds.next = 0
	if mds.shuffle != nil {
		mds.shuffleLocked()
	}
}

// Yield implements Dataset.
func (mds *InMemoryDataset) Yield() (inputs []*tensors.Tensor, err error) {
	mds.muSampling.Lock()
	defer mds.muSampling.Unlock()
	if len(mds.batches) == 0 {
		return nil, io.EOF
	}
	if mds.next >= len(mds.batches) {
		if !mds.infinite {
			return nil, io.EOF
		}
		mds.resetLocked()
	}
	idx := mds.next
	if mds.shuffle != nil {
		idx = mds.shuffle[idx]
	}
	mds.next++
	return slices.Clone(mds.batches[idx]), nil
}
