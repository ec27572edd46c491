// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"fmt"

	"github.com/gomlx/imgaug/pkg/augment"
	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/pkg/errors"
)

// MapFn transforms the inputs yielded by a dataset. It must not modify the given tensors.
type MapFn func(inputs []*tensors.Tensor) (mapped []*tensors.Tensor, err error)

// mapDataset implements a Dataset that applies a MapFn to the yields of a wrapped dataset.
type mapDataset struct {
	name string
	ds   Dataset
	fn   MapFn
}

// Map returns a Dataset with the result of applying fn to each batch yielded by ds.
// If ds is safe for concurrent use and fn too, so is the returned dataset.
func Map(ds Dataset, name string, fn MapFn) Dataset {
	return &mapDataset{name: name, ds: ds, fn: fn}
}

// Name implements Dataset.
func (ds *mapDataset) Name() string { return ds.name }

// Reset implements Dataset.
func (ds *mapDataset) Reset() { ds.ds.Reset() }

// Yield implements Dataset.
func (ds *mapDataset) Yield() (inputs []*tensors.Tensor, err error) {
	inputs, err = ds.ds.Yield()
	if err != nil {
		return
	}
	inputs, err = ds.fn(inputs)
	if err != nil {
		err = errors.WithMessagef(err, "dataset %q", ds.name)
		inputs = nil
	}
	return
}

// mapObservations returns a MapFn that replaces the first input (the observation batch) by the
// tensors returned by fn. The other inputs are cloned, so all yielded tensors are owned by the
// caller and can be finalized (see Freeing) without affecting the wrapped dataset.
func mapObservations(fn func(obs *tensors.Tensor) ([]*tensors.Tensor, error)) MapFn {
	return func(inputs []*tensors.Tensor) ([]*tensors.Tensor, error) {
		if len(inputs) == 0 {
			return nil, errors.New("dataset yielded no inputs, expected the observation batch as first input")
		}
		mapped, err := fn(inputs[0])
		if err != nil {
			return nil, err
		}
		for ii, input := range inputs[1:] {
			cloned, err := input.Clone()
			if err != nil {
				return nil, errors.WithMessagef(err, "cloning input #%d", ii+1)
			}
			mapped = append(mapped, cloned)
		}
		return mapped, nil
	}
}

// RandomCrop returns a Dataset that randomly crops the observation batch (first input) of each
// yield of ds to `outputSize x outputSize`, see augment.RandomCrop.
//
// The crops are drawn from a source seeded with seed, which is not reset between epochs.
func RandomCrop(ds Dataset, outputSize int, seed uint64) Dataset {
	rng := augment.NewLockedSource(augment.NewSource(seed))
	return Map(ds, fmt.Sprintf("%s [RandomCrop %d]", ds.Name(), outputSize),
		mapObservations(func(obs *tensors.Tensor) ([]*tensors.Tensor, error) {
			cropped, err := augment.RandomCrop(obs, outputSize, rng)
			if err != nil {
				return nil, err
			}
			return []*tensors.Tensor{cropped}, nil
		}))
}

// CenterCrop returns a Dataset that crops the center of the observation batch (first input) of
// each yield of ds to `outputSize x outputSize`, see augment.CenterCropBatch.
func CenterCrop(ds Dataset, outputSize int) Dataset {
	return Map(ds, fmt.Sprintf("%s [CenterCrop %d]", ds.Name(), outputSize),
		mapObservations(func(obs *tensors.Tensor) ([]*tensors.Tensor, error) {
			cropped, err := augment.CenterCropBatch(obs, outputSize)
			if err != nil {
				return nil, err
			}
			return []*tensors.Tensor{cropped}, nil
		}))
}

// Views returns a Dataset that replaces the observation batch (first input) of each yield of ds by
// n batches of independently augmented views, generated with pipeline.ApplyBatch.
// With n=2 it yields the positive pairs for contrastive learning.
func Views(ds Dataset, pipeline *augment.Pipeline, n int) Dataset {
	return Map(ds, fmt.Sprintf("%s [Views %d]", ds.Name(), n),
		mapObservations(func(obs *tensors.Tensor) ([]*tensors.Tensor, error) {
			if n <= 0 {
				return nil, errors.Wrapf(augment.ErrInvalidConfig, "Views(n=%d): n must be > 0", n)
			}
			views := make([]*tensors.Tensor, n)
			for ii := range views {
				var err error
				views[ii], err = pipeline.ApplyBatch(obs)
				if err != nil {
					return nil, errors.WithMessagef(err, "view #%d", ii)
				}
			}
			return views, nil
		}))
}
