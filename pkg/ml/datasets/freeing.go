// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"io"

	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/pkg/errors"
)

// freeingDataset implements a Dataset that frees the memory of the yielded inputs after each use.
type freeingDataset struct {
	name       string
	ds         Dataset
	prevInputs []*tensors.Tensor
}

// Freeing implements a sequential dataset (it should not be parallelized) that immediately releases the yielded
// inputs in between each `Yield` call, not waiting for garbage collection.
//
// This is useful for datasets that generate large augmented batches (e.g. Views), to prevent more than one of
// them from being alive at the same time, in case garbage collection hasn't run yet.
//
// It works by keeping a reference to previously yielded values and finalizing them before yielding the next one.
// Don't use it on datasets that yield shared tensors, like InMemory without any augmentation.
//
// While you can wrap a parallelized (with [Parallel]) dataset with [Freeing], the other way around will break:
// [Freeing] will free the yielded tensors before they are actually used.
func Freeing(ds Dataset) Dataset {
	return &freeingDataset{
		ds:   ds,
		name: ds.Name(),
	}
}

// freePreviousYield finalizes the tensors returned by the previous [Yield] call.
func (ds *freeingDataset) freePreviousYield() {
	for _, t := range ds.prevInputs {
		t.Finalize()
	}
	ds.prevInputs = nil
}

// Name implements Dataset.
func (ds *freeingDataset) Name() string { return ds.name }

// Yield implements Dataset.
func (ds *freeingDataset) Yield() (inputs []*tensors.Tensor, err error) {
	ds.freePreviousYield()
	inputs, err = ds.ds.Yield()
	if err != nil {
		if err == io.EOF {
			return
		}
		err = errors.WithMessage(err, "dataset failure: notice it is being run with `datasets.Freeing`, which "+
			"frees the yielded inputs in between uses")
		return nil, err
	}
	ds.prevInputs = inputs
	return
}

// Reset implements Dataset.
func (ds *freeingDataset) Reset() {
	ds.freePreviousYield()
	ds.ds.Reset()
}
