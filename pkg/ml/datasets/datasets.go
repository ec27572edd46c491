// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package datasets is a collection of utility datasets that can be combined to feed augmented
// observation batches to a training loop: `InMemory`, `Take`, `RandomCrop`, `CenterCrop`, `Views`,
// `Parallel`, `Freeing`.
//
// By convention, the first input yielded by a Dataset is the observation batch, shaped
// `[batch_size, channels, height, width]`. The augmentation datasets only transform that first input
// and yield copies of the others (actions, rewards, etc.), so every tensor they yield is owned by the caller.
package datasets

import (
	"fmt"
	"io"
	"sync"

	"github.com/gomlx/imgaug/pkg/core/tensors"
)

// Dataset yields batches of tensors, one epoch at a time.
type Dataset interface {
	// Name identifies the dataset, used for logging.
	Name() string

	// Reset restarts the dataset from the beginning of an epoch.
	Reset()

	// Yield returns the next batch of inputs. At the end of the epoch it returns io.EOF, until Reset is called.
	Yield() (inputs []*tensors.Tensor, err error)
}

// HasShortName is implemented by datasets that provide a short name, used in progress bars and summaries.
type HasShortName interface {
	ShortName() string
}

// ShortName returns the short name of ds if it implements HasShortName, or the first 3 letters of its name.
func ShortName(ds Dataset) string {
	if sn, ok := ds.(HasShortName); ok {
		return sn.ShortName()
	}
	name := ds.Name()
	if len(name) > 3 {
		name = name[:3]
	}
	return name
}

// takeDataset implements a Dataset that only yields `take` batches.
type takeDataset struct {
	ds          Dataset
	mu          sync.Mutex
	count, take int
}

// Take returns a wrapper to `ds`, a Dataset that only yields `n` batches per epoch.
// It is safe for concurrent use if ds is.
func Take(ds Dataset, n int) Dataset {
	return &takeDataset{
		ds:   ds,
		take: n,
	}
}

// Name implements Dataset. It returns the dataset name.
func (ds *takeDataset) Name() string {
	return fmt.Sprintf("%s [Take %d]", ds.ds.Name(), ds.take)
}

// Reset implements Dataset.
func (ds *takeDataset) Reset() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.ds.Reset()
	ds.count = 0
}

// Yield implements Dataset.
func (ds *takeDataset) Yield() (inputs []*tensors.Tensor, err error) {
	ds.mu.Lock()
	if ds.count >= ds.take {
		ds.mu.Unlock()
		err = io.EOF
		return
	}
	ds.count++
	ds.mu.Unlock()
	return ds.ds.Yield()
}
