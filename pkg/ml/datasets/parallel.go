// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"io"
	"runtime"
	"sync"

	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/gomlx/imgaug/pkg/support/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ParallelDataset is a wrapper around a Dataset that parallelizes calls to Yield.
// See details in CustomParallel.
type ParallelDataset struct {
	Dataset Dataset

	// name is set by default to the underlying dataset name.
	name, shortName string

	// parallelism is the number of goroutines started generating batches.
	parallelism int

	// extraBufferSize is the size of the buffer of pre-generated batches.
	extraBufferSize int

	// impl is the actual implementation.
	impl *parallelDatasetImpl

	// keepAlive is used only to keep ParallelDataset alive in the middle of long calls.
	keepAlive int64
}

// parallelDatasetImpl separates the implementation of ParallelDataset. It's important
// that it doesn't point back to the original ParallelDataset, so garbage collecting
// will also stop the goroutines.
type parallelDatasetImpl struct {
	config ParallelDataset // A copy of the configuration.

	err   error
	muErr sync.Mutex

	buffer                                chan []*tensors.Tensor
	epochFinished, stopEpoch, stopDataset chan struct{}
	stopDatasetOnce                       sync.Once
	stopEpochFn                           func()

	// workersDone is triggered when the goroutines of the current epoch have all exited.
	workersDone *xsync.Latch
}

// Parallel parallelizes yield calls of any thread-safe Dataset (the augmentation datasets are, if the
// wrapped dataset is).
//
// It uses CustomParallel and automatically starts it with the default parameters.
//
// To avoid leaking goroutines, call ParallelDataset.Done when exiting.
//
// The order of the yields is not preserved.
//
// Example:
//
//	ds := datasets.RandomCrop(datasets.InMemory("replay", batches...), 84, seed)
//	pds := datasets.Parallel(ds)
//	defer pds.Done()
//	MyTrainFunc(pds)
func Parallel(ds Dataset) *ParallelDataset {
	pds := CustomParallel(ds)
	return pds.Buffer(pds.parallelism).Start()
}

// CustomParallel builds a ParallelDataset that can be used to parallelize any
// Dataset, as long as the underlying dataset ds is thread-safe.
//
// ParallelDataset can be further configured (see Parallelism and Buffer),
// and then one has to call Start before actually using the Dataset.
//
// To avoid leaking goroutines, call ParallelDataset.Done when exiting.
func CustomParallel(ds Dataset) *ParallelDataset {
	pd := &ParallelDataset{
		name:      ds.Name(),
		shortName: ShortName(ds),
		Dataset:   ds,
	}
	pd.Parallelism(0) // 0 here means it will take the number of cores available.
	return pd
}

// Parallelism is the number of goroutines to start, each calling `ds.Yield()` in parallel
// to accelerate the generation of batches. If set to 0 (the default), it will use the
// number of cores in the system plus 1.
//
// This must be called before a call to Start.
//
// It returns the updated ParallelDataset, so calls can be cascaded.
func (pd *ParallelDataset) Parallelism(n int) *ParallelDataset {
	if pd.impl != nil {
		klog.Errorf("ParallelDataset invalid configuration change after Start has been called.")
		return nil
	}
	if n == 0 {
		n = runtime.NumCPU() + 1
	}
	pd.parallelism = n
	return pd
}

// WithName sets the name of the parallel dataset, and optionally its short name.
// It defaults to the original dataset name.
//
// It returns the updated ParallelDataset, so calls can be cascaded.
func (pd *ParallelDataset) WithName(name string, shortName ...string) *ParallelDataset {
	pd.name = name
	if len(shortName) > 0 {
		pd.shortName = shortName[0]
	}
	return pd
}

// Buffer reserved in the channel that collects the parallel yields.
// Notice there is already an intrinsic buffering that happens in the goroutines sampling
// in parallel.
//
// This must be called before a call to Start.
//
// It returns the updated ParallelDataset, so calls can be cascaded.
func (pd *ParallelDataset) Buffer(n int) *ParallelDataset {
	if pd.impl != nil {
		klog.Errorf("ParallelDataset invalid configuration change after Start has been called.")
		return nil
	}
	pd.extraBufferSize = n
	return pd
}

// Start indicates that the dataset is finished to be configured, and starts
// being a valid Dataset.
//
// After Start its configuration can no longer be changed.
//
// It returns the updated ParallelDataset, so calls can be cascaded.
func (pd *ParallelDataset) Start() *ParallelDataset {
	if pd.impl != nil {
		klog.Errorf("ParallelDataset.Start called more than once!?")
		return nil
	}
	impl := &parallelDatasetImpl{
		buffer:      make(chan []*tensors.Tensor, pd.extraBufferSize),
		stopDataset: make(chan struct{}),
		config:      *pd, // Copy.
	}
	pd.impl = impl
	// If the ParallelDataset is garbage collected, stop all parallel goroutines.
	runtime.SetFinalizer(pd, func(pd *ParallelDataset) {
		if pd.impl != nil {
			pd.impl.stop()
			pd.impl = nil
		}
	})

	// Start goroutines
	impl.startGoRoutines()
	return pd
}

// stop closes stopDataset, if not yet closed.
func (impl *parallelDatasetImpl) stop() {
	impl.stopDatasetOnce.Do(func() { close(impl.stopDataset) })
}

func (impl *parallelDatasetImpl) startGoRoutines() {
	impl.epochFinished = make(chan struct{})
	impl.stopEpoch = make(chan struct{})
	impl.workersDone = xsync.NewLatch()
	stopEpoch := impl.stopEpoch
	var stopEpochOnce sync.Once
	stopEpochFn := func() { stopEpochOnce.Do(func() { close(stopEpoch) }) }
	impl.stopEpochFn = stopEpochFn
	var wg sync.WaitGroup
	for range impl.config.parallelism {
		// Start all goroutines.
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stopEpoch:
					return
				case <-impl.stopDataset:
					return
				default:
					// Move forward and generate the next batch.
				}
				inputs, err := impl.config.Dataset.Yield()
				if err == io.EOF {
					return
				}
				if err != nil {
					klog.Errorf("ParallelDataset %q: %+v", impl.config.name, err)
					// Fatal error, stop everything.
					impl.muErr.Lock()
					if impl.err == nil {
						impl.err = err
					}
					impl.muErr.Unlock()
					stopEpochFn()
					impl.stop()
					return
				}
				select {
				case <-stopEpoch:
					return
				case <-impl.stopDataset:
					return
				case impl.buffer <- inputs:
					// Batch generated and cached, move to next.
					continue
				}
			}
		}()
	}

	// Start the controller job.
	epochFinished, workersDone := impl.epochFinished, impl.workersDone
	go func() {
		wg.Wait()
		defer workersDone.Trigger()
		select {
		case <-impl.stopDataset:
			return
		default:
			//
		}
		close(epochFinished)
	}()
}

// Name implements Dataset.
func (pd *ParallelDataset) Name() string {
	return pd.name
}

// ShortName returns a short version of the dataset name, it implements HasShortName.
func (pd *ParallelDataset) ShortName() string {
	return pd.shortName
}

// Done stops all the parallel goroutines and waits for them to finish.
func (pd *ParallelDataset) Done() {
	if pd.impl != nil {
		impl := pd.impl
		impl.stop()
		pd.impl = nil
		impl.workersDone.Wait()
	}
}

// Reset implements Dataset.
func (pd *ParallelDataset) Reset() {
	impl := pd.impl
	if impl == nil {
		klog.Warningf("ParallelDataset.Reset was called before it was started with ParallelDataset.Start or after ParallelDataset.Done")
		return
	}

	// Indicate to the goroutines to stop generating data, and drain whatever is still in the buffer.
	impl.stopEpochFn()
drainDataset:
	for {
		select {
		case <-impl.stopDataset:
			// Return immediately, do nothing.
			return
		case <-impl.epochFinished:
			// All finished, we can move on.
			break drainDataset
		case <-impl.buffer:
			// Discard remaining entries that were in the buffer.
		}
	}
	// Discard entries buffered after the last drain iteration.
	for len(impl.buffer) > 0 {
		<-impl.buffer
	}

	// Reset underlying dataset and start again.
	impl.config.Dataset.Reset()
	impl.startGoRoutines()

	// This no-op prevents `pd` from being garbage collected and the goroutines killed in the middle
	// of the Reset operation. Leave this at the end.
	pd.keepAlive++
}

// Yield implements Dataset.
func (pd *ParallelDataset) Yield() (inputs []*tensors.Tensor, err error) {
	impl := pd.impl
	if impl == nil {
		err = errors.Errorf("ParallelDataset.Yield was called before it was started with ParallelDataset.Start or after it was stopped with ParallelDataset.Done")
		return
	}
	select {
	case <-impl.stopDataset:
		// An error occurred, dataset is closed.
		impl.muErr.Lock()
		err = impl.err
		impl.muErr.Unlock()
		if err == nil {
			err = errors.Errorf("ParallelDataset %q was stopped", pd.name)
		}
		return
	case inputs = <-impl.buffer:
		// We got a new batch
	case <-impl.epochFinished:
		// No more records being produced (until Reset() is called), but we still need to exhaust the buffer.
		select {
		case inputs = <-impl.buffer:
			// We got a new batch, simply continue.
		default:
			// Generation exhausted, and no more records in buffer.
			err = io.EOF
			return
		}
	}

	// This no-op prevents `pd` from being garbage collected and the goroutines killed in the middle
	// of the Yield operation. Leave this at the end.
	pd.keepAlive++
	return
}
