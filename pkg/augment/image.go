// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/imgaug/internal/workerspool"
	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/gomlx/imgaug/pkg/core/tensors/images"
	"github.com/pkg/errors"
)

// float is the set of dtypes supported by the filtering augmentations (blur, resize, color jitter).
type float interface {
	float32 | float64
}

// imageDims returns the dimensions of a single channels-first image `[channels, height, width]`.
func imageDims(img *tensors.Tensor) (images.Dims, error) {
	if img == nil {
		return images.Dims{}, errors.Wrap(ErrShapeMismatch, "nil image")
	}
	if img.Rank() != 3 {
		return images.Dims{}, errors.Wrapf(ErrShapeMismatch, "expected image shaped [channels, height, width], got %s", img.Shape())
	}
	return images.GetDims(img, images.ChannelsFirst)
}

// batchDims returns the batch size and the dimensions of each image of a channels-first batch
// `[batch_size, channels, height, width]`.
func batchDims(batch *tensors.Tensor) (int, images.Dims, error) {
	if batch == nil {
		return 0, images.Dims{}, errors.Wrap(ErrShapeMismatch, "nil batch")
	}
	if batch.Rank() != 4 {
		return 0, images.Dims{}, errors.Wrapf(ErrShapeMismatch,
			"expected batch shaped [batch_size, channels, height, width], got %s", batch.Shape())
	}
	dims, err := images.GetDims(batch, images.ChannelsFirst)
	return batch.Shape().Dim(0), dims, err
}

// checkFloat returns ErrUnsupportedDType if t is not Float32 or Float64.
func checkFloat(t *tensors.Tensor, opName string) error {
	switch t.DType() {
	case dtypes.Float32, dtypes.Float64:
		return nil
	default:
		return errors.Wrapf(ErrUnsupportedDType, "%s requires a Float32 or Float64 tensor, got %s", opName, t.Shape())
	}
}

// mapFloatImage allocates a tensor of the given shape and dtype of src, and calls fn with the
// flat data of both. src must be Float32 or Float64.
//
// Panics raised with exceptions.Panicf by the tensors package are returned as errors.
func mapFloatImage(src *tensors.Tensor, dstDims []int, fn func(src, dst any)) (dst *tensors.Tensor, err error) {
	err = exceptions.TryCatch[error](func() {
		dst = tensors.FromShape(src.Shape().WithDimensions(dstDims...))
		src.MustConstFlatData(func(srcFlat any) {
			dst.MustMutableFlatData(func(dstFlat any) {
				fn(srcFlat, dstFlat)
			})
		})
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "mapping image %s", src.Shape())
	}
	return dst, nil
}

// forEachImage applies fn to each image of the batch, using the default workers pool, and stacks the results.
// fn must not depend on the order of execution.
func forEachImage(batch *tensors.Tensor, fn func(ii int, img *tensors.Tensor) (*tensors.Tensor, error)) (*tensors.Tensor, error) {
	parts, err := tensors.Unstack(batch)
	if err != nil {
		return nil, err
	}
	results := make([]*tensors.Tensor, len(parts))
	err = workerspool.Default().Map(len(parts), func(ii int) error {
		var err error
		results[ii], err = fn(ii, parts[ii])
		if err != nil {
			return errors.WithMessagef(err, "image #%d of batch", ii)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tensors.Stack(results)
}
