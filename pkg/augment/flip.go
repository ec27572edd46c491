// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/gomlx/imgaug/pkg/core/tensors/images"
	"github.com/pkg/errors"
)

// HorizontalFlip mirrors the width axis of an image shaped `[channels, height, width]`, or of every image
// of a batch shaped `[batch_size, channels, height, width]`. It works with any dtype.
func HorizontalFlip(img *tensors.Tensor) (*tensors.Tensor, error) {
	if img == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "HorizontalFlip: nil image")
	}
	dims, err := images.GetDims(img, images.ChannelsFirst)
	if err != nil {
		return nil, err
	}
	flipped := tensors.FromShape(img.Shape())
	elemSize := int(img.DType().Memory())
	rowBytes := dims.Width * elemSize
	var dstErr error
	err = img.ConstBytes(func(src []byte) {
		dstErr = flipped.MutableBytes(func(dst []byte) {
			for rowStart := 0; rowStart < len(src); rowStart += rowBytes {
				srcRow, dstRow := src[rowStart:rowStart+rowBytes], dst[rowStart:rowStart+rowBytes]
				for x := range dims.Width {
					mirror := (dims.Width - 1 - x) * elemSize
					copy(dstRow[x*elemSize:(x+1)*elemSize], srcRow[mirror:mirror+elemSize])
				}
			}
		})
	})
	if err == nil {
		err = dstErr
	}
	if err != nil {
		return nil, err
	}
	return flipped, nil
}

// RandomHorizontalFlip flips the image with the given probability. It always returns a new tensor,
// and reports whether the image was flipped.
func RandomHorizontalFlip(img *tensors.Tensor, probability float64, rng Source) (*tensors.Tensor, bool, error) {
	if rng == nil {
		return nil, false, errors.New("RandomHorizontalFlip requires a random Source, got nil")
	}
	if rng.Float64() < probability {
		flipped, err := HorizontalFlip(img)
		return flipped, err == nil, err
	}
	if img == nil {
		return nil, false, errors.Wrap(ErrShapeMismatch, "RandomHorizontalFlip: nil image")
	}
	clone, err := img.Clone()
	return clone, false, err
}
