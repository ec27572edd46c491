// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/gomlx/imgaug/pkg/core/tensors/images"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Offset of the top-left corner of a crop window.
type Offset struct {
	Top, Left int
}

// copyWindow copies the window [top:top+height, left:left+width] of every channel of one
// channels-first image from src to dst, given as raw bytes. Crops don't look at the values,
// so they work with any dtype.
func copyWindow(src, dst []byte, dims images.Dims, elemSize, top, left, height, width int) {
	rowBytes := width * elemSize
	pos := 0
	for c := range dims.Channels {
		for y := top; y < top+height; y++ {
			start := ((c*dims.Height+y)*dims.Width + left) * elemSize
			copy(dst[pos:pos+rowBytes], src[start:start+rowBytes])
			pos += rowBytes
		}
	}
}

// cropBatch crops each image ii of a batch (or the single image, if numImages == 0) at offsets[ii].
func cropBatch(src *tensors.Tensor, numImages int, dims images.Dims, offsets []Offset, height, width int) (*tensors.Tensor, error) {
	dstDims := []int{dims.Channels, height, width}
	if numImages > 0 {
		dstDims = append([]int{numImages}, dstDims...)
	} else {
		numImages = 1
	}
	dst := tensors.FromShape(src.Shape().WithDimensions(dstDims...))
	elemSize := int(src.DType().Memory())
	srcImageBytes := dims.Channels * dims.Height * dims.Width * elemSize
	dstImageBytes := dims.Channels * height * width * elemSize
	var dstErr error
	err := src.ConstBytes(func(srcData []byte) {
		dstErr = dst.MutableBytes(func(dstData []byte) {
			for ii := range numImages {
				copyWindow(srcData[ii*srcImageBytes:(ii+1)*srcImageBytes], dstData[ii*dstImageBytes:(ii+1)*dstImageBytes],
					dims, elemSize, offsets[ii].Top, offsets[ii].Left, height, width)
			}
		})
	})
	if err == nil {
		err = dstErr
	}
	if err != nil {
		return nil, err
	}
	return dst, nil
}

// Crop returns the window `[:, top:top+height, left:left+width]` of the image shaped `[channels, height, width]`.
//
// It returns an error wrapping ErrInvalidCropSize if the window is empty or doesn't fit in the image.
func Crop(img *tensors.Tensor, top, left, height, width int) (*tensors.Tensor, error) {
	dims, err := imageDims(img)
	if err != nil {
		return nil, err
	}
	if height <= 0 || width <= 0 || top < 0 || left < 0 || top+height > dims.Height || left+width > dims.Width {
		return nil, errors.Wrapf(ErrInvalidCropSize, "Crop(top=%d, left=%d, height=%d, width=%d) doesn't fit image %s",
			top, left, height, width, img.Shape())
	}
	return cropBatch(img, 0, dims, []Offset{{Top: top, Left: left}}, height, width)
}

// RandomCrop crops each image of the batch shaped `[batch_size, channels, height, width]` to a random
// window of `outputSize x outputSize` pixels. It's the random shift augmentation used on RL
// observations (e.g. 84x84 frames cropped to 64x64).
//
// The offsets are sampled independently for each image: `top` uniformly in [0, height-outputSize) and
// `left` uniformly in [0, width-outputSize). The input is not modified.
//
// It returns an error wrapping ErrInvalidCropSize unless 0 < outputSize < min(height, width), and
// ErrShapeMismatch if batch is not rank-4.
func RandomCrop(batch *tensors.Tensor, outputSize int, rng Source) (*tensors.Tensor, error) {
	cropped, _, err := RandomCropOffsets(batch, outputSize, rng)
	return cropped, err
}

// RandomCropOffsets is like RandomCrop, but it also returns the offsets sampled for each image, so the
// same crops can be replayed on a paired batch with CropWithOffsets.
func RandomCropOffsets(batch *tensors.Tensor, outputSize int, rng Source) (*tensors.Tensor, []Offset, error) {
	numImages, dims, err := batchDims(batch)
	if err != nil {
		return nil, nil, err
	}
	if rng == nil {
		return nil, nil, errors.New("RandomCrop requires a random Source, got nil")
	}
	if outputSize <= 0 || outputSize >= dims.Height || outputSize >= dims.Width {
		return nil, nil, errors.Wrapf(ErrInvalidCropSize,
			"RandomCrop(outputSize=%d) requires 0 < outputSize < min(height, width) for batch %s",
			outputSize, batch.Shape())
	}
	maxTop, maxLeft := dims.Height-outputSize, dims.Width-outputSize
	offsets := make([]Offset, numImages)
	for ii := range offsets {
		offsets[ii].Top = rng.IntN(maxTop)
		offsets[ii].Left = rng.IntN(maxLeft)
	}
	cropped, err := cropBatch(batch, numImages, dims, offsets, outputSize, outputSize)
	if err != nil {
		return nil, nil, err
	}
	klog.V(3).Infof("RandomCrop: %s -> %s, offsets=%v", batch.Shape(), cropped.Shape(), offsets)
	return cropped, offsets, nil
}

// CropWithOffsets crops each image ii of the batch to the window of `outputSize x outputSize` pixels
// starting at offsets[ii].
func CropWithOffsets(batch *tensors.Tensor, outputSize int, offsets []Offset) (*tensors.Tensor, error) {
	numImages, dims, err := batchDims(batch)
	if err != nil {
		return nil, err
	}
	if len(offsets) != numImages {
		return nil, errors.Wrapf(ErrShapeMismatch, "CropWithOffsets got %d offsets for batch %s", len(offsets), batch.Shape())
	}
	if outputSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidCropSize, "CropWithOffsets(outputSize=%d)", outputSize)
	}
	for ii, offset := range offsets {
		if offset.Top < 0 || offset.Left < 0 || offset.Top+outputSize > dims.Height || offset.Left+outputSize > dims.Width {
			return nil, errors.Wrapf(ErrInvalidCropSize, "offset #%d %+v with outputSize=%d doesn't fit batch %s",
				ii, offset, outputSize, batch.Shape())
		}
	}
	return cropBatch(batch, numImages, dims, offsets, outputSize, outputSize)
}

// centerOffset returns the offset of a centered window of the given size.
func centerOffset(dims images.Dims, height, width int) Offset {
	return Offset{Top: (dims.Height - height) / 2, Left: (dims.Width - width) / 2}
}

// CenterCrop returns the centered `outputSize x outputSize` window of the image shaped
// `[channels, height, width]`. When the margin is odd, the extra pixel goes to the bottom/right.
//
// It's deterministic and idempotent: center-cropping the result to the same size returns an equal tensor.
// It returns an error wrapping ErrInvalidCropSize unless 0 < outputSize <= min(height, width).
func CenterCrop(img *tensors.Tensor, outputSize int) (*tensors.Tensor, error) {
	dims, err := imageDims(img)
	if err != nil {
		return nil, err
	}
	if err := checkCenterCropSize(dims, outputSize); err != nil {
		return nil, errors.WithMessagef(err, "CenterCrop(%s)", img.Shape())
	}
	return cropBatch(img, 0, dims, []Offset{centerOffset(dims, outputSize, outputSize)}, outputSize, outputSize)
}

// CenterCropBatch applies CenterCrop to each image of the batch shaped `[batch_size, channels, height, width]`.
// It's the evaluation counterpart of RandomCrop.
func CenterCropBatch(batch *tensors.Tensor, outputSize int) (*tensors.Tensor, error) {
	numImages, dims, err := batchDims(batch)
	if err != nil {
		return nil, err
	}
	if err := checkCenterCropSize(dims, outputSize); err != nil {
		return nil, errors.WithMessagef(err, "CenterCropBatch(%s)", batch.Shape())
	}
	offsets := make([]Offset, numImages)
	for ii := range offsets {
		offsets[ii] = centerOffset(dims, outputSize, outputSize)
	}
	return cropBatch(batch, numImages, dims, offsets, outputSize, outputSize)
}

func checkCenterCropSize(dims images.Dims, outputSize int) error {
	if outputSize <= 0 || outputSize > dims.Height || outputSize > dims.Width {
		return errors.Wrapf(ErrInvalidCropSize, "center crop size %d must be in [1, %d]",
			outputSize, min(dims.Height, dims.Width))
	}
	return nil
}
