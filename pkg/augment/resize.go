// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"math"

	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/gomlx/imgaug/pkg/core/tensors/images"
	"github.com/pkg/errors"
)

// ResizeConfig is created with Resize, and can be further configured. Call Done to execute it.
type ResizeConfig struct {
	img           *tensors.Tensor
	height, width int
	bilinear      bool
	alignCorner   bool
}

// Resize returns a configuration to resize the image shaped `[channels, height, width]` (or a batch shaped
// `[batch_size, channels, height, width]`) to the given spatial dimensions.
//
// By default, it uses nearest-neighbor interpolation with half-pixel centers. Use Bilinear to change
// the interpolation and AlignCorner to change how output pixels are mapped to input pixels.
// Call Done to get the resized tensor.
func Resize(img *tensors.Tensor, height, width int) *ResizeConfig {
	return &ResizeConfig{img: img, height: height, width: width}
}

// Bilinear configures the resize to use bilinear interpolation.
func (c *ResizeConfig) Bilinear() *ResizeConfig {
	c.bilinear = true
	return c
}

// Nearest configures the resize to use nearest-neighbor interpolation. This is the default.
func (c *ResizeConfig) Nearest() *ResizeConfig {
	c.bilinear = false
	return c
}

// AlignCorner configures whether the corner pixels of the input and output are aligned.
// If false (the default), pixels are treated as squares and their centers are mapped
// with half-pixel offsets, which doesn't shift the image when resizing.
func (c *ResizeConfig) AlignCorner(alignCorner bool) *ResizeConfig {
	c.alignCorner = alignCorner
	return c
}

// Done executes the resize and returns a new tensor.
func (c *ResizeConfig) Done() (*tensors.Tensor, error) {
	if c.img == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "Resize: nil image")
	}
	if c.img.Rank() != 3 && c.img.Rank() != 4 {
		return nil, errors.Wrapf(ErrShapeMismatch, "Resize requires an image or a batch of images, got %s", c.img.Shape())
	}
	if c.height <= 0 || c.width <= 0 {
		return nil, errors.Wrapf(ErrInvalidCropSize, "Resize to %dx%d", c.height, c.width)
	}
	if err := checkFloat(c.img, "Resize"); err != nil {
		return nil, err
	}
	dims, err := images.GetDims(c.img, images.ChannelsFirst)
	if err != nil {
		return nil, err
	}
	numPlanes := dims.Channels
	outDims := []int{dims.Channels, c.height, c.width}
	if c.img.Rank() == 4 {
		numPlanes *= c.img.Shape().Dim(0)
		outDims = append([]int{c.img.Shape().Dim(0)}, outDims...)
	}
	ys := c.samplePositions(dims.Height, c.height)
	xs := c.samplePositions(dims.Width, c.width)
	return mapFloatImage(c.img, outDims, func(src, dst any) {
		switch srcFlat := src.(type) {
		case []float32:
			resizePlanes(srcFlat, dst.([]float32), numPlanes, dims, ys, xs)
		case []float64:
			resizePlanes(srcFlat, dst.([]float64), numPlanes, dims, ys, xs)
		}
	})
}

// samplePosition holds for one output coordinate the two input coordinates to interpolate, and
// the weight of the second one. For nearest interpolation, i0 == i1 and frac == 0.
type samplePosition struct {
	i0, i1 int
	frac   float64
}

// samplePositions maps each of the outSize output coordinates to the input axis of size inSize.
func (c *ResizeConfig) samplePositions(inSize, outSize int) []samplePosition {
	positions := make([]samplePosition, outSize)
	scale := float64(inSize) / float64(outSize)
	for ii := range positions {
		var src float64
		if c.alignCorner {
			if outSize > 1 {
				src = float64(ii) * float64(inSize-1) / float64(outSize-1)
			}
		} else {
			src = (float64(ii)+0.5)*scale - 0.5
		}
		src = max(0, min(float64(inSize-1), src))
		if !c.bilinear {
			idx := int(math.Round(src))
			if !c.alignCorner {
				// Half-pixel nearest: the input pixel whose area contains the output pixel center.
				idx = min(inSize-1, int(math.Floor((float64(ii)+0.5)*scale)))
			}
			positions[ii] = samplePosition{i0: idx, i1: idx}
			continue
		}
		i0 := int(math.Floor(src))
		i1 := min(i0+1, inSize-1)
		positions[ii] = samplePosition{i0: i0, i1: i1, frac: src - float64(i0)}
	}
	return positions
}

// resizePlanes interpolates each of the numPlanes planes of src into dst.
func resizePlanes[T float](src, dst []T, numPlanes int, dims images.Dims, ys, xs []samplePosition) {
	inPlane := dims.Height * dims.Width
	outHeight, outWidth := len(ys), len(xs)
	outPlane := outHeight * outWidth
	for p := range numPlanes {
		in := src[p*inPlane : (p+1)*inPlane]
		out := dst[p*outPlane : (p+1)*outPlane]
		for y, py := range ys {
			row0 := in[py.i0*dims.Width : (py.i0+1)*dims.Width]
			row1 := in[py.i1*dims.Width : (py.i1+1)*dims.Width]
			for x, px := range xs {
				top := float64(row0[px.i0])*(1-px.frac) + float64(row0[px.i1])*px.frac
				bottom := float64(row1[px.i0])*(1-px.frac) + float64(row1[px.i1])*px.frac
				out[y*outWidth+x] = T(top*(1-py.frac) + bottom*py.frac)
			}
		}
	}
}
