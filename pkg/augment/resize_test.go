// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResizeIdentity(t *testing.T) {
	img := iotaImage(2, 7, 9)
	for _, bilinear := range []bool{false, true} {
		config := Resize(img, 7, 9)
		if bilinear {
			config.Bilinear()
		}
		resized, err := config.Done()
		require.NoError(t, err)
		assert.True(t, img.Equal(resized), "bilinear=%v", bilinear)
		assert.NotSame(t, img, resized)
	}
}

func TestResizeNearest(t *testing.T) {
	img := tensors.FromFlatDataAndDimensions([]float32{10, 11, 12, 13}, 1, 1, 4)
	down := must.M1(Resize(img, 1, 2).Done())
	assert.Equal(t, []float32{11, 13}, tensors.MustCopyFlatData[float32](down))

	img = tensors.FromFlatDataAndDimensions([]float32{1, 2}, 1, 1, 2)
	up := must.M1(Resize(img, 2, 4).Nearest().Done())
	assert.Equal(t, []float32{1, 1, 2, 2, 1, 1, 2, 2}, tensors.MustCopyFlatData[float32](up))
}

func TestResizeBilinear(t *testing.T) {
	// Half-pixel centers: output x maps to input (x+0.5)*0.5-0.5, clamped to the border.
	img := tensors.FromFlatDataAndDimensions([]float64{0, 1}, 1, 1, 2)
	resized := must.M1(Resize(img, 1, 4).Bilinear().Done())
	assert.InDeltaSlice(t, []float64{0, 0.25, 0.75, 1}, tensors.MustCopyFlatData[float64](resized), 1e-12)

	// Aligned corners: output x maps to input x*(in-1)/(out-1).
	img = tensors.FromFlatDataAndDimensions([]float64{0, 3}, 1, 1, 2)
	resized = must.M1(Resize(img, 1, 4).Bilinear().AlignCorner(true).Done())
	assert.InDeltaSlice(t, []float64{0, 1, 2, 3}, tensors.MustCopyFlatData[float64](resized), 1e-12)

	// 2D: the center of a 2x2 image downsampled to 1x1 is the mean.
	img = tensors.FromFlatDataAndDimensions([]float32{0, 1, 2, 3}, 1, 2, 2)
	resized = must.M1(Resize(img, 1, 1).Bilinear().Done())
	assert.InDeltaSlice(t, []float32{1.5}, tensors.MustCopyFlatData[float32](resized), 1e-6)
}

func TestResizeBatch(t *testing.T) {
	batch := iotaBatch(3, 2, 8, 6)
	resized := must.M1(Resize(batch, 4, 5).Bilinear().Done())
	require.NoError(t, resized.Shape().Check(dtypes.Float32, 3, 2, 4, 5))
	parts := must.M1(tensors.Unstack(batch))
	resizedParts := must.M1(tensors.Unstack(resized))
	for ii, part := range parts {
		want := must.M1(Resize(part, 4, 5).Bilinear().Done())
		assert.True(t, want.Equal(resizedParts[ii]), "image #%d", ii)
	}
}

func TestResizeErrors(t *testing.T) {
	_, err := Resize(iotaImage(1, 4, 4), 0, 2).Done()
	assert.True(t, errors.Is(err, ErrInvalidCropSize))
	_, err = Resize(tensors.FromScalarAndDimensions(uint8(1), 1, 4, 4), 2, 2).Done()
	assert.True(t, errors.Is(err, ErrUnsupportedDType))
	_, err = Resize(tensors.FromScalarAndDimensions(float32(1), 4, 4), 2, 2).Done()
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	_, err = Resize(nil, 2, 2).Done()
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}
