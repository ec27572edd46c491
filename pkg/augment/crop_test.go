// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/imgaug/pkg/core/shapes"
	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// iotaBatch returns a batch where each value encodes its position: b*1e6 + c*1e4 + y*100 + x.
func iotaBatch(batchSize, channels, height, width int) *tensors.Tensor {
	data := make([]float32, 0, batchSize*channels*height*width)
	for b := range batchSize {
		for c := range channels {
			for y := range height {
				for x := range width {
					data = append(data, float32(b*1_000_000+c*10_000+y*100+x))
				}
			}
		}
	}
	return tensors.FromFlatDataAndDimensions(data, batchSize, channels, height, width)
}

// iotaImage returns a single image where each value encodes its position: c*1e4 + y*100 + x.
func iotaImage(channels, height, width int) *tensors.Tensor {
	parts := must.M1(tensors.Unstack(iotaBatch(1, channels, height, width)))
	return parts[0]
}

func TestRandomCrop(t *testing.T) {
	batch := iotaBatch(4, 3, 84, 84)
	before := must.M1(batch.Clone())
	cropped, offsets, err := RandomCropOffsets(batch, 68, NewSource(42))
	require.NoError(t, err)
	require.NoError(t, cropped.Shape().Check(dtypes.Float32, 4, 3, 68, 68))
	require.Len(t, offsets, 4)

	flat := tensors.MustCopyFlatData[float32](cropped)
	for b, offset := range offsets {
		require.GreaterOrEqual(t, offset.Top, 0)
		require.Less(t, offset.Top, 16)
		require.GreaterOrEqual(t, offset.Left, 0)
		require.Less(t, offset.Left, 16)
		for _, c := range []int{0, 2} {
			for _, y := range []int{0, 33, 67} {
				for _, x := range []int{0, 50, 67} {
					got := flat[((b*3+c)*68+y)*68+x]
					want := float32(b*1_000_000 + c*10_000 + (y+offset.Top)*100 + (x + offset.Left))
					require.Equal(t, want, got, "b=%d, c=%d, y=%d, x=%d, offset=%+v", b, c, y, x, offset)
				}
			}
		}
	}
	assert.True(t, batch.Equal(before), "input batch must not be modified")
}

func TestRandomCropDeterministic(t *testing.T) {
	batch := iotaBatch(8, 1, 20, 30)
	c0, offsets0 := must.M2(RandomCropOffsets(batch, 10, NewSource(7)))
	c1, offsets1 := must.M2(RandomCropOffsets(batch, 10, NewSource(7)))
	assert.Equal(t, offsets0, offsets1)
	assert.True(t, c0.Equal(c1))

	// Offsets cover the expected ranges: top in [0, 10), left in [0, 20).
	rng := NewSource(1)
	seenTop, seenLeft := make(map[int]bool), make(map[int]bool)
	for range 100 {
		_, offsets := must.M2(RandomCropOffsets(batch, 10, rng))
		for _, o := range offsets {
			require.True(t, o.Top >= 0 && o.Top < 10)
			require.True(t, o.Left >= 0 && o.Left < 20)
			seenTop[o.Top], seenLeft[o.Left] = true, true
		}
	}
	assert.Len(t, seenTop, 10)
	assert.Len(t, seenLeft, 20)
}

func TestRandomCropErrors(t *testing.T) {
	batch := iotaBatch(2, 3, 84, 84)
	for _, size := range []int{84, 85, 0, -1} {
		_, err := RandomCrop(batch, size, NewSource(0))
		require.Error(t, err, "size=%d", size)
		assert.True(t, errors.Is(err, ErrInvalidCropSize), "size=%d", size)
	}

	// Non-square: must be smaller than both height and width.
	_, err := RandomCrop(iotaBatch(1, 1, 10, 20), 10, NewSource(0))
	assert.True(t, errors.Is(err, ErrInvalidCropSize))
	_, err = RandomCrop(iotaBatch(1, 1, 10, 20), 9, NewSource(0))
	assert.NoError(t, err)

	_, err = RandomCrop(iotaImage(3, 84, 84), 64, NewSource(0))
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = RandomCrop(nil, 64, NewSource(0))
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = RandomCrop(batch, 64, nil)
	assert.Error(t, err)
}

func TestCropWithOffsets(t *testing.T) {
	obs := iotaBatch(3, 2, 12, 12)
	nextObs := must.M1(obs.Clone())
	cropped, offsets := must.M2(RandomCropOffsets(obs, 8, NewSource(3)))
	replayed := must.M1(CropWithOffsets(nextObs, 8, offsets))
	assert.True(t, cropped.Equal(replayed))

	_, err := CropWithOffsets(obs, 8, offsets[:2])
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	_, err = CropWithOffsets(obs, 8, []Offset{{0, 0}, {0, 0}, {5, 0}})
	assert.True(t, errors.Is(err, ErrInvalidCropSize))
}

func TestCenterCrop(t *testing.T) {
	img := iotaImage(3, 100, 100)
	cropped, err := CenterCrop(img, 50)
	require.NoError(t, err)
	require.NoError(t, cropped.Shape().Check(dtypes.Float32, 3, 50, 50))

	// Must be exactly img[:, 25:75, 25:75].
	flat := tensors.MustCopyFlatData[float32](cropped)
	for c := range 3 {
		for y := range 50 {
			for x := range 50 {
				require.Equal(t, float32(c*10_000+(y+25)*100+(x+25)), flat[(c*50+y)*50+x])
			}
		}
	}

	// Deterministic and idempotent.
	again := must.M1(CenterCrop(img, 50))
	assert.True(t, cropped.Equal(again))
	twice := must.M1(CenterCrop(cropped, 50))
	assert.True(t, cropped.Equal(twice))

	// Full size crop returns a copy of the image.
	full := must.M1(CenterCrop(img, 100))
	assert.True(t, img.Equal(full))
	assert.NotSame(t, img, full)
}

func TestCenterCropOddMargin(t *testing.T) {
	img := iotaImage(1, 5, 7)
	cropped := must.M1(CenterCrop(img, 2))
	// top = (5-2)/2 = 1, left = (7-2)/2 = 2.
	assert.Equal(t, []float32{102, 103, 202, 203}, tensors.MustCopyFlatData[float32](cropped))
}

func TestCenterCropErrors(t *testing.T) {
	img := iotaImage(3, 10, 20)
	for _, size := range []int{0, -5, 11, 21} {
		_, err := CenterCrop(img, size)
		assert.True(t, errors.Is(err, ErrInvalidCropSize), "size=%d", size)
	}
	_, err := CenterCrop(iotaBatch(2, 3, 10, 10), 5)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestCenterCropBatch(t *testing.T) {
	batch := iotaBatch(3, 2, 10, 10)
	cropped := must.M1(CenterCropBatch(batch, 4))
	require.NoError(t, cropped.Shape().CheckDims(3, 2, 4, 4))
	parts := must.M1(tensors.Unstack(batch))
	croppedParts := must.M1(tensors.Unstack(cropped))
	for ii, part := range parts {
		assert.True(t, must.M1(CenterCrop(part, 4)).Equal(croppedParts[ii]))
	}
	_, err := CenterCropBatch(batch, 11)
	assert.True(t, errors.Is(err, ErrInvalidCropSize))
}

func TestCropAnyDType(t *testing.T) {
	data := make([]uint8, 2*6*6)
	for ii := range data {
		data[ii] = uint8(ii)
	}
	batch := tensors.FromFlatDataAndDimensions(data, 1, 2, 6, 6)
	cropped := must.M1(CenterCropBatch(batch, 2))
	require.NoError(t, cropped.Shape().Check(dtypes.Uint8, 1, 2, 2, 2))
	assert.Equal(t, []uint8{14, 15, 20, 21, 50, 51, 56, 57}, tensors.MustCopyFlatData[uint8](cropped))
}

func TestCrop(t *testing.T) {
	img := iotaImage(1, 4, 5)
	cropped := must.M1(Crop(img, 1, 2, 2, 3))
	assert.Equal(t, []float32{102, 103, 104, 202, 203, 204}, tensors.MustCopyFlatData[float32](cropped))
	_, err := Crop(img, 3, 0, 2, 2)
	assert.True(t, errors.Is(err, ErrInvalidCropSize))
	_, err = Crop(img, 0, 0, 0, 2)
	assert.True(t, errors.Is(err, ErrInvalidCropSize))
	_, err = Crop(tensors.FromShape(shapes.Make(dtypes.Float32, 4, 5)), 0, 0, 1, 1)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}
