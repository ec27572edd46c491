// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/imgaug/pkg/core/shapes"
	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	copy(img.Pix, []uint8{
		1, 2, 3, 255,
		3, 3, 3, 255,
		5, 5, 5, 255,
		10, 10, 10, 255,
		30, 31, 32, 255,
		50, 50, 50, 255})
	return img
}

func testTensorToFromImageImpl[T pixelType](t *testing.T, img *image.NRGBA) {
	dtype := dtypes.FromGenericsType[T]()
	tensor, err := ToTensor(dtype).WithAlpha().Single(img)
	require.NoError(t, err)
	require.NoError(t, tensor.Shape().Check(dtype, 4, 2, 3))
	convertedImg, err := ToImage().Single(tensor)
	require.NoError(t, err)
	require.Equal(t, img.Bounds(), convertedImg.Bounds())
	for y := range 2 {
		for x := range 3 {
			require.Equal(t, img.At(x, y), convertedImg.At(x, y), "dtype=%s, x=%d, y=%d", dtype, x, y)
		}
	}
}

func TestTensorToFromImage(t *testing.T) {
	img := testImage()
	testTensorToFromImageImpl[float32](t, img)
	testTensorToFromImageImpl[float64](t, img)
	testTensorToFromImageImpl[uint8](t, img)
	testTensorToFromImageImpl[int32](t, img)
	testTensorToFromImageImpl[float16.Float16](t, img)
	testTensorToFromImageImpl[bfloat16.BFloat16](t, img)
}

func TestChannelsLayout(t *testing.T) {
	img := testImage()
	first := must.M1(ToTensor(dtypes.Float32).MaxValue(255).Single(img))
	require.NoError(t, first.Shape().Check(dtypes.Float32, 3, 2, 3))
	last := must.M1(ToTensor(dtypes.Float32).MaxValue(255).ChannelsLast().Single(img))
	require.NoError(t, last.Shape().Check(dtypes.Float32, 2, 3, 3))

	firstFlat := tensors.MustCopyFlatData[float32](first)
	lastFlat := tensors.MustCopyFlatData[float32](last)
	// Pixel (x=1, y=1) has color (30, 31, 32).
	for c, want := range []float32{30, 31, 32} {
		assert.InDelta(t, want, firstFlat[c*6+1*3+1], 1e-3)
		assert.InDelta(t, want, lastFlat[(1*3+1)*3+c], 1e-3)
	}

	back := must.M1(ToImage().MaxValue(255).ChannelsLast().Single(last))
	assert.Equal(t, img.At(1, 1), back.At(1, 1))
}

func TestBatch(t *testing.T) {
	img := testImage()
	batch, err := ToTensor(dtypes.Float32).Batch([]image.Image{img, img})
	require.NoError(t, err)
	require.NoError(t, batch.Shape().Check(dtypes.Float32, 2, 3, 2, 3))
	imgs, err := ToImage().Batch(batch)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, color.NRGBA{R: 30, G: 31, B: 32, A: 255}, imgs[1].At(1, 1))

	other := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	_, err = ToTensor(dtypes.Float32).Batch([]image.Image{img, other})
	require.Error(t, err)

	_, err = ToImage().Single(batch)
	require.True(t, errors.Is(err, tensors.ErrShapeMismatch))
}

func TestGrayscale(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(1, 0, color.NRGBA{A: 255})
	gray := must.M1(ToTensor(dtypes.Float32).Grayscale().Single(img))
	require.NoError(t, gray.Shape().Check(dtypes.Float32, 1, 1, 2))
	assert.InDeltaSlice(t, []float32{1, 0}, tensors.MustCopyFlatData[float32](gray), 1e-4)
}

func TestGetDims(t *testing.T) {
	dims, err := GetDims(shapes.Make(dtypes.Float32, 4, 3, 84, 96), ChannelsFirst)
	require.NoError(t, err)
	assert.Equal(t, Dims{Channels: 3, Height: 84, Width: 96}, dims)
	dims, err = GetDims(shapes.Make(dtypes.Float32, 84, 96, 3), ChannelsLast)
	require.NoError(t, err)
	assert.Equal(t, Dims{Channels: 3, Height: 84, Width: 96}, dims)
	_, err = GetDims(shapes.Make(dtypes.Float32, 84, 96), ChannelsFirst)
	require.Error(t, err)
}

func TestUnsupportedDType(t *testing.T) {
	_, err := ToTensor(dtypes.Complex64).Single(testImage())
	require.Error(t, err)
}
