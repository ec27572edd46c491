// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"slices"
	"testing"

	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rgbPixel returns a 1x1 RGB image.
func rgbPixel(r, g, b float64) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions([]float64{r, g, b}, 3, 1, 1)
}

func TestNewColorJitter(t *testing.T) {
	for _, tc := range [][4]float64{{-0.1, 0, 0, 0}, {0, -1, 0, 0}, {0, 0, -1, 0}, {0, 0, 0, -0.1}, {0, 0, 0, 0.6}} {
		_, err := NewColorJitter(tc[0], tc[1], tc[2], tc[3])
		assert.True(t, errors.Is(err, ErrInvalidConfig), "factors=%v", tc)
	}
	_, err := NewColorJitter(0.8, 0.8, 0.8, 0.5)
	assert.NoError(t, err)
}

func TestColorJitterIdentity(t *testing.T) {
	jitter := must.M1(NewColorJitter(0.4, 0.4, 0.4, 0.1))
	img := rgbPixel(0.9, 0.2, 0.1)
	out := must.M1(jitter.ApplyWithFactors(img, IdentityJitterFactors()))
	assert.True(t, img.Equal(out))
}

func TestColorJitterBrightness(t *testing.T) {
	jitter := must.M1(NewColorJitter(1, 0, 0, 0))
	factors := IdentityJitterFactors()
	factors.Brightness = 0.5
	out := must.M1(jitter.ApplyWithFactors(rgbPixel(0.4, 0.8, 1.0), factors))
	assert.InDeltaSlice(t, []float64{0.2, 0.4, 0.5}, tensors.MustCopyFlatData[float64](out), 1e-12)

	// Results are clipped.
	factors.Brightness = 2
	out = must.M1(jitter.ApplyWithFactors(rgbPixel(0.4, 0.8, 0), factors))
	assert.InDeltaSlice(t, []float64{0.8, 1, 0}, tensors.MustCopyFlatData[float64](out), 1e-12)

	// Brightness alone works on any number of channels, and respects the max value.
	gray := tensors.FromFlatDataAndDimensions([]float32{200, 100}, 1, 1, 2)
	factors.Brightness = 0.5
	out = must.M1(jitter.WithMaxValue(255).ApplyWithFactors(gray, factors))
	assert.InDeltaSlice(t, []float32{100, 50}, tensors.MustCopyFlatData[float32](out), 1e-3)
}

func TestColorJitterContrast(t *testing.T) {
	jitter := must.M1(NewColorJitter(0, 1, 0, 0))
	factors := IdentityJitterFactors()
	factors.Contrast = 0
	img := tensors.FromFlatDataAndDimensions([]float64{
		1, 0, // Red
		0, 1, // Green
		0, 0, // Blue
	}, 3, 1, 2)
	out := must.M1(jitter.ApplyWithFactors(img, factors))
	mean := (0.299 + 0.587) / 2
	assert.InDeltaSlice(t, []float64{mean, mean, mean, mean, mean, mean}, tensors.MustCopyFlatData[float64](out), 1e-12)
}

func TestColorJitterSaturation(t *testing.T) {
	jitter := must.M1(NewColorJitter(0, 0, 1, 0))
	factors := IdentityJitterFactors()
	factors.Saturation = 0
	out := must.M1(jitter.ApplyWithFactors(rgbPixel(0.9, 0.2, 0.1), factors))
	gray := 0.299*0.9 + 0.587*0.2 + 0.114*0.1
	assert.InDeltaSlice(t, []float64{gray, gray, gray}, tensors.MustCopyFlatData[float64](out), 1e-12)
}

func TestColorJitterHue(t *testing.T) {
	jitter := must.M1(NewColorJitter(0, 0, 0, 0.5))
	factors := IdentityJitterFactors()
	factors.Hue = 1.0 / 3.0
	out := must.M1(jitter.ApplyWithFactors(rgbPixel(1, 0, 0), factors))
	assert.InDeltaSlice(t, []float64{0, 1, 0}, tensors.MustCopyFlatData[float64](out), 1e-9)

	factors.Hue = -1.0 / 3.0
	out = must.M1(jitter.ApplyWithFactors(rgbPixel(1, 0, 0), factors))
	assert.InDeltaSlice(t, []float64{0, 0, 1}, tensors.MustCopyFlatData[float64](out), 1e-9)

	// Gray pixels have no hue.
	out = must.M1(jitter.ApplyWithFactors(rgbPixel(0.5, 0.5, 0.5), factors))
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0.5}, tensors.MustCopyFlatData[float64](out), 1e-9)
}

func TestColorJitterSampleFactors(t *testing.T) {
	jitter := must.M1(NewColorJitter(0.8, 0, 0.3, 0.2))
	rng := NewSource(3)
	for range 200 {
		factors := jitter.SampleFactors(rng)
		order := slices.Clone(factors.Order)
		slices.Sort(order)
		require.Equal(t, []int{0, 1, 2, 3}, order)
		require.True(t, factors.Brightness >= 0.2 && factors.Brightness < 1.8, "brightness=%g", factors.Brightness)
		require.Equal(t, 1.0, factors.Contrast)
		require.True(t, factors.Saturation >= 0.7 && factors.Saturation < 1.3, "saturation=%g", factors.Saturation)
		require.True(t, factors.Hue >= -0.2 && factors.Hue < 0.2, "hue=%g", factors.Hue)
	}
}

func TestColorJitterApply(t *testing.T) {
	jitter := must.M1(NewColorJitter(0.4, 0.4, 0.4, 0.1))
	data := make([]float32, 3*6*6)
	for ii := range data {
		data[ii] = float32(ii*37%97) / 97
	}
	img := tensors.FromFlatDataAndDimensions(data, 3, 6, 6)
	out0 := must.M1(jitter.Apply(img, NewSource(8)))
	out1 := must.M1(jitter.Apply(img, NewSource(8)))
	assert.True(t, out0.Equal(out1))
	for _, v := range tensors.MustCopyFlatData[float32](out0) {
		require.True(t, v >= 0 && v <= 1, "value %g out of range", v)
	}
}

func TestColorJitterErrors(t *testing.T) {
	gray := tensors.FromScalarAndDimensions(float32(0.5), 1, 4, 4)
	_, err := must.M1(NewColorJitter(0, 0, 0.5, 0)).Apply(gray, NewSource(0))
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	_, err = must.M1(NewColorJitter(0, 0, 0, 0.1)).Apply(gray, NewSource(0))
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	_, err = must.M1(NewColorJitter(0.5, 0.5, 0, 0)).Apply(gray, NewSource(0))
	assert.NoError(t, err)

	_, err = must.M1(NewColorJitter(0.5, 0, 0, 0)).Apply(tensors.FromScalarAndDimensions(uint8(1), 3, 2, 2), NewSource(0))
	assert.True(t, errors.Is(err, ErrUnsupportedDType))
	_, err = must.M1(NewColorJitter(0.5, 0, 0, 0)).Apply(gray, nil)
	assert.Error(t, err)
}
