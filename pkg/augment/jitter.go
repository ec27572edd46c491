// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"math"

	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/gomlx/imgaug/pkg/core/tensors/images"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Grayscale (luma) weights of the red, green and blue channels.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Indices of the color jitter transformations, as used in JitterFactors.Order.
const (
	JitterBrightness = iota
	JitterContrast
	JitterSaturation
	JitterHue
	numJitterTransforms
)

// ColorJitter randomly changes the brightness, contrast, saturation and hue of an image.
//
// For each call, the enabled transformations are applied in a random order, each with a random factor:
// brightness, contrast and saturation factors are sampled in `[max(0, 1-f), 1+f]`, and the hue shift
// in `[-hue, hue]` (a fraction of a full turn of the color wheel). A zero value disables the
// transformation. Results are clipped to `[0, maxValue]`.
type ColorJitter struct {
	brightness, contrast, saturation, hue float64
	maxValue                              float64
}

// NewColorJitter creates a ColorJitter. Brightness, contrast and saturation must be >= 0, and hue must
// be in [0, 0.5]. Values are expected in [0, 1], see WithMaxValue to change it.
func NewColorJitter(brightness, contrast, saturation, hue float64) (*ColorJitter, error) {
	if brightness < 0 || contrast < 0 || saturation < 0 {
		return nil, errors.Wrapf(ErrInvalidConfig,
			"ColorJitter(brightness=%g, contrast=%g, saturation=%g): factors must be >= 0", brightness, contrast, saturation)
	}
	if hue < 0 || hue > 0.5 {
		return nil, errors.Wrapf(ErrInvalidConfig, "ColorJitter(hue=%g): hue must be in [0, 0.5]", hue)
	}
	return &ColorJitter{brightness: brightness, contrast: contrast, saturation: saturation, hue: hue, maxValue: 1.0}, nil
}

// WithMaxValue sets the value of a fully saturated channel. Default is 1.0.
// It returns the ColorJitter itself, so configuration calls can be cascaded.
func (j *ColorJitter) WithMaxValue(maxValue float64) *ColorJitter {
	j.maxValue = maxValue
	return j
}

// JitterFactors are the randomly sampled parameters of one ColorJitter application.
type JitterFactors struct {
	// Order in which the transformations are applied (a permutation of JitterBrightness ... JitterHue).
	Order []int

	// Brightness, Contrast and Saturation multiplicative factors: 1 means no change.
	Brightness, Contrast, Saturation float64

	// Hue shift as a fraction of a turn: 0 means no change.
	Hue float64
}

// IdentityJitterFactors returns factors that leave the image unchanged.
func IdentityJitterFactors() JitterFactors {
	return JitterFactors{Order: []int{0, 1, 2, 3}, Brightness: 1, Contrast: 1, Saturation: 1}
}

// SampleFactors draws a random order and random factors for the enabled transformations.
func (j *ColorJitter) SampleFactors(rng Source) JitterFactors {
	factors := IdentityJitterFactors()
	factors.Order = permutation(rng, numJitterTransforms)
	if j.brightness > 0 {
		factors.Brightness = uniform(rng, max(0, 1-j.brightness), 1+j.brightness)
	}
	if j.contrast > 0 {
		factors.Contrast = uniform(rng, max(0, 1-j.contrast), 1+j.contrast)
	}
	if j.saturation > 0 {
		factors.Saturation = uniform(rng, max(0, 1-j.saturation), 1+j.saturation)
	}
	if j.hue > 0 {
		factors.Hue = uniform(rng, -j.hue, j.hue)
	}
	return factors
}

// Apply jitters the image shaped `[channels, height, width]` with factors sampled from rng.
// Saturation and hue require 3 (RGB) channels.
func (j *ColorJitter) Apply(img *tensors.Tensor, rng Source) (*tensors.Tensor, error) {
	if rng == nil {
		return nil, errors.New("ColorJitter.Apply requires a random Source, got nil")
	}
	if _, err := j.checkImage(img); err != nil {
		return nil, err
	}
	return j.ApplyWithFactors(img, j.SampleFactors(rng))
}

// ApplyWithFactors jitters the image shaped `[channels, height, width]` with the given factors.
func (j *ColorJitter) ApplyWithFactors(img *tensors.Tensor, factors JitterFactors) (*tensors.Tensor, error) {
	dims, err := j.checkImage(img)
	if err != nil {
		return nil, err
	}
	if j.maxValue <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "ColorJitter max value must be > 0, got %g", j.maxValue)
	}
	if dims.Channels != 3 && (factors.Saturation != 1 || factors.Hue != 0) {
		return nil, errors.Wrapf(ErrShapeMismatch, "ColorJitter saturation and hue require 3 channels, got image %s", img.Shape())
	}
	return mapFloatImage(img, img.Shape().Dimensions, func(src, dst any) {
		switch srcFlat := src.(type) {
		case []float32:
			jitterImage(srcFlat, dst.([]float32), dims, j.maxValue, factors)
		case []float64:
			jitterImage(srcFlat, dst.([]float64), dims, j.maxValue, factors)
		}
	})
}

func (j *ColorJitter) checkImage(img *tensors.Tensor) (images.Dims, error) {
	dims, err := imageDims(img)
	if err != nil {
		return dims, err
	}
	if err := checkFloat(img, "ColorJitter"); err != nil {
		return dims, err
	}
	if dims.Channels != 3 && (j.saturation > 0 || j.hue > 0) {
		return dims, errors.Wrapf(ErrShapeMismatch, "ColorJitter saturation and hue require 3 channels, got image %s", img.Shape())
	}
	return dims, nil
}

func jitterImage[T float](src, dst []T, dims images.Dims, maxValue float64, factors JitterFactors) {
	data := make([]float64, len(src))
	for ii, v := range src {
		data[ii] = float64(v) / maxValue
	}
	for _, transform := range factors.Order {
		switch transform {
		case JitterBrightness:
			if factors.Brightness != 1 {
				floats.Scale(factors.Brightness, data)
				clip01(data)
			}
		case JitterContrast:
			if factors.Contrast != 1 {
				adjustContrast(data, dims, factors.Contrast)
			}
		case JitterSaturation:
			if factors.Saturation != 1 {
				adjustSaturation(data, dims, factors.Saturation)
			}
		case JitterHue:
			if factors.Hue != 0 {
				adjustHue(data, dims, factors.Hue)
			}
		}
	}
	for ii, v := range data {
		dst[ii] = T(v * maxValue)
	}
}

// clip01 clips the values to [0, 1].
func clip01(data []float64) {
	for ii, v := range data {
		data[ii] = max(0, min(1, v))
	}
}

// grayscale returns the luma plane of an RGB image.
func grayscale(data []float64, dims images.Dims) []float64 {
	planeSize := dims.Height * dims.Width
	gray := make([]float64, planeSize)
	floats.AddScaled(gray, lumaR, data[:planeSize])
	floats.AddScaled(gray, lumaG, data[planeSize:2*planeSize])
	floats.AddScaled(gray, lumaB, data[2*planeSize:3*planeSize])
	return gray
}

// adjustContrast blends the image with its mean gray level: `factor*x + (1-factor)*mean`.
// Images that are not RGB use the mean over all channels.
func adjustContrast(data []float64, dims images.Dims, factor float64) {
	var mean float64
	if dims.Channels == 3 {
		gray := grayscale(data, dims)
		mean = floats.Sum(gray) / float64(len(gray))
	} else {
		mean = floats.Sum(data) / float64(len(data))
	}
	floats.Scale(factor, data)
	floats.AddConst((1-factor)*mean, data)
	clip01(data)
}

// adjustSaturation blends each pixel with its gray level: `factor*x + (1-factor)*gray`.
func adjustSaturation(data []float64, dims images.Dims, factor float64) {
	gray := grayscale(data, dims)
	planeSize := dims.Height * dims.Width
	for c := range 3 {
		plane := data[c*planeSize : (c+1)*planeSize]
		floats.Scale(factor, plane)
		floats.AddScaled(plane, 1-factor, gray)
	}
	clip01(data)
}

// adjustHue rotates the hue of each pixel by shift turns.
func adjustHue(data []float64, dims images.Dims, shift float64) {
	planeSize := dims.Height * dims.Width
	r, g, b := data[:planeSize], data[planeSize:2*planeSize], data[2*planeSize:3*planeSize]
	for ii := range planeSize {
		h, s, v := colorful.Color{R: r[ii], G: g[ii], B: b[ii]}.Hsv()
		h = math.Mod(h+shift*360, 360)
		if h < 0 {
			h += 360
		}
		shifted := colorful.Hsv(h, s, v).Clamped()
		r[ii], g[ii], b[ii] = shifted.R, shifted.G, shifted.B
	}
}
