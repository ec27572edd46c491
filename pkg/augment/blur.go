// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"math"

	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/gomlx/imgaug/pkg/core/tensors/images"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"
)

// Default range of the standard deviation sampled by GaussianBlur.Apply.
const (
	DefaultSigmaMin = 0.1
	DefaultSigmaMax = 2.0
)

// Kernel is a normalized 1D convolution kernel of odd length `2*radius+1`, centered at index radius.
type Kernel []float64

// Radius of the kernel.
func (k Kernel) Radius() int { return len(k) / 2 }

// GaussianKernel returns the 1D Gaussian kernel with the given radius and standard deviation:
// `w[i] = exp(-i²/(2σ²))` for i in [-radius, radius], normalized to sum 1.
func GaussianKernel(radius int, sigma float64) Kernel {
	kernel := make(Kernel, 2*radius+1)
	for ii := range kernel {
		x := float64(ii - radius)
		kernel[ii] = math.Exp(-x * x / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}

// GaussianBlur filter with a random standard deviation per call.
//
// The kernel is separable: a horizontal pass followed by a vertical pass, with reflection padding
// (the edge pixel is not repeated). Channels are blurred independently.
//
// It holds no state besides its configuration: the kernel is rebuilt on every call, so the same
// GaussianBlur can be used concurrently with different sources.
type GaussianBlur struct {
	kernelSize, radius int
	sigmaMin, sigmaMax float64
	err                error
}

// NewGaussianBlur creates a GaussianBlur with the given kernel size. The kernel size is forced odd with
// `radius = kernelSize/2`, `kernelSize = 2*radius+1`, so an even kernelSize grows by one (8 becomes 9).
//
// It returns an error wrapping ErrInvalidKernelSize if kernelSize <= 0.
func NewGaussianBlur(kernelSize int) (*GaussianBlur, error) {
	if kernelSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidKernelSize, "NewGaussianBlur(kernelSize=%d): kernel size must be > 0", kernelSize)
	}
	radius := kernelSize / 2
	return &GaussianBlur{
		kernelSize: 2*radius + 1,
		radius:     radius,
		sigmaMin:   DefaultSigmaMin,
		sigmaMax:   DefaultSigmaMax,
	}, nil
}

// WithSigmaRange sets the range from which the standard deviation is uniformly sampled at each call.
// The default is [DefaultSigmaMin, DefaultSigmaMax].
//
// An invalid range (sigmaMin <= 0 or sigmaMax < sigmaMin) is reported by the following calls to Apply.
// It returns the GaussianBlur itself, so configuration calls can be cascaded.
func (b *GaussianBlur) WithSigmaRange(sigmaMin, sigmaMax float64) *GaussianBlur {
	b.sigmaMin, b.sigmaMax = sigmaMin, sigmaMax
	b.err = nil
	if sigmaMin <= 0 || sigmaMax < sigmaMin {
		b.err = errors.Wrapf(ErrInvalidConfig, "GaussianBlur.WithSigmaRange(%g, %g): requires 0 < min <= max", sigmaMin, sigmaMax)
	}
	return b
}

// KernelSize returns the effective (odd) kernel size.
func (b *GaussianBlur) KernelSize() int { return b.kernelSize }

// Radius returns the kernel radius: KernelSize() == 2*Radius()+1.
func (b *GaussianBlur) Radius() int { return b.radius }

// SampleSigma draws a standard deviation uniformly from the configured range.
func (b *GaussianBlur) SampleSigma(rng Source) float64 {
	return uniform(rng, b.sigmaMin, b.sigmaMax)
}

// Apply blurs the image shaped `[channels, height, width]` with a standard deviation sampled from rng.
// It returns a new tensor with the same shape; the input is not modified.
func (b *GaussianBlur) Apply(img *tensors.Tensor, rng Source) (*tensors.Tensor, error) {
	if b.err != nil {
		return nil, b.err
	}
	if rng == nil {
		return nil, errors.New("GaussianBlur.Apply requires a random Source, got nil")
	}
	if _, err := b.checkImage(img); err != nil {
		return nil, err
	}
	return b.ApplyWithSigma(img, b.SampleSigma(rng))
}

// ApplyWithSigma blurs the image shaped `[channels, height, width]` with the given standard deviation.
func (b *GaussianBlur) ApplyWithSigma(img *tensors.Tensor, sigma float64) (*tensors.Tensor, error) {
	dims, err := b.checkImage(img)
	if err != nil {
		return nil, err
	}
	if sigma <= 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, errors.Wrapf(ErrInvalidConfig, "GaussianBlur: invalid sigma %g", sigma)
	}
	kernel := GaussianKernel(b.radius, sigma)
	klog.V(3).Infof("GaussianBlur(%s): kernelSize=%d, sigma=%.3f", img.Shape(), b.kernelSize, sigma)
	return mapFloatImage(img, img.Shape().Dimensions, func(src, dst any) {
		switch srcFlat := src.(type) {
		case []float32:
			separableConvolution(srcFlat, dst.([]float32), dims, kernel)
		case []float64:
			separableConvolution(srcFlat, dst.([]float64), dims, kernel)
		}
	})
}

// ApplyBatch blurs each image of the batch shaped `[batch_size, channels, height, width]` with its own
// standard deviation. The standard deviations are drawn from rng in order before the images are blurred
// in parallel, so the result only depends on the state of rng.
func (b *GaussianBlur) ApplyBatch(batch *tensors.Tensor, rng Source) (*tensors.Tensor, error) {
	if b.err != nil {
		return nil, b.err
	}
	if rng == nil {
		return nil, errors.New("GaussianBlur.ApplyBatch requires a random Source, got nil")
	}
	numImages, dims, err := batchDims(batch)
	if err != nil {
		return nil, err
	}
	if err := b.checkDims(batch, dims); err != nil {
		return nil, err
	}
	sigmas := make([]float64, numImages)
	for ii := range sigmas {
		sigmas[ii] = b.SampleSigma(rng)
	}
	return forEachImage(batch, func(ii int, img *tensors.Tensor) (*tensors.Tensor, error) {
		return b.ApplyWithSigma(img, sigmas[ii])
	})
}

func (b *GaussianBlur) checkImage(img *tensors.Tensor) (images.Dims, error) {
	dims, err := imageDims(img)
	if err != nil {
		return dims, err
	}
	return dims, b.checkDims(img, dims)
}

// checkDims verifies the dtype, and that the image is large enough to be reflect-padded by the kernel radius.
func (b *GaussianBlur) checkDims(img *tensors.Tensor, dims images.Dims) error {
	if err := checkFloat(img, "GaussianBlur"); err != nil {
		return err
	}
	if b.radius >= dims.Height || b.radius >= dims.Width {
		return errors.Wrapf(ErrInvalidKernelSize,
			"GaussianBlur kernel size %d (radius %d) too large for image %s: radius must be smaller than height and width",
			b.kernelSize, b.radius, img.Shape())
	}
	return nil
}

// reflectIndex maps an out-of-bounds index to its mirror, without repeating the edge: for n=5,
// -1 -> 1, -2 -> 2, 5 -> 3, 6 -> 2. It requires -n < ii < 2n-1.
func reflectIndex(ii, n int) int {
	if ii < 0 {
		return -ii
	}
	if ii >= n {
		return 2*(n-1) - ii
	}
	return ii
}

// separableConvolution convolves each channel with kernel horizontally and then vertically.
// Accumulation is done in float64.
func separableConvolution[T float](src, dst []T, dims images.Dims, kernel Kernel) {
	height, width := dims.Height, dims.Width
	radius := kernel.Radius()
	planeSize := height * width
	tmp := make([]float64, planeSize)
	for c := range dims.Channels {
		plane := src[c*planeSize : (c+1)*planeSize]
		for y := range height {
			row := plane[y*width : (y+1)*width]
			for x := range width {
				var sum float64
				for k, w := range kernel {
					sum += w * float64(row[reflectIndex(x+k-radius, width)])
				}
				tmp[y*width+x] = sum
			}
		}
		out := dst[c*planeSize : (c+1)*planeSize]
		for y := range height {
			for x := range width {
				var sum float64
				for k, w := range kernel {
					sum += w * tmp[reflectIndex(y+k-radius, height)*width+x]
				}
				out[y*width+x] = T(sum)
			}
		}
	}
}
