// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"math"

	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MaxRandomResizedCropAttempts is the number of windows sampled by RandomResizedCropParams before
// falling back to a center crop.
const MaxRandomResizedCropAttempts = 10

// PipelineConfig holds the parameters of the SimCLR style augmentation Pipeline.
// Use DefaultPipelineConfig to get the defaults.
type PipelineConfig struct {
	// Size of the output images: they are shaped `[channels, Size, Size]`.
	Size int

	// Scale is the range of the fraction of the input area covered by the random crop.
	Scale [2]float64

	// Ratio is the range of the aspect ratio (width/height) of the random crop, sampled log-uniformly.
	Ratio [2]float64

	// FlipProbability is the probability of flipping the image horizontally.
	FlipProbability float64

	// ColorJitter enables the color jitter stage, applied with probability ColorJitterProbability.
	ColorJitter                           bool
	Brightness, Contrast, Saturation, Hue float64
	ColorJitterProbability                float64

	// Blur enables the Gaussian blur stage.
	Blur bool

	// BlurKernelSize of the Gaussian blur. If 0, DefaultBlurKernelSize(Size) is used.
	BlurKernelSize int

	// BlurSigma is the range of the standard deviation of the Gaussian blur.
	BlurSigma [2]float64

	// MaxValue is the value of a fully saturated channel, used by the color jitter to clip values.
	MaxValue float64
}

// DefaultPipelineConfig returns the default configuration for output images of the given size: random
// resized crop with scale (0.08, 1.0) and ratio (3/4, 4/3), and horizontal flip with probability 0.5.
// Color jitter (brightness 0.8, contrast 0, saturation 0, hue 0.2, probability 0.8) and Gaussian
// blur are configured but disabled.
func DefaultPipelineConfig(size int) PipelineConfig {
	return PipelineConfig{
		Size:                   size,
		Scale:                  [2]float64{0.08, 1.0},
		Ratio:                  [2]float64{3.0 / 4.0, 4.0 / 3.0},
		FlipProbability:        0.5,
		ColorJitter:            false,
		Brightness:             0.8,
		Contrast:               0,
		Saturation:             0,
		Hue:                    0.2,
		ColorJitterProbability: 0.8,
		Blur:                   false,
		BlurKernelSize:         0,
		BlurSigma:              [2]float64{DefaultSigmaMin, DefaultSigmaMax},
		MaxValue:               1.0,
	}
}

// DefaultBlurKernelSize returns the blur kernel size used for output images of the given size:
// 10% of the size, rounded down to an odd number, and at least 1.
func DefaultBlurKernelSize(size int) int {
	kernelSize := int(0.1 * float64(size))
	if kernelSize%2 == 0 {
		kernelSize--
	}
	return max(kernelSize, 1)
}

// Settings returns pointers to the configuration fields, indexed by their setting name. It can be used
// with commandline.ParseSettings to configure the pipeline from a string like "size=64;blur=true".
func (c *PipelineConfig) Settings() map[string]any {
	return map[string]any{
		"size":                     &c.Size,
		"scale_min":                &c.Scale[0],
		"scale_max":                &c.Scale[1],
		"ratio_min":                &c.Ratio[0],
		"ratio_max":                &c.Ratio[1],
		"flip_probability":         &c.FlipProbability,
		"color_jitter":             &c.ColorJitter,
		"brightness":               &c.Brightness,
		"contrast":                 &c.Contrast,
		"saturation":               &c.Saturation,
		"hue":                      &c.Hue,
		"color_jitter_probability": &c.ColorJitterProbability,
		"blur":                     &c.Blur,
		"blur_kernel_size":         &c.BlurKernelSize,
		"blur_sigma_min":           &c.BlurSigma[0],
		"blur_sigma_max":           &c.BlurSigma[1],
		"max_value":                &c.MaxValue,
	}
}

// Validate returns an error wrapping ErrInvalidConfig (or ErrInvalidKernelSize for the blur kernel)
// if any parameter is out of range.
func (c PipelineConfig) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.Wrapf(ErrInvalidConfig, format, args...)
	}
	switch {
	case c.Size <= 0:
		return invalid("size must be > 0, got %d", c.Size)
	case c.Scale[0] <= 0 || c.Scale[1] < c.Scale[0]:
		return invalid("scale range must satisfy 0 < min <= max, got %v", c.Scale)
	case c.Ratio[0] <= 0 || c.Ratio[1] < c.Ratio[0]:
		return invalid("ratio range must satisfy 0 < min <= max, got %v", c.Ratio)
	case c.FlipProbability < 0 || c.FlipProbability > 1:
		return invalid("flip_probability must be in [0, 1], got %g", c.FlipProbability)
	case c.ColorJitterProbability < 0 || c.ColorJitterProbability > 1:
		return invalid("color_jitter_probability must be in [0, 1], got %g", c.ColorJitterProbability)
	case c.MaxValue <= 0:
		return invalid("max_value must be > 0, got %g", c.MaxValue)
	case c.BlurKernelSize < 0:
		return errors.Wrapf(ErrInvalidKernelSize, "blur_kernel_size must be >= 0, got %d", c.BlurKernelSize)
	case c.BlurSigma[0] <= 0 || c.BlurSigma[1] < c.BlurSigma[0]:
		return invalid("blur sigma range must satisfy 0 < min <= max, got %v", c.BlurSigma)
	}
	return nil
}

// Pipeline is the SimCLR style augmentation: random resized crop, random horizontal flip, and the
// optional color jitter and Gaussian blur stages, always in this order.
//
// It's safe for concurrent use.
type Pipeline struct {
	config PipelineConfig
	rng    Source
	jitter *ColorJitter
	blur   *GaussianBlur
}

// PipelineOption configures how a Pipeline is built.
type PipelineOption func(p *Pipeline)

// WithSeed makes the Pipeline use a new Source seeded with seed.
func WithSeed(seed uint64) PipelineOption {
	return func(p *Pipeline) { p.rng = NewLockedSource(NewSource(seed)) }
}

// WithSource makes the Pipeline use the given source. It's wrapped with NewLockedSource.
func WithSource(src Source) PipelineOption {
	return func(p *Pipeline) {
		if src != nil {
			p.rng = NewLockedSource(src)
		}
	}
}

// Build creates a Pipeline with the default configuration for output images of the given size.
// Without options, it's seeded with DefaultSeed.
func Build(size int, options ...PipelineOption) (*Pipeline, error) {
	return BuildWithConfig(DefaultPipelineConfig(size), options...)
}

// BuildWithConfig creates a Pipeline with the given configuration.
func BuildWithConfig(config PipelineConfig, options ...PipelineOption) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{config: config}
	for _, option := range options {
		option(p)
	}
	if p.rng == nil {
		p.rng = NewLockedSource(NewSource(DefaultSeed))
	}
	if config.ColorJitter {
		jitter, err := NewColorJitter(config.Brightness, config.Contrast, config.Saturation, config.Hue)
		if err != nil {
			return nil, err
		}
		p.jitter = jitter.WithMaxValue(config.MaxValue)
	}
	if config.Blur {
		kernelSize := config.BlurKernelSize
		if kernelSize == 0 {
			kernelSize = DefaultBlurKernelSize(config.Size)
		}
		blur, err := NewGaussianBlur(kernelSize)
		if err != nil {
			return nil, err
		}
		if blur.Radius() >= config.Size {
			return nil, errors.Wrapf(ErrInvalidKernelSize, "blur kernel size %d too large for output size %d",
				blur.KernelSize(), config.Size)
		}
		p.blur = blur.WithSigmaRange(config.BlurSigma[0], config.BlurSigma[1])
	}
	klog.V(1).Infof("augment.Pipeline: %+v", config)
	return p, nil
}

// Config returns a copy of the pipeline configuration.
func (p *Pipeline) Config() PipelineConfig { return p.config }

// Apply augments the image shaped `[channels, height, width]`, returning a new image shaped
// `[channels, size, size]`. Any input spatial size is accepted.
func (p *Pipeline) Apply(img *tensors.Tensor) (*tensors.Tensor, error) {
	return p.ApplyWithSource(img, p.rng)
}

// ApplyWithSource is like Apply, but draws the random parameters from rng instead of the pipeline source.
// rng is not required to be safe for concurrent use.
func (p *Pipeline) ApplyWithSource(img *tensors.Tensor, rng Source) (*tensors.Tensor, error) {
	dims, err := imageDims(img)
	if err != nil {
		return nil, err
	}
	if err := checkFloat(img, "Pipeline"); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New("Pipeline requires a random Source, got nil")
	}
	size := p.config.Size

	// Random resized crop.
	top, left, height, width := RandomResizedCropParams(dims.Height, dims.Width, p.config.Scale, p.config.Ratio, rng)
	cropped, err := Crop(img, top, left, height, width)
	if err != nil {
		return nil, errors.WithMessage(err, "Pipeline random resized crop")
	}
	out, err := Resize(cropped, size, size).Bilinear().AlignCorner(false).Done()
	cropped.Finalize()
	if err != nil {
		return nil, errors.WithMessage(err, "Pipeline resize")
	}

	// Random horizontal flip.
	if rng.Float64() < p.config.FlipProbability {
		flipped, err := HorizontalFlip(out)
		out.Finalize()
		if err != nil {
			return nil, errors.WithMessage(err, "Pipeline horizontal flip")
		}
		out = flipped
	}

	// Color jitter.
	if p.jitter != nil && rng.Float64() < p.config.ColorJitterProbability {
		jittered, err := p.jitter.Apply(out, rng)
		out.Finalize()
		if err != nil {
			return nil, errors.WithMessage(err, "Pipeline color jitter")
		}
		out = jittered
	}

	// Gaussian blur.
	if p.blur != nil {
		blurred, err := p.blur.Apply(out, rng)
		out.Finalize()
		if err != nil {
			return nil, errors.WithMessage(err, "Pipeline Gaussian blur")
		}
		out = blurred
	}
	return out, nil
}

// ApplyBatch augments each image of the batch shaped `[batch_size, channels, height, width]`, in parallel,
// returning a batch shaped `[batch_size, channels, size, size]`.
//
// One source per image is derived (with Split) from the pipeline source before processing, so the
// result only depends on the pipeline source state, and not on the scheduling of the workers.
func (p *Pipeline) ApplyBatch(batch *tensors.Tensor) (*tensors.Tensor, error) {
	numImages, _, err := batchDims(batch)
	if err != nil {
		return nil, err
	}
	sources := make([]Source, numImages)
	for ii := range sources {
		sources[ii] = Split(p.rng)
	}
	return forEachImage(batch, func(ii int, img *tensors.Tensor) (*tensors.Tensor, error) {
		return p.ApplyWithSource(img, sources[ii])
	})
}

// Views returns n independently augmented views of the image, as used for contrastive learning
// (n=2 gives the positive pair of SimCLR).
func (p *Pipeline) Views(img *tensors.Tensor, n int) ([]*tensors.Tensor, error) {
	if n <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "Pipeline.Views(n=%d): n must be > 0", n)
	}
	views := make([]*tensors.Tensor, n)
	for ii := range views {
		view, err := p.Apply(img)
		if err != nil {
			return nil, errors.WithMessagef(err, "Pipeline view #%d", ii)
		}
		views[ii] = view
	}
	return views, nil
}

// RandomResizedCropParams samples the window `(top, left, height, width)` of the random resized crop for an
// image of the given dimensions.
//
// It tries up to MaxRandomResizedCropAttempts times to sample a window covering a fraction of the area
// uniformly drawn from scale, with an aspect ratio (width/height) log-uniformly drawn from ratio.
// If no sampled window fits the image, it falls back to the largest centered window with the
// aspect ratio clamped to the ratio range.
func RandomResizedCropParams(height, width int, scale, ratio [2]float64, rng Source) (top, left, cropHeight, cropWidth int) {
	area := float64(height * width)
	for range MaxRandomResizedCropAttempts {
		targetArea := area * uniform(rng, scale[0], scale[1])
		aspectRatio := logUniform(rng, ratio[0], ratio[1])
		w := int(math.RoundToEven(math.Sqrt(targetArea * aspectRatio)))
		h := int(math.RoundToEven(math.Sqrt(targetArea / aspectRatio)))
		if w > 0 && w <= width && h > 0 && h <= height {
			top = rng.IntN(height - h + 1)
			left = rng.IntN(width - w + 1)
			return top, left, h, w
		}
	}

	// Fallback to central crop.
	inRatio := float64(width) / float64(height)
	switch {
	case inRatio < ratio[0]:
		cropWidth = width
		cropHeight = int(math.RoundToEven(float64(cropWidth) / ratio[0]))
	case inRatio > ratio[1]:
		cropHeight = height
		cropWidth = int(math.RoundToEven(float64(cropHeight) * ratio[1]))
	default:
		cropWidth, cropHeight = width, height
	}
	cropHeight = max(1, min(cropHeight, height))
	cropWidth = max(1, min(cropWidth, width))
	top = (height - cropHeight) / 2
	left = (width - cropWidth) / 2
	klog.V(2).Infof("RandomResizedCropParams(%dx%d): falling back to center crop %dx%d", height, width, cropHeight, cropWidth)
	return
}
