// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package images provides several functions to transform images back and
// forth from tensors.
//
// By default, tensors are laid out channels-first (`[channels, height, width]` for a single image
// and `[batch_size, channels, height, width]` for a batch), which is the layout expected by the
// augmentation package. Use ChannelsLast to convert to/from `[height, width, channels]` layouts.
package images

import (
	"image"
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/imgaug/pkg/core/shapes"
	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// ChannelsAxisConfig indicates if a tensor with an image has the channel axis
// coming last (last axis) or first (first axis after batch axis).
type ChannelsAxisConfig uint8

const (
	ChannelsFirst ChannelsAxisConfig = iota
	ChannelsLast
)

// String implements fmt.Stringer.
func (c ChannelsAxisConfig) String() string {
	switch c {
	case ChannelsFirst:
		return "ChannelsFirst"
	case ChannelsLast:
		return "ChannelsLast"
	default:
		return "ChannelsAxisConfig(invalid)"
	}
}

// Dims holds the dimensions of an image (or of each image of a batch).
type Dims struct {
	Channels, Height, Width int
}

// GetDims returns the channels, height and width of an image tensor. It accepts rank-3 tensors
// (single image) or rank-4 tensors (batch of images), in which case the leading axis is the batch axis.
func GetDims(image shapes.HasShape, config ChannelsAxisConfig) (dims Dims, err error) {
	shape := image.Shape()
	rank := shape.Rank()
	if rank != 3 && rank != 4 {
		err = errors.Wrapf(tensors.ErrShapeMismatch, "image shape %s must be rank-3 or rank-4", shape)
		return
	}
	d := shape.Dimensions[rank-3:]
	switch config {
	case ChannelsFirst:
		dims = Dims{Channels: d[0], Height: d[1], Width: d[2]}
	case ChannelsLast:
		dims = Dims{Height: d[0], Width: d[1], Channels: d[2]}
	default:
		err = errors.Errorf("invalid ChannelsAxisConfig %d", config)
	}
	return
}

// pixelIndexFn returns a function that maps (y, x, channel) to the position in the flat data of one image.
func pixelIndexFn(dims Dims, config ChannelsAxisConfig) func(y, x, c int) int {
	if config == ChannelsLast {
		return func(y, x, c int) int { return (y*dims.Width+x)*dims.Channels + c }
	}
	return func(y, x, c int) int { return (c*dims.Height+y)*dims.Width + x }
}

// pixelType are the dtypes that can hold pixel values.
type pixelType interface {
	dtypes.NumberNotComplex | float16.Float16 | bfloat16.BFloat16
}

// ToTensorConfig holds the configuration returned by the ToTensor function. Once
// configured, use Single or Batch to actually convert.
type ToTensorConfig struct {
	channels int
	maxValue float64
	dtype    dtypes.DType
	layout   ChannelsAxisConfig
}

// ToTensor converts an image (or batch) to a tensors.Tensor.
//
// It returns a configuration object that can be further configured. Once set, use Single or Batch
// methods to convert an image or a batch of images.
func ToTensor(dtype dtypes.DType) *ToTensorConfig {
	tt := &ToTensorConfig{
		channels: 3,
		maxValue: 1.0,
		dtype:    dtype,
		layout:   ChannelsFirst,
	}
	if !dtype.IsFloat() {
		// Use 255 for integer types.
		tt.maxValue = 255.0
	}
	return tt
}

// WithAlpha configures ToTensorConfig object to include the alpha channel in the conversion,
// so the converted tensor will have 4 channels. The default is dropping the alpha channel.
//
// It returns the ToTensorConfig object, so configuration calls can be cascaded.
func (tt *ToTensorConfig) WithAlpha() *ToTensorConfig {
	tt.channels = 4
	return tt
}

// Grayscale configures the conversion to output a single luminance channel.
func (tt *ToTensorConfig) Grayscale() *ToTensorConfig {
	tt.channels = 1
	return tt
}

// MaxValue sets the MaxValue of each channel. It defaults to 1.0 for float dtypes
// and 255 for integer types.
//
// It returns the ToTensorConfig object, so configuration calls can be cascaded.
func (tt *ToTensorConfig) MaxValue(v float64) *ToTensorConfig {
	tt.maxValue = v
	return tt
}

// ChannelsLast configures the output to be shaped `[height, width, channels]`. Default is channels-first.
func (tt *ToTensorConfig) ChannelsLast() *ToTensorConfig {
	tt.layout = ChannelsLast
	return tt
}

// ChannelsFirst configures the output to be shaped `[channels, height, width]`. This is the default.
func (tt *ToTensorConfig) ChannelsFirst() *ToTensorConfig {
	tt.layout = ChannelsFirst
	return tt
}

// Single converts the given img to a tensor, using the ToTensorConfig.
//
// It returns a 3D tensor, shaped as `[channels, height, width]` (or `[height, width, channels]` if
// configured with ChannelsLast).
func (tt *ToTensorConfig) Single(img image.Image) (*tensors.Tensor, error) {
	return tt.convert([]image.Image{img}, false)
}

// Batch converts the given images to a tensor, using the ToTensorConfig.
// All images must have the same size.
//
// It returns a 4D tensor, shaped as `[batch_size, channels, height, width]` (or
// `[batch_size, height, width, channels]` if configured with ChannelsLast).
func (tt *ToTensorConfig) Batch(images []image.Image) (*tensors.Tensor, error) {
	return tt.convert(images, true)
}

func (tt *ToTensorConfig) convert(images []image.Image, batch bool) (t *tensors.Tensor, err error) {
	if len(images) == 0 {
		return nil, errors.New("images.ToTensor: no images given")
	}
	err = exceptions.TryCatch[error](func() {
		switch tt.dtype {
		case dtypes.Float32:
			t = toTensorGenericsImpl[float32](tt, images, batch)
		case dtypes.Float64:
			t = toTensorGenericsImpl[float64](tt, images, batch)
		case dtypes.Float16:
			t = toTensorGenericsImpl[float16.Float16](tt, images, batch)
		case dtypes.BFloat16:
			t = toTensorGenericsImpl[bfloat16.BFloat16](tt, images, batch)
		case dtypes.Uint8:
			t = toTensorGenericsImpl[uint8](tt, images, batch)
		case dtypes.Int32:
			t = toTensorGenericsImpl[int32](tt, images, batch)
		default:
			exceptions.Panicf("images.ToTensor does not support dtype %s", tt.dtype)
		}
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// fromFloat64 converts a value already scaled to the target range to T.
func fromFloat64[T pixelType](v float64) T {
	var zero T
	switch any(zero).(type) {
	case float16.Float16:
		return any(float16.Fromfloat32(float32(v))).(T)
	case bfloat16.BFloat16:
		return any(bfloat16.FromFloat32(float32(v))).(T)
	case float32:
		return any(float32(v)).(T)
	case float64:
		return any(v).(T)
	default:
		// Integer types: round to nearest.
		return T(math.Round(v))
	}
}

// toFloat64 converts a pixel value to float64.
func toFloat64[T pixelType](v T) float64 {
	switch x := any(v).(type) {
	case float16.Float16:
		return float64(x.Float32())
	case bfloat16.BFloat16:
		return float64(x.Float32())
	case float32:
		return float64(x)
	case float64:
		return x
	default:
		return float64(v)
	}
}

func toTensorGenericsImpl[T pixelType](tt *ToTensorConfig, images []image.Image, batch bool) (t *tensors.Tensor) {
	if len(images) > 1 && !batch {
		exceptions.Panicf("image.ToTensor in none-batch mode, but more than one image (%d) requested for conversion", len(images))
	}
	imgSize := images[0].Bounds().Size()
	dims := Dims{Channels: tt.channels, Height: imgSize.Y, Width: imgSize.X}
	imageDims := []int{dims.Channels, dims.Height, dims.Width}
	if tt.layout == ChannelsLast {
		imageDims = []int{dims.Height, dims.Width, dims.Channels}
	}
	shape := shapes.Make(dtypes.FromGenericsType[T](), imageDims...)
	if batch {
		shape = shape.PrependDimension(len(images))
	}
	t = tensors.FromShape(shape)
	indexFn := pixelIndexFn(dims, tt.layout)
	imageSize := dims.Channels * dims.Height * dims.Width

	// color.RGBA() returns 16 bits values packaged in uint32.
	scale := tt.maxValue / float64(0xFFFF)
	tensors.MustMutableFlatData(t, func(flat []T) {
		for imgIdx, img := range images {
			if !img.Bounds().Size().Eq(imgSize) {
				exceptions.Panicf("image[%d] has size %s, but image[0] has size %s -- they must all be the same",
					imgIdx, img.Bounds().Size(), imgSize)
			}
			imgFlat := flat[imgIdx*imageSize : (imgIdx+1)*imageSize]
			minPt := img.Bounds().Min
			for y := 0; y < dims.Height; y++ {
				for x := 0; x < dims.Width; x++ {
					r, g, b, a := img.At(minPt.X+x, minPt.Y+y).RGBA()
					if dims.Channels == 1 {
						// ITU-R 601-2 luma transform.
						luma := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
						imgFlat[indexFn(y, x, 0)] = fromFloat64[T](luma * scale)
						continue
					}
					for c, channel := range [4]uint32{r, g, b, a} {
						if c >= dims.Channels {
							break
						}
						imgFlat[indexFn(y, x, c)] = fromFloat64[T](float64(channel) * scale)
					}
				}
			}
		}
	})
	klog.V(2).Infof("images.ToTensor: converted %d image(s) to %s", len(images), t.Shape())
	return
}

// ToImageConfig holds the configuration returned by the ToImage function. Once
// configured, use Single or Batch to actually convert a tensor to image(s).
type ToImageConfig struct {
	maxValue float64
	layout   ChannelsAxisConfig
}

// ToImage returns a configuration that can be used to convert tensors to Images.
// Use Single or Batch to convert single images or batch of images at once.
//
// For now, it only supports `*image.NRGBA` image type.
func ToImage() *ToImageConfig {
	return &ToImageConfig{layout: ChannelsFirst}
}

// MaxValue sets the MaxValue of each channel. It defaults to 1.0 for float dtypes
// and 255 for integer types.
//
// It returns the ToImageConfig object, so configuration calls can be cascaded.
func (ti *ToImageConfig) MaxValue(v float64) *ToImageConfig {
	ti.maxValue = v
	return ti
}

// ChannelsLast configures the input tensors to be shaped `[height, width, channels]`.
func (ti *ToImageConfig) ChannelsLast() *ToImageConfig {
	ti.layout = ChannelsLast
	return ti
}

// ChannelsFirst configures the input tensors to be shaped `[channels, height, width]`. This is the default.
func (ti *ToImageConfig) ChannelsFirst() *ToImageConfig {
	ti.layout = ChannelsFirst
	return ti
}

// Single converts the given 3D tensor with an image to an image, using the ToImageConfig.
func (ti *ToImageConfig) Single(t *tensors.Tensor) (image.Image, error) {
	if t.Rank() != 3 {
		return nil, errors.Wrapf(tensors.ErrShapeMismatch, "images.ToImage().Single() requires a rank-3 tensor, got %s", t.Shape())
	}
	images, err := ti.convert(t)
	if err != nil {
		return nil, err
	}
	return images[0], nil
}

// Batch converts the given 4D tensor to a collection of images, using the ToImageConfig.
func (ti *ToImageConfig) Batch(t *tensors.Tensor) ([]image.Image, error) {
	if t.Rank() != 4 {
		return nil, errors.Wrapf(tensors.ErrShapeMismatch, "images.ToImage().Batch() requires a rank-4 tensor, got %s", t.Shape())
	}
	return ti.convert(t)
}

func (ti *ToImageConfig) convert(imagesTensor *tensors.Tensor) (images []image.Image, err error) {
	dims, err := GetDims(imagesTensor, ti.layout)
	if err != nil {
		return nil, err
	}
	if dims.Channels != 1 && dims.Channels != 3 && dims.Channels != 4 {
		return nil, errors.Wrapf(tensors.ErrShapeMismatch,
			"images.ToImage invalid tensor shape %s, with %d channels: only images with 1, 3 or 4 channels are supported",
			imagesTensor.Shape(), dims.Channels)
	}
	numImages := 1
	if imagesTensor.Rank() == 4 {
		numImages = imagesTensor.Shape().Dim(0)
	}
	maxValue := ti.maxValue
	if maxValue == 0 {
		if imagesTensor.DType().IsFloat() {
			maxValue = 1.0
		} else {
			maxValue = 255.0
		}
	}
	err = exceptions.TryCatch[error](func() {
		switch dtype := imagesTensor.DType(); dtype {
		case dtypes.Float32:
			images = toImageGenericsImpl[float32](imagesTensor, numImages, dims, ti.layout, maxValue)
		case dtypes.Float64:
			images = toImageGenericsImpl[float64](imagesTensor, numImages, dims, ti.layout, maxValue)
		case dtypes.Float16:
			images = toImageGenericsImpl[float16.Float16](imagesTensor, numImages, dims, ti.layout, maxValue)
		case dtypes.BFloat16:
			images = toImageGenericsImpl[bfloat16.BFloat16](imagesTensor, numImages, dims, ti.layout, maxValue)
		case dtypes.Uint8:
			images = toImageGenericsImpl[uint8](imagesTensor, numImages, dims, ti.layout, maxValue)
		case dtypes.Int32:
			images = toImageGenericsImpl[int32](imagesTensor, numImages, dims, ti.layout, maxValue)
		default:
			exceptions.Panicf("images.ToImage cannot convert tensor of unsupported dtype %s to Image", dtype)
		}
	})
	return
}

// toUint8 scales and clips a value to a 0-255 pixel value.
func toUint8(v, maxValue float64) uint8 {
	v = math.Round(255 * (v / maxValue))
	return uint8(max(0, min(255, v)))
}

func toImageGenericsImpl[T pixelType](imagesTensor *tensors.Tensor, numImages int, dims Dims,
	layout ChannelsAxisConfig, maxValue float64) (images []image.Image) {
	images = make([]image.Image, 0, numImages)
	indexFn := pixelIndexFn(dims, layout)
	imageSize := dims.Channels * dims.Height * dims.Width
	tensors.MustConstFlatData(imagesTensor, func(flat []T) {
		for imageIdx := 0; imageIdx < numImages; imageIdx++ {
			imgFlat := flat[imageIdx*imageSize : (imageIdx+1)*imageSize]
			img := image.NewNRGBA(image.Rect(0, 0, dims.Width, dims.Height))
			for y := 0; y < dims.Height; y++ {
				for x := 0; x < dims.Width; x++ {
					pix := img.Pix[y*img.Stride+x*4 : y*img.Stride+x*4+4]
					pix[3] = 255 // Alpha channel, if not given.
					if dims.Channels == 1 {
						v := toUint8(toFloat64(imgFlat[indexFn(y, x, 0)]), maxValue)
						pix[0], pix[1], pix[2] = v, v, v
						continue
					}
					for c := range dims.Channels {
						pix[c] = toUint8(toFloat64(imgFlat[indexFn(y, x, c)]), maxValue)
					}
				}
			}
			images = append(images, img)
		}
	})
	return
}
