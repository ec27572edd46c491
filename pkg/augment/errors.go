// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Errors returned by the augmentation functions. They are always wrapped with details about the
// offending shapes or values, use errors.Is to test for them.
var (
	// ErrInvalidCropSize is returned when a crop output size doesn't fit the input image.
	ErrInvalidCropSize = errors.New("invalid crop size")

	// ErrInvalidKernelSize is returned for non-positive blur kernels, or kernels too large to
	// reflect-pad the image.
	ErrInvalidKernelSize = errors.New("invalid kernel size")

	// ErrShapeMismatch is returned when the input doesn't have the expected rank, or when images
	// of a batch don't share the same shape.
	ErrShapeMismatch = tensors.ErrShapeMismatch

	// ErrUnsupportedDType is returned when an operation requires a float tensor.
	ErrUnsupportedDType = errors.New("unsupported dtype")

	// ErrInvalidConfig is returned by PipelineConfig.Validate and the ColorJitter constructor.
	ErrInvalidConfig = errors.New("invalid configuration")
)
