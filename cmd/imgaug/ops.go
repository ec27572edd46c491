// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"slices"
	"strings"

	"github.com/gomlx/imgaug/pkg/augment"
	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/pkg/errors"
)

// opFn augments one image shaped `[channels, height, width]`.
type opFn func(img *tensors.Tensor, rng augment.Source) (*tensors.Tensor, error)

// opNames lists the augmentations that can be given to -ops.
var opNames = []string{"pipeline", "random_crop", "center_crop", "blur", "flip", "jitter"}

// parseOpName validates an element of -ops.
func parseOpName(name string) (string, error) {
	name = strings.ToLower(name)
	if !slices.Contains(opNames, name) {
		return "", errors.Errorf("unknown op %q, valid values are: %s", name, strings.Join(opNames, ", "))
	}
	return name, nil
}

// buildOps creates the augmentations named in names, configured by config.
// Crops use config.Size as output size, and blur uses kernelSize (or DefaultBlurKernelSize if 0).
func buildOps(names []string, config augment.PipelineConfig, kernelSize int) ([]opFn, error) {
	if len(names) == 0 {
		return nil, errors.New("no ops given")
	}
	ops := make([]opFn, 0, len(names))
	for _, name := range names {
		var op opFn
		switch name {
		case "pipeline":
			pipeline, err := augment.BuildWithConfig(config)
			if err != nil {
				return nil, err
			}
			op = pipeline.ApplyWithSource

		case "random_crop":
			op = func(img *tensors.Tensor, rng augment.Source) (*tensors.Tensor, error) {
				batch, err := tensors.Stack([]*tensors.Tensor{img})
				if err != nil {
					return nil, err
				}
				cropped, err := augment.RandomCrop(batch, config.Size, rng)
				if err != nil {
					return nil, err
				}
				parts, err := tensors.Unstack(cropped)
				if err != nil {
					return nil, err
				}
				return parts[0], nil
			}

		case "center_crop":
			op = func(img *tensors.Tensor, _ augment.Source) (*tensors.Tensor, error) {
				return augment.CenterCrop(img, config.Size)
			}

		case "blur":
			if kernelSize == 0 {
				kernelSize = augment.DefaultBlurKernelSize(config.Size)
			}
			blur, err := augment.NewGaussianBlur(kernelSize)
			if err != nil {
				return nil, err
			}
			op = blur.WithSigmaRange(config.BlurSigma[0], config.BlurSigma[1]).Apply

		case "flip":
			op = func(img *tensors.Tensor, rng augment.Source) (*tensors.Tensor, error) {
				flipped, _, err := augment.RandomHorizontalFlip(img, config.FlipProbability, rng)
				return flipped, err
			}

		case "jitter":
			jitter, err := augment.NewColorJitter(config.Brightness, config.Contrast, config.Saturation, config.Hue)
			if err != nil {
				return nil, err
			}
			op = jitter.WithMaxValue(config.MaxValue).Apply

		default:
			_, err := parseOpName(name)
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// applyOps applies the ops in sequence. Intermediary results are finalized, and img is left untouched.
func applyOps(ops []opFn, img *tensors.Tensor, rng augment.Source) (*tensors.Tensor, error) {
	current := img
	for ii, op := range ops {
		next, err := op(current, rng)
		if current != img {
			current.Finalize()
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "op #%d", ii)
		}
		current = next
	}
	if current == img {
		return img.Clone()
	}
	return current, nil
}
