// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/gomlx/imgaug/pkg/core/tensors/images"
	"github.com/gomlx/imgaug/pkg/core/tensors/numpy"
	"github.com/pkg/errors"
)

// inputImage is one image read from an input file.
type inputImage struct {
	// name used to generate the output file names.
	name string

	// img shaped `[channels, height, width]`.
	img *tensors.Tensor

	// fromNumpy is true if the image was read from a .npy or .npz file, in which case the results
	// are also saved as .npy files.
	fromNumpy bool
}

// outputBaseName is the prefix of the names of the files generated for the images of filePath.
func outputBaseName(filePath string) string {
	return strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
}

// checkOutputNames returns an error if two input files would generate the same output files,
// e.g. "a/x.png" and "b/x.jpg".
func checkOutputNames(files []string) error {
	seen := make(map[string]string, len(files))
	for _, filePath := range files {
		base := outputBaseName(filePath)
		if other, found := seen[base]; found {
			return errors.Errorf("input files %q and %q would be written to the same output files %q, rename one of them",
				other, filePath, base+"_*")
		}
		seen[base] = filePath
	}
	return nil
}

// loadInput reads the images of filePath: an image file in any format supported by imaging.Open, or a
// .npy/.npz file holding images shaped `[channels, height, width]` or batches of them.
//
// Images are converted to float32 with values in [0, maxValue], the same scale saveOutput uses to write them back.
func loadInput(filePath string, maxValue float64) ([]inputImage, error) {
	base := outputBaseName(filePath)
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".npy":
		t, err := numpy.FromNpyFile(filePath)
		if err != nil {
			return nil, err
		}
		return splitImages(base, t)

	case ".npz":
		arrays, err := numpy.FromNpzFile(filePath)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(arrays))
		for key := range arrays {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		var results []inputImage
		for _, key := range keys {
			parts, err := splitImages(base+"_"+key, arrays[key])
			if err != nil {
				return nil, errors.WithMessagef(err, "array %q", key)
			}
			results = append(results, parts...)
		}
		return results, nil

	default:
		goImg, err := imaging.Open(filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read image from %q", filePath)
		}
		img, err := images.ToTensor(dtypes.Float32).MaxValue(maxValue).Single(goImg)
		if err != nil {
			return nil, err
		}
		return []inputImage{{name: base, img: img}}, nil
	}
}

// splitImages returns t as a list of images, if t is a batch.
func splitImages(name string, t *tensors.Tensor) ([]inputImage, error) {
	switch t.Rank() {
	case 3:
		return []inputImage{{name: name, img: t, fromNumpy: true}}, nil
	case 4:
		parts, err := tensors.Unstack(t)
		if err != nil {
			return nil, err
		}
		results := make([]inputImage, len(parts))
		for ii, part := range parts {
			results[ii] = inputImage{name: fmt.Sprintf("%s_%03d", name, ii), img: part, fromNumpy: true}
		}
		return results, nil
	default:
		return nil, errors.Wrapf(tensors.ErrShapeMismatch,
			"%q: expected an image [channels, height, width] or a batch of images, got %s", name, t.Shape())
	}
}

// saveOutput writes the augmented img to outputDir, and returns the path and the number of bytes written.
// Images read from image files are saved as PNG, with values in [0, maxValue], and the others as .npy files.
func saveOutput(outputDir string, input inputImage, view int, img *tensors.Tensor, maxValue float64) (string, int64, error) {
	ext := ".png"
	if input.fromNumpy {
		ext = ".npy"
	}
	outputPath := filepath.Join(outputDir, fmt.Sprintf("%s_%d%s", input.name, view, ext))
	if input.fromNumpy {
		if err := numpy.ToNpyFile(img, outputPath); err != nil {
			return "", 0, err
		}
	} else {
		goImg, err := images.ToImage().MaxValue(maxValue).Single(img)
		if err != nil {
			return "", 0, err
		}
		if err := imaging.Save(goImg, outputPath); err != nil {
			return "", 0, errors.Wrapf(err, "failed to save image to %q", outputPath)
		}
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		return "", 0, errors.Wrapf(err, "failed to stat %q", outputPath)
	}
	return outputPath, info.Size(), nil
}
