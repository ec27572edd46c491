// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// imgaug applies image augmentations to image files (or .npy/.npz files with observation batches) and
// writes the results to an output directory, to preview what a training loop will see.
//
// Usage:
//
//	imgaug -ops=pipeline -size=64 -views=2 -set="blur=true;color_jitter=true" -output_dir=~/tmp/aug images/*.png
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/imgaug/pkg/augment"
	"github.com/gomlx/imgaug/pkg/support/fsutil"
	"github.com/gomlx/imgaug/pkg/support/xslices"
	"github.com/gomlx/imgaug/ui/commandline"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	flagOps = xslices.Flag("ops", []string{"pipeline"},
		fmt.Sprintf("Comma-separated list of augmentations to apply in sequence, from: %v. "+
			"The random crops use -size as the output size.", opNames), parseOpName)
	flagSize        = flag.Int("size", 84, "Output size of the crops and of the pipeline. It overrides the \"size\" setting.")
	flagKernelSize  = flag.Int("kernel_size", 0, "Kernel size of the \"blur\" op. If 0, it's 10% of -size.")
	flagViews       = flag.Int("views", 1, "Number of augmented views generated for each input image.")
	flagSeed        = flag.Uint64("seed", augment.DefaultSeed, "Seed of the random source.")
	flagParallelism = flag.Int("parallelism", 0, "Number of images processed in parallel. If 0, the number of cores is used.")
	flagOutputDir   = flag.String("output_dir", "imgaug_output", "Directory where to write the augmented images. It is created if needed.")
	flagQuiet       = flag.Bool("quiet", false, "Don't display the progress bar and the summary.")
)

func main() {
	klog.InitFlags(nil)
	config := augment.DefaultPipelineConfig(84)
	settings := commandline.CreateSettingsFlag(config.Settings(), "set")
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <image, .npy or .npz files...>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	paramsSet := must.M1(commandline.ParseSettings(config.Settings(), *settings))
	config.Size = *flagSize
	if len(paramsSet) > 0 {
		klog.V(1).Infof("Settings:\n%s", commandline.SprintModifiedSettings(config.Settings(), paramsSet))
	}
	if flag.NArg() == 0 {
		klog.Errorf("Missing input files. See 'imgaug -help'.")
		os.Exit(1)
	}
	if err := run(config, flag.Args()); err != nil {
		klog.Fatalf("Failed: %+v", err)
	}
}

// runStats are collected while processing the files.
type runStats struct {
	numInputs, numOutputs, bytesWritten atomic.Int64
}

// run augments the images of all files.
func run(config augment.PipelineConfig, files []string) error {
	if *flagViews <= 0 {
		return errors.Errorf("-views must be > 0, got %d", *flagViews)
	}
	ops, err := buildOps(*flagOps, config, *flagKernelSize)
	if err != nil {
		return err
	}
	if err := checkOutputNames(files); err != nil {
		return err
	}
	for _, filePath := range files {
		exists, err := fsutil.FileExists(filePath)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Errorf("input file %q not found", filePath)
		}
	}
	outputDir, err := fsutil.EnsureDir(*flagOutputDir)
	if err != nil {
		return err
	}
	parallelism := *flagParallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	// One source per file, derived in order, so results don't depend on the scheduling.
	rng := augment.NewSource(*flagSeed)
	sources := make([]augment.Source, len(files))
	for ii := range sources {
		sources[ii] = augment.Split(rng)
	}

	var stats runStats
	var pBar *commandline.ProgressBar
	if !*flagQuiet {
		pBar = commandline.NewProgressBar(len(files), "files", func() (string, string) {
			return "Written", humanize.Bytes(uint64(stats.bytesWritten.Load()))
		})
	}
	start := time.Now()
	var g errgroup.Group
	g.SetLimit(parallelism)
	for ii, filePath := range files {
		g.Go(func() error {
			err := processFile(filePath, outputDir, ops, sources[ii], config.MaxValue, &stats)
			if pBar != nil {
				pBar.Add(1)
			}
			return errors.WithMessagef(err, "processing %q", filePath)
		})
	}
	err = g.Wait()
	if pBar != nil {
		pBar.Done()
	}
	if err != nil {
		return err
	}
	if !*flagQuiet {
		fmt.Println(commandline.SummaryTable("imgaug", [][2]string{
			{"Ops", fmt.Sprintf("%v", *flagOps)},
			{"Files", humanize.Comma(int64(len(files)))},
			{"Input images", humanize.Comma(stats.numInputs.Load())},
			{"Output images", humanize.Comma(stats.numOutputs.Load())},
			{"Written", humanize.Bytes(uint64(stats.bytesWritten.Load()))},
			{"Output directory", outputDir},
			{"Elapsed", commandline.FormatDuration(time.Since(start))},
		}))
	}
	return nil
}

// processFile augments the images in filePath, generating -views outputs for each.
func processFile(filePath, outputDir string, ops []opFn, rng augment.Source, maxValue float64, stats *runStats) error {
	inputs, err := loadInput(filePath, maxValue)
	if err != nil {
		return err
	}
	stats.numInputs.Add(int64(len(inputs)))
	for _, input := range inputs {
		for view := range *flagViews {
			augmented, err := applyOps(ops, input.img, rng)
			if err != nil {
				return errors.WithMessagef(err, "image %q", input.name)
			}
			outputPath, size, err := saveOutput(outputDir, input, view, augmented, maxValue)
			augmented.Finalize()
			if err != nil {
				return err
			}
			klog.V(2).Infof("%s: %s written to %q", input.name, humanize.Bytes(uint64(size)), outputPath)
			stats.numOutputs.Add(1)
			stats.bytesWritten.Add(size)
		}
	}
	return nil
}
