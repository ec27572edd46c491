// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHorizontalFlip(t *testing.T) {
	img := tensors.FromFlatDataAndDimensions([]int32{
		1, 2, 3,
		4, 5, 6,

		7, 8, 9,
		10, 11, 12}, 2, 2, 3)
	flipped := must.M1(HorizontalFlip(img))
	require.NoError(t, flipped.Shape().Check(dtypes.Int32, 2, 2, 3))
	assert.Equal(t, []int32{3, 2, 1, 6, 5, 4, 9, 8, 7, 12, 11, 10}, tensors.MustCopyFlatData[int32](flipped))

	// Flipping twice gives back the original.
	assert.True(t, img.Equal(must.M1(HorizontalFlip(flipped))))

	batch := iotaBatch(2, 3, 4, 5)
	flippedBatch := must.M1(HorizontalFlip(batch))
	flat := tensors.MustCopyFlatData[float32](flippedBatch)
	assert.Equal(t, float32(1_000_000+2*10_000+3*100+4), flat[((1*3+2)*4+3)*5+0])
	assert.Equal(t, float32(0), flat[4])

	_, err := HorizontalFlip(tensors.FromScalarAndDimensions(float32(0), 3, 3))
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestRandomHorizontalFlip(t *testing.T) {
	img := iotaImage(1, 3, 4)
	flippedImg := must.M1(HorizontalFlip(img))

	out, flipped, err := RandomHorizontalFlip(img, 1.0, NewSource(0))
	require.NoError(t, err)
	assert.True(t, flipped)
	assert.True(t, out.Equal(flippedImg))

	out, flipped, err = RandomHorizontalFlip(img, 0.0, NewSource(0))
	require.NoError(t, err)
	assert.False(t, flipped)
	assert.True(t, out.Equal(img))
	assert.NotSame(t, img, out)

	rng := NewSource(17)
	var count int
	const numTrials = 2000
	for range numTrials {
		_, flipped := must.M2(RandomHorizontalFlip(img, 0.5, rng))
		if flipped {
			count++
		}
	}
	assert.InDelta(t, 0.5, float64(count)/numTrials, 0.05)

	_, _, err = RandomHorizontalFlip(img, 0.5, nil)
	assert.Error(t, err)
}
