// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestFillSlice(t *testing.T) {
	s := make([]float32, 7)
	FillSlice(s, 3)
	assert.Equal(t, []float32{3, 3, 3, 3, 3, 3, 3}, s)
	FillSlice([]int{}, 1) // No-op.
}

func TestSlicesInDelta(t *testing.T) {
	assert.True(t, SlicesInDelta([]float32{1, 2}, []float32{1, 2}, 0))
	assert.False(t, SlicesInDelta([]float32{1, 2}, []float32{1, 2.01}, 0))
	assert.True(t, SlicesInDelta([]float32{1, 2}, []float32{1, 2.01}, 0.1))
	assert.False(t, SlicesInDelta([]float32{1, 2}, []float64{1, 2}, 0.1))
	assert.False(t, SlicesInDelta([]float32{1, 2}, []float32{1}, 0.1))

	h0 := []float16.Float16{float16.Fromfloat32(1), float16.Fromfloat32(0.5)}
	h1 := []float16.Float16{float16.Fromfloat32(1), float16.Fromfloat32(0.51)}
	assert.True(t, SlicesInDelta(h0, h1, 0.05))
	assert.False(t, SlicesInDelta(h0, h1, 0.001))
}

func TestMapAndCopy(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, Map([]int{1, 2}, strconv.Itoa))
	in := []int{1, 2}
	out := Copy(in)
	out[0] = 7
	assert.Equal(t, 1, in[0])
	assert.Nil(t, Copy([]int{}))
}

func TestSliceFlag(t *testing.T) {
	f := &genericSliceFlagImpl[int]{parserFn: strconv.Atoi}
	require.NoError(t, f.Set("1, 2,3"))
	assert.Equal(t, []int{1, 2, 3}, f.parsedSlice)
	assert.Equal(t, "1,2,3", f.String())
	require.Error(t, f.Set("1,x"))
}
