// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	shape0 := Make(dtypes.Float64)
	assert.True(t, shape0.IsScalar())
	assert.Equal(t, 0, shape0.Rank())
	assert.Equal(t, 1, shape0.Size())

	shape1 := Make(dtypes.Float32, 4, 3, 84, 84)
	assert.False(t, shape1.IsScalar())
	assert.Equal(t, 4, shape1.Rank())
	assert.Equal(t, 4*3*84*84, shape1.Size())
	assert.Equal(t, uintptr(4*4*3*84*84), shape1.Memory())
	assert.Equal(t, "(Float32)[4 3 84 84]", shape1.String())

	require.Panics(t, func() { _ = Make(dtypes.Float32, 3, 0, 2) })
	assert.False(t, Invalid().Ok())
}

func TestDim(t *testing.T) {
	shape := Make(dtypes.Float32, 3, 84, 96)
	assert.Equal(t, 3, shape.Dim(0))
	assert.Equal(t, 84, shape.Dim(1))
	assert.Equal(t, 96, shape.Dim(-1))
	assert.Equal(t, 84, shape.Dim(-2))
	require.Panics(t, func() { _ = shape.Dim(3) })
	require.Panics(t, func() { _ = shape.Dim(-4) })
}

func TestEqualAndClone(t *testing.T) {
	s := Make(dtypes.Float32, 3, 8, 8)
	s2 := s.Clone()
	assert.True(t, s.Equal(s2))
	s2.Dimensions[0] = 1
	assert.Equal(t, 3, s.Dimensions[0], "Clone must not share the dimensions slice")
	assert.False(t, s.Equal(s2))
	assert.True(t, s.EqualDimensions(Make(dtypes.Float64, 3, 8, 8)))
	assert.False(t, s.Equal(Make(dtypes.Float64, 3, 8, 8)))
}

func TestStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, Make(dtypes.Float32, 2, 3, 4).Strides())
	assert.Equal(t, []int{1}, Make(dtypes.Float32, 5).Strides())
	assert.Nil(t, Make(dtypes.Float32).Strides())
}

func TestPrependDimension(t *testing.T) {
	img := Make(dtypes.Float32, 3, 10, 12)
	batch := img.PrependDimension(7)
	assert.Equal(t, []int{7, 3, 10, 12}, batch.Dimensions)
	assert.Equal(t, []int{3, 10, 12}, img.Dimensions)
	assert.Equal(t, []int{3, 5, 5}, img.WithDimensions(3, 5, 5).Dimensions)
}

func TestChecks(t *testing.T) {
	s := Make(dtypes.Float32, 4, 3, 84, 84)
	require.NoError(t, s.CheckDims(4, 3, UncheckedAxis, 84))
	require.Error(t, s.CheckDims(4, 3, 84))
	require.Error(t, s.CheckDims(4, 1, 84, 84))
	require.NoError(t, s.Check(dtypes.Float32, -1, -1, -1, -1))
	require.Error(t, s.Check(dtypes.Float64, -1, -1, -1, -1))
	require.NoError(t, CheckRank(s, 4))
	require.Error(t, CheckRank(s, 3))
	require.Panics(t, func() { AssertRank(s, 3) })
	require.NotPanics(t, func() { AssertDims(s, 4, 3, 84, 84) })
}
