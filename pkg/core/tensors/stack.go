// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"reflect"

	"github.com/pkg/errors"
)

// ErrShapeMismatch is returned when tensors that should share a shape don't, or when a tensor doesn't
// have the rank an operation requires.
var ErrShapeMismatch = errors.New("shape mismatch")

// Stack concatenates the given tensors, all of the same shape, along a new leading axis.
// It's used to build a batch `[batch_size, channels, height, width]` from individual images.
//
// It returns an error wrapping ErrShapeMismatch if the tensors don't all share the same shape.
func Stack(parts []*Tensor) (*Tensor, error) {
	if len(parts) == 0 {
		return nil, errors.Wrap(ErrShapeMismatch, "tensors.Stack() requires at least one tensor")
	}
	partShape := parts[0].Shape()
	for ii, part := range parts {
		if err := part.CheckValid(); err != nil {
			return nil, errors.WithMessagef(err, "tensors.Stack(): part #%d", ii)
		}
		if !part.Shape().Equal(partShape) {
			return nil, errors.Wrapf(ErrShapeMismatch, "tensors.Stack(): part #%d has shape %s, but part #0 has shape %s",
				ii, part.Shape(), partShape)
		}
	}
	stacked := FromShape(partShape.PrependDimension(len(parts)))
	partSize := partShape.Size()
	stackedV := reflect.ValueOf(stacked.flat)
	for ii, part := range parts {
		err := part.ConstFlatData(func(flat any) {
			reflect.Copy(stackedV.Slice(ii*partSize, (ii+1)*partSize), reflect.ValueOf(flat))
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "tensors.Stack(): part #%d", ii)
		}
	}
	return stacked, nil
}

// Unstack splits the tensor along its leading axis, returning one new tensor per element of the first axis.
// It's the inverse of Stack.
func Unstack(t *Tensor) ([]*Tensor, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	if t.Rank() == 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "tensors.Unstack(): cannot unstack scalar %s", t.Shape())
	}
	n := t.Shape().Dim(0)
	partShape := t.Shape().WithDimensions(t.Shape().Dimensions[1:]...)
	partSize := partShape.Size()
	parts := make([]*Tensor, n)
	err := t.ConstFlatData(func(flat any) {
		flatV := reflect.ValueOf(flat)
		for ii := range parts {
			parts[ii] = FromShape(partShape)
			reflect.Copy(reflect.ValueOf(parts[ii].flat), flatV.Slice(ii*partSize, (ii+1)*partSize))
		}
	})
	if err != nil {
		return nil, err
	}
	return parts, nil
}
