// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements a dense, CPU-resident Tensor: a shape plus a flat Go slice with the values,
// stored in row-major order.
//
// Images are handled as rank-3 tensors `[channels, height, width]` and batches of images as rank-4
// tensors `[batch_size, channels, height, width]`.
//
// The flat data is accessed with ConstFlatData / MutableFlatData (or their generic versions), which lock
// the tensor for the duration of the access function. Operations in this module never mutate their
// inputs: they always allocate a new Tensor for the result.
package tensors

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/imgaug/pkg/core/shapes"
	"github.com/gomlx/imgaug/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Tensor represents a multidimensional array with a shape and the flattened data.
//
// It is safe for concurrent reading: access to the flat data is protected by a mutex.
type Tensor struct {
	shape shapes.Shape
	mu    sync.Mutex

	// flat holds a slice of the Go type for the dtype of the shape. It is nil once the tensor is finalized.
	flat any
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
//
// It panics if you provide an invalid shape.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape(%s): invalid shape", shape)
	}
	goType := shape.DType.GoType()
	if goType == nil {
		exceptions.Panicf("tensors.FromShape(%s): dtype %s has no Go type", shape, shape.DType)
	}
	size := shape.Size()
	flatV := reflect.MakeSlice(reflect.SliceOf(goType), size, size)
	return &Tensor{
		shape: shape.Clone(),
		flat:  flatV.Interface(),
	}
}

// FromScalarAndDimensions creates a tensor with the given dimensions, filled with the
// given scalar value replicated everywhere.
// The `DType` is inferred from the value.
func FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int) *Tensor {
	t := FromShape(shapes.Make(dtypes.FromGenericsType[T](), dimensions...))
	MustMutableFlatData(t, func(flat []T) {
		xslices.FillSlice(flat, value)
	})
	return t
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the flattened values given in `data`.
// The data is copied to the Tensor.
// The `DType` is inferred from the `data` type.
//
// It panics if the size of data is wrong for the shape.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	shape := shapes.Make(dtypes.FromGenericsType[T](), dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape, len(data), shape.Size())
	}
	t := FromShape(shape)
	MustMutableFlatData(t, func(flat []T) {
		copy(flat, data)
	})
	return t
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's shape.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size returns the number of elements in the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes used by the flat data.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// Ok returns whether the tensor is in a valid state: not nil and not finalized.
func (t *Tensor) Ok() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flat != nil
}

// CheckValid returns an error if the tensor is nil or was finalized.
func (t *Tensor) CheckValid() error {
	if t == nil {
		return errors.New("tensor is nil")
	}
	if !t.shape.Ok() {
		return errors.New("tensor has an invalid shape")
	}
	return nil
}

// AssertValid panics if the tensor is nil or in an invalid state.
func (t *Tensor) AssertValid() {
	if err := t.CheckValid(); err != nil {
		panic(err)
	}
}

// Finalize releases the flat data. The tensor becomes invalid afterward.
func (t *Tensor) Finalize() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flat = nil
}

// lockedCheckData returns an error if the tensor has no data. It must be called with the lock held.
func (t *Tensor) lockedCheckData() error {
	if t.flat == nil {
		return errors.Errorf("tensor %s has been finalized", t.shape)
	}
	return nil
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to the DType type.
// Even scalar values have a flattened data representation of one element.
// It locks the Tensor until accessFn returns.
//
// This provides accessFn with the actual Tensor data (not a copy), and it should not be changed.
// See Tensor.MutableFlatData to access a mutable version of the flat data.
func (t *Tensor) ConstFlatData(accessFn func(flat any)) error {
	if err := t.CheckValid(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.lockedCheckData(); err != nil {
		return err
	}
	accessFn(t.flat)
	return nil
}

// MustConstFlatData is like ConstFlatData, but panics on error.
func (t *Tensor) MustConstFlatData(accessFn func(flat any)) {
	if err := t.ConstFlatData(accessFn); err != nil {
		panic(err)
	}
}

// MutableFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to the DType type.
// It locks the Tensor until accessFn returns.
//
// Only use it on tensors you own: operations in this module never call it on their inputs.
func (t *Tensor) MutableFlatData(accessFn func(flat any)) error {
	return t.ConstFlatData(accessFn)
}

// MustMutableFlatData is like MutableFlatData, but panics on error.
func (t *Tensor) MustMutableFlatData(accessFn func(flat any)) {
	t.MustConstFlatData(accessFn)
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to the DType type.
//
// It is the "generics" version of Tensor.ConstFlatData(). It returns an error if T doesn't match the tensor's DType.
func ConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) error {
	if err := t.CheckValid(); err != nil {
		return err
	}
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		return errors.Errorf("ConstFlatData[%T] is incompatible with Tensor's dtype %s -- expected dtype %s",
			v, t.shape.DType, dtypes.FromGenericsType[T]())
	}
	return t.ConstFlatData(func(anyFlat any) {
		accessFn(anyFlat.([]T))
	})
}

// MustConstFlatData is like ConstFlatData, but panics on error.
func MustConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	if err := ConstFlatData(t, accessFn); err != nil {
		exceptions.Panicf("MustConstFlatData: %+v", err)
	}
}

// MutableFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to the DType type.
//
// It is the "generics" version of Tensor.MutableFlatData().
func MutableFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) error {
	return ConstFlatData(t, accessFn)
}

// MustMutableFlatData is like MutableFlatData, but panics on error.
func MustMutableFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	MustConstFlatData(t, accessFn)
}

// ConstBytes calls accessFn with the data as a bytes slice, in the machine's native byte order.
// It locks the Tensor until accessFn returns. The data should not be changed.
func (t *Tensor) ConstBytes(accessFn func(data []byte)) error {
	return t.ConstFlatData(func(flat any) {
		flatV := reflect.ValueOf(flat)
		accessFn(unsafe.Slice((*byte)(flatV.UnsafePointer()), t.Memory()))
	})
}

// MutableBytes calls accessFn with the data as a bytes slice, in the machine's native byte order.
// It locks the Tensor until accessFn returns.
func (t *Tensor) MutableBytes(accessFn func(data []byte)) error {
	return t.ConstBytes(accessFn)
}

// CopyFlatData returns a copy of the flat data of the Tensor.
//
// It returns an error if T doesn't match the tensor's DType.
func CopyFlatData[T dtypes.Supported](t *Tensor) (flatCopy []T, err error) {
	err = ConstFlatData(t, func(flat []T) {
		flatCopy = xslices.Copy(flat)
	})
	return
}

// MustCopyFlatData is like CopyFlatData, but panics on error.
func MustCopyFlatData[T dtypes.Supported](t *Tensor) []T {
	flatCopy, err := CopyFlatData[T](t)
	if err != nil {
		panic(err)
	}
	return flatCopy
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() (*Tensor, error) {
	var clone *Tensor
	err := t.ConstFlatData(func(flat any) {
		clone = FromShape(t.shape)
		reflect.Copy(reflect.ValueOf(clone.flat), reflect.ValueOf(flat))
	})
	if err != nil {
		return nil, errors.WithMessage(err, "Tensor.Clone()")
	}
	return clone, nil
}

// Equal checks whether t == otherTensor.
// If they are the same pointer, they are considered equal.
// If the shapes are different, it returns false.
//
// Slow implementation: fine for tests and small tensors.
func (t *Tensor) Equal(otherTensor *Tensor) bool {
	return t.InDelta(otherTensor, 0)
}

// InDelta checks whether Abs(t - otherTensor) <= delta for every element.
// If they are the same pointer, they are considered equal.
// If the shapes are different, it returns false.
func (t *Tensor) InDelta(otherTensor *Tensor, delta float64) bool {
	t.AssertValid()
	otherTensor.AssertValid()
	if t == otherTensor {
		return true
	}
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	inDelta := false
	t.MustConstFlatData(func(flat0 any) {
		otherTensor.MustConstFlatData(func(flat1 any) {
			inDelta = xslices.SlicesInDelta(flat0, flat1, delta)
		})
	})
	return inDelta
}

// maxStringSize is the maximum number of elements printed by Tensor.String.
const maxStringSize = 64

// String converts to string, if not too large.
func (t *Tensor) String() string {
	if t == nil {
		return "<nil>"
	}
	if !t.Ok() {
		return fmt.Sprintf("%s: <finalized>", t.shape)
	}
	if t.Size() > maxStringSize {
		return fmt.Sprintf("%s: (... too large, %d values ...)", t.shape, t.Size())
	}
	var s string
	t.MustConstFlatData(func(flat any) {
		s = fmt.Sprintf("%s: %v", t.shape, flat)
	})
	return s
}
