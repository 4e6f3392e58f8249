// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import "math"

// DType tags the element type of a tensor, using numpy-style names so the
// tag survives the boundary to non-Go peers unchanged.
type DType string

const (
	Uint8   DType = "uint8"
	Int32   DType = "int32"
	Int64   DType = "int64"
	Float32 DType = "float32"
	Float64 DType = "float64"
)

// Size returns the element size in bytes, or 0 for an unknown dtype.
func (d DType) Size() int {
	switch d {
	case Uint8:
		return 1
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0
	}
}

// Tensor is a multi-dimensional array as it travels on the wire: element
// type tag, ordered dimension sizes, and the raw bytes in row-major order.
type Tensor struct {
	DType DType
	Shape []int
	Data  []byte
}

// NewTensor builds a validated tensor.
func NewTensor(dtype DType, shape []int, data []byte) (*Tensor, error) {
	t := &Tensor{DType: dtype, Shape: shape, Data: data}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Elems returns the number of elements implied by the shape. It assumes
// a validated shape; Validate is what guards untrusted shapes.
func (t *Tensor) Elems() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Validate checks the dtype tag, the shape, and that the byte length equals
// the product of the shape times the element size. A mismatch is a
// protocol error, never grounds for reshaping.
func (t *Tensor) Validate() error {
	size := t.DType.Size()
	if size == 0 {
		return Errorf("tensor: unknown dtype %q", t.DType)
	}
	if len(t.Shape) == 0 {
		return Errorf("tensor: empty shape")
	}
	// Decoded shapes are untrusted; accumulate with an overflow guard so a
	// hostile shape cannot wrap the product around to a small byte count.
	elems := 1
	for _, d := range t.Shape {
		if d <= 0 {
			return Errorf("tensor: invalid dimension %d", d)
		}
		if elems > math.MaxInt/d {
			return Errorf("tensor: shape %v overflows element count", t.Shape)
		}
		elems *= d
	}
	if elems > math.MaxInt/size {
		return Errorf("tensor: shape %v overflows byte count", t.Shape)
	}
	if want := elems * size; len(t.Data) != want {
		return Errorf("tensor: %d data bytes for shape %v of %s (want %d)",
			len(t.Data), t.Shape, t.DType, want)
	}
	return nil
}
