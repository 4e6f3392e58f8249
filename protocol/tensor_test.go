// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func tensorRoundTrip(t *testing.T, tensor *Tensor) *Tensor {
	t.Helper()
	b, err := appendTensor(nil, 1, tensor)
	require.NoError(t, err)

	fs := fields{b}
	_, typ, ok, err := fs.next()
	require.NoError(t, err)
	require.True(t, ok)
	body, err := fs.bytes(typ)
	require.NoError(t, err)

	got, err := decodeTensor(body)
	require.NoError(t, err)
	return got
}

func TestTensorRoundTrip(t *testing.T) {
	cases := []struct {
		dtype DType
		shape []int
	}{
		{Uint8, []int{64, 64, 4}},
		{Uint8, []int{1}},
		{Int32, []int{16, 16}},
		{Int64, []int{3, 2, 1}},
		{Float32, []int{64, 64}},
		{Float64, []int{4, 4}},
		{Float64, []int{7}},
	}
	for _, tc := range cases {
		elems := 1
		for _, d := range tc.shape {
			elems *= d
		}
		data := make([]byte, elems*tc.dtype.Size())
		for i := range data {
			data[i] = byte(i * 31)
		}
		tensor, err := NewTensor(tc.dtype, tc.shape, data)
		require.NoError(t, err)

		got := tensorRoundTrip(t, tensor)
		require.Equal(t, tensor.DType, got.DType)
		require.Equal(t, tensor.Shape, got.Shape)
		require.Equal(t, tensor.Data, got.Data)
	}
}

func TestTensorByteLengthMismatch(t *testing.T) {
	_, err := NewTensor(Float32, []int{2, 2}, make([]byte, 15))
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
}

func TestTensorUnknownDType(t *testing.T) {
	_, err := NewTensor("complex128", []int{1}, make([]byte, 16))
	require.Error(t, err)
}

// A shape whose element product wraps around must be rejected, not
// matched against a tiny payload.
func TestTensorOverflowingShape(t *testing.T) {
	_, err := NewTensor(Uint8, []int{math.MaxInt, 2}, nil)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)

	// The element count fits but the byte count does not.
	_, err = NewTensor(Float64, []int{math.MaxInt / 4, 1}, nil)
	require.Error(t, err)
}

func TestTensorEmptyShape(t *testing.T) {
	_, err := NewTensor(Uint8, nil, nil)
	require.Error(t, err)
}

// A decoded tensor whose declared shape disagrees with its payload must be
// rejected, never silently reshaped.
func TestDecodeTensorShapeMismatch(t *testing.T) {
	sub := appendBytesField(nil, 1, make([]byte, 12))
	sub = appendString(sub, 2, string(Float32))
	sub = appendVarint(sub, 3, 2) // declares 2 elements, payload has 3
	_, err := decodeTensor(sub)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
}
