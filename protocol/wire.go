// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Append helpers. Scalars are always emitted, including zero values; the
// decoders treat a missing field as zero, so the round trip is unaffected
// and the encoder stays deterministic. Presence-tagged optionals are
// emitted only when non-nil.

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	u := uint64(0)
	if v {
		u = 1
	}
	return appendVarint(b, num, u)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytesField(b []byte, num protowire.Number, sub []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub)
}

// fields is a cursor over one message's encoded fields.
type fields struct {
	b []byte
}

// next consumes the next tag. ok is false at end of input.
func (f *fields) next() (num protowire.Number, typ protowire.Type, ok bool, err error) {
	if len(f.b) == 0 {
		return 0, 0, false, nil
	}
	num, typ, n := protowire.ConsumeTag(f.b)
	if n < 0 {
		return 0, 0, false, Errorf("malformed tag: %v", protowire.ParseError(n))
	}
	f.b = f.b[n:]
	return num, typ, true, nil
}

func (f *fields) double(typ protowire.Type) (float64, error) {
	if typ != protowire.Fixed64Type {
		return 0, Errorf("unexpected wire type %d for double field", typ)
	}
	u, n := protowire.ConsumeFixed64(f.b)
	if n < 0 {
		return 0, Errorf("malformed double: %v", protowire.ParseError(n))
	}
	f.b = f.b[n:]
	return math.Float64frombits(u), nil
}

func (f *fields) varint(typ protowire.Type) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, Errorf("unexpected wire type %d for varint field", typ)
	}
	u, n := protowire.ConsumeVarint(f.b)
	if n < 0 {
		return 0, Errorf("malformed varint: %v", protowire.ParseError(n))
	}
	f.b = f.b[n:]
	return u, nil
}

func (f *fields) boolean(typ protowire.Type) (bool, error) {
	u, err := f.varint(typ)
	return u != 0, err
}

func (f *fields) bytes(typ protowire.Type) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, Errorf("unexpected wire type %d for bytes field", typ)
	}
	v, n := protowire.ConsumeBytes(f.b)
	if n < 0 {
		return nil, Errorf("malformed bytes: %v", protowire.ParseError(n))
	}
	f.b = f.b[n:]
	return v, nil
}

func (f *fields) str(typ protowire.Type) (string, error) {
	v, err := f.bytes(typ)
	return string(v), err
}

// skip discards an unknown field, preserving forward compatibility for
// non-discriminant fields.
func (f *fields) skip(num protowire.Number, typ protowire.Type) error {
	n := protowire.ConsumeFieldValue(num, typ, f.b)
	if n < 0 {
		return Errorf("malformed field %d: %v", num, protowire.ParseError(n))
	}
	f.b = f.b[n:]
	return nil
}

// packedVarints reads a repeated varint field in either packed or unpacked
// form and appends onto dst.
func (f *fields) packedVarints(typ protowire.Type, dst []uint64) ([]uint64, error) {
	if typ == protowire.VarintType {
		u, err := f.varint(typ)
		if err != nil {
			return nil, err
		}
		return append(dst, u), nil
	}
	raw, err := f.bytes(typ)
	if err != nil {
		return nil, err
	}
	for len(raw) > 0 {
		u, n := protowire.ConsumeVarint(raw)
		if n < 0 {
			return nil, Errorf("malformed packed varint: %v", protowire.ParseError(n))
		}
		raw = raw[n:]
		dst = append(dst, u)
	}
	return dst, nil
}

// packedDoubles reads a repeated double field in either packed or unpacked
// form and appends onto dst.
func (f *fields) packedDoubles(typ protowire.Type, dst []float64) ([]float64, error) {
	if typ == protowire.Fixed64Type {
		v, err := f.double(typ)
		if err != nil {
			return nil, err
		}
		return append(dst, v), nil
	}
	raw, err := f.bytes(typ)
	if err != nil {
		return nil, err
	}
	if len(raw)%8 != 0 {
		return nil, Errorf("packed doubles: %d bytes is not a multiple of 8", len(raw))
	}
	for len(raw) > 0 {
		u, n := protowire.ConsumeFixed64(raw)
		if n < 0 {
			return nil, Errorf("malformed packed double: %v", protowire.ParseError(n))
		}
		raw = raw[n:]
		dst = append(dst, math.Float64frombits(u))
	}
	return dst, nil
}

// Basic geometric types.
//
// VectorXYZ: x=1, y=2, z=3 (double).
// QuaternionWXYZ: w=1, x=2, y=3, z=4 (double).
// Resolution: height=1, width=2 (varint).

func appendVector(b []byte, num protowire.Number, v VectorXYZ) []byte {
	sub := appendDouble(nil, 1, v.X)
	sub = appendDouble(sub, 2, v.Y)
	sub = appendDouble(sub, 3, v.Z)
	return appendBytesField(b, num, sub)
}

func decodeVector(b []byte) (VectorXYZ, error) {
	var v VectorXYZ
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil || !ok {
			return v, err
		}
		switch num {
		case 1:
			v.X, err = fs.double(typ)
		case 2:
			v.Y, err = fs.double(typ)
		case 3:
			v.Z, err = fs.double(typ)
		default:
			err = fs.skip(num, typ)
		}
		if err != nil {
			return v, err
		}
	}
}

func appendQuaternion(b []byte, num protowire.Number, q QuaternionWXYZ) []byte {
	sub := appendDouble(nil, 1, q.W)
	sub = appendDouble(sub, 2, q.X)
	sub = appendDouble(sub, 3, q.Y)
	sub = appendDouble(sub, 4, q.Z)
	return appendBytesField(b, num, sub)
}

func decodeQuaternion(b []byte) (QuaternionWXYZ, error) {
	var q QuaternionWXYZ
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil || !ok {
			return q, err
		}
		switch num {
		case 1:
			q.W, err = fs.double(typ)
		case 2:
			q.X, err = fs.double(typ)
		case 3:
			q.Y, err = fs.double(typ)
		case 4:
			q.Z, err = fs.double(typ)
		default:
			err = fs.skip(num, typ)
		}
		if err != nil {
			return q, err
		}
	}
}

func appendResolution(b []byte, num protowire.Number, r Resolution) []byte {
	sub := appendVarint(nil, 1, uint64(r.Height))
	sub = appendVarint(sub, 2, uint64(r.Width))
	return appendBytesField(b, num, sub)
}

func decodeResolution(b []byte) (Resolution, error) {
	var r Resolution
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil || !ok {
			return r, err
		}
		switch num {
		case 1:
			var u uint64
			u, err = fs.varint(typ)
			r.Height = int(u)
		case 2:
			var u uint64
			u, err = fs.varint(typ)
			r.Width = int(u)
		default:
			err = fs.skip(num, typ)
		}
		if err != nil {
			return r, err
		}
	}
}

// Tensor: data=1 (bytes), dtype=2 (string), shape=3 (repeated varint).
// Both encode and decode validate so an undersized or oversized payload
// never crosses the boundary silently.

func appendTensor(b []byte, num protowire.Number, t *Tensor) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	sub := appendBytesField(nil, 1, t.Data)
	sub = appendString(sub, 2, string(t.DType))
	packed := make([]byte, 0, len(t.Shape))
	for _, d := range t.Shape {
		packed = protowire.AppendVarint(packed, uint64(d))
	}
	sub = appendBytesField(sub, 3, packed)
	return appendBytesField(b, num, sub), nil
}

func decodeTensor(b []byte) (*Tensor, error) {
	var t Tensor
	var shape []uint64
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			raw, err := fs.bytes(typ)
			if err != nil {
				return nil, err
			}
			// Copy out of the enclosing message buffer so the tensor owns
			// its bytes after the frame is recycled.
			t.Data = append([]byte(nil), raw...)
		case 2:
			s, err := fs.str(typ)
			if err != nil {
				return nil, err
			}
			t.DType = DType(s)
		case 3:
			shape, err = fs.packedVarints(typ, shape)
			if err != nil {
				return nil, err
			}
		default:
			if err := fs.skip(num, typ); err != nil {
				return nil, err
			}
		}
	}
	t.Shape = make([]int, len(shape))
	for i, u := range shape {
		t.Shape[i] = int(u)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}
