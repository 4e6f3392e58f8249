// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package sim

import (
	"math"

	"github.com/goki/mat32"

	"github.com/simweaver/simbridge/protocol"
)

// The engine's body frame: forward is -Z, up is +Y, right is +X. Yaw is a
// rotation about +Y (positive turns left), pitch about +X (positive looks
// up).
var (
	axisX = mat32.Vec3{X: 1}
	axisY = mat32.Vec3{Y: 1}

	forward = mat32.Vec3{Z: -1}
)

func toVec3(v protocol.VectorXYZ) mat32.Vec3 {
	return mat32.Vec3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

func fromVec3(v mat32.Vec3) protocol.VectorXYZ {
	return protocol.VectorXYZ{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

func toQuat(q protocol.QuaternionWXYZ) mat32.Quat {
	return mat32.Quat{W: float32(q.W), X: float32(q.X), Y: float32(q.Y), Z: float32(q.Z)}
}

func fromQuat(q mat32.Quat) protocol.QuaternionWXYZ {
	return protocol.QuaternionWXYZ{W: float64(q.W), X: float64(q.X), Y: float64(q.Y), Z: float64(q.Z)}
}

func yawQuat(degrees float32) mat32.Quat {
	return mat32.NewQuatAxisAngle(axisY, mat32.DegToRad(degrees))
}

func pitchQuat(degrees float32) mat32.Quat {
	return mat32.NewQuatAxisAngle(axisX, mat32.DegToRad(degrees))
}

// quatMul returns the Hamilton product a*b: the rotation b followed by a.
func quatMul(a, b mat32.Quat) mat32.Quat {
	return mat32.Quat{
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y,
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X,
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W,
	}
}

// rotate applies q to v.
func rotate(q mat32.Quat, v mat32.Vec3) mat32.Vec3 {
	// v' = v + 2*cross(q.xyz, cross(q.xyz, v) + w*v)
	u := mat32.Vec3{X: q.X, Y: q.Y, Z: q.Z}
	c := u.Cross(v.MulScalar(q.W).Add(u.Cross(v)))
	return v.Add(c.MulScalar(2))
}

// yawOf extracts the heading of a rotation from where it points the
// forward axis.
func yawOf(q mat32.Quat) float32 {
	f := rotate(q, forward)
	return mat32.RadToDeg(float32(math.Atan2(float64(-f.X), float64(-f.Z))))
}

// pitchOf extracts the elevation of a rotation from where it points the
// forward axis.
func pitchOf(q mat32.Quat) float32 {
	f := rotate(q, forward)
	y := math.Max(-1, math.Min(1, float64(f.Y)))
	return mat32.RadToDeg(float32(math.Asin(y)))
}

// transformMatrix builds the row-major homogeneous transform of a pose,
// flattened for a [4,4] float64 tensor.
func transformMatrix(pos mat32.Vec3, rot mat32.Quat) []float64 {
	w, x, y, z := float64(rot.W), float64(rot.X), float64(rot.Y), float64(rot.Z)
	return []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y), float64(pos.X),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x), float64(pos.Y),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y), float64(pos.Z),
		0, 0, 0, 1,
	}
}

func clampDegrees(v, limit float32) float32 {
	if limit <= 0 {
		return v
	}
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
