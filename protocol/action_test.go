// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Every action kind must encode and decode with no information loss in any
// numeric field.
func TestActionRoundTrip(t *testing.T) {
	actions := []Action{
		MoveForward{AgentID: "agent_id_0", Distance: 0.25},
		MoveTangentially{AgentID: "agent_id_0", Distance: 0.004, Direction: VectorXYZ{X: 0.6, Y: -0.8, Z: 0.1}},
		TurnLeft{AgentID: "agent_id_0", RotationDegrees: 30},
		TurnRight{AgentID: "agent_id_0", RotationDegrees: 90},
		LookUp{AgentID: "agent_id_0", RotationDegrees: 10, ConstraintDegrees: 85},
		LookDown{AgentID: "agent_id_0", RotationDegrees: 12.5, ConstraintDegrees: 80},
		OrientHorizontal{AgentID: "agent_id_0", RotationDegrees: -15, LeftDistance: 0.01, ForwardDistance: 0.02},
		OrientVertical{AgentID: "agent_id_0", RotationDegrees: 7, DownDistance: 0.03, ForwardDistance: 0.04},
		SetYaw{AgentID: "agent_id_0", RotationDegrees: 180},
		SetAgentPitch{AgentID: "agent_id_0", PitchDegrees: -45},
		SetAgentPose{
			AgentID:  "agent_id_0",
			Location: VectorXYZ{X: 1, Y: 1.5, Z: -0.2},
			Rotation: QuaternionWXYZ{W: 0.7071, X: 0, Y: 0.7071, Z: 0},
		},
		SetSensorPitch{AgentID: "agent_id_0", PitchDegrees: 22.5},
		SetSensorPose{
			AgentID:  "agent_id_0",
			Location: VectorXYZ{X: 0, Y: 0.1, Z: 0},
			Rotation: QuaternionWXYZ{W: 1},
		},
		SetSensorRotation{
			AgentID:  "agent_id_0",
			Rotation: QuaternionWXYZ{W: 0.5, X: 0.5, Y: 0.5, Z: 0.5},
		},
	}
	require.Len(t, actions, 14)

	for _, a := range actions {
		b, err := appendAction(nil, 1, a)
		require.NoError(t, err, "%T", a)

		fs := fields{b}
		_, typ, ok, err := fs.next()
		require.NoError(t, err)
		require.True(t, ok)
		env, err := fs.bytes(typ)
		require.NoError(t, err)

		got, err := decodeAction(env)
		require.NoError(t, err, "%T", a)
		require.Equal(t, a, got)
	}
}

func TestStepRequestRoundTrip(t *testing.T) {
	req := StepRequest{Actions: []Action{
		MoveForward{AgentID: "agent_id_0", Distance: 0.25},
		TurnLeft{AgentID: "agent_id_0", RotationDegrees: 45},
	}}
	b, err := EncodeRequest(req)
	require.NoError(t, err)

	got, err := DecodeRequest(b)
	require.NoError(t, err)
	require.Equal(t, Request(req), got)
}

func TestStepRequestEmptyActions(t *testing.T) {
	b, err := EncodeRequest(StepRequest{})
	require.NoError(t, err)

	got, err := DecodeRequest(b)
	require.NoError(t, err)
	step, ok := got.(StepRequest)
	require.True(t, ok)
	require.Empty(t, step.Actions)
}

func TestDecodeActionUnknownDiscriminant(t *testing.T) {
	// Variant field 99 does not exist in the schema.
	env := appendBytesField(nil, 99, appendString(nil, 1, "agent_id_0"))
	_, err := decodeAction(env)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
}
