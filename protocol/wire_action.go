// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import "google.golang.org/protobuf/encoding/protowire"

// Action oneof field numbers. Frozen.
const (
	actionMoveForward       protowire.Number = 1
	actionMoveTangentially  protowire.Number = 2
	actionTurnLeft          protowire.Number = 3
	actionTurnRight         protowire.Number = 4
	actionLookUp            protowire.Number = 5
	actionLookDown          protowire.Number = 6
	actionOrientHorizontal  protowire.Number = 7
	actionOrientVertical    protowire.Number = 8
	actionSetYaw            protowire.Number = 9
	actionSetAgentPitch     protowire.Number = 10
	actionSetAgentPose      protowire.Number = 11
	actionSetSensorPitch    protowire.Number = 12
	actionSetSensorPose     protowire.Number = 13
	actionSetSensorRotation protowire.Number = 14
)

// appendAction encodes one Action as a oneof-discriminated submessage on
// field num. The kind switch is exhaustive over the sealed union; a nil
// action is a protocol error raised before anything is sent.
func appendAction(b []byte, num protowire.Number, a Action) ([]byte, error) {
	var (
		variant protowire.Number
		sub     []byte
	)
	switch v := a.(type) {
	case MoveForward:
		variant = actionMoveForward
		sub = appendString(nil, 1, string(v.AgentID))
		sub = appendDouble(sub, 2, v.Distance)
	case MoveTangentially:
		variant = actionMoveTangentially
		sub = appendString(nil, 1, string(v.AgentID))
		sub = appendDouble(sub, 2, v.Distance)
		sub = appendVector(sub, 3, v.Direction)
	case TurnLeft:
		variant = actionTurnLeft
		sub = appendString(nil, 1, string(v.AgentID))
		sub = appendDouble(sub, 2, v.RotationDegrees)
	case TurnRight:
		variant = actionTurnRight
		sub = appendString(nil, 1, string(v.AgentID))
		sub = appendDouble(sub, 2, v.RotationDegrees)
	case LookUp:
		variant = actionLookUp
		sub = appendString(nil, 1, string(v.AgentID))
		sub = appendDouble(sub, 2, v.RotationDegrees)
		sub = appendDouble(sub, 3, v.ConstraintDegrees)
	case LookDown:
		variant = actionLookDown
		sub = appendString(nil, 1, string(v.AgentID))
		sub = appendDouble(sub, 2, v.RotationDegrees)
		sub = appendDouble(sub, 3, v.ConstraintDegrees)
	case OrientHorizontal:
		variant = actionOrientHorizontal
		sub = appendString(nil, 1, string(v.AgentID))
		sub = appendDouble(sub, 2, v.RotationDegrees)
		sub = appendDouble(sub, 3, v.LeftDistance)
		sub = appendDouble(sub, 4, v.ForwardDistance)
	case OrientVertical:
		variant = actionOrientVertical
		sub = appendString(nil, 1, string(v.AgentID))
		sub = appendDouble(sub, 2, v.RotationDegrees)
		sub = appendDouble(sub, 3, v.DownDistance)
		sub = appendDouble(sub, 4, v.ForwardDistance)
	case SetYaw:
		variant = actionSetYaw
		sub = appendString(nil, 1, string(v.AgentID))
		sub = appendDouble(sub, 2, v.RotationDegrees)
	case SetAgentPitch:
		variant = actionSetAgentPitch
		sub = appendString(nil, 1, string(v.AgentID))
		sub = appendDouble(sub, 2, v.PitchDegrees)
	case SetAgentPose:
		variant = actionSetAgentPose
		sub = appendString(nil, 1, string(v.AgentID))
		sub = appendVector(sub, 2, v.Location)
		sub = appendQuaternion(sub, 3, v.Rotation)
	case SetSensorPitch:
		variant = actionSetSensorPitch
		sub = appendString(nil, 1, string(v.AgentID))
		sub = appendDouble(sub, 2, v.PitchDegrees)
	case SetSensorPose:
		variant = actionSetSensorPose
		sub = appendString(nil, 1, string(v.AgentID))
		sub = appendVector(sub, 2, v.Location)
		sub = appendQuaternion(sub, 3, v.Rotation)
	case SetSensorRotation:
		variant = actionSetSensorRotation
		sub = appendString(nil, 1, string(v.AgentID))
		sub = appendQuaternion(sub, 2, v.Rotation)
	default:
		return nil, Errorf("unsupported action kind %T", a)
	}
	env := appendBytesField(nil, variant, sub)
	return appendBytesField(b, num, env), nil
}

// decodeAction decodes one Action envelope. An unrecognized discriminant
// is a protocol error, never a silent no-op.
func decodeAction(b []byte) (Action, error) {
	var (
		action Action
		seen   bool
	)
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		body, err := fs.bytes(typ)
		if err != nil {
			return nil, err
		}
		a, err := decodeActionVariant(num, body)
		if err != nil {
			return nil, err
		}
		action, seen = a, true
	}
	if !seen {
		return nil, Errorf("action with no variant set")
	}
	return action, nil
}

func decodeActionVariant(num protowire.Number, b []byte) (Action, error) {
	var (
		agent    string
		scalars  [4]float64 // field number - 1 -> value, for double fields
		location VectorXYZ
		rotation QuaternionWXYZ
		vecField protowire.Number
	)
	switch num {
	case actionMoveTangentially:
		vecField = 3
	case actionSetAgentPose, actionSetSensorPose:
		vecField = 2
	}

	fs := fields{b}
	for {
		fnum, typ, ok, err := fs.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		switch {
		case fnum == 1:
			agent, err = fs.str(typ)
		case fnum == vecField && vecField != 0:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				location, err = decodeVector(raw)
			}
		case num == actionSetAgentPose && fnum == 3,
			num == actionSetSensorPose && fnum == 3,
			num == actionSetSensorRotation && fnum == 2:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				rotation, err = decodeQuaternion(raw)
			}
		case fnum >= 2 && fnum <= 5:
			scalars[fnum-2], err = fs.double(typ)
		default:
			err = fs.skip(fnum, typ)
		}
		if err != nil {
			return nil, err
		}
	}

	id := AgentID(agent)
	switch num {
	case actionMoveForward:
		return MoveForward{AgentID: id, Distance: scalars[0]}, nil
	case actionMoveTangentially:
		return MoveTangentially{AgentID: id, Distance: scalars[0], Direction: location}, nil
	case actionTurnLeft:
		return TurnLeft{AgentID: id, RotationDegrees: scalars[0]}, nil
	case actionTurnRight:
		return TurnRight{AgentID: id, RotationDegrees: scalars[0]}, nil
	case actionLookUp:
		return LookUp{AgentID: id, RotationDegrees: scalars[0], ConstraintDegrees: scalars[1]}, nil
	case actionLookDown:
		return LookDown{AgentID: id, RotationDegrees: scalars[0], ConstraintDegrees: scalars[1]}, nil
	case actionOrientHorizontal:
		return OrientHorizontal{AgentID: id, RotationDegrees: scalars[0], LeftDistance: scalars[1], ForwardDistance: scalars[2]}, nil
	case actionOrientVertical:
		return OrientVertical{AgentID: id, RotationDegrees: scalars[0], DownDistance: scalars[1], ForwardDistance: scalars[2]}, nil
	case actionSetYaw:
		return SetYaw{AgentID: id, RotationDegrees: scalars[0]}, nil
	case actionSetAgentPitch:
		return SetAgentPitch{AgentID: id, PitchDegrees: scalars[0]}, nil
	case actionSetAgentPose:
		return SetAgentPose{AgentID: id, Location: location, Rotation: rotation}, nil
	case actionSetSensorPitch:
		return SetSensorPitch{AgentID: id, PitchDegrees: scalars[0]}, nil
	case actionSetSensorPose:
		return SetSensorPose{AgentID: id, Location: location, Rotation: rotation}, nil
	case actionSetSensorRotation:
		return SetSensorRotation{AgentID: id, Rotation: rotation}, nil
	default:
		return nil, Errorf("unknown action discriminant %d", num)
	}
}
