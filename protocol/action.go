// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

// Action is the tagged union of motor commands. Exactly one concrete kind
// is populated per value; the sealed interface keeps the set closed so
// encode sites can switch exhaustively.
//
// Distances are in scene units, rotations in degrees. Poses carry a
// location vector and a unit quaternion in w,x,y,z order.
type Action interface {
	// Agent returns the id of the agent the action drives.
	Agent() AgentID

	isAction()
}

// MoveForward translates the agent along its forward axis.
type MoveForward struct {
	AgentID  AgentID
	Distance float64
}

// MoveTangentially translates the agent along an arbitrary direction.
type MoveTangentially struct {
	AgentID   AgentID
	Distance  float64
	Direction VectorXYZ
}

// TurnLeft rotates the agent left about its vertical axis.
type TurnLeft struct {
	AgentID         AgentID
	RotationDegrees float64
}

// TurnRight rotates the agent right about its vertical axis.
type TurnRight struct {
	AgentID         AgentID
	RotationDegrees float64
}

// LookUp pitches the agent's sensors up, clamped to the constraint.
type LookUp struct {
	AgentID           AgentID
	RotationDegrees   float64
	ConstraintDegrees float64
}

// LookDown pitches the agent's sensors down, clamped to the constraint.
type LookDown struct {
	AgentID           AgentID
	RotationDegrees   float64
	ConstraintDegrees float64
}

// OrientHorizontal rotates horizontally while compensating with left and
// forward translations.
type OrientHorizontal struct {
	AgentID         AgentID
	RotationDegrees float64
	LeftDistance    float64
	ForwardDistance float64
}

// OrientVertical rotates vertically while compensating with down and
// forward translations.
type OrientVertical struct {
	AgentID         AgentID
	RotationDegrees float64
	DownDistance    float64
	ForwardDistance float64
}

// SetYaw sets the agent's absolute yaw.
type SetYaw struct {
	AgentID         AgentID
	RotationDegrees float64
}

// SetAgentPitch sets the agent body's absolute pitch.
type SetAgentPitch struct {
	AgentID      AgentID
	PitchDegrees float64
}

// SetAgentPose sets the agent's absolute location and rotation.
type SetAgentPose struct {
	AgentID  AgentID
	Location VectorXYZ
	Rotation QuaternionWXYZ
}

// SetSensorPitch sets the absolute pitch of the agent's sensors.
type SetSensorPitch struct {
	AgentID      AgentID
	PitchDegrees float64
}

// SetSensorPose sets the absolute pose of the agent's sensors.
type SetSensorPose struct {
	AgentID  AgentID
	Location VectorXYZ
	Rotation QuaternionWXYZ
}

// SetSensorRotation sets the absolute rotation of the agent's sensors.
type SetSensorRotation struct {
	AgentID  AgentID
	Rotation QuaternionWXYZ
}

func (a MoveForward) Agent() AgentID       { return a.AgentID }
func (a MoveTangentially) Agent() AgentID  { return a.AgentID }
func (a TurnLeft) Agent() AgentID          { return a.AgentID }
func (a TurnRight) Agent() AgentID         { return a.AgentID }
func (a LookUp) Agent() AgentID            { return a.AgentID }
func (a LookDown) Agent() AgentID          { return a.AgentID }
func (a OrientHorizontal) Agent() AgentID  { return a.AgentID }
func (a OrientVertical) Agent() AgentID    { return a.AgentID }
func (a SetYaw) Agent() AgentID            { return a.AgentID }
func (a SetAgentPitch) Agent() AgentID     { return a.AgentID }
func (a SetAgentPose) Agent() AgentID      { return a.AgentID }
func (a SetSensorPitch) Agent() AgentID    { return a.AgentID }
func (a SetSensorPose) Agent() AgentID     { return a.AgentID }
func (a SetSensorRotation) Agent() AgentID { return a.AgentID }

func (MoveForward) isAction()       {}
func (MoveTangentially) isAction()  {}
func (TurnLeft) isAction()          {}
func (TurnRight) isAction()         {}
func (LookUp) isAction()            {}
func (LookDown) isAction()          {}
func (OrientHorizontal) isAction()  {}
func (OrientVertical) isAction()    {}
func (SetYaw) isAction()            {}
func (SetAgentPitch) isAction()     {}
func (SetAgentPose) isAction()      {}
func (SetSensorPitch) isAction()    {}
func (SetSensorPose) isAction()     {}
func (SetSensorRotation) isAction() {}
