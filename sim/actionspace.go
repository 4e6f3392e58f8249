// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package sim

import (
	"github.com/simweaver/simbridge/protocol"
)

// Named action spaces. A space restricts which motor commands an agent
// accepts; an agent configured without one accepts everything.
const (
	SpaceDistantAgent = "distant_agent_action_space"
	SpaceSurfaceAgent = "surface_agent_action_space"
	SpaceAbsoluteOnly = "absolute_only_action_space"
)

var actionSpaces = map[string]map[string]bool{
	SpaceDistantAgent: {
		"look_up":    true,
		"look_down":  true,
		"turn_left":  true,
		"turn_right": true,
		"set_yaw":    true,
	},
	SpaceSurfaceAgent: {
		"move_forward":      true,
		"move_tangentially": true,
		"orient_horizontal": true,
		"orient_vertical":   true,
	},
	SpaceAbsoluteOnly: {
		"set_yaw":             true,
		"set_agent_pitch":     true,
		"set_agent_pose":      true,
		"set_sensor_pitch":    true,
		"set_sensor_pose":     true,
		"set_sensor_rotation": true,
	},
}

// actionName is the stable identifier of an action kind, used for action
// space membership and error messages.
func actionName(a protocol.Action) string {
	switch a.(type) {
	case protocol.MoveForward:
		return "move_forward"
	case protocol.MoveTangentially:
		return "move_tangentially"
	case protocol.TurnLeft:
		return "turn_left"
	case protocol.TurnRight:
		return "turn_right"
	case protocol.LookUp:
		return "look_up"
	case protocol.LookDown:
		return "look_down"
	case protocol.OrientHorizontal:
		return "orient_horizontal"
	case protocol.OrientVertical:
		return "orient_vertical"
	case protocol.SetYaw:
		return "set_yaw"
	case protocol.SetAgentPitch:
		return "set_agent_pitch"
	case protocol.SetAgentPose:
		return "set_agent_pose"
	case protocol.SetSensorPitch:
		return "set_sensor_pitch"
	case protocol.SetSensorPose:
		return "set_sensor_pose"
	case protocol.SetSensorRotation:
		return "set_sensor_rotation"
	default:
		return "unknown"
	}
}
