// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

// AgentID identifies one agent within the simulation.
type AgentID string

// SensorID identifies one sensor mounted on an agent.
type SensorID string

// ObjectID identifies an object placed in the scene.
type ObjectID int64

// SemanticID is the semantic class assigned to a placed object.
type SemanticID int64

// VectorXYZ is a 3-vector in scene units.
type VectorXYZ struct {
	X, Y, Z float64
}

// QuaternionWXYZ is an orientation in w,x,y,z order. The wire layer never
// normalizes it; normalization, if needed, is an engine concern.
type QuaternionWXYZ struct {
	W, X, Y, Z float64
}

// Identity returns the identity rotation.
func Identity() QuaternionWXYZ {
	return QuaternionWXYZ{W: 1}
}

// Resolution is a sensor resolution in pixels.
type Resolution struct {
	Height, Width int
}

// ObjectInfo is the result of placing an object. SemanticID is nil when the
// engine did not assign one; absent is distinct from zero.
type ObjectInfo struct {
	ObjectID   ObjectID
	SemanticID *SemanticID
}

// ObjectConfig describes one object to place in the scene. It carries the
// same fields whether it arrives inside an Init request or a standalone
// AddObject request.
type ObjectConfig struct {
	Name                string
	Position            VectorXYZ
	Rotation            QuaternionWXYZ
	Scale               VectorXYZ
	SemanticID          *SemanticID
	PrimaryTargetObject *ObjectID
}

// AgentConfig is the agent placement configuration: exactly one of
// SingleSensorConfig or MultiSensorConfig.
type AgentConfig interface {
	isAgentConfig()
}

// SingleSensorConfig places one agent carrying a single sensor.
type SingleSensorConfig struct {
	AgentID     AgentID
	SensorID    SensorID
	Resolution  *Resolution
	ActionSpace *string
}

func (SingleSensorConfig) isAgentConfig() {}

// MultiSensorConfig places one agent carrying several sensors. The
// per-sensor slices, when present, are parallel to SensorIDs and must have
// the same length.
type MultiSensorConfig struct {
	AgentID     AgentID
	SensorIDs   []SensorID
	Height      float64
	Position    *VectorXYZ
	Resolutions []Resolution
	Positions   []VectorXYZ
	Rotations   []QuaternionWXYZ
	Semantics   []bool
	Zooms       []float64
	ActionSpace *string
}

func (MultiSensorConfig) isAgentConfig() {}

// Validate checks that the optional parallel arrays line up with SensorIDs.
func (c MultiSensorConfig) Validate() error {
	n := len(c.SensorIDs)
	if n == 0 {
		return Errorf("multi-sensor config has no sensor ids")
	}
	for name, l := range map[string]int{
		"resolutions": len(c.Resolutions),
		"positions":   len(c.Positions),
		"rotations":   len(c.Rotations),
		"semantics":   len(c.Semantics),
		"zooms":       len(c.Zooms),
	} {
		if l != 0 && l != n {
			return Errorf("multi-sensor config: %s has %d entries for %d sensors", name, l, n)
		}
	}
	return nil
}

// SceneConfig is the full initialization payload for the engine.
type SceneConfig struct {
	Agent    AgentConfig
	Objects  []ObjectConfig
	SceneID  *string
	Seed     int64
	DataPath *string
}

// Modality names one kind of sensor output within an observation.
type Modality string

const (
	ModalityRaw             Modality = "raw"
	ModalityRGBA            Modality = "rgba"
	ModalityDepth           Modality = "depth"
	ModalitySemantic        Modality = "semantic"
	ModalitySemantic3D      Modality = "semantic_3d"
	ModalitySensorFrameData Modality = "sensor_frame_data"
	ModalityWorldCamera     Modality = "world_camera"
	ModalityPixelLoc        Modality = "pixel_loc"
)

// SensorObservations maps modality to tensor for one sensor.
type SensorObservations map[Modality]*Tensor

// AgentObservations maps sensor id to that sensor's observations.
type AgentObservations map[SensorID]SensorObservations

// Observations maps agent id to that agent's observations.
type Observations map[AgentID]AgentObservations

// SensorState is the pose of one sensor relative to its agent.
type SensorState struct {
	Position VectorXYZ
	Rotation QuaternionWXYZ
}

// AgentState is the pose of one agent plus its sensors. MotorOnlyStep is
// presence-tagged: nil means the engine did not report it.
type AgentState struct {
	Position      VectorXYZ
	Rotation      QuaternionWXYZ
	MotorOnlyStep *bool
	Sensors       map[SensorID]SensorState
}

// ProprioceptiveState maps agent id to its reported state.
type ProprioceptiveState map[AgentID]AgentState
