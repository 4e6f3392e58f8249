// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sim is a self-contained simulation engine: a geometric world of
// placed objects observed by one agent carrying one or more cameras. It
// exists so the bridge can run end to end without an external physics
// process; observations are synthetic but deterministic for a given seed
// and action history.
package sim

import (
	"fmt"
	"math/rand/v2"

	"github.com/goki/mat32"

	"github.com/simweaver/simbridge/logging"
	"github.com/simweaver/simbridge/protocol"
)

// DefaultResolution applies to sensors configured without one.
var DefaultResolution = protocol.Resolution{Height: 64, Width: 64}

// sensorDef is a camera mounted on the agent's sensor rig.
type sensorDef struct {
	id       protocol.SensorID
	res      protocol.Resolution
	offset   mat32.Vec3
	rotation mat32.Quat
	semantic bool
	zoom     float64
}

// agentBody is the mutable pose of one agent. Sensors share a rig: look
// actions pitch the rig, not the body.
type agentBody struct {
	id  protocol.AgentID
	pos mat32.Vec3
	rot mat32.Quat

	rigPos   mat32.Vec3
	rigRot   mat32.Quat
	rigPitch float32

	space   map[string]bool // nil means unrestricted
	sensors []sensorDef
}

type object struct {
	id       protocol.ObjectID
	name     string
	pos      mat32.Vec3
	rot      mat32.Quat
	scale    mat32.Vec3
	semantic protocol.SemanticID
}

// Engine implements the simulation surface of the bridge server.
type Engine struct {
	log logging.Logger

	agents []*agentBody
	byID   map[protocol.AgentID]*agentBody

	objects      []object
	nextObjectID protocol.ObjectID
	nextSemantic protocol.SemanticID

	seed uint64
	rng  *rand.Rand

	initialObjects []object
	initialAgents  []agentBody
}

// New builds an engine from a scene configuration. The configured objects
// are placed immediately and become part of the state Reset restores.
func New(cfg protocol.SceneConfig, log logging.Logger) (*Engine, error) {
	if log == nil {
		log = logging.Nop()
	}
	if cfg.Agent == nil {
		return nil, fmt.Errorf("scene config has no agent")
	}

	e := &Engine{
		log:          log,
		byID:         map[protocol.AgentID]*agentBody{},
		nextObjectID: 1,
		nextSemantic: 1,
		seed:         uint64(cfg.Seed),
	}
	e.rng = rand.New(rand.NewPCG(e.seed, e.seed))

	body, err := buildAgent(cfg.Agent)
	if err != nil {
		return nil, err
	}
	e.agents = append(e.agents, body)
	e.byID[body.id] = body

	for _, obj := range cfg.Objects {
		if _, err := e.AddObject(obj); err != nil {
			return nil, err
		}
	}

	e.snapshot()
	e.log.Info("engine ready",
		"agents", len(e.agents), "objects", len(e.objects), "seed", cfg.Seed)
	return e, nil
}

func buildAgent(cfg protocol.AgentConfig) (*agentBody, error) {
	switch c := cfg.(type) {
	case protocol.SingleSensorConfig:
		if c.AgentID == "" || c.SensorID == "" {
			return nil, fmt.Errorf("single-sensor config: agent and sensor ids required")
		}
		space, err := lookupSpace(c.ActionSpace)
		if err != nil {
			return nil, err
		}
		body := &agentBody{
			id:     c.AgentID,
			rot:    mat32.Quat{W: 1},
			rigRot: mat32.Quat{W: 1},
			space:  space,
		}
		res := DefaultResolution
		if c.Resolution != nil {
			res = *c.Resolution
		}
		body.sensors = []sensorDef{{
			id:       c.SensorID,
			res:      res,
			rotation: mat32.Quat{W: 1},
			semantic: true,
			zoom:     1,
		}}
		return body, nil

	case protocol.MultiSensorConfig:
		if err := c.Validate(); err != nil {
			return nil, err
		}
		space, err := lookupSpace(c.ActionSpace)
		if err != nil {
			return nil, err
		}
		body := &agentBody{
			id:     c.AgentID,
			pos:    mat32.Vec3{Y: float32(c.Height)},
			rot:    mat32.Quat{W: 1},
			rigRot: mat32.Quat{W: 1},
			space:  space,
		}
		if c.Position != nil {
			body.pos = toVec3(*c.Position)
		}
		for i, id := range c.SensorIDs {
			def := sensorDef{
				id:       id,
				res:      DefaultResolution,
				rotation: mat32.Quat{W: 1},
				zoom:     1,
			}
			if len(c.Resolutions) > 0 {
				def.res = c.Resolutions[i]
			}
			if len(c.Positions) > 0 {
				def.offset = toVec3(c.Positions[i])
			}
			if len(c.Rotations) > 0 {
				def.rotation = toQuat(c.Rotations[i])
			}
			if len(c.Semantics) > 0 {
				def.semantic = c.Semantics[i]
			}
			if len(c.Zooms) > 0 && c.Zooms[i] > 0 {
				def.zoom = c.Zooms[i]
			}
			body.sensors = append(body.sensors, def)
		}
		return body, nil

	default:
		return nil, fmt.Errorf("unsupported agent config type %T", cfg)
	}
}

func lookupSpace(name *string) (map[string]bool, error) {
	if name == nil || *name == "" {
		return nil, nil
	}
	space, ok := actionSpaces[*name]
	if !ok {
		return nil, fmt.Errorf("unknown action space %q", *name)
	}
	return space, nil
}

// AddObject places one object and assigns its identity. A semantic id in
// the config is honored; otherwise one is allocated.
func (e *Engine) AddObject(cfg protocol.ObjectConfig) (protocol.ObjectInfo, error) {
	if cfg.Name == "" {
		return protocol.ObjectInfo{}, fmt.Errorf("object config has no name")
	}

	sem := e.nextSemantic
	if cfg.SemanticID != nil {
		sem = *cfg.SemanticID
	} else {
		e.nextSemantic++
	}
	scale := toVec3(cfg.Scale)
	if scale == (mat32.Vec3{}) {
		scale = mat32.Vec3{X: 1, Y: 1, Z: 1}
	}
	rot := toQuat(cfg.Rotation)
	if rot == (mat32.Quat{}) {
		rot = mat32.Quat{W: 1}
	}

	obj := object{
		id:       e.nextObjectID,
		name:     cfg.Name,
		pos:      toVec3(cfg.Position),
		rot:      rot,
		scale:    scale,
		semantic: sem,
	}
	e.nextObjectID++
	e.objects = append(e.objects, obj)
	e.log.Debug("object placed", "name", obj.name, "id", obj.id, "semantic", obj.semantic)

	info := protocol.ObjectInfo{ObjectID: obj.id}
	semCopy := sem
	info.SemanticID = &semCopy
	return info, nil
}

// RemoveAllObjects clears the scene of objects, including the ones placed
// at initialization.
func (e *Engine) RemoveAllObjects() error {
	e.objects = e.objects[:0]
	return nil
}

// Step applies the actions in order, then renders. A failed action aborts
// the batch; earlier actions in the batch remain applied.
func (e *Engine) Step(actions []protocol.Action) (protocol.Observations, protocol.ProprioceptiveState, error) {
	for i, a := range actions {
		if err := e.apply(a); err != nil {
			return nil, nil, fmt.Errorf("action %d (%s): %w", i, actionName(a), err)
		}
	}
	return e.render(), e.state(), nil
}

// Reset restores the initial scene: agent poses, the objects from the
// scene configuration, and the observation noise stream.
func (e *Engine) Reset() (protocol.Observations, protocol.ProprioceptiveState, error) {
	e.objects = append(e.objects[:0], e.initialObjects...)
	for i := range e.initialAgents {
		restored := e.initialAgents[i]
		restored.sensors = append([]sensorDef(nil), e.initialAgents[i].sensors...)
		*e.agents[i] = restored
	}
	e.rng = rand.New(rand.NewPCG(e.seed, e.seed))
	e.log.Debug("scene reset", "objects", len(e.objects))
	return e.render(), e.state(), nil
}

// Close releases the engine. The geometric engine holds no external
// resources, so this only logs.
func (e *Engine) Close() error {
	e.log.Info("engine closed")
	return nil
}

func (e *Engine) snapshot() {
	e.initialObjects = append([]object(nil), e.objects...)
	e.initialAgents = make([]agentBody, len(e.agents))
	for i, a := range e.agents {
		e.initialAgents[i] = *a
		e.initialAgents[i].sensors = append([]sensorDef(nil), a.sensors...)
	}
}

func (e *Engine) apply(a protocol.Action) error {
	body, ok := e.byID[a.Agent()]
	if !ok {
		return fmt.Errorf("unknown agent %q", a.Agent())
	}
	if body.space != nil && !body.space[actionName(a)] {
		return fmt.Errorf("not in agent's action space")
	}

	switch act := a.(type) {
	case protocol.MoveForward:
		body.pos = body.pos.Add(rotate(body.rot, forward).MulScalar(float32(act.Distance)))

	case protocol.MoveTangentially:
		dir := toVec3(act.Direction)
		if dir == (mat32.Vec3{}) {
			return fmt.Errorf("zero direction")
		}
		dir = rotate(body.rot, dir.Normal())
		body.pos = body.pos.Add(dir.MulScalar(float32(act.Distance)))

	case protocol.TurnLeft:
		body.rot = quatMul(yawQuat(float32(act.RotationDegrees)), body.rot)

	case protocol.TurnRight:
		body.rot = quatMul(yawQuat(float32(-act.RotationDegrees)), body.rot)

	case protocol.LookUp:
		body.setRigPitch(clampDegrees(body.rigPitch+float32(act.RotationDegrees),
			float32(act.ConstraintDegrees)))

	case protocol.LookDown:
		body.setRigPitch(clampDegrees(body.rigPitch-float32(act.RotationDegrees),
			float32(act.ConstraintDegrees)))

	case protocol.OrientHorizontal:
		// Translate in the current body frame, then rotate.
		left := rotate(body.rot, mat32.Vec3{X: -1}).MulScalar(float32(act.LeftDistance))
		fwd := rotate(body.rot, forward).MulScalar(float32(act.ForwardDistance))
		body.pos = body.pos.Add(left).Add(fwd)
		body.rot = quatMul(yawQuat(float32(act.RotationDegrees)), body.rot)

	case protocol.OrientVertical:
		down := rotate(body.rot, mat32.Vec3{Y: -1}).MulScalar(float32(act.DownDistance))
		fwd := rotate(body.rot, forward).MulScalar(float32(act.ForwardDistance))
		body.pos = body.pos.Add(down).Add(fwd)
		body.setRigPitch(body.rigPitch + float32(act.RotationDegrees))

	case protocol.SetYaw:
		body.rot = yawQuat(float32(act.RotationDegrees))

	case protocol.SetAgentPitch:
		yaw := yawOf(body.rot)
		body.rot = quatMul(yawQuat(yaw), pitchQuat(float32(act.PitchDegrees)))

	case protocol.SetAgentPose:
		body.pos = toVec3(act.Location)
		body.rot = toQuat(act.Rotation)

	case protocol.SetSensorPitch:
		body.setRigPitch(float32(act.PitchDegrees))

	case protocol.SetSensorPose:
		body.rigPos = toVec3(act.Location)
		body.rigRot = toQuat(act.Rotation)
		body.rigPitch = pitchOf(body.rigRot)

	case protocol.SetSensorRotation:
		body.rigRot = toQuat(act.Rotation)
		body.rigPitch = pitchOf(body.rigRot)

	default:
		return fmt.Errorf("unsupported action type %T", a)
	}
	return nil
}

func (b *agentBody) setRigPitch(degrees float32) {
	b.rigPitch = degrees
	b.rigRot = pitchQuat(degrees)
}

// state reports every agent's pose. Steps through this engine always
// render, so MotorOnlyStep is always present and false.
func (e *Engine) state() protocol.ProprioceptiveState {
	state := make(protocol.ProprioceptiveState, len(e.agents))
	for _, body := range e.agents {
		motorOnly := false
		agentState := protocol.AgentState{
			Position:      fromVec3(body.pos),
			Rotation:      fromQuat(body.rot),
			MotorOnlyStep: &motorOnly,
			Sensors:       make(map[protocol.SensorID]protocol.SensorState, len(body.sensors)),
		}
		for _, def := range body.sensors {
			agentState.Sensors[def.id] = protocol.SensorState{
				Position: fromVec3(body.rigPos.Add(rotate(body.rigRot, def.offset))),
				Rotation: fromQuat(quatMul(body.rigRot, def.rotation)),
			}
		}
		state[body.id] = agentState
	}
	return state
}
