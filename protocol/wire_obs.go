// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"maps"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"
)

// SensorObservations: sensor_id=1, then one Tensor field per modality.
// Every modality travels as a full Tensor so shape always accompanies the
// payload; there is no assumed resolution anywhere in the decode path.
var modalityFields = map[Modality]protowire.Number{
	ModalityRaw:             2,
	ModalityRGBA:            3,
	ModalityDepth:           4,
	ModalitySemantic:        5,
	ModalitySemantic3D:      6,
	ModalitySensorFrameData: 7,
	ModalityWorldCamera:     8,
	ModalityPixelLoc:        9,
}

var fieldModalities = func() map[protowire.Number]Modality {
	m := make(map[protowire.Number]Modality, len(modalityFields))
	for mod, num := range modalityFields {
		m[num] = mod
	}
	return m
}()

// Observations: agent_observations=1, each {agent_id=1, sensors=2}.
// Encoding sorts map keys so identical observations produce identical
// bytes.

func appendObservations(b []byte, num protowire.Number, obs Observations) ([]byte, error) {
	var sub []byte
	for _, agentID := range slices.Sorted(maps.Keys(obs)) {
		agent := appendString(nil, 1, string(agentID))
		sensors := obs[agentID]
		for _, sensorID := range slices.Sorted(maps.Keys(sensors)) {
			sensor := appendString(nil, 1, string(sensorID))
			mods := sensors[sensorID]
			for _, mod := range slices.Sorted(maps.Keys(mods)) {
				fnum, ok := modalityFields[mod]
				if !ok {
					return nil, Errorf("unsupported modality %q", mod)
				}
				var err error
				sensor, err = appendTensor(sensor, fnum, mods[mod])
				if err != nil {
					return nil, err
				}
			}
			agent = appendBytesField(agent, 2, sensor)
		}
		sub = appendBytesField(sub, 1, agent)
	}
	return appendBytesField(b, num, sub), nil
}

func decodeObservations(b []byte) (Observations, error) {
	obs := make(Observations)
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return obs, nil
		}
		if num != 1 {
			if err := fs.skip(num, typ); err != nil {
				return nil, err
			}
			continue
		}
		raw, err := fs.bytes(typ)
		if err != nil {
			return nil, err
		}
		agentID, sensors, err := decodeAgentObservations(raw)
		if err != nil {
			return nil, err
		}
		obs[agentID] = sensors
	}
}

func decodeAgentObservations(b []byte) (AgentID, AgentObservations, error) {
	var agentID AgentID
	sensors := make(AgentObservations)
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil {
			return "", nil, err
		}
		if !ok {
			return agentID, sensors, nil
		}
		switch num {
		case 1:
			s, err := fs.str(typ)
			if err != nil {
				return "", nil, err
			}
			agentID = AgentID(s)
		case 2:
			raw, err := fs.bytes(typ)
			if err != nil {
				return "", nil, err
			}
			sensorID, mods, err := decodeSensorObservations(raw)
			if err != nil {
				return "", nil, err
			}
			sensors[sensorID] = mods
		default:
			if err := fs.skip(num, typ); err != nil {
				return "", nil, err
			}
		}
	}
}

func decodeSensorObservations(b []byte) (SensorID, SensorObservations, error) {
	var sensorID SensorID
	mods := make(SensorObservations)
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil {
			return "", nil, err
		}
		if !ok {
			return sensorID, mods, nil
		}
		if num == 1 {
			s, err := fs.str(typ)
			if err != nil {
				return "", nil, err
			}
			sensorID = SensorID(s)
			continue
		}
		if mod, known := fieldModalities[num]; known {
			raw, err := fs.bytes(typ)
			if err != nil {
				return "", nil, err
			}
			t, err := decodeTensor(raw)
			if err != nil {
				return "", nil, err
			}
			mods[mod] = t
			continue
		}
		if err := fs.skip(num, typ); err != nil {
			return "", nil, err
		}
	}
}

// ProprioceptiveState: agent_states=1, each {agent_id=1, position=2,
// rotation=3, motor_only_step=4 (presence-tagged), sensor_states=5 each
// {sensor_id=1, position=2, rotation=3}}.

func appendState(b []byte, num protowire.Number, state ProprioceptiveState) []byte {
	var sub []byte
	for _, agentID := range slices.Sorted(maps.Keys(state)) {
		st := state[agentID]
		agent := appendString(nil, 1, string(agentID))
		agent = appendVector(agent, 2, st.Position)
		agent = appendQuaternion(agent, 3, st.Rotation)
		if st.MotorOnlyStep != nil {
			agent = appendBool(agent, 4, *st.MotorOnlyStep)
		}
		for _, sensorID := range slices.Sorted(maps.Keys(st.Sensors)) {
			ss := st.Sensors[sensorID]
			sensor := appendString(nil, 1, string(sensorID))
			sensor = appendVector(sensor, 2, ss.Position)
			sensor = appendQuaternion(sensor, 3, ss.Rotation)
			agent = appendBytesField(agent, 5, sensor)
		}
		sub = appendBytesField(sub, 1, agent)
	}
	return appendBytesField(b, num, sub)
}

func decodeState(b []byte) (ProprioceptiveState, error) {
	state := make(ProprioceptiveState)
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return state, nil
		}
		if num != 1 {
			if err := fs.skip(num, typ); err != nil {
				return nil, err
			}
			continue
		}
		raw, err := fs.bytes(typ)
		if err != nil {
			return nil, err
		}
		agentID, st, err := decodeAgentState(raw)
		if err != nil {
			return nil, err
		}
		state[agentID] = st
	}
}

func decodeAgentState(b []byte) (AgentID, AgentState, error) {
	var agentID AgentID
	st := AgentState{Sensors: make(map[SensorID]SensorState)}
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil {
			return "", st, err
		}
		if !ok {
			return agentID, st, nil
		}
		switch num {
		case 1:
			var s string
			s, err = fs.str(typ)
			agentID = AgentID(s)
		case 2:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				st.Position, err = decodeVector(raw)
			}
		case 3:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				st.Rotation, err = decodeQuaternion(raw)
			}
		case 4:
			var v bool
			v, err = fs.boolean(typ)
			st.MotorOnlyStep = &v
		case 5:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				err = decodeSensorState(raw, st.Sensors)
			}
		default:
			err = fs.skip(num, typ)
		}
		if err != nil {
			return "", st, err
		}
	}
}

func decodeSensorState(b []byte, into map[SensorID]SensorState) error {
	var sensorID SensorID
	var ss SensorState
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			var s string
			s, err = fs.str(typ)
			sensorID = SensorID(s)
		case 2:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				ss.Position, err = decodeVector(raw)
			}
		case 3:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				ss.Rotation, err = decodeQuaternion(raw)
			}
		default:
			err = fs.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
	into[sensorID] = ss
	return nil
}
