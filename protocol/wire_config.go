// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import "google.golang.org/protobuf/encoding/protowire"

// AgentConfig oneof: single_sensor=1, multi_sensor=2.

func appendAgentConfig(b []byte, num protowire.Number, c AgentConfig) ([]byte, error) {
	var env []byte
	switch v := c.(type) {
	case SingleSensorConfig:
		sub := appendString(nil, 1, string(v.AgentID))
		sub = appendString(sub, 2, string(v.SensorID))
		if v.Resolution != nil {
			sub = appendResolution(sub, 3, *v.Resolution)
		}
		if v.ActionSpace != nil {
			sub = appendString(sub, 4, *v.ActionSpace)
		}
		env = appendBytesField(nil, 1, sub)
	case MultiSensorConfig:
		if err := v.Validate(); err != nil {
			return nil, err
		}
		sub := appendString(nil, 1, string(v.AgentID))
		for _, id := range v.SensorIDs {
			sub = appendString(sub, 2, string(id))
		}
		sub = appendDouble(sub, 3, v.Height)
		if v.Position != nil {
			sub = appendVector(sub, 4, *v.Position)
		}
		for _, r := range v.Resolutions {
			sub = appendResolution(sub, 5, r)
		}
		for _, p := range v.Positions {
			sub = appendVector(sub, 6, p)
		}
		for _, q := range v.Rotations {
			sub = appendQuaternion(sub, 7, q)
		}
		for _, s := range v.Semantics {
			sub = appendBool(sub, 8, s)
		}
		for _, z := range v.Zooms {
			sub = appendDouble(sub, 9, z)
		}
		if v.ActionSpace != nil {
			sub = appendString(sub, 10, *v.ActionSpace)
		}
		env = appendBytesField(nil, 2, sub)
	default:
		return nil, Errorf("unsupported agent config kind %T", c)
	}
	return appendBytesField(b, num, env), nil
}

func decodeAgentConfig(b []byte) (AgentConfig, error) {
	var (
		cfg  AgentConfig
		seen bool
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
		switch num {
		case 1:
			cfg, err = decodeSingleSensorConfig(body)
		case 2:
			cfg, err = decodeMultiSensorConfig(body)
		default:
			return nil, Errorf("unknown agent config discriminant %d", num)
		}
		if err != nil {
			return nil, err
		}
		seen = true
	}
	if !seen {
		return nil, Errorf("agent config with no variant set")
	}
	return cfg, nil
}

func decodeSingleSensorConfig(b []byte) (SingleSensorConfig, error) {
	var c SingleSensorConfig
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil || !ok {
			return c, err
		}
		switch num {
		case 1:
			var s string
			s, err = fs.str(typ)
			c.AgentID = AgentID(s)
		case 2:
			var s string
			s, err = fs.str(typ)
			c.SensorID = SensorID(s)
		case 3:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				var r Resolution
				r, err = decodeResolution(raw)
				c.Resolution = &r
			}
		case 4:
			var s string
			s, err = fs.str(typ)
			c.ActionSpace = &s
		default:
			err = fs.skip(num, typ)
		}
		if err != nil {
			return c, err
		}
	}
}

func decodeMultiSensorConfig(b []byte) (MultiSensorConfig, error) {
	var c MultiSensorConfig
	var semantics []uint64
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil {
			return c, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			var s string
			s, err = fs.str(typ)
			c.AgentID = AgentID(s)
		case 2:
			var s string
			s, err = fs.str(typ)
			c.SensorIDs = append(c.SensorIDs, SensorID(s))
		case 3:
			c.Height, err = fs.double(typ)
		case 4:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				var p VectorXYZ
				p, err = decodeVector(raw)
				c.Position = &p
			}
		case 5:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				var r Resolution
				r, err = decodeResolution(raw)
				c.Resolutions = append(c.Resolutions, r)
			}
		case 6:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				var p VectorXYZ
				p, err = decodeVector(raw)
				c.Positions = append(c.Positions, p)
			}
		case 7:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				var q QuaternionWXYZ
				q, err = decodeQuaternion(raw)
				c.Rotations = append(c.Rotations, q)
			}
		case 8:
			semantics, err = fs.packedVarints(typ, semantics)
		case 9:
			c.Zooms, err = fs.packedDoubles(typ, c.Zooms)
		case 10:
			var s string
			s, err = fs.str(typ)
			c.ActionSpace = &s
		default:
			err = fs.skip(num, typ)
		}
		if err != nil {
			return c, err
		}
	}
	for _, u := range semantics {
		c.Semantics = append(c.Semantics, u != 0)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// ObjectConfig: name=1, position=2, rotation=3, scale=4,
// semantic_id=5 (presence-tagged), primary_target_object=6 (presence-tagged).

func appendObjectConfig(b []byte, num protowire.Number, o ObjectConfig) []byte {
	return appendBytesField(b, num, objectConfigBody(o))
}

func objectConfigBody(o ObjectConfig) []byte {
	sub := appendString(nil, 1, o.Name)
	sub = appendVector(sub, 2, o.Position)
	sub = appendQuaternion(sub, 3, o.Rotation)
	sub = appendVector(sub, 4, o.Scale)
	if o.SemanticID != nil {
		sub = appendVarint(sub, 5, uint64(*o.SemanticID))
	}
	if o.PrimaryTargetObject != nil {
		sub = appendVarint(sub, 6, uint64(*o.PrimaryTargetObject))
	}
	return sub
}

func decodeObjectConfig(b []byte) (ObjectConfig, error) {
	var o ObjectConfig
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil || !ok {
			return o, err
		}
		switch num {
		case 1:
			o.Name, err = fs.str(typ)
		case 2:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				o.Position, err = decodeVector(raw)
			}
		case 3:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				o.Rotation, err = decodeQuaternion(raw)
			}
		case 4:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				o.Scale, err = decodeVector(raw)
			}
		case 5:
			var u uint64
			u, err = fs.varint(typ)
			id := SemanticID(u)
			o.SemanticID = &id
		case 6:
			var u uint64
			u, err = fs.varint(typ)
			id := ObjectID(u)
			o.PrimaryTargetObject = &id
		default:
			err = fs.skip(num, typ)
		}
		if err != nil {
			return o, err
		}
	}
}

// SceneConfig: agent=1, objects=2, scene_id=3 (presence-tagged),
// seed=4, data_path=5 (presence-tagged).

func appendSceneConfig(b []byte, num protowire.Number, c SceneConfig) ([]byte, error) {
	if c.Agent == nil {
		return nil, Errorf("scene config without agent config")
	}
	sub, err := appendAgentConfig(nil, 1, c.Agent)
	if err != nil {
		return nil, err
	}
	for _, o := range c.Objects {
		sub = appendObjectConfig(sub, 2, o)
	}
	if c.SceneID != nil {
		sub = appendString(sub, 3, *c.SceneID)
	}
	sub = appendVarint(sub, 4, uint64(c.Seed))
	if c.DataPath != nil {
		sub = appendString(sub, 5, *c.DataPath)
	}
	return appendBytesField(b, num, sub), nil
}

func decodeSceneConfig(b []byte) (SceneConfig, error) {
	var c SceneConfig
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil {
			return c, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				c.Agent, err = decodeAgentConfig(raw)
			}
		case 2:
			var raw []byte
			raw, err = fs.bytes(typ)
			if err == nil {
				var o ObjectConfig
				o, err = decodeObjectConfig(raw)
				c.Objects = append(c.Objects, o)
			}
		case 3:
			var s string
			s, err = fs.str(typ)
			c.SceneID = &s
		case 4:
			var u uint64
			u, err = fs.varint(typ)
			c.Seed = int64(u)
		case 5:
			var s string
			s, err = fs.str(typ)
			c.DataPath = &s
		default:
			err = fs.skip(num, typ)
		}
		if err != nil {
			return c, err
		}
	}
	if c.Agent == nil {
		return c, Errorf("scene config without agent config")
	}
	return c, nil
}
