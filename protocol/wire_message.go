// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import "google.golang.org/protobuf/encoding/protowire"

// Request oneof: init=1, add_object=2, remove_all_objects=3, step=4,
// reset=5, close=6.
// Response oneof: init=1, add_object=2, remove_all_objects=3, step=4,
// reset=5, close=6, error=7.
const (
	msgInit             protowire.Number = 1
	msgAddObject        protowire.Number = 2
	msgRemoveAllObjects protowire.Number = 3
	msgStep             protowire.Number = 4
	msgReset            protowire.Number = 5
	msgClose            protowire.Number = 6
	msgError            protowire.Number = 7
)

// EncodeRequest encodes one Request envelope.
func EncodeRequest(r Request) ([]byte, error) {
	switch v := r.(type) {
	case InitRequest:
		body, err := appendSceneConfig(nil, 1, v.Config)
		if err != nil {
			return nil, err
		}
		return appendBytesField(nil, msgInit, body), nil
	case AddObjectRequest:
		// The add_object body is the object config message itself.
		return appendBytesField(nil, msgAddObject, objectConfigBody(v.Object)), nil
	case RemoveAllObjectsRequest:
		return appendBytesField(nil, msgRemoveAllObjects, nil), nil
	case StepRequest:
		var body []byte
		for _, a := range v.Actions {
			var err error
			body, err = appendAction(body, 1, a)
			if err != nil {
				return nil, err
			}
		}
		return appendBytesField(nil, msgStep, body), nil
	case ResetRequest:
		return appendBytesField(nil, msgReset, nil), nil
	case CloseRequest:
		return appendBytesField(nil, msgClose, nil), nil
	default:
		return nil, Errorf("unsupported request kind %T", r)
	}
}

// DecodeRequest decodes one Request envelope. An unknown discriminant or
// an empty envelope is a protocol error.
func DecodeRequest(b []byte) (Request, error) {
	var (
		req  Request
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
		case msgInit:
			cfg, err := decodeInitBody(body)
			if err != nil {
				return nil, err
			}
			req = InitRequest{Config: cfg}
		case msgAddObject:
			obj, err := decodeObjectConfig(body)
			if err != nil {
				return nil, err
			}
			req = AddObjectRequest{Object: obj}
		case msgRemoveAllObjects:
			req = RemoveAllObjectsRequest{}
		case msgStep:
			actions, err := decodeStepBody(body)
			if err != nil {
				return nil, err
			}
			req = StepRequest{Actions: actions}
		case msgReset:
			req = ResetRequest{}
		case msgClose:
			req = CloseRequest{}
		default:
			return nil, Errorf("unknown request discriminant %d", num)
		}
		seen = true
	}
	if !seen {
		return nil, Errorf("request with no variant set")
	}
	return req, nil
}

func decodeInitBody(b []byte) (SceneConfig, error) {
	var cfg SceneConfig
	var seen bool
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil {
			return cfg, err
		}
		if !ok {
			break
		}
		if num != 1 {
			if err := fs.skip(num, typ); err != nil {
				return cfg, err
			}
			continue
		}
		raw, err := fs.bytes(typ)
		if err != nil {
			return cfg, err
		}
		cfg, err = decodeSceneConfig(raw)
		if err != nil {
			return cfg, err
		}
		seen = true
	}
	if !seen {
		return cfg, Errorf("init request without scene config")
	}
	return cfg, nil
}

func decodeStepBody(b []byte) ([]Action, error) {
	var actions []Action
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return actions, nil
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
		a, err := decodeAction(raw)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
}

// EncodeResponse encodes one Response envelope.
func EncodeResponse(r Response) ([]byte, error) {
	switch v := r.(type) {
	case InitResponse:
		return appendBytesField(nil, msgInit, nil), nil
	case AddObjectResponse:
		body := appendVarint(nil, 1, uint64(v.Info.ObjectID))
		if v.Info.SemanticID != nil {
			body = appendVarint(body, 2, uint64(*v.Info.SemanticID))
		}
		return appendBytesField(nil, msgAddObject, body), nil
	case RemoveAllObjectsResponse:
		return appendBytesField(nil, msgRemoveAllObjects, nil), nil
	case StepResponse:
		body, err := appendStepBody(v.Observations, v.State)
		if err != nil {
			return nil, err
		}
		return appendBytesField(nil, msgStep, body), nil
	case ResetResponse:
		body, err := appendStepBody(v.Observations, v.State)
		if err != nil {
			return nil, err
		}
		return appendBytesField(nil, msgReset, body), nil
	case CloseResponse:
		return appendBytesField(nil, msgClose, nil), nil
	case ErrorResponse:
		return appendBytesField(nil, msgError, appendString(nil, 1, v.Msg)), nil
	default:
		return nil, Errorf("unsupported response kind %T", r)
	}
}

func appendStepBody(obs Observations, state ProprioceptiveState) ([]byte, error) {
	body, err := appendObservations(nil, 1, obs)
	if err != nil {
		return nil, err
	}
	return appendState(body, 2, state), nil
}

// DecodeResponse decodes one Response envelope.
func DecodeResponse(b []byte) (Response, error) {
	var (
		resp Response
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
		case msgInit:
			resp = InitResponse{}
		case msgAddObject:
			info, err := decodeObjectInfo(body)
			if err != nil {
				return nil, err
			}
			resp = AddObjectResponse{Info: info}
		case msgRemoveAllObjects:
			resp = RemoveAllObjectsResponse{}
		case msgStep:
			obs, state, err := decodeStepResponseBody(body)
			if err != nil {
				return nil, err
			}
			resp = StepResponse{Observations: obs, State: state}
		case msgReset:
			obs, state, err := decodeStepResponseBody(body)
			if err != nil {
				return nil, err
			}
			resp = ResetResponse{Observations: obs, State: state}
		case msgClose:
			resp = CloseResponse{}
		case msgError:
			msg, err := decodeErrorBody(body)
			if err != nil {
				return nil, err
			}
			resp = ErrorResponse{Msg: msg}
		default:
			return nil, Errorf("unknown response discriminant %d", num)
		}
		seen = true
	}
	if !seen {
		return nil, Errorf("response with no variant set")
	}
	return resp, nil
}

func decodeObjectInfo(b []byte) (ObjectInfo, error) {
	var info ObjectInfo
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil || !ok {
			return info, err
		}
		switch num {
		case 1:
			var u uint64
			u, err = fs.varint(typ)
			info.ObjectID = ObjectID(u)
		case 2:
			var u uint64
			u, err = fs.varint(typ)
			id := SemanticID(u)
			info.SemanticID = &id
		default:
			err = fs.skip(num, typ)
		}
		if err != nil {
			return info, err
		}
	}
}

func decodeStepResponseBody(b []byte) (Observations, ProprioceptiveState, error) {
	obs := make(Observations)
	state := make(ProprioceptiveState)
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return obs, state, nil
		}
		switch num {
		case 1:
			raw, err := fs.bytes(typ)
			if err != nil {
				return nil, nil, err
			}
			obs, err = decodeObservations(raw)
			if err != nil {
				return nil, nil, err
			}
		case 2:
			raw, err := fs.bytes(typ)
			if err != nil {
				return nil, nil, err
			}
			state, err = decodeState(raw)
			if err != nil {
				return nil, nil, err
			}
		default:
			if err := fs.skip(num, typ); err != nil {
				return nil, nil, err
			}
		}
	}
}

func decodeErrorBody(b []byte) (string, error) {
	var msg string
	fs := fields{b}
	for {
		num, typ, ok, err := fs.next()
		if err != nil || !ok {
			return msg, err
		}
		if num == 1 {
			msg, err = fs.str(typ)
		} else {
			err = fs.skip(num, typ)
		}
		if err != nil {
			return msg, err
		}
	}
}
