// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestInitRequestRoundTrip(t *testing.T) {
	res := Resolution{Height: 64, Width: 64}
	cfg := SceneConfig{
		Agent: SingleSensorConfig{
			AgentID:    "agent_id_0",
			SensorID:   "sensor_id_0",
			Resolution: &res,
		},
		Objects: []ObjectConfig{
			{
				Name:     "capsule3DSolid",
				Position: VectorXYZ{X: 0, Y: 1.5, Z: -0.2},
				Rotation: QuaternionWXYZ{W: 1},
				Scale:    VectorXYZ{X: 1, Y: 1, Z: 1},
			},
		},
		SceneID:  strptr("scene_0"),
		Seed:     42,
		DataPath: strptr("/data/objects"),
	}

	b, err := EncodeRequest(InitRequest{Config: cfg})
	require.NoError(t, err)

	got, err := DecodeRequest(b)
	require.NoError(t, err)
	init, ok := got.(InitRequest)
	require.True(t, ok)
	require.Equal(t, cfg, init.Config)
}

func TestMultiSensorConfigRoundTrip(t *testing.T) {
	pos := VectorXYZ{Y: 1.5}
	cfg := SceneConfig{
		Agent: MultiSensorConfig{
			AgentID:   "agent_id_0",
			SensorIDs: []SensorID{"patch", "view_finder"},
			Height:    0.0,
			Position:  &pos,
			Resolutions: []Resolution{
				{Height: 64, Width: 64},
				{Height: 256, Width: 256},
			},
			Positions: []VectorXYZ{{Z: -0.1}, {Z: -0.1}},
			Rotations: []QuaternionWXYZ{{W: 1}, {W: 1}},
			Semantics: []bool{true, false},
			Zooms:     []float64{10, 1},
		},
		Seed: 1337,
	}

	b, err := EncodeRequest(InitRequest{Config: cfg})
	require.NoError(t, err)

	got, err := DecodeRequest(b)
	require.NoError(t, err)
	require.Equal(t, cfg, got.(InitRequest).Config)
}

func TestMultiSensorConfigParallelArrayMismatch(t *testing.T) {
	cfg := SceneConfig{
		Agent: MultiSensorConfig{
			AgentID:   "agent_id_0",
			SensorIDs: []SensorID{"patch", "view_finder"},
			Zooms:     []float64{10}, // one entry for two sensors
		},
	}
	_, err := EncodeRequest(InitRequest{Config: cfg})
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
}

// Absent optional scalars must stay distinguishable from zero across the
// round trip.
func TestAddObjectOptionalPresence(t *testing.T) {
	withoutID := AddObjectRequest{Object: ObjectConfig{
		Name:  "sphere",
		Scale: VectorXYZ{X: 1, Y: 1, Z: 1},
	}}
	b, err := EncodeRequest(withoutID)
	require.NoError(t, err)
	got, err := DecodeRequest(b)
	require.NoError(t, err)
	require.Nil(t, got.(AddObjectRequest).Object.SemanticID)

	zero := SemanticID(0)
	withID := AddObjectRequest{Object: ObjectConfig{
		Name:       "sphere",
		Scale:      VectorXYZ{X: 1, Y: 1, Z: 1},
		SemanticID: &zero,
	}}
	b, err = EncodeRequest(withID)
	require.NoError(t, err)
	got, err = DecodeRequest(b)
	require.NoError(t, err)
	sem := got.(AddObjectRequest).Object.SemanticID
	require.NotNil(t, sem)
	require.Equal(t, SemanticID(0), *sem)
}

func TestStepResponseRoundTrip(t *testing.T) {
	depth, err := NewTensor(Float32, []int{2, 2}, make([]byte, 16))
	require.NoError(t, err)
	rgba, err := NewTensor(Uint8, []int{2, 2, 4}, make([]byte, 16))
	require.NoError(t, err)

	motorOnly := false
	resp := StepResponse{
		Observations: Observations{
			"agent_id_0": {
				"sensor_id_0": {
					ModalityDepth: depth,
					ModalityRGBA:  rgba,
				},
			},
		},
		State: ProprioceptiveState{
			"agent_id_0": {
				Position:      VectorXYZ{X: 0, Y: 1.5, Z: -0.25},
				Rotation:      QuaternionWXYZ{W: 1},
				MotorOnlyStep: &motorOnly,
				Sensors: map[SensorID]SensorState{
					"sensor_id_0": {
						Position: VectorXYZ{Y: 0.1},
						Rotation: QuaternionWXYZ{W: 1},
					},
				},
			},
		},
	}

	b, err := EncodeResponse(resp)
	require.NoError(t, err)

	got, err := DecodeResponse(b)
	require.NoError(t, err)
	require.Equal(t, Response(resp), got)
}

func TestErrorResponseRoundTrip(t *testing.T) {
	b, err := EncodeResponse(ErrorResponse{Msg: "object out of bounds"})
	require.NoError(t, err)

	got, err := DecodeResponse(b)
	require.NoError(t, err)
	require.Equal(t, Response(ErrorResponse{Msg: "object out of bounds"}), got)
}

func TestEmptyVariantsRoundTrip(t *testing.T) {
	for _, req := range []Request{RemoveAllObjectsRequest{}, ResetRequest{}, CloseRequest{}} {
		b, err := EncodeRequest(req)
		require.NoError(t, err)
		got, err := DecodeRequest(b)
		require.NoError(t, err)
		require.Equal(t, req, got)
	}
	for _, resp := range []Response{InitResponse{}, RemoveAllObjectsResponse{}, CloseResponse{}} {
		b, err := EncodeResponse(resp)
		require.NoError(t, err)
		got, err := DecodeResponse(b)
		require.NoError(t, err)
		require.Equal(t, resp, got)
	}
}

func TestDecodeUnknownDiscriminant(t *testing.T) {
	b := appendBytesField(nil, 42, nil)
	_, err := DecodeRequest(b)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)

	_, err = DecodeResponse(b)
	require.Error(t, err)
	require.ErrorAs(t, err, &perr)
}

func TestDecodeEmptyEnvelope(t *testing.T) {
	_, err := DecodeRequest(nil)
	require.Error(t, err)
	_, err = DecodeResponse(nil)
	require.Error(t, err)
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := DecodeRequest([]byte{0xff, 0xff, 0xff, 0xff, 0xff})
	require.Error(t, err)
}
