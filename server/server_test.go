// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/simweaver/simbridge/protocol"
	"github.com/simweaver/simbridge/transport"
)

type fakeEngine struct {
	objects   int
	stepErr   error
	steps     int
	resets    int
	closed    bool
	lastBatch []protocol.Action
}

func (f *fakeEngine) AddObject(cfg protocol.ObjectConfig) (protocol.ObjectInfo, error) {
	f.objects++
	return protocol.ObjectInfo{ObjectID: protocol.ObjectID(f.objects)}, nil
}

func (f *fakeEngine) RemoveAllObjects() error {
	f.objects = 0
	return nil
}

func (f *fakeEngine) Step(actions []protocol.Action) (protocol.Observations, protocol.ProprioceptiveState, error) {
	if f.stepErr != nil {
		return nil, nil, f.stepErr
	}
	f.steps++
	f.lastBatch = actions
	obs := protocol.Observations{
		"agent_id_0": {
			"sensor_id_0": {
				protocol.ModalityDepth: mustTensor(protocol.Float32, []int{1, 1}, make([]byte, 4)),
			},
		},
	}
	state := protocol.ProprioceptiveState{
		"agent_id_0": {Sensors: map[protocol.SensorID]protocol.SensorState{}},
	}
	return obs, state, nil
}

func (f *fakeEngine) Reset() (protocol.Observations, protocol.ProprioceptiveState, error) {
	f.resets++
	return protocol.Observations{}, protocol.ProprioceptiveState{}, nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func mustTensor(dt protocol.DType, shape []int, data []byte) *protocol.Tensor {
	t, err := protocol.NewTensor(dt, shape, data)
	if err != nil {
		panic(err)
	}
	return t
}

// testHarness runs a server over a queue transport and gives the test the
// client side of the exchange.
type testHarness struct {
	q      *transport.Queue
	engine *fakeEngine
	served chan error
}

func newHarness(t *testing.T, factory EngineFactory) *testHarness {
	t.Helper()
	h := &testHarness{
		q:      transport.NewQueue(transport.Config{Channel: "test", Timeout: time.Second}),
		served: make(chan error, 1),
	}
	if factory == nil {
		h.engine = &fakeEngine{}
		factory = func(protocol.SceneConfig) (Engine, error) { return h.engine, nil }
	}
	require.NoError(t, h.q.Start())
	srv := New(h.q, factory, nil)
	go func() {
		h.served <- srv.Serve(context.Background())
	}()
	t.Cleanup(func() { h.q.Close() })
	return h
}

func (h *testHarness) roundTrip(t *testing.T, req protocol.Request) protocol.Response {
	t.Helper()
	ctx := context.Background()
	data, err := protocol.EncodeRequest(req)
	require.NoError(t, err)
	require.NoError(t, h.q.SendRequest(ctx, data))
	raw, err := h.q.ReceiveResponse(ctx)
	require.NoError(t, err)
	resp, err := protocol.DecodeResponse(raw)
	require.NoError(t, err)
	return resp
}

func (h *testHarness) waitServe(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.served:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("serve loop did not exit")
		return nil
	}
}

func initRequest() protocol.InitRequest {
	return protocol.InitRequest{Config: protocol.SceneConfig{
		Agent: protocol.SingleSensorConfig{
			AgentID:    "agent_id_0",
			SensorID:   "sensor_id_0",
			Resolution: &protocol.Resolution{Height: 16, Width: 16},
		},
	}}
}

func TestServeLifecycle(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.roundTrip(t, initRequest())
	require.IsType(t, protocol.InitResponse{}, resp)

	resp = h.roundTrip(t, protocol.AddObjectRequest{Object: protocol.ObjectConfig{Name: "mug"}})
	add, ok := resp.(protocol.AddObjectResponse)
	require.True(t, ok)
	require.Equal(t, protocol.ObjectID(1), add.Info.ObjectID)

	resp = h.roundTrip(t, protocol.StepRequest{Actions: []protocol.Action{
		protocol.MoveForward{AgentID: "agent_id_0", Distance: 0.25},
	}})
	step, ok := resp.(protocol.StepResponse)
	require.True(t, ok)
	require.Contains(t, step.Observations, protocol.AgentID("agent_id_0"))
	require.Len(t, h.engine.lastBatch, 1)

	resp = h.roundTrip(t, protocol.ResetRequest{})
	require.IsType(t, protocol.ResetResponse{}, resp)
	require.Equal(t, 1, h.engine.resets)

	resp = h.roundTrip(t, protocol.CloseRequest{})
	require.IsType(t, protocol.CloseResponse{}, resp)
	require.NoError(t, h.waitServe(t))
	require.True(t, h.engine.closed)
}

func TestServeRejectsRequestsBeforeInit(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.roundTrip(t, protocol.StepRequest{})
	errResp, ok := resp.(protocol.ErrorResponse)
	require.True(t, ok)
	require.Contains(t, errResp.Msg, "not initialized")

	// The loop survives the rejection.
	resp = h.roundTrip(t, initRequest())
	require.IsType(t, protocol.InitResponse{}, resp)
}

func TestServeRejectsSecondInit(t *testing.T) {
	h := newHarness(t, nil)

	require.IsType(t, protocol.InitResponse{}, h.roundTrip(t, initRequest()))
	resp := h.roundTrip(t, initRequest())
	errResp, ok := resp.(protocol.ErrorResponse)
	require.True(t, ok)
	require.Contains(t, errResp.Msg, "already initialized")
}

func TestServePreservesEngineErrorText(t *testing.T) {
	h := newHarness(t, nil)
	require.IsType(t, protocol.InitResponse{}, h.roundTrip(t, initRequest()))

	h.engine.stepErr = errors.New("collision mesh missing for object 7")
	resp := h.roundTrip(t, protocol.StepRequest{})
	errResp, ok := resp.(protocol.ErrorResponse)
	require.True(t, ok)
	require.Equal(t, "collision mesh missing for object 7", errResp.Msg)

	// An engine error is not fatal: the next request still works.
	h.engine.stepErr = nil
	resp = h.roundTrip(t, protocol.StepRequest{})
	require.IsType(t, protocol.StepResponse{}, resp)
}

func TestServeReportsFactoryFailure(t *testing.T) {
	h := newHarness(t, func(protocol.SceneConfig) (Engine, error) {
		return nil, errors.New("scene dataset not found")
	})

	resp := h.roundTrip(t, initRequest())
	errResp, ok := resp.(protocol.ErrorResponse)
	require.True(t, ok)
	require.Equal(t, "scene dataset not found", errResp.Msg)
}

func TestServeStopsOnUndecodableRequest(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.q.SendRequest(ctx, []byte{0xff, 0xff, 0xff}))
	raw, err := h.q.ReceiveResponse(ctx)
	require.NoError(t, err)
	resp, err := protocol.DecodeResponse(raw)
	require.NoError(t, err)
	require.IsType(t, protocol.ErrorResponse{}, resp)
	require.Error(t, h.waitServe(t))
}

func TestServeStopsWhenChannelCloses(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.q.Close())
	require.NoError(t, h.waitServe(t))
}
