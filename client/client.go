// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package client runs the controlling side of the bridge: it sends one
// request at a time over a transport channel and turns the mirrored
// responses back into Go values. Engine failures arrive as
// ApplicationError; everything else is a channel or schema failure.
package client

import (
	"context"
	"fmt"

	"github.com/simweaver/simbridge/logging"
	"github.com/simweaver/simbridge/protocol"
	"github.com/simweaver/simbridge/transport"
)

// ApplicationError carries the textual message of an engine-side failure.
// The channel stays healthy after one of these; the caller may keep
// issuing requests.
type ApplicationError struct {
	Msg string
}

func (e *ApplicationError) Error() string {
	return "engine: " + e.Msg
}

// Client drives a simulation engine over one transport channel. Not safe
// for concurrent use: the protocol is a strict request/response
// alternation with no interleaving.
type Client struct {
	tr  transport.Transport
	log logging.Logger
}

// New builds a client over a transport. Call Connect before anything else.
func New(tr transport.Transport, log logging.Logger) *Client {
	if log == nil {
		log = logging.Nop()
	}
	return &Client{tr: tr, log: log}
}

// Connect establishes the channel, waiting out the server's startup. A
// *transport.FatalStartupError means the server never became ready.
func (c *Client) Connect(ctx context.Context) error {
	return c.tr.Connect(ctx)
}

// Init configures the engine. It must be the first request on the channel
// and must not be repeated.
func (c *Client) Init(ctx context.Context, cfg protocol.SceneConfig) error {
	resp, err := c.call(ctx, protocol.InitRequest{Config: cfg})
	if err != nil {
		return err
	}
	if _, ok := resp.(protocol.InitResponse); !ok {
		return unexpectedResponse("init", resp)
	}
	c.log.Debug("engine initialized")
	return nil
}

// AddObject places one object in the scene and reports its identity.
func (c *Client) AddObject(ctx context.Context, obj protocol.ObjectConfig) (protocol.ObjectInfo, error) {
	resp, err := c.call(ctx, protocol.AddObjectRequest{Object: obj})
	if err != nil {
		return protocol.ObjectInfo{}, err
	}
	add, ok := resp.(protocol.AddObjectResponse)
	if !ok {
		return protocol.ObjectInfo{}, unexpectedResponse("add object", resp)
	}
	return add.Info, nil
}

// RemoveAllObjects clears every placed object.
func (c *Client) RemoveAllObjects(ctx context.Context) error {
	resp, err := c.call(ctx, protocol.RemoveAllObjectsRequest{})
	if err != nil {
		return err
	}
	if _, ok := resp.(protocol.RemoveAllObjectsResponse); !ok {
		return unexpectedResponse("remove objects", resp)
	}
	return nil
}

// Step applies the given actions in order and returns the resulting
// observations and proprioceptive state. An empty batch is a valid
// observe-only step.
func (c *Client) Step(ctx context.Context, actions []protocol.Action) (protocol.Observations, protocol.ProprioceptiveState, error) {
	for i, a := range actions {
		if a == nil {
			return nil, nil, protocol.Errorf("step: action %d is nil", i)
		}
	}
	resp, err := c.call(ctx, protocol.StepRequest{Actions: actions})
	if err != nil {
		return nil, nil, err
	}
	step, ok := resp.(protocol.StepResponse)
	if !ok {
		return nil, nil, unexpectedResponse("step", resp)
	}
	return step.Observations, step.State, nil
}

// Reset restores the scene to its initial state and returns the first
// observations of the fresh episode.
func (c *Client) Reset(ctx context.Context) (protocol.Observations, protocol.ProprioceptiveState, error) {
	resp, err := c.call(ctx, protocol.ResetRequest{})
	if err != nil {
		return nil, nil, err
	}
	reset, ok := resp.(protocol.ResetResponse)
	if !ok {
		return nil, nil, unexpectedResponse("reset", resp)
	}
	return reset.Observations, reset.State, nil
}

// Close asks the server to stop, waits for the acknowledgment, then tears
// the channel down. The transport is closed even when the request fails.
func (c *Client) Close(ctx context.Context) error {
	defer c.tr.Close()
	resp, err := c.call(ctx, protocol.CloseRequest{})
	if err != nil {
		return err
	}
	if _, ok := resp.(protocol.CloseResponse); !ok {
		return unexpectedResponse("close", resp)
	}
	return nil
}

// call performs one request/response exchange. An ErrorResponse becomes an
// *ApplicationError carrying the engine's message verbatim.
func (c *Client) call(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	data, err := protocol.EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if err := c.tr.SendRequest(ctx, data); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	raw, err := c.tr.ReceiveResponse(ctx)
	if err != nil {
		return nil, fmt.Errorf("receive response: %w", err)
	}
	resp, err := protocol.DecodeResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if errResp, ok := resp.(protocol.ErrorResponse); ok {
		return nil, &ApplicationError{Msg: errResp.Msg}
	}
	return resp, nil
}

func unexpectedResponse(op string, resp protocol.Response) error {
	return protocol.Errorf("%s: unexpected response type %T", op, resp)
}
