// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

// Request is the tagged union of messages a client may send. Every request
// transmitted on a channel yields exactly one Response before the next
// request may be sent.
type Request interface {
	isRequest()
}

// InitRequest configures the engine. It must be the first request on a
// fresh channel.
type InitRequest struct {
	Config SceneConfig
}

// AddObjectRequest places one object in the scene.
type AddObjectRequest struct {
	Object ObjectConfig
}

// RemoveAllObjectsRequest clears all placed objects.
type RemoveAllObjectsRequest struct{}

// StepRequest applies an ordered sequence of actions and collects the
// resulting observations. An empty sequence is permitted.
type StepRequest struct {
	Actions []Action
}

// ResetRequest restores the scene to its initial state.
type ResetRequest struct{}

// CloseRequest terminates the server's dispatch loop. It must be the last
// request on the channel.
type CloseRequest struct{}

func (InitRequest) isRequest()             {}
func (AddObjectRequest) isRequest()        {}
func (RemoveAllObjectsRequest) isRequest() {}
func (StepRequest) isRequest()             {}
func (ResetRequest) isRequest()            {}
func (CloseRequest) isRequest()            {}

// Response is the tagged union of messages a server may send. Each request
// kind has a mirror response, plus the Error variant.
type Response interface {
	isResponse()
}

// InitResponse acknowledges an InitRequest.
type InitResponse struct{}

// AddObjectResponse reports the placed object.
type AddObjectResponse struct {
	Info ObjectInfo
}

// RemoveAllObjectsResponse acknowledges a RemoveAllObjectsRequest.
type RemoveAllObjectsResponse struct{}

// StepResponse carries the observations and proprioceptive state after a
// step.
type StepResponse struct {
	Observations Observations
	State        ProprioceptiveState
}

// ResetResponse carries the observations and proprioceptive state after a
// reset.
type ResetResponse struct {
	Observations Observations
	State        ProprioceptiveState
}

// CloseResponse acknowledges a CloseRequest.
type CloseResponse struct{}

// ErrorResponse carries the textual message of an engine error. It is a
// normal wire response on the server side and surfaces as an
// ApplicationError on the client side.
type ErrorResponse struct {
	Msg string
}

func (InitResponse) isResponse()             {}
func (AddObjectResponse) isResponse()        {}
func (RemoveAllObjectsResponse) isResponse() {}
func (StepResponse) isResponse()             {}
func (ResetResponse) isResponse()            {}
func (CloseResponse) isResponse()            {}
func (ErrorResponse) isResponse()            {}
