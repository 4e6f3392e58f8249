// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package server runs the engine side of the bridge: a single-threaded
// dispatch loop that receives requests off a transport channel, drives a
// simulation engine, and sends back exactly one response per request.
package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/simweaver/simbridge/logging"
	"github.com/simweaver/simbridge/protocol"
	"github.com/simweaver/simbridge/transport"
)

// Engine is the simulation surface the dispatch loop drives. Implementations
// need no internal locking: the loop is the only caller, and calls are
// strictly sequential.
type Engine interface {
	AddObject(cfg protocol.ObjectConfig) (protocol.ObjectInfo, error)
	RemoveAllObjects() error
	Step(actions []protocol.Action) (protocol.Observations, protocol.ProprioceptiveState, error)
	Reset() (protocol.Observations, protocol.ProprioceptiveState, error)
	Close() error
}

// EngineFactory builds an engine from the scene configuration carried by an
// Init request. Construction failure is reported to the client as an error
// response; the channel stays open for a retry.
type EngineFactory func(cfg protocol.SceneConfig) (Engine, error)

// Server owns one transport channel and at most one engine. The engine
// exists between a successful Init and the Close request.
type Server struct {
	tr      transport.Transport
	factory EngineFactory
	log     logging.Logger

	engine Engine
}

// New builds a server over an already-started transport.
func New(tr transport.Transport, factory EngineFactory, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	return &Server{tr: tr, factory: factory, log: log}
}

// Serve runs the dispatch loop until a Close request, a closed channel, or
// a transport failure. Engine errors are not loop failures: they travel
// back as error responses and the loop keeps serving.
func (s *Server) Serve(ctx context.Context) error {
	defer s.closeEngine()

	for {
		data, err := s.tr.ReceiveRequest(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || errors.Is(err, context.Canceled) {
				s.log.Info("channel closed, stopping")
				return nil
			}
			return fmt.Errorf("receive request: %w", err)
		}

		req, err := protocol.DecodeRequest(data)
		if err != nil {
			// A peer speaking a different schema cannot be reasoned
			// with; report once and shut the channel down.
			s.log.Error("undecodable request", "err", err)
			s.respond(ctx, protocol.ErrorResponse{Msg: err.Error()})
			return fmt.Errorf("decode request: %w", err)
		}

		resp, done := s.dispatch(req)
		if err := s.respond(ctx, resp); err != nil {
			return err
		}
		if done {
			s.log.Info("close requested, stopping")
			return nil
		}
	}
}

// dispatch maps one request to one response. The returned flag reports
// that the loop should exit after responding.
func (s *Server) dispatch(req protocol.Request) (protocol.Response, bool) {
	switch r := req.(type) {
	case protocol.CloseRequest:
		return protocol.CloseResponse{}, true

	case protocol.InitRequest:
		if s.engine != nil {
			return protocol.ErrorResponse{Msg: "engine already initialized"}, false
		}
		engine, err := s.factory(r.Config)
		if err != nil {
			s.log.Error("engine init failed", "err", err)
			return protocol.ErrorResponse{Msg: err.Error()}, false
		}
		s.engine = engine
		s.log.Info("engine initialized")
		return protocol.InitResponse{}, false
	}

	if s.engine == nil {
		return protocol.ErrorResponse{Msg: "engine not initialized"}, false
	}

	switch r := req.(type) {
	case protocol.AddObjectRequest:
		info, err := s.engine.AddObject(r.Object)
		if err != nil {
			return s.engineError("add object", err), false
		}
		return protocol.AddObjectResponse{Info: info}, false

	case protocol.RemoveAllObjectsRequest:
		if err := s.engine.RemoveAllObjects(); err != nil {
			return s.engineError("remove objects", err), false
		}
		return protocol.RemoveAllObjectsResponse{}, false

	case protocol.StepRequest:
		obs, state, err := s.engine.Step(r.Actions)
		if err != nil {
			return s.engineError("step", err), false
		}
		return protocol.StepResponse{Observations: obs, State: state}, false

	case protocol.ResetRequest:
		obs, state, err := s.engine.Reset()
		if err != nil {
			return s.engineError("reset", err), false
		}
		return protocol.ResetResponse{Observations: obs, State: state}, false

	default:
		return protocol.ErrorResponse{Msg: fmt.Sprintf("unsupported request type %T", req)}, false
	}
}

// engineError wraps an engine failure as an error response. The message
// text crosses the wire verbatim so the controlling process sees what the
// engine said.
func (s *Server) engineError(op string, err error) protocol.Response {
	s.log.Warn("engine error", "op", op, "err", err)
	return protocol.ErrorResponse{Msg: err.Error()}
}

func (s *Server) respond(ctx context.Context, resp protocol.Response) error {
	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if err := s.tr.SendResponse(ctx, data); err != nil {
		return fmt.Errorf("send response: %w", err)
	}
	return nil
}

func (s *Server) closeEngine() {
	if s.engine == nil {
		return
	}
	if err := s.engine.Close(); err != nil {
		s.log.Warn("engine close", "err", err)
	}
	s.engine = nil
}
