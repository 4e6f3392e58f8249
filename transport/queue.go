// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

func init() {
	register(KindQueue, func(cfg Config) (Transport, error) {
		return NewQueue(cfg), nil
	})
}

// Queue is the in-process backend: two in-order channels, one per
// direction, shared by a client and a server running in the same process.
// Both sides use the same instance; Start and Connect only mark the
// endpoint alive.
type Queue struct {
	cfg Config

	toServer   chan []byte
	fromServer chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue builds a queue channel. The strict alternation of the protocol
// keeps at most one message per direction in flight, so a capacity of one
// makes a premature second send block rather than corrupt ordering.
func NewQueue(cfg Config) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		cfg:        cfg,
		toServer:   make(chan []byte, 1),
		fromServer: make(chan []byte, 1),
		done:       make(chan struct{}),
	}
}

// Start marks the serving side ready.
func (q *Queue) Start() error {
	select {
	case <-q.done:
		return ErrClosed
	default:
		return nil
	}
}

// Connect marks the initiating side ready. The queue exists as soon as it
// is constructed, so there is no creation race to wait out.
func (q *Queue) Connect(ctx context.Context) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
		return nil
	}
}

func (q *Queue) SendRequest(ctx context.Context, data []byte) error {
	return q.put(ctx, q.toServer, data, true)
}

func (q *Queue) ReceiveRequest(ctx context.Context) ([]byte, error) {
	return q.get(ctx, q.toServer, false)
}

func (q *Queue) SendResponse(ctx context.Context, data []byte) error {
	return q.put(ctx, q.fromServer, data, true)
}

func (q *Queue) ReceiveResponse(ctx context.Context) ([]byte, error) {
	return q.get(ctx, q.fromServer, true)
}

func (q *Queue) put(ctx context.Context, ch chan []byte, data []byte, bounded bool) error {
	var timeout <-chan time.Time
	if bounded {
		t := time.NewTimer(q.cfg.Timeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case ch <- data:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return fmt.Errorf("queue send: %w", ErrTimeout)
	}
}

func (q *Queue) get(ctx context.Context, ch chan []byte, bounded bool) ([]byte, error) {
	var timeout <-chan time.Time
	if bounded {
		t := time.NewTimer(q.cfg.Timeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case data := <-ch:
		return data, nil
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, fmt.Errorf("queue receive: %w", ErrTimeout)
	}
}

// Close tears down both directions. Safe to call from either side and
// safe to call twice.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	return nil
}
