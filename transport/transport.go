// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transport provides the channel abstraction of the bridge: one
// logical request/reply connection between a client and a server process,
// with three interchangeable backends behind a single contract.
//
// Backends differ in delivery mechanics (in-process queues, a named
// shared-memory ring, a REQ/REP socket) but callers see one interface;
// nothing above this package branches on backend identity.
//
// All operations move opaque byte buffers; the transport never interprets
// payload contents. ReceiveRequest blocks until the next request arrives
// (bounded by its context); every other send/receive is additionally
// bounded by the configured timeout, and exceeding it is a hard failure,
// not a silent retry.
package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/simweaver/simbridge/logging"
)

// Kind selects a transport backend.
type Kind string

const (
	KindQueue  Kind = "queue"
	KindShm    Kind = "shm"
	KindSocket Kind = "socket"
)

// Transport is the uniform channel contract.
//
// The serving side calls Start exactly once per channel lifetime, then
// alternates ReceiveRequest and SendResponse. The initiating side calls
// Connect, which tolerates the server not existing yet and retries with
// bounded backoff, then alternates SendRequest and ReceiveResponse.
// Close is idempotent, safe on a never-started instance, and releases the
// underlying OS resources.
type Transport interface {
	Start() error
	Connect(ctx context.Context) error

	SendRequest(ctx context.Context, data []byte) error
	ReceiveRequest(ctx context.Context) ([]byte, error)
	SendResponse(ctx context.Context, data []byte) error
	ReceiveResponse(ctx context.Context) ([]byte, error)

	Close() error
}

// Config carries the channel identity and the knobs shared by all
// backends. Zero values fall back to defaults.
type Config struct {
	// Channel names the channel: the shared-memory segment and the
	// unix-domain socket derive their paths from it.
	Channel string

	// Addr, when set, switches the socket backend to TCP on host:port.
	Addr string

	// BufferSize is the per-slot payload capacity of the shared-memory
	// ring.
	BufferSize int

	// MaxMessageSize bounds socket frames. Oversized messages are
	// rejected before transmission, never truncated.
	MaxMessageSize int

	// Timeout bounds each send/receive except ReceiveRequest.
	Timeout time.Duration

	// ConnectRetries and ConnectBackoff define the connect budget: the
	// initiating side retries until the serving side exists, then fails
	// with FatalStartupError.
	ConnectRetries int
	ConnectBackoff time.Duration

	Logger logging.Logger
}

const (
	// DefaultBufferSize fits one uncompressed high-resolution observation
	// set per slot.
	DefaultBufferSize = 32 << 20

	DefaultMaxMessageSize = 64 << 20
	DefaultTimeout        = 10 * time.Second
	DefaultConnectRetries = 50
	DefaultConnectBackoff = 200 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = DefaultConnectRetries
	}
	if c.ConnectBackoff <= 0 {
		c.ConnectBackoff = DefaultConnectBackoff
	}
	if c.Logger == nil {
		c.Logger = logging.Nop()
	}
	return c
}

type newFunc func(Config) (Transport, error)

var (
	registryMu sync.RWMutex
	registry   = map[Kind]newFunc{}
)

// register adds a backend constructor. Called from backend init functions.
func register(kind Kind, fn newFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = fn
}

// New builds a transport of the given kind.
func New(kind Kind, cfg Config) (Transport, error) {
	registryMu.RLock()
	fn, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transport kind %q", kind)
	}
	return fn(cfg.withDefaults())
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
