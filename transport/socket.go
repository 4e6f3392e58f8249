// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

func init() {
	register(KindSocket, func(cfg Config) (Transport, error) {
		return NewSocket(cfg)
	})
}

// Frame layout: a 4-byte big-endian length covering one type byte plus the
// payload. Ping and pong carry no payload; they exist so that Connect can
// verify the peer actually speaks this protocol rather than merely accept.
const (
	frameData byte = 0
	framePing byte = 1
	framePong byte = 2

	frameHeaderSize = 4

	socketAcceptPoll = 250 * time.Millisecond
)

// Socket is the stream backend: a REQ/REP exchange over a unix-domain
// socket derived from the channel name, or over TCP when an address is
// configured. One connection per channel lifetime.
type Socket struct {
	cfg  Config
	path string // unix socket path, empty in TCP mode

	mu       sync.Mutex
	listener net.Listener
	conn     net.Conn
	serving  bool
	awaiting bool // request sent, response not yet read
	closed   bool
}

// NewSocket builds a socket channel. With Addr unset the channel is a
// unix-domain socket under the temp directory, named after the channel.
func NewSocket(cfg Config) (*Socket, error) {
	cfg = cfg.withDefaults()
	s := &Socket{cfg: cfg}
	if cfg.Addr == "" {
		if cfg.Channel == "" {
			return nil, fmt.Errorf("socket: channel name or address required")
		}
		s.path = filepath.Join(os.TempDir(), cfg.Channel+".sock")
	}
	return s, nil
}

func (s *Socket) network() (network, address string) {
	if s.path != "" {
		return "unix", s.path
	}
	return "tcp", s.cfg.Addr
}

// Start binds the listening side. A stale unix socket file from a crashed
// predecessor is removed first; the channel name is the unit of ownership.
func (s *Socket) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.listener != nil || s.conn != nil {
		return fmt.Errorf("socket %s: already started", s.cfg.Channel)
	}

	network, address := s.network()
	if network == "unix" {
		if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("socket %s: remove stale socket: %w", s.cfg.Channel, err)
		}
	}
	ln, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("socket %s: listen: %w", s.cfg.Channel, err)
	}
	s.listener = ln
	s.serving = true
	s.cfg.Logger.Debug("socket listening", "channel", s.cfg.Channel, "addr", ln.Addr().String())
	return nil
}

// Connect dials the serving side, retrying while it has not bound yet,
// then exchanges a ping/pong to confirm the peer is live. Exhausting the
// retry budget is a fatal startup error.
func (s *Socket) Connect(ctx context.Context) error {
	network, address := s.network()
	var lastErr error
	for attempt := 0; attempt < s.cfg.ConnectRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.ConnectBackoff):
			}
		}
		conn, err := net.DialTimeout(network, address, s.cfg.ConnectBackoff)
		if err != nil {
			lastErr = err
			continue
		}
		if err := s.handshake(conn); err != nil {
			conn.Close()
			lastErr = err
			continue
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return ErrClosed
		}
		s.conn = conn
		s.mu.Unlock()
		s.cfg.Logger.Debug("socket connected", "channel", s.cfg.Channel, "addr", address)
		return nil
	}
	return &FatalStartupError{Channel: s.cfg.Channel, Attempts: s.cfg.ConnectRetries, Err: lastErr}
}

func (s *Socket) handshake(conn net.Conn) error {
	deadline := time.Now().Add(s.cfg.Timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}
	defer conn.SetDeadline(time.Time{})
	if err := writeFrame(conn, framePing, nil); err != nil {
		return fmt.Errorf("handshake send: %w", err)
	}
	kind, _, err := readFrame(conn, s.cfg.MaxMessageSize)
	if err != nil {
		return fmt.Errorf("handshake receive: %w", err)
	}
	if kind != framePong {
		return fmt.Errorf("handshake: unexpected frame type %d", kind)
	}
	return nil
}

func (s *Socket) SendRequest(ctx context.Context, data []byte) error {
	s.mu.Lock()
	if s.awaiting {
		s.mu.Unlock()
		return fmt.Errorf("socket %s: %w", s.cfg.Channel, ErrBusy)
	}
	conn, err := s.activeConn()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.awaiting = true
	s.mu.Unlock()

	if err := s.writeData(ctx, conn, data); err != nil {
		s.mu.Lock()
		s.awaiting = false
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Socket) ReceiveResponse(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if !s.awaiting {
		s.mu.Unlock()
		return nil, fmt.Errorf("socket %s: no request in flight", s.cfg.Channel)
	}
	conn, err := s.activeConn()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	data, err := s.readData(ctx, conn, true)
	s.mu.Lock()
	s.awaiting = false
	s.mu.Unlock()
	return data, err
}

// ReceiveRequest accepts the connection on first use, then reads the next
// data frame. Pings are answered inline so a reconnect probe never
// surfaces as a request.
func (s *Socket) ReceiveRequest(ctx context.Context) ([]byte, error) {
	conn, err := s.acceptedConn(ctx)
	if err != nil {
		return nil, err
	}
	return s.readData(ctx, conn, false)
}

func (s *Socket) SendResponse(ctx context.Context, data []byte) error {
	s.mu.Lock()
	conn, err := s.activeConn()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.writeData(ctx, conn, data)
}

// Addr reports the bound listener address. Useful when the configured
// address left the port to the OS.
func (s *Socket) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Socket) activeConn() (net.Conn, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.conn == nil {
		return nil, fmt.Errorf("socket %s: not connected", s.cfg.Channel)
	}
	return s.conn, nil
}

// acceptedConn returns the channel's single connection, accepting it if
// no client has arrived yet. Accept polls with a short deadline so the
// context stays responsive.
func (s *Socket) acceptedConn(ctx context.Context) (net.Conn, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.conn != nil {
		conn := s.conn
		s.mu.Unlock()
		return conn, nil
	}
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return nil, fmt.Errorf("socket %s: not started", s.cfg.Channel)
	}

	type deadliner interface{ SetDeadline(time.Time) error }
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if d, ok := ln.(deadliner); ok {
			d.SetDeadline(time.Now().Add(socketAcceptPoll))
		}
		conn, err := ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if s.isClosed() {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("socket %s: accept: %w", s.cfg.Channel, err)
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return nil, ErrClosed
		}
		s.conn = conn
		s.mu.Unlock()
		s.cfg.Logger.Debug("socket accepted", "channel", s.cfg.Channel,
			"remote", conn.RemoteAddr().String())
		return conn, nil
	}
}

// writeData sends one data frame under the configured timeout. The size
// check precedes any write so an oversized message never reaches the wire
// partially.
func (s *Socket) writeData(ctx context.Context, conn net.Conn, data []byte) error {
	if len(data)+1 > s.cfg.MaxMessageSize {
		return fmt.Errorf("socket %s: %d byte message exceeds %d byte limit: %w",
			s.cfg.Channel, len(data), s.cfg.MaxMessageSize, ErrOversize)
	}
	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := writeFrame(conn, frameData, data); err != nil {
		if s.isClosed() {
			return ErrClosed
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return fmt.Errorf("socket %s: send: %w", s.cfg.Channel, ErrTimeout)
		}
		return fmt.Errorf("socket %s: send: %w", s.cfg.Channel, err)
	}
	return nil
}

// readData reads frames until a data frame arrives, answering pings along
// the way. When bounded the whole wait shares one timeout budget; an
// unbounded read polls so the context stays responsive. A frame in
// progress survives a poll deadline: the reader resumes where the
// deadline cut it off rather than restarting from the length header.
func (s *Socket) readData(ctx context.Context, conn net.Conn, bounded bool) ([]byte, error) {
	var deadline time.Time
	if bounded {
		deadline = time.Now().Add(s.cfg.Timeout)
	}
	var fr frameReader
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		readBy := time.Now().Add(socketAcceptPoll)
		if bounded && deadline.Before(readBy) {
			readBy = deadline
		}
		if err := conn.SetReadDeadline(readBy); err != nil {
			return nil, err
		}
		kind, payload, err := fr.fill(conn, s.cfg.MaxMessageSize)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if bounded && !time.Now().Before(deadline) {
					return nil, fmt.Errorf("socket %s: receive: %w", s.cfg.Channel, ErrTimeout)
				}
				continue
			}
			if s.isClosed() || errors.Is(err, io.EOF) {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("socket %s: receive: %w", s.cfg.Channel, err)
		}
		switch kind {
		case frameData:
			return payload, nil
		case framePing:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.Timeout))
			if err := writeFrame(conn, framePong, nil); err != nil {
				return nil, fmt.Errorf("socket %s: pong: %w", s.cfg.Channel, err)
			}
		default:
			return nil, fmt.Errorf("socket %s: unknown frame type %d", s.cfg.Channel, kind)
		}
	}
}

func (s *Socket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close shuts the connection and listener and, on the serving side,
// removes the unix socket file. Idempotent.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
	if s.serving && s.path != "" {
		os.Remove(s.path)
	}
	return nil
}

func writeFrame(w io.Writer, kind byte, payload []byte) error {
	var header [frameHeaderSize + 1]byte
	binary.BigEndian.PutUint32(header[:frameHeaderSize], uint32(len(payload)+1))
	header[frameHeaderSize] = kind
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// frameReader accumulates one frame across short-deadline reads. Partial
// progress, including a half-read length header, is kept between calls,
// so a deadline expiring mid-frame never desyncs the stream: the caller
// extends the deadline and resumes instead of restarting from the header.
type frameReader struct {
	header [frameHeaderSize]byte
	head   int
	body   []byte
	got    int
}

// fill advances the frame from r and, once complete, returns it and
// resets for the next one. Any error leaves the accumulated bytes intact.
func (f *frameReader) fill(r io.Reader, maxSize int) (byte, []byte, error) {
	for f.head < frameHeaderSize {
		n, err := r.Read(f.header[f.head:])
		f.head += n
		if err != nil {
			return 0, nil, err
		}
	}
	if f.body == nil {
		length := binary.BigEndian.Uint32(f.header[:])
		if length == 0 {
			return 0, nil, fmt.Errorf("empty frame")
		}
		if int(length) > maxSize {
			return 0, nil, fmt.Errorf("%d byte frame exceeds %d byte limit: %w",
				length, maxSize, ErrOversize)
		}
		f.body = make([]byte, length)
	}
	for f.got < len(f.body) {
		n, err := r.Read(f.body[f.got:])
		f.got += n
		if err != nil {
			return 0, nil, err
		}
	}
	kind, payload := f.body[0], f.body[1:]
	*f = frameReader{}
	return kind, payload, nil
}

func readFrame(r io.Reader, maxSize int) (byte, []byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length == 0 {
		return 0, nil, fmt.Errorf("empty frame")
	}
	if int(length) > maxSize {
		return 0, nil, fmt.Errorf("%d byte frame exceeds %d byte limit: %w",
			length, maxSize, ErrOversize)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return body[0], body[1:], nil
}
