// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

//go:build linux

package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

func init() {
	register(KindShm, func(cfg Config) (Transport, error) {
		return NewShm(cfg)
	})
}

const shmDir = "/dev/shm"

// Segment layout: a 16-byte header followed by two fixed-size slots, one
// per direction. Each slot is [state u32][length u32][payload]. The state
// word flips empty<->full with atomic operations; the payload and length
// are written before the full store, so the flip publishes them.
const (
	shmMagic   = 0x53425247 // "SBRG"
	shmVersion = 1

	shmHeaderSize = 16
	slotHeader    = 8

	slotEmpty = 0
	slotFull  = 1

	shmPollInterval = 200 * time.Microsecond
)

// Shm is the shared-memory backend: a named fixed-size segment with
// create/open semantics. Start creates the segment; Connect opens it,
// waiting out the creation race. Every wait is bounded; exceeding the
// deadline is a hard failure.
type Shm struct {
	cfg  Config
	path string

	mu      sync.RWMutex
	data    []byte
	creator bool
	closed  bool

	bufSize int
}

// NewShm builds a shared-memory channel for the configured channel name.
func NewShm(cfg Config) (*Shm, error) {
	cfg = cfg.withDefaults()
	if cfg.Channel == "" {
		return nil, fmt.Errorf("shm: channel name required")
	}
	if strings.ContainsRune(cfg.Channel, os.PathSeparator) {
		return nil, fmt.Errorf("shm: invalid channel name %q", cfg.Channel)
	}
	return &Shm{
		cfg:  cfg,
		path: filepath.Join(shmDir, cfg.Channel),
	}, nil
}

// Start creates the segment. It fails if the channel already exists: a
// channel has exactly one serving side per lifetime.
func (s *Shm) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.data != nil {
		return fmt.Errorf("shm %s: already started", s.cfg.Channel)
	}

	size := shmHeaderSize + 2*(slotHeader+s.cfg.BufferSize)
	fd, err := unix.Open(s.path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("shm %s: create: %w", s.cfg.Channel, err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Unlink(s.path)
		return fmt.Errorf("shm %s: truncate: %w", s.cfg.Channel, err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Unlink(s.path)
		return fmt.Errorf("shm %s: mmap: %w", s.cfg.Channel, err)
	}

	s.data = data
	s.creator = true
	s.bufSize = s.cfg.BufferSize

	atomic.StoreUint32(s.word(8), uint32(s.bufSize))
	atomic.StoreUint32(s.word(4), shmVersion)
	// Magic goes last: the opener treats it as the ready flag.
	atomic.StoreUint32(s.word(0), shmMagic)

	s.cfg.Logger.Debug("shm segment created", "channel", s.cfg.Channel, "bytes", size)
	return nil
}

// Connect opens the segment, retrying while the creator has not
// materialized it yet. The retry budget exhausting is a fatal startup
// error.
func (s *Shm) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.ConnectRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.ConnectBackoff):
			}
		}
		if err := s.tryOpen(); err != nil {
			lastErr = err
			continue
		}
		s.cfg.Logger.Debug("shm segment opened", "channel", s.cfg.Channel)
		return nil
	}
	return &FatalStartupError{Channel: s.cfg.Channel, Attempts: s.cfg.ConnectRetries, Err: lastErr}
}

func (s *Shm) tryOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.data != nil {
		return nil
	}

	fd, err := unix.Open(s.path, unix.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("shm %s: open: %w", s.cfg.Channel, err)
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return fmt.Errorf("shm %s: stat: %w", s.cfg.Channel, err)
	}
	if st.Size < shmHeaderSize {
		return fmt.Errorf("shm %s: segment not initialized", s.cfg.Channel)
	}
	data, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("shm %s: mmap: %w", s.cfg.Channel, err)
	}

	s.data = data
	if got := atomic.LoadUint32(s.word(0)); got != shmMagic {
		s.unmapLocked()
		return fmt.Errorf("shm %s: segment not initialized", s.cfg.Channel)
	}
	if v := atomic.LoadUint32(s.word(4)); v != shmVersion {
		s.unmapLocked()
		return fmt.Errorf("shm %s: version %d, want %d", s.cfg.Channel, v, shmVersion)
	}
	s.bufSize = int(atomic.LoadUint32(s.word(8)))
	if shmHeaderSize+2*(slotHeader+s.bufSize) > len(s.data) {
		s.unmapLocked()
		return fmt.Errorf("shm %s: segment truncated", s.cfg.Channel)
	}
	return nil
}

func (s *Shm) word(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&s.data[off]))
}

func (s *Shm) requestSlot() int  { return shmHeaderSize }
func (s *Shm) responseSlot() int { return shmHeaderSize + slotHeader + s.bufSize }

func (s *Shm) SendRequest(ctx context.Context, data []byte) error {
	return s.send(ctx, s.requestSlot(), data, true)
}

func (s *Shm) ReceiveRequest(ctx context.Context) ([]byte, error) {
	return s.receive(ctx, s.requestSlot(), false)
}

func (s *Shm) SendResponse(ctx context.Context, data []byte) error {
	return s.send(ctx, s.responseSlot(), data, true)
}

func (s *Shm) ReceiveResponse(ctx context.Context) ([]byte, error) {
	return s.receive(ctx, s.responseSlot(), true)
}

// send publishes one payload into a slot. The size check runs before any
// byte is written, so an oversized payload never reaches the peer even
// partially.
func (s *Shm) send(ctx context.Context, off int, data []byte, bounded bool) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(data) > s.bufSize {
		return fmt.Errorf("shm %s: %d bytes into %d byte slot: %w",
			s.cfg.Channel, len(data), s.bufSize, ErrOversize)
	}
	if err := s.awaitState(ctx, off, slotEmpty, bounded, "send"); err != nil {
		return err
	}
	// Reader access is guarded against a concurrent Close unmapping the
	// segment mid-operation.
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.data == nil {
		return ErrClosed
	}
	copy(s.data[off+slotHeader:], data)
	atomic.StoreUint32(s.word(off+4), uint32(len(data)))
	atomic.StoreUint32(s.word(off), slotFull)
	return nil
}

func (s *Shm) receive(ctx context.Context, off int, bounded bool) ([]byte, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.awaitState(ctx, off, slotFull, bounded, "receive"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.data == nil {
		return nil, ErrClosed
	}
	length := int(atomic.LoadUint32(s.word(off + 4)))
	if length > s.bufSize {
		return nil, fmt.Errorf("shm %s: slot length %d exceeds buffer", s.cfg.Channel, length)
	}
	out := make([]byte, length)
	copy(out, s.data[off+slotHeader:off+slotHeader+length])
	atomic.StoreUint32(s.word(off), slotEmpty)
	return out, nil
}

// awaitState polls a slot's state word until it reaches want. Polling
// keeps the segment free of cross-process futexes or pthread state; each
// probe holds the read lock so Close cannot unmap underneath it.
func (s *Shm) awaitState(ctx context.Context, off int, want uint32, bounded bool, op string) error {
	var deadline time.Time
	if bounded {
		deadline = time.Now().Add(s.cfg.Timeout)
	}
	for {
		s.mu.RLock()
		if s.closed || s.data == nil {
			s.mu.RUnlock()
			return ErrClosed
		}
		state := atomic.LoadUint32(s.word(off))
		s.mu.RUnlock()
		if state == want {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if bounded && time.Now().After(deadline) {
			return fmt.Errorf("shm %s: %s: %w", s.cfg.Channel, op, ErrTimeout)
		}
		time.Sleep(shmPollInterval)
	}
}

func (s *Shm) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if s.data == nil {
		return fmt.Errorf("shm %s: not started or connected", s.cfg.Channel)
	}
	return nil
}

func (s *Shm) unmapLocked() {
	if s.data != nil {
		unix.Munmap(s.data)
		s.data = nil
	}
}

// Close unmaps the segment and, on the creating side, unlinks it so it
// does not outlive the process group. Idempotent, safe on a never-started
// instance.
func (s *Shm) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.unmapLocked()
	if s.creator {
		if err := unix.Unlink(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("shm %s: unlink: %w", s.cfg.Channel, err)
		}
	}
	return nil
}

// RemoveStale unlinks exactly the named channel's segment, if one is
// left over. It reports whether a segment was removed. Unlike SweepStale
// it never touches sibling channels, so a server can reclaim its own
// name while uuid-suffixed sessions run alongside.
func RemoveStale(channel string) bool {
	if channel == "" || strings.ContainsRune(channel, os.PathSeparator) {
		return false
	}
	return unix.Unlink(filepath.Join(shmDir, channel)) == nil
}

// SweepStale removes leftover segments whose names carry the given prefix.
// Best effort: segments held by live processes simply fail to unlink or
// are recreated; call it once at process-group start.
func SweepStale(prefix string) int {
	if prefix == "" {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(shmDir, prefix+"*"))
	if err != nil {
		return 0
	}
	removed := 0
	for _, path := range matches {
		if unix.Unlink(path) == nil {
			removed++
		}
	}
	return removed
}
