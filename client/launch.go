// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/simweaver/simbridge/logging"
	"github.com/simweaver/simbridge/transport"
)

// LaunchConfig describes how to spawn and reach a server process.
type LaunchConfig struct {
	// ServerPath is the server binary to execute.
	ServerPath string
	// Args are extra arguments appended after the generated transport
	// flags.
	Args []string

	// Transport selects the backend; defaults to shm. Channel defaults to
	// a generated unique name so concurrent sessions never collide.
	Transport transport.Kind
	Channel   string
	Addr      string

	BufferSize     int
	MaxMessageSize int
	Timeout        time.Duration
	ConnectRetries int
	ConnectBackoff time.Duration

	// GracePeriod bounds each stage of shutdown escalation: cooperative
	// close, then SIGTERM, then SIGKILL.
	GracePeriod time.Duration

	Stdout, Stderr io.Writer
	Logger         logging.Logger
}

const defaultGracePeriod = 5 * time.Second

// Session ties a spawned server process to a connected client. The
// session owns the process: Shutdown is the only correct way to end it.
type Session struct {
	client  *Client
	cmd     *exec.Cmd
	channel string
	log     logging.Logger
	grace   time.Duration

	waitCh chan error
}

// Launch spawns the server process, connects to it, and returns the live
// session. On any startup failure the process is killed before returning.
func Launch(ctx context.Context, cfg LaunchConfig) (*Session, error) {
	if cfg.ServerPath == "" {
		return nil, fmt.Errorf("launch: server path required")
	}
	if cfg.Transport == "" {
		cfg.Transport = transport.KindShm
	}
	if cfg.Channel == "" {
		cfg.Channel = "simbridge-" + uuid.NewString()
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = defaultGracePeriod
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}

	tr, err := transport.New(cfg.Transport, transport.Config{
		Channel:        cfg.Channel,
		Addr:           cfg.Addr,
		BufferSize:     cfg.BufferSize,
		MaxMessageSize: cfg.MaxMessageSize,
		Timeout:        cfg.Timeout,
		ConnectRetries: cfg.ConnectRetries,
		ConnectBackoff: cfg.ConnectBackoff,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("launch: %w", err)
	}

	args := []string{
		"-transport", string(cfg.Transport),
		"-channel", cfg.Channel,
	}
	if cfg.Addr != "" {
		args = append(args, "-addr", cfg.Addr)
	}
	args = append(args, cfg.Args...)

	cmd := exec.Command(cfg.ServerPath, args...)
	cmd.Stdout = cfg.Stdout
	cmd.Stderr = cfg.Stderr
	if err := cmd.Start(); err != nil {
		tr.Close()
		return nil, fmt.Errorf("launch: start %s: %w", cfg.ServerPath, err)
	}
	log.Info("server process started", "pid", cmd.Process.Pid, "channel", cfg.Channel)

	s := &Session{
		client:  New(tr, log),
		cmd:     cmd,
		channel: cfg.Channel,
		log:     log,
		grace:   cfg.GracePeriod,
		waitCh:  make(chan error, 1),
	}
	go func() { s.waitCh <- cmd.Wait() }()

	if err := s.client.Connect(ctx); err != nil {
		s.kill()
		tr.Close()
		return nil, fmt.Errorf("launch: %w", err)
	}
	return s, nil
}

// Client returns the connected client for this session.
func (s *Session) Client() *Client {
	return s.client
}

// Channel reports the channel name the session runs on.
func (s *Session) Channel() string {
	return s.channel
}

// Shutdown ends the session: first a cooperative Close over the protocol,
// then SIGTERM, then SIGKILL, each stage bounded by the grace period. It
// returns nil when the process exited during the cooperative stage.
func (s *Session) Shutdown(ctx context.Context) error {
	if err := s.client.Close(ctx); err != nil {
		s.log.Warn("cooperative close failed", "err", err)
	}
	if s.awaitExit() {
		return nil
	}

	s.log.Warn("server still running after close, sending SIGTERM", "pid", s.cmd.Process.Pid)
	s.cmd.Process.Signal(syscall.SIGTERM)
	if s.awaitExit() {
		return fmt.Errorf("shutdown: server required SIGTERM")
	}

	s.log.Error("server ignored SIGTERM, killing", "pid", s.cmd.Process.Pid)
	s.kill()
	s.awaitExit()
	return fmt.Errorf("shutdown: server required SIGKILL")
}

// awaitExit waits up to the grace period for the process to exit.
func (s *Session) awaitExit() bool {
	select {
	case <-s.waitCh:
		return true
	case <-time.After(s.grace):
		return false
	}
}

func (s *Session) kill() {
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
}
