// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

//go:build linux

package transport

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testShmPair(t *testing.T, cfg Config) (*Shm, *Shm) {
	t.Helper()
	cfg.Channel = "simbridge-test-" + uuid.NewString()
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 1 << 16
	}
	if cfg.ConnectRetries == 0 {
		cfg.ConnectRetries = 10
	}
	if cfg.ConnectBackoff == 0 {
		cfg.ConnectBackoff = 10 * time.Millisecond
	}

	server, err := NewShm(cfg)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(func() { server.Close() })

	client, err := NewShm(cfg)
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { client.Close() })

	return server, client
}

func TestShmRoundTrip(t *testing.T) {
	server, client := testShmPair(t, Config{})
	ctx := context.Background()

	require.NoError(t, client.SendRequest(ctx, []byte("observe")))
	got, err := server.ReceiveRequest(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("observe"), got)

	require.NoError(t, server.SendResponse(ctx, []byte("state")))
	got, err = client.ReceiveResponse(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("state"), got)
}

func TestShmConnectWaitsForCreator(t *testing.T) {
	cfg := Config{
		Channel:        "simbridge-test-" + uuid.NewString(),
		BufferSize:     1 << 16,
		ConnectRetries: 50,
		ConnectBackoff: 10 * time.Millisecond,
	}

	client, err := NewShm(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	connected := make(chan error, 1)
	go func() {
		connected <- client.Connect(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)
	server, err := NewShm(cfg)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(func() { server.Close() })

	select {
	case err := <-connected:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not complete after creator started")
	}
}

func TestShmConnectFatalWithoutCreator(t *testing.T) {
	cfg := Config{
		Channel:        "simbridge-test-" + uuid.NewString(),
		ConnectRetries: 3,
		ConnectBackoff: 5 * time.Millisecond,
	}
	client, err := NewShm(cfg)
	require.NoError(t, err)
	defer client.Close()

	err = client.Connect(context.Background())
	var fatal *FatalStartupError
	require.ErrorAs(t, err, &fatal)
	require.Equal(t, cfg.Channel, fatal.Channel)
	require.Equal(t, 3, fatal.Attempts)
}

func TestShmOversizeLeavesChannelUsable(t *testing.T) {
	server, client := testShmPair(t, Config{BufferSize: 4096})
	ctx := context.Background()

	err := client.SendRequest(ctx, make([]byte, 4097))
	require.ErrorIs(t, err, ErrOversize)

	require.NoError(t, client.SendRequest(ctx, []byte("fits")))
	got, err := server.ReceiveRequest(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("fits"), got)
}

func TestShmReceiveResponseTimeout(t *testing.T) {
	_, client := testShmPair(t, Config{Timeout: 50 * time.Millisecond})

	_, err := client.ReceiveResponse(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
}

// A second request into a full slot must wait for the peer, not clobber
// the one in flight.
func TestShmSendTimeoutWhenSlotFull(t *testing.T) {
	_, client := testShmPair(t, Config{Timeout: 50 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, client.SendRequest(ctx, []byte("first")))
	err := client.SendRequest(ctx, []byte("second"))
	require.ErrorIs(t, err, ErrTimeout)
}

func TestShmStartRejectsExistingChannel(t *testing.T) {
	server, _ := testShmPair(t, Config{})

	dup, err := NewShm(Config{Channel: server.cfg.Channel, BufferSize: 1 << 16})
	require.NoError(t, err)
	require.Error(t, dup.Start())
}

func TestShmCloseUnblocksReceive(t *testing.T) {
	server, _ := testShmPair(t, Config{})

	errCh := make(chan error, 1)
	go func() {
		_, err := server.ReceiveRequest(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, server.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("receive did not unblock on close")
	}
}

func TestShmCloseIdempotent(t *testing.T) {
	server, client := testShmPair(t, Config{})
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	require.NoError(t, server.Close())
	require.NoError(t, server.Close())
}

func TestSweepStale(t *testing.T) {
	prefix := "simbridge-sweep-" + uuid.NewString()[:8]
	cfg := Config{Channel: prefix + "-chan", BufferSize: 4096}

	server, err := NewShm(cfg)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(func() { server.Close() })

	require.GreaterOrEqual(t, SweepStale(prefix), 1)
	require.Equal(t, 0, SweepStale(prefix))
}

// Reclaiming a server's own channel name must not unlink the segments of
// concurrent sessions whose names share it as a prefix.
func TestRemoveStaleLeavesSiblingChannels(t *testing.T) {
	base := "simbridge-reclaim-" + uuid.NewString()[:8]

	session, err := NewShm(Config{
		Channel:        base + "-" + uuid.NewString(),
		BufferSize:     4096,
		ConnectRetries: 3,
		ConnectBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, session.Start())
	t.Cleanup(func() { session.Close() })

	stale, err := NewShm(Config{Channel: base, BufferSize: 4096})
	require.NoError(t, err)
	require.NoError(t, stale.Start())
	// A crashed server leaves its segment behind without unlinking.
	stale.creator = false
	require.NoError(t, stale.Close())

	require.True(t, RemoveStale(base))
	require.False(t, RemoveStale(base))

	// The sibling session's segment is untouched and still connectable.
	client, err := NewShm(session.cfg)
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { client.Close() })
}
