// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueRoundTrip(t *testing.T) {
	q := NewQueue(Config{Channel: "q"})
	require.NoError(t, q.Start())
	require.NoError(t, q.Connect(context.Background()))
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.SendRequest(ctx, []byte("ping")))
	got, err := q.ReceiveRequest(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("ping"), got)

	require.NoError(t, q.SendResponse(ctx, []byte("pong")))
	got, err = q.ReceiveResponse(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("pong"), got)
}

func TestQueueReceiveResponseTimeout(t *testing.T) {
	q := NewQueue(Config{Channel: "q", Timeout: 20 * time.Millisecond})
	defer q.Close()

	_, err := q.ReceiveResponse(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
}

func TestQueueSendTimeoutWhenSlotFull(t *testing.T) {
	q := NewQueue(Config{Channel: "q", Timeout: 20 * time.Millisecond})
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.SendRequest(ctx, []byte("one")))
	err := q.SendRequest(ctx, []byte("two"))
	require.ErrorIs(t, err, ErrTimeout)
}

func TestQueueCloseUnblocksReceive(t *testing.T) {
	q := NewQueue(Config{Channel: "q"})

	errCh := make(chan error, 1)
	go func() {
		_, err := q.ReceiveRequest(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("receive did not unblock on close")
	}
}

func TestQueueContextCancel(t *testing.T) {
	q := NewQueue(Config{Channel: "q"})
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := q.ReceiveRequest(ctx)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestQueueCloseIdempotent(t *testing.T) {
	q := NewQueue(Config{Channel: "q"})
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	require.ErrorIs(t, q.Start(), ErrClosed)
}

func TestRegistryKinds(t *testing.T) {
	kinds := Kinds()
	require.Contains(t, kinds, KindQueue)
	require.Contains(t, kinds, KindSocket)

	tr, err := New(KindQueue, Config{Channel: "q"})
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	_, err = New(Kind("carrier-pigeon"), Config{})
	require.Error(t, err)
}
