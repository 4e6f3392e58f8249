// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// testSocketPair wires a served and a connected endpoint over a unix
// socket. The server side sits in ReceiveRequest inside serve so the
// connect handshake has a responder.
func testSocketPair(t *testing.T, cfg Config) (*Socket, *Socket, chan []byte) {
	t.Helper()
	if cfg.Channel == "" && cfg.Addr == "" {
		cfg.Channel = "sb-" + uuid.NewString()[:8]
	}
	if cfg.ConnectRetries == 0 {
		cfg.ConnectRetries = 20
	}
	if cfg.ConnectBackoff == 0 {
		cfg.ConnectBackoff = 10 * time.Millisecond
	}

	server, err := NewSocket(cfg)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(func() { server.Close() })

	requests := make(chan []byte, 4)
	go func() {
		for {
			data, err := server.ReceiveRequest(context.Background())
			if err != nil {
				return
			}
			requests <- data
		}
	}()

	clientCfg := cfg
	if cfg.Addr != "" {
		clientCfg.Addr = server.Addr().String()
	}
	client, err := NewSocket(clientCfg)
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { client.Close() })

	return server, client, requests
}

func waitRequest(t *testing.T, requests chan []byte) []byte {
	t.Helper()
	select {
	case data := <-requests:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("request did not arrive")
		return nil
	}
}

func TestSocketRoundTripUnix(t *testing.T) {
	server, client, requests := testSocketPair(t, Config{})
	ctx := context.Background()

	require.NoError(t, client.SendRequest(ctx, []byte("step")))
	require.Equal(t, []byte("step"), waitRequest(t, requests))

	require.NoError(t, server.SendResponse(ctx, []byte("done")))
	got, err := client.ReceiveResponse(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("done"), got)
}

func TestSocketRoundTripTCP(t *testing.T) {
	server, client, requests := testSocketPair(t, Config{Addr: "127.0.0.1:0"})
	ctx := context.Background()

	require.NoError(t, client.SendRequest(ctx, []byte("step")))
	require.Equal(t, []byte("step"), waitRequest(t, requests))

	require.NoError(t, server.SendResponse(ctx, []byte("done")))
	got, err := client.ReceiveResponse(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("done"), got)
}

func TestSocketConnectFatalWithoutServer(t *testing.T) {
	client, err := NewSocket(Config{
		Channel:        "sb-" + uuid.NewString()[:8],
		ConnectRetries: 3,
		ConnectBackoff: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	defer client.Close()

	err = client.Connect(context.Background())
	var fatal *FatalStartupError
	require.ErrorAs(t, err, &fatal)
	require.Equal(t, 3, fatal.Attempts)
}

func TestSocketOversizeLeavesChannelUsable(t *testing.T) {
	server, client, requests := testSocketPair(t, Config{MaxMessageSize: 64})
	ctx := context.Background()

	err := client.SendRequest(ctx, make([]byte, 128))
	require.ErrorIs(t, err, ErrOversize)

	require.NoError(t, client.SendRequest(ctx, []byte("fits")))
	require.Equal(t, []byte("fits"), waitRequest(t, requests))
	require.NoError(t, server.SendResponse(ctx, []byte("ok")))
	_, err = client.ReceiveResponse(ctx)
	require.NoError(t, err)
}

func TestSocketRejectsPipelinedRequest(t *testing.T) {
	server, client, requests := testSocketPair(t, Config{})
	ctx := context.Background()

	require.NoError(t, client.SendRequest(ctx, []byte("first")))
	err := client.SendRequest(ctx, []byte("second"))
	require.ErrorIs(t, err, ErrBusy)

	require.Equal(t, []byte("first"), waitRequest(t, requests))
	require.NoError(t, server.SendResponse(ctx, []byte("ok")))
	_, err = client.ReceiveResponse(ctx)
	require.NoError(t, err)

	// The slot frees up once the response is read.
	require.NoError(t, client.SendRequest(ctx, []byte("third")))
	require.Equal(t, []byte("third"), waitRequest(t, requests))
}

func TestSocketReceiveResponseWithoutRequest(t *testing.T) {
	_, client, _ := testSocketPair(t, Config{})

	_, err := client.ReceiveResponse(context.Background())
	require.Error(t, err)
}

func TestSocketReceiveResponseTimeout(t *testing.T) {
	_, client, requests := testSocketPair(t, Config{Timeout: 100 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, client.SendRequest(ctx, []byte("unanswered")))
	require.Equal(t, []byte("unanswered"), waitRequest(t, requests))

	_, err := client.ReceiveResponse(ctx)
	require.ErrorIs(t, err, ErrTimeout)
}

// A slow peer can stall between the length header and the body for longer
// than the server's read poll interval. The frame must still come through
// intact rather than being re-parsed from the body bytes.
func TestSocketFrameSpansReadPolls(t *testing.T) {
	server, err := NewSocket(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(func() { server.Close() })

	requests := make(chan []byte, 1)
	errs := make(chan error, 1)
	go func() {
		data, err := server.ReceiveRequest(context.Background())
		if err != nil {
			errs <- err
			return
		}
		requests <- data
	}()

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	payload := []byte("hello")
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)+1))
	_, err = conn.Write(header[:])
	require.NoError(t, err)

	// Let several read polls expire before the body arrives.
	time.Sleep(3 * socketAcceptPoll)
	_, err = conn.Write(append([]byte{frameData}, payload...))
	require.NoError(t, err)

	select {
	case data := <-requests:
		require.Equal(t, payload, data)
	case err := <-errs:
		t.Fatalf("receive failed: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("split frame was not delivered")
	}
}

func TestSocketCloseIdempotent(t *testing.T) {
	server, client, _ := testSocketPair(t, Config{})
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	require.NoError(t, server.Close())
	require.NoError(t, server.Close())
}
