// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// simbridge-server runs the engine side of the bridge. It is normally
// spawned by the controlling process through client.Launch, which passes
// the transport flags; running it by hand is useful for debugging a
// channel.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/simweaver/simbridge/config"
	"github.com/simweaver/simbridge/logging"
	"github.com/simweaver/simbridge/protocol"
	"github.com/simweaver/simbridge/server"
	"github.com/simweaver/simbridge/sim"
	"github.com/simweaver/simbridge/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		kind     = flag.String("transport", string(transport.KindShm), "transport backend (queue, shm, socket)")
		channel  = flag.String("channel", "simbridge", "channel name")
		addr     = flag.String("addr", "", "host:port for the socket transport; empty selects a unix socket")
		logLevel = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	log := logging.NewTextLogger(os.Stderr, level)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("configuration", "err", err)
		return 2
	}

	if transport.Kind(*kind) == transport.KindShm {
		// A crashed predecessor can leave its segment behind. Reclaim only
		// this channel's exact name; concurrent sessions on uuid-suffixed
		// channels must stay untouched.
		if transport.RemoveStale(*channel) {
			log.Warn("removed stale shared-memory segment", "channel", *channel)
		}
	}

	tr, err := transport.New(transport.Kind(*kind), withLogger(cfg.TransportConfig(*channel, *addr), log))
	if err != nil {
		log.Error("transport setup", "err", err)
		return 1
	}
	defer tr.Close()

	if err := tr.Start(); err != nil {
		log.Error("transport start", "err", err)
		return 1
	}
	log.Info("serving", "transport", *kind, "channel", *channel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := func(sc protocol.SceneConfig) (server.Engine, error) {
		if sc.DataPath == nil && cfg.DataPath != "" {
			sc.DataPath = &cfg.DataPath
		}
		return sim.New(sc, log)
	}

	if err := server.New(tr, factory, log).Serve(ctx); err != nil {
		log.Error("serve", "err", err)
		return 1
	}
	return 0
}

func withLogger(cfg transport.Config, log logging.Logger) transport.Config {
	cfg.Logger = log
	return cfg
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
