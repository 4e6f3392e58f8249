// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

//go:build !linux

package transport

import "fmt"

func init() {
	register(KindShm, func(cfg Config) (Transport, error) {
		return nil, fmt.Errorf("shm transport requires linux")
	})
}

// RemoveStale is a no-op on platforms without the shm backend.
func RemoveStale(channel string) bool { return false }

// SweepStale is a no-op on platforms without the shm backend.
func SweepStale(prefix string) int { return 0 }
