// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"errors"
	"fmt"
)

// Transport-level failures are fatal to the current channel; the caller
// must re-establish it. They are distinct from protocol errors (schema
// mismatch) and application errors (engine failures).
var (
	ErrTimeout  = errors.New("transport: operation timed out")
	ErrOversize = errors.New("transport: payload exceeds configured maximum")
	ErrClosed   = errors.New("transport: channel closed")

	// ErrBusy reports a violation of the REQ/REP discipline: a second
	// request issued before the previous response was read.
	ErrBusy = errors.New("transport: request already in flight")
)

// FatalStartupError reports that the initiating side exhausted its connect
// retry budget without the serving side becoming ready.
type FatalStartupError struct {
	Channel  string
	Attempts int
	Err      error
}

func (e *FatalStartupError) Error() string {
	return fmt.Sprintf("transport: channel %q not ready after %d attempts: %v",
		e.Channel, e.Attempts, e.Err)
}

func (e *FatalStartupError) Unwrap() error {
	return e.Err
}
