// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import "fmt"

// Error is a protocol-level failure: an unknown discriminant, a malformed
// payload, or a tensor whose bytes do not match its declared shape. It
// indicates a schema or version mismatch and is fatal to the current call.
type Error struct {
	msg string
}

func (e *Error) Error() string {
	return "protocol: " + e.msg
}

// Errorf builds a *Error with a formatted message.
func Errorf(format string, args ...any) error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}
