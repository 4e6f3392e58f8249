// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package protocol defines the wire schema of the simulation bridge: the
// closed set of request, response, action and configuration message shapes,
// and their binary encoding.
//
// Messages are encoded in the protobuf wire format (proto3 semantics) with
// a hand-rolled codec over protowire, so the schema lives in reviewable Go
// source rather than generated code. Field numbers are part of the schema
// and must never be reused or renumbered.
//
// The unions (Request, Response, Action, AgentConfig) are sealed
// interfaces: exactly one variant per value, discriminated on the wire by
// a oneof field number. Decoding an unrecognized discriminant fails with
// *Error; unknown ordinary fields are skipped for forward compatibility.
//
// Tensors carry their element type and shape explicitly. Shape is
// authoritative: a payload whose byte length does not match shape and
// element size is rejected, never reshaped or defaulted.
package protocol
