// Package types provides shared data structures for the adapter backend.
//
// This package defines the message vocabulary exchanged between the
// adapter, the host page and the internal controller, plus the wire
// envelopes used on the sandboxed channel.
//
// Core Types:
//   - Msg: Host/controller message names (bit-for-bit compatible)
//   - Progress, StateUpdate, AdapterInit: Lifecycle payloads
//   - Frame: Sandboxed channel wire envelope
//   - CmdRequest: Namespaced request body ({id, args})
//   - Account: Opaque authenticated account context
//   - GroupSummary, RegistryStats: Group registry snapshots
//
// Example Usage:
//
//	bus.Send(types.MsgProgress, types.Progress{Current: 1, Total: 3})
package types
