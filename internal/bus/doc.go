// Package bus relays named events and requests between the adapter and
// the host page over a single sandboxed channel.
//
// Outbound messages sent before the channel handshake completes are held
// in a pending queue and flushed once, in order, when the peer connects.
// Inbound events are dispatched by name; inbound requests are answered
// with the handler's result, or true when the handler has nothing to say.
package bus
