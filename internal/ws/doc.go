// Package ws provides the sandboxed channel to the host page over a
// WebSocket.
//
// A single host peer is attached at a time. The peer opens the socket,
// sends a connect frame and receives a connected frame; from then on the
// channel is live and frames flow both ways.
//
// Frames (Host → Adapter):
//   - connect: handshake
//   - event: fire-and-forget event, dispatched by name
//   - request: request with an id, answered by a response frame
//
// Frames (Adapter → Host):
//   - connected: handshake acknowledgment carrying the connection id
//   - message: named adapter message (Connected, Progress, StateUpdate, ...)
//   - response: result or error for a request
//
// Example Usage:
//
//	channel := ws.NewChannel(logger)
//	router.GET("/ws", channel.HandleConnection)
//	bus.New(channel, logger).Connect(ctx)
package ws
