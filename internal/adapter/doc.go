// Package adapter is the orchestrator between the host channel and the
// in-process collaborators (viewer, cards, group registry).
//
// Run assembles the operation surface, queues the capability manifest,
// starts the channel handshake and kicks off either card or invite
// loading. Lifecycle notifications from the collaborators drive a
// progress counter whose total grows when new cards are discovered.
//
// Delivery:
//   - Events go to the host bus and to the controller unless hideEvents
//   - State updates go to the host bus and to the controller unless hideUpdates
//   - AdapterInit goes to the controller only
package adapter
