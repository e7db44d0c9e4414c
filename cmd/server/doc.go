// Package main is the entry point for the trackbridge server.
//
// The server hosts the tracking adapter and exposes it to an embedding
// page over a websocket channel. The page drives the map viewer and the
// card controller through namespaced requests and receives lifecycle
// events, state updates and group roster changes as messages.
//
// Architecture:
//
//	Host page ⇄ /ws channel ⇄ Bus ⇄ Adapter → Viewer / Cards
//	                                        → Group registry → Glympse API
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Adapter file in YAML, TOML or JSON
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -config adapter.yaml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
