// Package server wires the trackbridge components and serves them over
// HTTP.
//
// Server Lifecycle:
//  1. Load process configuration and the adapter file
//  2. Build logger, metrics and tracer
//  3. Build the fetch client and the group registry
//  4. Build the websocket channel, the bus and the adapter
//  5. Register middleware and routes
//  6. Start the registry loop and the adapter, then serve HTTP
//  7. Graceful shutdown when the context is cancelled
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	file, err := config.LoadAdapter(cfg.AdapterFile)
//	srv, err := server.NewServer(cfg, file)
//	err = srv.Run(ctx)
package server
