// Package middleware provides the HTTP middleware of the trackbridge
// server.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing with configurable origins,
//     websocket upgrades allowed
//   - RateLimit: Per-IP token bucket rate limiting with idle eviction
//   - GlobalRateLimit: A single bucket shared by all clients
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.AllowedOrigins)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
