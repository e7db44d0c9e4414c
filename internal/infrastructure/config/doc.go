// Package config provides 12-factor configuration management for trackbridge.
//
// Process configuration is loaded from environment variables with sensible
// defaults. The adapter/viewer configuration lives in a separate file named
// by ADAPTER_CONFIG and may be written as YAML, TOML or JSON.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, CORS origins)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Services: Remote service roots used by the group registry
//   - Groups: Poll interval and startup account
//   - Fetch: Outbound HTTP timeout, retries and rate
//   - Channel: Host channel handshake settings
//   - Sandbox: Custom interface script limits
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	file, err := config.LoadAdapter(cfg.AdapterFile)
//
// Environment Variables:
//   - PORT, HOST, CORS_ORIGINS, SHUTDOWN_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - SVC_GLYMPSE, SVC_ENROUTE, POLL_INTERVAL, ACCOUNT_TOKEN
//   - FETCH_TIMEOUT, FETCH_RPS, FETCH_RETRIES
//   - WS_HANDSHAKE_TIMEOUT, WS_CONNECT_TIMEOUT, SANDBOX_TIMEOUT
//   - ADAPTER_CONFIG
package config
