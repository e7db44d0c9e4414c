/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the
adapter service, tracking HTTP requests, group polling, the sandbox
message bus and the host channel. Each Metrics value owns a private
registry so independent instances never collide.

# Features

- HTTP request metrics (latency, throughput, size)
- Group metrics (tracked groups, fetches, delta sizes, poll ticks/skips)
- Bus metrics (messages by direction, pending queue depth, drops)
- Channel connection gauge
- Uptime

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	registry := group.NewRegistry(fetcher, notifier, cfg).WithMetrics(metrics)
*/
package monitoring
