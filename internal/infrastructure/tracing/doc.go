/*
Package tracing provides lightweight request tracing.

# Overview

Inbound HTTP requests and outbound group fetches are recorded as spans.
Trace context travels in the X-Trace-ID and X-Span-ID headers so a fetch
issued on behalf of a request can be correlated with it in the logs.

# Usage

	// Create tracer
	tracer := tracing.New("trackbridge", logger)
	defer tracer.Close()

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	// Outbound propagation
	headers := map[string]string{}
	tracing.InjectTraceContext(ctx, headers)

# Performance

Spans are buffered (1000) and logged by a single collector goroutine.
A full buffer drops spans rather than blocking the caller.
*/
package tracing
