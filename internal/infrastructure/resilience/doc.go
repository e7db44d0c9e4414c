/*
Package resilience guards the group fetch path with a circuit breaker.

The fetch client runs every remote call through a Breaker. Once the
configured number of consecutive failures is reached the breaker opens and
calls resolve immediately with ErrCircuitOpen, which the client maps to a
failed group.Result. After Timeout a limited number of trial calls is let
through; a successful trial closes the breaker again.

The health endpoint reports "degraded" while the breaker is open.

# Usage

	breaker := resilience.New("group-fetch", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed", zap.Stringer("to", to))
		},
	})

	out, err := breaker.Execute(func() (interface{}, error) {
		return fetch(ctx, url)
	})

State change callbacks run outside the breaker lock, so they may read the
breaker. Tests drive time through Settings.Now.

	Closed --[trip]-> Open --[timeout]-> HalfOpen --[MaxRequests ok]-> Closed
	                    ^                    |
	                    +-----[failure]------+
*/
package resilience
