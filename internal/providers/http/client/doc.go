// Package client is the HTTP fetch collaborator behind every group and
// org request.
//
// Built on go-resty/resty over a hashicorp/go-retryablehttp transport:
//   - rate limiting per client instance (golang.org/x/time/rate)
//   - circuit breaker around remote calls (infrastructure/resilience)
//   - bearer token taken from the per-call account
//   - API envelopes {"result","response","meta":{"time"}} are unwrapped
//
// Get never returns an error. Transport failures, non-2xx statuses and
// envelope failures all resolve to a group.Result with Status false.
//
// Example Usage:
//
//	c := client.NewClient(client.DefaultConfig(), logger)
//	res := c.Get(ctx, "https://api.example.com/v2/groups/foo", nil, account)
package client
