// Package group tracks the membership of public groups.
//
// A Session owns one remote group: the initial full fetch, incremental
// event fetches driven by a cursor, the local member set and the diff
// that turns each response into added/removed/swapped invites. A Registry
// owns every session, defers adds until an account is available and
// drives one shared poll timer across all sessions.
//
// Components:
//   - diffFull / diffEvents: Pure membership reconciliation
//   - Session: Per-group state machine (unloaded -> loading -> synced <-> polling)
//   - Registry: Session lifecycle, deferred adds, poll timer, org objects
//
// Concurrency:
//
// Registry state is confined to the goroutine running Run. Fetches run on
// their own goroutines and post completions back, so a session's results
// are applied strictly in order. A poll tick that finds a session with a
// fetch still in flight skips that session.
//
// Notifications:
//   - GroupStatus: Only when a fetch produced a non-empty delta
//   - GroupLoaded: After every initial load, successful or not
//   - OrgObjects: Result of getOrgObjects, or a failure for a missing org id
//
// Example Usage:
//
//	registry := group.NewRegistry(fetcher, notifier, group.Config{
//	    SvcGlympse: "https://api.example.com/v2/",
//	}).WithLogger(logger)
//	go registry.Run(ctx)
//	registry.AddGroup(group.AddRequest{Name: "seattleteam"})
package group
