package types

import "time"

// Account is the opaque authenticated context passed to fetches.
type Account struct {
	Token string `json:"token"`
}

// GroupSummary describes one tracked group.
type GroupSummary struct {
	Name       string    `json:"name"`
	Loaded     bool      `json:"loaded"`
	Polled     bool      `json:"polled"`
	Next       int64     `json:"next"`
	LastUpdate int64     `json:"last_update"`
	Invites    []string  `json:"invites"`
	AddedAt    time.Time `json:"added_at"`
}

// RegistryStats contains group registry statistics.
type RegistryStats struct {
	Groups        []GroupSummary `json:"groups"`
	Pending       int            `json:"pending"`
	Authenticated bool           `json:"authenticated"`
	Polling       bool           `json:"polling"`
}
