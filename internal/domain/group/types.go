package group

import (
	"context"
	"encoding/json"

	"github.com/GriffinCanCode/trackbridge/internal/shared/types"
)

// Snapshot types returned by the group endpoints.
const (
	SnapshotGroup  = "group"
	SnapshotEvents = "events"
)

// Event kinds carried by an incremental snapshot.
const (
	EventInvite = "invite"
	EventSwap   = "swap"
	EventLeave  = "leave"
)

// Member is one tracked member of a group.
type Member struct {
	ID     string `json:"id"`
	Invite string `json:"invite"`
}

// Event is one incremental membership change.
type Event struct {
	Type   string `json:"type"`
	Member string `json:"member"`
	Invite string `json:"invite,omitempty"`
}

// Snapshot is the decoded response of a group fetch.
type Snapshot struct {
	Type     string          `json:"type"`
	ID       json.Number     `json:"id,omitempty"`
	Name     string          `json:"name,omitempty"`
	Public   bool            `json:"public,omitempty"`
	Events   int64           `json:"events"`
	Members  []Member        `json:"members,omitempty"`
	Items    []Event         `json:"items,omitempty"`
	Branding json.RawMessage `json:"branding,omitempty"`
}

// Result is the envelope every fetch resolves to. Transport failures and
// business failures both surface as Status false.
type Result struct {
	Status   bool            `json:"status"`
	Response json.RawMessage `json:"response,omitempty"`
	Time     int64           `json:"time"`
	Error    string          `json:"error,omitempty"`
}

// Swap records a member whose invite code changed.
type Swap struct {
	User   string `json:"user"`
	InvOld string `json:"invOld"`
	InvNew string `json:"invNew"`
}

// Delta is the difference between two membership states.
type Delta struct {
	Added   []string
	Removed []string
	Swapped []Swap
}

// Empty reports whether the delta carries no change.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Swapped) == 0
}

// Status is the GroupStatus notification payload.
type Status struct {
	Result
	Group          string   `json:"group"`
	InvitesAdded   []string `json:"invitesAdded"`
	InvitesRemoved []string `json:"invitesRemoved"`
	InvitesSwapped []Swap   `json:"invitesSwapped"`
}

// Loaded is the GroupLoaded notification payload.
type Loaded struct {
	Result
	Group string `json:"group"`
}

// Fetcher performs the remote GET behind every group and org request.
// It never returns an error: failures resolve to a Result with Status false.
type Fetcher interface {
	Get(ctx context.Context, url string, params map[string]string, account *types.Account) Result
}

// Notifier receives registry notifications.
type Notifier interface {
	Notify(msg types.Msg, args interface{})
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg types.Msg, args interface{})

// Notify calls f(msg, args).
func (f NotifierFunc) Notify(msg types.Msg, args interface{}) {
	f(msg, args)
}
