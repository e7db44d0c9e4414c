package types

// Msg names a notification exchanged with the host or the controller.
// The string values are a compatibility surface with existing hosts.
type Msg = string

const (
	MsgConnected    Msg = "Connected"
	MsgAdapterInit  Msg = "AdapterInit"
	MsgAdapterReady Msg = "AdapterReady"
	MsgProgress     Msg = "Progress"
	MsgDataUpdate   Msg = "DataUpdate"
	MsgStateUpdate  Msg = "StateUpdate"

	MsgViewerInit     Msg = "ViewerInit"
	MsgViewerReady    Msg = "ViewerReady"
	MsgCardsInitStart Msg = "CardsInitStart"
	MsgCardInit       Msg = "CardInit"
	MsgCardReady      Msg = "CardReady"
	MsgCardsInitEnd   Msg = "CardsInitEnd"

	MsgGroupLoaded         Msg = "GroupLoaded"
	MsgGroupStatus         Msg = "GroupStatus"
	MsgOrgObjects          Msg = "OrgObjects"
	MsgAccountLoginStatus  Msg = "AccountLoginStatus"
	MsgAccountDeleteStatus Msg = "AccountDeleteStatus"
)

// Core namespace requests served by the group registry.
const (
	ReqAddGroup      = "addGroup"
	ReqGetOrgObjects = "getOrgObjects"
)

// Host events the adapter listens for.
const (
	EventSetUserInfo   = "setUserInfo"
	EventAccountLogin  = "accountLogin"
	EventAccountLogout = "accountLogout"
)

// NotInitialized is returned by value queries before the viewer exists.
const NotInitialized = "NOT_INITIALIZED"

// Progress reports initialization progress.
type Progress struct {
	Current int `json:"curr"`
	Total   int `json:"total"`
}

// StateUpdate carries a single viewer property change.
type StateUpdate struct {
	ID  string      `json:"id"`
	Val interface{} `json:"val"`
}

// AdapterInit announces the parsed invite configuration.
type AdapterInit struct {
	IsCard bool     `json:"isCard"`
	T      []string `json:"t,omitempty"`
	PG     []string `json:"pg,omitempty"`
	TWT    []string `json:"twt,omitempty"`
	G      []string `json:"g,omitempty"`
}

// DataUpdate is the subset of a data update the adapter inspects.
type DataUpdate struct {
	Ref string `json:"ref,omitempty"`
}
