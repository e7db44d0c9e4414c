package group

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DemoOrgID is the reserved org id served from fixtures.
const DemoOrgID = "-999"

// MaxDemoDrivers bounds the drivers added to the demoshuttle group.
const MaxDemoDrivers = 7

type demoWaypoint struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

type demoOrgObject struct {
	Hierarchy      []string       `json:"hierarchy"`
	OrgID          int64          `json:"org_id"`
	Waypoints      []demoWaypoint `json:"waypoints"`
	LastModifiedBy int64          `json:"last_modified_by"`
	GroupName      string         `json:"group_name"`
	Access         string         `json:"access"`
	LastModified   int64          `json:"last_modified"`
	CreatedTime    int64          `json:"created_time"`
	CreatorAgentID int64          `json:"creator_agent_id"`
	ID             int64          `json:"_id"`
	Type           string         `json:"type"`
}

var demoOrgObjects = map[string][]demoOrgObject{
	DemoOrgID: {
		{
			Hierarchy: []string{},
			OrgID:     -999,
			Waypoints: []demoWaypoint{
				{Name: "LAX Terminal #1", Lat: 33.9451076, Lng: -118.4032515},
				{Name: "LAX Terminal #3 Lower Level FlyAway Stop", Lat: 33.9438901, Lng: -118.4060479},
				{Name: "LAX Terminal #5 Lower Level FlyAway Stop", Lat: 33.9426841, Lng: -118.4046578},
			},
			GroupName:    "demoshuttle",
			Access:       "public",
			LastModified: 1498017300352,
			CreatedTime:  1498017215788,
			ID:           2,
			Type:         "route",
		},
	},
}

// demoOrgResult returns the fixture for orgID, if one is published.
func demoOrgResult(orgID string, now int64) (Result, bool) {
	objects, ok := demoOrgObjects[orgID]
	if !ok {
		return Result{}, false
	}
	return Result{Status: true, Response: mustJSON(objects), Time: now}, true
}

func demoGroupSnapshot(name string, drivers int) (Snapshot, bool) {
	switch strings.ToLower(name) {
	case "bryanaroundseattle":
		return Snapshot{
			Type:    SnapshotGroup,
			ID:      "119",
			Events:  1,
			Members: []Member{{ID: "DNA7-4HDZ-03WHE", Invite: "demobot0"}},
			Public:  true,
			Name:    "BryanTheRussel",
		}, true

	case "seattleteam":
		members := make([]Member, 0, 8)
		for i := 0; i < 8; i++ {
			members = append(members, Member{
				ID:     fmt.Sprintf("DNA7-4HDZ-03WH%d", i),
				Invite: fmt.Sprintf("demobot%d", i),
			})
		}
		return Snapshot{
			Type:    SnapshotGroup,
			ID:      "119",
			Events:  1,
			Members: members,
			Public:  true,
			Name:    "SeattleTeam",
		}, true

	case "demoshuttle":
		if drivers < 0 {
			drivers = 0
		}
		if drivers > MaxDemoDrivers {
			drivers = MaxDemoDrivers
		}
		members := make([]Member, 0, drivers)
		for i := drivers - 1; i >= 0; i-- {
			members = append(members, Member{
				ID:     fmt.Sprintf("DNA7-4HDZ-03WH%d", i),
				Invite: fmt.Sprintf("demobot%d", i),
			})
		}
		return Snapshot{
			Type:     SnapshotGroup,
			ID:       "119",
			Events:   1,
			Members:  members,
			Public:   true,
			Name:     "DemoShuttle",
			Branding: json.RawMessage(`{"org_id":-999}`),
		}, true
	}

	return Snapshot{}, false
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
