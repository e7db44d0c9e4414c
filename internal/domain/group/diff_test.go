package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setOf(list ...Member) *members {
	m := newMembers()
	for _, mem := range list {
		m.add(mem)
	}
	return m
}

func assertDisjoint(t *testing.T, d Delta) {
	t.Helper()
	seen := make(map[string]string)
	for _, c := range d.Added {
		seen[c] = "added"
	}
	for _, c := range d.Removed {
		assert.NotEqual(t, "added", seen[c], "%s both added and removed", c)
		seen[c] = "removed"
	}
	for _, s := range d.Swapped {
		assert.Empty(t, seen[s.InvOld], "swapped old code %s also %s", s.InvOld, seen[s.InvOld])
		assert.Empty(t, seen[s.InvNew], "swapped new code %s also %s", s.InvNew, seen[s.InvNew])
	}
}

func TestDiffFull(t *testing.T) {
	logger := zap.NewNop()

	t.Run("adds and removes by id", func(t *testing.T) {
		known := setOf(Member{"1", "AAA"}, Member{"2", "BBB"}, Member{"3", "CCC"})
		d := diffFull(known, []Member{{"2", "BBB"}, {"3", "CCC"}, {"4", "DDD"}}, logger)

		assert.Equal(t, []string{"DDD"}, d.Added)
		assert.Equal(t, []string{"AAA"}, d.Removed)
		assert.Empty(t, d.Swapped)
		assertDisjoint(t, d)

		assert.Nil(t, known.find("1"))
		require.NotNil(t, known.find("4"))
		assert.Equal(t, 3, known.len())
	})

	t.Run("changed invite is a swap updated in place", func(t *testing.T) {
		known := setOf(Member{"1", "AAA"}, Member{"2", "BBB"}, Member{"3", "CCC"})
		d := diffFull(known, []Member{{"2", "XXX"}, {"3", "CCC"}, {"4", "DDD"}}, logger)

		assert.Equal(t, []string{"DDD"}, d.Added)
		assert.Equal(t, []string{"AAA"}, d.Removed)
		assert.Equal(t, []Swap{{User: "2", InvOld: "BBB", InvNew: "XXX"}}, d.Swapped)
		assertDisjoint(t, d)
		assert.Equal(t, "XXX", known.find("2").Invite)
	})

	t.Run("members without invite are not added", func(t *testing.T) {
		known := newMembers()
		d := diffFull(known, []Member{{"1", ""}, {"2", "BBB"}}, logger)

		assert.Equal(t, []string{"BBB"}, d.Added)
		assert.Equal(t, 1, known.len())
	})

	t.Run("identical lists produce empty delta", func(t *testing.T) {
		known := setOf(Member{"1", "AAA"})
		d := diffFull(known, []Member{{"1", "AAA"}}, logger)
		assert.True(t, d.Empty())
	})

	t.Run("empty list removes everyone", func(t *testing.T) {
		known := setOf(Member{"1", "AAA"}, Member{"2", "BBB"})
		d := diffFull(known, []Member{}, logger)
		assert.ElementsMatch(t, []string{"AAA", "BBB"}, d.Removed)
		assert.Equal(t, 0, known.len())
	})
}

func TestCompressEvents(t *testing.T) {
	items := []Event{
		{Type: EventInvite, Member: "m1", Invite: "X"},
		{Type: EventInvite, Member: "m2", Invite: "A"},
		{Type: EventLeave, Member: "m1"},
		{Type: "unknown", Member: "m1"},
		{Type: EventInvite, Member: "m1", Invite: "Y"},
	}

	out := compressEvents(items)
	assert.Equal(t, []Event{
		{Type: EventInvite, Member: "m2", Invite: "A"},
		{Type: EventInvite, Member: "m1", Invite: "Y"},
	}, out)
}

func TestDiffEvents(t *testing.T) {
	logger := zap.NewNop()

	t.Run("repeated reconnect collapses to final state", func(t *testing.T) {
		known := newMembers()
		d := diffEvents(known, []Event{
			{Type: EventInvite, Member: "m1", Invite: "X"},
			{Type: EventLeave, Member: "m1"},
			{Type: EventInvite, Member: "m1", Invite: "Y"},
		}, logger)

		assert.Equal(t, []string{"Y"}, d.Added)
		assert.Empty(t, d.Removed)
		assert.Empty(t, d.Swapped)
		assert.Equal(t, "Y", known.find("m1").Invite)
	})

	t.Run("swap for known member", func(t *testing.T) {
		known := setOf(Member{"m1", "OLD"})
		d := diffEvents(known, []Event{{Type: EventSwap, Member: "m1", Invite: "NEW"}}, logger)

		assert.Empty(t, d.Added)
		assert.Equal(t, []Swap{{User: "m1", InvOld: "OLD", InvNew: "NEW"}}, d.Swapped)
		assert.Equal(t, "NEW", known.find("m1").Invite)
	})

	t.Run("unchanged invite is ignored", func(t *testing.T) {
		known := setOf(Member{"m1", "SAME"})
		d := diffEvents(known, []Event{{Type: EventInvite, Member: "m1", Invite: "SAME"}}, logger)
		assert.True(t, d.Empty())
	})

	t.Run("leave removes known member", func(t *testing.T) {
		known := setOf(Member{"m1", "AAA"}, Member{"m2", "BBB"})
		d := diffEvents(known, []Event{{Type: EventLeave, Member: "m1"}}, logger)

		assert.Equal(t, []string{"AAA"}, d.Removed)
		assert.Nil(t, known.find("m1"))
		assert.Equal(t, []string{"BBB"}, known.invites())
	})

	t.Run("leave for unknown member is a no-op", func(t *testing.T) {
		known := setOf(Member{"m1", "AAA"})
		d := diffEvents(known, []Event{{Type: EventLeave, Member: "ghost"}}, logger)
		assert.True(t, d.Empty())
		assert.Equal(t, 1, known.len())
	})

	t.Run("mixed events stay disjoint", func(t *testing.T) {
		known := setOf(Member{"a", "A1"}, Member{"b", "B1"}, Member{"c", "C1"})
		d := diffEvents(known, []Event{
			{Type: EventLeave, Member: "a"},
			{Type: EventSwap, Member: "b", Invite: "B2"},
			{Type: EventInvite, Member: "d", Invite: "D1"},
			{Type: EventSwap, Member: "b", Invite: "B3"},
		}, logger)

		assert.Equal(t, []string{"D1"}, d.Added)
		assert.Equal(t, []string{"A1"}, d.Removed)
		assert.Equal(t, []Swap{{User: "b", InvOld: "B1", InvNew: "B3"}}, d.Swapped)
		assertDisjoint(t, d)
	})
}

func TestDiffFullKeepsServerOrder(t *testing.T) {
	known := newMembers()
	d := diffFull(known, []Member{{"1", "AAA"}, {"2", "BBB"}, {"3", "CCC"}}, zap.NewNop())

	assert.Equal(t, []string{"CCC", "BBB", "AAA"}, d.Added)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, known.invites())
	assert.Equal(t, []Member{{"3", "CCC"}, {"2", "BBB"}, {"1", "AAA"}}, known.snapshot())

	d = diffFull(known, []Member{{"1", "AAX"}, {"3", "CCX"}}, zap.NewNop())
	assert.Equal(t, []string{"BBB"}, d.Removed)
	assert.Equal(t, []Swap{
		{User: "1", InvOld: "AAA", InvNew: "AAX"},
		{User: "3", InvOld: "CCC", InvNew: "CCX"},
	}, d.Swapped)
	assert.Equal(t, []string{"AAX", "CCX"}, known.invites())
}

func TestMembersInvitesReverseListOrder(t *testing.T) {
	known := setOf(Member{"1", "A"}, Member{"2", "B"}, Member{"3", "C"})
	assert.Equal(t, []string{"C", "B", "A"}, known.invites())
}
