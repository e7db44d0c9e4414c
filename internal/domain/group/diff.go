package group

import "go.uber.org/zap"

// members is an insertion-ordered member set keyed by id.
type members struct {
	list []*Member
	byID map[string]*Member
}

func newMembers() *members {
	return &members{byID: make(map[string]*Member)}
}

func (m *members) find(id string) *Member {
	return m.byID[id]
}

func (m *members) add(mem Member) {
	p := &Member{ID: mem.ID, Invite: mem.Invite}
	m.list = append(m.list, p)
	m.byID[p.ID] = p
}

func (m *members) remove(id string) {
	if _, ok := m.byID[id]; !ok {
		return
	}
	delete(m.byID, id)
	for i, p := range m.list {
		if p.ID == id {
			m.list = append(m.list[:i], m.list[i+1:]...)
			return
		}
	}
}

func (m *members) len() int {
	return len(m.list)
}

func (m *members) snapshot() []Member {
	out := make([]Member, len(m.list))
	for i, p := range m.list {
		out[i] = *p
	}
	return out
}

// invites returns invite codes in reverse list order. Full lists are
// tracked back to front, so this restores server order for them.
func (m *members) invites() []string {
	out := make([]string, 0, len(m.list))
	for i := len(m.list) - 1; i >= 0; i-- {
		out = append(out, m.list[i].Invite)
	}
	return out
}

// diffFull reconciles the tracked set against a complete member list.
// Members missing from the list are removed, unknown members with an
// invite are added, and known members whose invite changed are swapped
// and updated in place. Both the tracked set and list are walked back to
// front, so added codes come out newest member first.
func diffFull(known *members, list []Member, logger *zap.Logger) Delta {
	var delta Delta

	incoming := make(map[string]Member, len(list))
	for _, mem := range list {
		incoming[mem.ID] = mem
	}

	tracked := append([]*Member(nil), known.list...)
	for i := len(tracked) - 1; i >= 0; i-- {
		p := tracked[i]
		mem, ok := incoming[p.ID]
		if !ok {
			logger.Debug("remove", zap.String("invite", p.Invite))
			delta.Removed = append(delta.Removed, p.Invite)
			known.remove(p.ID)
			continue
		}

		if p.Invite != mem.Invite {
			swap := Swap{User: p.ID, InvOld: p.Invite, InvNew: mem.Invite}
			logger.Debug("invite swap", zap.Any("swap", swap))
			delta.Swapped = append(delta.Swapped, swap)
			p.Invite = mem.Invite
		}
	}

	for i := len(list) - 1; i >= 0; i-- {
		mem := list[i]
		if known.find(mem.ID) != nil || mem.Invite == "" {
			continue
		}
		logger.Debug("add", zap.String("invite", mem.Invite))
		known.add(mem)
		delta.Added = append(delta.Added, mem.Invite)
	}

	return delta
}

// compressEvents keeps only the last event per member, ordered by the
// position of that last event. Unknown event kinds are dropped.
func compressEvents(items []Event) []Event {
	last := make(map[string]int, len(items))
	for i, item := range items {
		switch item.Type {
		case EventInvite, EventSwap, EventLeave:
			last[item.Member] = i
		}
	}

	out := make([]Event, 0, len(last))
	for i, item := range items {
		if idx, ok := last[item.Member]; ok && idx == i {
			out = append(out, item)
		}
	}
	return out
}

// diffEvents applies an incremental event list to the tracked set.
func diffEvents(known *members, items []Event, logger *zap.Logger) Delta {
	var delta Delta

	events := compressEvents(items)
	if dropped := len(items) - len(events); dropped > 0 {
		logger.Debug("cleanup outdated events", zap.Int("dropped", dropped))
	}

	for _, item := range events {
		switch item.Type {
		case EventInvite, EventSwap:
			p := known.find(item.Member)
			switch {
			case p == nil:
				logger.Debug("add", zap.String("invite", item.Invite))
				delta.Added = append(delta.Added, item.Invite)
				known.add(Member{ID: item.Member, Invite: item.Invite})
			case p.Invite == item.Invite:
				logger.Debug("skip existing invite", zap.String("invite", item.Invite))
			default:
				swap := Swap{User: p.ID, InvOld: p.Invite, InvNew: item.Invite}
				logger.Debug("invite swap", zap.Any("swap", swap))
				delta.Swapped = append(delta.Swapped, swap)
				p.Invite = item.Invite
			}

		case EventLeave:
			if p := known.find(item.Member); p != nil {
				logger.Debug("remove", zap.String("invite", p.Invite))
				delta.Removed = append(delta.Removed, p.Invite)
				known.remove(p.ID)
			}
		}
	}

	return delta
}
