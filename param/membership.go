package param

import (
	"slices"
)

// Membership 是在某个日志位置生效的集群配置。
// Voters 参与 quorum 计算，Learners 只接收日志。两个切片均保持有序且去重。
type Membership struct {
	Voters   []NodeID `json:"voters"`
	Learners []NodeID `json:"learners,omitempty"`
}

// NewMembership creates a Membership with normalized voter and learner sets.
// A node listed as both voter and learner is kept as a voter only.
func NewMembership(voters, learners []NodeID) Membership {
	v := normalizeIDs(voters)
	l := make([]NodeID, 0, len(learners))
	for _, id := range normalizeIDs(learners) {
		if _, found := slices.BinarySearch(v, id); !found {
			l = append(l, id)
		}
	}
	if len(l) == 0 {
		l = nil
	}
	return Membership{Voters: v, Learners: l}
}

// NewInitialMembership returns the single-node membership of a pristine node.
func NewInitialMembership(id NodeID) Membership {
	return Membership{Voters: []NodeID{id}}
}

// IsVoter reports whether id is a voting member.
func (m Membership) IsVoter(id NodeID) bool {
	_, found := slices.BinarySearch(m.Voters, id)
	return found
}

// Contains reports whether id is a voter or a learner.
func (m Membership) Contains(id NodeID) bool {
	if m.IsVoter(id) {
		return true
	}
	_, found := slices.BinarySearch(m.Learners, id)
	return found
}

func (m Membership) Equal(other Membership) bool {
	return slices.Equal(m.Voters, other.Voters) && slices.Equal(m.Learners, other.Learners)
}

func (m Membership) Clone() Membership {
	return Membership{
		Voters:   slices.Clone(m.Voters),
		Learners: slices.Clone(m.Learners),
	}
}

func normalizeIDs(ids []NodeID) []NodeID {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// EffectiveMembership 是带有引入它的日志位置的 Membership。
type EffectiveMembership struct {
	LogID      LogID      `json:"log_id"`
	Membership Membership `json:"membership"`
}

// NewEffectiveMembership creates a new EffectiveMembership.
func NewEffectiveMembership(logID LogID, m Membership) *EffectiveMembership {
	return &EffectiveMembership{LogID: logID, Membership: m}
}

// NewInitialEffectiveMembership is the membership a pristine node reports at LogID{0,0}.
func NewInitialEffectiveMembership(id NodeID) EffectiveMembership {
	return EffectiveMembership{Membership: NewInitialMembership(id)}
}

// Clone returns a deep copy, tolerating a nil receiver.
func (em *EffectiveMembership) Clone() *EffectiveMembership {
	if em == nil {
		return nil
	}
	return &EffectiveMembership{LogID: em.LogID, Membership: em.Membership.Clone()}
}

// EqualMembership reports whether a and b describe the same membership at the same position.
func EqualMembership(a, b *EffectiveMembership) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.LogID == b.LogID && a.Membership.Equal(b.Membership)
}
