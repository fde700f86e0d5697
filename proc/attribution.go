package proc

import (
	"sort"

	"github.com/disgoorg/snowflake/v2"
)

// InviteState is one invite's observed state inside a snapshot.
type InviteState struct {
	Code      string
	InviterID snowflake.ID
	Uses      int
}

// Snapshot is a point-in-time view of a guild's active invites keyed by
// invite code, plus the guild's vanity state.
type Snapshot struct {
	Invites    map[string]InviteState
	VanityCode string
	VanityUses int
}

// AttributionKind tells how a join was explained.
type AttributionKind int

const (
	AttributionUnknown AttributionKind = iota
	AttributionInvite
	AttributionVanity
)

// Attribution is the outcome of comparing the snapshots taken before and
// after a member join.
type Attribution struct {
	Kind      AttributionKind
	Code      string
	InviterID snowflake.ID
	Uses      int
}

// Attribute explains a single member join by diffing the invite snapshot
// taken before the join against the one taken after. It is a pure function:
// no I/O, no clock, no shared state.
//
// The decision ladder:
//  1. every code whose use count rose is a candidate
//  2. one candidate wins outright
//  3. several candidates (two joins raced one refresh) are settled
//     deterministically: lowest pre-join use count first, then lowest code
//  4. a code present only in post with uses > 0 is a freshly created,
//     already-used invite
//  5. a vanity use-count rise means a vanity join
//  6. anything else is unknown
func Attribute(pre, post Snapshot) Attribution {
	type candidate struct {
		state   InviteState
		preUses int
	}
	var candidates []candidate

	for code, after := range post.Invites {
		before, existed := pre.Invites[code]
		switch {
		case existed && after.Uses > before.Uses:
			candidates = append(candidates, candidate{after, before.Uses})
		case !existed && after.Uses > 0:
			// Invite created and consumed between the two snapshots.
			candidates = append(candidates, candidate{after, 0})
		}
	}

	if len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].preUses != candidates[j].preUses {
				return candidates[i].preUses < candidates[j].preUses
			}
			return candidates[i].state.Code < candidates[j].state.Code
		})
		winner := candidates[0].state
		return Attribution{
			Kind:      AttributionInvite,
			Code:      winner.Code,
			InviterID: winner.InviterID,
			Uses:      winner.Uses,
		}
	}

	if post.VanityCode != "" && post.VanityUses > pre.VanityUses {
		return Attribution{Kind: AttributionVanity, Code: post.VanityCode}
	}

	// A guild with a vanity URL but no countable delta most likely admitted
	// the member through it; the use counter lags behind the join event.
	if post.VanityCode != "" && sameInviteUses(pre, post) {
		return Attribution{Kind: AttributionVanity, Code: post.VanityCode}
	}

	return Attribution{Kind: AttributionUnknown}
}

// sameInviteUses reports whether no regular invite changed use count between
// the snapshots.
func sameInviteUses(pre, post Snapshot) bool {
	for code, after := range post.Invites {
		before, existed := pre.Invites[code]
		if !existed || after.Uses != before.Uses {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the snapshot so callers can hold it across
// store mutations.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Invites:    make(map[string]InviteState, len(s.Invites)),
		VanityCode: s.VanityCode,
		VanityUses: s.VanityUses,
	}
	for code, inv := range s.Invites {
		out.Invites[code] = inv
	}
	return out
}
