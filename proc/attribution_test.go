package proc

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
)

func snap(vanityCode string, vanityUses int, invites ...InviteState) Snapshot {
	s := Snapshot{
		Invites:    make(map[string]InviteState, len(invites)),
		VanityCode: vanityCode,
		VanityUses: vanityUses,
	}
	for _, inv := range invites {
		s.Invites[inv.Code] = inv
	}
	return s
}

func TestAttribute(t *testing.T) {
	alice := snowflake.ID(100)
	bob := snowflake.ID(200)

	tests := []struct {
		name string
		pre  Snapshot
		post Snapshot
		want Attribution
	}{
		{
			name: "single use count rise wins",
			pre:  snap("", 0, InviteState{"abc", alice, 3}),
			post: snap("", 0, InviteState{"abc", alice, 4}),
			want: Attribution{Kind: AttributionInvite, Code: "abc", InviterID: alice, Uses: 4},
		},
		{
			name: "multi step rise still wins",
			pre:  snap("", 0, InviteState{"abc", alice, 3}),
			post: snap("", 0, InviteState{"abc", alice, 6}),
			want: Attribution{Kind: AttributionInvite, Code: "abc", InviterID: alice, Uses: 6},
		},
		{
			name: "tie settles on lowest pre-join uses",
			pre:  snap("", 0, InviteState{"abc", alice, 5}, InviteState{"xyz", bob, 1}),
			post: snap("", 0, InviteState{"abc", alice, 6}, InviteState{"xyz", bob, 2}),
			want: Attribution{Kind: AttributionInvite, Code: "xyz", InviterID: bob, Uses: 2},
		},
		{
			name: "tie on pre-join uses settles on lowest code",
			pre:  snap("", 0, InviteState{"zzz", alice, 2}, InviteState{"aaa", bob, 2}),
			post: snap("", 0, InviteState{"zzz", alice, 3}, InviteState{"aaa", bob, 3}),
			want: Attribution{Kind: AttributionInvite, Code: "aaa", InviterID: bob, Uses: 3},
		},
		{
			name: "fresh invite consumed before first refresh",
			pre:  snap("", 0),
			post: snap("", 0, InviteState{"new1", bob, 1}),
			want: Attribution{Kind: AttributionInvite, Code: "new1", InviterID: bob, Uses: 1},
		},
		{
			name: "fresh unused invite is not a candidate",
			pre:  snap("", 0),
			post: snap("", 0, InviteState{"new1", bob, 0}),
			want: Attribution{Kind: AttributionUnknown},
		},
		{
			name: "invite delta beats vanity rise",
			pre:  snap("cool-guild", 7, InviteState{"abc", alice, 1}),
			post: snap("cool-guild", 8, InviteState{"abc", alice, 2}),
			want: Attribution{Kind: AttributionInvite, Code: "abc", InviterID: alice, Uses: 2},
		},
		{
			name: "vanity use count rise",
			pre:  snap("cool-guild", 7, InviteState{"abc", alice, 1}),
			post: snap("cool-guild", 8, InviteState{"abc", alice, 1}),
			want: Attribution{Kind: AttributionVanity, Code: "cool-guild"},
		},
		{
			name: "vanity inferred when nothing else moved",
			pre:  snap("cool-guild", 0, InviteState{"abc", alice, 1}),
			post: snap("cool-guild", 0, InviteState{"abc", alice, 1}),
			want: Attribution{Kind: AttributionVanity, Code: "cool-guild"},
		},
		{
			name: "no vanity and no delta is unknown",
			pre:  snap("", 0, InviteState{"abc", alice, 1}),
			post: snap("", 0, InviteState{"abc", alice, 1}),
			want: Attribution{Kind: AttributionUnknown},
		},
		{
			name: "deleted single-use invite is unknown",
			pre:  snap("", 0, InviteState{"once", alice, 0}),
			post: snap("", 0),
			want: Attribution{Kind: AttributionUnknown},
		},
		{
			name: "deleted invite does not block vanity inference",
			pre:  snap("cool-guild", 0, InviteState{"once", alice, 0}),
			post: snap("cool-guild", 0),
			want: Attribution{Kind: AttributionVanity, Code: "cool-guild"},
		},
		{
			name: "empty snapshots are unknown",
			pre:  snap("", 0),
			post: snap("", 0),
			want: Attribution{Kind: AttributionUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Attribute(tt.pre, tt.post)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAttributeIsDeterministic(t *testing.T) {
	// Map iteration order must never leak into the outcome.
	pre := snap("", 0,
		InviteState{"ccc", 1, 2}, InviteState{"bbb", 2, 2}, InviteState{"aaa", 3, 2},
	)
	post := snap("", 0,
		InviteState{"ccc", 1, 3}, InviteState{"bbb", 2, 3}, InviteState{"aaa", 3, 3},
	)

	first := Attribute(pre, post)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Attribute(pre, post))
	}
	assert.Equal(t, "aaa", first.Code)
}

func TestSnapshotClone(t *testing.T) {
	original := snap("vanity", 2, InviteState{"abc", 1, 5})

	clone := original.Clone()
	clone.Invites["abc"] = InviteState{"abc", 1, 99}
	clone.Invites["new"] = InviteState{"new", 2, 1}

	assert.Equal(t, 5, original.Invites["abc"].Uses)
	assert.NotContains(t, original.Invites, "new")
}
