package proc

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeineian/porter/sys"
)

// newTestTracker builds a tracker around a fake fetcher, without a gateway
// client. Handlers that only touch the store and the ledger work as-is.
func newTestTracker(fetcher InviteFetcher) *Tracker {
	return &Tracker{
		store:   NewSnapshotStore(fetcher),
		guildMu: make(map[snowflake.ID]*sync.Mutex),
	}
}

func setupTrackerDatabase(t *testing.T) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "bot.db")
	require.NoError(t, sys.InitDatabase(context.Background(), dbPath))
	t.Cleanup(func() { sys.CloseDatabase() })
}

func TestInviteEventsFoldIntoSnapshot(t *testing.T) {
	guildID := snowflake.ID(42)
	tracker := newTestTracker(&fakeInviteFetcher{})

	inviter := discord.User{ID: snowflake.ID(7)}
	tracker.OnInviteCreate(&events.InviteCreate{
		EventInviteCreate: gateway.EventInviteCreate{
			GuildID: &guildID,
			Code:    "fresh",
			Inviter: &inviter,
		},
	})

	snap, ok := tracker.store.Get(guildID)
	require.True(t, ok)
	assert.Equal(t, snowflake.ID(7), snap.Invites["fresh"].InviterID)
	assert.Equal(t, 0, snap.Invites["fresh"].Uses)

	tracker.OnInviteDelete(&events.InviteDelete{GuildID: &guildID, Code: "fresh"})
	snap, _ = tracker.store.Get(guildID)
	assert.NotContains(t, snap.Invites, "fresh")
}

func TestInviteCreateWithoutInviter(t *testing.T) {
	guildID := snowflake.ID(42)
	tracker := newTestTracker(&fakeInviteFetcher{})

	// Widget invites carry no inviter.
	tracker.OnInviteCreate(&events.InviteCreate{
		EventInviteCreate: gateway.EventInviteCreate{
			GuildID: &guildID,
			Code:    "widget",
		},
	})

	snap, ok := tracker.store.Get(guildID)
	require.True(t, ok)
	assert.Equal(t, snowflake.ID(0), snap.Invites["widget"].InviterID)
}

func TestLedgerInviterID(t *testing.T) {
	assert.Equal(t, sys.UnknownInviter, ledgerInviterID(0))
	assert.Equal(t, "7", ledgerInviterID(snowflake.ID(7)))
}

func TestMemberJoinThroughInviterlessInvite(t *testing.T) {
	setupTrackerDatabase(t)

	guildID := snowflake.ID(42)
	fetcher := &fakeInviteFetcher{invites: []InviteState{{"widget", 0, 0}}}
	tracker := newTestTracker(fetcher)

	_, err := tracker.store.Refresh(context.Background(), guildID)
	require.NoError(t, err)

	// The inviter-less invite is consumed.
	fetcher.invites = []InviteState{{"widget", 0, 1}}

	tracker.OnMemberJoin(&events.GuildMemberJoin{
		GenericGuildMember: &events.GenericGuildMember{
			GuildID: guildID,
			Member:  discord.Member{User: discord.User{ID: 777, Username: "newcomer"}},
		},
	})

	joins, err := sys.QueryRecentJoins(context.Background(), guildID, 5)
	require.NoError(t, err)
	require.Len(t, joins, 1)
	assert.Equal(t, sys.UnknownInviter, joins[0].InviterID, "a join without an inviter must use the sentinel")
	assert.Equal(t, "widget", joins[0].InviteCode, "the invite code itself is still known")

	entries, err := sys.QueryInviteLeaderboard(context.Background(), guildID, 10)
	require.NoError(t, err)
	assert.Empty(t, entries, "an inviter-less join must not mint a leaderboard entry")
}

func TestMemberJoinWithInviterRecordsID(t *testing.T) {
	setupTrackerDatabase(t)

	guildID := snowflake.ID(42)
	fetcher := &fakeInviteFetcher{invites: []InviteState{{"abc", 100, 3}}}
	tracker := newTestTracker(fetcher)

	_, err := tracker.store.Refresh(context.Background(), guildID)
	require.NoError(t, err)

	fetcher.invites = []InviteState{{"abc", 100, 4}}

	tracker.OnMemberJoin(&events.GuildMemberJoin{
		GenericGuildMember: &events.GenericGuildMember{
			GuildID: guildID,
			Member:  discord.Member{User: discord.User{ID: 888, Username: "invited"}},
		},
	})

	joins, err := sys.QueryRecentJoins(context.Background(), guildID, 5)
	require.NoError(t, err)
	require.Len(t, joins, 1)
	assert.Equal(t, "100", joins[0].InviterID)
	assert.Equal(t, "abc", joins[0].InviteCode)
}

func TestGuildLeaveDropsGuildState(t *testing.T) {
	guildID := snowflake.ID(42)
	fetcher := &fakeInviteFetcher{invites: []InviteState{{"abc", 100, 1}}}
	tracker := newTestTracker(fetcher)

	_, err := tracker.store.Refresh(context.Background(), guildID)
	require.NoError(t, err)

	tracker.OnGuildLeave(&events.GuildLeave{
		GenericGuild: &events.GenericGuild{GuildID: guildID},
	})

	_, ok := tracker.store.Get(guildID)
	assert.False(t, ok, "the snapshot must be dropped when the bot leaves")

	tracker.mu.Lock()
	_, held := tracker.guildMu[guildID]
	tracker.mu.Unlock()
	assert.False(t, held)
}
