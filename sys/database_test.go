package sys

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, InitDatabase(context.Background(), path))
	t.Cleanup(CloseDatabase)
	return path
}

func TestAppendInviteJoinDefaultsSentinels(t *testing.T) {
	setupTestDatabase(t)
	ctx := context.Background()

	j := &InviteJoin{
		GuildID:  snowflake.ID(1),
		MemberID: snowflake.ID(2),
		JoinedAt: time.Now().UTC(),
	}
	require.NoError(t, AppendInviteJoin(ctx, j))

	assert.NotZero(t, j.ID)
	assert.Equal(t, UnknownInviter, j.InviterID)
	assert.Equal(t, UnknownCode, j.InviteCode)
}

func TestQueryInviteLeaderboard(t *testing.T) {
	setupTestDatabase(t)
	ctx := context.Background()
	guildID := snowflake.ID(1)
	now := time.Now().UTC()

	appendJoin := func(member int64, inviterID, code string) {
		require.NoError(t, AppendInviteJoin(ctx, &InviteJoin{
			GuildID:    guildID,
			MemberID:   snowflake.ID(member),
			InviterID:  inviterID,
			InviteCode: code,
			JoinedAt:   now,
		}))
	}

	// alice: 3 joins, bob: 1, carol: 1, plus sentinel rows
	appendJoin(10, "100", "abc")
	appendJoin(11, "100", "abc")
	appendJoin(12, "100", "abc")
	appendJoin(13, "200", "xyz")
	appendJoin(14, "300", "qrs")
	appendJoin(15, UnknownInviter, VanityCode)
	appendJoin(16, UnknownInviter, UnknownCode)

	entries, err := QueryInviteLeaderboard(ctx, guildID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3, "sentinel rows must not appear on the leaderboard")

	assert.Equal(t, InviterCount{"100", 3}, entries[0])
	// Tied counts are ordered by inviter ID ascending.
	assert.Equal(t, InviterCount{"200", 1}, entries[1])
	assert.Equal(t, InviterCount{"300", 1}, entries[2])

	// Joins in other guilds never bleed in.
	require.NoError(t, AppendInviteJoin(ctx, &InviteJoin{
		GuildID: snowflake.ID(2), MemberID: 17, InviterID: "400", InviteCode: "zzz", JoinedAt: now,
	}))
	entries, err = QueryInviteLeaderboard(ctx, guildID, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	// Limit caps the result.
	entries, err = QueryInviteLeaderboard(ctx, guildID, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "100", entries[0].InviterID)
}

func TestQueryJoinsByInviterNewestFirst(t *testing.T) {
	setupTestDatabase(t)
	ctx := context.Background()
	guildID := snowflake.ID(1)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, AppendInviteJoin(ctx, &InviteJoin{
			GuildID:    guildID,
			MemberID:   snowflake.ID(10 + i),
			InviterID:  "100",
			InviteCode: "abc",
			JoinedAt:   base.Add(time.Duration(i) * time.Hour),
		}))
	}

	joins, err := QueryJoinsByInviter(ctx, guildID, "100", 2)
	require.NoError(t, err)
	require.Len(t, joins, 2)
	assert.Equal(t, snowflake.ID(12), joins[0].MemberID)
	assert.Equal(t, snowflake.ID(11), joins[1].MemberID)

	count, err := CountJoinsByInviter(ctx, guildID, "100")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestQueryRecentJoins(t *testing.T) {
	setupTestDatabase(t)
	ctx := context.Background()
	guildID := snowflake.ID(1)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, AppendInviteJoin(ctx, &InviteJoin{
		GuildID: guildID, MemberID: 10, InviterID: "100", InviteCode: "abc", JoinedAt: base,
	}))
	require.NoError(t, AppendInviteJoin(ctx, &InviteJoin{
		GuildID: guildID, MemberID: 11, InviterID: UnknownInviter, InviteCode: VanityCode, JoinedAt: base.Add(time.Minute),
	}))

	joins, err := QueryRecentJoins(ctx, guildID, 10)
	require.NoError(t, err)
	require.Len(t, joins, 2)
	assert.Equal(t, VanityCode, joins[0].InviteCode)
	assert.Equal(t, "abc", joins[1].InviteCode)
}

func TestInviteJoinsSurviveReopen(t *testing.T) {
	path := setupTestDatabase(t)
	ctx := context.Background()
	guildID := snowflake.ID(1)

	require.NoError(t, AppendInviteJoin(ctx, &InviteJoin{
		GuildID: guildID, MemberID: 10, InviterID: "100", InviteCode: "abc", JoinedAt: time.Now().UTC(),
	}))

	CloseDatabase()
	require.NoError(t, InitDatabase(ctx, path))

	count, err := CountJoinsByInviter(ctx, guildID, "100")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "committed rows must survive a restart")
}

func TestInviteLogChannelConfig(t *testing.T) {
	setupTestDatabase(t)
	ctx := context.Background()
	guildID := snowflake.ID(1)

	// Unset guilds report zero.
	channelID, err := GetInviteLogChannel(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(0), channelID)

	require.NoError(t, SetInviteLogChannel(ctx, guildID, snowflake.ID(555)))
	channelID, err = GetInviteLogChannel(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(555), channelID)

	// Setting again overwrites.
	require.NoError(t, SetInviteLogChannel(ctx, guildID, snowflake.ID(777)))
	channelID, err = GetInviteLogChannel(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(777), channelID)
}

func TestClaimDueReminders(t *testing.T) {
	setupTestDatabase(t)
	ctx := context.Background()

	due := &Reminder{
		UserID:    snowflake.ID(1),
		ChannelID: snowflake.ID(2),
		GuildID:   snowflake.ID(3),
		Message:   "due now",
		RemindAt:  time.Now().UTC().Add(-time.Minute),
		SendTo:    "channel",
	}
	future := &Reminder{
		UserID:    snowflake.ID(1),
		ChannelID: snowflake.ID(2),
		GuildID:   snowflake.ID(3),
		Message:   "later",
		RemindAt:  time.Now().UTC().Add(time.Hour),
		SendTo:    "dm",
	}
	require.NoError(t, AddReminder(ctx, due))
	require.NoError(t, AddReminder(ctx, future))

	claimed, err := ClaimDueReminders(ctx)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "due now", claimed[0].Message)

	// A second claim must not deliver the same reminder again.
	claimed, err = ClaimDueReminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	count, err := GetRemindersCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteReminderScopedToUser(t *testing.T) {
	setupTestDatabase(t)
	ctx := context.Background()

	r := &Reminder{
		UserID:    snowflake.ID(1),
		ChannelID: snowflake.ID(2),
		GuildID:   snowflake.ID(3),
		Message:   "mine",
		RemindAt:  time.Now().UTC().Add(time.Hour),
		SendTo:    "channel",
	}
	require.NoError(t, AddReminder(ctx, r))

	reminders, err := GetRemindersForUser(ctx, snowflake.ID(1))
	require.NoError(t, err)
	require.Len(t, reminders, 1)

	// Another user cannot delete it.
	deleted, err := DeleteReminder(ctx, reminders[0].ID, snowflake.ID(99))
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = DeleteReminder(ctx, reminders[0].ID, snowflake.ID(1))
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestBotConfigRoundTrip(t *testing.T) {
	setupTestDatabase(t)
	ctx := context.Background()

	value, err := GetBotConfig(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, SetBotConfig(ctx, "last_reg_mode", "guild"))
	require.NoError(t, SetBotConfig(ctx, "last_reg_mode", "global"))

	value, err = GetBotConfig(ctx, "last_reg_mode")
	require.NoError(t, err)
	assert.Equal(t, "global", value)
}
