package proc

import (
	"context"
	"errors"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInviteFetcher serves canned invite lists and can be flipped into a
// failing state to simulate REST outages.
type fakeInviteFetcher struct {
	invites    []InviteState
	vanityCode string
	vanityUses int
	err        error
}

func (f *fakeInviteFetcher) FetchInvites(ctx context.Context, guildID snowflake.ID) ([]InviteState, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]InviteState, len(f.invites))
	copy(out, f.invites)
	return out, nil
}

func (f *fakeInviteFetcher) FetchVanity(ctx context.Context, guildID snowflake.ID) (string, int) {
	return f.vanityCode, f.vanityUses
}

func TestSnapshotStoreRefresh(t *testing.T) {
	guildID := snowflake.ID(42)
	fetcher := &fakeInviteFetcher{
		invites:    []InviteState{{"abc", 100, 3}, {"xyz", 200, 0}},
		vanityCode: "cool-guild",
	}
	store := NewSnapshotStore(fetcher)

	snap, err := store.Refresh(context.Background(), guildID)
	require.NoError(t, err)

	assert.Len(t, snap.Invites, 2)
	assert.Equal(t, 3, snap.Invites["abc"].Uses)
	assert.Equal(t, "cool-guild", snap.VanityCode)

	got, ok := store.Get(guildID)
	require.True(t, ok)
	assert.Equal(t, snap, got)
}

func TestSnapshotStoreRefreshFailureRetainsSnapshot(t *testing.T) {
	guildID := snowflake.ID(42)
	fetcher := &fakeInviteFetcher{
		invites: []InviteState{{"abc", 100, 3}},
	}
	store := NewSnapshotStore(fetcher)

	_, err := store.Refresh(context.Background(), guildID)
	require.NoError(t, err)

	// Outage: the refresh must fail but hand back the last good snapshot.
	fetcher.err = errors.New("rest unavailable")

	retained, err := store.Refresh(context.Background(), guildID)
	require.Error(t, err)
	assert.Equal(t, 3, retained.Invites["abc"].Uses)

	got, ok := store.Get(guildID)
	require.True(t, ok)
	assert.Equal(t, 3, got.Invites["abc"].Uses, "stored snapshot must survive a failed refresh")
}

func TestSnapshotStoreRefreshFailureWithoutHistory(t *testing.T) {
	store := NewSnapshotStore(&fakeInviteFetcher{err: errors.New("rest unavailable")})

	snap, err := store.Refresh(context.Background(), snowflake.ID(42))
	require.Error(t, err)
	assert.Empty(t, snap.Invites)

	_, ok := store.Get(snowflake.ID(42))
	assert.False(t, ok)
}

func TestSnapshotStoreApplyInviteEvents(t *testing.T) {
	guildID := snowflake.ID(42)
	store := NewSnapshotStore(&fakeInviteFetcher{})

	// A create event may arrive before the guild was ever refreshed.
	store.ApplyInviteCreate(guildID, InviteState{Code: "new1", InviterID: 100})

	snap, ok := store.Get(guildID)
	require.True(t, ok)
	assert.Contains(t, snap.Invites, "new1")
	assert.Equal(t, 0, snap.Invites["new1"].Uses)

	store.ApplyInviteDelete(guildID, "new1")
	snap, _ = store.Get(guildID)
	assert.NotContains(t, snap.Invites, "new1")

	// Deleting from an unknown guild is a no-op.
	store.ApplyInviteDelete(snowflake.ID(999), "whatever")
}

func TestSnapshotStoreForget(t *testing.T) {
	guildID := snowflake.ID(42)
	fetcher := &fakeInviteFetcher{invites: []InviteState{{"abc", 100, 1}}}
	store := NewSnapshotStore(fetcher)

	_, err := store.Refresh(context.Background(), guildID)
	require.NoError(t, err)

	store.Forget(guildID)
	_, ok := store.Get(guildID)
	assert.False(t, ok)
}

func TestSnapshotStoreGetReturnsCopy(t *testing.T) {
	guildID := snowflake.ID(42)
	fetcher := &fakeInviteFetcher{invites: []InviteState{{"abc", 100, 1}}}
	store := NewSnapshotStore(fetcher)

	_, err := store.Refresh(context.Background(), guildID)
	require.NoError(t, err)

	first, _ := store.Get(guildID)
	first.Invites["abc"] = InviteState{"abc", 100, 99}

	second, _ := store.Get(guildID)
	assert.Equal(t, 1, second.Invites["abc"].Uses, "callers must not be able to mutate the stored snapshot")
}
