package proc

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

// InviteFetcher abstracts the REST lookups the snapshot store depends on.
type InviteFetcher interface {
	FetchInvites(ctx context.Context, guildID snowflake.ID) ([]InviteState, error)
	FetchVanity(ctx context.Context, guildID snowflake.ID) (code string, uses int)
}

// SnapshotStore holds the last-known invite snapshot per guild. Snapshots
// are a disposable cache of Discord's state: a failed refresh keeps the
// previous snapshot instead of wiping it, so a transient REST error cannot
// turn every subsequent join into an unknown attribution.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[snowflake.ID]Snapshot
	fetcher   InviteFetcher
}

func NewSnapshotStore(fetcher InviteFetcher) *SnapshotStore {
	return &SnapshotStore{
		snapshots: make(map[snowflake.ID]Snapshot),
		fetcher:   fetcher,
	}
}

// Refresh fetches the guild's active invites and replaces its snapshot.
// On failure the retained snapshot (if any) is returned along with the error.
func (s *SnapshotStore) Refresh(ctx context.Context, guildID snowflake.ID) (Snapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	invites, err := s.fetcher.FetchInvites(fetchCtx, guildID)
	if err != nil {
		s.mu.RLock()
		retained := s.snapshots[guildID].Clone()
		s.mu.RUnlock()
		return retained, err
	}

	snap := Snapshot{Invites: make(map[string]InviteState, len(invites))}
	for _, inv := range invites {
		snap.Invites[inv.Code] = inv
	}
	snap.VanityCode, snap.VanityUses = s.fetcher.FetchVanity(fetchCtx, guildID)

	s.mu.Lock()
	s.snapshots[guildID] = snap
	s.mu.Unlock()

	return snap.Clone(), nil
}

// Get returns a copy of the guild's current snapshot.
func (s *SnapshotStore) Get(guildID snowflake.ID) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[guildID]
	if !ok {
		return Snapshot{}, false
	}
	return snap.Clone(), true
}

// ApplyInviteCreate folds a gateway invite-create event into the snapshot
// without a REST round trip.
func (s *SnapshotStore) ApplyInviteCreate(guildID snowflake.ID, inv InviteState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[guildID]
	if !ok {
		snap = Snapshot{Invites: make(map[string]InviteState)}
	}
	snap.Invites[inv.Code] = inv
	s.snapshots[guildID] = snap
}

// ApplyInviteDelete removes a revoked or exhausted invite from the snapshot.
func (s *SnapshotStore) ApplyInviteDelete(guildID snowflake.ID, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[guildID]
	if !ok {
		return
	}
	delete(snap.Invites, code)
}

// Forget drops a guild's snapshot entirely, used when the bot leaves it.
func (s *SnapshotStore) Forget(guildID snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, guildID)
}

// --- disgo-backed fetcher ---

type restInviteFetcher struct {
	client *bot.Client
}

func NewRestInviteFetcher(client *bot.Client) InviteFetcher {
	return &restInviteFetcher{client: client}
}

func (f *restInviteFetcher) FetchInvites(ctx context.Context, guildID snowflake.ID) ([]InviteState, error) {
	invites, err := f.client.Rest.GetGuildInvites(guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, err
	}

	states := make([]InviteState, 0, len(invites))
	for _, inv := range invites {
		state := InviteState{Code: inv.Code, Uses: inv.Uses}
		if inv.Inviter != nil {
			state.InviterID = inv.Inviter.ID
		}
		states = append(states, state)
	}
	return states, nil
}

// FetchVanity reads the vanity code from the guild cache. The gateway does
// not expose a vanity use counter, so it stays at zero and vanity joins are
// inferred from the absence of regular invite deltas.
func (f *restInviteFetcher) FetchVanity(ctx context.Context, guildID snowflake.ID) (string, int) {
	guild, ok := f.client.Caches.Guild(guildID)
	if !ok || guild.VanityURLCode == nil {
		return "", 0
	}
	return *guild.VanityURLCode, 0
}
