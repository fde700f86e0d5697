package proc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/porter/sys"
)

func init() {
	sys.OnClientReady(func(ctx context.Context, client *bot.Client) {
		tracker := NewTracker(client)
		setTracker(tracker)
		sys.RegisterDaemon(sys.LogTracker, func(ctx context.Context) (bool, func(), func()) {
			return tracker.Start(ctx)
		})
	})

	sys.RegisterGuildReadyHandler(func(event *events.GuildReady) {
		if t := getTracker(); t != nil {
			t.Seed(sys.AppContext, event.GuildID)
		}
	})

	sys.RegisterInviteCreateHandler(func(event *events.InviteCreate) {
		if t := getTracker(); t != nil {
			t.OnInviteCreate(event)
		}
	})

	sys.RegisterInviteDeleteHandler(func(event *events.InviteDelete) {
		if t := getTracker(); t != nil {
			t.OnInviteDelete(event)
		}
	})

	sys.RegisterMemberJoinHandler(func(event *events.GuildMemberJoin) {
		if t := getTracker(); t != nil {
			t.OnMemberJoin(event)
		}
	})

	sys.RegisterGuildLeaveHandler(func(event *events.GuildLeave) {
		if t := getTracker(); t != nil {
			t.OnGuildLeave(event)
		}
	})
}

var (
	trackerMu      sync.RWMutex
	currentTracker *Tracker
)

func setTracker(t *Tracker) {
	trackerMu.Lock()
	currentTracker = t
	trackerMu.Unlock()
}

func getTracker() *Tracker {
	trackerMu.RLock()
	defer trackerMu.RUnlock()
	return currentTracker
}

// GetSnapshotStore exposes the live snapshot store to the command surface.
func GetSnapshotStore() *SnapshotStore {
	if t := getTracker(); t != nil {
		return t.store
	}
	return nil
}

// Tracker ties the snapshot store, the attribution engine and the ledger
// together around gateway events.
type Tracker struct {
	client *bot.Client
	store  *SnapshotStore

	// guildMu serializes the read-refresh-attribute-append sequence per
	// guild so two near-simultaneous joins cannot read the same pre
	// snapshot.
	mu      sync.Mutex
	guildMu map[snowflake.ID]*sync.Mutex
}

func NewTracker(client *bot.Client) *Tracker {
	return &Tracker{
		client:  client,
		store:   NewSnapshotStore(NewRestInviteFetcher(client)),
		guildMu: make(map[snowflake.ID]*sync.Mutex),
	}
}

func (t *Tracker) lockGuild(guildID snowflake.ID) *sync.Mutex {
	t.mu.Lock()
	mu, ok := t.guildMu[guildID]
	if !ok {
		mu = &sync.Mutex{}
		t.guildMu[guildID] = mu
	}
	t.mu.Unlock()
	mu.Lock()
	return mu
}

// Start runs the tracker daemon: an hourly reconciliation refresh that
// heals snapshot drift from missed gateway events.
func (t *Tracker) Start(ctx context.Context) (bool, func(), func()) {
	return true, func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					for guild := range t.client.Caches.Guilds() {
						t.Seed(ctx, guild.ID)
					}
				case <-ctx.Done():
					return
				}
			}
		}, func() {
			sys.LogTracker("Shutting down Invite Tracker...")
		}
}

// Seed refreshes a guild's snapshot with bounded retries. A guild that
// never seeds still gets its joins recorded, just as unknown.
func (t *Tracker) Seed(ctx context.Context, guildID snowflake.ID) {
	backoff := time.Second
	for attempt := 1; attempt <= 3; attempt++ {
		snap, err := t.store.Refresh(ctx, guildID)
		if err == nil {
			sys.LogTracker(sys.MsgTrackerSeeded, guildID.String(), len(snap.Invites))
			return
		}
		if attempt == 3 {
			sys.LogTracker(sys.MsgTrackerSeedFail, guildID.String(), err)
			return
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return
		}
	}
}

func (t *Tracker) OnInviteCreate(event *events.InviteCreate) {
	if event.GuildID == nil {
		return
	}
	// A freshly created invite always starts at zero uses.
	state := InviteState{Code: event.Code}
	if event.Inviter != nil {
		state.InviterID = event.Inviter.ID
	}
	t.store.ApplyInviteCreate(*event.GuildID, state)
	sys.LogTracker(sys.MsgTrackerInviteCreated, event.Code, event.GuildID.String())
}

// OnGuildLeave drops the guild's snapshot and join lock. Ledger rows are
// kept in case the bot returns.
func (t *Tracker) OnGuildLeave(event *events.GuildLeave) {
	t.store.Forget(event.GuildID)
	t.mu.Lock()
	delete(t.guildMu, event.GuildID)
	t.mu.Unlock()
	sys.LogTracker(sys.MsgTrackerGuildLeft, event.GuildID.String())
}

func (t *Tracker) OnInviteDelete(event *events.InviteDelete) {
	if event.GuildID == nil {
		return
	}
	t.store.ApplyInviteDelete(*event.GuildID, event.Code)
	sys.LogTracker(sys.MsgTrackerInviteDeleted, event.Code, event.GuildID.String())
}

// OnMemberJoin attributes the join, appends it to the ledger and fires the
// best-effort log-channel notification. Bots are recorded like anyone else.
func (t *Tracker) OnMemberJoin(event *events.GuildMemberJoin) {
	guildID := event.GuildID
	member := event.Member

	mu := t.lockGuild(guildID)
	defer mu.Unlock()

	ctx := sys.AppContext
	if ctx == nil {
		ctx = context.Background()
	}

	pre, hadPre := t.store.Get(guildID)
	post, err := t.store.Refresh(ctx, guildID)
	if err != nil {
		sys.LogTracker(sys.MsgTrackerRefreshFail, guildID.String(), err)
	}

	var attribution Attribution
	if hadPre && err == nil {
		attribution = Attribute(pre, post)
	} else {
		attribution = Attribution{Kind: AttributionUnknown}
	}

	record := &sys.InviteJoin{
		GuildID:   guildID,
		MemberID:  member.User.ID,
		MemberTag: member.User.Username,
		JoinedAt:  time.Now().UTC(),
	}

	switch attribution.Kind {
	case AttributionInvite:
		record.InviterID = ledgerInviterID(attribution.InviterID)
		record.InviteCode = attribution.Code
		sys.LogTracker(sys.MsgTrackerJoinAttributed, member.User.Username, guildID.String(), record.InviterID, attribution.Code)
	case AttributionVanity:
		record.InviterID = sys.UnknownInviter
		record.InviteCode = sys.VanityCode
		sys.LogTracker(sys.MsgTrackerJoinVanity, member.User.Username, guildID.String())
	default:
		record.InviterID = sys.UnknownInviter
		record.InviteCode = sys.UnknownCode
		sys.LogTracker(sys.MsgTrackerJoinUnknown, member.User.Username, guildID.String())
	}

	if err := sys.AppendInviteJoin(ctx, record); err != nil {
		sys.LogTracker(sys.MsgTrackerAppendFail, member.User.Username, err)
		return
	}

	t.notify(ctx, record, attribution)
}

// ledgerInviterID maps an attributed inviter to its ledger representation.
// Widget invites and invites whose creator left carry no inviter; those are
// recorded under the unknown sentinel so they never surface as a user.
func ledgerInviterID(id snowflake.ID) string {
	if id == 0 {
		return sys.UnknownInviter
	}
	return id.String()
}

// notify posts the join to the guild's configured log channel. Failures are
// logged and swallowed: delivery never gates the ledger.
func (t *Tracker) notify(ctx context.Context, record *sys.InviteJoin, attribution Attribution) {
	channelID, err := sys.GetInviteLogChannel(ctx, record.GuildID)
	if err != nil || channelID == 0 {
		return
	}

	var content string
	switch attribution.Kind {
	case AttributionInvite:
		if record.InviterID == sys.UnknownInviter {
			content = fmt.Sprintf(
				"## 📥 Member Joined\n<@%s> joined using invite `%s`",
				record.MemberID, record.InviteCode,
			)
			break
		}
		total, _ := sys.CountJoinsByInviter(ctx, record.GuildID, record.InviterID)
		content = fmt.Sprintf(
			"## 📥 Member Joined\n<@%s> was invited by <@%s>\n> **Code:** `%s`\n> **Their invites:** %d",
			record.MemberID, record.InviterID, record.InviteCode, total,
		)
	case AttributionVanity:
		content = fmt.Sprintf(
			"## 📥 Member Joined\n<@%s> joined using the server's vanity URL",
			record.MemberID,
		)
	default:
		content = fmt.Sprintf(
			"## 📥 Member Joined\n<@%s> joined, but the invite could not be determined",
			record.MemberID,
		)
	}

	msg := discord.NewMessageCreateV2(
		discord.NewContainer(
			discord.NewTextDisplay(content),
		),
	)

	if _, err := t.client.Rest.CreateMessage(channelID, msg, rest.WithCtx(ctx)); err != nil {
		sys.LogTracker(sys.MsgTrackerNotifyFail, channelID.String(), err)
	}
}
