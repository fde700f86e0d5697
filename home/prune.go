package home

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/porter/sys"
)

// Discord refuses to bulk-delete messages older than two weeks; the margin
// keeps messages from aging past the limit between fetch and delete.
const pruneMaxAge = 14*24*time.Hour - time.Minute

func init() {
	prunePerm := discord.PermissionManageMessages

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "prune",
		Description:              "Bulk delete recent messages from this channel",
		DefaultMemberPermissions: omit.New(&prunePerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionInt{
				Name:        "amount",
				Description: "How many messages to delete (1-100, omit to sweep all recent messages)",
				Required:    false,
				MinValue:    sys.Ptr(1),
				MaxValue:    sys.Ptr(100),
			},
		},
	}, handlePrune)

	sys.RegisterComponentHandler("prune_confirm:", handlePruneConfirm)
	sys.RegisterComponentHandler("prune_cancel:", handlePruneCancel)
}

func handlePrune(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	// Zero means "everything bulk-deletable", i.e. the two-week window.
	amount, _ := data.OptInt("amount")

	scope := "**all recent**"
	if amount > 0 {
		scope = fmt.Sprintf("**%d**", amount)
	}

	// The invoker and amount travel in the custom ID so the confirm handler
	// can verify both without extra state.
	confirmID := fmt.Sprintf("prune_confirm:%s:%d", event.User().ID, amount)
	cancelID := fmt.Sprintf("prune_cancel:%s", event.User().ID)

	msg := discord.NewMessageCreateV2(
		discord.NewContainer(
			discord.NewTextDisplay(fmt.Sprintf("⚠️ "+sys.MsgPruneConfirm, scope)),
			discord.NewActionRow(
				discord.NewDangerButton("Delete", confirmID),
				discord.NewSecondaryButton("Cancel", cancelID),
			),
		),
	)
	msg.Flags = msg.Flags.Add(discord.MessageFlagEphemeral)
	_ = event.CreateMessage(msg)
}

func handlePruneConfirm(event *events.ComponentInteractionCreate) {
	parts := strings.Split(event.Data.CustomID(), ":")
	if len(parts) != 3 {
		return
	}

	invokerID, err := snowflake.Parse(parts[1])
	if err != nil || event.User().ID != invokerID {
		pruneUpdate(event, sys.ErrPruneNotInvoker)
		return
	}

	var amount int
	fmt.Sscanf(parts[2], "%d", &amount)
	if amount < 0 || amount > 100 {
		return
	}

	channelID := event.Channel().ID()
	pruneUpdate(event, "🧹 Deleting messages...")

	go func() {
		deleted := 0
		for {
			fetch := amount
			if fetch == 0 {
				fetch = 100
			}

			messages, err := event.Client().Rest.GetMessages(channelID, 0, 0, 0, fetch, rest.WithCtx(sys.AppContext))
			if err != nil {
				pruneFollowup(event, fmt.Sprintf("❌ "+sys.MsgPruneFail, err))
				return
			}

			ids := bulkDeletableIDs(messages, time.Now())
			if len(ids) == 0 {
				break
			}

			if err := deleteMessageBatch(event.Client(), channelID, ids); err != nil {
				pruneFollowup(event, fmt.Sprintf("❌ "+sys.MsgPruneFail, err))
				return
			}
			deleted += len(ids)

			// A bounded prune is a single batch; the sweep keeps going
			// until the fetch window runs dry.
			if amount > 0 || len(messages) < fetch {
				break
			}
		}

		pruneFollowup(event, fmt.Sprintf("✅ "+sys.MsgPruneDone, deleted))
	}()
}

// bulkDeletableIDs filters out messages too old for Discord's bulk delete.
func bulkDeletableIDs(messages []discord.Message, now time.Time) []snowflake.ID {
	cutoff := now.Add(-pruneMaxAge)
	ids := make([]snowflake.ID, 0, len(messages))
	for _, m := range messages {
		if m.ID.Time().Before(cutoff) {
			continue
		}
		ids = append(ids, m.ID)
	}
	return ids
}

func deleteMessageBatch(client *bot.Client, channelID snowflake.ID, ids []snowflake.ID) error {
	// Bulk delete requires at least two messages.
	if len(ids) == 1 {
		return client.Rest.DeleteMessage(channelID, ids[0], rest.WithCtx(sys.AppContext))
	}
	return client.Rest.BulkDeleteMessages(channelID, ids, rest.WithCtx(sys.AppContext))
}

func handlePruneCancel(event *events.ComponentInteractionCreate) {
	parts := strings.Split(event.Data.CustomID(), ":")
	if len(parts) != 2 {
		return
	}
	if invokerID, err := snowflake.Parse(parts[1]); err != nil || event.User().ID != invokerID {
		pruneUpdate(event, sys.ErrPruneNotInvoker)
		return
	}
	pruneUpdate(event, sys.MsgPruneCancelled)
}

func pruneUpdate(event *events.ComponentInteractionCreate, content string) {
	_ = event.UpdateMessage(discord.NewMessageUpdateV2([]discord.LayoutComponent{
		discord.NewContainer(
			discord.NewTextDisplay(content),
		),
	}))
}

func pruneFollowup(event *events.ComponentInteractionCreate, content string) {
	update := discord.NewMessageUpdateV2([]discord.LayoutComponent{
		discord.NewContainer(
			discord.NewTextDisplay(content),
		),
	})
	_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), update)
}
