package home

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/porter/sys"
)

func init() {
	adminPerm := discord.PermissionAdministrator

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "ping",
		Description:              "Measure round-trip and gateway latency (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionBool{
				Name:        "ephemeral",
				Description: "Whether the message should be ephemeral (default: true)",
				Required:    false,
			},
		},
	}, handlePing)

	sys.RegisterComponentHandler("ping_refresh", handlePingRefresh)
}

// pingReport renders both latency figures: the interaction round trip
// (derived from the interaction snowflake's timestamp) and the gateway
// heartbeat latency.
func pingReport(interactionID snowflake.ID, gateway time.Duration) string {
	roundTrip := time.Since(interactionID.Time()).Milliseconds()
	return fmt.Sprintf("## 🏓 Pong!\n> **Round Trip:** %dms\n> **Gateway:** %dms",
		roundTrip, gateway.Milliseconds())
}

func pingContainer(content string) discord.ContainerComponent {
	return discord.NewContainer(
		discord.NewTextDisplay(content),
		discord.NewActionRow(
			discord.NewSecondaryButton("🔄 Refresh", "ping_refresh"),
		),
	)
}

func handlePing(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	ephemeral := true
	if eph, ok := data.OptBool("ephemeral"); ok {
		ephemeral = eph
	}

	msg := discord.NewMessageCreateV2(
		discord.NewContainer(
			discord.NewTextDisplay("🏓 Measuring..."),
		),
	)
	if ephemeral {
		msg.Flags = msg.Flags.Add(discord.MessageFlagEphemeral)
	}
	err := event.CreateMessage(msg)
	if err != nil {
		sys.LogDebug("Failed to send ping: %v", err)
		return
	}

	go func() {
		content := pingReport(snowflake.ID(event.ID()), event.Client().Gateway.Latency())

		update := discord.NewMessageUpdateV2([]discord.LayoutComponent{pingContainer(content)})

		_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), update)
	}()
}

func handlePingRefresh(event *events.ComponentInteractionCreate) {
	content := pingReport(snowflake.ID(event.ID()), event.Client().Gateway.Latency())

	_ = event.UpdateMessage(discord.NewMessageUpdateV2([]discord.LayoutComponent{pingContainer(content)}))
}
