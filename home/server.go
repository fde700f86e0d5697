package home

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/porter/proc"
	"github.com/leeineian/porter/sys"
)

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "server",
		Description: "Show the game server's current status",
	}, handleServer)
}

func handleServer(event *events.ApplicationCommandInteractionCreate) {
	cfg := sys.GlobalConfig
	if cfg == nil || cfg.GameServerHost == "" {
		msg := discord.NewMessageCreateV2(
			discord.NewContainer(
				discord.NewTextDisplay(sys.MsgServerNotConfigured),
			),
		)
		msg.Flags = msg.Flags.Add(discord.MessageFlagEphemeral)
		_ = event.CreateMessage(msg)
		return
	}

	probe, ok := proc.LastProbe()

	var b strings.Builder
	b.WriteString("## 🎮 Game Server\n\n")
	fmt.Fprintf(&b, "**Address:** `%s:%d`\n", cfg.GameServerHost, cfg.GameServerPort)

	switch {
	case !ok:
		b.WriteString("**Status:** ⏳ Not probed yet, check back in a few seconds.\n")
	case probe.Online:
		b.WriteString("**Status:** 🟢 Online\n")
		fmt.Fprintf(&b, "**Players:** %d/%d\n", probe.PlayersOnline, probe.PlayersMax)
		fmt.Fprintf(&b, "**Ping:** %dms\n", probe.Latency.Milliseconds())
		if probe.Version != "" {
			fmt.Fprintf(&b, "**Version:** %s\n", probe.Version)
		}
		fmt.Fprintf(&b, "\nLast checked <t:%d:R>", probe.ObservedAt.Unix())
	default:
		b.WriteString("**Status:** 🔴 Offline\n")
		fmt.Fprintf(&b, "\nLast checked <t:%d:R>", probe.ObservedAt.Unix())
	}

	_ = event.CreateMessage(discord.NewMessageCreateV2(
		discord.NewContainer(
			discord.NewTextDisplay(b.String()),
		),
	))
}
