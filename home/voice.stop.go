package home

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/porter/proc"
	"github.com/leeineian/porter/sys"
)

func handleMusicStop(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	vm := proc.GetVoiceManager()

	vm.Leave(context.Background(), *event.GuildID())

	_ = event.CreateMessage(discord.MessageCreate{
		Content: "🛑 " + sys.MsgVoiceStopped,
	})
}
