package home

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/porter/sys"
)

// handleInvitesSetLog handles the /invites setlog subcommand
func handleInvitesSetLog(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	if !requireGuildAdmin(event) {
		return
	}
	guildID := event.GuildID()

	channel, ok := data.OptChannel("channel")
	if !ok {
		return
	}

	_ = event.DeferCreateMessage(true)

	go func() {
		if err := sys.SetInviteLogChannel(sys.AppContext, *guildID, channel.ID); err != nil {
			sys.LogTracker("Failed to save log channel for guild %s: %v", guildID.String(), err)
			invitesRespond(event, sys.MsgInvitesLogSaveFail)
			return
		}

		invitesRespond(event, fmt.Sprintf(sys.MsgInvitesLogSet, channel.ID.String()))
	}()
}
