package home

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/porter/sys"
)

// handleInvitesUser handles the /invites user subcommand
func handleInvitesUser(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID := event.GuildID()
	if guildID == nil {
		invitesRespondImmediate(event, sys.ErrInvitesGuildOnly)
		return
	}

	target, ok := data.OptUser("member")
	if !ok {
		return
	}

	_ = event.DeferCreateMessage(false)

	go func() {
		total, err := sys.CountJoinsByInviter(sys.AppContext, *guildID, target.ID.String())
		if err != nil {
			invitesRespond(event, sys.ErrInvitesQueryFail)
			return
		}

		if total == 0 {
			invitesRespond(event, fmt.Sprintf(sys.MsgInvitesUserNone, target.Mention()))
			return
		}

		joins, err := sys.QueryJoinsByInviter(sys.AppContext, *guildID, target.ID.String(), 10)
		if err != nil {
			invitesRespond(event, sys.ErrInvitesQueryFail)
			return
		}

		noun := "members"
		if total == 1 {
			noun = "member"
		}

		var b strings.Builder
		fmt.Fprintf(&b, "## Invites by %s\n\n%s has invited **%d** %s.\n", target.Username, target.Mention(), total, noun)
		if len(joins) > 0 {
			b.WriteString("\n**Recent joins:**\n")
			for _, j := range joins {
				fmt.Fprintf(&b, "- <@%s> (`%s`) <t:%d:R>\n", j.MemberID, j.InviteCode, j.JoinedAt.Unix())
			}
		}

		invitesRespond(event, b.String())
	}()
}
