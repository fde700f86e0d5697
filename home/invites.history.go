package home

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/porter/sys"
)

// handleInvitesHistory handles the /invites history subcommand
func handleInvitesHistory(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID := event.GuildID()
	if guildID == nil {
		invitesRespondImmediate(event, sys.ErrInvitesGuildOnly)
		return
	}

	limit := 10
	if l, ok := data.OptInt("limit"); ok {
		limit = l
	}

	_ = event.DeferCreateMessage(false)

	go func() {
		joins, err := sys.QueryRecentJoins(sys.AppContext, *guildID, limit)
		if err != nil {
			invitesRespond(event, sys.ErrInvitesQueryFail)
			return
		}

		if len(joins) == 0 {
			invitesRespond(event, sys.MsgInvitesHistoryNone)
			return
		}

		var b strings.Builder
		b.WriteString("## 📋 Recent Joins\n\n")
		for _, j := range joins {
			fmt.Fprintf(&b, "<t:%d:R> <@%s> — %s\n", j.JoinedAt.Unix(), j.MemberID, describeJoinSource(j))
		}

		invitesRespond(event, b.String())
	}()
}

// describeJoinSource renders the attribution of one join record.
func describeJoinSource(j *sys.InviteJoin) string {
	switch {
	case j.InviteCode == sys.VanityCode:
		return "via the vanity URL"
	case j.InviterID == sys.UnknownInviter:
		return "source unknown"
	default:
		return fmt.Sprintf("invited by <@%s> (`%s`)", j.InviterID, j.InviteCode)
	}
}
