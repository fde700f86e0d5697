package home

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/porter/sys"
)

// handleInvitesLeaderboard handles the /invites leaderboard subcommand
func handleInvitesLeaderboard(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
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
		entries, err := sys.QueryInviteLeaderboard(sys.AppContext, *guildID, limit)
		if err != nil {
			invitesRespond(event, sys.ErrInvitesQueryFail)
			return
		}

		if len(entries) == 0 {
			invitesRespond(event, sys.MsgInvitesLeaderboardNone)
			return
		}

		var b strings.Builder
		b.WriteString("## 🏆 Invite Leaderboard\n\n")
		for i, entry := range entries {
			medal := fmt.Sprintf("`#%d`", i+1)
			switch i {
			case 0:
				medal = "🥇"
			case 1:
				medal = "🥈"
			case 2:
				medal = "🥉"
			}
			noun := "joins"
			if entry.Count == 1 {
				noun = "join"
			}
			fmt.Fprintf(&b, "%s <@%s> — **%d** %s\n", medal, entry.InviterID, entry.Count, noun)
		}

		invitesRespond(event, b.String())
	}()
}
