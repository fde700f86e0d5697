package home

import (
	"fmt"
	"sort"
	"strings"

	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/porter/proc"
	"github.com/leeineian/porter/sys"
)

// handleInvitesActive handles the /invites active subcommand
func handleInvitesActive(event *events.ApplicationCommandInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		invitesRespondImmediate(event, sys.ErrInvitesGuildOnly)
		return
	}

	store := proc.GetSnapshotStore()
	if store == nil {
		invitesRespondImmediate(event, sys.ErrInvitesNoSnapshot)
		return
	}

	_ = event.DeferCreateMessage(false)

	go func() {
		// Refresh so the listing reflects live state, not the last seed.
		snapshot, err := store.Refresh(sys.AppContext, *guildID)
		if err != nil {
			// The store hands back the retained snapshot on failure; an
			// empty one means we never had data for this guild.
			if len(snapshot.Invites) == 0 && snapshot.VanityCode == "" {
				invitesRespond(event, sys.ErrInvitesNoSnapshot)
				return
			}
		}

		if len(snapshot.Invites) == 0 && snapshot.VanityCode == "" {
			invitesRespond(event, sys.MsgInvitesActiveNone)
			return
		}

		invites := make([]proc.InviteState, 0, len(snapshot.Invites))
		for _, inv := range snapshot.Invites {
			invites = append(invites, inv)
		}
		sort.Slice(invites, func(i, j int) bool {
			if invites[i].Uses != invites[j].Uses {
				return invites[i].Uses > invites[j].Uses
			}
			return invites[i].Code < invites[j].Code
		})

		var b strings.Builder
		b.WriteString("## 🔗 Active Invites\n\n")
		for _, inv := range invites {
			uses := "uses"
			if inv.Uses == 1 {
				uses = "use"
			}
			fmt.Fprintf(&b, "`%s` — **%d** %s, created by <@%s>\n", inv.Code, inv.Uses, uses, inv.InviterID)
		}
		if snapshot.VanityCode != "" {
			fmt.Fprintf(&b, "\nVanity URL: `discord.gg/%s`\n", snapshot.VanityCode)
		}

		invitesRespond(event, b.String())
	}()
}
