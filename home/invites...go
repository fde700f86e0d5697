package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/leeineian/porter/sys"
)

// The command itself is gated to the moderator tier; setlog additionally
// requires Administrator at runtime via requireGuildAdmin.
var invitesModPerm = discord.PermissionManageGuild

var invitesCommand = discord.SlashCommandCreate{
	Name:                     "invites",
	Description:              "Invite attribution tracking",
	DefaultMemberPermissions: omit.New(&invitesModPerm),
	Contexts: []discord.InteractionContextType{
		discord.InteractionContextTypeGuild,
	},
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "leaderboard",
			Description: "Show the top inviters for this server",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "limit",
					Description: "How many inviters to show (default: 10)",
					Required:    false,
					MinValue:    sys.Ptr(1),
					MaxValue:    sys.Ptr(25),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "user",
			Description: "Show who a member has invited",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "member",
					Description: "The member to look up",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "active",
			Description: "List this server's active invites and their use counts",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "history",
			Description: "Show the most recent tracked joins",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "limit",
					Description: "How many joins to show (default: 10)",
					Required:    false,
					MinValue:    sys.Ptr(1),
					MaxValue:    sys.Ptr(25),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "setlog",
			Description: "Set the channel for invite join logs (Admin Only)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionChannel{
					Name:        "channel",
					Description: "The channel to send join logs to",
					Required:    true,
					ChannelTypes: []discord.ChannelType{
						discord.ChannelTypeGuildText,
					},
				},
			},
		},
	},
}

func init() {
	sys.RegisterCommand(invitesCommand, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		if data.SubCommandName == nil {
			return
		}

		switch *data.SubCommandName {
		case "leaderboard":
			handleInvitesLeaderboard(event, data)
		case "user":
			handleInvitesUser(event, data)
		case "active":
			handleInvitesActive(event)
		case "history":
			handleInvitesHistory(event, data)
		case "setlog":
			handleInvitesSetLog(event, data)
		}
	})
}

// invitesRespondImmediate sends a one-shot ephemeral reply, used for
// validation failures before any deferral.
func invitesRespondImmediate(event *events.ApplicationCommandInteractionCreate, content string) {
	msg := discord.NewMessageCreateV2(
		discord.NewContainer(
			discord.NewTextDisplay(content),
		),
	)
	msg.Flags = msg.Flags.Add(discord.MessageFlagEphemeral)
	_ = event.CreateMessage(msg)
}

// invitesRespond updates a deferred interaction response.
func invitesRespond(event *events.ApplicationCommandInteractionCreate, content string) {
	update := discord.NewMessageUpdateV2([]discord.LayoutComponent{
		discord.NewContainer(
			discord.NewTextDisplay(content),
		),
	})
	_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), update)
}

// memberIsAdmin reports whether the resolved member carries the
// Administrator permission.
func memberIsAdmin(member *discord.ResolvedMember) bool {
	return member != nil && member.Permissions.Has(discord.PermissionAdministrator)
}

// requireGuildAdmin gates admin-only subcommands at runtime. The command's
// DefaultMemberPermissions only covers the moderator tier.
func requireGuildAdmin(event *events.ApplicationCommandInteractionCreate) bool {
	if event.Member() == nil || event.GuildID() == nil {
		invitesRespondImmediate(event, sys.ErrInvitesGuildOnly)
		return false
	}
	if !memberIsAdmin(event.Member()) {
		invitesRespondImmediate(event, sys.ErrInvitesAdminOnly)
		return false
	}
	return true
}
