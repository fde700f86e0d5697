package home

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/porter/sys"
	"golang.org/x/time/rate"
)

func init() {
	adminPerm := discord.PermissionAdministrator

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "massdm",
		Description:              "Send a direct message to every cached member (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:        "message",
				Description: "The message to send",
				Required:    true,
			},
			discord.ApplicationCommandOptionBool{
				Name:        "test",
				Description: "Send the DM only to yourself (default: true)",
				Required:    false,
			},
		},
	}, handleMassDM)
}

// dmLimiter paces outgoing DMs across all massdm invocations so a large
// member list cannot trip Discord's rate limits.
var dmLimiter = rate.NewLimiter(rate.Limit(1), 3)

func handleMassDM(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	message, _ := data.OptString("message")
	testMode := true
	if t, ok := data.OptBool("test"); ok {
		testMode = t
	}

	guildID := event.GuildID()
	if guildID == nil {
		invitesRespondImmediate(event, sys.ErrInvitesGuildOnly)
		return
	}

	client := event.Client()

	var targets []snowflake.ID
	if testMode {
		targets = []snowflake.ID{event.User().ID}
	} else {
		for member := range client.Caches.Members(*guildID) {
			if member.User.Bot || member.User.System {
				continue
			}
			targets = append(targets, member.User.ID)
		}
	}

	intro := fmt.Sprintf(sys.MsgMassDMStarted, len(targets))
	if testMode {
		intro = sys.MsgMassDMTestMode
	}

	introMsg := discord.NewMessageCreateV2(
		discord.NewContainer(
			discord.NewTextDisplay(intro),
		),
	)
	introMsg.Flags = introMsg.Flags.Add(discord.MessageFlagEphemeral)
	_ = event.CreateMessage(introMsg)

	go func() {
		sent, failed := 0, 0
		for _, userID := range targets {
			if err := dmLimiter.Wait(sys.AppContext); err != nil {
				break
			}

			dmChannel, err := client.Rest.CreateDMChannel(userID, rest.WithCtx(sys.AppContext))
			if err != nil {
				sys.LogInfo(sys.MsgMassDMSendFail, userID.String(), err)
				failed++
				continue
			}

			_, err = client.Rest.CreateMessage(dmChannel.ID(), discord.MessageCreate{
				Content: message,
			}, rest.WithCtx(sys.AppContext))
			if err != nil {
				sys.LogInfo(sys.MsgMassDMSendFail, userID.String(), err)
				failed++
				continue
			}
			sent++
		}

		update := discord.NewMessageUpdateV2([]discord.LayoutComponent{
			discord.NewContainer(
				discord.NewTextDisplay(fmt.Sprintf(sys.MsgMassDMDone, sent, failed)),
			),
		})
		_, _ = client.Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), update)
	}()
}
