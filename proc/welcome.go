package proc

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/porter/sys"
)

func init() {
	sys.RegisterMemberJoinHandler(handleWelcomeJoin)
}

// Humorous welcome lines, one picked at random per join.
var welcomeLines = []string{
	"Hold onto your bits, a new crafter has entered the server!",
	"Another pixel artist joins the canvas of %s!",
	"A wild new member appeared! %s used Welcome... It's super effective!",
	"Breaking news: %s just got more awesome!",
	"Looks like someone found the secret entrance to %s!",
	"Alert! Alert! Cool person detected in %s!",
	"The %s family just grew by one amazing human!",
	"Plot twist: %s just gained an awesome new character!",
	"The %s Council has approved your application. Welcome aboard!",
	"New member unlocked! Achievement: Joining the best community ever!",
}

func handleWelcomeJoin(event *events.GuildMemberJoin) {
	cfg := sys.GlobalConfig
	if cfg == nil || cfg.WelcomeChannelID == 0 {
		return
	}

	ctx := sys.AppContext
	if ctx == nil {
		ctx = context.Background()
	}

	client := event.Client()
	guildID := event.GuildID
	member := event.Member

	guildName := "the server"
	if guild, ok := client.Caches.Guild(guildID); ok {
		guildName = guild.Name
	}

	memberCount := fetchMemberCount(ctx, client, guildID)

	line := welcomeLines[rand.Intn(len(welcomeLines))]
	if countVerbs(line) > 0 {
		line = fmt.Sprintf(line, guildName)
	}

	content := fmt.Sprintf("## Welcome to %s!\n%s\n\nHey <@%s>, you are our **%s** member!",
		guildName, line, member.User.ID, ordinal(memberCount))

	msg := discord.NewMessageCreateV2(
		discord.NewContainer(
			discord.NewTextDisplay(content),
		),
	)

	if _, err := client.Rest.CreateMessage(cfg.WelcomeChannelID, msg, rest.WithCtx(ctx)); err != nil {
		sys.LogWelcome(sys.MsgWelcomeSendFail, member.User.Username, err)
	} else {
		sys.LogWelcome(sys.MsgWelcomeSent, member.User.Username, guildID.String(), memberCount)
	}

	if cfg.DefaultRoleID != 0 {
		err := client.Rest.AddMemberRole(guildID, member.User.ID, cfg.DefaultRoleID, rest.WithCtx(ctx))
		if err != nil {
			sys.LogWelcome(sys.MsgWelcomeRoleFail, member.User.Username, err)
		} else {
			sys.LogWelcome(sys.MsgWelcomeRoleGranted, member.User.Username)
		}
	}
}

// fetchMemberCount asks the REST API for the approximate member count; the
// gateway guild cache does not carry one.
func fetchMemberCount(ctx context.Context, client *bot.Client, guildID snowflake.ID) int {
	guild, err := client.Rest.GetGuild(guildID, true, rest.WithCtx(ctx))
	if err != nil {
		return 0
	}
	return guild.ApproximateMemberCount
}

// countVerbs counts the format verbs in a welcome line so plain lines are
// not run through Sprintf.
func countVerbs(s string) int {
	count := 0
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '%' && s[i+1] == 's' {
			count++
		}
	}
	return count
}

// ordinal renders 1 -> "1st", 22 -> "22nd" and so on. Zero (count unknown)
// becomes "newest" so the message still reads naturally.
func ordinal(n int) string {
	if n <= 0 {
		return "newest"
	}
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
