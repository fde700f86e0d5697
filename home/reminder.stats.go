package home

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/porter/sys"
)

func handleReminderStats(event *events.ApplicationCommandInteractionCreate) {
	userID := event.User().ID
	reminders, err := sys.GetRemindersForUser(sys.AppContext, userID)
	if err != nil {
		reminderRespondImmediate(event, sys.ErrReminderFetchFailed)
		return
	}

	if len(reminders) == 0 {
		reminderRespondImmediate(event, sys.MsgReminderNoActive)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(sys.MsgReminderStatsHeader, len(reminders)))

	for i, r := range reminders {
		if i >= 5 {
			sb.WriteString(fmt.Sprintf(sys.MsgReminderStatsMore, len(reminders)-5))
			break
		}

		relTime := formatReminderRelativeTime(time.Now().UTC(), r.RemindAt)
		truncatedMsg := reminderTruncate(r.Message, 50)

		sb.WriteString(fmt.Sprintf("**%d.** \"%s\"\n", i+1, truncatedMsg))
		sb.WriteString(fmt.Sprintf(sys.MsgReminderStatsDue, relTime, r.RemindAt.Format("Jan 02, 15:04")))
		if r.SendTo == "dm" {
			sb.WriteString(sys.MsgReminderStatsDM)
		}
		sb.WriteString("\n")
	}

	msg := discord.NewMessageCreateV2(
		discord.NewContainer(
			discord.NewTextDisplay(sb.String()),
		),
	)
	msg.Flags = msg.Flags.Add(discord.MessageFlagEphemeral)

	_ = event.CreateMessage(msg)
}
