package home

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/porter/sys"
)

func handleReminderSet(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	_ = event.DeferCreateMessage(true)

	go func() {
		message, _ := data.OptString("message")
		whenStr, _ := data.OptString("when")
		sendTo := "channel"
		if st, ok := data.OptString("sendto"); ok {
			sendTo = st
		}

		// Parse the natural language date
		now := time.Now()
		result, err := reminderParser.ParseDate(whenStr, now)
		if err != nil || result == nil {
			reminderRespond(event, "❌ "+sys.ErrReminderParseFailed)
			return
		}

		remindAt := *result
		if remindAt.Before(now) {
			reminderRespond(event, "❌ "+sys.ErrReminderPastTime)
			return
		}

		reminder := &sys.Reminder{
			UserID:    event.User().ID,
			ChannelID: event.Channel().ID(),
			Message:   message,
			RemindAt:  remindAt,
			SendTo:    sendTo,
		}
		if event.GuildID() != nil {
			reminder.GuildID = *event.GuildID()
		}

		if err := sys.AddReminder(sys.AppContext, reminder); err != nil {
			sys.LogReminder(sys.MsgReminderFailedToSave, err)
			reminderRespond(event, "❌ "+sys.ErrReminderSaveFailed)
			return
		}

		location := "this channel"
		if sendTo == "dm" {
			location = "your DMs"
		}

		// Discord timestamp formatting: <t:UNIX:F> full date/time, <t:UNIX:R> relative
		unixTime := remindAt.Unix()
		responseText := fmt.Sprintf("✅ **Reminder set!**\n\n**Message:** %s\n**When:** <t:%d:F> (<t:%d:R>)\n**Where:** %s",
			message,
			unixTime,
			unixTime,
			location,
		)

		reminderRespond(event, responseText)
	}()
}
