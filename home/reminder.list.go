package home

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/porter/sys"
)

func handleReminderList(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	userID := event.User().ID

	// Handle dismissal
	if dismissID, ok := data.OptString("dismiss"); ok && dismissID != "" {
		if dismissID == "all" {
			rowsAffected, err := sys.DeleteAllRemindersForUser(sys.AppContext, userID)
			if err != nil {
				sys.LogReminder(sys.MsgReminderFailedToDeleteAll, err)
				reminderRespondImmediate(event, sys.ErrReminderDismissAllFail)
				return
			}

			reminderRespondImmediate(event, fmt.Sprintf("✅ "+sys.MsgReminderDismissedBatch, rowsAffected))
			return
		}

		var intID int64
		fmt.Sscanf(dismissID, "%d", &intID)

		deleted, err := sys.DeleteReminder(sys.AppContext, intID, userID)
		if err != nil {
			sys.LogReminder("Failed to delete reminder: %v", err)
			reminderRespondImmediate(event, sys.ErrReminderDismissFailed)
			return
		}
		if !deleted {
			reminderRespondImmediate(event, "❌ Reminder not found or already dismissed.")
			return
		}
		reminderRespondImmediate(event, "✅ "+sys.MsgReminderDismissed)
		return
	}

	// List all reminders
	reminders, err := sys.GetRemindersForUser(sys.AppContext, userID)
	if err != nil {
		sys.LogReminder(sys.MsgReminderFailedToQuery, err)
		reminderRespondImmediate(event, sys.ErrReminderFetchFailed)
		return
	}

	if len(reminders) == 0 {
		reminderRespondImmediate(event, sys.MsgReminderNoActive)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📝 **You have %d active reminder(s):**\n\n", len(reminders)))

	for idx, r := range reminders {
		location := fmt.Sprintf("<#%s>", r.ChannelID)
		if r.SendTo == "dm" {
			location = "Direct Message"
		}

		sb.WriteString(fmt.Sprintf("%d. **%s**\n   📍 %s | ⏰ <t:%d:R>\n\n",
			idx+1,
			reminderTruncate(r.Message, 50),
			location,
			r.RemindAt.Unix(),
		))
	}

	sb.WriteString("\n💡 Use `/reminder list dismiss:<reminder>` to dismiss a specific reminder or all reminders.")

	reminderRespondImmediate(event, sb.String())
}

func handleReminderAutocomplete(event *events.AutocompleteInteractionCreate) {
	focused := event.Data.Focused()
	if focused.Name != "dismiss" {
		return
	}

	userID := event.User().ID

	reminders, err := sys.GetRemindersForUser(sys.AppContext, userID)
	if err != nil {
		sys.LogReminder(sys.MsgReminderAutocompleteFailed, err)
		_ = event.AutocompleteResult(nil)
		return
	}

	var choices []discord.AutocompleteChoice

	// "Dismiss All" option first
	if len(reminders) > 0 {
		choices = append(choices, discord.AutocompleteChoiceString{
			Name:  "❌ Dismiss All",
			Value: "all",
		})
	}

	for idx, r := range reminders {
		if idx >= 24 { // Discord limit is 25
			break
		}

		// Autocomplete labels cannot render Discord timestamps, so use a
		// readable relative format instead.
		relativeTime := formatReminderRelativeTime(time.Now(), r.RemindAt)

		locationLabel := "Channel"
		if r.SendTo == "dm" {
			locationLabel = "DM"
		} else if ch, ok := event.Client().Caches.Channel(r.ChannelID); ok {
			locationLabel = "#" + ch.Name()
		}

		choiceName := fmt.Sprintf("%s | %s | %s",
			reminderTruncate(r.Message, 30),
			locationLabel,
			relativeTime,
		)

		choices = append(choices, discord.AutocompleteChoiceString{
			Name:  choiceName,
			Value: fmt.Sprintf("%d", r.ID),
		})
	}

	_ = event.AutocompleteResult(choices)
}
