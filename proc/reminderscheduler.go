package proc

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/leeineian/porter/sys"
)

func init() {
	sys.OnClientReady(func(ctx context.Context, client *bot.Client) {
		sys.RegisterDaemon(sys.LogReminder, func(ctx context.Context) (bool, func(), func()) {
			return StartReminderScheduler(ctx, client)
		})
	})
}

var reminderSchedulerRunning int32

// StartReminderScheduler starts the reminder scheduler daemon
func StartReminderScheduler(ctx context.Context, client *bot.Client) (bool, func(), func()) {
	if !atomic.CompareAndSwapInt32(&reminderSchedulerRunning, 0, 1) {
		return false, nil, nil
	}

	return true, func() {
			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					checkAndSendReminders(ctx, client)
				case <-ctx.Done():
					return
				}
			}
		}, func() {
			sys.LogReminder("Shutting down Reminder System...")
		}
}

// checkAndSendReminders checks for due reminders and sends them
func checkAndSendReminders(parentCtx context.Context, client *bot.Client) {
	ctx, cancel := context.WithTimeout(parentCtx, 30*time.Second)
	defer cancel()

	// Atomically fetch and delete due reminders to prevent race conditions
	reminders, err := sys.ClaimDueReminders(ctx)
	if err != nil {
		sys.LogReminder(sys.MsgReminderFailedToQueryDue, err)
		return
	}

	for _, r := range reminders {
		sys.SafeGo(func() { sendReminder(parentCtx, client, r) })
	}
}

// sendReminder sends a reminder to the user via DM or channel
func sendReminder(parentCtx context.Context, client *bot.Client, r *sys.Reminder) {
	channelID := r.ChannelID
	userID := r.UserID

	if channelID == 0 || userID == 0 {
		sys.LogReminder("Invalid IDs for reminder %d. Skipping.", r.ID)
		return
	}

	reminderText := fmt.Sprintf("🔔 **Reminder for <@%s>**\n\n%s", userID, r.Message)
	targetChannelID := channelID

	if r.SendTo == "dm" {
		dmChannel, dmErr := client.Rest.CreateDMChannel(userID, rest.WithCtx(parentCtx))
		if dmErr != nil {
			sys.LogReminder(sys.MsgReminderFailedToCreateDM, userID, dmErr)
		} else {
			targetChannelID = dmChannel.ID()
		}
	}

	msg := discord.NewMessageCreateV2(
		discord.NewContainer(
			discord.NewTextDisplay(reminderText),
		),
	)

	_, err := client.Rest.CreateMessage(targetChannelID, msg, rest.WithCtx(parentCtx))

	if err != nil {
		sys.LogReminder(sys.MsgReminderFailedToSend, r.ID, err)
		return
	}

	sys.LogReminder(sys.MsgReminderSentAndDeleted, r.ID, userID)
}
