package home

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/porter/sys"
)

const (
	StatsAnsiReset    = "\u001b[0m"
	StatsAnsiPink     = "\u001b[35m"
	StatsAnsiPinkBold = "\u001b[35;1m"
)

func statsTitle(text string) string {
	return fmt.Sprintf("%s%s%s", StatsAnsiPink, text, StatsAnsiReset)
}

func statsKey(text string) string {
	return fmt.Sprintf("%s> %s:%s", StatsAnsiPink, text, StatsAnsiReset)
}

func statsVal(text string) string {
	return fmt.Sprintf("%s%s%s", StatsAnsiPinkBold, text, StatsAnsiReset)
}

func init() {
	adminPerm := discord.PermissionAdministrator

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "stats",
		Description:              "Display system and application statistics (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionBool{
				Name:        "ephemeral",
				Description: "Whether the message should be ephemeral (default: true)",
				Required:    false,
			},
		},
	}, handleStats)
}

func handleStats(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	ephemeral := true
	if eph, ok := data.OptBool("ephemeral"); ok {
		ephemeral = eph
	}

	msg := discord.NewMessageCreateV2(
		discord.NewContainer(
			discord.NewTextDisplay("⏳ Loading stats..."),
		),
	)
	if ephemeral {
		msg.Flags = msg.Flags.Add(discord.MessageFlagEphemeral)
	}

	err := event.CreateMessage(msg)
	if err != nil {
		sys.LogDebug("Failed to send initial stats: %v", err)
		return
	}

	go func() {
		interTime := snowflake.ID(event.ID()).Time()
		roundTrip := time.Since(interTime).Milliseconds()
		gatewayPing := event.Client().Gateway.Latency().Milliseconds()

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		joins, _ := sys.CountInviteJoins(sys.AppContext)
		reminders, _ := sys.GetRemindersCount(sys.AppContext)

		guilds := 0
		for range event.Client().Caches.Guilds() {
			guilds++
		}

		uptime := time.Since(sys.StartupTime)

		var b strings.Builder
		b.WriteString("```ansi\n")
		b.WriteString(statsTitle("── Application ──") + "\n")
		fmt.Fprintf(&b, "%s %s\n", statsKey("Uptime"), statsVal(fmt.Sprintf("%dh %dm %ds", int(uptime.Hours()), int(uptime.Minutes())%60, int(uptime.Seconds())%60)))
		fmt.Fprintf(&b, "%s %s\n", statsKey("Guilds"), statsVal(fmt.Sprintf("%d", guilds)))
		fmt.Fprintf(&b, "%s %s\n", statsKey("Joins Tracked"), statsVal(fmt.Sprintf("%d", joins)))
		fmt.Fprintf(&b, "%s %s\n", statsKey("Active Reminders"), statsVal(fmt.Sprintf("%d", reminders)))
		b.WriteString("\n" + statsTitle("── Latency ──") + "\n")
		fmt.Fprintf(&b, "%s %s\n", statsKey("Round Trip"), statsVal(fmt.Sprintf("%dms", roundTrip)))
		fmt.Fprintf(&b, "%s %s\n", statsKey("Gateway"), statsVal(fmt.Sprintf("%dms", gatewayPing)))
		b.WriteString("\n" + statsTitle("── Runtime ──") + "\n")
		fmt.Fprintf(&b, "%s %s\n", statsKey("Go Version"), statsVal(runtime.Version()))
		fmt.Fprintf(&b, "%s %s\n", statsKey("Goroutines"), statsVal(fmt.Sprintf("%d", runtime.NumGoroutine())))
		fmt.Fprintf(&b, "%s %s\n", statsKey("Heap In Use"), statsVal(fmt.Sprintf("%.1f MiB", float64(mem.HeapInuse)/1024/1024)))
		fmt.Fprintf(&b, "%s %s\n", statsKey("GC Cycles"), statsVal(fmt.Sprintf("%d", mem.NumGC)))
		b.WriteString("```")

		update := discord.NewMessageUpdateV2([]discord.LayoutComponent{
			discord.NewContainer(
				discord.NewTextDisplay(b.String()),
			),
		})

		_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), update)
	}()
}
