package sys

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// --- Globals & Styles ---

var (
	// Level colors
	infoColor  = color.New()
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	fatalColor = color.New(color.FgRed, color.Bold)

	// Component colors
	databaseColor = color.New()
	trackerColor  = color.New(color.FgGreen)
	welcomeColor  = color.New(color.FgGreen)
	reminderColor = color.New(color.FgMagenta)
	sessionColor  = color.New(color.FgMagenta)
	voiceColor    = color.New(color.FgMagenta)
	serverColor   = color.New(color.FgBlue)
	healthColor   = color.New(color.FgBlue)

	// Global state
	DefaultTimeFormat = "15:04:05"
	IsSilent          = false
	LogToFile         = false
	Logger            *slog.Logger

	// Internal state
	logFile *os.File
	logMu   sync.Mutex
)

// --- Initialization ---

func init() {
	InitLogger(false, false)
}

// InitLogger initializes the global structured logger
func InitLogger(silent bool, saveToFile bool) {
	logMu.Lock()
	defer logMu.Unlock()

	IsSilent = silent
	LogToFile = saveToFile
	level := slog.LevelInfo
	if strings.ToLower(os.Getenv("DEBUG")) == "true" {
		level = slog.LevelDebug
	}

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writer io.Writer = os.Stdout
	var err error

	if LogToFile {
		exePath, exeErr := os.Executable()
		logName := GetProjectName() + ".log"
		if exeErr == nil {
			logName = filepath.Base(exePath) + ".log"
		}

		logFile, err = os.OpenFile(logName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", logName, err)
		} else {
			writer = io.MultiWriter(os.Stdout, NewStripANSIWriter(logFile))
		}
	}

	color.NoColor = false

	handler := NewBotLogHandler(writer, &BotLogHandlerOptions{
		Silent: IsSilent,
		Level:  level,
	})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func SetSilentMode(silent bool) {
	InitLogger(silent, LogToFile)
}

// --- Public Logging API ---

func LogInfo(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...))
}

func LogWarn(format string, v ...any) {
	slog.Warn(fmt.Sprintf(format, v...))
}

func LogError(format string, v ...any) {
	slog.Error(fmt.Sprintf(format, v...))
}

func LogFatal(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	slog.Log(context.Background(), slog.LevelError+4, msg)
	panic(msg)
}

func LogDebug(format string, v ...any) {
	slog.Debug(fmt.Sprintf(format, v...))
}

// Component Loggers

func LogDatabase(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "database"))
}

func LogTracker(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "tracker"))
}

func LogWelcome(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "welcome"))
}

func LogReminder(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "reminder"))
}

func LogStatusRotator(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "session"))
}

func LogVoice(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "voice"))
}

func LogServerStatus(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "server"))
}

func LogHealth(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "health"))
}

// --- Log Handler Implementation ---

type BotLogHandlerOptions struct {
	Silent bool
	Level  slog.Leveler
}

type BotLogHandler struct {
	w    io.Writer
	opts *BotLogHandlerOptions
	mu   *sync.Mutex
}

func NewBotLogHandler(w io.Writer, opts *BotLogHandlerOptions) *BotLogHandler {
	if opts == nil {
		opts = &BotLogHandlerOptions{Level: slog.LevelInfo}
	}
	return &BotLogHandler{
		w:    w,
		opts: opts,
		mu:   &sync.Mutex{},
	}
}

func (h *BotLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.opts.Silent {
		return false
	}
	return level >= h.opts.Level.Level()
}

func (h *BotLogHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opts.Silent {
		return nil
	}

	timeStr := time.Now().Format(DefaultTimeFormat)
	var levelStr string
	var levelColor *color.Color

	switch {
	case r.Level >= slog.LevelError+4:
		levelStr = "FATAL"
		levelColor = fatalColor
	case r.Level >= slog.LevelError:
		levelStr = "ERROR"
		levelColor = errorColor
	case r.Level >= slog.LevelWarn:
		levelStr = "WARN"
		levelColor = warnColor
	case r.Level >= slog.LevelInfo:
		levelStr = "INFO"
		levelColor = infoColor
	}

	component := ""
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = strings.ToUpper(a.Value.String())
			return false
		}
		return true
	})

	fmt.Fprintf(h.w, "%s", timeStr)

	if component != "" {
		if levelStr != "INFO" {
			fmt.Fprintf(h.w, " %s", levelColor.Sprintf("[%s]", levelStr))
		}
		compColor := getComponentColor(component)
		fmt.Fprintf(h.w, " %s\n", colorizeWithResets(compColor, fmt.Sprintf("[%s] %s", component, r.Message)))
	} else {
		displayMsg := fmt.Sprintf("[%s] %s", levelStr, r.Message)
		if levelStr == "INFO" && strings.HasPrefix(r.Message, "[") {
			if idx := strings.Index(r.Message, "]"); idx > 0 && idx < 20 {
				displayMsg = r.Message
			}
		}
		fmt.Fprintf(h.w, " %s\n", colorizeWithResets(levelColor, displayMsg))
	}

	return nil
}

func (h *BotLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *BotLogHandler) WithGroup(name string) slog.Handler       { return h }

// --- Formatting Helpers ---

func getComponentColor(name string) *color.Color {
	switch name {
	case "DATABASE":
		return databaseColor
	case "TRACKER":
		return trackerColor
	case "WELCOME":
		return welcomeColor
	case "REMINDER":
		return reminderColor
	case "SESSION":
		return sessionColor
	case "VOICE":
		return voiceColor
	case "SERVER":
		return serverColor
	case "HEALTH":
		return healthColor
	default:
		return color.New(color.FgCyan)
	}
}

func colorizeWithResets(c *color.Color, text string) string {
	if !strings.Contains(text, "\x1b[0m") {
		return c.Sprint(text)
	}

	marker := "@@@MSG@@@"
	wrapped := c.Sprint(marker)
	idx := strings.Index(wrapped, marker)
	if idx <= 0 {
		return text
	}
	startSeq := wrapped[:idx]

	modifiedText := strings.ReplaceAll(text, "\x1b[0m", "\x1b[0m"+startSeq)
	return c.Sprint(modifiedText)
}

// --- Utilities & State ---

func GetLogPath() string {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile == nil {
		return ""
	}
	return logFile.Name()
}

// Ptr returns a pointer to the given value.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to the specified length with ellipsis at the end.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// --- ANSI Stripper ---

type StripANSIWriter struct {
	w  io.Writer
	re *regexp.Regexp
}

func NewStripANSIWriter(w io.Writer) *StripANSIWriter {
	return &StripANSIWriter{
		w:  w,
		re: regexp.MustCompile(`\x1b\[[0-9;]*m`),
	}
}

func (s *StripANSIWriter) Write(p []byte) (n int, err error) {
	clean := s.re.ReplaceAll(p, []byte(""))
	_, err = s.w.Write(clean)
	return len(p), err
}

// --- Message Constants ---

const (
	// --- Infrastructure & Lifecycle ---
	MsgConfigFailedToLoad  = "Failed to load config: %v"
	MsgConfigMissingToken  = "DISCORD_TOKEN is not set in .env file"
	MsgDatabaseInitSuccess = "Database initialized successfully"
	MsgDatabaseTableError  = "Failed to create table: %w"
	MsgDatabasePragmaError = "Failed to set pragma %s: %w"
	MsgDaemonStarting      = "Starting..."
	MsgBotStarting         = "Starting %s..."
	MsgBotReady            = "%s is ready! (ID: %s) (PID: %d) (Took: %dms)"
	MsgBotShutdown         = "Shutting down %s..."
	MsgBotKillingOld       = "Killing running instance... (PID: %d)"
	MsgBotOldTerminated    = "Old instance terminated."
	MsgBotRegisterFail     = "Command registration failed: %v"
	MsgBotAPIStatusError   = "discord API returned status %d"
	MsgGenericError        = "%v"

	// --- Command Loader & Registry ---
	MsgLoaderSyncCommands       = "Syncing %s commands..."
	MsgLoaderCleanup            = "[CLEANUP] Removing commands from previous dev guild: %s"
	MsgLoaderDevStarting        = "[DEV] Registering commands to guild: %s"
	MsgLoaderDevRegistered      = "[DEV] Registered: %s"
	MsgLoaderDevFail            = "[DEV] Registration failed: %v"
	MsgLoaderDevGlobalClear     = "[DEV] Verifying global commands are cleared..."
	MsgLoaderDevGlobalClearFail = "[DEV] Global clear skipped (likely rate limited): %v"
	MsgLoaderProdStarting       = "[PROD] Registering commands globally..."
	MsgLoaderProdRegistered     = "[PROD] Registered: %s"
	MsgLoaderProdFail           = "[PROD] Global registration failed: %w"
	MsgLoaderScanStarting       = "[SCAN] Checking all guilds for ghost commands..."
	MsgLoaderScanCleared        = "[SCAN] Cleared ghost commands from: %s (%s)"
	MsgLoaderPanicRecovered     = "Panic recovered in handler: %v"

	// --- Invite Tracker ---
	MsgTrackerSeeded          = "Seeded invite snapshot for guild %s (%d invites)"
	MsgTrackerSeedFail        = "Failed to seed invites for guild %s: %v"
	MsgTrackerRefreshFail     = "Failed to refresh invites for guild %s: %v (keeping last snapshot)"
	MsgTrackerJoinAttributed  = "%s joined guild %s via %s (code: %s)"
	MsgTrackerJoinVanity      = "%s joined guild %s via vanity URL"
	MsgTrackerJoinUnknown     = "%s joined guild %s via unknown invite"
	MsgTrackerAppendFail      = "Failed to record join for %s: %v"
	MsgTrackerNotifyFail      = "Failed to send invite log to channel %s: %v"
	MsgTrackerInviteCreated   = "Invite %s created in guild %s"
	MsgTrackerInviteDeleted   = "Invite %s deleted in guild %s"
	MsgTrackerGuildLeft       = "Left guild %s, dropped its invite snapshot"
	ErrInvitesGuildOnly       = "This command can only be used in a server."
	ErrInvitesNoPermission    = "You need the **Manage Server** permission to use this command."
	ErrInvitesAdminOnly       = "You need the **Administrator** permission to use this command."
	ErrInvitesQueryFail       = "Failed to query invite records."
	ErrInvitesNoSnapshot      = "No invite data is available for this server yet."
	MsgInvitesLeaderboardNone = "No tracked invites yet. The leaderboard fills up as members join!"
	MsgInvitesUserNone        = "%s hasn't invited anyone yet."
	MsgInvitesHistoryNone     = "No joins have been recorded for this server yet."
	MsgInvitesActiveNone      = "This server has no active invites."
	MsgInvitesLogSet          = "Invite logs will now be sent to <#%s>."
	MsgInvitesLogCreateFail   = "Failed to create the log channel: %v"
	MsgInvitesLogSaveFail     = "Failed to save the log channel configuration."

	// --- Welcome ---
	MsgWelcomeSent        = "Welcomed %s to guild %s (member #%d)"
	MsgWelcomeSendFail    = "Failed to send welcome message for %s: %v"
	MsgWelcomeRoleGranted = "Granted default role to %s"
	MsgWelcomeRoleFail    = "Failed to grant default role to %s: %v"
	MsgWelcomeNoChannel   = "No welcome channel configured, skipping welcome messages"

	// --- Reminder System ---
	MsgReminderFailedToQueryDue    = "Failed to query due reminders: %v"
	MsgReminderFailedToCreateDM    = "Failed to create DM channel for user %s: %v"
	MsgReminderFailedToSend        = "Failed to send reminder %d: %v"
	MsgReminderFailedToSave        = "Failed to save reminder: %v"
	MsgReminderFailedToDeleteAll   = "Failed to delete all reminders: %v"
	MsgReminderFailedToQuery       = "Failed to query reminders: %v"
	MsgReminderAutocompleteFailed  = "Failed to query reminders for autocomplete: %v"
	MsgReminderRespondError        = "Failed to respond to interaction: %v"
	MsgReminderNaturalTimeInitFail = "Failed to initialize naturaltime parser: %v"
	MsgReminderSentAndDeleted      = "Sent and deleted reminder %d for user %s"
	ErrReminderParseFailed         = "Failed to parse the date/time. Try formats like 'tomorrow', 'in 2 hours', 'next friday at 3pm'."
	ErrReminderPastTime            = "The reminder time must be in the future!"
	ErrReminderSaveFailed          = "Failed to save reminder. Please try again."
	ErrReminderFetchFailed         = "Failed to retrieve your reminders."
	ErrReminderDismissFailed       = "Failed to dismiss reminder."
	ErrReminderDismissAllFail      = "Failed to dismiss all reminders."
	MsgReminderSetSuccess          = "Reminder set for %s\n\n %s"
	MsgReminderDismissedBatch      = "Dismissed **%d** reminder(s)!"
	MsgReminderNoActive            = "You have no active reminders. Set one with `/reminder set`!"
	MsgReminderDismissed           = "Reminder dismissed!"
	MsgReminderListHeader          = "**Your Reminders** (%d active)\n\n"
	MsgReminderListItem            = "%d. **%s** - %s\n"
	MsgReminderChoiceAll           = "Dismiss All (%d reminders)"
	MsgReminderStatsHeader         = "**Your Active Reminders (%d)**\n\n"
	MsgReminderStatsMore           = "> ...and %d more."
	MsgReminderStatsDue            = "> Due %s (`%s`)\n"
	MsgReminderStatsDM             = "> Delivery: Direct Message\n"
	MsgReminderRelLessMinute       = "in less than a minute"
	MsgReminderRelMinute           = "in 1 minute"
	MsgReminderRelMinutes          = "in %d minutes"
	MsgReminderRelHour             = "in 1 hour"
	MsgReminderRelHours            = "in %d hours"
	MsgReminderRelDay              = "in 1 day"
	MsgReminderRelDays             = "in %d days"
	MsgReminderRelWeek             = "in 1 week"
	MsgReminderRelWeeks            = "in %d weeks"
	MsgReminderRelMonth            = "in 1 month"
	MsgReminderRelMonths           = "in %d months"
	MsgReminderRelYear             = "in 1 year"
	MsgReminderRelYears            = "in %d years"

	// --- Server Status ---
	MsgServerProbeFail     = "Probe failed for %s: %v"
	MsgServerRenameFail    = "Failed to rename channel %s: %v"
	MsgServerOnline        = "Server online: %d/%d players (%dms)"
	MsgServerWentOffline   = "Server went offline"
	MsgServerNotConfigured = "No game server is configured."

	// --- Prune & Mass DM ---
	ErrPruneNoPermission = "You need the **Manage Messages** permission to use this command."
	ErrPruneNotInvoker   = "Only the user who ran the command can confirm it."
	MsgPruneConfirm      = "Are you sure you want to delete %s messages from this channel?"
	MsgPruneCancelled    = "Prune cancelled."
	MsgPruneDone         = "Deleted **%d** message(s)."
	MsgPruneFail         = "Failed to delete messages: %v"
	MsgMassDMStarted     = "Sending DM to %d members..."
	MsgMassDMDone        = "Mass DM complete. Sent: **%d**, Failed: **%d**"
	MsgMassDMSendFail    = "Failed to DM member %s: %v"
	MsgMassDMTestMode    = "Test mode: sending the DM only to you."

	// --- Voice / Music ---
	MsgVoiceJoinFail     = "Failed to join voice channel: %v"
	MsgVoiceSearchFail   = "Search failed: %v"
	MsgVoiceNoResults    = "No results found for **%s**."
	MsgVoiceResolveFail  = "Failed to resolve stream for %s: %v"
	MsgVoiceNowPlaying   = "Now playing: **%s**"
	MsgVoiceQueued       = "Queued: **%s** (position %d)"
	MsgVoiceStopped      = "Stopped playback and left the channel."
	MsgVoiceNotInChannel = "You need to be in a voice channel first."
	MsgVoiceNotPlaying   = "Nothing is playing."
	MsgVoiceStreamEnded  = "Finished playing %s in guild %s"
	MsgVoiceSessionDrop  = "Voice session for guild %s dropped after disconnect"

	// --- Health & Status ---
	MsgHealthListening  = "Liveness endpoint listening on %s"
	MsgHealthServeFail  = "Liveness endpoint stopped: %v"
	MsgStatusUpdateFail = "Update failed: %v"
	MsgStatusRotated    = "Status rotated to: \"%s\" (Next rotate in %v)"
)
