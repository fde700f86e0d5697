package sys

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/mattn/go-sqlite3"
)

// --- Connection & Lifecycle ---

var DB *sql.DB

func InitDatabase(ctx context.Context, dataSourceName string) error {
	// Explicitly reference sqlite3 driver to avoid blank identifier
	// The driver registers itself via its init() function
	_ = sqlite3.SQLiteDriver{}

	var err error
	DB, err = sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return err
	}

	DB.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := DB.ExecContext(initCtx, p); err != nil {
			return fmt.Errorf(MsgDatabasePragmaError, p, err)
		}
	}

	tx, err := DB.BeginTx(initCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS invite_joins (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			member_id TEXT NOT NULL,
			member_tag TEXT NOT NULL DEFAULT '',
			inviter_id TEXT NOT NULL,
			invite_code TEXT NOT NULL,
			joined_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invite_joins_guild ON invite_joins(guild_id)`,
		`CREATE INDEX IF NOT EXISTS idx_invite_joins_inviter ON invite_joins(guild_id, inviter_id)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			guild_id TEXT,
			message TEXT NOT NULL,
			remind_at DATETIME NOT NULL,
			send_to TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS guild_configs (
			guild_id TEXT PRIMARY KEY,
			invite_log_channel_id TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			return fmt.Errorf(MsgDatabaseTableError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	migrations := []string{
		"ALTER TABLE invite_joins ADD COLUMN member_tag TEXT NOT NULL DEFAULT ''",
	}

	for _, m := range migrations {
		if _, err := DB.ExecContext(initCtx, m); err != nil {
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
		}
	}

	LogDatabase(MsgDatabaseInitSuccess)
	return nil
}

func CloseDatabase() {
	if DB != nil {
		DB.Close()
	}
}

// --- Infrastructure & Bot Persistence ---

// BotConfig helpers are used by the loader for mode tracking and state.
func GetBotConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := DB.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func SetBotConfig(ctx context.Context, key, value string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO bot_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// --- Invite Ledger ---

// Sentinels for joins that cannot be tied to a specific inviter. Vanity
// joins keep the vanity code so they stay distinguishable from truly
// unknown ones.
const (
	UnknownInviter = "unknown"
	VanityCode     = "vanity"
	UnknownCode    = "unknown"
)

// InviteJoin is one ledger row: a member join attributed to an inviter.
// InviterID is a snowflake string or the UnknownInviter sentinel.
type InviteJoin struct {
	ID         int64
	GuildID    snowflake.ID
	MemberID   snowflake.ID
	MemberTag  string
	InviterID  string
	InviteCode string
	JoinedAt   time.Time
}

// InviterCount is a derived leaderboard entry. Counts are always computed
// from ledger rows, never stored.
type InviterCount struct {
	InviterID string
	Count     int
}

// AppendInviteJoin durably records one join. The INSERT is committed before
// return; under WAL this survives a process crash.
func AppendInviteJoin(ctx context.Context, j *InviteJoin) error {
	if j.InviterID == "" {
		j.InviterID = UnknownInviter
	}
	if j.InviteCode == "" {
		j.InviteCode = UnknownCode
	}
	res, err := DB.ExecContext(ctx, `
		INSERT INTO invite_joins (guild_id, member_id, member_tag, inviter_id, invite_code, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, j.GuildID.String(), j.MemberID.String(), j.MemberTag, j.InviterID, j.InviteCode, j.JoinedAt.UTC())
	if err != nil {
		return err
	}
	j.ID, _ = res.LastInsertId()
	return nil
}

// QueryInviteLeaderboard returns the top inviters of a guild ordered by
// derived join count descending, ties broken by inviter ID ascending so the
// ordering is stable. The unknown sentinel is excluded.
func QueryInviteLeaderboard(ctx context.Context, guildID snowflake.ID, limit int) ([]InviterCount, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT inviter_id, COUNT(*) AS joins
		FROM invite_joins
		WHERE guild_id = ? AND inviter_id != ?
		GROUP BY inviter_id
		ORDER BY joins DESC, inviter_id ASC
		LIMIT ?
	`, guildID.String(), UnknownInviter, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []InviterCount
	for rows.Next() {
		var e InviterCount
		if err := rows.Scan(&e.InviterID, &e.Count); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// QueryJoinsByInviter returns a single inviter's recorded joins, most
// recent first.
func QueryJoinsByInviter(ctx context.Context, guildID snowflake.ID, inviterID string, limit int) ([]*InviteJoin, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT id, guild_id, member_id, member_tag, inviter_id, invite_code, joined_at
		FROM invite_joins
		WHERE guild_id = ? AND inviter_id = ?
		ORDER BY joined_at DESC, id DESC
		LIMIT ?
	`, guildID.String(), inviterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInviteJoins(rows)
}

// QueryRecentJoins returns the guild's most recent recorded joins of any
// attribution kind, newest first.
func QueryRecentJoins(ctx context.Context, guildID snowflake.ID, limit int) ([]*InviteJoin, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT id, guild_id, member_id, member_tag, inviter_id, invite_code, joined_at
		FROM invite_joins
		WHERE guild_id = ?
		ORDER BY joined_at DESC, id DESC
		LIMIT ?
	`, guildID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInviteJoins(rows)
}

// CountJoinsByInviter derives one inviter's total from ledger rows.
func CountJoinsByInviter(ctx context.Context, guildID snowflake.ID, inviterID string) (int, error) {
	var count int
	err := DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM invite_joins WHERE guild_id = ? AND inviter_id = ?
	`, guildID.String(), inviterID).Scan(&count)
	return count, err
}

// CountInviteJoins returns the total number of recorded joins across all guilds.
func CountInviteJoins(ctx context.Context) (int, error) {
	var count int
	err := DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM invite_joins").Scan(&count)
	return count, err
}

func scanInviteJoins(rows *sql.Rows) ([]*InviteJoin, error) {
	var joins []*InviteJoin
	for rows.Next() {
		j := &InviteJoin{}
		var gid, mid string
		if err := rows.Scan(&j.ID, &gid, &mid, &j.MemberTag, &j.InviterID, &j.InviteCode, &j.JoinedAt); err != nil {
			return nil, err
		}
		var err error
		j.GuildID, err = snowflake.Parse(gid)
		if err != nil {
			return nil, fmt.Errorf("failed to parse guild ID '%s' for join %d: %w", gid, j.ID, err)
		}
		j.MemberID, err = snowflake.Parse(mid)
		if err != nil {
			return nil, fmt.Errorf("failed to parse member ID '%s' for join %d: %w", mid, j.ID, err)
		}
		joins = append(joins, j)
	}
	return joins, rows.Err()
}

// --- Guild Configs ---

func SetInviteLogChannel(ctx context.Context, guildID, channelID snowflake.ID) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO guild_configs (guild_id, invite_log_channel_id) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET invite_log_channel_id = excluded.invite_log_channel_id, updated_at = CURRENT_TIMESTAMP
	`, guildID.String(), channelID.String())
	return err
}

// GetInviteLogChannel returns the configured log channel for a guild, or 0
// when none is set.
func GetInviteLogChannel(ctx context.Context, guildID snowflake.ID) (snowflake.ID, error) {
	var channelIDStr sql.NullString
	err := DB.QueryRowContext(ctx, "SELECT invite_log_channel_id FROM guild_configs WHERE guild_id = ?", guildID.String()).Scan(&channelIDStr)
	if err == sql.ErrNoRows || !channelIDStr.Valid || channelIDStr.String == "" {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	channelID, err := snowflake.Parse(channelIDStr.String)
	if err != nil {
		return 0, fmt.Errorf("failed to parse channel ID: %w", err)
	}
	return channelID, nil
}

// --- Reminders ---

type Reminder struct {
	ID        int64
	UserID    snowflake.ID
	ChannelID snowflake.ID
	GuildID   snowflake.ID
	Message   string
	RemindAt  time.Time
	SendTo    string
	CreatedAt time.Time
}

func AddReminder(ctx context.Context, r *Reminder) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO reminders (user_id, channel_id, guild_id, message, remind_at, send_to)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.UserID.String(), r.ChannelID.String(), r.GuildID.String(), r.Message, r.RemindAt, r.SendTo)
	return err
}

func GetRemindersForUser(ctx context.Context, userID snowflake.ID) ([]*Reminder, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT id, user_id, channel_id, guild_id, message, remind_at, send_to, created_at
		FROM reminders WHERE user_id = ? ORDER BY remind_at ASC
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

// ClaimDueReminders atomically fetches and deletes due reminders so two
// scheduler ticks cannot deliver the same reminder twice.
func ClaimDueReminders(ctx context.Context) ([]*Reminder, error) {
	rows, err := DB.QueryContext(ctx, `
		DELETE FROM reminders
		WHERE remind_at <= ?
		RETURNING id, user_id, channel_id, guild_id, message, remind_at, send_to, created_at
	`, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

func scanReminders(rows *sql.Rows) ([]*Reminder, error) {
	var reminders []*Reminder
	for rows.Next() {
		r := &Reminder{}
		var uid, cid, gid string
		err := rows.Scan(&r.ID, &uid, &cid, &gid, &r.Message, &r.RemindAt, &r.SendTo, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.UserID, err = snowflake.Parse(uid)
		if err != nil {
			return nil, fmt.Errorf("failed to parse user ID '%s' for reminder %d: %w", uid, r.ID, err)
		}
		r.ChannelID, err = snowflake.Parse(cid)
		if err != nil {
			return nil, fmt.Errorf("failed to parse channel ID '%s' for reminder %d: %w", cid, r.ID, err)
		}
		r.GuildID, err = snowflake.Parse(gid)
		if err != nil {
			// Guild ID can be empty for DMs, but if it's there it should be valid
			if gid != "" {
				return nil, fmt.Errorf("failed to parse guild ID '%s' for reminder %d: %w", gid, r.ID, err)
			}
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func DeleteReminder(ctx context.Context, id int64, userID snowflake.ID) (bool, error) {
	result, err := DB.ExecContext(ctx, "DELETE FROM reminders WHERE id = ? AND user_id = ?", id, userID.String())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

func DeleteAllRemindersForUser(ctx context.Context, userID snowflake.ID) (int64, error) {
	result, err := DB.ExecContext(ctx, "DELETE FROM reminders WHERE user_id = ?", userID.String())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func GetRemindersCount(ctx context.Context) (int, error) {
	var count int
	err := DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM reminders").Scan(&count)
	return count, err
}
