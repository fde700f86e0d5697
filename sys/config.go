package sys

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
)

type Config struct {
	Token        string
	GuildID      string
	DatabasePath string
	OwnerIDs     []string
	StreamingURL string
	Silent       bool

	// Welcome
	WelcomeChannelID snowflake.ID
	DefaultRoleID    snowflake.ID

	// Game server status relay
	GameServerHost       string
	GameServerPort       int
	StatusChannelID      snowflake.ID
	PlayerCountChannelID snowflake.ID
	LatencyChannelID     snowflake.ID

	// Liveness endpoint, empty disables it
	HealthAddr string
}

var GlobalConfig *Config

// LoadConfig initializes the configuration from environment variables.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("DISCORD_TOKEN")
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		folder := "."
		if info, err := os.Stat("data"); err == nil && info.IsDir() {
			folder = "./data"
		}
		dbPath = filepath.Join(folder, GetProjectName()+".db")
	}

	silent, _ := strconv.ParseBool(os.Getenv("SILENT"))
	streamingURL := os.Getenv("STREAMING_URL")
	if streamingURL == "" {
		streamingURL = "https://www.twitch.tv/videos/1110069047"
	}

	ownerIDsStr := os.Getenv("OWNER_IDS")
	var ownerIDs []string
	if ownerIDsStr != "" {
		ownerIDs = strings.Split(ownerIDsStr, ",")
		for i := range ownerIDs {
			ownerIDs[i] = strings.TrimSpace(ownerIDs[i])
		}
	}

	gamePort := 25565
	if portStr := os.Getenv("GAME_SERVER_PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil {
			gamePort = p
		}
	}

	healthAddr := os.Getenv("HEALTH_ADDR")
	if healthAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			healthAddr = ":" + port
		} else {
			healthAddr = ":8080"
		}
	}

	cfg := &Config{
		Token:                token,
		GuildID:              os.Getenv("GUILD_ID"),
		DatabasePath:         dbPath,
		OwnerIDs:             ownerIDs,
		StreamingURL:         streamingURL,
		Silent:               silent,
		WelcomeChannelID:     parseOptionalSnowflake(os.Getenv("WELCOME_CHANNEL_ID")),
		DefaultRoleID:        parseOptionalSnowflake(os.Getenv("DEFAULT_ROLE_ID")),
		GameServerHost:       os.Getenv("GAME_SERVER_HOST"),
		GameServerPort:       gamePort,
		StatusChannelID:      parseOptionalSnowflake(os.Getenv("STATUS_CHANNEL_ID")),
		PlayerCountChannelID: parseOptionalSnowflake(os.Getenv("PLAYER_COUNT_CHANNEL_ID")),
		LatencyChannelID:     parseOptionalSnowflake(os.Getenv("LATENCY_CHANNEL_ID")),
		HealthAddr:           healthAddr,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Silent {
		SetSilentMode(true)
	}

	GlobalConfig = cfg
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return fmt.Errorf("invalid GUILD_ID: must be a valid Snowflake")
	}
	if c.GameServerPort < 1 || c.GameServerPort > 65535 {
		return fmt.Errorf("invalid GAME_SERVER_PORT: %d", c.GameServerPort)
	}
	return nil
}

// IsOwner reports whether the given user ID is listed in OWNER_IDS.
func (c *Config) IsOwner(userID snowflake.ID) bool {
	for _, id := range c.OwnerIDs {
		if id == userID.String() {
			return true
		}
	}
	return false
}

func parseOptionalSnowflake(s string) snowflake.ID {
	if s == "" {
		return 0
	}
	id, err := snowflake.Parse(s)
	if err != nil {
		return 0
	}
	return id
}

func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "bot"
	if err == nil {
		projectName = filepath.Base(exePath)
		projectName = strings.TrimSuffix(projectName, ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") {
			if modData, err := os.ReadFile("go.mod"); err == nil {
				lines := strings.Split(string(modData), "\n")
				if len(lines) > 0 && strings.HasPrefix(lines[0], "module ") {
					parts := strings.Split(lines[0], "/")
					projectName = strings.TrimSpace(parts[len(parts)-1])
				}
			}
		}
	}
	return projectName
}
