// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials (e.g., the Discord bot), use ValidateRefreshReady.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	// Discord
	DiscordBotToken string
	GuildID         string

	// Roster source
	RosterPath string

	// Roblox pacing
	AvatarSize  string
	BatchDelay  time.Duration
	DetailDelay time.Duration

	// Storage
	DataDir string
}

// Load reads environment variables and applies defaults. It doesn't fail if Discord creds are
// missing; use ValidateRefreshReady() when you require a refresh run. The read-only API serves
// whatever snapshot exists regardless of credentials.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DiscordBotToken = os.Getenv("DISCORD_BOT_TOKEN")
	cfg.GuildID = os.Getenv("GUILD_ID")

	cfg.RosterPath = os.Getenv("ROSTER_CSV_PATH")
	if cfg.RosterPath == "" {
		cfg.RosterPath = "users.csv"
	}

	cfg.AvatarSize = os.Getenv("ROBLOX_AVATAR_SIZE")
	if cfg.AvatarSize == "" {
		cfg.AvatarSize = "150x150"
	}

	if v := os.Getenv("ROBLOX_BATCH_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ROBLOX_BATCH_DELAY: %w", err)
		}
		cfg.BatchDelay = d
	} else {
		cfg.BatchDelay = time.Second
	}

	if v := os.Getenv("ROBLOX_DETAIL_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ROBLOX_DETAIL_DELAY: %w", err)
		}
		cfg.DetailDelay = d
	} else {
		cfg.DetailDelay = 250 * time.Millisecond
	}

	cfg.DataDir = os.Getenv("DATA_DIR")
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}

	return cfg, nil
}

// ValidateRefreshReady checks required fields for a refresh run (bot login + target guild).
func (c *Config) ValidateRefreshReady() error {
	if c.DiscordBotToken == "" || c.GuildID == "" {
		return fmt.Errorf("missing discord env: require DISCORD_BOT_TOKEN, GUILD_ID")
	}
	return nil
}

// Redacted returns a view of the config safe to expose over the admin API.
// Secrets are masked, never echoed.
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"discord": map[string]any{
			"bot_token": redactString(c.DiscordBotToken),
			"guild_id":  c.GuildID,
		},
		"roster": map[string]any{
			"csv_path": c.RosterPath,
		},
		"roblox": map[string]any{
			"avatar_size":  c.AvatarSize,
			"batch_delay":  c.BatchDelay.String(),
			"detail_delay": c.DetailDelay.String(),
		},
		"storage": map[string]any{
			"data_dir":     c.DataDir,
			"snapshot":     c.SnapshotPath(),
			"members_file": c.MembersArtifactPath(),
		},
	}
}

func redactString(v string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return "REDACTED"
}

// SnapshotPath is the merged roster snapshot location under DataDir.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, "merged_roster.json")
}

// MembersArtifactPath is the intermediate Discord member dump location under DataDir.
func (c *Config) MembersArtifactPath() string {
	return filepath.Join(c.DataDir, "discord_members.json")
}
