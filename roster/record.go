package roster

import "time"

// MergedRecord is one reconciled roster row as persisted in the snapshot and
// served to the dashboard. Field names follow the snapshot's JSON schema;
// pointer fields serialize as null when the upstream lookup had no answer.
type MergedRecord struct {
	DiscordUsername     string     `json:"discordUsername"`
	DiscordDisplayName  string     `json:"discordDisplayName"`
	DiscordID           string     `json:"discordId"`
	DiscordJoinDate     *time.Time `json:"discordJoinDate"`
	DiscordCreationDate *time.Time `json:"discordCreationDate"`
	RobloxUsername      string     `json:"robloxUsername"`
	RobloxID            *int64     `json:"robloxId"`
	RobloxCreationDate  *time.Time `json:"robloxCreationDate"`
	RobloxAvatarURL     string     `json:"robloxAvatarUrl"`
}
