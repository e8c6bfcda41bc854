// Package reconcile joins the roster against the identities resolved from
// Discord and Roblox and runs the refresh pipeline that rebuilds the
// snapshot the dashboard reads.
package reconcile

import (
	"strings"

	"github.com/tachibanak/roster-sync/discord"
	"github.com/tachibanak/roster-sync/robloxapi"
	"github.com/tachibanak/roster-sync/roster"
)

// displayNameDelimiter separates a decorative prefix from the name proper
// in guild nicks ("🔰・CoolName"). Everything after the first occurrence is
// the display name.
const displayNameDelimiter = "・"

// Merge builds one MergedRecord per roster entry, in roster order. members
// is keyed by Discord ID, ids by lowercased Roblox username, profiles by
// Roblox ID. Missing data degrades field by field: roster values stand in
// for absent or not-found members, the placeholder for absent avatars, nil
// for unknown IDs and dates. No roster entry is ever dropped. Pure function
// of its inputs, no I/O.
func Merge(entries []roster.Entry, members map[string]discord.Member, ids map[string]int64, profiles map[int64]robloxapi.Profile) []roster.MergedRecord {
	records := make([]roster.MergedRecord, 0, len(entries))
	for _, e := range entries {
		rec := roster.MergedRecord{
			DiscordID:       e.DiscordID,
			DiscordUsername: e.DiscordUsername,
			RobloxUsername:  e.RobloxUsername,
			RobloxAvatarURL: robloxapi.AvatarPlaceholder,
		}

		m, ok := members[e.DiscordID]
		if !ok || m.Error != "" {
			// Not in the guild (or never looked up): roster data only.
			m = discord.Member{}
		} else {
			if m.Username != "" {
				rec.DiscordUsername = m.Username
			}
			rec.DiscordJoinDate = m.JoinedAt
			rec.DiscordCreationDate = m.CreatedAt
		}
		rec.DiscordDisplayName = displayNameFor(m, e)

		if e.RobloxUsername != "" {
			if id, resolved := ids[strings.ToLower(e.RobloxUsername)]; resolved {
				rec.RobloxID = &id
				if p, found := profiles[id]; found {
					rec.RobloxCreationDate = p.CreatedAt
					if p.AvatarURL != "" {
						rec.RobloxAvatarURL = p.AvatarURL
					}
				}
			}
		}

		records = append(records, rec)
	}
	return records
}

// displayNameFor applies the normalization and fallback chain: member
// display name with any delimiter-prefixed decoration stripped, then member
// username, then the roster's username, then "N/A". A candidate that is
// blank after trimming falls through to the next.
func displayNameFor(m discord.Member, e roster.Entry) string {
	for _, candidate := range []string{splitDisplayName(m.DisplayName), m.Username, e.DiscordUsername} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return "N/A"
}

// splitDisplayName strips everything up to and including the first
// delimiter and trims the remainder. Names without the delimiter pass
// through unchanged.
func splitDisplayName(name string) string {
	if i := strings.Index(name, displayNameDelimiter); i >= 0 {
		return strings.TrimSpace(name[i+len(displayNameDelimiter):])
	}
	return name
}
