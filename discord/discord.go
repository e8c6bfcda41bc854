// Package discord fetches guild member details for roster IDs over one
// authenticated gateway session per refresh, using bwmarrin/discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrAuthentication means the gateway session could not be established
	// with the configured bot token. Fatal for the refresh.
	ErrAuthentication = errors.New("discord authentication failed")
	// ErrGuildNotFound means the configured guild does not exist or the bot
	// is not a member of it. Fatal for the refresh.
	ErrGuildNotFound = errors.New("discord guild not found")
)

// NotFoundMarker flags roster IDs that were looked up but are no longer in
// the guild, distinguishing them from lookups that failed transiently.
const NotFoundMarker = "not_found"

// Member is one looked-up guild member. The fetch result and the
// intermediate artifact key members by Discord ID.
type Member struct {
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	CreatedAt   *time.Time `json:"createdAt"`
	JoinedAt    *time.Time `json:"joinedAt"`
	Error       string     `json:"error,omitempty"`
}

// MemberSource is the slice of *discordgo.Session that FetchMembers uses,
// separated so tests can fake it.
type MemberSource interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
}

// FetchResult is the member map plus per-ID accounting for the refresh
// summary and metrics.
type FetchResult struct {
	Members  map[string]Member
	Warnings []string
	Fetched  int
	NotFound int
	Failed   int
	Skipped  int
}

// Connect opens a gateway session with guild and member intents. The caller
// owns the session and must Close it.
func Connect(token string) (*discordgo.Session, error) {
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}
	s, err := discordgo.New(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	s.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildMembers
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return s, nil
}

// FetchMembers looks up every id in the guild, isolating per-ID failures.
// IDs absent from the guild get a NotFoundMarker entry; transiently failing
// lookups are warned and left out so the merge falls back to roster data.
// Only a failed guild lookup aborts the fetch.
func FetchMembers(ctx context.Context, src MemberSource, guildID string, ids []string) (*FetchResult, error) {
	if _, err := src.Guild(guildID, discordgo.WithContext(ctx)); err != nil {
		if guildMissing(err) {
			return nil, fmt.Errorf("%w: %s", ErrGuildNotFound, guildID)
		}
		return nil, fmt.Errorf("guild lookup: %w", err)
	}

	res := &FetchResult{Members: make(map[string]Member, len(ids))}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			res.Skipped++
			res.warnf("id %q not numeric, skipped", id)
			continue
		}
		m, err := src.GuildMember(guildID, id, discordgo.WithContext(ctx))
		if err != nil {
			if memberMissing(err) {
				res.NotFound++
				res.Members[id] = Member{Error: NotFoundMarker}
				continue
			}
			res.Failed++
			res.warnf("member %s: %v", id, err)
			continue
		}
		res.Fetched++
		res.Members[id] = fromGuildMember(id, m)
	}
	return res, nil
}

func (r *FetchResult) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	slog.Warn("member lookup degraded", slog.String("detail", msg))
}

func fromGuildMember(id string, m *discordgo.Member) Member {
	out := Member{DisplayName: displayName(m)}
	if m.User != nil {
		out.Username = m.User.Username
	}
	if created, err := discordgo.SnowflakeTimestamp(id); err == nil {
		t := created.UTC()
		out.CreatedAt = &t
	}
	if !m.JoinedAt.IsZero() {
		t := m.JoinedAt.UTC()
		out.JoinedAt = &t
	}
	return out
}

// displayName prefers the guild nick, then the account-level display name,
// then the username.
func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User != nil {
		if m.User.GlobalName != "" {
			return m.User.GlobalName
		}
		return m.User.Username
	}
	return ""
}

// guildMissing reports whether err is the API telling us the guild is
// unknown or inaccessible, as opposed to a transient failure.
func guildMissing(err error) bool {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.Message != nil && rerr.Message.Code == discordgo.ErrCodeUnknownGuild {
		return true
	}
	if rerr.Response != nil {
		return rerr.Response.StatusCode == http.StatusNotFound || rerr.Response.StatusCode == http.StatusForbidden
	}
	return false
}

// memberMissing reports whether err means the member left or the account is
// gone, which the merge treats differently from a transient failure.
func memberMissing(err error) bool {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.Message != nil && (rerr.Message.Code == discordgo.ErrCodeUnknownMember || rerr.Message.Code == discordgo.ErrCodeUnknownUser) {
		return true
	}
	return rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound
}
