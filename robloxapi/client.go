// Package robloxapi contains minimal helpers to interact with the public
// Roblox users and thumbnails APIs for username resolution, account creation
// dates, and avatar headshots. These endpoints require no authentication.
package robloxapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultUsersBaseURL      = "https://users.roblox.com"
	defaultThumbnailsBaseURL = "https://thumbnails.roblox.com"
	defaultAvatarSize        = "150x150"

	// AvatarPlaceholder stands in when no headshot could be fetched.
	AvatarPlaceholder = "https://placehold.co/150x150/5865F2/FFFFFF?text=N/A"

	// avatarBatchMax is the thumbnails API per-request ID limit.
	avatarBatchMax = 100
)

// Client provides the minimal Roblox API surface a refresh needs. The zero
// value targets the production hosts via http.DefaultClient with no pacing
// delays; production configuration sets BatchDelay and DetailDelay to stay
// clear of rate limits.
type Client struct {
	HTTPClient        *http.Client
	UsersBaseURL      string
	ThumbnailsBaseURL string
	AvatarSize        string
	BatchDelay        time.Duration // pause between avatar batches
	DetailDelay       time.Duration // pause between per-user detail calls
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) usersBase() string {
	if c.UsersBaseURL != "" {
		return c.UsersBaseURL
	}
	return defaultUsersBaseURL
}

func (c *Client) thumbnailsBase() string {
	if c.ThumbnailsBaseURL != "" {
		return c.ThumbnailsBaseURL
	}
	return defaultThumbnailsBaseURL
}

func (c *Client) avatarSize() string {
	if c.AvatarSize != "" {
		return c.AvatarSize
	}
	return defaultAvatarSize
}

// Profile is what a refresh needs to know about one Roblox account.
type Profile struct {
	ID        int64
	CreatedAt *time.Time
	AvatarURL string
}

// ProfileResult carries a Profile for every requested ID plus request
// accounting for metrics and operator-facing warnings.
type ProfileResult struct {
	Profiles      map[int64]Profile
	Warnings      []string
	Requests      int
	RequestErrors int
}

// ResolveUsernames resolves usernames to user IDs in a single batch call.
// Result keys are lowercased requested usernames; names Roblox does not know
// (or has banned) are absent.
func (c *Client) ResolveUsernames(ctx context.Context, usernames []string) (map[string]int64, error) {
	out := map[string]int64{}
	if len(usernames) == 0 {
		return out, nil
	}
	payload, err := json.Marshal(struct {
		Usernames          []string `json:"usernames"`
		ExcludeBannedUsers bool     `json:"excludeBannedUsers"`
	}{Usernames: usernames, ExcludeBannedUsers: true})
	if err != nil {
		return nil, err
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.usersBase()+"/v1/usernames/users", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usernames lookup: status %d", resp.StatusCode)
	}
	var body struct {
		Data []struct {
			RequestedUsername string `json:"requestedUsername"`
			ID                int64  `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	for _, d := range body.Data {
		if d.ID != 0 {
			out[strings.ToLower(d.RequestedUsername)] = d.ID
		}
	}
	return out, nil
}

// ListAvatarURLs fetches headshot URLs for up to 100 user IDs in one call.
// Result keys are a subset of ids; entries whose imageUrl is empty (for
// example still rendering) are omitted.
func (c *Client) ListAvatarURLs(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := map[int64]string{}
	if len(ids) == 0 {
		return out, nil
	}
	strs := make([]string, 0, len(ids))
	for _, id := range ids {
		strs = append(strs, strconv.FormatInt(id, 10))
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.thumbnailsBase()+"/v1/users/avatar-headshot", nil)
	q := req.URL.Query()
	q.Set("userIds", strings.Join(strs, ","))
	q.Set("size", c.avatarSize())
	q.Set("format", "Png")
	q.Set("isCircular", "false")
	req.URL.RawQuery = q.Encode()
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("avatar headshot: status %d", resp.StatusCode)
	}
	var body struct {
		Data []struct {
			TargetID int64  `json:"targetId"`
			ImageURL string `json:"imageUrl"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	for _, d := range body.Data {
		if d.ImageURL != "" {
			out[d.TargetID] = d.ImageURL
		}
	}
	return out, nil
}

// GetUserCreated returns the account creation time for one user ID, or nil
// when the API omits it.
func (c *Client) GetUserCreated(ctx context.Context, id int64) (*time.Time, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/users/%d", c.usersBase(), id), nil)
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user %d: status %d", id, resp.StatusCode)
	}
	var body struct {
		Created time.Time `json:"created"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Created.IsZero() {
		return nil, nil
	}
	t := body.Created
	return &t, nil
}

// FetchProfiles assembles a Profile for every id: avatar headshots in
// batches of at most 100, then creation dates one user at a time, pausing
// BatchDelay between batches and DetailDelay between detail calls. Failures
// degrade that profile to the placeholder avatar or a nil creation date
// rather than aborting, so every input id is present in the result. The
// returned error is non-nil only when ctx is done.
func (c *Client) FetchProfiles(ctx context.Context, ids []int64) (*ProfileResult, error) {
	res := &ProfileResult{Profiles: make(map[int64]Profile, len(ids))}
	if len(ids) == 0 {
		return res, nil
	}
	for _, id := range ids {
		res.Profiles[id] = Profile{ID: id, AvatarURL: AvatarPlaceholder}
	}

	for start := 0; start < len(ids); start += avatarBatchMax {
		end := start + avatarBatchMax
		if end > len(ids) {
			end = len(ids)
		}
		if start > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(c.BatchDelay):
			}
		}
		res.Requests++
		urls, err := c.ListAvatarURLs(ctx, ids[start:end])
		if err != nil {
			res.RequestErrors++
			res.warnf("avatar batch %d-%d: %v", start, end-1, err)
			continue
		}
		for id, url := range urls {
			p := res.Profiles[id]
			p.AvatarURL = url
			res.Profiles[id] = p
		}
	}

	for i, id := range ids {
		if i > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(c.DetailDelay):
			}
		}
		res.Requests++
		created, err := c.GetUserCreated(ctx, id)
		if err != nil {
			res.RequestErrors++
			res.warnf("user %d detail: %v", id, err)
			continue
		}
		p := res.Profiles[id]
		p.CreatedAt = created
		res.Profiles[id] = p
	}
	return res, nil
}

func (r *ProfileResult) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	slog.Warn("roblox profile degraded", slog.String("detail", msg))
}
