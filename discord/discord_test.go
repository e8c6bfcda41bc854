package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

type fakeSource struct {
	guildErr   error
	memberErrs map[string]error
	members    map[string]*discordgo.Member
	calls      []string
}

func (f *fakeSource) Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
	if f.guildErr != nil {
		return nil, f.guildErr
	}
	return &discordgo.Guild{ID: guildID, Name: "Test Guild"}, nil
}

func (f *fakeSource) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	f.calls = append(f.calls, userID)
	if err, ok := f.memberErrs[userID]; ok {
		return nil, err
	}
	if m, ok := f.members[userID]; ok {
		return m, nil
	}
	return nil, restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMember)
}

func restErr(status, code int) error {
	e := &discordgo.RESTError{Response: &http.Response{StatusCode: status}}
	if code != 0 {
		e.Message = &discordgo.APIErrorMessage{Code: code}
	}
	return e
}

func TestFetchMembersIsolatesNotFound(t *testing.T) {
	joined := time.Date(2022, 3, 14, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{members: map[string]*discordgo.Member{}}
	ids := make([]string, 0, 11)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("10000000000000000%d", i)
		ids = append(ids, id)
		src.members[id] = &discordgo.Member{
			JoinedAt: joined,
			User:     &discordgo.User{ID: id, Username: fmt.Sprintf("user%d", i)},
		}
	}
	ids = append(ids, "999999999999999999") // left the guild

	res, err := FetchMembers(context.Background(), src, "guild-1", ids)
	if err != nil {
		t.Fatalf("FetchMembers() error: %v", err)
	}
	if len(res.Members) != 11 {
		t.Fatalf("members = %d, want 11 (all ids accounted for)", len(res.Members))
	}
	gone := res.Members["999999999999999999"]
	if gone.Error != NotFoundMarker {
		t.Errorf("missing member Error = %q, want %q", gone.Error, NotFoundMarker)
	}
	if res.Fetched != 10 || res.NotFound != 1 || res.Failed != 0 {
		t.Errorf("counts = fetched %d, not found %d, failed %d", res.Fetched, res.NotFound, res.Failed)
	}
	if got := res.Members[ids[0]]; got.Username != "user0" || got.JoinedAt == nil || !got.JoinedAt.Equal(joined) {
		t.Errorf("first member = %+v", got)
	}
}

func TestFetchMembersTransientFailureOmitted(t *testing.T) {
	src := &fakeSource{
		members: map[string]*discordgo.Member{
			"111": {User: &discordgo.User{ID: "111", Username: "alpha"}},
		},
		memberErrs: map[string]error{
			"222": restErr(http.StatusInternalServerError, 0),
		},
	}
	res, err := FetchMembers(context.Background(), src, "guild-1", []string{"111", "222"})
	if err != nil {
		t.Fatalf("FetchMembers() error: %v", err)
	}
	if _, ok := res.Members["222"]; ok {
		t.Error("transient failure should leave the id absent, not marked")
	}
	if res.Failed != 1 || len(res.Warnings) != 1 {
		t.Errorf("failed = %d, warnings = %v, want one warned failure", res.Failed, res.Warnings)
	}
}

func TestFetchMembersSkipsNonNumeric(t *testing.T) {
	src := &fakeSource{members: map[string]*discordgo.Member{
		"333": {User: &discordgo.User{ID: "333", Username: "gamma"}},
	}}
	res, err := FetchMembers(context.Background(), src, "guild-1", []string{"not-an-id", "333"})
	if err != nil {
		t.Fatalf("FetchMembers() error: %v", err)
	}
	if res.Skipped != 1 || len(res.Members) != 1 {
		t.Errorf("skipped = %d, members = %d, want 1 and 1", res.Skipped, len(res.Members))
	}
	for _, id := range src.calls {
		if id == "not-an-id" {
			t.Error("non-numeric id was sent to the API")
		}
	}
}

func TestFetchMembersGuildErrors(t *testing.T) {
	tests := []struct {
		guildErr  error
		name      string
		wantGuild bool
	}{
		{restErr(http.StatusNotFound, discordgo.ErrCodeUnknownGuild), "unknown guild code", true},
		{restErr(http.StatusNotFound, 0), "plain 404", true},
		{restErr(http.StatusForbidden, 0), "missing access", true},
		{errors.New("connection reset"), "gateway hiccup", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{guildErr: tt.guildErr}
			_, err := FetchMembers(context.Background(), src, "guild-1", []string{"111"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrGuildNotFound); got != tt.wantGuild {
				t.Errorf("errors.Is(err, ErrGuildNotFound) = %v, want %v (err = %v)", got, tt.wantGuild, err)
			}
		})
	}
}

func TestFetchMembersContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{members: map[string]*discordgo.Member{}}
	_, err := FetchMembers(ctx, src, "guild-1", []string{"111"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDisplayNamePreference(t *testing.T) {
	tests := []struct {
		member *discordgo.Member
		name   string
		want   string
	}{
		{&discordgo.Member{Nick: "🔰・CoolName", User: &discordgo.User{Username: "cool", GlobalName: "Cool"}}, "nick wins", "🔰・CoolName"},
		{&discordgo.Member{User: &discordgo.User{Username: "cool", GlobalName: "Cool"}}, "global name next", "Cool"},
		{&discordgo.Member{User: &discordgo.User{Username: "cool"}}, "username last", "cool"},
		{&discordgo.Member{}, "no user", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayName(tt.member); got != tt.want {
				t.Errorf("displayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromGuildMemberTimestamps(t *testing.T) {
	joined := time.Date(2023, 6, 1, 8, 30, 0, 0, time.UTC)
	m := fromGuildMember("175928847299117063", &discordgo.Member{
		JoinedAt: joined,
		User:     &discordgo.User{Username: "docs"},
	})
	if m.CreatedAt == nil || m.CreatedAt.Year() != 2016 {
		t.Errorf("CreatedAt = %v, want snowflake-derived 2016 timestamp", m.CreatedAt)
	}
	if m.JoinedAt == nil || !m.JoinedAt.Equal(joined) {
		t.Errorf("JoinedAt = %v, want %v", m.JoinedAt, joined)
	}

	noJoin := fromGuildMember("175928847299117063", &discordgo.Member{User: &discordgo.User{Username: "docs"}})
	if noJoin.JoinedAt != nil {
		t.Errorf("JoinedAt = %v, want nil for zero join time", noJoin.JoinedAt)
	}
}
