package discord_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/easebot/rankledger/internal/adapters/discord"
	"github.com/easebot/rankledger/internal/apperrors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberRoles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/guilds/guild-1/members/42", r.URL.Path)
		assert.Equal(t, "Bot bot-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user":{"id":"42"},"roles":["r1","r2"]}`))
	}))
	defer srv.Close()

	client := discord.NewClient("bot-token", "guild-1", "").WithBaseURL(srv.URL)
	roles, err := client.MemberRoles(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, roles)
}

func TestMemberRoles_NotInGuild(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Unknown Member"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := discord.NewClient("bot-token", "guild-1", "").WithBaseURL(srv.URL)
	_, err := client.MemberRoles(context.Background(), "42")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestAddAndRemoveRole(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := discord.NewClient("bot-token", "guild-1", "").WithBaseURL(srv.URL)
	require.NoError(t, client.AddRole(context.Background(), "42", "tier-50"))
	require.NoError(t, client.RemoveRole(context.Background(), "42", "tier-1"))
	assert.Equal(t, []string{
		"PUT /guilds/guild-1/members/42/roles/tier-50",
		"DELETE /guilds/guild-1/members/42/roles/tier-1",
	}, calls)
}

func TestAddRole_APIErrorWrapsCollaborator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Missing Permissions"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	client := discord.NewClient("bot-token", "guild-1", "").WithBaseURL(srv.URL)
	err := client.AddRole(context.Background(), "42", "tier-50")
	assert.True(t, errors.Is(err, apperrors.ErrCollaborator))
}

func TestAnnouncePromotion(t *testing.T) {
	var payload struct {
		Embeds []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/chan-1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := discord.NewClient("bot-token", "guild-1", "chan-1").WithBaseURL(srv.URL)
	err := client.AnnouncePromotion(context.Background(), "42", decimal.RequireFromString("50.5"), "tier-50")
	require.NoError(t, err)

	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, "<@42> foi promovido!", payload.Embeds[0].Title)
	assert.Contains(t, payload.Embeds[0].Description, "R$ 50.50")
	assert.Contains(t, payload.Embeds[0].Description, "<@&tier-50>")
}

func TestAnnouncePromotion_NoChannelConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected when the channel is unconfigured")
	}))
	defer srv.Close()

	client := discord.NewClient("bot-token", "guild-1", "").WithBaseURL(srv.URL)
	require.NoError(t, client.AnnouncePromotion(context.Background(), "42", decimal.NewFromInt(50), "tier-50"))
}
