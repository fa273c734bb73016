// Package discord is the chat-platform collaborator: role membership and
// promotion announcements over the Discord REST API. Everything here is
// best-effort from the pipeline's point of view; the ledger never depends on
// these calls succeeding.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/easebot/rankledger/internal/apperrors"
	"github.com/easebot/rankledger/internal/core/ports"
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://discord.com/api/v10"

// Client talks to the Discord REST API for one guild.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	guildID        string
	promoChannelID string
}

var (
	_ ports.RoleManager = (*Client)(nil)
	_ ports.Announcer   = (*Client)(nil)
)

// NewClient creates a Client. token and guildID must be non-empty; an empty
// promoChannelID disables announcements.
func NewClient(token, guildID, promoChannelID string) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		baseURL:        defaultBaseURL,
		token:          token,
		guildID:        guildID,
		promoChannelID: promoChannelID,
	}
}

// WithBaseURL overrides the API base URL. Used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// MemberRoles returns the role IDs held by userID in the guild.
func (c *Client) MemberRoles(ctx context.Context, userID string) ([]string, error) {
	var member struct {
		Roles []string `json:"roles"`
	}
	path := fmt.Sprintf("/guilds/%s/members/%s", c.guildID, userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &member); err != nil {
		return nil, err
	}
	return member.Roles, nil
}

// AddRole grants roleID to userID.
func (c *Client) AddRole(ctx context.Context, userID, roleID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", c.guildID, userID, roleID)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// RemoveRole revokes roleID from userID.
func (c *Client) RemoveRole(ctx context.Context, userID, roleID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", c.guildID, userID, roleID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// AnnouncePromotion posts the promotion embed to the configured channel.
func (c *Client) AnnouncePromotion(ctx context.Context, userID string, total decimal.Decimal, roleID string) error {
	if c.promoChannelID == "" {
		return nil
	}
	body := map[string]any{
		"embeds": []map[string]any{{
			"title":       fmt.Sprintf("<@%s> foi promovido!", userID),
			"description": fmt.Sprintf("Total gasto: R$ %s\nNovo cargo: <@&%s>", total.StringFixed(2), roleID),
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		}},
	}
	path := fmt.Sprintf("/channels/%s/messages", c.promoChannelID)
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrCollaborator, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrCollaborator, err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrCollaborator, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", apperrors.ErrNotFound, method, path)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: %s %s returned %d", apperrors.ErrCollaborator, method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrCollaborator, err)
		}
	}
	return nil
}
