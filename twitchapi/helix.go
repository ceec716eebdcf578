// Package twitchapi contains minimal helpers to interact with Twitch Helix APIs
// for user id resolution, VOD metadata listing and emote listings, using an
// app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the Helix API root.
const DefaultBaseURL = "https://api.twitch.tv/helix"

// HelixClient provides the Helix calls used by the catalog and vocabulary commands.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	HTTPClient     *http.Client
	// BaseURL overrides DefaultBaseURL (tests).
	BaseURL string
}

// NewHelixClient builds a client authenticated with app credentials.
func NewHelixClient(clientID, clientSecret string) *HelixClient {
	return &HelixClient{
		ClientID:       clientID,
		AppTokenSource: &TokenSource{ClientID: clientID, ClientSecret: clientSecret},
	}
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

// get performs an authenticated GET of path and decodes the JSON body into out.
func (hc *HelixClient) get(ctx context.Context, path string, q url.Values, out any) error {
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	base := hc.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(base, "/")+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("helix %s: %s: %s", path, resp.Status, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode helix %s: %w", path, err)
	}
	return nil
}

// GetUserID resolves a login name to its user ID.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := hc.get(ctx, "/users", url.Values{"login": {login}}, &body); err != nil {
		return "", err
	}
	if len(body.Data) == 0 {
		return "", fmt.Errorf("user not found")
	}
	return body.Data[0].ID, nil
}

// Video is the Helix video object.
type Video struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	UserLogin   string `json:"user_login"`
	UserName    string `json:"user_name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	PublishedAt string `json:"published_at"`
	URL         string `json:"url"`
	ViewCount   int    `json:"view_count"`
	Language    string `json:"language"`
	Type        string `json:"type"`
	Duration    string `json:"duration"`
}

// ListVideos lists one page of a user's videos of videoType ("" means all)
// and returns the cursor for the next page.
func (hc *HelixClient) ListVideos(ctx context.Context, userID, videoType, after string, first int) ([]Video, string, error) {
	if userID == "" {
		return nil, "", fmt.Errorf("userID empty")
	}
	if first <= 0 {
		first = 20
	}
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("first", strconv.Itoa(first))
	if videoType != "" {
		q.Set("type", videoType)
	}
	if after != "" {
		q.Set("after", after)
	}
	var body struct {
		Data       []Video `json:"data"`
		Pagination struct {
			Cursor string `json:"cursor"`
		} `json:"pagination"`
	}
	if err := hc.get(ctx, "/videos", q, &body); err != nil {
		return nil, "", err
	}
	return body.Data, body.Pagination.Cursor, nil
}

// ListAllVideos pages through ListVideos until the cursor runs out or limit
// videos were collected (limit <= 0 means no limit).
func (hc *HelixClient) ListAllVideos(ctx context.Context, userID, videoType string, limit int) ([]Video, error) {
	var out []Video
	after := ""
	for {
		page, cursor, err := hc.ListVideos(ctx, userID, videoType, after, 100)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
		if cursor == "" || len(page) == 0 {
			return out, nil
		}
		after = cursor
	}
}

// Emote is a Helix emote listing entry.
type Emote struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	EmoteType string   `json:"emote_type"`
	Format    []string `json:"format"`
}

// ChannelEmotes lists the custom emotes of a broadcaster.
func (hc *HelixClient) ChannelEmotes(ctx context.Context, broadcasterID string) ([]Emote, error) {
	if broadcasterID == "" {
		return nil, fmt.Errorf("broadcasterID empty")
	}
	var body struct {
		Data []Emote `json:"data"`
	}
	if err := hc.get(ctx, "/chat/emotes", url.Values{"broadcaster_id": {broadcasterID}}, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// GlobalEmotes lists the Twitch global emotes.
func (hc *HelixClient) GlobalEmotes(ctx context.Context) ([]Emote, error) {
	var body struct {
		Data []Emote `json:"data"`
	}
	if err := hc.get(ctx, "/chat/emotes/global", url.Values{}, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}
