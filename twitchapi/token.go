package twitchapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is the Twitch OAuth token endpoint.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// TokenSource fetches and caches a Twitch app access (client credentials) token.
// The token is refreshed shortly before it expires.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	// TokenURL overrides DefaultTokenURL (tests).
	TokenURL   string
	HTTPClient *http.Client

	once sync.Once
	src  oauth2.TokenSource
}

func (ts *TokenSource) init() {
	cc := &clientcredentials.Config{
		ClientID:     ts.ClientID,
		ClientSecret: ts.ClientSecret,
		TokenURL:     ts.TokenURL,
		// Twitch only accepts the credentials as form values.
		AuthStyle: oauth2.AuthStyleInParams,
	}
	if cc.TokenURL == "" {
		cc.TokenURL = DefaultTokenURL
	}
	ctx := context.Background()
	if ts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, ts.HTTPClient)
	}
	ts.src = cc.TokenSource(ctx)
}

// Get returns a valid (fresh or cached) app access token.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	if ts.ClientID == "" || ts.ClientSecret == "" {
		return "", errors.New("missing client id/secret for twitch app token")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ts.once.Do(ts.init)
	tok, err := ts.src.Token()
	if err != nil {
		return "", fmt.Errorf("twitch app token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("empty access_token in twitch response")
	}
	return tok.AccessToken, nil
}
