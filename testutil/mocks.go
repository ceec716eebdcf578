package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/chat-tender/backend/twitchapi"
)

// MockTwitchServer serves canned Helix responses. Paths are relative to the
// Helix base URL, so clients use Server.URL as BaseURL.
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchServer creates a new mock Twitch API server that always issues
// an app token at /oauth2/token.
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.MockOAuthTokenResponse("test-token", 3600)
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Client returns a HelixClient pointed at the mock server.
func (m *MockTwitchServer) Client() *twitchapi.HelixClient {
	return &twitchapi.HelixClient{
		ClientID: "test-client-id",
		BaseURL:  m.URL,
		AppTokenSource: &twitchapi.TokenSource{
			ClientID:     "test-client-id",
			ClientSecret: "test-secret",
			TokenURL:     m.URL + "/oauth2/token",
		},
	}
}

// MockUserResponse adds a handler for the /users endpoint.
func (m *MockTwitchServer) MockUserResponse(userID, login string) {
	m.Handlers["/users"] = jsonHandler(map[string]any{
		"data": []map[string]string{{"id": userID, "login": login}},
	})
}

// MockVideosResponse adds a handler for the /videos endpoint returning one page.
func (m *MockTwitchServer) MockVideosResponse(videos []twitchapi.Video, cursor string) {
	m.Handlers["/videos"] = jsonHandler(map[string]any{
		"data":       videos,
		"pagination": map[string]string{"cursor": cursor},
	})
}

// MockEmotesResponse adds handlers for the channel and global emote endpoints.
func (m *MockTwitchServer) MockEmotesResponse(channel, global []twitchapi.Emote) {
	m.Handlers["/chat/emotes"] = jsonHandler(map[string]any{"data": channel})
	m.Handlers["/chat/emotes/global"] = jsonHandler(map[string]any{"data": global})
}

// MockOAuthTokenResponse replaces the token endpoint handler.
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = jsonHandler(map[string]any{
		"access_token": accessToken,
		"expires_in":   expiresIn,
		"token_type":   "bearer",
	})
}

func jsonHandler(body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // test mock response
	}
}
