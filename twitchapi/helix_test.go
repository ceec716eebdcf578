package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

// newHelix starts a server that issues "test-token" at /oauth2/token and
// routes every other path to api.
func newHelix(t *testing.T, api http.HandlerFunc) (*HelixClient, *int32) {
	t.Helper()
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" || r.PostForm.Get("client_id") != "test-client-id" {
			t.Errorf("unexpected token form: %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","expires_in":3600,"token_type":"bearer"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Client-Id") != "test-client-id" {
			t.Errorf("missing or wrong Client-Id header")
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing or wrong Authorization header")
		}
		api(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &HelixClient{
		ClientID: "test-client-id",
		BaseURL:  srv.URL,
		AppTokenSource: &TokenSource{
			ClientID:     "test-client-id",
			ClientSecret: "test-secret",
			TokenURL:     srv.URL + "/oauth2/token",
		},
	}, &tokenCalls
}

func TestHelixClient_GetUserID(t *testing.T) {
	tests := []struct {
		response    any
		name        string
		login       string
		wantUserID  string
		errContains string
		statusCode  int
	}{
		{
			name:       "successful user lookup",
			login:      "testuser",
			response:   map[string]any{"data": []map[string]string{{"id": "12345", "login": "testuser"}}},
			statusCode: http.StatusOK,
			wantUserID: "12345",
		},
		{
			name:        "user not found",
			login:       "nonexistent",
			response:    map[string]any{"data": []map[string]string{}},
			statusCode:  http.StatusOK,
			errContains: "user not found",
		},
		{
			name:        "server error",
			login:       "testuser",
			response:    map[string]string{"error": "Internal Server Error"},
			statusCode:  http.StatusInternalServerError,
			errContains: "500",
		},
		{
			name:        "empty login",
			login:       "",
			errContains: "login empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc, _ := newHelix(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/users" {
					t.Errorf("path = %s, want /users", r.URL.Path)
				}
				if got := r.URL.Query().Get("login"); got != tt.login {
					t.Errorf("login query param = %s, want %s", got, tt.login)
				}
				w.WriteHeader(tt.statusCode)
				_ = json.NewEncoder(w).Encode(tt.response)
			})

			id, err := hc.GetUserID(context.Background(), tt.login)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("err = %v, want containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.wantUserID {
				t.Errorf("id = %s, want %s", id, tt.wantUserID)
			}
		})
	}
}

func TestHelixClient_ListAllVideosPaginates(t *testing.T) {
	hc, tokenCalls := newHelix(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("user_id") != "42" || q.Get("type") != "archive" {
			t.Errorf("unexpected query: %v", q)
		}
		page := 0
		if after := q.Get("after"); after != "" {
			page, _ = strconv.Atoi(after)
		}
		cursor := ""
		if page < 2 {
			cursor = strconv.Itoa(page + 1)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": fmt.Sprintf("v%d", page), "title": "stream", "type": "archive", "duration": "1h2m3s", "view_count": page},
			},
			"pagination": map[string]string{"cursor": cursor},
		})
	})

	vids, err := hc.ListAllVideos(context.Background(), "42", "archive", 0)
	if err != nil {
		t.Fatalf("ListAllVideos: %v", err)
	}
	if len(vids) != 3 || vids[0].ID != "v0" || vids[2].ID != "v2" || vids[2].ViewCount != 2 {
		t.Fatalf("unexpected videos: %+v", vids)
	}
	if got := atomic.LoadInt32(tokenCalls); got != 1 {
		t.Errorf("token fetched %d times, want 1 (cached)", got)
	}

	vids, err = hc.ListAllVideos(context.Background(), "42", "archive", 2)
	if err != nil {
		t.Fatalf("ListAllVideos limit: %v", err)
	}
	if len(vids) != 2 {
		t.Errorf("len = %d, want 2", len(vids))
	}

	if _, _, err := hc.ListVideos(context.Background(), "", "", "", 0); err == nil {
		t.Error("expected error for empty user id")
	}
}

func TestHelixClient_Emotes(t *testing.T) {
	hc, _ := newHelix(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/emotes":
			if r.URL.Query().Get("broadcaster_id") != "42" {
				t.Errorf("missing broadcaster_id")
			}
			_, _ = w.Write([]byte(`{"data":[{"id":"1","name":"chanHype","emote_type":"subscriptions","format":["static"]}]}`))
		case "/chat/emotes/global":
			_, _ = w.Write([]byte(`{"data":[{"id":"2","name":"Kappa","emote_type":"globals","format":["static","animated"]}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	ch, err := hc.ChannelEmotes(context.Background(), "42")
	if err != nil || len(ch) != 1 || ch[0].Name != "chanHype" {
		t.Fatalf("ChannelEmotes = %+v, %v", ch, err)
	}
	gl, err := hc.GlobalEmotes(context.Background())
	if err != nil || len(gl) != 1 || gl[0].Name != "Kappa" || len(gl[0].Format) != 2 {
		t.Fatalf("GlobalEmotes = %+v, %v", gl, err)
	}
	if _, err := hc.ChannelEmotes(context.Background(), ""); err == nil {
		t.Error("expected error for empty broadcaster id")
	}
}

func TestHelixClient_MissingCredentials(t *testing.T) {
	hc := NewHelixClient("", "")
	if _, err := hc.GetUserID(context.Background(), "someone"); err == nil {
		t.Fatal("expected error without credentials")
	}
}
