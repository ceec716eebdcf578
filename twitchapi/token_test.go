package twitchapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTokenSource_Get(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		status      int
		errContains string
		want        string
	}{
		{name: "ok", status: http.StatusOK, body: `{"access_token":"abc","expires_in":3600,"token_type":"bearer"}`, want: "abc"},
		{name: "rejected", status: http.StatusBadRequest, body: `{"status":400,"message":"invalid client secret"}`, errContains: "twitch app token"},
		{name: "empty token", status: http.StatusOK, body: `{"access_token":"","expires_in":3600}`, errContains: "access_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				if err := r.ParseForm(); err != nil {
					t.Fatalf("parse form: %v", err)
				}
				if r.PostForm.Get("client_secret") != "s" {
					t.Errorf("client_secret not sent in form")
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			ts := &TokenSource{ClientID: "c", ClientSecret: "s", TokenURL: srv.URL, HTTPClient: srv.Client()}
			got, err := ts.Get(context.Background())
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("err = %v, want containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenSource_MissingCredentials(t *testing.T) {
	ts := &TokenSource{}
	if _, err := ts.Get(context.Background()); err == nil || !strings.Contains(err.Error(), "missing client id/secret") {
		t.Fatalf("err = %v", err)
	}
}

func TestTokenSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ts := &TokenSource{ClientID: "c", ClientSecret: "s", TokenURL: "http://127.0.0.1:0"}
	if _, err := ts.Get(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
