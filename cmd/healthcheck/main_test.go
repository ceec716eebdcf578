package main

import "testing"

func TestHealthURL(t *testing.T) {
	tests := []struct {
		url, addr, want string
	}{
		{"", "", "http://localhost:8080/healthz"},
		{"", ":9000", "http://localhost:9000/healthz"},
		{"", "0.0.0.0:7000", "http://0.0.0.0:7000/healthz"},
		{"http://api:1/healthz", ":9000", "http://api:1/healthz"},
	}
	for _, tt := range tests {
		t.Setenv("HEALTHCHECK_URL", tt.url)
		t.Setenv("HTTP_ADDR", tt.addr)
		if got := healthURL(); got != tt.want {
			t.Errorf("healthURL(%q, %q) = %q, want %q", tt.url, tt.addr, got, tt.want)
		}
	}
}
