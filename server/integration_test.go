package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/chat-tender/backend/db"
	"github.com/onnwee/chat-tender/backend/testutil"
	"github.com/onnwee/chat-tender/backend/transcript"
)

func seedChat(t *testing.T) http.Handler {
	t.Helper()
	database := testutil.SetupTestDB(t)
	testutil.TruncateTables(t, database, "chat_messages", "vods", "chat_activity")
	t.Setenv("RATE_LIMIT_ENABLED", "0")
	t.Setenv("ADMIN_TOKEN", "")
	t.Setenv("ADMIN_USERNAME", "")

	ts := func(s int) transcript.Timestamp { return transcript.Timestamp(time.Duration(s) * time.Second) }
	events := []transcript.ChatEvent{
		{Timestamp: ts(5), User: "a", Message: "KEKW"},
		{Timestamp: ts(10), User: "b", Message: "hello"},
		{Timestamp: ts(130), User: "c", Message: "kekw kekw"},
	}
	if _, err := db.InsertChatMessages(context.Background(), database, "777", events); err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	return NewMux(context.Background(), database)
}

func TestVodActivityEndpoint(t *testing.T) {
	h := seedChat(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/vods/777/activity?freq=min&ignorecase=1&pattern=laugh=kekw", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Rows []activityRow `json:"rows"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// minutes 0, 1 (gap filled) and 2, each with total and laugh
	if len(body.Rows) != 6 {
		t.Fatalf("rows = %+v", body.Rows)
	}
	if body.Rows[0].Timestamp != "00:00:00" || body.Rows[0].Desc != "total" || body.Rows[0].Count != 2 {
		t.Errorf("first row = %+v", body.Rows[0])
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/vods/777/activity?format=csv&fill=0", nil))
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Body.String(), "timestamp,counts,desc,name,is_peak") {
		t.Errorf("csv = %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/vods/unknown/activity", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown vod = %d, want 404", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/vods", nil))
	var vods []db.VOD
	if err := json.Unmarshal(rr.Body.Bytes(), &vods); err != nil || len(vods) != 1 || vods[0].Messages != 3 {
		t.Errorf("vods = %+v, %v", vods, err)
	}
}

func TestSaveAndReadRun(t *testing.T) {
	h := seedChat(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/vods/777/activity?fill=0", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("save = %d %s", rr.Code, rr.Body.String())
	}
	var saved struct {
		RunID string `json:"run_id"`
		Rows  int    `json:"rows"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &saved); err != nil || saved.RunID == "" || saved.Rows != 2 {
		t.Fatalf("saved = %+v, %v", saved, err)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs/"+saved.RunID+"/activity", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("run = %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs/missing/activity", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing run = %d, want 404", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("readyz = %d %s", rr.Code, rr.Body.String())
	}
}
