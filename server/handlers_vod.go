package server

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/onnwee/chat-tender/backend/activity"
	"github.com/onnwee/chat-tender/backend/db"
	"github.com/onnwee/chat-tender/backend/export"
	"github.com/onnwee/chat-tender/backend/pipeline"
	"github.com/onnwee/chat-tender/backend/telemetry"
	"github.com/onnwee/chat-tender/backend/transcript"
)

// activityRow is the JSON shape of one activity bucket.
type activityRow struct {
	Timestamp string `json:"timestamp"`
	Count     int    `json:"counts"`
	Desc      string `json:"desc"`
	Name      string `json:"name"`
	IsPeak    bool   `json:"is_peak"`
}

func toRows(buckets []activity.TimeBucket) []activityRow {
	out := make([]activityRow, len(buckets))
	for i, b := range buckets {
		out[i] = activityRow{Timestamp: b.Start.String(), Count: b.Count, Desc: b.Label, Name: b.Transcript, IsPeak: b.IsPeak}
	}
	return out
}

// HandleVodsList lists stored VODs, newest first.
func (h *Handlers) HandleVodsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	vods, err := db.ListVODs(r.Context(), h.db)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("list vods", slog.Any("err", err), slog.String("component", "http"))
		writeError(w, http.StatusInternalServerError, "failed to list vods")
		return
	}
	if vods == nil {
		vods = []db.VOD{}
	}
	writeJSON(w, http.StatusOK, vods)
}

// HandleVodsDispatcher routes /vods/{id}/... requests.
func (h *Handlers) HandleVodsDispatcher(w http.ResponseWriter, r *http.Request) {
	vodID, tail := splitPath(r.URL.Path, "/vods/")
	switch {
	case vodID == "":
		http.NotFound(w, r)
	case tail == "activity":
		h.handleVodActivity(w, r, vodID)
	default:
		http.NotFound(w, r)
	}
}

// activityOptions reads freq, pattern (repeatable name=expr), ignorecase and
// fill from the query string.
func (h *Handlers) activityOptions(r *http.Request) (pipeline.Options, error) {
	q := r.URL.Query()
	freq := q.Get("freq")
	if freq == "" {
		freq = "min"
	}
	g, err := activity.ParseGranularity(freq)
	if err != nil {
		return pipeline.Options{}, err
	}
	var specs []activity.PatternSpec
	for _, p := range q["pattern"] {
		name, expr, ok := strings.Cut(p, "=")
		if !ok {
			return pipeline.Options{}, fmt.Errorf("pattern %q: want name=expression", p)
		}
		specs = append(specs, activity.PatternSpec{Name: name, Pattern: expr})
	}
	pats, err := activity.CompilePatterns(specs, parseBoolQuery(r, "ignorecase", false))
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Activity: activity.Options{Granularity: g, Patterns: pats},
		FillGaps: parseBoolQuery(r, "fill", true),
		Workers:  h.workers,
	}, nil
}

// runVodActivity loads the stored chat of vodID and aggregates it. The int is
// the HTTP status to report on error.
func (h *Handlers) runVodActivity(r *http.Request, vodID string) ([]activity.TimeBucket, int, int, error) {
	ctx := r.Context()
	opts, err := h.activityOptions(r)
	if err != nil {
		return nil, 0, http.StatusBadRequest, err
	}
	t, err := db.LoadTranscript(ctx, h.db, vodID)
	if err != nil {
		if errors.Is(err, db.ErrVODNotFound) {
			return nil, 0, http.StatusNotFound, err
		}
		return nil, 0, http.StatusInternalServerError, err
	}
	rows, flagged, err := pipeline.RunActivity(ctx, []*transcript.Transcript{t}, opts)
	if err != nil {
		if errors.Is(err, activity.ErrTooManyBuckets) {
			return nil, 0, http.StatusBadRequest, err
		}
		return nil, 0, http.StatusInternalServerError, err
	}
	return rows, flagged, http.StatusOK, nil
}

func (h *Handlers) handleVodActivity(w http.ResponseWriter, r *http.Request, vodID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rows, flagged, status, err := h.runVodActivity(r, vodID)
	if err != nil {
		if status == http.StatusInternalServerError {
			telemetry.LoggerWithCorr(r.Context()).Error("vod activity", slog.String("vod_id", vodID), slog.Any("err", err), slog.String("component", "http"))
			writeError(w, status, "activity failed")
			return
		}
		writeError(w, status, err.Error())
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := export.WriteActivity(w, ',', rows); err != nil {
			slog.Warn("write activity csv", slog.Any("err", err))
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vod_id": vodID,
		"peaks":  flagged,
		"rows":   toRows(rows),
	})
}

// HandleAdminSaveActivity handles POST /admin/vods/{id}/activity: it runs the
// activity analysis and stores the rows under a new run id.
func (h *Handlers) HandleAdminSaveActivity(w http.ResponseWriter, r *http.Request) {
	vodID, tail := splitPath(r.URL.Path, "/admin/vods/")
	if vodID == "" || tail != "activity" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	logger := telemetry.LoggerWithCorr(r.Context()).With(slog.String("component", "http"), slog.String("vod_id", vodID))
	rows, flagged, status, err := h.runVodActivity(r, vodID)
	if err != nil {
		logger.Warn("activity run failed", slog.Any("err", err))
		writeError(w, status, err.Error())
		return
	}
	runID := uuid.New().String()
	if err := db.SaveActivity(r.Context(), h.db, runID, rows); err != nil {
		logger.Error("save activity", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to save activity")
		return
	}
	logger.Info("activity run saved", slog.String("run_id", runID), slog.Int("rows", len(rows)), slog.Int("peaks", flagged))
	writeJSON(w, http.StatusCreated, map[string]any{"run_id": runID, "rows": len(rows), "peaks": flagged})
}

// HandleRunActivity handles GET /runs/{id}/activity.
func (h *Handlers) HandleRunActivity(w http.ResponseWriter, r *http.Request) {
	runID, tail := splitPath(r.URL.Path, "/runs/")
	if runID == "" || tail != "activity" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rows, err := db.LoadActivity(r.Context(), h.db, runID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		telemetry.LoggerWithCorr(r.Context()).Error("load run", slog.String("run_id", runID), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "rows": toRows(rows)})
}
