// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	TranscriptLines      *prometheus.CounterVec // labels: format, outcome (parsed|skipped)
	TranscriptsProcessed *prometheus.CounterVec // labels: outcome (ok|error)
	PeaksFlagged         prometheus.Counter
	HTTPRequests         *prometheus.CounterVec // labels: route, code

	// Histograms (seconds)
	StageDuration *prometheus.HistogramVec // labels: stage

	// Gauges
	VocabularySize  prometheus.Gauge
	MatrixCells     prometheus.Gauge
	DBOpenConns     prometheus.Gauge
	DBInUseConns    prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		TranscriptLines = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_transcript_lines_total", Help: "Transcript lines read, by format and outcome"}, []string{"format", "outcome"})
		TranscriptsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_transcripts_processed_total", Help: "Transcripts run through the analysis pipeline"}, []string{"outcome"})
		PeaksFlagged = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_activity_peaks_total", Help: "Activity buckets flagged as peaks"})
		HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_http_requests_total", Help: "HTTP requests by route and status code"}, []string{"route", "code"})
		StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_analysis_stage_duration_seconds",
			Help:    "Duration of analysis stages",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"stage"})
		VocabularySize = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_vocabulary_size", Help: "Items in the most recently loaded vocabulary"})
		MatrixCells = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_frequency_matrix_cells", Help: "Cells in the most recently built frequency matrix"})
		DBOpenConns = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_db_open_connections", Help: "Open database connections"})
		DBInUseConns = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_db_in_use_connections", Help: "Database connections in use"})
	})
}

// RecordTranscriptLines counts parsed and skipped lines for one transcript.
func RecordTranscriptLines(format string, parsed, skipped int) {
	if TranscriptLines == nil {
		return
	}
	TranscriptLines.WithLabelValues(format, "parsed").Add(float64(parsed))
	TranscriptLines.WithLabelValues(format, "skipped").Add(float64(skipped))
}

// RecordTranscript counts one processed transcript.
func RecordTranscript(err error) {
	if TranscriptsProcessed == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	TranscriptsProcessed.WithLabelValues(outcome).Inc()
}

// AddPeaks adds n flagged peaks.
func AddPeaks(n int) { if PeaksFlagged != nil && n > 0 { PeaksFlagged.Add(float64(n)) } }

// SetVocabularySize records the vocabulary length.
func SetVocabularySize(n int) { if VocabularySize != nil { VocabularySize.Set(float64(n)) } }

// SetMatrixCells records the matrix size (words x transcripts).
func SetMatrixCells(words, transcripts int) {
	if MatrixCells != nil {
		MatrixCells.Set(float64(words * transcripts))
	}
}

// RecordHTTPRequest counts a served request.
func RecordHTTPRequest(route string, code int) {
	if HTTPRequests != nil {
		HTTPRequests.WithLabelValues(route, httpCode(code)).Inc()
	}
}

// UpdateDatabasePoolMetrics records connection pool usage.
func UpdateDatabasePoolMetrics(open, inUse int) {
	if DBOpenConns != nil { DBOpenConns.Set(float64(open)) }
	if DBInUseConns != nil { DBInUseConns.Set(float64(inUse)) }
}

// ObserveStage returns the observer for stage, or nil before Init.
func ObserveStage(stage string) prometheus.Observer {
	if StageDuration == nil {
		return nil
	}
	return StageDuration.WithLabelValues(stage)
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil { obs.Observe(d.Seconds()) }
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}
var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context { return context.WithValue(ctx, corrKey, id) }

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok { return s }
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" { return slog.Default().With(slog.String("corr", id)) }
	return slog.Default()
}
