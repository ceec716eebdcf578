// Package transcript loads chat transcripts captured from stream archives into
// ordered ChatEvent sequences.
//
// Two formats are parsed: the tab separated chat log (FormatChatLog) and raw
// Twitch IRC captures (FormatIRC). Subtitle formats are declared so callers can
// name them, but loading one fails with ErrUnsupportedFormat. Malformed lines
// never fail a load; they are skipped and reported through Transcript.Skipped.
package transcript

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/onnwee/chat-tender/backend/labels"
	"github.com/onnwee/chat-tender/backend/telemetry"
)

// ChatEvent is one chat line. Events are immutable once loaded.
type ChatEvent struct {
	Timestamp Timestamp
	User      string
	Badges    string
	Message   string
}

// Transcript is the ordered chat of one recording. Events keep file order and
// are assumed to be non-decreasing in time; they are never re-sorted.
type Transcript struct {
	ID          string
	DisplayName string
	Format      Format
	Events      []ChatEvent
	Skipped     int
}

// Name is the label used to tag output rows for this transcript.
func (t *Transcript) Name() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.ID
}

// Load parses r as a transcript identified by id. The display name is the
// decoded id when id is a base64 label, else the id itself.
func Load(r io.Reader, id string, f Format) (*Transcript, error) {
	events, skipped, err := Parse(r, f)
	if err != nil {
		return nil, fmt.Errorf("load transcript %s: %w", id, err)
	}
	telemetry.RecordTranscriptLines(f.String(), len(events), skipped)
	t := &Transcript{
		ID:          id,
		DisplayName: labels.DecodeOr(id),
		Format:      f,
		Events:      events,
		Skipped:     skipped,
	}
	if skipped > 0 {
		slog.Warn("skipped malformed transcript lines",
			slog.String("component", "transcript"),
			slog.String("transcript", t.ID),
			slog.Int("skipped", skipped),
			slog.Int("events", len(events)))
	}
	return t, nil
}

// LoadFile opens path and loads it. The transcript id is the file name without
// its extension.
func LoadFile(path string, f Format) (*Transcript, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close transcript file", slog.String("path", path), slog.Any("err", err))
		}
	}()
	return Load(file, IDFromPath(path), f)
}

// IDFromPath returns the base name of path without its extension.
func IDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
