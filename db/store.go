package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/chat-tender/backend/activity"
	"github.com/onnwee/chat-tender/backend/catalog"
	"github.com/onnwee/chat-tender/backend/labels"
	"github.com/onnwee/chat-tender/backend/transcript"
	"github.com/onnwee/chat-tender/backend/twitchapi"
)

// ErrVODNotFound is returned when a VOD id has no stored chat.
var ErrVODNotFound = errors.New("vod not found")

// VOD is a stored VOD row with its message count.
type VOD struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Type        string    `json:"type"`
	PublishedAt time.Time `json:"published_at"`
	Duration    int       `json:"duration_seconds"`
	ViewCount   int       `json:"view_count"`
	Messages    int       `json:"messages"`
}

// UpsertVideos stores Helix video metadata keyed by VOD id. Existing rows are
// refreshed in place.
func UpsertVideos(ctx context.Context, db *sql.DB, vids []twitchapi.Video) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, v := range vids {
		var published sql.NullTime
		if t, err := time.Parse(time.RFC3339, v.PublishedAt); err == nil {
			published = sql.NullTime{Time: t, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO vods (twitch_vod_id, title, video_type, published_at, duration_seconds, view_count, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,NOW())
			ON CONFLICT (twitch_vod_id) DO UPDATE SET
			  title=EXCLUDED.title,
			  video_type=EXCLUDED.video_type,
			  published_at=EXCLUDED.published_at,
			  duration_seconds=EXCLUDED.duration_seconds,
			  view_count=EXCLUDED.view_count,
			  updated_at=NOW()`,
			v.ID, v.Title, v.Type, published, int(catalog.ParseDuration(v.Duration).Seconds()), v.ViewCount)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert vod %s: %w", v.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vods: %w", err)
	}
	return nil
}

// InsertChatMessages appends events to the chat of vodID in one transaction
// and returns the number of rows written.
func InsertChatMessages(ctx context.Context, db *sql.DB, vodID string, events []transcript.ChatEvent) (int, error) {
	if vodID == "" {
		return 0, fmt.Errorf("vod id empty")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chat_messages (vod_id, username, message, rel_timestamp, badges) VALUES ($1,$2,$3,$4,$5)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare insert chat: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			slog.Warn("failed to close prepared statement", slog.Any("err", err))
		}
	}()
	for i, ev := range events {
		if _, err := stmt.ExecContext(ctx, vodID, ev.User, ev.Message, ev.Timestamp.Duration().Seconds(), ev.Badges); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert chat line %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit chat: %w", err)
	}
	slog.Info("stored chat transcript", slog.String("component", "db"), slog.String("vod_id", vodID), slog.Int("messages", len(events)))
	return len(events), nil
}

// LoadTranscript reads the stored chat of vodID ordered by offset. Rows with a
// negative or missing offset are skipped and counted in Transcript.Skipped.
func LoadTranscript(ctx context.Context, db *sql.DB, vodID string) (*transcript.Transcript, error) {
	rows, err := db.QueryContext(ctx, `SELECT COALESCE(username,''), COALESCE(badges,''), COALESCE(message,''), rel_timestamp
		FROM chat_messages WHERE vod_id=$1 ORDER BY rel_timestamp ASC, id ASC`, vodID)
	if err != nil {
		return nil, fmt.Errorf("query chat %s: %w", vodID, err)
	}
	defer rows.Close()

	t := &transcript.Transcript{ID: vodID, DisplayName: labels.DecodeOr(vodID), Format: transcript.FormatChatLog}
	for rows.Next() {
		var ev transcript.ChatEvent
		var rel sql.NullFloat64
		if err := rows.Scan(&ev.User, &ev.Badges, &ev.Message, &rel); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		if !rel.Valid || rel.Float64 < 0 {
			t.Skipped++
			continue
		}
		ev.Timestamp = transcript.Timestamp(time.Duration(rel.Float64 * float64(time.Second)))
		t.Events = append(t.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat rows: %w", err)
	}
	if len(t.Events) == 0 && t.Skipped == 0 {
		return nil, fmt.Errorf("%w: %s", ErrVODNotFound, vodID)
	}
	return t, nil
}

// ListVODs returns every VOD with stored chat or metadata, newest first.
func ListVODs(ctx context.Context, db *sql.DB) ([]VOD, error) {
	rows, err := db.QueryContext(ctx, `SELECT ids.vod_id, COALESCE(v.title,''), COALESCE(v.video_type,''),
			COALESCE(v.published_at, to_timestamp(0)), COALESCE(v.duration_seconds,0), COALESCE(v.view_count,0),
			(SELECT COUNT(*) FROM chat_messages c WHERE c.vod_id = ids.vod_id)
		FROM (SELECT twitch_vod_id AS vod_id FROM vods UNION SELECT DISTINCT vod_id FROM chat_messages) ids
		LEFT JOIN vods v ON v.twitch_vod_id = ids.vod_id
		ORDER BY 4 DESC, 1 ASC`)
	if err != nil {
		return nil, fmt.Errorf("list vods: %w", err)
	}
	defer rows.Close()
	var out []VOD
	for rows.Next() {
		var v VOD
		if err := rows.Scan(&v.ID, &v.Title, &v.Type, &v.PublishedAt, &v.Duration, &v.ViewCount, &v.Messages); err != nil {
			return nil, fmt.Errorf("scan vod row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SaveActivity stores the activity rows of one analysis run. Saving the same
// run twice overwrites counts and peak flags.
func SaveActivity(ctx context.Context, db *sql.DB, runID string, rows []activity.TimeBucket) error {
	if runID == "" {
		return fmt.Errorf("run id empty")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chat_activity (run_id, transcript, label, bucket_start_ms, count, is_peak)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (run_id, transcript, label, bucket_start_ms) DO UPDATE SET count=EXCLUDED.count, is_peak=EXCLUDED.is_peak`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert activity: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			slog.Warn("failed to close prepared statement", slog.Any("err", err))
		}
	}()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, runID, r.Transcript, r.Label, r.Start.Duration().Milliseconds(), r.Count, r.IsPeak); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert activity row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activity: %w", err)
	}
	return nil
}

// LoadActivity reads back the rows saved for runID in transcript, label and
// time order.
func LoadActivity(ctx context.Context, db *sql.DB, runID string) ([]activity.TimeBucket, error) {
	rows, err := db.QueryContext(ctx, `SELECT transcript, label, bucket_start_ms, count, is_peak
		FROM chat_activity WHERE run_id=$1 ORDER BY transcript, label, bucket_start_ms`, runID)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()
	var out []activity.TimeBucket
	for rows.Next() {
		var b activity.TimeBucket
		var ms int64
		if err := rows.Scan(&b.Transcript, &b.Label, &ms, &b.Count, &b.IsPeak); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		b.Start = transcript.Timestamp(time.Duration(ms) * time.Millisecond)
		out = append(out, b)
	}
	return out, rows.Err()
}
