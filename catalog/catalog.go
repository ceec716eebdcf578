// Package catalog groups Twitch VOD metadata listings by id so transcripts
// named after a VOD id can be labelled and selected.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/onnwee/chat-tender/backend/twitchapi"
)

// Video types accepted by Options.Type.
const (
	TypeArchive   = "archive"
	TypeHighlight = "highlight"
	TypeUpload    = "upload"
)

// DefaultSortBy is the field sorted on when Options.SortBy is empty.
const DefaultSortBy = "published_at"

// Options selects and orders catalog entries.
type Options struct {
	// SortBy is a Helix video field: published_at, created_at, view_count,
	// duration, title or id.
	SortBy string
	Desc   bool
	// Top keeps the first Top entries after sorting and before type
	// filtering; <= 0 keeps all.
	Top int
	// Type keeps only videos of this type; "" keeps every type.
	Type string
}

// Load decodes a JSON array of Helix video objects.
func Load(r io.Reader) ([]twitchapi.Video, error) {
	var vids []twitchapi.Video
	if err := json.NewDecoder(r).Decode(&vids); err != nil {
		return nil, fmt.Errorf("decode vod catalog: %w", err)
	}
	return vids, nil
}

// Fetch lists a channel's videos through Helix.
func Fetch(ctx context.Context, hc *twitchapi.HelixClient, channel, videoType string, limit int) ([]twitchapi.Video, error) {
	userID, err := hc.GetUserID(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("resolve channel %s: %w", channel, err)
	}
	vids, err := hc.ListAllVideos(ctx, userID, videoType, limit)
	if err != nil {
		return nil, fmt.Errorf("list videos for %s: %w", channel, err)
	}
	slog.Info("fetched vod catalog", slog.String("component", "catalog"), slog.String("channel", channel), slog.Int("count", len(vids)))
	return vids, nil
}

// Select sorts, truncates and filters vids according to opts. A later entry
// with an id already selected replaces the earlier one in place.
func Select(vids []twitchapi.Video, opts Options) ([]twitchapi.Video, error) {
	less, err := lessFunc(opts.SortBy)
	if err != nil {
		return nil, err
	}
	s := append([]twitchapi.Video(nil), vids...)
	sort.SliceStable(s, func(i, j int) bool {
		if opts.Desc {
			return less(s[j], s[i])
		}
		return less(s[i], s[j])
	})
	if opts.Top > 0 && opts.Top < len(s) {
		s = s[:opts.Top]
	}
	out := make([]twitchapi.Video, 0, len(s))
	pos := map[string]int{}
	for _, v := range s {
		if opts.Type != "" && v.Type != opts.Type {
			continue
		}
		if i, ok := pos[v.ID]; ok {
			out[i] = v
			continue
		}
		pos[v.ID] = len(out)
		out = append(out, v)
	}
	return out, nil
}

func lessFunc(field string) (func(a, b twitchapi.Video) bool, error) {
	switch strings.ToLower(field) {
	case "", DefaultSortBy, "publish_date":
		return func(a, b twitchapi.Video) bool { return a.PublishedAt < b.PublishedAt }, nil
	case "created_at":
		return func(a, b twitchapi.Video) bool { return a.CreatedAt < b.CreatedAt }, nil
	case "view_count":
		return func(a, b twitchapi.Video) bool { return a.ViewCount < b.ViewCount }, nil
	case "duration":
		return func(a, b twitchapi.Video) bool { return ParseDuration(a.Duration) < ParseDuration(b.Duration) }, nil
	case "title":
		return func(a, b twitchapi.Video) bool { return a.Title < b.Title }, nil
	case "id":
		return func(a, b twitchapi.Video) bool { return a.ID < b.ID }, nil
	}
	return nil, fmt.Errorf("cannot sort vod catalog by %q", field)
}

// WriteByID writes vids as a JSON object keyed by id, in slice order. The id
// field is dropped from each value.
func WriteByID(w io.Writer, vids []twitchapi.Video) error {
	byID := orderedmap.New[string, map[string]any]()
	for _, v := range vids {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		meta := map[string]any{}
		if err := json.Unmarshal(raw, &meta); err != nil {
			return err
		}
		delete(meta, "id")
		byID.Set(v.ID, meta)
	}
	out, err := json.MarshalIndent(byID, "", "    ")
	if err != nil {
		return fmt.Errorf("encode vod catalog: %w", err)
	}
	_, err = w.Write(append(out, '\n'))
	return err
}

// ParseDuration parses the Helix duration format like "3h15m42s". Digits
// without a unit and unknown units are ignored.
func ParseDuration(s string) time.Duration {
	var total time.Duration
	n, digits := 0, false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
			digits = true
			continue
		}
		if digits {
			switch r {
			case 'h':
				total += time.Duration(n) * time.Hour
			case 'm':
				total += time.Duration(n) * time.Minute
			case 's':
				total += time.Duration(n) * time.Second
			}
		}
		n, digits = 0, false
	}
	return total
}

var unsafeName = regexp.MustCompile(`[^-\w.]`)

// SafeName turns a title into a file-name-safe token: trimmed, spaces become
// underscores, anything outside [-\w.] is dropped.
func SafeName(s string) string {
	return unsafeName.ReplaceAllString(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"), "")
}

// DisplayNames maps every video id to "<id>_<safe title>", the label used for
// transcripts named after the id.
func DisplayNames(vids []twitchapi.Video) map[string]string {
	out := make(map[string]string, len(vids))
	for _, v := range vids {
		name := v.ID
		if t := SafeName(v.Title); t != "" {
			name += "_" + t
		}
		out[v.ID] = name
	}
	return out
}
