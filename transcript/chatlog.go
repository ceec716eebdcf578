package transcript

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxLineBytes bounds a single transcript line; spam lines can be very long.
const maxLineBytes = 16 * 1024 * 1024

// columnLayout records where each known field lives in a chat log row.
type columnLayout struct {
	width     int
	timestamp int
	user      int
	badges    int // -1 when absent
	message   int
}

// chatLogParser reads the tab separated chat log written by the capture tool.
// The first line is normally a header naming the fields; header-less files are
// accepted when their first line is already a data row.
type chatLogParser struct{}

func (chatLogParser) parse(r io.Reader) ([]ChatEvent, int, error) {
	sc := newLineScanner(r)
	var (
		layout  *columnLayout
		events  []ChatEvent
		skipped int
	)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if layout == nil {
			l, isHeader, err := detectLayout(fields)
			if err != nil {
				return nil, 0, err
			}
			layout = l
			if isHeader {
				continue
			}
		}
		if len(fields) != layout.width {
			skipped++
			continue
		}
		ts, err := ParseTimestamp(fields[layout.timestamp])
		if err != nil {
			skipped++
			continue
		}
		ev := ChatEvent{
			Timestamp: ts,
			User:      fields[layout.user],
			Message:   fields[layout.message],
		}
		if layout.badges >= 0 {
			ev.Badges = fields[layout.badges]
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return events, skipped, fmt.Errorf("read chat log: %w", err)
	}
	return events, skipped, nil
}

// detectLayout inspects the first non-empty line. A line naming a "timestamp"
// column is a header; otherwise the line must be a data row and its width picks
// one of the positional layouts the capture tool produces.
func detectLayout(fields []string) (*columnLayout, bool, error) {
	l := &columnLayout{width: len(fields), timestamp: -1, user: -1, badges: -1, message: -1}
	for i, f := range fields {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "timestamp", "time":
			l.timestamp = i
		case "user", "username", "speaker", "name":
			l.user = i
		case "badges", "badge":
			l.badges = i
		case "msg", "message", "text":
			l.message = i
		}
	}
	if l.timestamp >= 0 {
		if l.user < 0 || l.message < 0 {
			return nil, false, fmt.Errorf("%w: header %q lacks user or message column", ErrMalformed, strings.Join(fields, "\t"))
		}
		return l, true, nil
	}

	if _, err := ParseTimestamp(fields[0]); err != nil {
		return nil, false, fmt.Errorf("%w: first line is neither a header nor a chat row", ErrMalformed)
	}
	l.timestamp, l.user = 0, 1
	switch len(fields) {
	case 3:
		l.message = 2
	case 4:
		l.badges, l.message = 2, 3
	case 5:
		// timestamp, user, msg, is_command, is_mention
		l.message = 2
	default:
		return nil, false, fmt.Errorf("%w: unexpected header-less row width %d", ErrMalformed, len(fields))
	}
	return l, false, nil
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return sc
}
