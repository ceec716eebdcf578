package transcript

import (
	"fmt"
	"io"
	"sort"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

// ircParser reads raw Twitch IRC captures prefixed with the VOD offset, e.g.
//
//	[0:01:23] @badges=subscriber/12;display-name=Foo :foo!foo@foo.tmi.twitch.tv PRIVMSG #chan :KEKW
//
// Only PRIVMSG lines become events; everything else (USERNOTICE, CLEARCHAT, ...)
// is counted as skipped.
type ircParser struct{}

func (ircParser) parse(r io.Reader) ([]ChatEvent, int, error) {
	sc := newLineScanner(r)
	var (
		events  []ChatEvent
		skipped int
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		ev, ok := parseIRCLine(line)
		if !ok {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return events, skipped, fmt.Errorf("read irc log: %w", err)
	}
	return events, skipped, nil
}

func parseIRCLine(line string) (ChatEvent, bool) {
	if !strings.HasPrefix(line, "[") {
		return ChatEvent{}, false
	}
	end := strings.IndexByte(line, ']')
	if end < 0 {
		return ChatEvent{}, false
	}
	ts, err := ParseTimestamp(line[1:end])
	if err != nil {
		return ChatEvent{}, false
	}
	raw := strings.TrimSpace(line[end+1:])
	if !strings.Contains(raw, " PRIVMSG ") {
		return ChatEvent{}, false
	}
	msg, ok := twitch.ParseMessage(raw).(*twitch.PrivateMessage)
	if !ok || msg.User.Name == "" {
		return ChatEvent{}, false
	}
	return ChatEvent{
		Timestamp: ts,
		User:      msg.User.Name,
		Badges:    formatBadges(msg.User.Badges),
		Message:   msg.Message,
	}, true
}

// formatBadges renders badges deterministically as "name/version,...".
func formatBadges(badges map[string]int) string {
	if len(badges) == 0 {
		return ""
	}
	names := make([]string, 0, len(badges))
	for k := range badges {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, fmt.Sprintf("%s/%d", k, badges[k]))
	}
	return strings.Join(parts, ",")
}
