package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/chat-tender/backend/labels"
)

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"7", "00:00:07"},
		{"07", "00:00:07"},
		{"5:07", "00:05:07"},
		{"15:07", "00:15:07"},
		{"1:02:03", "01:02:03"},
		{"12:34:56", "12:34:56"},
		{"1:02:03,250", "01:02:03.250"},
		{"0:00:05.5", "00:00:05.5"},
		{" 3:04 ", "00:03:04"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeTimestamp(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeTimestampIdempotent(t *testing.T) {
	for _, canonical := range []string{"00:00:00", "01:59:59", "23:00:01", "10:20:30.125"} {
		got, err := NormalizeTimestamp(canonical)
		require.NoError(t, err)
		assert.Equal(t, canonical, got)

		again, err := NormalizeTimestamp(got)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}
}

func TestNormalizeTimestampRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "1:2", "123:45:67", "00:61:00", "00:00:00.", "00:00:00.x1", "100:00:00"} {
		_, err := NormalizeTimestamp(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("1:02:03,5")
	require.NoError(t, err)
	assert.Equal(t, time.Hour+2*time.Minute+3*time.Second+500*time.Millisecond, ts.Duration())
	assert.Equal(t, "01:02:03.5", ts.String())
	assert.Equal(t, "01:02:00", ts.Floor(time.Minute).String())
}

func TestParseChatLogWithHeader(t *testing.T) {
	in := strings.Join([]string{
		"timestamp\tuser\tmsg",
		"0:00:05\talice\thello KEKW",
		"0:00:07\tbob\tKEKW KEKW",
		"broken line without tabs",
		"0:01:02\tcarol\tbye",
		"xx:yy\tdave\tbad timestamp",
		"0:01:03\ttoo\tmany\tfields",
	}, "\n")
	events, skipped, err := Parse(strings.NewReader(in), FormatChatLog)
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)
	require.Len(t, events, 3)
	assert.Equal(t, "00:00:05", events[0].Timestamp.String())
	assert.Equal(t, "alice", events[0].User)
	assert.Equal(t, "hello KEKW", events[0].Message)
	assert.Equal(t, "carol", events[2].User)
}

func TestParseChatLogBadgesColumn(t *testing.T) {
	in := "timestamp\tuser\tbadges\tmessage\n00:00:01\talice\tsubscriber/3\thi\n"
	events, skipped, err := Parse(strings.NewReader(in), FormatChatLog)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, events, 1)
	assert.Equal(t, "subscriber/3", events[0].Badges)
	assert.Equal(t, "hi", events[0].Message)
}

func TestParseChatLogHeaderless(t *testing.T) {
	in := "0:00:01\talice\tPog\tFalse\tFalse\n0:00:02\tbob\tLUL\tFalse\tTrue\n"
	events, skipped, err := Parse(strings.NewReader(in), FormatChatLog)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, events, 2)
	assert.Equal(t, "LUL", events[1].Message)
}

func TestParseChatLogKeepsFileOrder(t *testing.T) {
	in := "timestamp\tuser\tmsg\n0:00:09\ta\tlate\n0:00:01\tb\tearly\n"
	events, _, err := Parse(strings.NewReader(in), FormatChatLog)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "late", events[0].Message)
}

func TestParseChatLogUnusableHeader(t *testing.T) {
	_, _, err := Parse(strings.NewReader("timestamp\tfoo\n"), FormatChatLog)
	assert.True(t, errors.Is(err, ErrMalformed))

	_, _, err = Parse(strings.NewReader("hello\tworld\n"), FormatChatLog)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestParseEmptyInput(t *testing.T) {
	events, skipped, err := Parse(strings.NewReader(""), FormatChatLog)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Zero(t, skipped)
}

func TestParseIRC(t *testing.T) {
	in := strings.Join([]string{
		"[0:00:05] @badges=subscriber/12,premium/1;display-name=Alice;tmi-sent-ts=1700000000000 :alice!alice@alice.tmi.twitch.tv PRIVMSG #streamer :hello KEKW",
		"[0:00:06] @login=bob :tmi.twitch.tv CLEARCHAT #streamer :bob",
		"not an irc line",
		"[1:02:03] :carol!carol@carol.tmi.twitch.tv PRIVMSG #streamer :LUL",
	}, "\n")
	events, skipped, err := Parse(strings.NewReader(in), FormatIRC)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, events, 2)
	assert.Equal(t, "00:00:05", events[0].Timestamp.String())
	assert.Equal(t, "alice", events[0].User)
	assert.Equal(t, "premium/1,subscriber/12", events[0].Badges)
	assert.Equal(t, "hello KEKW", events[0].Message)
	assert.Equal(t, "01:02:03", events[1].Timestamp.String())
	assert.Equal(t, "LUL", events[1].Message)
}

func TestUnsupportedFormats(t *testing.T) {
	for _, f := range []Format{FormatSRT, FormatSSA} {
		_, _, err := Parse(strings.NewReader("1\n00:00:01,000 --> 00:00:02,000\nhi\n"), f)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsupportedFormat), "format %s", f)
		assert.False(t, errors.Is(err, ErrMalformed))
	}
	_, err := ParseFormat("json")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatChatLog, FormatFromPath("a/b/123.tsv"))
	assert.Equal(t, FormatIRC, FormatFromPath("123.irc"))
	assert.Equal(t, FormatSRT, FormatFromPath("123.SRT"))
	assert.Equal(t, FormatSSA, FormatFromPath("123.ass"))
}

func TestLoadFileDecodesName(t *testing.T) {
	dir := t.TempDir()
	id := labels.Encode("123_Big Stream")
	path := filepath.Join(dir, id+".tsv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp\tuser\tmsg\n0:00:01\ta\thi\n"), 0o644))

	tr, err := LoadFile(path, FormatChatLog)
	require.NoError(t, err)
	assert.Equal(t, id, tr.ID)
	assert.Equal(t, "123_Big Stream", tr.DisplayName)
	assert.Equal(t, "123_Big Stream", tr.Name())
	assert.Len(t, tr.Events, 1)

	_, err = LoadFile(filepath.Join(dir, "missing.tsv"), FormatChatLog)
	assert.Error(t, err)
}
