package transcript

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for declared transcript formats that have no parser.
	ErrUnsupportedFormat = errors.New("unsupported transcript format")
	// ErrMalformed is returned when a transcript as a whole cannot be interpreted
	// (for example a chat log without a usable header). Individual bad lines are
	// skipped instead.
	ErrMalformed = errors.New("malformed transcript")
)

// Format identifies a transcript encoding.
type Format int

const (
	// FormatChatLog is the tab separated chat log: timestamp, user, [badges], message.
	FormatChatLog Format = iota
	// FormatIRC is one "[H:MM:SS] <raw twitch irc line>" per line.
	FormatIRC
	// FormatSRT is SubRip subtitles (declared, not parsed).
	FormatSRT
	// FormatSSA is SubStation Alpha subtitles (declared, not parsed).
	FormatSSA
)

func (f Format) String() string {
	switch f {
	case FormatChatLog:
		return "tsv"
	case FormatIRC:
		return "irc"
	case FormatSRT:
		return "srt"
	case FormatSSA:
		return "ssa"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat maps a format name (as accepted by the chat capture tool) to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tsv", "chat", "log", "":
		return FormatChatLog, nil
	case "irc":
		return FormatIRC, nil
	case "srt":
		return FormatSRT, nil
	case "ssa", "ass":
		return FormatSSA, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// FormatFromPath guesses the format from a file extension, defaulting to FormatChatLog.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".irc":
		return FormatIRC
	case ".srt":
		return FormatSRT
	case ".ssa", ".ass":
		return FormatSSA
	default:
		return FormatChatLog
	}
}

// parser turns a transcript stream into events plus a count of skipped lines.
type parser interface {
	parse(r io.Reader) ([]ChatEvent, int, error)
}

func (f Format) parser() (parser, error) {
	switch f {
	case FormatChatLog:
		return chatLogParser{}, nil
	case FormatIRC:
		return ircParser{}, nil
	case FormatSRT, FormatSSA:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// Parse reads every event from r in the given format. Lines that cannot be
// decomposed into an event are skipped and counted rather than failing the read.
func Parse(r io.Reader, f Format) ([]ChatEvent, int, error) {
	p, err := f.parser()
	if err != nil {
		return nil, 0, err
	}
	return p.parse(r)
}
