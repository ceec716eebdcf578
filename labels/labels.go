// Package labels converts human readable names (VOD titles, emote codes) to and
// from the filesystem-safe base64 labels used for transcript and emote file names.
package labels

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrDecode is returned when a label is not a valid base64 encoding of UTF-8 text.
var ErrDecode = errors.New("label decode failed")

// Encode returns the URL-safe (and therefore filename-safe) base64 form of name.
func Encode(name string) string {
	return base64.URLEncoding.EncodeToString([]byte(name))
}

// Decode reverses Encode. Labels produced by other tools with the standard
// alphabet are accepted too; padding is required.
func Decode(label string) (string, error) {
	if label == "" {
		return "", fmt.Errorf("%w: empty label", ErrDecode)
	}
	encodings := []*base64.Encoding{
		base64.URLEncoding,
		base64.StdEncoding,
	}
	for _, enc := range encodings {
		b, err := enc.DecodeString(label)
		if err != nil {
			continue
		}
		if !utf8.Valid(b) {
			return "", fmt.Errorf("%w: %q is not utf-8 text", ErrDecode, label)
		}
		return string(b), nil
	}
	return "", fmt.Errorf("%w: %q", ErrDecode, label)
}

// DecodeOr decodes label, returning label itself when it is not decodable.
func DecodeOr(label string) string {
	if s, err := Decode(label); err == nil {
		return s
	}
	return label
}
