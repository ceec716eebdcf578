package transcript

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// canonicalClockLen is the width of a canonical HH:MM:SS clock.
const canonicalClockLen = 8

// Timestamp is a time-of-day offset from the start of a recording.
type Timestamp time.Duration

// Duration returns the offset as a time.Duration.
func (t Timestamp) Duration() time.Duration { return time.Duration(t) }

// Floor truncates t to a multiple of g. A non-positive g returns t unchanged.
func (t Timestamp) Floor(g time.Duration) Timestamp {
	if g <= 0 {
		return t
	}
	return Timestamp(time.Duration(t).Truncate(g))
}

// String renders the canonical HH:MM:SS form, with a fractional part only when
// the offset is not a whole second.
func (t Timestamp) String() string {
	d := time.Duration(t)
	neg := d < 0
	if neg {
		d = -d
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	frac := d % time.Second
	out := fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	if frac != 0 {
		out += strings.TrimRight(fmt.Sprintf(".%09d", frac), "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}

// NormalizeTimestamp canonicalizes a possibly partial clock value ("5:07",
// "1:02:03,250") to the fixed-width HH:MM:SS[.fraction] form. The clock part is
// left padded one character at a time: a ':' when the padded length would be a
// multiple of three, a '0' otherwise, until it is eight characters wide.
func NormalizeTimestamp(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty timestamp")
	}
	clock, frac := s, ""
	if i := strings.IndexAny(s, ".,"); i >= 0 {
		clock, frac = s[:i], s[i+1:]
		if frac == "" || !allDigits(frac) {
			return "", fmt.Errorf("invalid fraction in timestamp %q", s)
		}
	}
	if clock == "" || len(clock) > canonicalClockLen {
		return "", fmt.Errorf("invalid timestamp %q", s)
	}
	for _, r := range clock {
		if (r < '0' || r > '9') && r != ':' {
			return "", fmt.Errorf("invalid character %q in timestamp %q", r, s)
		}
	}
	for len(clock) < canonicalClockLen {
		if (len(clock)+1)%3 == 0 {
			clock = ":" + clock
		} else {
			clock = "0" + clock
		}
	}
	if clock[2] != ':' || clock[5] != ':' || !allDigits(clock[0:2]+clock[3:5]+clock[6:8]) {
		return "", fmt.Errorf("malformed timestamp %q", s)
	}
	if clock[3] > '5' || clock[6] > '5' {
		return "", fmt.Errorf("minutes/seconds out of range in timestamp %q", s)
	}
	if frac != "" {
		return clock + "." + frac, nil
	}
	return clock, nil
}

// ParseTimestamp normalizes s and converts it to an offset.
func ParseTimestamp(s string) (Timestamp, error) {
	norm, err := NormalizeTimestamp(s)
	if err != nil {
		return 0, err
	}
	h, _ := strconv.Atoi(norm[0:2])
	m, _ := strconv.Atoi(norm[3:5])
	sec, _ := strconv.Atoi(norm[6:8])
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second
	if len(norm) > canonicalClockLen {
		frac := norm[canonicalClockLen+1:]
		if len(frac) > 9 {
			frac = frac[:9]
		}
		n, _ := strconv.Atoi(frac + strings.Repeat("0", 9-len(frac)))
		d += time.Duration(n)
	}
	return Timestamp(d), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
