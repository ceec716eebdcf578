package activity

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MinGranularity is the narrowest accepted window.
const MinGranularity = time.Second

// ParseGranularity accepts pandas-style frequency aliases ("s", "min", "h",
// "d", with an optional count such as "5min") as well as Go durations ("30s",
// "2m"). Windows narrower than MinGranularity are rejected.
func ParseGranularity(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Minute, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("granularity must be positive: %q", s)
		}
		if d < MinGranularity {
			return 0, fmt.Errorf("granularity %q is below the %s minimum", s, MinGranularity)
		}
		return d, nil
	}
	m := granularityRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unknown granularity %q", s)
	}
	n := 1
	if m[1] != "" {
		if _, err := fmt.Sscanf(m[1], "%d", &n); err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid granularity multiple in %q", s)
		}
	}
	var unit time.Duration
	switch strings.ToLower(m[2]) {
	case "s", "sec", "second", "seconds":
		unit = time.Second
	case "t", "min", "minute", "minutes":
		unit = time.Minute
	case "h", "hour", "hours":
		unit = time.Hour
	case "d", "day", "days":
		unit = 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown granularity unit %q", m[2])
	}
	return time.Duration(n) * unit, nil
}

var granularityRe = regexp.MustCompile(`^(\d*)\s*([A-Za-z]+)$`)
