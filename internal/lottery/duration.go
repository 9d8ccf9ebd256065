package lottery

import (
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses a lottery duration spec: a trailing s, m or h unit
// ("30s", "10m", "1h") or a bare integer interpreted as seconds. Anything
// non-numeric or non-positive is rejected here, at creation time.
func ParseDuration(spec string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	if s == "" {
		return 0, &ValidationError{Field: "duration", Reason: "must not be empty"}
	}

	unit := time.Second
	switch {
	case strings.HasSuffix(s, "s"):
		s = strings.TrimSuffix(s, "s")
	case strings.HasSuffix(s, "m"):
		unit = time.Minute
		s = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "h"):
		unit = time.Hour
		s = strings.TrimSuffix(s, "h")
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ValidationError{Field: "duration", Reason: "examples: 30s, 10m, 1h"}
	}
	if n <= 0 {
		return 0, &ValidationError{Field: "duration", Reason: "must be positive"}
	}

	return time.Duration(n) * unit, nil
}
