// Package duration parses the cache coordinator's duration literals: a
// plain number of milliseconds, or a human string "<num><unit>" with
// units ms, s, m, h, d, w. Parsing happens once, at the call boundary;
// everywhere else in this module durations are plain time.Duration.
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/o-tero/cachecoordinator/cacheerr"
)

var literalPattern = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*(ms|s|m|h|d|w)$`)

var unitScale = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"w":  7 * 24 * time.Hour,
}

// Literal is anything accepted as a duration option: a time.Duration, a
// plain number of milliseconds (int/int64/float64), or a human string
// like "30s".
type Literal any

// Parse converts a Literal into a time.Duration, returning a ConfigError
// on anything unrecognized.
func Parse(v Literal) (time.Duration, error) {
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case int:
		return time.Duration(t) * time.Millisecond, nil
	case int64:
		return time.Duration(t) * time.Millisecond, nil
	case float64:
		return time.Duration(t * float64(time.Millisecond)), nil
	case string:
		return parseString(t)
	default:
		return 0, cacheerr.NewConfigError("duration", fmt.Errorf("unsupported duration literal type %T", v))
	}
}

func parseString(s string) (time.Duration, error) {
	trimmed := strings.TrimSpace(s)
	m := literalPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, cacheerr.NewConfigError("duration", fmt.Errorf("invalid duration string %q", s))
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, cacheerr.NewConfigError("duration", fmt.Errorf("invalid duration magnitude %q: %w", m[1], err))
	}
	scale, ok := unitScale[strings.ToLower(m[2])]
	if !ok {
		return 0, cacheerr.NewConfigError("duration", fmt.Errorf("unknown duration unit %q", m[2]))
	}
	return time.Duration(amount * float64(scale)), nil
}

// MustParse parses v and panics on error; intended for package-level
// defaults and tests, never for request-time input.
func MustParse(v Literal) time.Duration {
	d, err := Parse(v)
	if err != nil {
		panic(err)
	}
	return d
}
