package marker

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EncodeInstant renders at as decimal seconds since the epoch with the
// full nanosecond fraction, e.g. "1700000000.000000500".
func EncodeInstant(at time.Time) string {
	return fmt.Sprintf("%d.%09d", at.Unix(), at.Nanosecond())
}

// DecodeInstant parses the output of EncodeInstant. A fraction with fewer
// than nine digits is accepted, so a plain float like "1700000000.25"
// written by other tools still round-trips without float rounding.
func DecodeInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty instant")
	}

	secPart, fracPart, hasFrac := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse seconds %q: %w", secPart, err)
	}

	var nsec int64
	if hasFrac {
		if fracPart == "" || len(fracPart) > 9 {
			return time.Time{}, fmt.Errorf("invalid fraction %q", fracPart)
		}
		for _, r := range fracPart {
			if r < '0' || r > '9' {
				return time.Time{}, fmt.Errorf("invalid fraction %q", fracPart)
			}
		}
		padded := fracPart + strings.Repeat("0", 9-len(fracPart))
		nsec, err = strconv.ParseInt(padded, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse fraction %q: %w", fracPart, err)
		}
	}

	return time.Unix(sec, nsec), nil
}
