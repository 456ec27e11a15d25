package caption

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatTimestamp renders d as H:MM:SS.CC. Centiseconds are truncated and
// negative durations render as zero.
func FormatTimestamp(d time.Duration) string {
	ms := max(0, d.Milliseconds())
	h := ms / 3_600_000
	m := ms % 3_600_000 / 60_000
	s := ms % 60_000 / 1000
	cs := ms % 1000 / 10
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q: want H:MM:SS.CC", s)
	}
	secs, frac, ok := strings.Cut(parts[2], ".")
	if !ok || len(frac) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q: want two centisecond digits", s)
	}

	fields := []struct {
		text string
		unit time.Duration
	}{
		{parts[0], time.Hour},
		{parts[1], time.Minute},
		{secs, time.Second},
		{frac, 10 * time.Millisecond},
	}
	var d time.Duration
	for _, f := range fields {
		n, err := strconv.Atoi(f.text)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q: bad field %q", s, f.text)
		}
		d += time.Duration(n) * f.unit
	}
	return d, nil
}
