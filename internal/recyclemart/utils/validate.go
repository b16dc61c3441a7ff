package utils

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// IsWellFormedURL checks that s is an absolute http(s) URL with a host
func IsWellFormedURL(s string) bool {
	u, err := url.ParseRequestURI(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ParseLimit parses a positive page size, falling back to def and capping at max
func ParseLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}

// ParseTimeRange parses RFC 3339 or YYYY-MM-DD bounds. A missing from means the
// last 30 days, a missing to means now. Date-only to bounds include the whole day.
func ParseTimeRange(fromRaw, toRaw string, now time.Time) (time.Time, time.Time, error) {
	from := now.AddDate(0, 0, -30)
	to := now

	if fromRaw != "" {
		t, _, err := parseBound(fromRaw, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be RFC 3339 or YYYY-MM-DD")
		}
		from = t
	}
	if toRaw != "" {
		t, dateOnly, err := parseBound(toRaw, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be RFC 3339 or YYYY-MM-DD")
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		to = t
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, errors.New("from must be before to")
	}
	return from, to, nil
}

func parseBound(raw string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	return t, true, err
}
