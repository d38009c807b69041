package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var absoluteLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"January 2, 2006 15:04",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2006.01.02 15:04",
	"2006.01.02",
	"2006/01/02",
}

type relativeUnit struct {
	re   *regexp.Regexp
	unit time.Duration
}

var relativeUnits = []relativeUnit{
	{regexp.MustCompile(`(\d+)\s*분\s*전`), time.Minute},
	{regexp.MustCompile(`(\d+)\s*시간\s*전`), time.Hour},
	{regexp.MustCompile(`(\d+)\s*일\s*전`), 24 * time.Hour},
	{regexp.MustCompile(`(\d+)\s*주\s*전`), 7 * 24 * time.Hour},
	{regexp.MustCompile(`(\d+)\s*개월\s*전`), 30 * 24 * time.Hour},
	{regexp.MustCompile(`(\d+)\s*(?:minutes?|mins?)\s*ago`), time.Minute},
	{regexp.MustCompile(`(\d+)\s*(?:hours?|hrs?)\s*ago`), time.Hour},
	{regexp.MustCompile(`(\d+)\s*days?\s*ago`), 24 * time.Hour},
	{regexp.MustCompile(`(\d+)\s*weeks?\s*ago`), 7 * 24 * time.Hour},
	{regexp.MustCompile(`(\d+)\s*months?\s*ago`), 30 * 24 * time.Hour},
}

var justNowRe = regexp.MustCompile(`방금\s*전|just\s*now|a\s*moment\s*ago`)

// ParsePublished parses a publication time as found on news pages: ISO 8601,
// RFC 1123 and a few human layouts, or a relative time in English or Korean
// ("3 hours ago", "3시간 전", "방금 전") measured back from now. Months are
// taken as 30 days.
func ParsePublished(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, ok := parseAbsolute(s); ok {
		return t, true
	}

	lower := strings.ToLower(s)
	for _, ru := range relativeUnits {
		m := ru.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return now.Add(-time.Duration(n) * ru.unit), true
	}
	if justNowRe.MatchString(lower) {
		return now.Add(-time.Minute), true
	}

	return time.Time{}, false
}

func parseAbsolute(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
