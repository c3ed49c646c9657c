package parser

import (
	"strconv"
	"strings"
	"time"
)

var months = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// ParseTimestamp extracts a leading timestamp from line, tolerating both
// ISO-8601 ("2025-01-01 13:00:00" / "2025-01-01T13:00:00") and classic
// syslog ("Dec  4 12:00:01", year assumed current) forms, per spec.md
// §4.4. It returns the zero Time and false when no timestamp is found.
func ParseTimestamp(line string, now time.Time) (time.Time, bool) {
	if line == "" {
		return time.Time{}, false
	}

	if line[0] >= '0' && line[0] <= '9' {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return time.Time{}, false
		}
		if strings.Contains(fields[0], "T") {
			if t, err := time.Parse(time.RFC3339, fields[0]); err == nil {
				return t, true
			}
			if t, err := time.Parse("2006-01-02T15:04:05", fields[0]); err == nil {
				return t, true
			}
		}
		if len(fields) >= 2 {
			combined := fields[0] + " " + fields[1]
			if t, err := time.Parse("2006-01-02 15:04:05", combined); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}

	if len(line) < 15 {
		return time.Time{}, false
	}

	month, ok := months[line[0:3]]
	if !ok {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(strings.TrimSpace(line[4:6]))
	if err != nil {
		return time.Time{}, false
	}

	timeStr := line[7:15]
	parsedClock, err := time.Parse("15:04:05", timeStr)
	if err != nil {
		return time.Time{}, false
	}

	return time.Date(now.Year(), month, day, parsedClock.Hour(), parsedClock.Minute(), parsedClock.Second(), 0, now.Location()), true
}
