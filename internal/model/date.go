package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParseDate parses a date string in any of the common layouts
// (YYYY-MM-DD, YYYY-MM-DD HH:MM:SS, RFC3339, MM/DD/YYYY, ...).
// Values without a zone are read as UTC so date keys are stable across hosts.
// Values with an offset keep their wall clock; a key never moves to another day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q: %w", s, err)
	}
	return t, nil
}
