package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StatementDateLayout is the full-year date format the statements print.
const StatementDateLayout = "02/01/2006"

var ErrMalformedDate = errors.New("malformed statement date")

// ParseStatementDate parses DD/MM/YYYY or DD/MM/YY. A two-digit year is
// resolved to the current century unless that lands in a year after the
// statement's apparent period (ref), in which case the previous century is
// used. A zero ref falls back to the current time.
func ParseStatementDate(token string, ref time.Time) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(token), "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, token)
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, token)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, token)
	}

	yearStr := parts[2]
	var year int
	switch len(yearStr) {
	case 4:
		year, err = strconv.Atoi(yearStr)
	case 2:
		year, err = strconv.Atoi(yearStr)
		if err == nil {
			if ref.IsZero() {
				ref = time.Now()
			}
			year += 2000
			// Year granularity on purpose: an operation a few days past the
			// reference date is still this century, "99" is not.
			if year > ref.Year() {
				year -= 100
			}
		}
	default:
		return time.Time{}, fmt.Errorf("%w: %q has a %d-digit year", ErrMalformedDate, token, len(yearStr))
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, token)
	}

	d := makeDate(year, month, day)
	if d.Day() != day || int(d.Month()) != month || d.Year() != year {
		return time.Time{}, fmt.Errorf("%w: %q is not a calendar date", ErrMalformedDate, token)
	}
	return d, nil
}

func makeDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
