package models

import (
	"fmt"
	"time"
)

// PeriodType identifies the calendar granularity of an overview or histogram.
type PeriodType string

const (
	PeriodAll   PeriodType = "all"
	PeriodYear  PeriodType = "year"
	PeriodMonth PeriodType = "month"
	PeriodDay   PeriodType = "day"
)

// Valid reports whether p is a known period type.
func (p PeriodType) Valid() bool {
	switch p {
	case PeriodAll, PeriodYear, PeriodMonth, PeriodDay:
		return true
	}

	return false
}

// Rank orders periods from finest (day) to coarsest (all).
func (p PeriodType) Rank() int {
	switch p {
	case PeriodDay:
		return 0
	case PeriodMonth:
		return 1
	case PeriodYear:
		return 2
	case PeriodAll:
		return 3
	}

	return -1
}

// ParsePeriodType parses a stored period type.
func ParsePeriodType(s string) (PeriodType, error) {
	p := PeriodType(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown period type %q", s)
	}

	return p, nil
}

// allTimeStart is the start day recorded for whole-product overviews.
var allTimeStart = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// FlatPeriod maps a (year, month, day) request to its stored period type and
// start day. Zero values mean "unset".
func FlatPeriod(year, month, day int) (PeriodType, time.Time) {
	switch {
	case year == 0:
		return PeriodAll, allTimeStart
	case month == 0:
		return PeriodYear, time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	case day == 0:
		return PeriodMonth, time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	default:
		return PeriodDay, time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	}
}

// TimeRange is a half-open interval [Begin, End).
type TimeRange struct {
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Begin) && t.Before(r.End)
}

// DateOf truncates t to its calendar date in t's own location, returned as
// UTC midnight. Histogram keys always use this form.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ValidatePeriod checks a (year, month, day) request. Zero means unset, and
// a finer component requires every coarser one.
func ValidatePeriod(year, month, day int) error {
	switch {
	case year == 0 && (month != 0 || day != 0):
		return fmt.Errorf("%w: month or day given without a year", ErrInvalidPeriod)
	case month == 0 && day != 0:
		return fmt.Errorf("%w: day given without a month", ErrInvalidPeriod)
	case year < 0 || year > 9999:
		return fmt.Errorf("%w: year %d out of range", ErrInvalidPeriod, year)
	case month < 0 || month > 12:
		return fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, month)
	}

	if day != 0 {
		last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
		if day < 1 || day > last {
			return fmt.Errorf("%w: day %d out of range for %04d-%02d", ErrInvalidPeriod, day, year, month)
		}
	}

	return nil
}
