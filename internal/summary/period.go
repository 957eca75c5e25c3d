// Package summary combines time period overviews up the day, month, year
// and whole-product hierarchy.
package summary

import (
	"fmt"
	"time"

	"github.com/persistorai/explorer/internal/models"
)

// MaxTimelineBuckets is the largest timeline histogram kept before it is
// re-bucketed to a coarser period.
const MaxTimelineBuckets = 366

// PeriodRange returns the half-open time range of a calendar period in loc.
func PeriodRange(year, month, day int, loc *time.Location) (models.TimeRange, error) {
	switch {
	case year == 0:
		return models.TimeRange{}, fmt.Errorf("a year is required for a period range")
	case month == 0:
		begin := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		return models.TimeRange{Begin: begin, End: begin.AddDate(1, 0, 0)}, nil
	case day == 0:
		begin := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
		return models.TimeRange{Begin: begin, End: begin.AddDate(0, 1, 0)}, nil
	default:
		begin := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
		return models.TimeRange{Begin: begin, End: begin.AddDate(0, 0, 1)}, nil
	}
}

// BucketStart maps a histogram key to the first day of its bucket at period p.
func BucketStart(day time.Time, p models.PeriodType) time.Time {
	switch p {
	case models.PeriodMonth:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	case models.PeriodYear, models.PeriodAll:
		return time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return models.DateOf(day)
	}
}

// Regroup sums counts into buckets of period p.
func Regroup(counts map[time.Time]int, p models.PeriodType) map[time.Time]int {
	out := make(map[time.Time]int, len(counts))
	for k, v := range counts {
		out[BucketStart(k, p)] += v
	}

	return out
}

// coarser returns the next coarser histogram period.
func coarser(p models.PeriodType) models.PeriodType {
	switch p {
	case models.PeriodDay:
		return models.PeriodMonth
	default:
		return models.PeriodYear
	}
}

// Rebucket coarsens a histogram until it has at most MaxTimelineBuckets keys
// or is already yearly. Applying it twice gives the same result as once.
func Rebucket(counts map[time.Time]int, p models.PeriodType) (map[time.Time]int, models.PeriodType) {
	for len(counts) > MaxTimelineBuckets && p != models.PeriodYear {
		p = coarser(p)
		counts = Regroup(counts, p)
	}

	return counts, p
}

// SeedTimeline returns a day histogram with a zero for every calendar day of r.
func SeedTimeline(r models.TimeRange) map[time.Time]int {
	counts := map[time.Time]int{}

	for d := r.Begin; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		counts[models.DateOf(d)] = 0
	}

	return counts
}
