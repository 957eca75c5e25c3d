package summary

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-geos"

	"github.com/persistorai/explorer/internal/geometry"
	"github.com/persistorai/explorer/internal/models"
)

// DefaultFootprintTolerance is the simplify tolerance, in footprint CRS
// units, applied to combined footprints.
const DefaultFootprintTolerance = 1000

// Combiner merges sibling overviews into their parent overview.
type Combiner struct {
	union     *geometry.Resolver
	tolerance float64
	log       *logrus.Logger
}

// NewCombiner creates a Combiner.
func NewCombiner(union *geometry.Resolver, tolerance float64, log *logrus.Logger) *Combiner {
	return &Combiner{union: union, tolerance: tolerance, log: log}
}

// Empty returns the overview of a period with no datasets.
func Empty(product string) *models.TimePeriodOverview {
	return models.NewOverview(product, models.PeriodDay)
}

// Combine merges children. Children without datasets are ignored. Children
// stored in different footprint CRSes are an error.
func (c *Combiner) Combine(children []*models.TimePeriodOverview) (*models.TimePeriodOverview, error) {
	var (
		product string
		kept    []*models.TimePeriodOverview
	)

	for _, child := range children {
		if child == nil {
			continue
		}

		if product == "" {
			product = child.ProductName
		}

		if child.DatasetCount > 0 {
			kept = append(kept, child)
		}
	}

	if len(kept) == 0 {
		return Empty(product), nil
	}

	footprintCRS, err := commonFootprintCRS(kept)
	if err != nil {
		return nil, err
	}

	period := coarsest(kept)
	out := models.NewOverview(product, period)
	out.FootprintCRS = footprintCRS
	out.Year, out.Month, out.Day = commonPeriod(kept)

	crses := map[string]struct{}{}

	var footprints []*geos.Geom

	for _, child := range kept {
		out.DatasetCount += child.DatasetCount

		for k, v := range child.TimelineDatasetCounts {
			out.TimelineDatasetCounts[BucketStart(k, period)] += v
		}

		for k, v := range child.RegionDatasetCounts {
			out.RegionDatasetCounts[k] += v
		}

		for _, crs := range child.CRSes {
			crses[crs] = struct{}{}
		}

		if child.FootprintCount > 0 {
			if geometry.Usable(child.Footprint) {
				footprints = append(footprints, child.Footprint)
				out.FootprintCount += child.FootprintCount
			} else if child.Footprint != nil {
				c.log.WithFields(logrus.Fields{
					"product": product,
					"period":  child.StartDay().Format(time.DateOnly),
				}).Warn("skipping invalid stored footprint")
			}
		}

		out.TimeRange = widen(out.TimeRange, child.TimeRange)
		out.NewestDatasetCreationTime = latest(out.NewestDatasetCreationTime, child.NewestDatasetCreationTime)
		out.ProductRefreshTime = latest(out.ProductRefreshTime, child.ProductRefreshTime)
		out.SummaryGenTime = earliest(out.SummaryGenTime, child.SummaryGenTime)

		if child.SizeBytes != nil {
			total := *child.SizeBytes
			if out.SizeBytes != nil {
				total += *out.SizeBytes
			}
			out.SizeBytes = &total
		}
	}

	out.TimelineDatasetCounts, out.TimelinePeriod = Rebucket(out.TimelineDatasetCounts, period)

	for crs := range crses {
		out.CRSes = append(out.CRSes, crs)
	}
	sort.Strings(out.CRSes)

	footprint, err := c.union.UnionSimplified(footprints, c.tolerance)
	if err != nil {
		return nil, fmt.Errorf("combining footprints of %s: %w", product, err)
	}
	out.Footprint = footprint

	return out, nil
}

func commonFootprintCRS(children []*models.TimePeriodOverview) (string, error) {
	var crs string

	for _, child := range children {
		if child.FootprintCRS == "" {
			continue
		}

		if crs == "" {
			crs = child.FootprintCRS

			continue
		}

		if child.FootprintCRS != crs {
			return "", fmt.Errorf("%w: %s and %s", models.ErrMixedFootprintCRS, crs, child.FootprintCRS)
		}
	}

	return crs, nil
}

func coarsest(children []*models.TimePeriodOverview) models.PeriodType {
	out := models.PeriodDay

	for _, child := range children {
		if child.TimelinePeriod.Valid() && child.TimelinePeriod.Rank() > out.Rank() {
			out = child.TimelinePeriod
		}
	}

	return out
}

// commonPeriod is the most specific calendar period shared by every child.
func commonPeriod(children []*models.TimePeriodOverview) (int, int, int) {
	first := children[0]
	year, month, day := first.Year, first.Month, first.Day

	for _, child := range children[1:] {
		if child.Year != year {
			return 0, 0, 0
		}

		if child.Month != month {
			month, day = 0, 0
		} else if child.Day != day {
			day = 0
		}
	}

	if month == 0 {
		day = 0
	}

	return year, month, day
}

func widen(acc, r *models.TimeRange) *models.TimeRange {
	if r == nil {
		return acc
	}

	if acc == nil {
		out := *r
		return &out
	}

	out := *acc
	if r.Begin.Before(out.Begin) {
		out.Begin = r.Begin
	}

	if r.End.After(out.End) {
		out.End = r.End
	}

	return &out
}

func latest(acc, t *time.Time) *time.Time {
	if t == nil || (acc != nil && !t.After(*acc)) {
		return acc
	}

	v := *t

	return &v
}

func earliest(acc, t *time.Time) *time.Time {
	if t == nil || (acc != nil && !t.Before(*acc)) {
		return acc
	}

	v := *t

	return &v
}
