package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/persistorai/explorer/internal/geometry"
	"github.com/persistorai/explorer/internal/models"
	"github.com/persistorai/explorer/internal/summary"
	"github.com/persistorai/explorer/internal/tracing"
)

// SRIDNamer names PostGIS SRIDs.
type SRIDNamer interface {
	SRIDName(ctx context.Context, srid int) (string, error)
}

// Summariser computes one leaf period overview directly from the extent table.
type Summariser struct {
	aggregates AggregateStore
	names      SRIDNamer
	loc        *time.Location
	log        *logrus.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewSummariser creates a Summariser grouping days in loc.
func NewSummariser(aggregates AggregateStore, names SRIDNamer, loc *time.Location, log *logrus.Logger) *Summariser {
	return &Summariser{
		aggregates: aggregates,
		names:      names,
		loc:        loc,
		log:        log,
		tracer:     tracing.Tracer(),
		now:        time.Now,
	}
}

// Summarise computes the overview of one month or day of p as of the
// catalog time asOf. An empty period still yields an overview, with a zero
// count for every day.
func (s *Summariser) Summarise(
	ctx context.Context, p *models.ProductSummary, year, month, day int, asOf time.Time,
) (*models.TimePeriodOverview, error) {
	if asOf.IsZero() {
		return nil, models.ErrMissingRefreshTime
	}

	if month == 0 {
		return nil, fmt.Errorf("%w: only months and days are summarised directly", models.ErrInvalidPeriod)
	}

	window, err := summary.PeriodRange(year, month, day, s.loc)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, s.tracer, "summary.aggregate",
		trace.WithAttributes(tracing.AttrProduct.String(p.Name), tracing.AttrPeriod.String(window.Begin.Format(time.DateOnly))))
	defer span.End()

	o, err := s.summarise(ctx, p, window)
	if err != nil {
		tracing.RecordError(span, err)

		return nil, err
	}

	o.SetPeriod(year, month, day)
	o.ProductRefreshTime = &asOf

	return o, nil
}

func (s *Summariser) summarise(ctx context.Context, p *models.ProductSummary, window models.TimeRange) (*models.TimePeriodOverview, error) {
	totals, err := s.aggregates.PeriodTotals(ctx, p.ID, p.FootprintSRID, window)
	if err != nil {
		return nil, err
	}

	days, err := s.aggregates.DayCounts(ctx, p.ID, window, s.loc.String())
	if err != nil {
		return nil, err
	}

	regions, err := s.aggregates.RegionCounts(ctx, p.ID, window)
	if err != nil {
		return nil, err
	}

	o := models.NewOverview(p.Name, models.PeriodDay)
	o.DatasetCount = totals.DatasetCount
	o.RegionDatasetCounts = regions
	o.NewestDatasetCreationTime = totals.NewestDatasetCreationTime
	o.SizeBytes = totals.SizeBytes
	o.CRSes = totals.CRSes
	o.TimeRange = &window

	timeline := summary.SeedTimeline(window)
	for d, n := range days {
		timeline[models.DateOf(d)] += n
	}

	o.TimelineDatasetCounts, o.TimelinePeriod = summary.Rebucket(timeline, models.PeriodDay)

	if o.RegionDatasetCounts == nil {
		o.RegionDatasetCounts = map[string]int{}
	}

	if len(totals.FootprintWKB) > 0 {
		fp, err := geometry.FromWKB(totals.FootprintWKB)
		if err != nil {
			return nil, fmt.Errorf("decoding period footprint: %w", err)
		}

		o.Footprint = fp
		o.FootprintCount = totals.FootprintCount
	}

	if p.FootprintSRID != 0 {
		name, err := s.names.SRIDName(ctx, p.FootprintSRID)
		if err != nil {
			return nil, err
		}

		o.FootprintCRS = name
	}

	now := s.now()
	o.SummaryGenTime = &now

	s.log.WithFields(logrus.Fields{
		"product":  p.Name,
		"period":   window.Begin.Format(time.DateOnly),
		"datasets": o.DatasetCount,
	}).Debug("period summarised")

	return o, nil
}
