package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/persistorai/explorer/internal/catalog"
	"github.com/persistorai/explorer/internal/domain"
	"github.com/persistorai/explorer/internal/metrics"
	"github.com/persistorai/explorer/internal/models"
	"github.com/persistorai/explorer/internal/summary"
	"github.com/persistorai/explorer/internal/tracing"
)

// DefaultOverlapMargin is how far before the last successful summary an
// incremental scan starts, to catch datasets whose indexing transaction
// committed late.
const DefaultOverlapMargin = 15 * time.Minute

// unsampledFields are search fields never reported as fixed metadata.
var unsampledFields = map[string]bool{
	"id":            true,
	"label":         true,
	"created":       true,
	"creation_time": true,
}

// Stores groups the data stores the Orchestrator depends on.
type Stores struct {
	Catalog    CatalogReader
	Extents    ExtentStore
	Aggregates AggregateStore
	Overviews  OverviewStore
	Products   ProductStore
	Regions    RegionStore
}

// Options configures an Orchestrator.
type Options struct {
	// Location is the calendar time zone days, months and years are grouped in.
	Location *time.Location
	// OverlapMargin is subtracted from the incremental scan position.
	OverlapMargin time.Duration
	// FootprintSRID is assigned to products summarised for the first time.
	FootprintSRID int
	// SampleSize bounds the datasets sampled for fixed metadata and linked products.
	SampleSize int
	// RegionTolerance is the simplify tolerance of region footprints, in degrees.
	RegionTolerance float64
}

// Orchestrator refreshes and serves the summaries of each product.
type Orchestrator struct {
	stores     Stores
	cache      *ProductCache
	sync       *Synchronizer
	summariser *Summariser
	combiner   *summary.Combiner
	opts       Options
	log        *logrus.Logger
	tracer     trace.Tracer
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	stores Stores, cache *ProductCache, sync *Synchronizer, combiner *summary.Combiner, opts Options, log *logrus.Logger,
) *Orchestrator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Orchestrator{
		stores:     stores,
		cache:      cache,
		sync:       sync,
		summariser: NewSummariser(stores.Aggregates, cache, opts.Location, log),
		combiner:   combiner,
		opts:       opts,
		log:        log,
		tracer:     tracing.Tracer(),
	}
}

// Refresh brings the summaries of a product up to date and returns its
// whole-product overview. Configuration problems are reported as
// ResultUnsupported, other failures as ResultError; both also return the error.
func (o *Orchestrator) Refresh(
	ctx context.Context, product string, opts domain.RefreshOptions,
) (models.ResultKind, *models.TimePeriodOverview, error) {
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, o.tracer, "product.refresh",
		trace.WithAttributes(tracing.AttrProduct.String(product)))
	defer span.End()

	kind, overview, err := o.refresh(ctx, product, opts)
	if err != nil {
		kind = models.ResultError
		if models.IsConfigurationError(err) {
			kind = models.ResultUnsupported
		}

		tracing.RecordError(span, err)
		o.log.WithError(err).WithFields(logrus.Fields{
			"product": product,
			"result":  kind.String(),
		}).Warn("product refresh failed")
	}

	span.SetAttributes(tracing.AttrResult.String(kind.String()))
	metrics.RefreshesTotal.WithLabelValues(kind.String()).Inc()
	metrics.RefreshDuration.WithLabelValues(product).Observe(time.Since(start).Seconds())

	return kind, overview, err
}

func (o *Orchestrator) refresh(
	ctx context.Context, name string, opts domain.RefreshOptions,
) (models.ResultKind, *models.TimePeriodOverview, error) {
	info, err := o.cache.Product(ctx, name)
	if err != nil {
		return 0, nil, err
	}

	old, err := o.storedSummary(ctx, name)
	if err != nil {
		return 0, nil, err
	}

	// Captured before scanning, so datasets added during the scan are
	// picked up by the next run.
	refreshTime, err := o.stores.Catalog.DatabaseNow(ctx)
	if err != nil {
		return 0, nil, err
	}

	cutoff, err := o.scanCutoff(ctx, info.Product, old, refreshTime, opts)
	if err != nil {
		return 0, nil, err
	}

	changes, err := o.sync.Sync(ctx, info, cutoff, opts.RecreateExtents || opts.Force)
	if err != nil {
		return 0, nil, err
	}

	p, err := o.refreshProductExtent(ctx, info.Product, old, changes, refreshTime, opts.Force)
	if err != nil {
		return 0, nil, err
	}

	months, err := o.changedMonths(ctx, info.Product, old, p, cutoff, changes)
	if err != nil {
		return 0, nil, err
	}

	for _, ym := range months {
		m, err := o.summariser.Summarise(ctx, p, ym.Year, ym.Month, 0, refreshTime)
		if err != nil {
			return 0, nil, err
		}

		if _, err := o.stores.Overviews.Put(ctx, p.ID, p.FootprintSRID, m); err != nil {
			return 0, nil, err
		}
	}

	years, err := o.stores.Overviews.StaleYears(ctx, p.ID)
	if err != nil {
		return 0, nil, err
	}

	for _, year := range years {
		y, err := o.combineYear(ctx, p, year, refreshTime)
		if err != nil {
			return 0, nil, err
		}

		if _, err := o.stores.Overviews.Put(ctx, p.ID, p.FootprintSRID, y); err != nil {
			return 0, nil, err
		}
	}

	all, allChanged, err := o.refreshAll(ctx, p, refreshTime, opts.Force || len(months) > 0 || len(years) > 0)
	if err != nil {
		return 0, nil, err
	}

	if _, err := o.stores.Products.MarkRefreshCompleted(ctx, p, refreshTime); err != nil {
		return 0, nil, err
	}

	o.cache.Invalidate(name)

	kind := models.ResultUpdated

	switch {
	case old == nil:
		kind = models.ResultCreated
	case changes == 0 && len(months) == 0 && len(years) == 0 && !allChanged:
		kind = models.ResultNoChanges
	}

	o.log.WithFields(logrus.Fields{
		"product":  name,
		"result":   kind.String(),
		"changes":  changes,
		"months":   len(months),
		"years":    len(years),
		"datasets": p.DatasetCount,
	}).Info("product refresh complete")

	return kind, all, nil
}

func (o *Orchestrator) storedSummary(ctx context.Context, name string) (*models.ProductSummary, error) {
	p, err := o.stores.Products.Get(ctx, name)
	if errors.Is(err, models.ErrProductNotFound) {
		return nil, nil
	}

	return p, err
}

// scanCutoff returns the catalog change time after which datasets are
// rescanned, or nil to rescan every dataset. now is the database time.
func (o *Orchestrator) scanCutoff(
	ctx context.Context, p *catalog.Product, old *models.ProductSummary, now time.Time, opts domain.RefreshOptions,
) (*time.Time, error) {
	if old == nil || old.LastSuccessfulSummaryTime == nil || opts.Force || opts.RecreateExtents {
		return nil, nil
	}

	var cutoff time.Time

	if opts.ResetIncrementalPosition {
		newest, err := o.stores.Extents.NewestKnownChange(ctx, p.ID)
		if err != nil {
			return nil, err
		}

		if newest == nil {
			return nil, nil
		}

		cutoff = *newest
	} else {
		cutoff = old.LastSuccessfulSummaryTime.Add(-o.opts.OverlapMargin)
	}

	if window := time.Duration(opts.MinimumScanWindow); window > 0 {
		if widest := now.Add(-window); widest.Before(cutoff) {
			cutoff = widest
		}
	}

	return &cutoff, nil
}

// refreshProductExtent recomputes and stores the product summary when its
// extent rows changed. Otherwise only the stored refresh time moves to
// refreshTime.
func (o *Orchestrator) refreshProductExtent(
	ctx context.Context, info *catalog.Product, old *models.ProductSummary, changes int, refreshTime time.Time, force bool,
) (*models.ProductSummary, error) {
	if old != nil && changes == 0 && !force {
		p := *old
		p.LastRefreshTime = refreshTime

		if err := o.stores.Products.Persist(ctx, &p); err != nil {
			return nil, err
		}

		return &p, nil
	}

	stats, err := o.stores.Extents.Stats(ctx, info.ID)
	if err != nil {
		return nil, err
	}

	p := &models.ProductSummary{
		ID:              info.ID,
		Name:            info.Name,
		DatasetTypeRef:  info.ID,
		DatasetCount:    stats.DatasetCount,
		TimeEarliest:    stats.TimeEarliest,
		TimeLatest:      stats.TimeLatest,
		FootprintSRID:   o.opts.FootprintSRID,
		LastRefreshTime: refreshTime,
	}

	if old != nil {
		p.FootprintSRID = old.FootprintSRID
		p.LastSuccessfulSummaryTime = old.LastSuccessfulSummaryTime
	}

	percent := o.samplePercent(stats.DatasetCount)

	p.SourceProducts, p.DerivedProducts, err = o.stores.Catalog.LinkedProducts(ctx, info.ID, percent)
	if err != nil {
		return nil, err
	}

	p.FixedMetadata, err = o.stores.Catalog.FixedMetadata(ctx, info.ID, sampledFields(info), percent)
	if errors.Is(err, models.ErrEmptyCatalog) {
		p.FixedMetadata, err = map[string]any{}, nil
	}

	if err != nil {
		return nil, err
	}

	if err := o.stores.Products.Persist(ctx, p); err != nil {
		return nil, err
	}

	regions, err := o.stores.Regions.Rebuild(ctx, p.ID, o.opts.RegionTolerance)
	if err != nil {
		return nil, err
	}

	o.log.WithFields(logrus.Fields{
		"product":  p.Name,
		"datasets": p.DatasetCount,
		"regions":  regions,
	}).Debug("product extent updated")

	return p, nil
}

// samplePercent is the share of datasets sampled, as a TABLESAMPLE percentage.
func (o *Orchestrator) samplePercent(count int) float64 {
	if count <= 0 || o.opts.SampleSize <= 0 || o.opts.SampleSize >= count {
		return 100
	}

	return 100 * float64(o.opts.SampleSize) / float64(count)
}

// sampledFields maps the product's scalar search fields to their SQL.
func sampledFields(p *catalog.Product) map[string]string {
	out := map[string]string{}
	if p.Metadata == nil {
		return out
	}

	for name, f := range p.Metadata.Fields {
		if f.IsRange() || unsampledFields[name] {
			continue
		}

		out[name] = f.Expr(catalog.DocColumn)
	}

	return out
}

// changedMonths returns the months to recompute: every month the product
// has spanned for an unbounded scan, otherwise the months of datasets
// changed after the cutoff.
func (o *Orchestrator) changedMonths(
	ctx context.Context, info *catalog.Product, old, p *models.ProductSummary, cutoff *time.Time, changes int,
) ([]models.YearMonth, error) {
	if cutoff == nil {
		return mergeMonths(old.Months(o.opts.Location), p.Months(o.opts.Location)), nil
	}

	if changes == 0 {
		return nil, nil
	}

	center, err := info.Metadata.CenterTimeExpr(catalog.DocColumn)
	if err != nil {
		return nil, &models.ConfigurationError{Product: info.Name, Reason: err.Error()}
	}

	return o.stores.Catalog.ChangedMonths(ctx, info.ID, center, *cutoff, o.opts.Location.String())
}

func mergeMonths(a, b []models.YearMonth) []models.YearMonth {
	seen := make(map[models.YearMonth]bool, len(a)+len(b))
	out := make([]models.YearMonth, 0, len(a)+len(b))

	for _, ym := range append(append([]models.YearMonth(nil), a...), b...) {
		if !seen[ym] {
			seen[ym] = true
			out = append(out, ym)
		}
	}

	return out
}

// combineYear combines the stored months of one year.
func (o *Orchestrator) combineYear(
	ctx context.Context, p *models.ProductSummary, year int, asOf time.Time,
) (*models.TimePeriodOverview, error) {
	children := make([]*models.TimePeriodOverview, 0, 12)

	for month := 1; month <= 12; month++ {
		m, err := o.stores.Overviews.Get(ctx, p.ID, year, month, 0)
		if errors.Is(err, models.ErrOverviewMissing) {
			continue
		}

		if err != nil {
			return nil, err
		}

		children = append(children, m)
	}

	out, err := o.combine(ctx, p, children, asOf)
	if err != nil {
		return nil, err
	}

	out.SetPeriod(year, 0, 0)

	return out, nil
}

// refreshAll recomputes the whole-product overview when asked to or when it
// is missing or older than a year. The second result reports whether it
// was recomputed.
func (o *Orchestrator) refreshAll(
	ctx context.Context, p *models.ProductSummary, asOf time.Time, recompute bool,
) (*models.TimePeriodOverview, bool, error) {
	if !recompute {
		stale, err := o.stores.Overviews.AllIsStale(ctx, p.ID)
		if err != nil {
			return nil, false, err
		}

		if !stale {
			all, err := o.stores.Overviews.Get(ctx, p.ID, 0, 0, 0)
			if err != nil {
				return nil, false, err
			}

			return all, false, nil
		}
	}

	var children []*models.TimePeriodOverview

	for _, year := range p.Years(o.opts.Location) {
		y, err := o.stores.Overviews.Get(ctx, p.ID, year, 0, 0)
		if errors.Is(err, models.ErrOverviewMissing) {
			continue
		}

		if err != nil {
			return nil, false, err
		}

		children = append(children, y)
	}

	all, err := o.combine(ctx, p, children, asOf)
	if err != nil {
		return nil, false, err
	}

	all.SetPeriod(0, 0, 0)

	generated, err := o.stores.Overviews.Put(ctx, p.ID, p.FootprintSRID, all)
	if err != nil {
		return nil, false, err
	}

	all.SummaryGenTime = &generated

	return all, true, nil
}

// combine merges children, filling in what an empty result lacks.
func (o *Orchestrator) combine(
	ctx context.Context, p *models.ProductSummary, children []*models.TimePeriodOverview, asOf time.Time,
) (*models.TimePeriodOverview, error) {
	_, span := tracing.StartSpan(ctx, o.tracer, "summary.combine",
		trace.WithAttributes(tracing.AttrProduct.String(p.Name), tracing.AttrMonthCount.Int(len(children))))
	defer span.End()

	out, err := o.combiner.Combine(children)
	if err != nil {
		tracing.RecordError(span, err)

		return nil, fmt.Errorf("combining %s: %w", p.Name, err)
	}

	out.ProductName = p.Name

	if out.ProductRefreshTime == nil {
		out.ProductRefreshTime = &asOf
	}

	if out.FootprintCRS == "" && p.FootprintSRID != 0 {
		name, err := o.cache.SRIDName(ctx, p.FootprintSRID)
		if err != nil {
			return nil, err
		}

		out.FootprintCRS = name
	}

	return out, nil
}

// Get returns the overview of a period: the whole product when year is 0,
// a year when month is 0, and so on. Days are computed on demand. It
// returns nil when the product or period has never been summarised.
func (o *Orchestrator) Get(ctx context.Context, product string, year, month, day int) (*models.TimePeriodOverview, error) {
	if err := models.ValidatePeriod(year, month, day); err != nil {
		return nil, err
	}

	p, err := o.cache.Summary(ctx, product)
	if err != nil || p == nil {
		return nil, err
	}

	if day != 0 {
		asOf := p.LastRefreshTime
		if p.LastSuccessfulSummaryTime != nil {
			asOf = *p.LastSuccessfulSummaryTime
		}

		return o.summariser.Summarise(ctx, p, year, month, day, asOf)
	}

	overview, err := o.stores.Overviews.Get(ctx, p.ID, year, month, day)
	if errors.Is(err, models.ErrOverviewMissing) {
		return nil, nil
	}

	return overview, err
}

// GetProductSummary returns the stored summary of a product, or nil when
// it has never been summarised.
func (o *Orchestrator) GetProductSummary(ctx context.Context, product string) (*models.ProductSummary, error) {
	return o.cache.Summary(ctx, product)
}

// FindDatasetsForRegion lists dataset ids of a product in one region,
// optionally restricted to a center time window.
func (o *Orchestrator) FindDatasetsForRegion(
	ctx context.Context, product, regionCode string, window *models.TimeRange, limit, offset int,
) ([]uuid.UUID, error) {
	p, err := o.cache.Summary(ctx, product)
	if err != nil {
		return nil, err
	}

	if p == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, product)
	}

	return o.stores.Regions.FindDatasets(ctx, p.ID, regionCode, window, limit, offset)
}

// RegionSummaries lists a product's regions with display labels.
func (o *Orchestrator) RegionSummaries(ctx context.Context, product string) ([]models.RegionSummary, error) {
	p, err := o.cache.Summary(ctx, product)
	if err != nil {
		return nil, err
	}

	if p == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, product)
	}

	info, err := o.cache.Product(ctx, product)
	if err != nil {
		return nil, err
	}

	regions, err := o.stores.Regions.Summaries(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	for i := range regions {
		regions[i].Label = info.Region.Label(regions[i].RegionCode)
	}

	return regions, nil
}

// ProductNames lists the products that have been summarised.
func (o *Orchestrator) ProductNames(ctx context.Context) ([]string, error) {
	return o.stores.Products.Names(ctx)
}
