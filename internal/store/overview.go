package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/explorer/internal/geometry"
	"github.com/persistorai/explorer/internal/metrics"
	"github.com/persistorai/explorer/internal/models"
)

// OverviewStore persists month, year and whole-product overviews in
// cubedash.time_overview. Day overviews are never stored.
type OverviewStore struct {
	Base
}

// NewOverviewStore creates a new OverviewStore.
func NewOverviewStore(base Base) *OverviewStore {
	return &OverviewStore{Base: base}
}

const overviewColumns = `o.dataset_count, o.time_earliest, o.time_latest, o.timeline_period,
	o.timeline_dataset_start_days, o.timeline_dataset_counts,
	o.regions, o.region_dataset_counts,
	ST_AsBinary(o.footprint_geometry), o.footprint_count,
	o.newest_dataset_creation_time, o.crses, o.size_bytes,
	o.product_refresh_time, o.generation_time`

// Get loads the stored overview of one period. It returns
// models.ErrOverviewMissing when the period was never summarised.
func (s *OverviewStore) Get(
	ctx context.Context, productID int, year, month, day int,
) (*models.TimePeriodOverview, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	period, startDay := models.FlatPeriod(year, month, day)

	row := s.Pool.QueryRow(ctx, `SELECT p.name,
			coalesce(upper(ref.auth_name) || ':' || ref.auth_srid, 'EPSG:' || p.footprint_srid),
			`+overviewColumns+`
		FROM cubedash.time_overview o
		JOIN cubedash.product p ON p.id = o.product_ref
		LEFT JOIN cubedash.mv_spatial_ref_sys ref ON ref.srid = p.footprint_srid
		WHERE o.product_ref = $1 AND o.period_type = $2 AND o.start_day = $3`,
		productID, string(period), startDay)

	o, err := scanOverview(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOverviewMissing
		}

		return nil, fmt.Errorf("loading %s overview: %w", period, err)
	}

	o.SetPeriod(year, month, day)

	return o, nil
}

// Put upserts an overview and returns its new generation time. The
// overview's footprint is stored in footprintSRID.
func (s *OverviewStore) Put(
	ctx context.Context, productID, footprintSRID int, o *models.TimePeriodOverview,
) (time.Time, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if o.ProductRefreshTime == nil {
		return time.Time{}, models.ErrMissingRefreshTime
	}

	period := o.PeriodType()
	days := o.TimelineDays()
	dayCounts := make([]int32, len(days))

	for i, d := range days {
		dayCounts[i] = int32(o.TimelineDatasetCounts[d]) //nolint:gosec // counts fit in a postgres integer.
	}

	regions := o.RegionCodes()
	regionCounts := make([]int32, len(regions))

	for i, r := range regions {
		regionCounts[i] = int32(o.RegionDatasetCounts[r]) //nolint:gosec // counts fit in a postgres integer.
	}

	var begin, end *time.Time
	if o.TimeRange != nil {
		begin, end = &o.TimeRange.Begin, &o.TimeRange.End
	}

	crses := o.CRSes
	if crses == nil {
		crses = []string{}
	}

	timelinePeriod := o.TimelinePeriod
	if timelinePeriod == "" || timelinePeriod == models.PeriodAll {
		timelinePeriod = models.PeriodDay
	}

	var generated time.Time

	err := s.Pool.QueryRow(ctx, `INSERT INTO cubedash.time_overview (
			product_ref, period_type, start_day, dataset_count, time_earliest, time_latest,
			timeline_period, timeline_dataset_start_days, timeline_dataset_counts,
			regions, region_dataset_counts, footprint_geometry, footprint_count,
			newest_dataset_creation_time, crses, size_bytes, product_refresh_time, generation_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			ST_SetSRID(ST_GeomFromWKB($12), $13::integer), $14, $15, $16, $17, $18, clock_timestamp())
		ON CONFLICT (product_ref, start_day, period_type) DO UPDATE SET
			dataset_count = excluded.dataset_count,
			time_earliest = excluded.time_earliest,
			time_latest = excluded.time_latest,
			timeline_period = excluded.timeline_period,
			timeline_dataset_start_days = excluded.timeline_dataset_start_days,
			timeline_dataset_counts = excluded.timeline_dataset_counts,
			regions = excluded.regions,
			region_dataset_counts = excluded.region_dataset_counts,
			footprint_geometry = excluded.footprint_geometry,
			footprint_count = excluded.footprint_count,
			newest_dataset_creation_time = excluded.newest_dataset_creation_time,
			crses = excluded.crses,
			size_bytes = excluded.size_bytes,
			product_refresh_time = excluded.product_refresh_time,
			generation_time = excluded.generation_time
		RETURNING generation_time`,
		productID, string(period), o.StartDay(), o.DatasetCount, begin, end,
		string(timelinePeriod), days, dayCounts,
		regions, regionCounts, o.FootprintWKB(), footprintSRID, o.FootprintCount,
		o.NewestDatasetCreationTime, crses, o.SizeBytes, *o.ProductRefreshTime,
	).Scan(&generated)
	if err != nil {
		return time.Time{}, fmt.Errorf("storing %s overview: %w", period, err)
	}

	metrics.OverviewsWritten.WithLabelValues(string(period)).Inc()

	return generated, nil
}

// StaleYears returns the years whose year overview is missing or older than
// one of its stored months.
func (s *OverviewStore) StaleYears(ctx context.Context, productID int) ([]int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `SELECT extract(year FROM m.start_day)::integer AS year
		FROM cubedash.time_overview m
		LEFT JOIN cubedash.time_overview y
			ON y.product_ref = m.product_ref
			AND y.period_type = 'year'
			AND y.start_day = date_trunc('year', m.start_day)::date
		WHERE m.product_ref = $1 AND m.period_type = 'month'
		GROUP BY 1
		HAVING bool_or(y.generation_time IS NULL OR y.generation_time < m.generation_time)
		ORDER BY 1`, productID)
	if err != nil {
		return nil, fmt.Errorf("finding stale years: %w", err)
	}

	years, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("scanning stale years: %w", err)
	}

	return years, nil
}

// AllIsStale reports whether the whole-product overview is missing or older
// than one of the stored years.
func (s *OverviewStore) AllIsStale(ctx context.Context, productID int) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var stale bool

	err := s.Pool.QueryRow(ctx, `SELECT NOT EXISTS (
			SELECT 1 FROM cubedash.time_overview
			WHERE product_ref = $1 AND period_type = 'all'
		) OR EXISTS (
			SELECT 1
			FROM cubedash.time_overview y
			JOIN cubedash.time_overview a
				ON a.product_ref = y.product_ref AND a.period_type = 'all'
			WHERE y.product_ref = $1 AND y.period_type = 'year'
			  AND y.generation_time > a.generation_time
		)`, productID).Scan(&stale)
	if err != nil {
		return false, fmt.Errorf("checking whole-product overview: %w", err)
	}

	return stale, nil
}

// scanOverview scans the product name, footprint CRS and overviewColumns.
func scanOverview(scan func(dest ...any) error) (*models.TimePeriodOverview, error) {
	var (
		name, footprintCRS string
		count              int
		begin, end         *time.Time
		timelinePeriod     string
		days               []time.Time
		dayCounts          []int32
		regions            []string
		regionCounts       []int32
		footprintWKB       []byte
		footprintCount     int
		newest             *time.Time
		crses              []string
		sizeBytes          *int64
		refreshed          time.Time
		generated          time.Time
	)

	err := scan(
		&name, &footprintCRS,
		&count, &begin, &end, &timelinePeriod,
		&days, &dayCounts,
		&regions, &regionCounts,
		&footprintWKB, &footprintCount,
		&newest, &crses, &sizeBytes,
		&refreshed, &generated,
	)
	if err != nil {
		return nil, err
	}

	period, err := models.ParsePeriodType(timelinePeriod)
	if err != nil {
		return nil, err
	}

	o := models.NewOverview(name, period)
	o.DatasetCount = count
	o.FootprintCRS = footprintCRS
	o.FootprintCount = footprintCount
	o.NewestDatasetCreationTime = newest
	o.CRSes = crses
	o.SizeBytes = sizeBytes
	o.ProductRefreshTime = &refreshed
	o.SummaryGenTime = &generated

	if begin != nil && end != nil {
		o.TimeRange = &models.TimeRange{Begin: *begin, End: *end}
	}

	for i, d := range days {
		if i < len(dayCounts) {
			o.TimelineDatasetCounts[models.DateOf(d)] = int(dayCounts[i])
		}
	}

	for i, r := range regions {
		if i < len(regionCounts) {
			o.RegionDatasetCounts[r] = int(regionCounts[i])
		}
	}

	if o.Footprint, err = geometry.FromWKB(footprintWKB); err != nil {
		return nil, fmt.Errorf("decoding stored footprint: %w", err)
	}

	return o, nil
}
