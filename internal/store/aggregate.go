package store

import (
	"context"
	"fmt"
	"time"

	"github.com/persistorai/explorer/internal/models"
)

// AggregateStore runs the grouped extent queries behind leaf period summaries.
// Every query covers the half-open center time window [Begin, End).
type AggregateStore struct {
	Base
}

// NewAggregateStore creates a new AggregateStore.
func NewAggregateStore(base Base) *AggregateStore {
	return &AggregateStore{Base: base}
}

// periodTotalsQuery unions the valid footprints of each source SRID before
// transforming them into the product's footprint SRID ($4), so every
// dataset geometry is transformed at most once per CRS.
const periodTotalsQuery = `WITH src AS (
		SELECT center_time, creation_time, size_bytes, footprint
		FROM cubedash.dataset_spatial
		WHERE dataset_type_ref = $1 AND center_time >= $2 AND center_time < $3
	),
	totals AS (
		SELECT count(*) AS dataset_count,
			max(creation_time) AS newest_creation,
			sum(size_bytes)::bigint AS size_bytes
		FROM src
	),
	per_srid AS (
		SELECT ST_SRID(footprint) AS srid,
			ST_Union(footprint) FILTER (WHERE ST_IsValid(footprint)) AS footprint,
			count(*) FILTER (WHERE ST_IsValid(footprint)) AS footprint_count
		FROM src
		WHERE footprint IS NOT NULL
		GROUP BY ST_SRID(footprint)
	),
	footprints AS (
		SELECT ST_Union(ST_Buffer(ST_Transform(per_srid.footprint, $4::integer), 0)) AS footprint,
			coalesce(sum(per_srid.footprint_count), 0)::integer AS footprint_count,
			array_agg(DISTINCT upper(ref.auth_name) || ':' || ref.auth_srid)
				FILTER (WHERE ref.srid IS NOT NULL) AS crses
		FROM per_srid
		LEFT JOIN cubedash.mv_spatial_ref_sys ref ON ref.srid = per_srid.srid
	)
	SELECT totals.dataset_count, totals.newest_creation, totals.size_bytes,
		ST_AsBinary(footprints.footprint), footprints.footprint_count, footprints.crses
	FROM totals CROSS JOIN footprints`

// PeriodTotals returns the dataset count, sizes, CRSes and the
// unioned footprint (in footprintSRID) of the window.
func (s *AggregateStore) PeriodTotals(
	ctx context.Context, productID, footprintSRID int, window models.TimeRange,
) (models.PeriodTotals, error) {
	ctx, cancel := withAggregateTimeout(ctx)
	defer cancel()

	var t models.PeriodTotals

	err := s.Pool.QueryRow(ctx, periodTotalsQuery, productID, window.Begin, window.End, footprintSRID).Scan(
		&t.DatasetCount,
		&t.NewestDatasetCreationTime,
		&t.SizeBytes,
		&t.FootprintWKB,
		&t.FootprintCount,
		&t.CRSes,
	)
	if err != nil {
		return t, fmt.Errorf("aggregating period totals: %w", err)
	}

	return t, nil
}

// DayCounts counts datasets per calendar day in time zone tz. Keys are UTC
// midnight dates.
func (s *AggregateStore) DayCounts(
	ctx context.Context, productID int, window models.TimeRange, tz string,
) (map[time.Time]int, error) {
	ctx, cancel := withAggregateTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `SELECT (center_time AT TIME ZONE $4)::date AS day, count(*)
		FROM cubedash.dataset_spatial
		WHERE dataset_type_ref = $1 AND center_time >= $2 AND center_time < $3
		GROUP BY 1`, productID, window.Begin, window.End, tz)
	if err != nil {
		return nil, fmt.Errorf("counting datasets per day: %w", err)
	}
	defer rows.Close()

	counts := map[time.Time]int{}

	for rows.Next() {
		var (
			day   time.Time
			count int
		)

		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("scanning day count: %w", err)
		}

		counts[models.DateOf(day)] = count
	}

	return counts, rows.Err()
}

// RegionCounts counts datasets per region code. Datasets without a region
// code are counted under "".
func (s *AggregateStore) RegionCounts(
	ctx context.Context, productID int, window models.TimeRange,
) (map[string]int, error) {
	ctx, cancel := withAggregateTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `SELECT coalesce(region_code, ''), count(*)
		FROM cubedash.dataset_spatial
		WHERE dataset_type_ref = $1 AND center_time >= $2 AND center_time < $3
		GROUP BY 1`, productID, window.Begin, window.End)
	if err != nil {
		return nil, fmt.Errorf("counting datasets per region: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}

	for rows.Next() {
		var (
			code  string
			count int
		)

		if err := rows.Scan(&code, &count); err != nil {
			return nil, fmt.Errorf("scanning region count: %w", err)
		}

		counts[code] = count
	}

	return counts, rows.Err()
}
