package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/persistorai/explorer/internal/geometry"
	"github.com/persistorai/explorer/internal/models"
)

// RegionStore maintains cubedash.region, the per-region dataset counts and
// WGS84 footprints of each product.
type RegionStore struct {
	Base
}

// NewRegionStore creates a new RegionStore.
func NewRegionStore(base Base) *RegionStore {
	return &RegionStore{Base: base}
}

// Rebuild replaces every region row of the product from its extent rows, in
// one transaction. Region footprints are simplified by tolerance degrees.
func (s *RegionStore) Rebuild(ctx context.Context, productID int, tolerance float64) (int, error) {
	ctx, cancel := withAggregateTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("rebuilding regions: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	if _, err := tx.Exec(ctx, "DELETE FROM cubedash.region WHERE dataset_type_ref = $1", productID); err != nil {
		return 0, fmt.Errorf("clearing regions: %w", err)
	}

	tag, err := tx.Exec(ctx, `INSERT INTO cubedash.region (dataset_type_ref, region_code, count, generation_time, footprint)
		SELECT dataset_type_ref, region_code, count(*), now(),
			ST_SimplifyPreserveTopology(
				ST_Union(ST_Buffer(ST_Transform(footprint, 4326), 0)) FILTER (WHERE ST_IsValid(footprint)),
				$2)
		FROM cubedash.dataset_spatial
		WHERE dataset_type_ref = $1 AND region_code IS NOT NULL
		GROUP BY dataset_type_ref, region_code`, productID, tolerance)
	if err != nil {
		return 0, fmt.Errorf("inserting regions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing regions: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// Summaries lists the product's regions, largest first.
func (s *RegionStore) Summaries(ctx context.Context, productID int) ([]models.RegionSummary, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `SELECT p.name, r.region_code, r.count, r.generation_time, ST_AsBinary(r.footprint)
		FROM cubedash.region r
		JOIN cubedash.product p ON p.id = r.dataset_type_ref
		WHERE r.dataset_type_ref = $1
		ORDER BY r.count DESC, r.region_code`, productID)
	if err != nil {
		return nil, fmt.Errorf("listing regions: %w", err)
	}

	regions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.RegionSummary, error) {
		var (
			r   models.RegionSummary
			wkb []byte
		)

		if err := row.Scan(&r.ProductName, &r.RegionCode, &r.Count, &r.GenerationTime, &wkb); err != nil {
			return r, err
		}

		footprint, err := geometry.FromWKB(wkb)
		r.Footprint = footprint

		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning regions: %w", err)
	}

	return regions, nil
}

// FindDatasets returns ids of the product's datasets in a region, newest
// first. A nil window matches every center time.
func (s *RegionStore) FindDatasets(
	ctx context.Context, productID int, regionCode string, window *models.TimeRange, limit, offset int,
) ([]uuid.UUID, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	var begin, end *time.Time
	if window != nil {
		begin, end = &window.Begin, &window.End
	}

	rows, err := s.Pool.Query(ctx, `SELECT id
		FROM cubedash.dataset_spatial
		WHERE dataset_type_ref = $1 AND region_code = $2
		  AND ($3::timestamptz IS NULL OR center_time >= $3)
		  AND ($4::timestamptz IS NULL OR center_time < $4)
		ORDER BY center_time DESC, id
		LIMIT $5 OFFSET $6`, productID, regionCode, begin, end, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("finding region datasets: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scanning region datasets: %w", err)
	}

	return ids, nil
}
