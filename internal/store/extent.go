package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/explorer/internal/catalog"
	"github.com/persistorai/explorer/internal/models"
)

// ExtentStore maintains cubedash.dataset_spatial, the per-dataset extent
// table that every summary is computed from.
type ExtentStore struct {
	Base
}

// NewExtentStore creates a new ExtentStore.
func NewExtentStore(base Base) *ExtentStore {
	return &ExtentStore{Base: base}
}

// DeleteArchived removes extent rows of datasets archived after since (any
// time, when since is nil).
func (s *ExtentStore) DeleteArchived(ctx context.Context, productID int, since *time.Time) (int, error) {
	ctx, cancel := withAggregateTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, `DELETE FROM cubedash.dataset_spatial spatial
		USING agdc.dataset ds
		WHERE spatial.id = ds.id
		  AND ds.dataset_type_ref = $1
		  AND ds.archived IS NOT NULL
		  AND ($2::timestamptz IS NULL OR ds.archived > $2)`, productID, since)
	if err != nil {
		return 0, fmt.Errorf("deleting archived extents: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// DeleteOrphans removes extent rows whose dataset is no longer an active
// dataset of the product, such as datasets deleted from the catalog directly.
func (s *ExtentStore) DeleteOrphans(ctx context.Context, productID int) (int, error) {
	ctx, cancel := withAggregateTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, `DELETE FROM cubedash.dataset_spatial spatial
		WHERE spatial.dataset_type_ref = $1
		  AND NOT EXISTS (
			SELECT 1 FROM agdc.dataset ds
			WHERE ds.id = spatial.id AND ds.dataset_type_ref = $1 AND ds.archived IS NULL
		  )`, productID)
	if err != nil {
		return 0, fmt.Errorf("deleting orphaned extents: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// UpsertExtents inserts or replaces the extent rows of the product's active
// datasets changed after since (all of them, when since is nil). Rows whose
// values are unchanged are left alone and not counted.
func (s *ExtentStore) UpsertExtents(
	ctx context.Context, productID int, cols models.ExtentColumns, since *time.Time,
) (int, error) {
	ctx, cancel := withAggregateTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO cubedash.dataset_spatial
			(id, dataset_type_ref, center_time, creation_time, region_code, size_bytes, footprint)
		SELECT %[1]s.id, %[1]s.dataset_type_ref, %[2]s, %[3]s, %[4]s, %[5]s, %[6]s
		FROM agdc.dataset %[1]s
		WHERE %[1]s.dataset_type_ref = $1
		  AND %[1]s.archived IS NULL
		  AND %[2]s IS NOT NULL
		  AND ($2::timestamptz IS NULL OR %[7]s > $2)
		ON CONFLICT (id) DO UPDATE SET
			center_time = excluded.center_time,
			creation_time = excluded.creation_time,
			region_code = excluded.region_code,
			size_bytes = excluded.size_bytes,
			footprint = excluded.footprint
		WHERE (dataset_spatial.center_time, dataset_spatial.creation_time, dataset_spatial.region_code,
				dataset_spatial.size_bytes, ST_AsBinary(dataset_spatial.footprint))
			IS DISTINCT FROM
			(excluded.center_time, excluded.creation_time, excluded.region_code,
				excluded.size_bytes, ST_AsBinary(excluded.footprint))`,
		catalog.DatasetAlias,
		cols.CenterTime,
		orNull(cols.CreationTime),
		orNull(cols.RegionCode),
		orNull(cols.SizeBytes),
		orNull(cols.Footprint),
		catalog.ChangedExpr,
	)

	tag, err := s.Pool.Exec(ctx, query, productID, since)
	if err != nil {
		return 0, fmt.Errorf("upserting extents: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// MissingFootprints returns the documents of extent rows without a footprint.
func (s *ExtentStore) MissingFootprints(ctx context.Context, productID int) ([]models.DatasetDocument, error) {
	ctx, cancel := withAggregateTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `SELECT ds.id, ds.metadata
		FROM cubedash.dataset_spatial spatial
		JOIN agdc.dataset ds ON ds.id = spatial.id
		WHERE spatial.dataset_type_ref = $1 AND spatial.footprint IS NULL`, productID)
	if err != nil {
		return nil, fmt.Errorf("listing extents without footprints: %w", err)
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DatasetDocument, error) {
		var d models.DatasetDocument
		err := row.Scan(&d.ID, &d.Metadata)

		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning extents without footprints: %w", err)
	}

	return docs, nil
}

// SetFootprints writes synthesised footprints in one batch.
func (s *ExtentStore) SetFootprints(ctx context.Context, updates []models.FootprintUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	ctx, cancel := withAggregateTimeout(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`UPDATE cubedash.dataset_spatial
			SET footprint = ST_SetSRID(ST_GeomFromWKB($2), $3)
			WHERE id = $1`, u.ID, u.WKB, u.SRID)
	}

	results := s.Pool.SendBatch(ctx, batch)
	defer results.Close()

	updated := 0

	for range updates {
		tag, err := results.Exec()
		if err != nil {
			return updated, fmt.Errorf("setting footprint: %w", err)
		}

		updated += int(tag.RowsAffected())
	}

	return updated, nil
}

// Stats returns the dataset count and center time range of the product.
func (s *ExtentStore) Stats(ctx context.Context, productID int) (models.ExtentStats, error) {
	ctx, cancel := withAggregateTimeout(ctx)
	defer cancel()

	var st models.ExtentStats

	err := s.Pool.QueryRow(ctx, `SELECT count(*), min(center_time), max(center_time)
		FROM cubedash.dataset_spatial WHERE dataset_type_ref = $1`, productID).
		Scan(&st.DatasetCount, &st.TimeEarliest, &st.TimeLatest)
	if err != nil {
		return st, fmt.Errorf("reading extent stats: %w", err)
	}

	return st, nil
}

// NewestKnownChange returns the latest catalog change time among datasets
// already in the extent table, or nil when the product has none.
func (s *ExtentStore) NewestKnownChange(ctx context.Context, productID int) (*time.Time, error) {
	ctx, cancel := withAggregateTimeout(ctx)
	defer cancel()

	var newest *time.Time

	err := s.Pool.QueryRow(ctx, fmt.Sprintf(`SELECT max(%s)
		FROM agdc.dataset %s
		JOIN cubedash.dataset_spatial spatial ON spatial.id = %s.id
		WHERE spatial.dataset_type_ref = $1`, catalog.ChangedExpr, catalog.DatasetAlias, catalog.DatasetAlias),
		productID).Scan(&newest)
	if err != nil {
		return nil, fmt.Errorf("reading newest known change: %w", err)
	}

	return newest, nil
}
