package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/explorer/internal/models"
)

// ProductStore persists per-product refresh state in cubedash.product.
type ProductStore struct {
	Base
}

// NewProductStore creates a new ProductStore.
func NewProductStore(base Base) *ProductStore {
	return &ProductStore{Base: base}
}

const productColumns = `id, name, dataset_count, time_earliest, time_latest,
	source_products, derived_products, fixed_metadata, footprint_srid,
	last_refresh, last_successful_summary`

// Get loads a product summary by name. It returns models.ErrProductNotFound
// when the product was never summarised.
func (s *ProductStore) Get(ctx context.Context, name string) (*models.ProductSummary, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.Pool.QueryRow(ctx, "SELECT "+productColumns+" FROM cubedash.product WHERE name = $1", name)

	p, err := scanProduct(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrProductNotFound
		}

		return nil, fmt.Errorf("loading product summary %s: %w", name, err)
	}

	return p, nil
}

// Names lists the products that have a summary.
func (s *ProductStore) Names(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, "SELECT name FROM cubedash.product ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing summarised products: %w", err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning summarised products: %w", err)
	}

	return names, nil
}

// Persist inserts or updates a product summary. The footprint SRID is only
// written on insert: it is fixed for the life of the product. The stored
// summary's footprint SRID is written back to p.
func (s *ProductStore) Persist(ctx context.Context, p *models.ProductSummary) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	fixed := p.FixedMetadata
	if fixed == nil {
		fixed = map[string]any{}
	}

	fixedJSON, err := json.Marshal(fixed)
	if err != nil {
		return fmt.Errorf("encoding fixed metadata: %w", err)
	}

	sources, derived := p.SourceProducts, p.DerivedProducts
	if sources == nil {
		sources = []string{}
	}

	if derived == nil {
		derived = []string{}
	}

	err = s.Pool.QueryRow(ctx, `INSERT INTO cubedash.product (
			id, name, dataset_count, time_earliest, time_latest,
			source_products, derived_products, fixed_metadata, footprint_srid, last_refresh)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			dataset_count = excluded.dataset_count,
			time_earliest = excluded.time_earliest,
			time_latest = excluded.time_latest,
			source_products = excluded.source_products,
			derived_products = excluded.derived_products,
			fixed_metadata = excluded.fixed_metadata,
			last_refresh = excluded.last_refresh
		RETURNING footprint_srid`,
		p.ID, p.Name, p.DatasetCount, p.TimeEarliest, p.TimeLatest,
		sources, derived, fixedJSON, p.FootprintSRID, p.LastRefreshTime,
	).Scan(&p.FootprintSRID)
	if err != nil {
		return fmt.Errorf("storing product summary %s: %w", p.Name, err)
	}

	s.notify(p.Name, "extent")

	return nil
}

// MarkRefreshCompleted advances the product's last successful summary time
// to at. An earlier at never moves it backwards; the result reports whether
// the stored time changed.
func (s *ProductStore) MarkRefreshCompleted(ctx context.Context, p *models.ProductSummary, at time.Time) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, `UPDATE cubedash.product
		SET last_successful_summary = $2
		WHERE id = $1 AND (last_successful_summary IS NULL OR last_successful_summary < $2)`,
		p.ID, at)
	if err != nil {
		return false, fmt.Errorf("marking %s refreshed: %w", p.Name, err)
	}

	advanced := tag.RowsAffected() > 0
	if advanced {
		s.notify(p.Name, "refresh")
	}

	return advanced, nil
}

func scanProduct(scan func(dest ...any) error) (*models.ProductSummary, error) {
	var (
		p     models.ProductSummary
		fixed []byte
	)

	err := scan(
		&p.ID, &p.Name, &p.DatasetCount, &p.TimeEarliest, &p.TimeLatest,
		&p.SourceProducts, &p.DerivedProducts, &fixed, &p.FootprintSRID,
		&p.LastRefreshTime, &p.LastSuccessfulSummaryTime,
	)
	if err != nil {
		return nil, err
	}

	p.DatasetTypeRef = p.ID

	if err := json.Unmarshal(fixed, &p.FixedMetadata); err != nil {
		return nil, fmt.Errorf("decoding fixed metadata: %w", err)
	}

	return &p, nil
}
