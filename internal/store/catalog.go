package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/persistorai/explorer/internal/catalog"
	"github.com/persistorai/explorer/internal/crs"
	"github.com/persistorai/explorer/internal/models"
)

// CatalogStore reads product definitions and dataset changes from the
// indexed catalog (the agdc schema). It never writes to the catalog.
type CatalogStore struct {
	Base
}

// NewCatalogStore creates a new CatalogStore.
func NewCatalogStore(base Base) *CatalogStore {
	return &CatalogStore{Base: base}
}

// ProductNames lists every product in the catalog.
func (s *CatalogStore) ProductNames(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, "SELECT name FROM agdc.dataset_type ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing catalog products: %w", err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning catalog products: %w", err)
	}

	return names, nil
}

// Product loads a product definition together with its metadata type.
func (s *CatalogStore) Product(ctx context.Context, name string) (*catalog.Product, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		productID, typeID int
		typeName          string
		productDef        []byte
		typeDef           []byte
	)

	err := s.Pool.QueryRow(ctx, `SELECT dt.id, dt.definition, mt.id, mt.name, mt.definition
		FROM agdc.dataset_type dt
		JOIN agdc.metadata_type mt ON mt.id = dt.metadata_type_ref
		WHERE dt.name = $1`, name).Scan(&productID, &productDef, &typeID, &typeName, &typeDef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownProduct, name)
		}

		return nil, fmt.Errorf("loading product %s: %w", name, err)
	}

	md, err := catalog.ParseMetadataType(typeID, typeName, typeDef)
	if err != nil {
		return nil, err
	}

	return catalog.ParseProduct(productID, name, productDef, md)
}

// DatabaseNow returns the database server's current time.
func (s *CatalogStore) DatabaseNow(ctx context.Context) (time.Time, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var now time.Time
	if err := s.Pool.QueryRow(ctx, "SELECT now()").Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("reading database time: %w", err)
	}

	return now, nil
}

// ChangedMonths returns the calendar months, in time zone tz, of datasets
// added, updated or archived after since. centerTime is the product's
// dataset center time expression.
func (s *CatalogStore) ChangedMonths(
	ctx context.Context, productID int, centerTime string, since time.Time, tz string,
) ([]models.YearMonth, error) {
	ctx, cancel := withAggregateTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT DISTINCT
			extract(year FROM local_time)::integer,
			extract(month FROM local_time)::integer
		FROM (
			SELECT %s AT TIME ZONE $3 AS local_time
			FROM agdc.dataset %s
			WHERE %s.dataset_type_ref = $1 AND %s > $2
		) changed
		WHERE local_time IS NOT NULL
		ORDER BY 1, 2`, centerTime, catalog.DatasetAlias, catalog.DatasetAlias, catalog.ChangedExpr)

	rows, err := s.Pool.Query(ctx, query, productID, since, tz)
	if err != nil {
		return nil, fmt.Errorf("finding changed months: %w", err)
	}

	months, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.YearMonth, error) {
		var ym models.YearMonth
		err := row.Scan(&ym.Year, &ym.Month)

		return ym, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning changed months: %w", err)
	}

	return months, nil
}

// LinkedProducts returns the names of products whose datasets are sources
// of, or derived from, a sample of this product's datasets.
func (s *CatalogStore) LinkedProducts(
	ctx context.Context, productID int, samplePercent float64,
) (sources, derived []string, err error) {
	ctx, cancel := withAggregateTimeout(ctx)
	defer cancel()

	sample := tableSample(samplePercent)

	sources, err = s.linked(ctx, fmt.Sprintf(`SELECT DISTINCT linked_type.name
		FROM agdc.dataset ds %s
		JOIN agdc.dataset_source src ON src.dataset_ref = ds.id
		JOIN agdc.dataset linked ON linked.id = src.source_dataset_ref
		JOIN agdc.dataset_type linked_type ON linked_type.id = linked.dataset_type_ref
		WHERE ds.dataset_type_ref = $1 AND ds.archived IS NULL`, sample), productID)
	if err != nil {
		return nil, nil, fmt.Errorf("finding source products: %w", err)
	}

	derived, err = s.linked(ctx, fmt.Sprintf(`SELECT DISTINCT linked_type.name
		FROM agdc.dataset ds %s
		JOIN agdc.dataset_source src ON src.source_dataset_ref = ds.id
		JOIN agdc.dataset linked ON linked.id = src.dataset_ref
		JOIN agdc.dataset_type linked_type ON linked_type.id = linked.dataset_type_ref
		WHERE ds.dataset_type_ref = $1 AND ds.archived IS NULL`, sample), productID)
	if err != nil {
		return nil, nil, fmt.Errorf("finding derived products: %w", err)
	}

	return sources, derived, nil
}

func (s *CatalogStore) linked(ctx context.Context, query string, productID int) ([]string, error) {
	rows, err := s.Pool.Query(ctx, query, productID)
	if err != nil {
		return nil, err
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	sort.Strings(names)

	return names, nil
}

// FixedMetadata returns the fields whose value is identical across a sample
// of the product's active datasets. fields maps field names to their SQL
// expressions. It returns models.ErrEmptyCatalog when the sample is empty.
func (s *CatalogStore) FixedMetadata(
	ctx context.Context, productID int, fields map[string]string, samplePercent float64,
) (map[string]any, error) {
	ctx, cancel := withAggregateTimeout(ctx)
	defer cancel()

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}

	sort.Strings(names)

	selects := make([]string, 0, len(names)+1)
	selects = append(selects, "count(*)")

	for _, name := range names {
		expr := fields[name]
		selects = append(selects, fmt.Sprintf(
			"CASE WHEN count(DISTINCT %s) = 1 AND count(%s) = count(*) THEN min((%s)::text) END",
			expr, expr, expr))
	}

	query := fmt.Sprintf(`SELECT %s FROM agdc.dataset %s %s
		WHERE %s.dataset_type_ref = $1 AND %s.archived IS NULL`,
		strings.Join(selects, ", "), catalog.DatasetAlias, tableSample(samplePercent),
		catalog.DatasetAlias, catalog.DatasetAlias)

	var count int

	values := make([]*string, len(names))
	dest := make([]any, 0, len(names)+1)
	dest = append(dest, &count)

	for i := range values {
		dest = append(dest, &values[i])
	}

	if err := s.Pool.QueryRow(ctx, query, productID).Scan(dest...); err != nil {
		return nil, fmt.Errorf("sampling fixed metadata: %w", err)
	}

	if count == 0 {
		return nil, models.ErrEmptyCatalog
	}

	out := make(map[string]any)

	for i, name := range names {
		if values[i] != nil {
			out[name] = *values[i]
		}
	}

	return out, nil
}

// CRSCandidates returns the WKT of the given EPSG codes.
func (s *CatalogStore) CRSCandidates(ctx context.Context, codes []int) ([]crs.Candidate, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `SELECT auth_name, auth_srid, srtext
		FROM cubedash.mv_spatial_ref_sys
		WHERE lower(auth_name) = 'epsg' AND auth_srid = ANY($1)
		ORDER BY auth_srid`, codes)
	if err != nil {
		return nil, fmt.Errorf("loading crs candidates: %w", err)
	}

	candidates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (crs.Candidate, error) {
		var c crs.Candidate
		err := row.Scan(&c.Code.Authority, &c.Code.Code, &c.WKT)

		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning crs candidates: %w", err)
	}

	return candidates, nil
}

// SRIDName returns the authority name ("EPSG:4326") of a PostGIS SRID.
func (s *CatalogStore) SRIDName(ctx context.Context, srid int) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var code crs.Code

	err := s.Pool.QueryRow(ctx,
		"SELECT auth_name, auth_srid FROM cubedash.mv_spatial_ref_sys WHERE srid = $1", srid).
		Scan(&code.Authority, &code.Code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("unknown srid %d", srid)
		}

		return "", fmt.Errorf("looking up srid %d: %w", srid, err)
	}

	return code.String(), nil
}

// SRIDFor returns the PostGIS SRID of an authority code.
func (s *CatalogStore) SRIDFor(ctx context.Context, code crs.Code) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var srid int

	err := s.Pool.QueryRow(ctx,
		"SELECT srid FROM cubedash.mv_spatial_ref_sys WHERE lower(auth_name) = lower($1) AND auth_srid = $2",
		code.Authority, code.Code).Scan(&srid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", models.ErrUnknownCRS, code)
		}

		return 0, fmt.Errorf("looking up crs %s: %w", code, err)
	}

	return srid, nil
}

// SampleDataset returns one active dataset of the product, or the dataset
// with the given id when id is non-nil.
func (s *CatalogStore) SampleDataset(ctx context.Context, productID int, id *uuid.UUID) (models.DatasetDocument, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var doc models.DatasetDocument

	err := s.Pool.QueryRow(ctx, `SELECT id, metadata FROM agdc.dataset
		WHERE dataset_type_ref = $1 AND archived IS NULL AND ($2::uuid IS NULL OR id = $2)
		ORDER BY added DESC
		LIMIT 1`, productID, id).Scan(&doc.ID, &doc.Metadata)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return doc, models.ErrEmptyCatalog
		}

		return doc, fmt.Errorf("loading sample dataset: %w", err)
	}

	return doc, nil
}
