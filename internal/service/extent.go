package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-geos"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/persistorai/explorer/internal/catalog"
	"github.com/persistorai/explorer/internal/crs"
	"github.com/persistorai/explorer/internal/geometry"
	"github.com/persistorai/explorer/internal/metrics"
	"github.com/persistorai/explorer/internal/models"
	"github.com/persistorai/explorer/internal/region"
	"github.com/persistorai/explorer/internal/tracing"
)

// Synchronizer reconciles the extent table with the catalog.
type Synchronizer struct {
	catalog        CatalogReader
	extents        ExtentStore
	pathRows       *PathRowIndex
	union          *geometry.Resolver
	inferenceCodes []int
	log            *logrus.Logger
	tracer         trace.Tracer

	mu       sync.Mutex
	inferrer *crs.Inferrer
}

// NewSynchronizer creates a Synchronizer. pathRows may be nil.
func NewSynchronizer(
	cat CatalogReader, extents ExtentStore, pathRows *PathRowIndex,
	union *geometry.Resolver, inferenceCodes []int, log *logrus.Logger,
) *Synchronizer {
	return &Synchronizer{
		catalog:        cat,
		extents:        extents,
		pathRows:       pathRows,
		union:          union,
		inferenceCodes: inferenceCodes,
		log:            log,
		tracer:         tracing.Tracer(),
	}
}

// Sync brings the extent rows of a product up to date with datasets changed after
// changedSince (every dataset, when nil). A full rescan also drops rows of
// datasets that vanished from the catalog without being archived. It returns
// the number of rows deleted, inserted or updated.
func (s *Synchronizer) Sync(ctx context.Context, info *ProductInfo, changedSince *time.Time, fullRescan bool) (int, error) {
	p := info.Product

	ctx, span := tracing.StartSpan(ctx, s.tracer, "extent.sync",
		trace.WithAttributes(tracing.AttrProduct.String(p.Name), attribute.Bool("explorer.full_rescan", fullRescan)))
	defer span.End()

	n, err := s.sync(ctx, p, info.Region, changedSince, fullRescan)
	if err != nil {
		tracing.RecordError(span, err)

		return 0, err
	}

	span.SetAttributes(tracing.AttrChangeCount.Int(n))

	return n, nil
}

func (s *Synchronizer) sync(
	ctx context.Context, p *catalog.Product, res region.Resolver, changedSince *time.Time, fullRescan bool,
) (int, error) {
	if fullRescan {
		changedSince = nil
	}

	cols, err := s.columns(ctx, p, res)
	if err != nil {
		return 0, err
	}

	deleted, err := s.extents.DeleteArchived(ctx, p.ID, changedSince)
	if err != nil {
		return 0, err
	}

	if fullRescan {
		orphans, err := s.extents.DeleteOrphans(ctx, p.ID)
		if err != nil {
			return 0, err
		}

		deleted += orphans
	}

	upserted, err := s.extents.UpsertExtents(ctx, p.ID, cols, changedSince)
	if err != nil {
		return 0, err
	}

	synthesised := 0
	if path, row, ok := region.SceneFields(p.Metadata); ok && cols.Footprint == "" && upserted > 0 {
		synthesised, err = s.synthesiseFootprints(ctx, p, path, row)
		if err != nil {
			return 0, err
		}
	}

	changes := deleted + upserted
	metrics.ExtentChanges.WithLabelValues(p.Name).Add(float64(changes))

	s.log.WithFields(logrus.Fields{
		"product":     p.Name,
		"deleted":     deleted,
		"upserted":    upserted,
		"synthesised": synthesised,
		"full_rescan": fullRescan,
	}).Info("spatial update")

	return changes, nil
}

// columns builds the SQL that extracts each extent column from a catalog
// dataset row.
func (s *Synchronizer) columns(ctx context.Context, p *catalog.Product, res region.Resolver) (models.ExtentColumns, error) {
	md := p.Metadata
	if md == nil {
		return models.ExtentColumns{}, &models.ConfigurationError{Product: p.Name, Reason: "no metadata type"}
	}

	center, err := md.CenterTimeExpr(catalog.DocColumn)
	if err != nil {
		return models.ExtentColumns{}, &models.ConfigurationError{Product: p.Name, Reason: err.Error()}
	}

	cols := models.ExtentColumns{
		CenterTime:   center,
		CreationTime: md.CreationTimeExpr(catalog.DocColumn),
		SizeBytes:    md.SizeBytesExpr(catalog.DocColumn),
	}

	footprint := md.FootprintExpr(catalog.DocColumn)
	if footprint != "" {
		defaultSRID, err := s.defaultSRID(ctx, p)
		if err != nil {
			return models.ExtentColumns{}, err
		}

		srid := crs.SRIDExpression(
			md.SpatialRefExpr(catalog.DocColumn), md.DatumExpr(catalog.DocColumn), md.ZoneExpr(catalog.DocColumn), defaultSRID)
		footprint = fmt.Sprintf("ST_SetSRID(%s, %s)", footprint, srid)

		if tolerance := p.Grid.MinResolution() / 4; tolerance > 0 {
			cols.Footprint = fmt.Sprintf("ST_SimplifyPreserveTopology(%s, %s)",
				footprint, strconv.FormatFloat(tolerance, 'f', -1, 64))
		} else {
			cols.Footprint = footprint
		}
	}

	regionFootprint, err := s.gridFootprint(ctx, p, res, footprint)
	if err != nil {
		return models.ExtentColumns{}, err
	}

	cols.RegionCode = res.Expression(catalog.DocColumn, regionFootprint)

	return cols, nil
}

// gridFootprint reprojects the footprint into the product's grid CRS, so
// tile indices are computed in grid units.
func (s *Synchronizer) gridFootprint(ctx context.Context, p *catalog.Product, res region.Resolver, footprint string) (string, error) {
	if res.Kind != region.KindGrid || footprint == "" || p.Grid == nil || p.Grid.CRS == "" {
		return footprint, nil
	}

	code, ok := crs.ParseShorthand(p.Grid.CRS)
	if !ok {
		code, ok = crs.ParseWKTAuthority(p.Grid.CRS)
	}

	if !ok {
		return footprint, nil
	}

	srid, err := s.catalog.SRIDFor(ctx, code)
	if err != nil {
		return "", s.crsError(p, err)
	}

	return fmt.Sprintf("ST_Transform(%s, %d)", footprint, srid), nil
}

// defaultCode resolves the product's default CRS, inferring an authority
// code from WKT when needed. It returns nil when the product has none.
func (s *Synchronizer) defaultCode(ctx context.Context, p *catalog.Product) (*crs.Code, error) {
	var inf *crs.Inferrer

	if p.DefaultCRS != "" && !crs.IsAuthorityForm(p.DefaultCRS) {
		var err error

		inf, err = s.loadInferrer(ctx)
		if err != nil {
			return nil, err
		}
	}

	return crs.DefaultCode(p.Name, p.DefaultCRS, inf)
}

// defaultSRID returns the PostGIS SRID of the product's default CRS, or 0.
func (s *Synchronizer) defaultSRID(ctx context.Context, p *catalog.Product) (int, error) {
	code, err := s.defaultCode(ctx, p)
	if err != nil || code == nil {
		return 0, err
	}

	srid, err := s.catalog.SRIDFor(ctx, *code)
	if err != nil {
		return 0, s.crsError(p, err)
	}

	return srid, nil
}

func (s *Synchronizer) crsError(p *catalog.Product, err error) error {
	if errors.Is(err, models.ErrUnknownCRS) {
		return &models.ConfigurationError{Product: p.Name, Reason: err.Error()}
	}

	return err
}

func (s *Synchronizer) loadInferrer(ctx context.Context) (*crs.Inferrer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inferrer != nil {
		return s.inferrer, nil
	}

	candidates, err := s.catalog.CRSCandidates(ctx, s.inferenceCodes)
	if err != nil {
		return nil, err
	}

	s.inferrer = crs.NewInferrer(candidates)

	return s.inferrer, nil
}

// synthesiseFootprints fills in missing footprints of datasets from the
// path/row reference tiles.
func (s *Synchronizer) synthesiseFootprints(ctx context.Context, p *catalog.Product, path, row catalog.Field) (int, error) {
	if s.pathRows.Len() == 0 {
		return 0, nil
	}

	docs, err := s.extents.MissingFootprints(ctx, p.ID)
	if err != nil {
		return 0, err
	}

	updates := make([]models.FootprintUpdate, 0, len(docs))

	for _, d := range docs {
		var doc catalog.Doc
		if err := json.Unmarshal(d.Metadata, &doc); err != nil {
			s.log.WithError(err).WithField("dataset", d.ID).Warn("skipping undecodable dataset document")

			continue
		}

		fp := s.sceneFootprint(path, row, doc)
		if fp == nil {
			continue
		}

		updates = append(updates, models.FootprintUpdate{ID: d.ID, WKB: fp.ToWKB(), SRID: PathRowSRID})
	}

	return s.extents.SetFootprints(ctx, updates)
}

// sceneFootprint is the simplified union of the path/row tiles a scene covers.
func (s *Synchronizer) sceneFootprint(pathField, rowField catalog.Field, doc catalog.Doc) *geos.Geom {
	path, okPath := pathField.Lower(doc)
	rowLower, okLower := rowField.Lower(doc)
	rowUpper, okUpper := rowField.Upper(doc)

	if !okPath || !okLower || !okUpper {
		return nil
	}

	tiles := s.pathRows.Tiles(int(path), int(rowLower), int(rowUpper))
	if len(tiles) == 0 {
		return nil
	}

	fp, err := s.union.UnionSimplified(tiles, pathRowTolerance)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"path": int(path),
			"rows": fmt.Sprintf("%d-%d", int(rowLower), int(rowUpper)),
		}).Warn("path/row tile union failed")

		return nil
	}

	return fp
}
