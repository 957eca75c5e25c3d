package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/twpayne/go-geos"

	"github.com/persistorai/explorer/internal/catalog"
	"github.com/persistorai/explorer/internal/crs"
	"github.com/persistorai/explorer/internal/geometry"
	"github.com/persistorai/explorer/internal/region"
)

// Inspection is how one dataset's extent columns resolve outside the
// database, for checking a product's configuration.
type Inspection struct {
	Product     string    `json:"product"`
	DatasetID   uuid.UUID `json:"dataset_id"`
	DefaultCRS  string    `json:"default_crs,omitempty"`
	CRS         string    `json:"crs,omitempty"`
	RegionKind  string    `json:"region_kind"`
	RegionCode  string    `json:"region_code,omitempty"`
	RegionLabel string    `json:"region_label,omitempty"`

	Footprint *geos.Geom `json:"-"`
}

// FootprintWKT returns the footprint as WKT, or "" when there is none.
func (i *Inspection) FootprintWKT() string {
	if i.Footprint == nil {
		return ""
	}

	return i.Footprint.ToWKT()
}

// Inspect resolves the CRS, footprint and region code of one dataset of p:
// the given dataset, or an arbitrary active one when id is nil.
func (s *Synchronizer) Inspect(ctx context.Context, p *catalog.Product, id *uuid.UUID) (*Inspection, error) {
	sample, err := s.catalog.SampleDataset(ctx, p.ID, id)
	if err != nil {
		return nil, err
	}

	var doc catalog.Doc
	if err := json.Unmarshal(sample.Metadata, &doc); err != nil {
		return nil, fmt.Errorf("decoding dataset %s: %w", sample.ID, err)
	}

	def, err := s.defaultCode(ctx, p)
	if err != nil {
		return nil, err
	}

	res := region.ForProduct(p)
	out := &Inspection{Product: p.Name, DatasetID: sample.ID, RegionKind: res.Kind.String()}

	if def != nil {
		out.DefaultCRS = def.String()
	}

	if p.Metadata != nil {
		if code, ok := crs.Resolve(documentCRS(p.Metadata, doc), def); ok {
			out.CRS = code.String()
		}

		out.Footprint = documentFootprint(p.Metadata, doc)
	}

	if out.Footprint == nil && res.Kind == region.KindScene {
		out.Footprint = s.sceneFootprint(res.Path, res.Row, doc)
	}

	if code, ok := res.RegionCode(region.Dataset{Doc: doc, Footprint: out.Footprint}); ok {
		out.RegionCode = code
		out.RegionLabel = res.Label(code)
	}

	return out, nil
}

// documentCRS reads the CRS declarations of a dataset document.
func documentCRS(md *catalog.MetadataType, doc catalog.Doc) crs.Reference {
	var ref crs.Reference

	if md.IsEO3() {
		ref.SpatialRef, _ = doc.String([]string{"crs"})

		return ref
	}

	base := md.GridSpatial
	ref.SpatialRef, _ = doc.String(appendOffset(base, "spatial_reference"))
	ref.Datum, _ = doc.String(appendOffset(base, "datum"))

	if zone, ok := doc.Float(appendOffset(base, "zone")); ok {
		ref.Zone = int(zone)
	}

	return ref
}

// documentFootprint builds a dataset's footprint from its stored polygon,
// or from its corner points when it has none.
func documentFootprint(md *catalog.MetadataType, doc catalog.Doc) *geos.Geom {
	if !md.IsSpatial() {
		return nil
	}

	shape := appendOffset(md.GridSpatial, "valid_data")
	if md.IsEO3() {
		shape = []string{"geometry"}
	}

	if coords, ok := doc.Lookup(append(shape, "coordinates")); ok {
		if ring := exteriorRing(coords); len(ring) >= 4 {
			return geometry.Polygon(ring)
		}
	}

	refPoints := appendOffset(md.GridSpatial, "geo_ref_points")
	ring := make([][]float64, 0, 5)

	for _, corner := range []string{"ll", "ul", "ur", "lr", "ll"} {
		x, okX := doc.Float(append(appendOffset(refPoints, corner), "x"))
		y, okY := doc.Float(append(appendOffset(refPoints, corner), "y"))

		if !okX || !okY {
			return nil
		}

		ring = append(ring, []float64{x, y})
	}

	return geometry.Polygon(ring)
}

// exteriorRing reads the first ring of GeoJSON polygon coordinates.
func exteriorRing(coords any) [][]float64 {
	rings, ok := coords.([]any)
	if !ok || len(rings) == 0 {
		return nil
	}

	points, ok := rings[0].([]any)
	if !ok {
		return nil
	}

	ring := make([][]float64, 0, len(points))

	for _, raw := range points {
		pt, ok := raw.([]any)
		if !ok || len(pt) < 2 {
			return nil
		}

		x, okX := pt[0].(float64)
		y, okY := pt[1].(float64)

		if !okX || !okY {
			return nil
		}

		ring = append(ring, []float64{x, y})
	}

	return ring
}

func appendOffset(offset []string, keys ...string) []string {
	out := make([]string, 0, len(offset)+len(keys))
	out = append(out, offset...)

	return append(out, keys...)
}
