// Package geometry wraps GEOS for footprint union, repair and simplification.
package geometry

import (
	"fmt"

	"github.com/twpayne/go-geos"
)

// geosContext is shared by every geometry created in this process.
var geosContext = geos.NewContext()

// Context returns the shared GEOS context.
func Context() *geos.Context {
	return geosContext
}

// FromWKB parses a WKB blob. A nil or empty blob yields a nil geometry.
func FromWKB(wkb []byte) (*geos.Geom, error) {
	if len(wkb) == 0 {
		return nil, nil
	}

	g, err := geosContext.NewGeomFromWKB(wkb)
	if err != nil {
		return nil, fmt.Errorf("parsing wkb: %w", err)
	}

	return g, nil
}

// FromWKT parses a WKT string.
func FromWKT(wkt string) (*geos.Geom, error) {
	g, err := geosContext.NewGeomFromWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("parsing wkt: %w", err)
	}

	return g, nil
}

// Polygon builds a polygon from one exterior ring. The ring is closed if needed.
func Polygon(ring [][]float64) *geos.Geom {
	if n := len(ring); n > 0 && (ring[0][0] != ring[n-1][0] || ring[0][1] != ring[n-1][1]) {
		ring = append(ring, ring[0])
	}

	return geosContext.NewPolygon([][][]float64{ring})
}

// Usable reports whether g can take part in a union: present, valid, not
// empty and with a non-zero area.
func Usable(g *geos.Geom) (ok bool) {
	if g == nil {
		return false
	}

	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	return !g.IsEmpty() && g.IsValid() && g.Area() > 0
}

// Repair returns g unchanged when valid, otherwise its zero-width buffer.
// A geometry that cannot be repaired yields nil.
func Repair(g *geos.Geom) (out *geos.Geom) {
	if g == nil {
		return nil
	}

	defer func() {
		if recover() != nil {
			out = nil
		}
	}()

	if g.IsValid() {
		return g
	}

	return g.Buffer(0, 8)
}

// Simplify applies topology-preserving simplification. A zero tolerance or a
// failure returns g unchanged.
func Simplify(g *geos.Geom, tolerance float64) (out *geos.Geom) {
	if g == nil || tolerance <= 0 {
		return g
	}

	defer func() {
		if recover() != nil {
			out = g
		}
	}()

	s := g.TopologyPreserveSimplify(tolerance)
	if s == nil || s.IsEmpty() {
		return g
	}

	return s
}

// Polygons explodes g into its component polygons.
func Polygons(g *geos.Geom) []*geos.Geom {
	if g == nil || g.IsEmpty() {
		return nil
	}

	switch g.TypeID() {
	case geos.TypeIDPolygon:
		return []*geos.Geom{g}
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		var out []*geos.Geom
		for i := range g.NumGeometries() {
			out = append(out, Polygons(g.Geometry(i))...)
		}

		return out
	default:
		return nil
	}
}
