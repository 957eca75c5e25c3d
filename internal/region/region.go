// Package region derives the spatial grouping key ("region code") of datasets.
//
// A product resolves to exactly one Resolver variant, chosen in this order:
// an explicit region_code search field, a tiled storage grid, then WRS-style
// path/row search fields. Products with none of these have no region codes.
package region

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geos"

	"github.com/persistorai/explorer/internal/catalog"
)

// Kind identifies how a product's region codes are derived.
type Kind int

const (
	KindNone Kind = iota
	KindField
	KindGrid
	KindScene
)

func (k Kind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindGrid:
		return "grid"
	case KindScene:
		return "scene"
	default:
		return "none"
	}
}

// Resolver computes region codes for one product.
type Resolver struct {
	Kind Kind

	// Field holds the region code field (KindField).
	Field catalog.Field

	// TileSize and Origin describe the tiling grid (KindGrid).
	TileSize [2]float64
	Origin   [2]float64

	// Path and Row are the scene reference fields (KindScene).
	Path catalog.Field
	Row  catalog.Field
}

// ForProduct selects the resolver for p.
func ForProduct(p *catalog.Product) Resolver {
	if p.Metadata != nil {
		if f, ok := p.Metadata.Field("region_code"); ok {
			return Resolver{Kind: KindField, Field: f}
		}
	}

	if p.Grid != nil && p.Grid.TileSize != nil {
		return Resolver{Kind: KindGrid, TileSize: *p.Grid.TileSize, Origin: p.Grid.Origin}
	}

	if path, row, ok := SceneFields(p.Metadata); ok {
		return Resolver{Kind: KindScene, Path: path, Row: row}
	}

	return Resolver{Kind: KindNone}
}

// SceneFields returns the satellite path and row fields of md, if it
// declares both.
func SceneFields(md *catalog.MetadataType) (path, row catalog.Field, ok bool) {
	if md == nil {
		return catalog.Field{}, catalog.Field{}, false
	}

	path, okPath := md.Field("sat_path")
	row, okRow := md.Field("sat_row")

	return path, row, okPath && okRow
}

// Dataset is the input to RegionCode: a decoded metadata document plus its
// footprint, when known.
type Dataset struct {
	Doc       catalog.Doc
	Footprint *geos.Geom
}

// RegionCode returns the dataset's region code. The second result is false
// when the dataset has none.
func (r Resolver) RegionCode(ds Dataset) (string, bool) {
	switch r.Kind {
	case KindField:
		return ds.Doc.String(r.Field.Offset)
	case KindGrid:
		return r.gridCode(ds)
	case KindScene:
		return r.sceneCode(ds)
	default:
		return "", false
	}
}

func (r Resolver) gridCode(ds Dataset) (string, bool) {
	if ds.Footprint == nil || ds.Footprint.IsEmpty() || r.TileSize[0] == 0 || r.TileSize[1] == 0 {
		return "", false
	}

	c := ds.Footprint.Centroid()
	x := int(math.Floor((c.X() - r.Origin[0]) / r.TileSize[0]))
	y := int(math.Floor((c.Y() - r.Origin[1]) / r.TileSize[1]))

	return fmt.Sprintf("%d_%d", x, y), true
}

func (r Resolver) sceneCode(ds Dataset) (string, bool) {
	path, ok := r.Path.Lower(ds.Doc)
	if !ok {
		return "", false
	}

	rowLower, okLower := r.Row.Lower(ds.Doc)
	rowUpper, okUpper := r.Row.Upper(ds.Doc)

	if okLower && okUpper && rowLower == rowUpper {
		return fmt.Sprintf("%d_%d", int(path), int(rowUpper)), true
	}

	return strconv.Itoa(int(path)), true
}

// Expression returns the SQL computing the region code for rows of the
// catalog dataset table, given the document column and the dataset's
// footprint expression. It is "NULL" when the product has no region codes.
func (r Resolver) Expression(doc, footprint string) string {
	switch r.Kind {
	case KindField:
		return r.Field.Expr(doc)
	case KindGrid:
		if footprint == "" {
			return "NULL"
		}

		centroid := "ST_Centroid(" + footprint + ")"

		return fmt.Sprintf("concat(floor((ST_X(%s) - %s) / %s)::integer::text, '_', floor((ST_Y(%s) - %s) / %s)::integer::text)",
			centroid, sqlFloat(r.Origin[0]), sqlFloat(r.TileSize[0]),
			centroid, sqlFloat(r.Origin[1]), sqlFloat(r.TileSize[1]))
	case KindScene:
		path := r.Path.LowerExpr(doc)
		rowLower, rowUpper := r.Row.LowerExpr(doc), r.Row.UpperExpr(doc)

		return fmt.Sprintf("CASE WHEN %s = %s THEN concat(%s::integer::text, '_', %s::integer::text) ELSE %s::integer::text END",
			rowLower, rowUpper, path, rowUpper, path)
	default:
		return "NULL"
	}
}

// Label renders a region code for display.
func (r Resolver) Label(code string) string {
	switch r.Kind {
	case KindGrid:
		x, y, ok := splitPair(code)
		if !ok {
			return code
		}

		return fmt.Sprintf("Tile %+d, %+d", x, y)
	case KindScene:
		if path, row, ok := splitPair(code); ok {
			return fmt.Sprintf("Path %d, Row %d", path, row)
		}

		if path, err := strconv.Atoi(code); err == nil {
			return fmt.Sprintf("Path %d", path)
		}

		return code
	default:
		return code
	}
}

// UnitLabel names the kind of region for display.
func (r Resolver) UnitLabel() string {
	switch r.Kind {
	case KindGrid:
		return "tile"
	case KindScene:
		return "path/row"
	default:
		return "region"
	}
}

func splitPair(code string) (int, int, bool) {
	a, b, ok := strings.Cut(code, "_")
	if !ok {
		return 0, 0, false
	}

	x, errX := strconv.Atoi(a)
	y, errY := strconv.Atoi(b)

	return x, y, errX == nil && errY == nil
}

func sqlFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
