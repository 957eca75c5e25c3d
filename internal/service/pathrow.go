package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-geos"

	"github.com/persistorai/explorer/internal/geometry"
)

// PathRowSRID is the SRID of WRS path/row reference shapefiles.
const PathRowSRID = 4326

// pathRowTolerance simplifies synthesised scene footprints, in degrees.
const pathRowTolerance = 0.0001

type pathRow struct {
	path, row int
}

// PathRowIndex holds the tile polygons of WRS path/row reference
// shapefiles, used to synthesise footprints for scene products whose
// documents carry no geometry.
type PathRowIndex struct {
	tiles map[pathRow][]*geos.Geom
}

// LoadPathRowIndex reads polygon shapefiles with PATH and ROW attributes.
// Later files add to, rather than replace, tiles of earlier ones.
func LoadPathRowIndex(log *logrus.Logger, paths []string) (*PathRowIndex, error) {
	idx := &PathRowIndex{tiles: map[pathRow][]*geos.Geom{}}

	for _, path := range paths {
		n, err := idx.load(path)
		if err != nil {
			return nil, err
		}

		log.WithFields(logrus.Fields{
			"file":  path,
			"tiles": n,
		}).Info("path/row tiles loaded")
	}

	return idx, nil
}

func (x *PathRowIndex) load(path string) (int, error) {
	r, err := shp.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening path/row shapefile %s: %w", path, err)
	}
	defer r.Close()

	pathField, rowField := -1, -1

	for i, f := range r.Fields() {
		switch strings.ToUpper(f.String()) {
		case "PATH":
			pathField = i
		case "ROW":
			rowField = i
		}
	}

	if pathField < 0 || rowField < 0 {
		return 0, fmt.Errorf("path/row shapefile %s needs PATH and ROW attributes", path)
	}

	loaded := 0

	for r.Next() {
		n, shape := r.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}

		p, errP := strconv.Atoi(strings.TrimSpace(r.ReadAttribute(n, pathField)))
		row, errR := strconv.Atoi(strings.TrimSpace(r.ReadAttribute(n, rowField)))

		if errP != nil || errR != nil {
			continue
		}

		key := pathRow{path: p, row: row}
		x.tiles[key] = append(x.tiles[key], shapePolygons(poly)...)
		loaded++
	}

	if err := r.Err(); err != nil {
		return loaded, fmt.Errorf("reading path/row shapefile %s: %w", path, err)
	}

	return loaded, nil
}

// shapePolygons converts each ring of a shapefile polygon to a polygon.
func shapePolygons(p *shp.Polygon) []*geos.Geom {
	var out []*geos.Geom

	for i := range p.Parts {
		start := int(p.Parts[i])

		end := len(p.Points)
		if i+1 < len(p.Parts) {
			end = int(p.Parts[i+1])
		}

		if end-start < 3 {
			continue
		}

		ring := make([][]float64, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, []float64{pt.X, pt.Y})
		}

		out = append(out, geometry.Polygon(ring))
	}

	return out
}

// Len returns the number of distinct path/row tiles.
func (x *PathRowIndex) Len() int {
	if x == nil {
		return 0
	}

	return len(x.tiles)
}

// Tiles returns the polygons covering rows rowLower..rowUpper of a path.
func (x *PathRowIndex) Tiles(path, rowLower, rowUpper int) []*geos.Geom {
	if x == nil {
		return nil
	}

	var out []*geos.Geom
	for row := rowLower; row <= rowUpper; row++ {
		out = append(out, x.tiles[pathRow{path: path, row: row}]...)
	}

	return out
}
