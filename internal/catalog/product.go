package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// MetadataType describes where dataset documents keep their standard values.
type MetadataType struct {
	ID           int
	Name         string
	GridSpatial  []string
	Measurements []string
	CreationDT   []string
	Fields       map[string]Field
}

// ParseMetadataType decodes a metadata type definition document.
func ParseMetadataType(id int, name string, definition []byte) (*MetadataType, error) {
	var def Doc
	if err := json.Unmarshal(definition, &def); err != nil {
		return nil, fmt.Errorf("decoding metadata type %q: %w", name, err)
	}

	ds, _ := def.Object([]string{"dataset"})

	mt := &MetadataType{
		ID:           id,
		Name:         name,
		GridSpatial:  ds.Strings([]string{"grid_spatial"}),
		Measurements: ds.Strings([]string{"measurements"}),
		CreationDT:   ds.Strings([]string{"creation_dt"}),
		Fields:       map[string]Field{},
	}

	searchFields, _ := ds.Object([]string{"search_fields"})
	for fieldName, raw := range searchFields {
		spec, ok := asObject(raw)
		if !ok {
			continue
		}

		f := Field{
			Name:       fieldName,
			Offset:     toStrings(spec["offset"]),
			MinOffsets: toOffsets(spec["min_offset"]),
			MaxOffsets: toOffsets(spec["max_offset"]),
		}
		if t, ok := spec["type"].(string); ok {
			f.Type = t
		}

		mt.Fields[fieldName] = f
	}

	return mt, nil
}

// IsSpatial reports whether datasets of this type carry spatial information.
func (m *MetadataType) IsSpatial() bool {
	return len(m.GridSpatial) > 0
}

// IsEO3 reports whether the type expects EO3 documents, which keep their
// measurements at the top level.
func (m *MetadataType) IsEO3() bool {
	return slices.Equal(m.Measurements, []string{"measurements"})
}

// Field returns the named search field.
func (m *MetadataType) Field(name string) (Field, bool) {
	f, ok := m.Fields[name]

	return f, ok
}

// GridSpec is the tiling declared in a product's storage section.
type GridSpec struct {
	CRS        string
	TileSize   *[2]float64
	Origin     [2]float64
	Resolution *[2]float64
}

// MinResolution returns the smallest absolute pixel size, or 0 when unknown.
func (g *GridSpec) MinResolution() float64 {
	if g == nil || g.Resolution == nil {
		return 0
	}

	return math.Min(math.Abs(g.Resolution[0]), math.Abs(g.Resolution[1]))
}

// Product is a catalog product definition together with its metadata type.
type Product struct {
	ID         int
	Name       string
	Metadata   *MetadataType
	Definition Doc
	DefaultCRS string
	Grid       *GridSpec
}

// ParseProduct decodes a product definition document.
func ParseProduct(id int, name string, definition []byte, md *MetadataType) (*Product, error) {
	var def Doc
	if err := json.Unmarshal(definition, &def); err != nil {
		return nil, fmt.Errorf("decoding product %q: %w", name, err)
	}

	p := &Product{
		ID:         id,
		Name:       name,
		Metadata:   md,
		Definition: def,
	}

	if storage, ok := def.Object([]string{"storage"}); ok {
		p.DefaultCRS, _ = storage.String([]string{"crs"})
		p.Grid = parseGridSpec(storage)
	}

	return p, nil
}

func parseGridSpec(storage Doc) *GridSpec {
	g := &GridSpec{}
	g.CRS, _ = storage.String([]string{"crs"})

	if ts, ok := xy(storage, "tile_size"); ok {
		g.TileSize = &ts
	}

	if res, ok := xy(storage, "resolution"); ok {
		g.Resolution = &res
	}

	if origin, ok := xy(storage, "origin"); ok {
		g.Origin = origin
	}

	if g.TileSize == nil && g.Resolution == nil {
		return nil
	}

	return g
}

// xy reads a two-dimensional value keyed by x/y or longitude/latitude.
func xy(d Doc, key string) ([2]float64, bool) {
	for _, axes := range [][2]string{{"x", "y"}, {"longitude", "latitude"}} {
		x, okX := d.Float([]string{key, axes[0]})
		y, okY := d.Float([]string{key, axes[1]})

		if okX && okY {
			return [2]float64{x, y}, true
		}
	}

	return [2]float64{}, false
}
