package catalog

import (
	"fmt"
	"strings"
)

// DatasetAlias is the table alias used for the catalog dataset table in
// every generated expression.
const DatasetAlias = "ds"

// DocColumn is the jsonb metadata document column of the dataset table.
const DocColumn = DatasetAlias + ".metadata"

// ChangedExpr is the latest time a catalog dataset was added, updated or archived.
const ChangedExpr = "greatest(" + DatasetAlias + ".added, " + DatasetAlias + ".updated, " + DatasetAlias + ".archived)"

var cornerKeys = []string{"ll", "ul", "ur", "lr", "ll"}

// FootprintExpr builds the dataset footprint without an SRID. It returns ""
// for non-spatial metadata types.
func (m *MetadataType) FootprintExpr(doc string) string {
	if !m.IsSpatial() {
		return ""
	}

	shape := append(offsetCopy(m.GridSpatial), "valid_data")
	if m.IsEO3() {
		shape = []string{"geometry"}
	}

	return fmt.Sprintf("CASE WHEN %s IS NOT NULL THEN ST_GeomFromGeoJSON(%s) ELSE %s END",
		JSONAt(doc, shape), TextAt(doc, shape), m.boundsPolygon(doc))
}

func (m *MetadataType) boundsPolygon(doc string) string {
	refPoints := append(offsetCopy(m.GridSpatial), "geo_ref_points")

	points := make([]string, len(cornerKeys))
	for i, key := range cornerKeys {
		corner := append(offsetCopy(refPoints), key)
		points[i] = fmt.Sprintf("ST_MakePoint(%s::double precision, %s::double precision)",
			TextAt(doc, append(offsetCopy(corner), "x")), TextAt(doc, append(offsetCopy(corner), "y")))
	}

	return "ST_MakePolygon(ST_MakeLine(ARRAY[" + strings.Join(points, ", ") + "]))"
}

// SpatialRefExpr returns the text of the dataset's declared CRS.
func (m *MetadataType) SpatialRefExpr(doc string) string {
	if m.IsEO3() {
		return TextAt(doc, []string{"crs"})
	}

	return TextAt(doc, append(offsetCopy(m.GridSpatial), "spatial_reference"))
}

// DatumExpr returns the legacy datum name of the dataset.
func (m *MetadataType) DatumExpr(doc string) string {
	return TextAt(doc, append(offsetCopy(m.GridSpatial), "datum"))
}

// ZoneExpr returns the legacy projection zone of the dataset.
func (m *MetadataType) ZoneExpr(doc string) string {
	return TextAt(doc, append(offsetCopy(m.GridSpatial), "zone"))
}

// CenterTimeExpr is the midpoint of the dataset's time range.
func (m *MetadataType) CenterTimeExpr(doc string) (string, error) {
	f, ok := m.Field("time")
	if !ok {
		return "", fmt.Errorf("metadata type %q has no time field", m.Name)
	}

	lower, upper := f.LowerExpr(doc), f.UpperExpr(doc)

	return fmt.Sprintf("(%s + (%s - %s) / 2)", lower, upper, lower), nil
}

// CreationTimeExpr is the dataset's processing time, falling back to the
// time it was added to the catalog.
func (m *MetadataType) CreationTimeExpr(doc string) string {
	var created string

	if f, ok := m.Field("created"); ok {
		created = f.Expr(doc)
	} else {
		offset := m.CreationDT
		if len(offset) == 0 {
			offset = []string{"creation_dt"}
		}

		created = "agdc.common_timestamp(" + TextAt(doc, offset) + ")"
	}

	return fmt.Sprintf("coalesce(%s, %s.added)", created, DatasetAlias)
}

// SizeBytesExpr is the dataset's size on disk, when recorded.
func (m *MetadataType) SizeBytesExpr(doc string) string {
	if f, ok := m.Field("size_bytes"); ok {
		return f.Expr(doc) + "::bigint"
	}

	return fmt.Sprintf("(%s ->> 'size_bytes')::bigint", doc)
}

// offsetCopy copies an offset so appends never alias the metadata type's slice.
func offsetCopy(offset []string) []string {
	return append([]string(nil), offset...)
}
