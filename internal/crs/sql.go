package crs

import (
	"fmt"
	"strconv"
)

// SpatialRefTable is the materialised copy of PostGIS spatial_ref_sys.
const SpatialRefTable = "cubedash.mv_spatial_ref_sys"

// SRIDExpression builds the SQL coalesce chain that resolves a dataset's SRID
// from its spatial reference, datum and zone expressions. defaultSRID is used
// as the last resort; zero means no default.
func SRIDExpression(spatialRef, datum, zone string, defaultSRID int) string {
	lookup := func(auth, code string) string {
		return fmt.Sprintf("(SELECT srid FROM %s WHERE lower(auth_name) = lower(%s) AND auth_srid = %s)", SpatialRefTable, auth, code)
	}

	shorthand := fmt.Sprintf("CASE WHEN %s ~ '%s' THEN %s END",
		spatialRef, shorthandPattern.String(),
		lookup(fmt.Sprintf("split_part(%s, ':', 1)", spatialRef), fmt.Sprintf("split_part(%s, ':', 2)::integer", spatialRef)))

	wkt := fmt.Sprintf(`CASE WHEN %s ~ 'AUTHORITY\["[a-zA-Z0-9]+", *"[0-9]+"\]\]$' THEN %s END`,
		spatialRef,
		lookup(fmt.Sprintf(`substring(%s from 'AUTHORITY\["([a-zA-Z0-9]+)", *"[0-9]+"\]\]$')`, spatialRef),
			fmt.Sprintf(`substring(%s from 'AUTHORITY\["[a-zA-Z0-9]+", *"([0-9]+)"\]\]$')::integer`, spatialRef)))

	legacy := fmt.Sprintf("CASE WHEN %s = '%s' THEN %s END",
		datum, LegacyDatum, lookup("'epsg'", fmt.Sprintf("('283' || abs(%s::integer))::integer", zone)))

	def := "NULL::integer"
	if defaultSRID != 0 {
		def = strconv.Itoa(defaultSRID)
	}

	return fmt.Sprintf("coalesce(%s, %s, %s, %s)", shorthand, wkt, legacy, def)
}
