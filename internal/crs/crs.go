// Package crs resolves dataset coordinate reference systems to authority codes.
//
// Datasets declare their CRS in one of several ways. Resolution tries, in order:
// a shorthand "AUTH:CODE" string, a WKT string ending in an AUTHORITY clause,
// a legacy GDA94 datum plus zone, and finally the product's default CRS.
package crs

import (
	"regexp"
	"strconv"
	"strings"
)

// LegacyDatum is the only datum name resolved from datum/zone fields.
const LegacyDatum = "GDA94"

var (
	shorthandPattern = regexp.MustCompile(`^[A-Za-z0-9]+:[0-9]+$`)
	authorityPattern = regexp.MustCompile(`AUTHORITY\["([a-zA-Z0-9]+)", *"([0-9]+)"\]\]$`)
)

// Code is an authority-qualified CRS identifier such as EPSG:4326.
type Code struct {
	Authority string
	Code      int
}

func (c Code) String() string {
	return strings.ToUpper(c.Authority) + ":" + strconv.Itoa(c.Code)
}

// ParseShorthand parses "AUTH:CODE".
func ParseShorthand(s string) (Code, bool) {
	s = strings.TrimSpace(s)
	if !shorthandPattern.MatchString(s) {
		return Code{}, false
	}

	auth, num, _ := strings.Cut(s, ":")

	n, err := strconv.Atoi(num)
	if err != nil {
		return Code{}, false
	}

	return Code{Authority: strings.ToUpper(auth), Code: n}, true
}

// ParseWKTAuthority extracts the trailing AUTHORITY clause of a WKT string.
func ParseWKTAuthority(wkt string) (Code, bool) {
	m := authorityPattern.FindStringSubmatch(strings.TrimSpace(wkt))
	if m == nil {
		return Code{}, false
	}

	n, err := strconv.Atoi(m[2])
	if err != nil {
		return Code{}, false
	}

	return Code{Authority: strings.ToUpper(m[1]), Code: n}, true
}

// FromLegacyDatum maps a GDA94 datum and zone to its MGA projection (EPSG:283zz).
func FromLegacyDatum(datum string, zone int) (Code, bool) {
	if datum != LegacyDatum || zone == 0 {
		return Code{}, false
	}

	if zone < 0 {
		zone = -zone
	}

	n, err := strconv.Atoi("283" + strconv.Itoa(zone))
	if err != nil {
		return Code{}, false
	}

	return Code{Authority: "EPSG", Code: n}, true
}

// IsAuthorityForm reports whether s names an EPSG or ESRI code directly.
func IsAuthorityForm(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))

	return strings.HasPrefix(lower, "epsg:") || strings.HasPrefix(lower, "esri:")
}

// Reference is the CRS information found in one dataset document.
type Reference struct {
	SpatialRef string
	Datum      string
	Zone       int
}

// Resolve applies the resolution chain to one dataset. def may be nil.
func Resolve(ref Reference, def *Code) (Code, bool) {
	if c, ok := ParseShorthand(ref.SpatialRef); ok {
		return c, true
	}

	if c, ok := ParseWKTAuthority(ref.SpatialRef); ok {
		return c, true
	}

	if c, ok := FromLegacyDatum(ref.Datum, ref.Zone); ok {
		return c, true
	}

	if def != nil {
		return *def, true
	}

	return Code{}, false
}
