// Package models defines the summary records produced and persisted by the explorer.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/twpayne/go-geos"
)

// ProductSummary is the persisted state of one product's extent refresh.
type ProductSummary struct {
	ID             int    `json:"-"`
	Name           string `json:"name"`
	DatasetTypeRef int    `json:"-"`

	DatasetCount int        `json:"dataset_count"`
	TimeEarliest *time.Time `json:"time_earliest,omitempty"`
	TimeLatest   *time.Time `json:"time_latest,omitempty"`

	SourceProducts  []string       `json:"source_products"`
	DerivedProducts []string       `json:"derived_products"`
	FixedMetadata   map[string]any `json:"fixed_metadata"`

	// FootprintSRID is fixed when the product is first summarised.
	FootprintSRID int `json:"footprint_srid"`

	// LastRefreshTime is the catalog time the extent table is known to cover up to.
	LastRefreshTime time.Time `json:"last_refresh_time"`
	// LastSuccessfulSummaryTime only ever advances.
	LastSuccessfulSummaryTime *time.Time `json:"last_successful_summary_time,omitempty"`
}

// YearMonth identifies one calendar month.
type YearMonth struct {
	Year  int
	Month int
}

// Months lists every calendar month between the product's earliest and latest
// datasets, evaluated in loc. It is empty for products without datasets.
func (p *ProductSummary) Months(loc *time.Location) []YearMonth {
	if p == nil || p.TimeEarliest == nil || p.TimeLatest == nil {
		return nil
	}

	start := p.TimeEarliest.In(loc)
	end := p.TimeLatest.In(loc)

	var out []YearMonth

	for y, m := start.Year(), start.Month(); y < end.Year() || (y == end.Year() && m <= end.Month()); {
		out = append(out, YearMonth{Year: y, Month: int(m)})

		m++
		if m > time.December {
			m = time.January
			y++
		}
	}

	return out
}

// Years lists every calendar year the product spans, evaluated in loc.
func (p *ProductSummary) Years(loc *time.Location) []int {
	if p == nil || p.TimeEarliest == nil || p.TimeLatest == nil {
		return nil
	}

	var out []int
	for y := p.TimeEarliest.In(loc).Year(); y <= p.TimeLatest.In(loc).Year(); y++ {
		out = append(out, y)
	}

	return out
}

// DatasetExtent is one dataset's row in the spatial extent table.
type DatasetExtent struct {
	ID             uuid.UUID  `json:"id"`
	DatasetTypeRef int        `json:"dataset_type_ref"`
	CenterTime     time.Time  `json:"center_time"`
	CreationTime   *time.Time `json:"creation_time,omitempty"`
	RegionCode     *string    `json:"region_code,omitempty"`
	SizeBytes      *int64     `json:"size_bytes,omitempty"`
	Footprint      *geos.Geom `json:"-"`
	FootprintSRID  int        `json:"footprint_srid,omitempty"`
}

// RegionSummary is the per-region dataset count and WGS84 footprint for a product.
type RegionSummary struct {
	ProductName    string     `json:"product"`
	RegionCode     string     `json:"region_code"`
	Label          string     `json:"label"`
	Count          int        `json:"count"`
	GenerationTime time.Time  `json:"generation_time"`
	Footprint      *geos.Geom `json:"-"`
}
