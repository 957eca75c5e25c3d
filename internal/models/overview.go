package models

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/twpayne/go-geos"
)

// TimePeriodOverview summarises every dataset of a product within one time period.
// Timeline keys are calendar dates at UTC midnight (see DateOf). Region keys
// use "" for datasets without a region code.
type TimePeriodOverview struct {
	ProductName string

	// Year, Month and Day identify the period; zero means unset.
	Year  int
	Month int
	Day   int

	DatasetCount          int
	TimelineDatasetCounts map[time.Time]int
	RegionDatasetCounts   map[string]int
	TimelinePeriod        PeriodType
	TimeRange             *TimeRange

	Footprint      *geos.Geom
	FootprintCRS   string
	FootprintCount int

	NewestDatasetCreationTime *time.Time
	CRSes                     []string
	SizeBytes                 *int64

	ProductRefreshTime *time.Time
	SummaryGenTime     *time.Time
}

// NewOverview returns an overview with initialised histograms.
func NewOverview(product string, period PeriodType) *TimePeriodOverview {
	return &TimePeriodOverview{
		ProductName:           product,
		TimelinePeriod:        period,
		TimelineDatasetCounts: map[time.Time]int{},
		RegionDatasetCounts:   map[string]int{},
	}
}

// SetPeriod records which calendar period this overview describes.
func (o *TimePeriodOverview) SetPeriod(year, month, day int) {
	o.Year, o.Month, o.Day = year, month, day
}

// PeriodType returns the stored period type of this overview.
func (o *TimePeriodOverview) PeriodType() PeriodType {
	p, _ := FlatPeriod(o.Year, o.Month, o.Day)

	return p
}

// StartDay returns the stored start day of this overview.
func (o *TimePeriodOverview) StartDay() time.Time {
	_, d := FlatPeriod(o.Year, o.Month, o.Day)

	return d
}

// FootprintWKB returns the footprint as WKB, or nil when there is none.
func (o *TimePeriodOverview) FootprintWKB() []byte {
	if o.Footprint == nil {
		return nil
	}

	return o.Footprint.ToWKB()
}

// TimelineDays returns the histogram keys in ascending order.
func (o *TimePeriodOverview) TimelineDays() []time.Time {
	days := make([]time.Time, 0, len(o.TimelineDatasetCounts))
	for d := range o.TimelineDatasetCounts {
		days = append(days, d)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	return days
}

// RegionCodes returns the region histogram keys in ascending order.
func (o *TimePeriodOverview) RegionCodes() []string {
	codes := make([]string, 0, len(o.RegionDatasetCounts))
	for c := range o.RegionDatasetCounts {
		codes = append(codes, c)
	}

	sort.Strings(codes)

	return codes
}

// TimelineCount is one histogram bucket, used for JSON and CSV output.
type TimelineCount struct {
	Start time.Time `json:"start" csv:"start"`
	Count int       `json:"count" csv:"count"`
}

// Timeline returns the histogram as an ordered list of buckets.
func (o *TimePeriodOverview) Timeline() []TimelineCount {
	days := o.TimelineDays()
	out := make([]TimelineCount, len(days))

	for i, d := range days {
		out[i] = TimelineCount{Start: d, Count: o.TimelineDatasetCounts[d]}
	}

	return out
}

type overviewJSON struct {
	Product                   string          `json:"product"`
	Period                    PeriodType      `json:"period_type"`
	StartDay                  string          `json:"start_day"`
	DatasetCount              int             `json:"dataset_count"`
	TimelinePeriod            PeriodType      `json:"timeline_period"`
	Timeline                  []TimelineCount `json:"timeline"`
	Regions                   map[string]int  `json:"region_dataset_counts"`
	TimeRange                 *TimeRange      `json:"time_range,omitempty"`
	FootprintWKT              string          `json:"footprint_wkt,omitempty"`
	FootprintCRS              string          `json:"footprint_crs,omitempty"`
	FootprintCount            int             `json:"footprint_count"`
	NewestDatasetCreationTime *time.Time      `json:"newest_dataset_creation_time,omitempty"`
	CRSes                     []string        `json:"crses"`
	SizeBytes                 *int64          `json:"size_bytes,omitempty"`
	ProductRefreshTime        *time.Time      `json:"product_refresh_time,omitempty"`
	SummaryGenTime            *time.Time      `json:"summary_gen_time,omitempty"`
}

// MarshalJSON renders the overview with its footprint as WKT.
func (o *TimePeriodOverview) MarshalJSON() ([]byte, error) {
	out := overviewJSON{
		Product:                   o.ProductName,
		Period:                    o.PeriodType(),
		StartDay:                  o.StartDay().Format(time.DateOnly),
		DatasetCount:              o.DatasetCount,
		TimelinePeriod:            o.TimelinePeriod,
		Timeline:                  o.Timeline(),
		Regions:                   o.RegionDatasetCounts,
		TimeRange:                 o.TimeRange,
		FootprintCRS:              o.FootprintCRS,
		FootprintCount:            o.FootprintCount,
		NewestDatasetCreationTime: o.NewestDatasetCreationTime,
		CRSes:                     o.CRSes,
		SizeBytes:                 o.SizeBytes,
		ProductRefreshTime:        o.ProductRefreshTime,
		SummaryGenTime:            o.SummaryGenTime,
	}
	if o.Footprint != nil {
		out.FootprintWKT = o.Footprint.ToWKT()
	}
	if out.CRSes == nil {
		out.CRSes = []string{}
	}

	return json.Marshal(out)
}
