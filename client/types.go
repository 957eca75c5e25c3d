package client

import (
	"encoding/json"
	"time"
)

// ProductSummary is the stored refresh state of one product.
type ProductSummary struct {
	Name                      string         `json:"name"`
	DatasetCount              int            `json:"dataset_count"`
	TimeEarliest              *time.Time     `json:"time_earliest,omitempty"`
	TimeLatest                *time.Time     `json:"time_latest,omitempty"`
	SourceProducts            []string       `json:"source_products"`
	DerivedProducts           []string       `json:"derived_products"`
	FixedMetadata             map[string]any `json:"fixed_metadata"`
	FootprintSRID             int            `json:"footprint_srid"`
	LastRefreshTime           time.Time      `json:"last_refresh_time"`
	LastSuccessfulSummaryTime *time.Time     `json:"last_successful_summary_time,omitempty"`
}

// TimelineCount is one bucket of an overview's dataset histogram.
type TimelineCount struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// TimeRange is a half-open interval [Begin, End).
type TimeRange struct {
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`
}

// Overview summarises a product over one period.
type Overview struct {
	Product                   string          `json:"product"`
	PeriodType                string          `json:"period_type"`
	StartDay                  string          `json:"start_day"`
	DatasetCount              int             `json:"dataset_count"`
	TimelinePeriod            string          `json:"timeline_period"`
	Timeline                  []TimelineCount `json:"timeline"`
	RegionDatasetCounts       map[string]int  `json:"region_dataset_counts"`
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

// Region is the dataset count of one region of a product.
type Region struct {
	Product        string    `json:"product"`
	RegionCode     string    `json:"region_code"`
	Label          string    `json:"label"`
	Count          int       `json:"count"`
	GenerationTime time.Time `json:"generation_time"`
}

// DatasetPage is one page of dataset ids.
type DatasetPage struct {
	Datasets []string `json:"datasets"`
	HasMore  bool     `json:"has_more"`
}

// Period selects a calendar period; zero fields are unset. The zero Period
// is the whole product.
type Period struct {
	Year  int
	Month int
	Day   int
}

// RefreshOptions tunes a requested refresh.
type RefreshOptions struct {
	Force                    bool
	RecreateExtents          bool
	ResetIncrementalPosition bool
	MinimumScanWindow        time.Duration
}

// MarshalJSON renders the scan window as a Go duration string.
func (o RefreshOptions) MarshalJSON() ([]byte, error) {
	out := struct {
		Force                    bool   `json:"force,omitempty"`
		RecreateExtents          bool   `json:"recreate_extents,omitempty"`
		ResetIncrementalPosition bool   `json:"reset_incremental_position,omitempty"`
		MinimumScanWindow        string `json:"minimum_scan_window,omitempty"`
	}{
		Force:                    o.Force,
		RecreateExtents:          o.RecreateExtents,
		ResetIncrementalPosition: o.ResetIncrementalPosition,
	}

	if o.MinimumScanWindow > 0 {
		out.MinimumScanWindow = o.MinimumScanWindow.String()
	}

	return json.Marshal(out)
}

// RefreshResponse acknowledges a queued refresh.
type RefreshResponse struct {
	Product string `json:"product"`
	Status  string `json:"status"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	SchemaVersion int     `json:"schema_version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}
