package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExtentColumns holds the SQL expressions, evaluated against one catalog
// dataset row, that fill a spatial extent row. Empty expressions mean NULL.
type ExtentColumns struct {
	CenterTime   string
	CreationTime string
	RegionCode   string
	SizeBytes    string
	Footprint    string
}

// ExtentStats describes the extent rows of one product.
type ExtentStats struct {
	DatasetCount int
	TimeEarliest *time.Time
	TimeLatest   *time.Time
}

// DatasetDocument is a catalog dataset with its raw metadata document.
type DatasetDocument struct {
	ID       uuid.UUID
	Metadata json.RawMessage
}

// FootprintUpdate replaces the footprint of one extent row.
type FootprintUpdate struct {
	ID   uuid.UUID
	WKB  []byte
	SRID int
}

// PeriodTotals are the whole-period aggregates of one leaf period.
type PeriodTotals struct {
	DatasetCount              int
	NewestDatasetCreationTime *time.Time
	SizeBytes                 *int64
	FootprintWKB              []byte
	FootprintCount            int
	CRSes                     []string
}
