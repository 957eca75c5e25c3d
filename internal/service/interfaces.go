// Package service implements the explorer's summary engine on top of the
// data stores: extent synchronisation, period aggregation, hierarchical
// combination and the per-product refresh orchestration.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/persistorai/explorer/internal/catalog"
	"github.com/persistorai/explorer/internal/crs"
	"github.com/persistorai/explorer/internal/domain"
	"github.com/persistorai/explorer/internal/models"
)

// Compile-time check: *Orchestrator must satisfy domain.SummaryService.
var _ domain.SummaryService = (*Orchestrator)(nil)

// CatalogReader reads product definitions and dataset changes from the catalog.
type CatalogReader interface {
	ProductNames(ctx context.Context) ([]string, error)
	Product(ctx context.Context, name string) (*catalog.Product, error)
	DatabaseNow(ctx context.Context) (time.Time, error)
	ChangedMonths(ctx context.Context, productID int, centerTime string, since time.Time, tz string) ([]models.YearMonth, error)
	LinkedProducts(ctx context.Context, productID int, samplePercent float64) (sources, derived []string, err error)
	FixedMetadata(ctx context.Context, productID int, fields map[string]string, samplePercent float64) (map[string]any, error)
	CRSCandidates(ctx context.Context, codes []int) ([]crs.Candidate, error)
	SRIDName(ctx context.Context, srid int) (string, error)
	SRIDFor(ctx context.Context, code crs.Code) (int, error)
	SampleDataset(ctx context.Context, productID int, id *uuid.UUID) (models.DatasetDocument, error)
}

// ExtentStore maintains the per-dataset extent table.
type ExtentStore interface {
	DeleteArchived(ctx context.Context, productID int, since *time.Time) (int, error)
	DeleteOrphans(ctx context.Context, productID int) (int, error)
	UpsertExtents(ctx context.Context, productID int, cols models.ExtentColumns, since *time.Time) (int, error)
	MissingFootprints(ctx context.Context, productID int) ([]models.DatasetDocument, error)
	SetFootprints(ctx context.Context, updates []models.FootprintUpdate) (int, error)
	Stats(ctx context.Context, productID int) (models.ExtentStats, error)
	NewestKnownChange(ctx context.Context, productID int) (*time.Time, error)
}

// AggregateStore runs grouped queries over the extent table.
type AggregateStore interface {
	PeriodTotals(ctx context.Context, productID, footprintSRID int, window models.TimeRange) (models.PeriodTotals, error)
	DayCounts(ctx context.Context, productID int, window models.TimeRange, tz string) (map[time.Time]int, error)
	RegionCounts(ctx context.Context, productID int, window models.TimeRange) (map[string]int, error)
}

// OverviewStore persists month, year and whole-product overviews.
type OverviewStore interface {
	Get(ctx context.Context, productID int, year, month, day int) (*models.TimePeriodOverview, error)
	Put(ctx context.Context, productID, footprintSRID int, o *models.TimePeriodOverview) (time.Time, error)
	StaleYears(ctx context.Context, productID int) ([]int, error)
	AllIsStale(ctx context.Context, productID int) (bool, error)
}

// ProductStore persists per-product refresh state.
type ProductStore interface {
	Get(ctx context.Context, name string) (*models.ProductSummary, error)
	Names(ctx context.Context) ([]string, error)
	Persist(ctx context.Context, p *models.ProductSummary) error
	MarkRefreshCompleted(ctx context.Context, p *models.ProductSummary, at time.Time) (bool, error)
}

// RegionStore maintains per-region summaries.
type RegionStore interface {
	Rebuild(ctx context.Context, productID int, tolerance float64) (int, error)
	Summaries(ctx context.Context, productID int) ([]models.RegionSummary, error)
	FindDatasets(ctx context.Context, productID int, regionCode string, window *models.TimeRange, limit, offset int) ([]uuid.UUID, error)
}
