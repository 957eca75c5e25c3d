package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/persistorai/explorer/internal/models"
	"github.com/persistorai/explorer/internal/service"
)

// SummaryReader defines the summary read operations used by ProductHandler.
type SummaryReader interface {
	Get(ctx context.Context, product string, year, month, day int) (*models.TimePeriodOverview, error)
	GetProductSummary(ctx context.Context, product string) (*models.ProductSummary, error)
	FindDatasetsForRegion(ctx context.Context, product, regionCode string, window *models.TimeRange, limit, offset int) ([]uuid.UUID, error)
	RegionSummaries(ctx context.Context, product string) ([]models.RegionSummary, error)
	ProductNames(ctx context.Context) ([]string, error)
}

// CatalogLister lists the products defined in the catalog.
type CatalogLister interface {
	ProductNames(ctx context.Context) ([]string, error)
}

// RefreshQueue accepts background refresh requests.
type RefreshQueue interface {
	Enqueue(job service.RefreshJob) bool
}
