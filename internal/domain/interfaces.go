// Package domain defines the canonical service interfaces shared across API
// layers (REST, CLI). Consumers should depend on these interfaces rather
// than re-declaring equivalent ones.
package domain

import (
	"context"

	"github.com/google/uuid"

	"github.com/persistorai/explorer/internal/models"
)

// RefreshOptions control how much of a product a refresh rescans.
type RefreshOptions struct {
	// Force recomputes every summary of the product.
	Force bool `json:"force"`
	// RecreateExtents rescans every dataset and drops extent rows of
	// datasets missing from the catalog.
	RecreateExtents bool `json:"recreate_extents"`
	// ResetIncrementalPosition scans from the newest dataset already in the
	// extent table instead of the last successful summary time.
	ResetIncrementalPosition bool `json:"reset_incremental_position"`
	// MinimumScanWindow widens the incremental scan to at least this far back.
	MinimumScanWindow models.Duration `json:"minimum_scan_window"`
}

// SummaryService defines the summary engine's read and refresh operations.
type SummaryService interface {
	Refresh(ctx context.Context, product string, opts RefreshOptions) (models.ResultKind, *models.TimePeriodOverview, error)
	Get(ctx context.Context, product string, year, month, day int) (*models.TimePeriodOverview, error)
	GetProductSummary(ctx context.Context, product string) (*models.ProductSummary, error)
	FindDatasetsForRegion(ctx context.Context, product, regionCode string, window *models.TimeRange, limit, offset int) ([]uuid.UUID, error)
	RegionSummaries(ctx context.Context, product string) ([]models.RegionSummary, error)
	ProductNames(ctx context.Context) ([]string, error)
}
