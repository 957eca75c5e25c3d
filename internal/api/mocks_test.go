package api_test

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/persistorai/explorer/internal/models"
	"github.com/persistorai/explorer/internal/service"
)

// mockSummaries implements api.SummaryReader for testing.
type mockSummaries struct {
	getFn      func(ctx context.Context, product string, year, month, day int) (*models.TimePeriodOverview, error)
	summaryFn  func(ctx context.Context, product string) (*models.ProductSummary, error)
	datasetsFn func(ctx context.Context, product, regionCode string, window *models.TimeRange, limit, offset int) ([]uuid.UUID, error)
	regionsFn  func(ctx context.Context, product string) ([]models.RegionSummary, error)
	namesFn    func(ctx context.Context) ([]string, error)
}

func (m *mockSummaries) Get(ctx context.Context, product string, year, month, day int) (*models.TimePeriodOverview, error) {
	return m.getFn(ctx, product, year, month, day)
}

func (m *mockSummaries) GetProductSummary(ctx context.Context, product string) (*models.ProductSummary, error) {
	return m.summaryFn(ctx, product)
}

func (m *mockSummaries) FindDatasetsForRegion(
	ctx context.Context, product, regionCode string, window *models.TimeRange, limit, offset int,
) ([]uuid.UUID, error) {
	return m.datasetsFn(ctx, product, regionCode, window, limit, offset)
}

func (m *mockSummaries) RegionSummaries(ctx context.Context, product string) ([]models.RegionSummary, error) {
	return m.regionsFn(ctx, product)
}

func (m *mockSummaries) ProductNames(ctx context.Context) ([]string, error) {
	return m.namesFn(ctx)
}

// mockCatalog implements api.CatalogLister for testing.
type mockCatalog struct {
	names []string
	err   error
}

func (m *mockCatalog) ProductNames(context.Context) ([]string, error) {
	return m.names, m.err
}

// mockQueue implements api.RefreshQueue for testing.
type mockQueue struct {
	mu     sync.Mutex
	accept bool
	jobs   []service.RefreshJob
}

func (m *mockQueue) Enqueue(job service.RefreshJob) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.accept {
		return false
	}

	m.jobs = append(m.jobs, job)

	return true
}
