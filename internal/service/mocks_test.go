package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/explorer/internal/catalog"
	"github.com/persistorai/explorer/internal/crs"
	"github.com/persistorai/explorer/internal/domain"
	"github.com/persistorai/explorer/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

// callLog records method names in call order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) record(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
}

func (c *callLog) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, call := range c.calls {
		if call == name {
			n++
		}
	}

	return n
}

// mockCatalog records calls and returns configured responses.
type mockCatalog struct {
	callLog

	productNames   func(ctx context.Context) ([]string, error)
	product        func(ctx context.Context, name string) (*catalog.Product, error)
	databaseNow    func(ctx context.Context) (time.Time, error)
	changedMonths  func(ctx context.Context, productID int, centerTime string, since time.Time, tz string) ([]models.YearMonth, error)
	linkedProducts func(ctx context.Context, productID int, samplePercent float64) ([]string, []string, error)
	fixedMetadata  func(ctx context.Context, productID int, fields map[string]string, samplePercent float64) (map[string]any, error)
	crsCandidates  func(ctx context.Context, codes []int) ([]crs.Candidate, error)
	sridName       func(ctx context.Context, srid int) (string, error)
	sridFor        func(ctx context.Context, code crs.Code) (int, error)
	sampleDataset  func(ctx context.Context, productID int, id *uuid.UUID) (models.DatasetDocument, error)
}

func (m *mockCatalog) ProductNames(ctx context.Context) ([]string, error) {
	m.record("ProductNames")
	return m.productNames(ctx)
}

func (m *mockCatalog) Product(ctx context.Context, name string) (*catalog.Product, error) {
	m.record("Product")
	return m.product(ctx, name)
}

func (m *mockCatalog) DatabaseNow(ctx context.Context) (time.Time, error) {
	m.record("DatabaseNow")
	return m.databaseNow(ctx)
}

func (m *mockCatalog) ChangedMonths(ctx context.Context, productID int, centerTime string, since time.Time, tz string) ([]models.YearMonth, error) {
	m.record("ChangedMonths")
	return m.changedMonths(ctx, productID, centerTime, since, tz)
}

func (m *mockCatalog) LinkedProducts(ctx context.Context, productID int, samplePercent float64) ([]string, []string, error) {
	m.record("LinkedProducts")
	return m.linkedProducts(ctx, productID, samplePercent)
}

func (m *mockCatalog) FixedMetadata(ctx context.Context, productID int, fields map[string]string, samplePercent float64) (map[string]any, error) {
	m.record("FixedMetadata")
	return m.fixedMetadata(ctx, productID, fields, samplePercent)
}

func (m *mockCatalog) CRSCandidates(ctx context.Context, codes []int) ([]crs.Candidate, error) {
	m.record("CRSCandidates")
	return m.crsCandidates(ctx, codes)
}

func (m *mockCatalog) SRIDName(ctx context.Context, srid int) (string, error) {
	m.record("SRIDName")
	return m.sridName(ctx, srid)
}

func (m *mockCatalog) SRIDFor(ctx context.Context, code crs.Code) (int, error) {
	m.record("SRIDFor")
	return m.sridFor(ctx, code)
}

func (m *mockCatalog) SampleDataset(ctx context.Context, productID int, id *uuid.UUID) (models.DatasetDocument, error) {
	m.record("SampleDataset")
	return m.sampleDataset(ctx, productID, id)
}

// mockExtentStore records calls and returns configured responses.
type mockExtentStore struct {
	callLog

	deleteArchived    func(ctx context.Context, productID int, since *time.Time) (int, error)
	deleteOrphans     func(ctx context.Context, productID int) (int, error)
	upsertExtents     func(ctx context.Context, productID int, cols models.ExtentColumns, since *time.Time) (int, error)
	missingFootprints func(ctx context.Context, productID int) ([]models.DatasetDocument, error)
	setFootprints     func(ctx context.Context, updates []models.FootprintUpdate) (int, error)
	stats             func(ctx context.Context, productID int) (models.ExtentStats, error)
	newestKnownChange func(ctx context.Context, productID int) (*time.Time, error)
}

func (m *mockExtentStore) DeleteArchived(ctx context.Context, productID int, since *time.Time) (int, error) {
	m.record("DeleteArchived")
	return m.deleteArchived(ctx, productID, since)
}

func (m *mockExtentStore) DeleteOrphans(ctx context.Context, productID int) (int, error) {
	m.record("DeleteOrphans")
	return m.deleteOrphans(ctx, productID)
}

func (m *mockExtentStore) UpsertExtents(ctx context.Context, productID int, cols models.ExtentColumns, since *time.Time) (int, error) {
	m.record("UpsertExtents")
	return m.upsertExtents(ctx, productID, cols, since)
}

func (m *mockExtentStore) MissingFootprints(ctx context.Context, productID int) ([]models.DatasetDocument, error) {
	m.record("MissingFootprints")
	return m.missingFootprints(ctx, productID)
}

func (m *mockExtentStore) SetFootprints(ctx context.Context, updates []models.FootprintUpdate) (int, error) {
	m.record("SetFootprints")
	return m.setFootprints(ctx, updates)
}

func (m *mockExtentStore) Stats(ctx context.Context, productID int) (models.ExtentStats, error) {
	m.record("Stats")
	return m.stats(ctx, productID)
}

func (m *mockExtentStore) NewestKnownChange(ctx context.Context, productID int) (*time.Time, error) {
	m.record("NewestKnownChange")
	return m.newestKnownChange(ctx, productID)
}

// mockAggregateStore records calls and returns configured responses.
type mockAggregateStore struct {
	callLog

	periodTotals func(ctx context.Context, productID, footprintSRID int, window models.TimeRange) (models.PeriodTotals, error)
	dayCounts    func(ctx context.Context, productID int, window models.TimeRange, tz string) (map[time.Time]int, error)
	regionCounts func(ctx context.Context, productID int, window models.TimeRange) (map[string]int, error)
}

func (m *mockAggregateStore) PeriodTotals(ctx context.Context, productID, footprintSRID int, window models.TimeRange) (models.PeriodTotals, error) {
	m.record("PeriodTotals")
	return m.periodTotals(ctx, productID, footprintSRID, window)
}

func (m *mockAggregateStore) DayCounts(ctx context.Context, productID int, window models.TimeRange, tz string) (map[time.Time]int, error) {
	m.record("DayCounts")
	return m.dayCounts(ctx, productID, window, tz)
}

func (m *mockAggregateStore) RegionCounts(ctx context.Context, productID int, window models.TimeRange) (map[string]int, error) {
	m.record("RegionCounts")
	return m.regionCounts(ctx, productID, window)
}

// mockRegionStore records calls and returns configured responses.
type mockRegionStore struct {
	callLog

	rebuild      func(ctx context.Context, productID int, tolerance float64) (int, error)
	summaries    func(ctx context.Context, productID int) ([]models.RegionSummary, error)
	findDatasets func(ctx context.Context, productID int, regionCode string, window *models.TimeRange, limit, offset int) ([]uuid.UUID, error)
}

func (m *mockRegionStore) Rebuild(ctx context.Context, productID int, tolerance float64) (int, error) {
	m.record("Rebuild")
	return m.rebuild(ctx, productID, tolerance)
}

func (m *mockRegionStore) Summaries(ctx context.Context, productID int) ([]models.RegionSummary, error) {
	m.record("Summaries")
	return m.summaries(ctx, productID)
}

func (m *mockRegionStore) FindDatasets(ctx context.Context, productID int, regionCode string, window *models.TimeRange, limit, offset int) ([]uuid.UUID, error) {
	m.record("FindDatasets")
	return m.findDatasets(ctx, productID, regionCode, window, limit, offset)
}

type overviewKey struct {
	product int
	period  models.PeriodType
	start   time.Time
}

// memOverviewStore keeps overviews in memory. Every Put advances a fake
// clock, so generation times order writes the way clock_timestamp() does.
type memOverviewStore struct {
	callLog

	clock time.Time
	items map[overviewKey]models.TimePeriodOverview
}

func newMemOverviewStore() *memOverviewStore {
	return &memOverviewStore{
		clock: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		items: map[overviewKey]models.TimePeriodOverview{},
	}
}

func (m *memOverviewStore) key(productID, year, month, day int) overviewKey {
	period, start := models.FlatPeriod(year, month, day)

	return overviewKey{product: productID, period: period, start: start}
}

func (m *memOverviewStore) Get(_ context.Context, productID int, year, month, day int) (*models.TimePeriodOverview, error) {
	m.record("Get")

	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.items[m.key(productID, year, month, day)]
	if !ok {
		return nil, models.ErrOverviewMissing
	}

	return &o, nil
}

func (m *memOverviewStore) Put(_ context.Context, productID, _ int, o *models.TimePeriodOverview) (time.Time, error) {
	m.record("Put")

	if o.ProductRefreshTime == nil {
		return time.Time{}, models.ErrMissingRefreshTime
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.clock = m.clock.Add(time.Second)
	generated := m.clock

	stored := *o
	stored.SummaryGenTime = &generated
	m.items[m.key(productID, o.Year, o.Month, o.Day)] = stored

	return generated, nil
}

// put stores an overview with an explicit generation time.
func (m *memOverviewStore) put(productID int, o models.TimePeriodOverview, generated time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if generated.After(m.clock) {
		m.clock = generated
	}

	o.SummaryGenTime = &generated
	m.items[m.key(productID, o.Year, o.Month, o.Day)] = o
}

func (m *memOverviewStore) StaleYears(_ context.Context, productID int) ([]int, error) {
	m.record("StaleYears")

	m.mu.Lock()
	defer m.mu.Unlock()

	stale := map[int]bool{}

	for k, month := range m.items {
		if k.product != productID || k.period != models.PeriodMonth {
			continue
		}

		year, ok := m.items[m.key(productID, k.start.Year(), 0, 0)]
		if !ok || year.SummaryGenTime.Before(*month.SummaryGenTime) {
			stale[k.start.Year()] = true
		}
	}

	years := make([]int, 0, len(stale))
	for y := range stale {
		years = append(years, y)
	}

	sort.Ints(years)

	return years, nil
}

func (m *memOverviewStore) AllIsStale(_ context.Context, productID int) (bool, error) {
	m.record("AllIsStale")

	m.mu.Lock()
	defer m.mu.Unlock()

	all, ok := m.items[m.key(productID, 0, 0, 0)]
	if !ok {
		return true, nil
	}

	for k, year := range m.items {
		if k.product == productID && k.period == models.PeriodYear && year.SummaryGenTime.After(*all.SummaryGenTime) {
			return true, nil
		}
	}

	return false, nil
}

// memProductStore keeps product summaries in memory with the stored
// product's rules: a fixed footprint SRID and an advance-only watermark.
type memProductStore struct {
	callLog

	items map[string]models.ProductSummary
}

func newMemProductStore() *memProductStore {
	return &memProductStore{items: map[string]models.ProductSummary{}}
}

func (m *memProductStore) Get(_ context.Context, name string) (*models.ProductSummary, error) {
	m.record("Get")

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.items[name]
	if !ok {
		return nil, models.ErrProductNotFound
	}

	return &p, nil
}

func (m *memProductStore) Names(_ context.Context) ([]string, error) {
	m.record("Names")

	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.items))
	for name := range m.items {
		names = append(names, name)
	}

	sort.Strings(names)

	return names, nil
}

func (m *memProductStore) Persist(_ context.Context, p *models.ProductSummary) error {
	m.record("Persist")

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *p
	if existing, ok := m.items[p.Name]; ok {
		stored.FootprintSRID = existing.FootprintSRID
		stored.LastSuccessfulSummaryTime = existing.LastSuccessfulSummaryTime
	}

	m.items[p.Name] = stored
	p.FootprintSRID = stored.FootprintSRID

	return nil
}

func (m *memProductStore) MarkRefreshCompleted(_ context.Context, p *models.ProductSummary, at time.Time) (bool, error) {
	m.record("MarkRefreshCompleted")

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[p.Name]
	if !ok {
		return false, nil
	}

	if stored.LastSuccessfulSummaryTime != nil && !stored.LastSuccessfulSummaryTime.Before(at) {
		return false, nil
	}

	stored.LastSuccessfulSummaryTime = &at
	m.items[p.Name] = stored

	return true, nil
}

// mockRefresher returns configured results per product.
type mockRefresher struct {
	callLog

	refresh func(ctx context.Context, product string) (models.ResultKind, error)
}

func (m *mockRefresher) Refresh(ctx context.Context, product string, _ domain.RefreshOptions) (models.ResultKind, *models.TimePeriodOverview, error) {
	m.record("Refresh:" + product)
	kind, err := m.refresh(ctx, product)

	return kind, nil, err
}
