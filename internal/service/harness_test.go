package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/persistorai/explorer/internal/catalog"
	"github.com/persistorai/explorer/internal/crs"
	"github.com/persistorai/explorer/internal/geometry"
	"github.com/persistorai/explorer/internal/models"
	"github.com/persistorai/explorer/internal/region"
	"github.com/persistorai/explorer/internal/summary"
)

const (
	testProductID   = 7
	testProductName = "ls8_nbar_scene"
)

type fakeDataset struct {
	center time.Time
	region string
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func eoMetadata() *catalog.MetadataType {
	return &catalog.MetadataType{
		ID:   1,
		Name: "eo",
		Fields: map[string]catalog.Field{
			"time": {
				Name:       "time",
				Type:       "datetime-range",
				MinOffsets: [][]string{{"extent", "from_dt"}},
				MaxOffsets: [][]string{{"extent", "to_dt"}},
			},
			"platform": {Name: "platform", Offset: []string{"platform", "code"}},
			"id":       {Name: "id", Offset: []string{"id"}},
		},
	}
}

func sceneMetadata() *catalog.MetadataType {
	md := eoMetadata()
	md.Fields["sat_path"] = catalog.Field{
		Name:       "sat_path",
		Type:       "numeric-range",
		MinOffsets: [][]string{{"image", "satellite_ref_point_start", "x"}},
		MaxOffsets: [][]string{{"image", "satellite_ref_point_end", "x"}},
	}
	md.Fields["sat_row"] = catalog.Field{
		Name:       "sat_row",
		Type:       "numeric-range",
		MinOffsets: [][]string{{"image", "satellite_ref_point_start", "y"}},
		MaxOffsets: [][]string{{"image", "satellite_ref_point_end", "y"}},
	}

	return md
}

// harness wires an Orchestrator to in-memory stores over a list of fake
// datasets.
type harness struct {
	catalog    *mockCatalog
	extents    *mockExtentStore
	aggregates *mockAggregateStore
	regions    *mockRegionStore
	overviews  *memOverviewStore
	products   *memProductStore

	cache *ProductCache
	sync  *Synchronizer
	orch  *Orchestrator

	product       func() *catalog.Product
	now           time.Time
	datasets      []fakeDataset
	changes       int
	changedMonths []models.YearMonth
	since         []time.Time
}

func newHarness() *harness {
	log := testLogger()
	h := &harness{
		now: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		product: func() *catalog.Product {
			return &catalog.Product{ID: testProductID, Name: testProductName, Metadata: eoMetadata()}
		},
		overviews: newMemOverviewStore(),
		products:  newMemProductStore(),
	}

	h.catalog = &mockCatalog{
		productNames: func(context.Context) ([]string, error) {
			return []string{testProductName}, nil
		},
		product: func(_ context.Context, name string) (*catalog.Product, error) {
			if name != testProductName {
				return nil, fmt.Errorf("%w: %s", models.ErrUnknownProduct, name)
			}

			return h.product(), nil
		},
		databaseNow: func(context.Context) (time.Time, error) {
			h.now = h.now.Add(time.Hour)
			return h.now, nil
		},
		changedMonths: func(_ context.Context, _ int, _ string, since time.Time, _ string) ([]models.YearMonth, error) {
			h.since = append(h.since, since)
			return h.changedMonths, nil
		},
		linkedProducts: func(context.Context, int, float64) ([]string, []string, error) {
			return []string{"ls8_level1_scene"}, nil, nil
		},
		fixedMetadata: func(context.Context, int, map[string]string, float64) (map[string]any, error) {
			if len(h.datasets) == 0 {
				return nil, models.ErrEmptyCatalog
			}

			return map[string]any{"platform": "LANDSAT_8"}, nil
		},
		crsCandidates: func(context.Context, []int) ([]crs.Candidate, error) {
			return nil, nil
		},
		sridName: func(_ context.Context, srid int) (string, error) {
			return "EPSG:" + strconv.Itoa(srid), nil
		},
		sridFor: func(_ context.Context, code crs.Code) (int, error) {
			return code.Code, nil
		},
		sampleDataset: func(context.Context, int, *uuid.UUID) (models.DatasetDocument, error) {
			return models.DatasetDocument{}, models.ErrEmptyCatalog
		},
	}

	h.extents = &mockExtentStore{
		deleteArchived: func(context.Context, int, *time.Time) (int, error) { return 0, nil },
		deleteOrphans:  func(context.Context, int) (int, error) { return 0, nil },
		upsertExtents: func(context.Context, int, models.ExtentColumns, *time.Time) (int, error) {
			n := h.changes
			h.changes = 0

			return n, nil
		},
		missingFootprints: func(context.Context, int) ([]models.DatasetDocument, error) { return nil, nil },
		setFootprints: func(_ context.Context, updates []models.FootprintUpdate) (int, error) {
			return len(updates), nil
		},
		stats: func(context.Context, int) (models.ExtentStats, error) { return h.stats(), nil },
		newestKnownChange: func(context.Context, int) (*time.Time, error) {
			return nil, nil
		},
	}

	h.aggregates = &mockAggregateStore{
		periodTotals: func(_ context.Context, _, _ int, window models.TimeRange) (models.PeriodTotals, error) {
			t := models.PeriodTotals{DatasetCount: len(h.in(window))}

			if t.DatasetCount > 0 {
				t.CRSes = []string{"EPSG:32653"}
			}

			return t, nil
		},
		dayCounts: func(_ context.Context, _ int, window models.TimeRange, _ string) (map[time.Time]int, error) {
			out := map[time.Time]int{}
			for _, ds := range h.in(window) {
				out[models.DateOf(ds.center)]++
			}

			return out, nil
		},
		regionCounts: func(_ context.Context, _ int, window models.TimeRange) (map[string]int, error) {
			out := map[string]int{}
			for _, ds := range h.in(window) {
				out[ds.region]++
			}

			return out, nil
		},
	}

	h.regions = &mockRegionStore{
		rebuild: func(context.Context, int, float64) (int, error) { return 0, nil },
		summaries: func(context.Context, int) ([]models.RegionSummary, error) {
			return []models.RegionSummary{
				{ProductName: testProductName, RegionCode: "90_84", Count: 2},
				{ProductName: testProductName, RegionCode: "91", Count: 1},
			}, nil
		},
		findDatasets: func(context.Context, int, string, *models.TimeRange, int, int) ([]uuid.UUID, error) {
			return []uuid.UUID{uuid.MustParse("11111111-2222-3333-4444-555555555555")}, nil
		},
	}

	union := geometry.NewResolver(log)
	h.cache = NewProductCache(h.catalog, h.products, nil, time.Minute)
	h.sync = NewSynchronizer(h.catalog, h.extents, nil, union, []int{4326}, log)
	h.orch = NewOrchestrator(Stores{
		Catalog:    h.catalog,
		Extents:    h.extents,
		Aggregates: h.aggregates,
		Overviews:  h.overviews,
		Products:   h.products,
		Regions:    h.regions,
	}, h.cache, h.sync, summary.NewCombiner(union, summary.DefaultFootprintTolerance, log), Options{
		Location:        time.UTC,
		OverlapMargin:   DefaultOverlapMargin,
		FootprintSRID:   3577,
		SampleSize:      1000,
		RegionTolerance: 0.0001,
	}, log)

	return h
}

// info is the current product with its region resolver, as the cache holds it.
func (h *harness) info() *ProductInfo {
	p := h.product()

	return &ProductInfo{Product: p, Region: region.ForProduct(p)}
}

// add registers datasets and marks them as changed for the next sync.
func (h *harness) add(datasets ...fakeDataset) {
	h.datasets = append(h.datasets, datasets...)
	h.changes += len(datasets)
}

func (h *harness) in(window models.TimeRange) []fakeDataset {
	var out []fakeDataset

	for _, ds := range h.datasets {
		if window.Contains(ds.center) {
			out = append(out, ds)
		}
	}

	return out
}

func (h *harness) stats() models.ExtentStats {
	st := models.ExtentStats{DatasetCount: len(h.datasets)}

	for _, ds := range h.datasets {
		c := ds.center
		if st.TimeEarliest == nil || c.Before(*st.TimeEarliest) {
			st.TimeEarliest = &c
		}

		if st.TimeLatest == nil || c.After(*st.TimeLatest) {
			st.TimeLatest = &c
		}
	}

	return st
}

func timelineTotal(o *models.TimePeriodOverview) int {
	n := 0
	for _, v := range o.TimelineDatasetCounts {
		n += v
	}

	return n
}

func regionTotal(o *models.TimePeriodOverview) int {
	n := 0
	for _, v := range o.RegionDatasetCounts {
		n += v
	}

	return n
}
