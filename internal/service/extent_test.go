package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/twpayne/go-geos"

	"github.com/persistorai/explorer/internal/catalog"
	"github.com/persistorai/explorer/internal/crs"
	"github.com/persistorai/explorer/internal/geometry"
	"github.com/persistorai/explorer/internal/models"
	"github.com/persistorai/explorer/internal/region"
)

const albersWKT = `PROJCS["GDA94 / Australian Albers",GEOGCS["GDA94",DATUM["Geocentric_Datum_of_Australia_1994"]]]`

func spatialMetadata() *catalog.MetadataType {
	md := eoMetadata()
	md.GridSpatial = []string{"grid_spatial", "projection"}

	return md
}

func eo3Metadata() *catalog.MetadataType {
	md := spatialMetadata()
	md.Measurements = []string{"measurements"}

	return md
}

// captureColumns records the extent columns of every upsert.
func captureColumns(h *harness) *[]models.ExtentColumns {
	var got []models.ExtentColumns

	h.extents.upsertExtents = func(_ context.Context, _ int, cols models.ExtentColumns, _ *time.Time) (int, error) {
		got = append(got, cols)
		return 0, nil
	}

	return &got
}

func TestSync_NonSpatialProduct(t *testing.T) {
	h := newHarness()
	cols := captureColumns(h)

	var archivedSince []*time.Time

	h.extents.deleteArchived = func(_ context.Context, _ int, since *time.Time) (int, error) {
		archivedSince = append(archivedSince, since)
		return 0, nil
	}

	since := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	if _, err := h.sync.Sync(context.Background(), h.info(), &since, false); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if _, err := h.sync.Sync(context.Background(), h.info(), &since, true); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	c := (*cols)[0]
	if c.Footprint != "" || c.RegionCode != "NULL" {
		t.Errorf("footprint = %q, region = %q; want none", c.Footprint, c.RegionCode)
	}

	if c.CenterTime == "" || c.CreationTime == "" || c.SizeBytes == "" {
		t.Errorf("columns = %+v, want time, creation and size expressions", c)
	}

	if archivedSince[0] == nil || archivedSince[1] != nil {
		t.Errorf("archived since = %v, want the cutoff then nil for a full rescan", archivedSince)
	}

	if n := h.extents.count("DeleteOrphans"); n != 1 {
		t.Errorf("DeleteOrphans called %d times, want 1", n)
	}
}

func TestSync_CountsChanges(t *testing.T) {
	h := newHarness()
	h.extents.deleteArchived = func(context.Context, int, *time.Time) (int, error) { return 2, nil }
	h.extents.deleteOrphans = func(context.Context, int) (int, error) { return 1, nil }
	h.changes = 4

	n, err := h.sync.Sync(context.Background(), h.info(), nil, true)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if n != 7 {
		t.Errorf("changes = %d, want 7", n)
	}
}

func TestSync_GridProduct(t *testing.T) {
	h := newHarness()
	h.product = func() *catalog.Product {
		return &catalog.Product{
			ID:         testProductID,
			Name:       "ga_ls8c_ard_3",
			Metadata:   spatialMetadata(),
			DefaultCRS: "EPSG:3577",
			Grid: &catalog.GridSpec{
				CRS:        "EPSG:3577",
				TileSize:   &[2]float64{100000, 100000},
				Resolution: &[2]float64{-25, 25},
			},
		}
	}
	cols := captureColumns(h)

	if _, err := h.sync.Sync(context.Background(), h.info(), nil, false); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	c := (*cols)[0]
	for _, want := range []string{"ST_SimplifyPreserveTopology(ST_SetSRID(", ", 3577))", ", 6.25)"} {
		if !strings.Contains(c.Footprint, want) {
			t.Errorf("footprint expression lacks %q:\n%s", want, c.Footprint)
		}
	}

	if !strings.Contains(c.RegionCode, "ST_Centroid(ST_Transform(") || !strings.Contains(c.RegionCode, "100000") {
		t.Errorf("region expression = %s", c.RegionCode)
	}
}

func TestSync_InfersDefaultCRSOnce(t *testing.T) {
	h := newHarness()
	h.product = func() *catalog.Product {
		return &catalog.Product{ID: testProductID, Name: testProductName, Metadata: spatialMetadata(), DefaultCRS: albersWKT}
	}
	h.catalog.crsCandidates = func(context.Context, []int) ([]crs.Candidate, error) {
		return []crs.Candidate{
			{Code: crs.Code{Authority: "EPSG", Code: 4326}, WKT: `GEOGCS["WGS 84",DATUM["WGS_1984"]]`},
			{Code: crs.Code{Authority: "EPSG", Code: 3577}, WKT: albersWKT},
		}, nil
	}

	var srids []int

	h.catalog.sridFor = func(_ context.Context, code crs.Code) (int, error) {
		srids = append(srids, code.Code)
		return code.Code, nil
	}

	for range 2 {
		if _, err := h.sync.Sync(context.Background(), h.info(), nil, false); err != nil {
			t.Fatalf("Sync: %v", err)
		}
	}

	if n := h.catalog.count("CRSCandidates"); n != 1 {
		t.Errorf("candidates loaded %d times, want 1", n)
	}

	if len(srids) != 2 || srids[0] != 3577 {
		t.Errorf("SRID lookups = %v, want EPSG:3577 each run", srids)
	}
}

func TestSync_ConfigurationErrorBeforeMutation(t *testing.T) {
	h := newHarness()
	h.product = func() *catalog.Product {
		md := eoMetadata()
		delete(md.Fields, "time")

		return &catalog.Product{ID: testProductID, Name: testProductName, Metadata: md}
	}

	_, err := h.sync.Sync(context.Background(), h.info(), nil, true)
	if !models.IsConfigurationError(err) {
		t.Fatalf("err = %v, want a configuration error", err)
	}

	if h.extents.count("DeleteArchived")+h.extents.count("DeleteOrphans")+h.extents.count("UpsertExtents") != 0 {
		t.Error("extent rows were modified before the configuration was checked")
	}
}

func sceneDocument(path, rowStart, rowEnd int) json.RawMessage {
	doc, _ := json.Marshal(map[string]any{
		"image": map[string]any{
			"satellite_ref_point_start": map[string]int{"x": path, "y": rowStart},
			"satellite_ref_point_end":   map[string]int{"x": path, "y": rowEnd},
		},
	})

	return doc
}

func TestSync_SynthesisesSceneFootprints(t *testing.T) {
	index, err := LoadPathRowIndex(testLogger(), []string{writePathRowShapefile(t, map[[2]int][2]float64{
		{90, 84}: {130, -20},
		{90, 85}: {130, -21},
	})})
	if err != nil {
		t.Fatalf("LoadPathRowIndex: %v", err)
	}

	h := newHarness()
	h.product = func() *catalog.Product {
		return &catalog.Product{ID: testProductID, Name: testProductName, Metadata: sceneMetadata()}
	}
	h.sync = NewSynchronizer(h.catalog, h.extents, index, h.sync.union, nil, testLogger())
	h.changes = 3

	withTiles := uuid.New()
	h.extents.missingFootprints = func(context.Context, int) ([]models.DatasetDocument, error) {
		return []models.DatasetDocument{
			{ID: withTiles, Metadata: sceneDocument(90, 84, 85)},
			{ID: uuid.New(), Metadata: sceneDocument(99, 1, 1)},
			{ID: uuid.New(), Metadata: json.RawMessage(`not json`)},
		}, nil
	}

	var updates []models.FootprintUpdate

	h.extents.setFootprints = func(_ context.Context, u []models.FootprintUpdate) (int, error) {
		updates = u
		return len(u), nil
	}

	if _, err := h.sync.Sync(context.Background(), h.info(), nil, false); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(updates) != 1 {
		t.Fatalf("got %d footprint updates, want 1", len(updates))
	}

	u := updates[0]
	if u.ID != withTiles || u.SRID != PathRowSRID {
		t.Errorf("update = %v/%d, want %v/%d", u.ID, u.SRID, withTiles, PathRowSRID)
	}

	fp, err := geometry.FromWKB(u.WKB)
	if err != nil {
		t.Fatalf("decoding footprint: %v", err)
	}

	if fp.Area() != 2 {
		t.Errorf("footprint area = %v, want the two tiles", fp.Area())
	}
}

func TestSync_SynthesisesFootprintsForRegionFieldProducts(t *testing.T) {
	index, err := LoadPathRowIndex(testLogger(), []string{writePathRowShapefile(t, map[[2]int][2]float64{
		{90, 84}: {130, -20},
	})})
	if err != nil {
		t.Fatalf("LoadPathRowIndex: %v", err)
	}

	h := newHarness()
	h.product = func() *catalog.Product {
		md := sceneMetadata()
		md.Fields["region_code"] = catalog.Field{Name: "region_code", Offset: []string{"region_code"}}

		return &catalog.Product{ID: testProductID, Name: testProductName, Metadata: md}
	}
	h.sync = NewSynchronizer(h.catalog, h.extents, index, h.sync.union, nil, testLogger())
	h.changes = 1

	h.extents.missingFootprints = func(context.Context, int) ([]models.DatasetDocument, error) {
		return []models.DatasetDocument{{ID: uuid.New(), Metadata: sceneDocument(90, 84, 84)}}, nil
	}

	var updates []models.FootprintUpdate

	h.extents.setFootprints = func(_ context.Context, u []models.FootprintUpdate) (int, error) {
		updates = u
		return len(u), nil
	}

	info := h.info()
	if info.Region.Kind != region.KindField {
		t.Fatalf("region kind = %s, want field", info.Region.Kind)
	}

	if _, err := h.sync.Sync(context.Background(), info, nil, false); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(updates) != 1 {
		t.Errorf("got %d footprint updates, want 1", len(updates))
	}
}

func TestSync_UsesGivenRegionResolver(t *testing.T) {
	h := newHarness()
	h.product = func() *catalog.Product {
		return &catalog.Product{ID: testProductID, Name: testProductName, Metadata: sceneMetadata()}
	}
	got := captureColumns(h)

	info := &ProductInfo{Product: h.product(), Region: region.Resolver{Kind: region.KindNone}}
	if _, err := h.sync.Sync(context.Background(), info, nil, false); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(*got) != 1 || (*got)[0].RegionCode != "NULL" {
		t.Errorf("region code columns = %+v, want NULL from the given resolver", *got)
	}
}

func TestSceneFootprint_Simplified(t *testing.T) {
	// A bottom edge with a vertex 1e-5 degrees off the line.
	tile := geometry.Polygon([][]float64{
		{130, -20}, {130, -19}, {131, -19}, {131, -20}, {130.5, -20.00001},
	})
	index := &PathRowIndex{tiles: map[pathRow][]*geos.Geom{{path: 90, row: 84}: {tile}}}
	s := NewSynchronizer(nil, nil, index, geometry.NewResolver(testLogger()), nil, testLogger())

	var doc catalog.Doc
	if err := json.Unmarshal(sceneDocument(90, 84, 84), &doc); err != nil {
		t.Fatalf("decoding document: %v", err)
	}

	path, row, ok := region.SceneFields(sceneMetadata())
	if !ok {
		t.Fatal("scene metadata has no path/row fields")
	}

	fp := s.sceneFootprint(path, row, doc)
	if fp == nil {
		t.Fatal("sceneFootprint = nil")
	}

	if n := fp.NumCoordinates(); n != 5 {
		t.Errorf("footprint has %d coordinates, want 5", n)
	}
}

func TestSync_NoSynthesisWithoutChanges(t *testing.T) {
	h := newHarness()
	h.product = func() *catalog.Product {
		return &catalog.Product{ID: testProductID, Name: testProductName, Metadata: sceneMetadata()}
	}

	if _, err := h.sync.Sync(context.Background(), h.info(), nil, false); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if n := h.extents.count("MissingFootprints"); n != 0 {
		t.Errorf("MissingFootprints called %d times, want 0", n)
	}
}

func TestInspect_EO3GridDataset(t *testing.T) {
	h := newHarness()
	id := uuid.New()
	h.catalog.sampleDataset = func(_ context.Context, _ int, want *uuid.UUID) (models.DatasetDocument, error) {
		if want == nil || *want != id {
			t.Errorf("sampled %v, want %v", want, id)
		}

		return models.DatasetDocument{ID: id, Metadata: json.RawMessage(`{
			"crs": "epsg:32653",
			"geometry": {"type": "Polygon", "coordinates": [[[0, 0], [0, 10], [10, 10], [10, 0], [0, 0]]]}
		}`)}, nil
	}

	p := &catalog.Product{
		ID:       testProductID,
		Name:     "ga_s2am_ard_3",
		Metadata: eo3Metadata(),
		Grid:     &catalog.GridSpec{TileSize: &[2]float64{100, 100}},
	}

	got, err := h.sync.Inspect(context.Background(), p, &id)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	if got.CRS != "EPSG:32653" || got.DefaultCRS != "" {
		t.Errorf("crs = %q, default = %q", got.CRS, got.DefaultCRS)
	}

	if got.Footprint == nil || got.Footprint.Area() != 100 {
		t.Errorf("footprint = %s, want the 10x10 square", got.FootprintWKT())
	}

	if got.RegionKind != "grid" || got.RegionCode != "0_0" || got.RegionLabel != "Tile +0, +0" {
		t.Errorf("region = %s %q %q", got.RegionKind, got.RegionCode, got.RegionLabel)
	}
}

func TestInspect_LegacyDataset(t *testing.T) {
	h := newHarness()
	h.catalog.sampleDataset = func(context.Context, int, *uuid.UUID) (models.DatasetDocument, error) {
		return models.DatasetDocument{ID: uuid.New(), Metadata: json.RawMessage(`{
			"grid_spatial": {"projection": {
				"datum": "GDA94",
				"zone": -55,
				"geo_ref_points": {
					"ll": {"x": 0, "y": 0}, "ul": {"x": 0, "y": 4},
					"ur": {"x": 5, "y": 4}, "lr": {"x": 5, "y": 0}
				}
			}}
		}`)}, nil
	}

	p := &catalog.Product{ID: testProductID, Name: testProductName, Metadata: spatialMetadata(), DefaultCRS: "EPSG:4326"}

	got, err := h.sync.Inspect(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	if got.CRS != "EPSG:28355" || got.DefaultCRS != "EPSG:4326" {
		t.Errorf("crs = %q, default = %q", got.CRS, got.DefaultCRS)
	}

	if got.Footprint == nil || got.Footprint.Area() != 20 {
		t.Errorf("footprint = %s, want the corner rectangle", got.FootprintWKT())
	}

	if got.RegionKind != "none" || got.RegionCode != "" {
		t.Errorf("region = %s %q, want none", got.RegionKind, got.RegionCode)
	}
}

func TestInspect_EmptyProduct(t *testing.T) {
	h := newHarness()

	if _, err := h.sync.Inspect(context.Background(), h.product(), nil); err == nil {
		t.Error("expected an error for a product without datasets")
	}
}
