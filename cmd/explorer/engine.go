package main

import (
	"context"
	"fmt"

	"github.com/persistorai/explorer/internal/catalog"
	"github.com/persistorai/explorer/internal/dbpool"
	"github.com/persistorai/explorer/internal/geometry"
	"github.com/persistorai/explorer/internal/service"
	"github.com/persistorai/explorer/internal/store"
	"github.com/persistorai/explorer/internal/summary"
)

// engine is the summary engine wired to the database.
type engine struct {
	pool    *dbpool.Pool
	catalog *store.CatalogStore
	cache   *service.ProductCache
	sync    *service.Synchronizer
	orch    *service.Orchestrator
}

func openPool(ctx context.Context) (*dbpool.Pool, error) {
	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return pool, nil
}

// newEngine opens the database and wires stores, caches and services. The
// caller closes the engine.
func newEngine(ctx context.Context) (*engine, error) {
	overrides, err := catalog.LoadOverrides(cfg.ProductConfigFile)
	if err != nil {
		return nil, err
	}

	var pathRows *service.PathRowIndex
	if len(cfg.PathRowShapefiles) > 0 {
		if pathRows, err = service.LoadPathRowIndex(log, cfg.PathRowShapefiles); err != nil {
			return nil, err
		}
	}

	pool, err := openPool(ctx)
	if err != nil {
		return nil, err
	}

	base := store.Base{Pool: pool, Log: log}
	catalogStore := store.NewCatalogStore(base)
	stores := service.Stores{
		Catalog:    catalogStore,
		Extents:    store.NewExtentStore(base),
		Aggregates: store.NewAggregateStore(base),
		Overviews:  store.NewOverviewStore(base),
		Products:   store.NewProductStore(base),
		Regions:    store.NewRegionStore(base),
	}

	union := geometry.NewResolver(log)
	cache := service.NewProductCache(catalogStore, stores.Products, overrides, cfg.CacheTTL)
	sync := service.NewSynchronizer(catalogStore, stores.Extents, pathRows, union, cfg.CRSInferenceCodes, log)
	orch := service.NewOrchestrator(stores, cache, sync,
		summary.NewCombiner(union, cfg.FootprintTolerance, log),
		service.Options{
			Location:        cfg.GroupingLocation,
			OverlapMargin:   cfg.OverlapMargin,
			FootprintSRID:   cfg.FootprintSRID,
			SampleSize:      cfg.SampleSize,
			RegionTolerance: cfg.RegionTolerance,
		}, log)

	return &engine{
		pool:    pool,
		catalog: catalogStore,
		cache:   cache,
		sync:    sync,
		orch:    orch,
	}, nil
}

// product loads a catalog product with the configured overrides applied.
func (e *engine) product(ctx context.Context, name string) (*catalog.Product, error) {
	info, err := e.cache.Product(ctx, name)
	if err != nil {
		return nil, err
	}

	return info.Product, nil
}

func (e *engine) Close() {
	e.pool.Close()
}
