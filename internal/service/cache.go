package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/persistorai/explorer/internal/catalog"
	"github.com/persistorai/explorer/internal/metrics"
	"github.com/persistorai/explorer/internal/models"
	"github.com/persistorai/explorer/internal/region"
)

const (
	maxCachedProducts = 512
	maxCachedSRIDs    = 256
	sridNameTTL       = 24 * time.Hour
)

// ProductInfo is a catalog product with the per-product configuration the
// engine derives from it.
type ProductInfo struct {
	*catalog.Product
	Region region.Resolver
}

// ProductCache caches catalog products, product summaries and SRID names.
// Entries expire after a TTL and are invalidated explicitly whenever a
// product summary is written, locally or by another process.
type ProductCache struct {
	catalog   CatalogReader
	products  ProductStore
	overrides catalog.Overrides

	definitions *expirable.LRU[string, *ProductInfo]
	summaries   *expirable.LRU[string, *models.ProductSummary]
	sridNames   *expirable.LRU[int, string]
}

// NewProductCache creates a ProductCache. Overrides are applied to every
// product definition as it is loaded.
func NewProductCache(cat CatalogReader, products ProductStore, overrides catalog.Overrides, ttl time.Duration) *ProductCache {
	return &ProductCache{
		catalog:     cat,
		products:    products,
		overrides:   overrides,
		definitions: expirable.NewLRU[string, *ProductInfo](maxCachedProducts, nil, ttl),
		summaries:   expirable.NewLRU[string, *models.ProductSummary](maxCachedProducts, nil, ttl),
		sridNames:   expirable.NewLRU[int, string](maxCachedSRIDs, nil, sridNameTTL),
	}
}

// Product returns the catalog definition of a product.
func (c *ProductCache) Product(ctx context.Context, name string) (*ProductInfo, error) {
	if info, ok := c.definitions.Get(name); ok {
		return info, nil
	}

	p, err := c.catalog.Product(ctx, name)
	if err != nil {
		return nil, err
	}

	c.overrides.Apply(p)

	info := &ProductInfo{Product: p, Region: region.ForProduct(p)}
	c.definitions.Add(name, info)

	return info, nil
}

// Summary returns the stored summary of a product, or nil if it was never
// summarised.
func (c *ProductCache) Summary(ctx context.Context, name string) (*models.ProductSummary, error) {
	if s, ok := c.summaries.Get(name); ok {
		return s, nil
	}

	s, err := c.products.Get(ctx, name)
	if errors.Is(err, models.ErrProductNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	c.summaries.Add(name, s)

	return s, nil
}

// SRIDName returns the authority name of a PostGIS SRID.
func (c *ProductCache) SRIDName(ctx context.Context, srid int) (string, error) {
	if name, ok := c.sridNames.Get(srid); ok {
		return name, nil
	}

	name, err := c.catalog.SRIDName(ctx, srid)
	if err != nil {
		return "", fmt.Errorf("naming footprint crs: %w", err)
	}

	c.sridNames.Add(srid, name)

	return name, nil
}

// Invalidate drops every cached entry of a product.
func (c *ProductCache) Invalidate(name string) {
	c.definitions.Remove(name)
	c.summaries.Remove(name)
	metrics.CacheInvalidations.Inc()
}
