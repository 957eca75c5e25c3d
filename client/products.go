package client

import (
	"context"
	"net/url"
	"strconv"
)

// ProductService reads product summaries and requests refreshes.
type ProductService struct {
	c *Client
}

func productPath(name string) string {
	return "/api/v1/products/" + url.PathEscape(name)
}

// List returns the names of every summarised product.
func (s *ProductService) List(ctx context.Context) ([]string, error) {
	var resp struct {
		Products []string `json:"products"`
	}
	if err := s.c.get(ctx, "/api/v1/products", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// Get returns the stored summary of a product.
func (s *ProductService) Get(ctx context.Context, name string) (*ProductSummary, error) {
	var resp ProductSummary
	if err := s.c.get(ctx, productPath(name), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Overview returns the overview of a product over one period.
func (s *ProductService) Overview(ctx context.Context, name string, p Period) (*Overview, error) {
	var resp Overview
	if err := s.c.get(ctx, productPath(name)+"/overview", p.values(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Regions returns the per-region dataset counts of a product.
func (s *ProductService) Regions(ctx context.Context, name string) ([]Region, error) {
	var resp struct {
		Regions []Region `json:"regions"`
	}
	if err := s.c.get(ctx, productPath(name)+"/regions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Regions, nil
}

// RegionDatasets pages through the dataset ids of one region, optionally
// restricted to a period. A zero limit uses the server default.
func (s *ProductService) RegionDatasets(
	ctx context.Context, name, regionCode string, p Period, limit, offset int,
) (*DatasetPage, error) {
	params := p.values()
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}

	var resp DatasetPage
	path := productPath(name) + "/regions/" + url.PathEscape(regionCode) + "/datasets"
	if err := s.c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh asks the server to refresh a product in the background. It needs
// the admin token.
func (s *ProductService) Refresh(ctx context.Context, name string, opts RefreshOptions) (*RefreshResponse, error) {
	var resp RefreshResponse
	if err := s.c.post(ctx, productPath(name)+"/refresh", opts, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p Period) values() url.Values {
	v := url.Values{}
	if p.Year != 0 {
		v.Set("year", strconv.Itoa(p.Year))
	}
	if p.Month != 0 {
		v.Set("month", strconv.Itoa(p.Month))
	}
	if p.Day != 0 {
		v.Set("day", strconv.Itoa(p.Day))
	}
	return v
}
