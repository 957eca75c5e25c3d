package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for lookups.
var (
	ErrProductNotFound = errors.New("product summary not found")
	ErrUnknownProduct  = errors.New("product not in catalog")
	ErrOverviewMissing = errors.New("overview not found")
	ErrInvalidPeriod   = errors.New("invalid calendar period")
	ErrUnknownCRS      = errors.New("crs is not known to postgis")
)

// Sentinel errors raised while building summaries.
var (
	// ErrEmptyCatalog is returned by sampling queries when the product has no active datasets.
	ErrEmptyCatalog = errors.New("no active datasets in catalog")

	// ErrUnionExhausted means every union fallback strategy failed.
	ErrUnionExhausted = errors.New("geometry union exhausted all strategies")

	// ErrMixedFootprintCRS is returned when combining overviews stored in different footprint CRSes.
	ErrMixedFootprintCRS = errors.New("overviews have different footprint crses")

	// ErrMissingRefreshTime is returned when a period is summarised without an as-of refresh time.
	ErrMissingRefreshTime = errors.New("product refresh time is required")
)

// ConfigurationError reports a product whose definition cannot be summarised,
// such as a default CRS that cannot be resolved to an authority code.
type ConfigurationError struct {
	Product string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("product %q is not supported: %s", e.Product, e.Reason)
}

// IsConfigurationError reports whether err wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError

	return errors.As(err, &ce)
}
