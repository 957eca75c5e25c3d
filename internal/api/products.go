package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/explorer/internal/models"
	"github.com/persistorai/explorer/internal/summary"
)

// ProductHandler serves the read-only summary endpoints.
type ProductHandler struct {
	summaries SummaryReader
	loc       *time.Location
	log       *logrus.Logger
}

// NewProductHandler creates a ProductHandler. loc is the grouping time zone
// used to turn period parameters into dataset time windows.
func NewProductHandler(summaries SummaryReader, loc *time.Location, log *logrus.Logger) *ProductHandler {
	if loc == nil {
		loc = time.UTC
	}

	return &ProductHandler{summaries: summaries, loc: loc, log: log}
}

// List handles GET /api/v1/products.
func (h *ProductHandler) List(c *gin.Context) {
	names, err := h.summaries.ProductNames(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("listing products")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"products": names})
}

// productParam returns the validated :name parameter, or "" after
// responding with an error.
func productParam(c *gin.Context) string {
	name := c.Param("name")
	if err := validateName("product name", name); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return ""
	}

	return name
}

// Get handles GET /api/v1/products/:name.
func (h *ProductHandler) Get(c *gin.Context) {
	name := productParam(c)
	if name == "" {
		return
	}

	p, err := h.summaries.GetProductSummary(c.Request.Context(), name)
	if err != nil {
		h.log.WithError(err).WithField("product", name).Error("getting product summary")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	if p == nil {
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "product has not been summarised")

		return
	}

	c.JSON(http.StatusOK, p)
}

// Overview handles GET /api/v1/products/:name/overview?year=&month=&day=.
func (h *ProductHandler) Overview(c *gin.Context) {
	name := productParam(c)
	if name == "" {
		return
	}

	year, month, day, err := parsePeriod(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return
	}

	o, err := h.summaries.Get(c.Request.Context(), name, year, month, day)
	if err != nil {
		if errors.Is(err, models.ErrInvalidPeriod) {
			respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

			return
		}

		h.log.WithError(err).WithFields(logrus.Fields{
			"product": name,
			"year":    year,
			"month":   month,
			"day":     day,
		}).Error("getting overview")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	if o == nil {
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "no summary for this period")

		return
	}

	c.JSON(http.StatusOK, o)
}

// Regions handles GET /api/v1/products/:name/regions.
func (h *ProductHandler) Regions(c *gin.Context) {
	name := productParam(c)
	if name == "" {
		return
	}

	regions, err := h.summaries.RegionSummaries(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "product has not been summarised")

			return
		}

		h.log.WithError(err).WithField("product", name).Error("listing regions")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	if regions == nil {
		regions = []models.RegionSummary{}
	}

	c.JSON(http.StatusOK, gin.H{"regions": regions})
}

// RegionDatasets handles GET /api/v1/products/:name/regions/:code/datasets.
func (h *ProductHandler) RegionDatasets(c *gin.Context) {
	name := productParam(c)
	if name == "" {
		return
	}

	code := c.Param("code")
	if err := validateName("region code", code); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	year, month, day, err := parsePeriod(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return
	}

	var window *models.TimeRange

	if year != 0 {
		r, err := summary.PeriodRange(year, month, day, h.loc)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

			return
		}

		window = &r
	}

	limit := parseInt(c.DefaultQuery("limit", "100"), 100)
	offset := parseOffset(c.DefaultQuery("offset", "0"))

	ids, err := h.summaries.FindDatasetsForRegion(c.Request.Context(), name, code, window, limit, offset)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "product has not been summarised")

			return
		}

		h.log.WithError(err).WithFields(logrus.Fields{"product": name, "region": code}).Error("finding region datasets")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	if ids == nil {
		ids = []uuid.UUID{}
	}

	c.JSON(http.StatusOK, gin.H{"datasets": ids, "has_more": len(ids) == limit})
}
