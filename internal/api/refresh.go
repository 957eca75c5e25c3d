package api

import (
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/explorer/internal/domain"
	"github.com/persistorai/explorer/internal/service"
)

// RefreshHandler queues product refreshes for the background worker.
type RefreshHandler struct {
	catalog CatalogLister
	queue   RefreshQueue
	log     *logrus.Logger
}

// NewRefreshHandler creates a RefreshHandler.
func NewRefreshHandler(catalog CatalogLister, queue RefreshQueue, log *logrus.Logger) *RefreshHandler {
	return &RefreshHandler{catalog: catalog, queue: queue, log: log}
}

// Refresh handles POST /api/v1/products/:name/refresh. The body is optional.
func (h *RefreshHandler) Refresh(c *gin.Context) {
	name := productParam(c)
	if name == "" {
		return
	}

	var opts domain.RefreshOptions
	if err := c.ShouldBindJSON(&opts); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	names, err := h.catalog.ProductNames(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("listing catalog products")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	if !slices.Contains(names, name) {
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "product not in catalog")

		return
	}

	if !h.queue.Enqueue(service.RefreshJob{Product: name, Options: opts}) {
		respondError(c, http.StatusServiceUnavailable, ErrCodeQueueFull, "a refresh is already pending or the queue is full")

		return
	}

	h.log.WithFields(logrus.Fields{
		"product":          name,
		"force":            opts.Force,
		"recreate_extents": opts.RecreateExtents,
	}).Info("refresh queued")

	c.JSON(http.StatusAccepted, gin.H{"product": name, "status": "queued"})
}
