package handlers

import (
	stderrors "errors"
	"net/http"
	"time"

	"opensentinel/internal/models"
	"opensentinel/internal/services"
	"opensentinel/pkg/errors"
	"opensentinel/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ScanHandler struct {
	scanService services.ScanServiceMethods
	logger      *logger.Logger
}

func NewScanHandler(scanService services.ScanServiceMethods) *ScanHandler {
	return &ScanHandler{scanService: scanService, logger: logger.Default()}
}

// respondError maps service errors to HTTP statuses. Validation details
// are safe to expose; everything else gets the generic message.
func (h *ScanHandler) respondError(c *gin.Context, err error, genericMessage string) {
	var ve *errors.ValidationError
	switch {
	case stderrors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
	case errors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
	case stderrors.Is(err, errors.ErrScanNotCancellable):
		c.JSON(http.StatusConflict, gin.H{"error": "Scan is already finished"})
	default:
		h.logger.WithError(err).Error(genericMessage)
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericMessage})
	}
}

func (h *ScanHandler) StartScan(c *gin.Context) {
	var request ScanRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.WithError(err).Error("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	h.logger.WithFields(logger.Fields{
		"target":  request.TargetURL,
		"tools":   request.Tools,
		"profile": request.Profile,
	}).Info("Starting scan")

	scan, err := h.scanService.StartScan(c.Request.Context(), request.TargetURL, request.Tools, request.Profile)
	if err != nil {
		h.respondError(c, err, "Failed to start scan")
		return
	}
	c.JSON(http.StatusAccepted, scan)
}

func (h *ScanHandler) GetScan(c *gin.Context) {
	scan, err := h.scanService.GetScan(c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Failed to get scan")
		return
	}
	c.JSON(http.StatusOK, scan)
}

func (h *ScanHandler) ListScans(c *gin.Context) {
	filter, err := parseScanFilter(c)
	if err != nil {
		h.respondError(c, err, "Failed to list scans")
		return
	}

	scans, err := h.scanService.ListScans(filter)
	if err != nil {
		h.respondError(c, err, "Failed to list scans")
		return
	}
	if scans == nil {
		scans = []models.Scan{}
	}
	c.JSON(http.StatusOK, scans)
}

func (h *ScanHandler) UpdateVulnerabilityStatus(c *gin.Context) {
	var request StatusUpdateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	scan, err := h.scanService.UpdateVulnerabilityStatus(
		c.Param("id"), c.Param("vulnId"), models.VulnerabilityStatus(request.Status))
	if err != nil {
		h.respondError(c, err, "Failed to update vulnerability status")
		return
	}
	c.JSON(http.StatusOK, scan)
}

func (h *ScanHandler) UpdateVulnerabilityNotes(c *gin.Context) {
	var request NotesUpdateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	scan, err := h.scanService.UpdateVulnerabilityNotes(c.Param("id"), c.Param("vulnId"), request.Notes)
	if err != nil {
		h.respondError(c, err, "Failed to update vulnerability notes")
		return
	}
	c.JSON(http.StatusOK, scan)
}

func (h *ScanHandler) CancelScan(c *gin.Context) {
	if err := h.scanService.CancelScan(c.Param("id")); err != nil {
		h.respondError(c, err, "Failed to cancel scan")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func (h *ScanHandler) DeleteScan(c *gin.Context) {
	if err := h.scanService.DeleteScan(c.Param("id")); err != nil {
		h.respondError(c, err, "Failed to delete scan")
		return
	}
	c.Status(http.StatusNoContent)
}

func parseScanFilter(c *gin.Context) (models.ScanFilter, error) {
	filter := models.ScanFilter{
		Search:        c.Query("search"),
		TargetURL:     c.Query("targetUrl"),
		SortKey:       models.SortKey(c.DefaultQuery("sortKey", string(models.SortByScanDate))),
		SortDirection: models.SortDirection(c.DefaultQuery("sortDirection", string(models.SortDescending))),
	}

	if !filter.SortKey.Valid() {
		return filter, errors.NewValidationError("sortKey", filter.SortKey, "unknown sort key")
	}
	if filter.SortDirection != models.SortAscending && filter.SortDirection != models.SortDescending {
		return filter, errors.NewValidationError("sortDirection", filter.SortDirection, "must be ascending or descending")
	}

	if raw := c.Query("rating"); raw != "" {
		rating := models.ScanRating(raw)
		if !rating.Valid() {
			return filter, errors.NewValidationError("rating", raw, "unknown rating")
		}
		filter.Rating = &rating
	}
	if raw := c.Query("startDate"); raw != "" {
		start, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, errors.NewValidationError("startDate", raw, "expected YYYY-MM-DD")
		}
		filter.StartDate = &start
	}
	if raw := c.Query("endDate"); raw != "" {
		end, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, errors.NewValidationError("endDate", raw, "expected YYYY-MM-DD")
		}
		filter.EndDate = &end
	}
	return filter, nil
}
