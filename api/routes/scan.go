package routes

import (
	"opensentinel/internal/handlers"
	"opensentinel/internal/services"

	"github.com/gin-gonic/gin"
)

func InitScanRoutes(router *gin.RouterGroup, scanService services.ScanServiceMethods) {
	handler := handlers.NewScanHandler(scanService)

	scanRoutes := router.Group("/scans")
	{
		scanRoutes.POST("", handler.StartScan)
		scanRoutes.GET("", handler.ListScans)
		scanRoutes.GET("/:id", handler.GetScan)
		scanRoutes.POST("/:id/cancel", handler.CancelScan)
		scanRoutes.DELETE("/:id", handler.DeleteScan)
		scanRoutes.PATCH("/:id/vulnerabilities/:vulnId/status", handler.UpdateVulnerabilityStatus)
		scanRoutes.PATCH("/:id/vulnerabilities/:vulnId/notes", handler.UpdateVulnerabilityNotes)
	}
}
