package routes

import (
	"opensentinel/internal/services"

	"github.com/gin-gonic/gin"
)

func InitRouter(scanService services.ScanServiceMethods, toolService services.ToolServiceMethods) *gin.Engine {
	router := gin.Default()

	api := router.Group("/api")
	{
		InitScanRoutes(api, scanService)
		InitToolRoutes(api, toolService)
	}

	return router
}
