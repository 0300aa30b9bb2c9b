package routes

import (
	"opensentinel/internal/handlers"
	"opensentinel/internal/services"

	"github.com/gin-gonic/gin"
)

func InitToolRoutes(router *gin.RouterGroup, toolService services.ToolServiceMethods) {
	handler := handlers.NewToolHandler(toolService)

	toolRoutes := router.Group("/tools")
	{
		toolRoutes.GET("", handler.ListTools)
	}
}
