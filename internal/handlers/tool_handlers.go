package handlers

import (
	"net/http"

	"opensentinel/internal/services"

	"github.com/gin-gonic/gin"
)

type ToolHandler struct {
	toolService services.ToolServiceMethods
}

func NewToolHandler(toolService services.ToolServiceMethods) *ToolHandler {
	return &ToolHandler{toolService: toolService}
}

// ListTools exposes the registered adapters and the scan profiles so a
// frontend can populate its tool picker.
func (h *ToolHandler) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, ToolsResponse{
		Tools:    h.toolService.ListTools(),
		Profiles: h.toolService.ListProfiles(),
	})
}
