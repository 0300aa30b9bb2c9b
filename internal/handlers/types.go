package handlers

import "opensentinel/internal/services"

type ScanRequest struct {
	TargetURL string   `json:"target_url" binding:"required"`
	Tools     []string `json:"tools"`
	Profile   string   `json:"profile"`
}

type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

type NotesUpdateRequest struct {
	Notes string `json:"notes"`
}

type ToolsResponse struct {
	Tools    []services.ToolInfo    `json:"tools"`
	Profiles []services.ProfileInfo `json:"profiles"`
}
