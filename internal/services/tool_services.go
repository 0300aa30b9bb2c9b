package services

import (
	"opensentinel/pkg/tools"
)

// ToolInfo describes one registered adapter for API consumers.
type ToolInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// ProfileInfo describes a named tool preset.
type ProfileInfo struct {
	Name  string   `json:"name"`
	Tools []string `json:"tools"`
}

type ToolServiceMethods interface {
	ListTools() []ToolInfo
	ListProfiles() []ProfileInfo
}

type toolService struct {
	registry *tools.Registry
}

func NewToolService(registry *tools.Registry) ToolServiceMethods {
	return &toolService{registry: registry}
}

func (s *toolService) ListTools() []ToolInfo {
	adapters := s.registry.All()
	infos := make([]ToolInfo, 0, len(adapters))
	for _, adapter := range adapters {
		infos = append(infos, ToolInfo{
			ID:          adapter.ID(),
			Description: adapter.Description(),
		})
	}
	return infos
}

func (s *toolService) ListProfiles() []ProfileInfo {
	names := tools.ProfileNames()
	profiles := make([]ProfileInfo, 0, len(names))
	for _, name := range names {
		ids, err := tools.ProfileTools(name)
		if err != nil {
			continue
		}
		profiles = append(profiles, ProfileInfo{Name: name, Tools: ids})
	}
	return profiles
}
