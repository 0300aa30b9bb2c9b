package tools

import (
	"fmt"
	"strings"

	"opensentinel/internal/models"

	"github.com/google/uuid"
)

// Normalize maps a tool-reported finding into the canonical vulnerability
// shape. The resulting id is scoped by scan and tool so that ids never
// collide within a scan, even across tools reusing finding ids.
func Normalize(scanID, toolID string, raw RawFinding) models.Vulnerability {
	findingID := raw.ID
	if findingID == "" {
		findingID = uuid.New().String()
	}

	return models.Vulnerability{
		ID:          fmt.Sprintf("%s-%s-%s", scanID, strings.ToLower(toolID), findingID),
		Name:        raw.Name,
		Description: raw.Description,
		Severity:    normalizeSeverity(raw.Severity),
		Status:      models.VulnStatusOpen,
		CVEID:       raw.CVEID,
		CVSSScore:   raw.CVSSScore,
		EPSSScore:   raw.EPSSScore,
		IsKEV:       raw.IsKEV,
		Remediation: raw.Remediation,
		Evidence:    raw.Evidence,
	}
}

// normalizeSeverity maps tool severity vocabularies onto the canonical
// ratings. Unknown or missing severities default to Informational.
func normalizeSeverity(severity string) models.ScanRating {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "critical":
		return models.RatingCritical
	case "high":
		return models.RatingHigh
	case "medium", "moderate":
		return models.RatingMedium
	case "low":
		return models.RatingLow
	default:
		return models.RatingInformational
	}
}
