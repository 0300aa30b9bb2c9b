// Package rating derives a scan's overall rating from its vulnerabilities.
package rating

import (
	"opensentinel/internal/models"
)

// severityOrder is the fixed precedence used both for rating computation
// and for rating-ordered listings. Lower index means more severe.
var severityOrder = []models.ScanRating{
	models.RatingCritical,
	models.RatingHigh,
	models.RatingMedium,
	models.RatingLow,
	models.RatingInformational,
	models.RatingNone,
}

// Compute returns the highest severity among vulnerabilities whose status
// is Open or Acknowledged, or RatingNone when no such vulnerability exists.
// Fixed and False Positive findings do not contribute to the rating.
func Compute(vulnerabilities []models.Vulnerability) models.ScanRating {
	best := len(severityOrder) - 1
	found := false

	for _, v := range vulnerabilities {
		if v.Status != models.VulnStatusOpen && v.Status != models.VulnStatusAcknowledged {
			continue
		}
		found = true
		if idx := SortValue(v.Severity); idx < best {
			best = idx
		}
	}

	if !found {
		return models.RatingNone
	}
	return severityOrder[best]
}

// SortValue maps a rating onto its precedence index, Critical first.
// Unknown ratings sort after RatingNone.
func SortValue(r models.ScanRating) int {
	for i, s := range severityOrder {
		if s == r {
			return i
		}
	}
	return len(severityOrder)
}
