package models

// ScanRating doubles as a vulnerability severity and a scan's derived
// overall rating. RatingNone only ever appears as an overall rating.
type ScanRating string

const (
	RatingCritical      ScanRating = "Critical"
	RatingHigh          ScanRating = "High"
	RatingMedium        ScanRating = "Medium"
	RatingLow           ScanRating = "Low"
	RatingInformational ScanRating = "Informational"
	RatingNone          ScanRating = "None"
)

func (r ScanRating) Valid() bool {
	switch r {
	case RatingCritical, RatingHigh, RatingMedium, RatingLow, RatingInformational, RatingNone:
		return true
	}
	return false
}

type VulnerabilityStatus string

const (
	VulnStatusOpen          VulnerabilityStatus = "Open"
	VulnStatusAcknowledged  VulnerabilityStatus = "Acknowledged"
	VulnStatusFalsePositive VulnerabilityStatus = "False Positive"
	VulnStatusFixed         VulnerabilityStatus = "Fixed"
)

func (s VulnerabilityStatus) Valid() bool {
	switch s {
	case VulnStatusOpen, VulnStatusAcknowledged, VulnStatusFalsePositive, VulnStatusFixed:
		return true
	}
	return false
}

// Vulnerability is one normalized finding, owned exclusively by its scan.
// Position preserves discovery order within the scan.
type Vulnerability struct {
	ID       string `gorm:"primaryKey;type:varchar(160)" json:"id"`
	ScanID   string `gorm:"index;type:varchar(64)" json:"-"`
	Position int    `json:"-"`

	Name        string              `json:"name"`
	Description string              `json:"description"`
	Severity    ScanRating          `json:"severity"`
	Status      VulnerabilityStatus `json:"status"`
	Notes       string              `json:"notes,omitempty"`

	CVEID       string   `json:"cve_id,omitempty"`
	CVSSScore   *float64 `json:"cvss_score,omitempty"`
	EPSSScore   *float64 `json:"epss_score,omitempty"`
	IsKEV       bool     `json:"is_kev,omitempty"`
	Remediation string   `json:"remediation,omitempty"`
	Evidence    string   `gorm:"type:text" json:"evidence,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}
