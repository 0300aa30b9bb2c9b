package models

import (
	"time"
)

type ScanStatus string

const (
	ScanStatusQueued     ScanStatus = "Queued"
	ScanStatusInProgress ScanStatus = "In Progress"
	ScanStatusCompleted  ScanStatus = "Completed"
	ScanStatusFailed     ScanStatus = "Failed"
)

// Terminal reports whether a scan in this status can no longer transition.
func (s ScanStatus) Terminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed
}

// Scan is one orchestrated assessment run against a target URL.
type Scan struct {
	ID            string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TargetURL     string     `gorm:"index" json:"target_url"`
	ScanDate      time.Time  `gorm:"index" json:"scan_date"`
	Status        ScanStatus `json:"status"`
	OverallRating ScanRating `json:"overall_rating"`
	ToolsUsed     []string   `gorm:"serializer:json;type:text" json:"tools_used"`
	ErrorMessage  string     `json:"error_message,omitempty"`

	Vulnerabilities []Vulnerability `gorm:"foreignKey:ScanID;constraint:OnDelete:CASCADE" json:"vulnerabilities"`
	ToolFailures    []ToolFailure   `gorm:"foreignKey:ScanID;constraint:OnDelete:CASCADE" json:"tool_failures,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// ToolFailure records one adapter that failed or timed out during a scan.
// A scan with tool failures still completes as long as one adapter succeeded.
type ToolFailure struct {
	ID     uint   `gorm:"primaryKey" json:"-"`
	ScanID string `gorm:"index;type:varchar(64)" json:"-"`
	ToolID string `json:"tool_id"`
	Error  string `json:"error"`
}

type SortKey string

const (
	SortByID        SortKey = "id"
	SortByTargetURL SortKey = "targetUrl"
	SortByScanDate  SortKey = "scanDate"
	SortByRating    SortKey = "overallRating"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortByID, SortByTargetURL, SortByScanDate, SortByRating:
		return true
	}
	return false
}

type SortDirection string

const (
	SortAscending  SortDirection = "ascending"
	SortDescending SortDirection = "descending"
)

// ScanFilter narrows and orders a scan listing. Zero values mean "no
// constraint". EndDate is inclusive of the entire named day.
type ScanFilter struct {
	Search    string
	TargetURL string
	Rating    *ScanRating
	StartDate *time.Time
	EndDate   *time.Time

	SortKey       SortKey
	SortDirection SortDirection
}
