package dao

import (
	stderrors "errors"
	"fmt"
	"time"

	"opensentinel/internal/models"
	"opensentinel/pkg/errors"

	"gorm.io/gorm"
)

// ScanDAO is the persistence boundary for scans and their vulnerabilities.
type ScanDAO interface {
	SaveScan(scan *models.Scan) error
	GetScan(id string) (*models.Scan, error)
	ListScans(filter models.ScanFilter) ([]models.Scan, error)
	// SetScanStatus updates the lifecycle fields without touching findings.
	SetScanStatus(id string, status models.ScanStatus, rating models.ScanRating, errorMessage string) error
	AddVulnerabilities(scanID string, vulns []models.Vulnerability) error
	AddToolFailure(failure *models.ToolFailure) error
	GetVulnerability(scanID, vulnID string) (*models.Vulnerability, error)
	UpdateVulnerability(vuln *models.Vulnerability) error
	DeleteScan(id string) error
}

type scanDAO struct {
	db *gorm.DB
}

func NewScanDAO(db *gorm.DB) ScanDAO {
	return &scanDAO{db: db}
}

func (dao *scanDAO) SaveScan(scan *models.Scan) error {
	if err := dao.db.Create(scan).Error; err != nil {
		return &errors.StoreError{Op: "save scan", Err: err}
	}
	return nil
}

func (dao *scanDAO) GetScan(id string) (*models.Scan, error) {
	var scan models.Scan
	err := dao.db.
		Preload("Vulnerabilities", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		}).
		Preload("ToolFailures").
		Where("id = ?", id).
		First(&scan).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &errors.NotFoundError{Resource: "scan", ID: id}
		}
		return nil, &errors.StoreError{Op: "get scan", Err: err}
	}
	return &scan, nil
}

// ratingOrderExpr sorts ratings by severity rather than alphabetically.
const ratingOrderExpr = `CASE overall_rating
	WHEN 'Critical' THEN 0
	WHEN 'High' THEN 1
	WHEN 'Medium' THEN 2
	WHEN 'Low' THEN 3
	WHEN 'Informational' THEN 4
	WHEN 'None' THEN 5
	ELSE 6 END`

var sortColumns = map[models.SortKey]string{
	models.SortByID:        "id",
	models.SortByTargetURL: "target_url",
	models.SortByScanDate:  "scan_date",
	models.SortByRating:    ratingOrderExpr,
}

func (dao *scanDAO) ListScans(filter models.ScanFilter) ([]models.Scan, error) {
	query := dao.db.Model(&models.Scan{}).
		Preload("Vulnerabilities", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		}).
		Preload("ToolFailures")

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("target_url ILIKE ? OR id ILIKE ?", pattern, pattern)
	}
	if filter.TargetURL != "" {
		query = query.Where("target_url ILIKE ?", "%"+filter.TargetURL+"%")
	}
	if filter.Rating != nil {
		query = query.Where("overall_rating = ?", *filter.Rating)
	}
	if filter.StartDate != nil {
		query = query.Where("scan_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		// Inclusive of the whole end day.
		dayStart := filter.EndDate.Truncate(24 * time.Hour)
		query = query.Where("scan_date < ?", dayStart.Add(24*time.Hour))
	}

	sortKey := filter.SortKey
	if sortKey == "" {
		sortKey = models.SortByScanDate
	}
	column, ok := sortColumns[sortKey]
	if !ok {
		return nil, &errors.ValidationError{
			Field:   "sortKey",
			Value:   string(sortKey),
			Message: "unknown sort key",
		}
	}
	direction := "ASC"
	if filter.SortDirection == models.SortDescending || filter.SortDirection == "" {
		direction = "DESC"
	}
	order := fmt.Sprintf("%s %s", column, direction)
	if sortKey != models.SortByScanDate {
		// Ties on the primary key fall back to newest-first.
		order += ", scan_date DESC"
	}

	var scans []models.Scan
	if err := query.Order(order).Find(&scans).Error; err != nil {
		return nil, &errors.StoreError{Op: "list scans", Err: err}
	}
	return scans, nil
}

func (dao *scanDAO) SetScanStatus(id string, status models.ScanStatus, rating models.ScanRating, errorMessage string) error {
	result := dao.db.Model(&models.Scan{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         status,
			"overall_rating": rating,
			"error_message":  errorMessage,
			"updated_at":     time.Now().Unix(),
		})
	if result.Error != nil {
		return &errors.StoreError{Op: "set scan status", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return &errors.NotFoundError{Resource: "scan", ID: id}
	}
	return nil
}

func (dao *scanDAO) AddVulnerabilities(scanID string, vulns []models.Vulnerability) error {
	if len(vulns) == 0 {
		return nil
	}
	for i := range vulns {
		vulns[i].ScanID = scanID
	}
	if err := dao.db.Create(&vulns).Error; err != nil {
		return &errors.StoreError{Op: "add vulnerabilities", Err: err}
	}
	return nil
}

func (dao *scanDAO) AddToolFailure(failure *models.ToolFailure) error {
	if err := dao.db.Create(failure).Error; err != nil {
		return &errors.StoreError{Op: "add tool failure", Err: err}
	}
	return nil
}

func (dao *scanDAO) GetVulnerability(scanID, vulnID string) (*models.Vulnerability, error) {
	var vuln models.Vulnerability
	err := dao.db.
		Where("scan_id = ? AND id = ?", scanID, vulnID).
		First(&vuln).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &errors.NotFoundError{Resource: "vulnerability", ID: vulnID}
		}
		return nil, &errors.StoreError{Op: "get vulnerability", Err: err}
	}
	return &vuln, nil
}

func (dao *scanDAO) UpdateVulnerability(vuln *models.Vulnerability) error {
	if err := dao.db.Save(vuln).Error; err != nil {
		return &errors.StoreError{Op: "update vulnerability", Err: err}
	}
	return nil
}

func (dao *scanDAO) DeleteScan(id string) error {
	result := dao.db.Select("Vulnerabilities", "ToolFailures").
		Delete(&models.Scan{ID: id})
	if result.Error != nil {
		return &errors.StoreError{Op: "delete scan", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return &errors.NotFoundError{Resource: "scan", ID: id}
	}
	return nil
}
