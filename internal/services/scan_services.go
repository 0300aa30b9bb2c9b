package services

import (
	"context"
	"time"

	"opensentinel/internal/dao"
	"opensentinel/internal/models"
	"opensentinel/pkg/engine"
	"opensentinel/pkg/errors"
	"opensentinel/pkg/logger"
	"opensentinel/pkg/rating"
	"opensentinel/pkg/tools"
)

type ScanServiceMethods interface {
	// StartScan launches a scan against targetURL. Either toolIDs or a
	// profile name selects the adapters; explicit toolIDs win.
	StartScan(ctx context.Context, targetURL string, toolIDs []string, profile string) (*models.Scan, error)
	GetScan(id string) (*models.Scan, error)
	ListScans(filter models.ScanFilter) ([]models.Scan, error)
	UpdateVulnerabilityStatus(scanID, vulnID string, status models.VulnerabilityStatus) (*models.Scan, error)
	UpdateVulnerabilityNotes(scanID, vulnID, notes string) (*models.Scan, error)
	CancelScan(id string) error
	DeleteScan(id string) error
}

type scanService struct {
	scanDao dao.ScanDAO
	engine  *engine.Engine
	log     *logger.Logger
}

func NewScanService(scanDao dao.ScanDAO, eng *engine.Engine, log *logger.Logger) ScanServiceMethods {
	if log == nil {
		log = logger.Default()
	}
	return &scanService{scanDao: scanDao, engine: eng, log: log}
}

func (s *scanService) StartScan(ctx context.Context, targetURL string, toolIDs []string, profile string) (*models.Scan, error) {
	if len(toolIDs) == 0 && profile != "" {
		resolved, err := tools.ProfileTools(profile)
		if err != nil {
			return nil, err
		}
		toolIDs = resolved
	}
	return s.engine.StartScan(ctx, targetURL, toolIDs)
}

func (s *scanService) GetScan(id string) (*models.Scan, error) {
	return s.scanDao.GetScan(id)
}

func (s *scanService) ListScans(filter models.ScanFilter) ([]models.Scan, error) {
	return s.scanDao.ListScans(filter)
}

// UpdateVulnerabilityStatus sets an analyst triage status and refreshes
// the scan's overall rating. Setting the status it already has is a no-op.
func (s *scanService) UpdateVulnerabilityStatus(scanID, vulnID string, status models.VulnerabilityStatus) (*models.Scan, error) {
	if !status.Valid() {
		return nil, errors.NewValidationError("status", status, "unknown vulnerability status")
	}

	err := s.engine.WithScanLock(scanID, func() error {
		vuln, err := s.getScanVulnerability(scanID, vulnID)
		if err != nil {
			return err
		}
		if vuln.Status == status {
			return nil
		}
		vuln.Status = status
		vuln.UpdatedAt = time.Now().Unix()
		if err := s.scanDao.UpdateVulnerability(vuln); err != nil {
			return err
		}
		return s.refreshRating(scanID)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logger.Fields{
		"scan_id":          scanID,
		"vulnerability_id": vulnID,
		"status":           status,
	}).Info("Vulnerability status updated")

	return s.scanDao.GetScan(scanID)
}

func (s *scanService) UpdateVulnerabilityNotes(scanID, vulnID, notes string) (*models.Scan, error) {
	err := s.engine.WithScanLock(scanID, func() error {
		vuln, err := s.getScanVulnerability(scanID, vulnID)
		if err != nil {
			return err
		}
		vuln.Notes = notes
		vuln.UpdatedAt = time.Now().Unix()
		return s.scanDao.UpdateVulnerability(vuln)
	})
	if err != nil {
		return nil, err
	}
	return s.scanDao.GetScan(scanID)
}

func (s *scanService) CancelScan(id string) error {
	return s.engine.CancelScan(id)
}

// DeleteScan removes a settled scan and its findings. Running scans must
// be cancelled first so the engine is not writing into a deleted row.
func (s *scanService) DeleteScan(id string) error {
	scan, err := s.scanDao.GetScan(id)
	if err != nil {
		return err
	}
	if !scan.Status.Terminal() {
		return errors.NewValidationError("id", id, "scan is still running, cancel it before deleting")
	}
	if err := s.scanDao.DeleteScan(id); err != nil {
		return err
	}
	s.engine.ForgetScanLock(id)
	s.log.WithScan(id, scan.TargetURL).Info("Scan deleted")
	return nil
}

// getScanVulnerability resolves the scan first so an unknown scan id
// reports as the missing resource, not the vulnerability.
func (s *scanService) getScanVulnerability(scanID, vulnID string) (*models.Vulnerability, error) {
	if _, err := s.scanDao.GetScan(scanID); err != nil {
		return nil, err
	}
	return s.scanDao.GetVulnerability(scanID, vulnID)
}

func (s *scanService) refreshRating(scanID string) error {
	scan, err := s.scanDao.GetScan(scanID)
	if err != nil {
		return err
	}
	return s.scanDao.SetScanStatus(scanID, scan.Status,
		rating.Compute(scan.Vulnerabilities), scan.ErrorMessage)
}
