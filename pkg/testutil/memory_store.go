package testutil

import (
	stderrors "errors"
	"sort"
	"strings"
	"sync"
	"time"

	"opensentinel/internal/models"
	"opensentinel/pkg/errors"
	"opensentinel/pkg/rating"
)

// MemoryScanStore is an in-memory dao.ScanDAO with the same filter and
// ordering semantics as the database-backed implementation. FailOps can
// name operations that should fail, to exercise retry paths.
type MemoryScanStore struct {
	mu      sync.Mutex
	scans   map[string]*models.Scan
	FailOps map[string]int // op name -> remaining failures
}

func NewMemoryScanStore() *MemoryScanStore {
	return &MemoryScanStore{
		scans:   make(map[string]*models.Scan),
		FailOps: make(map[string]int),
	}
}

func (s *MemoryScanStore) failing(op string) bool {
	remaining, ok := s.FailOps[op]
	if !ok || remaining == 0 {
		return false
	}
	if remaining > 0 {
		s.FailOps[op] = remaining - 1
	}
	return true
}

func (s *MemoryScanStore) SaveScan(scan *models.Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing("save scan") {
		return errors.NewStoreError("save scan", errInjected)
	}
	clone := cloneScan(scan)
	s.scans[scan.ID] = &clone
	return nil
}

func (s *MemoryScanStore) GetScan(id string) (*models.Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing("get scan") {
		return nil, errors.NewStoreError("get scan", errInjected)
	}
	scan, ok := s.scans[id]
	if !ok {
		return nil, errors.NewNotFoundError("scan", id)
	}
	clone := cloneScan(scan)
	return &clone, nil
}

func (s *MemoryScanStore) ListScans(filter models.ScanFilter) ([]models.Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.Scan
	for _, scan := range s.scans {
		if !matchesFilter(scan, filter) {
			continue
		}
		result = append(result, cloneScan(scan))
	}
	sortScans(result, filter)
	return result, nil
}

func (s *MemoryScanStore) SetScanStatus(id string, status models.ScanStatus, overall models.ScanRating, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing("set scan status") {
		return errors.NewStoreError("set scan status", errInjected)
	}
	scan, ok := s.scans[id]
	if !ok {
		return errors.NewNotFoundError("scan", id)
	}
	scan.Status = status
	scan.OverallRating = overall
	scan.ErrorMessage = errorMessage
	scan.UpdatedAt = time.Now().Unix()
	return nil
}

func (s *MemoryScanStore) AddVulnerabilities(scanID string, vulns []models.Vulnerability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing("add vulnerabilities") {
		return errors.NewStoreError("add vulnerabilities", errInjected)
	}
	scan, ok := s.scans[scanID]
	if !ok {
		return errors.NewNotFoundError("scan", scanID)
	}
	for _, vuln := range vulns {
		vuln.ScanID = scanID
		scan.Vulnerabilities = append(scan.Vulnerabilities, vuln)
	}
	return nil
}

func (s *MemoryScanStore) AddToolFailure(failure *models.ToolFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing("add tool failure") {
		return errors.NewStoreError("add tool failure", errInjected)
	}
	scan, ok := s.scans[failure.ScanID]
	if !ok {
		return errors.NewNotFoundError("scan", failure.ScanID)
	}
	scan.ToolFailures = append(scan.ToolFailures, *failure)
	return nil
}

func (s *MemoryScanStore) GetVulnerability(scanID, vulnID string) (*models.Vulnerability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scan, ok := s.scans[scanID]
	if !ok {
		return nil, errors.NewNotFoundError("scan", scanID)
	}
	for i := range scan.Vulnerabilities {
		if scan.Vulnerabilities[i].ID == vulnID {
			clone := scan.Vulnerabilities[i]
			return &clone, nil
		}
	}
	return nil, errors.NewNotFoundError("vulnerability", vulnID)
}

func (s *MemoryScanStore) UpdateVulnerability(vuln *models.Vulnerability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing("update vulnerability") {
		return errors.NewStoreError("update vulnerability", errInjected)
	}
	scan, ok := s.scans[vuln.ScanID]
	if !ok {
		return errors.NewNotFoundError("scan", vuln.ScanID)
	}
	for i := range scan.Vulnerabilities {
		if scan.Vulnerabilities[i].ID == vuln.ID {
			scan.Vulnerabilities[i] = *vuln
			return nil
		}
	}
	return errors.NewNotFoundError("vulnerability", vuln.ID)
}

func (s *MemoryScanStore) DeleteScan(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scans[id]; !ok {
		return errors.NewNotFoundError("scan", id)
	}
	delete(s.scans, id)
	return nil
}

var errInjected = stderrors.New("injected store failure")

func cloneScan(scan *models.Scan) models.Scan {
	clone := *scan
	clone.ToolsUsed = append([]string(nil), scan.ToolsUsed...)
	clone.Vulnerabilities = append([]models.Vulnerability(nil), scan.Vulnerabilities...)
	sort.SliceStable(clone.Vulnerabilities, func(i, j int) bool {
		return clone.Vulnerabilities[i].Position < clone.Vulnerabilities[j].Position
	})
	clone.ToolFailures = append([]models.ToolFailure(nil), scan.ToolFailures...)
	return clone
}

func matchesFilter(scan *models.Scan, filter models.ScanFilter) bool {
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(scan.TargetURL), needle) &&
			!strings.Contains(strings.ToLower(scan.ID), needle) {
			return false
		}
	}
	if filter.TargetURL != "" &&
		!strings.Contains(strings.ToLower(scan.TargetURL), strings.ToLower(filter.TargetURL)) {
		return false
	}
	if filter.Rating != nil && scan.OverallRating != *filter.Rating {
		return false
	}
	if filter.StartDate != nil && scan.ScanDate.Before(*filter.StartDate) {
		return false
	}
	if filter.EndDate != nil {
		dayEnd := filter.EndDate.Truncate(24 * time.Hour).Add(24 * time.Hour)
		if !scan.ScanDate.Before(dayEnd) {
			return false
		}
	}
	return true
}

func sortScans(scans []models.Scan, filter models.ScanFilter) {
	key := filter.SortKey
	if key == "" {
		key = models.SortByScanDate
	}
	descending := filter.SortDirection == models.SortDescending || filter.SortDirection == ""

	sort.SliceStable(scans, func(i, j int) bool {
		a, b := &scans[i], &scans[j]
		var less, equal bool
		switch key {
		case models.SortByID:
			less, equal = a.ID < b.ID, a.ID == b.ID
		case models.SortByTargetURL:
			less, equal = a.TargetURL < b.TargetURL, a.TargetURL == b.TargetURL
		case models.SortByRating:
			av, bv := rating.SortValue(a.OverallRating), rating.SortValue(b.OverallRating)
			less, equal = av < bv, av == bv
		default:
			less = a.ScanDate.Before(b.ScanDate)
			equal = a.ScanDate.Equal(b.ScanDate)
		}
		if equal && key != models.SortByScanDate {
			// Ties fall back to newest-first regardless of direction.
			return a.ScanDate.After(b.ScanDate)
		}
		if descending {
			return !less && !equal
		}
		return less
	})
}
