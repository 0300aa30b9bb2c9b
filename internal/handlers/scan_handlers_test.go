package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"opensentinel/internal/models"
	"opensentinel/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockScanService struct {
	mock.Mock
}

func (m *MockScanService) StartScan(ctx context.Context, targetURL string, toolIDs []string, profile string) (*models.Scan, error) {
	args := m.Called(ctx, targetURL, toolIDs, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Scan), args.Error(1)
}

func (m *MockScanService) GetScan(id string) (*models.Scan, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Scan), args.Error(1)
}

func (m *MockScanService) ListScans(filter models.ScanFilter) ([]models.Scan, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Scan), args.Error(1)
}

func (m *MockScanService) UpdateVulnerabilityStatus(scanID, vulnID string, status models.VulnerabilityStatus) (*models.Scan, error) {
	args := m.Called(scanID, vulnID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Scan), args.Error(1)
}

func (m *MockScanService) UpdateVulnerabilityNotes(scanID, vulnID, notes string) (*models.Scan, error) {
	args := m.Called(scanID, vulnID, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Scan), args.Error(1)
}

func (m *MockScanService) CancelScan(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockScanService) DeleteScan(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func newTestRouter(service *MockScanService) *gin.Engine {
	handler := NewScanHandler(service)
	router := gin.New()
	router.POST("/api/scans", handler.StartScan)
	router.GET("/api/scans", handler.ListScans)
	router.GET("/api/scans/:id", handler.GetScan)
	router.PATCH("/api/scans/:id/vulnerabilities/:vulnId/status", handler.UpdateVulnerabilityStatus)
	router.PATCH("/api/scans/:id/vulnerabilities/:vulnId/notes", handler.UpdateVulnerabilityNotes)
	router.POST("/api/scans/:id/cancel", handler.CancelScan)
	router.DELETE("/api/scans/:id", handler.DeleteScan)
	return router
}

func TestStartScan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		requestBody    string
		setupMock      func(*MockScanService)
		expectedStatus int
		validateMock   func(*testing.T, *MockScanService)
	}{
		{
			name:        "Valid Request - Success",
			requestBody: `{"target_url":"https://example.com","tools":["PortScan"]}`,
			setupMock: func(m *MockScanService) {
				m.On("StartScan", mock.Anything, "https://example.com", []string{"PortScan"}, "").
					Return(&models.Scan{ID: "scan-1", Status: models.ScanStatusQueued}, nil)
			},
			expectedStatus: 202,
			validateMock: func(t *testing.T, m *MockScanService) {
				m.AssertNumberOfCalls(t, "StartScan", 1)
			},
		},
		{
			name:        "Profile Request",
			requestBody: `{"target_url":"https://example.com","profile":"quick"}`,
			setupMock: func(m *MockScanService) {
				m.On("StartScan", mock.Anything, "https://example.com", mock.Anything, "quick").
					Return(&models.Scan{ID: "scan-2", Status: models.ScanStatusQueued}, nil)
			},
			expectedStatus: 202,
		},
		{
			name:           "Invalid JSON - Malformed",
			requestBody:    `{"target_url":}`,
			setupMock:      func(m *MockScanService) {},
			expectedStatus: 400,
			validateMock: func(t *testing.T, m *MockScanService) {
				m.AssertNumberOfCalls(t, "StartScan", 0)
			},
		},
		{
			name:           "Missing Required Field - target_url",
			requestBody:    `{"tools":["PortScan"]}`,
			setupMock:      func(m *MockScanService) {},
			expectedStatus: 400,
		},
		{
			name:        "Validation Error From Service",
			requestBody: `{"target_url":"https://example.com","tools":["NoSuchTool"]}`,
			setupMock: func(m *MockScanService) {
				m.On("StartScan", mock.Anything, "https://example.com", []string{"NoSuchTool"}, "").
					Return(nil, errors.NewValidationError("tools", "NoSuchTool", "tool not registered"))
			},
			expectedStatus: 400,
		},
		{
			name:        "Service Error - Internal Error",
			requestBody: `{"target_url":"https://example.com","tools":["PortScan"]}`,
			setupMock: func(m *MockScanService) {
				m.On("StartScan", mock.Anything, "https://example.com", []string{"PortScan"}, "").
					Return(nil, stderrors.New("database connection failed"))
			},
			expectedStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockScanService)
			tt.setupMock(mockService)
			router := newTestRouter(mockService)

			req, err := http.NewRequest("POST", "/api/scans", strings.NewReader(tt.requestBody))
			assert.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code,
				"Expected status %d, got %d. Response: %s",
				tt.expectedStatus, w.Code, w.Body.String())

			if tt.validateMock != nil {
				tt.validateMock(t, mockService)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestGetScan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		scanID         string
		setupMock      func(*MockScanService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "Valid ID - Scan Found",
			scanID: "scan-1",
			setupMock: func(m *MockScanService) {
				m.On("GetScan", "scan-1").Return(&models.Scan{
					ID:        "scan-1",
					TargetURL: "https://example.com",
					Status:    models.ScanStatusCompleted,
				}, nil)
			},
			expectedStatus: 200,
		},
		{
			name:   "Scan Not Found",
			scanID: "missing",
			setupMock: func(m *MockScanService) {
				m.On("GetScan", "missing").
					Return(nil, errors.NewNotFoundError("scan", "missing"))
			},
			expectedStatus: 404,
			expectedBody:   `{"error":"Scan not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockScanService)
			tt.setupMock(mockService)
			router := newTestRouter(mockService)

			req, _ := http.NewRequest("GET", fmt.Sprintf("/api/scans/%s", tt.scanID), nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestListScansFilterParsing(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("passes parsed filter to service", func(t *testing.T) {
		mockService := new(MockScanService)
		mockService.On("ListScans", mock.MatchedBy(func(filter models.ScanFilter) bool {
			return filter.Search == "example" &&
				filter.Rating != nil && *filter.Rating == models.RatingHigh &&
				filter.SortKey == models.SortByRating &&
				filter.SortDirection == models.SortAscending &&
				filter.StartDate != nil && filter.StartDate.Format("2006-01-02") == "2026-08-01"
		})).Return([]models.Scan{}, nil)

		router := newTestRouter(mockService)
		req, _ := http.NewRequest("GET",
			"/api/scans?search=example&rating=High&sortKey=overallRating&sortDirection=ascending&startDate=2026-08-01", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, 200, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String(), "empty result must serialize as an array")
		mockService.AssertExpectations(t)
	})

	t.Run("rejects bad sort key", func(t *testing.T) {
		mockService := new(MockScanService)
		router := newTestRouter(mockService)
		req, _ := http.NewRequest("GET", "/api/scans?sortKey=bogus", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, 400, w.Code)
		mockService.AssertNumberOfCalls(t, "ListScans", 0)
	})

	t.Run("rejects bad date", func(t *testing.T) {
		mockService := new(MockScanService)
		router := newTestRouter(mockService)
		req, _ := http.NewRequest("GET", "/api/scans?endDate=08-30-2026", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, 400, w.Code)
	})
}

func TestUpdateVulnerabilityStatusHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockScanService)
		expectedStatus int
	}{
		{
			name: "Valid Update",
			body: `{"status":"False Positive"}`,
			setupMock: func(m *MockScanService) {
				m.On("UpdateVulnerabilityStatus", "scan-1", "vuln-1", models.VulnStatusFalsePositive).
					Return(&models.Scan{ID: "scan-1"}, nil)
			},
			expectedStatus: 200,
		},
		{
			name: "Unknown Status",
			body: `{"status":"Bogus"}`,
			setupMock: func(m *MockScanService) {
				m.On("UpdateVulnerabilityStatus", "scan-1", "vuln-1", models.VulnerabilityStatus("Bogus")).
					Return(nil, errors.NewValidationError("status", "Bogus", "unknown vulnerability status"))
			},
			expectedStatus: 400,
		},
		{
			name:           "Missing Status Field",
			body:           `{}`,
			setupMock:      func(m *MockScanService) {},
			expectedStatus: 400,
		},
		{
			name: "Vulnerability Not Found",
			body: `{"status":"Fixed"}`,
			setupMock: func(m *MockScanService) {
				m.On("UpdateVulnerabilityStatus", "scan-1", "vuln-1", models.VulnStatusFixed).
					Return(nil, errors.NewNotFoundError("vulnerability", "vuln-1"))
			},
			expectedStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockScanService)
			tt.setupMock(mockService)
			router := newTestRouter(mockService)

			req, _ := http.NewRequest("PATCH",
				"/api/scans/scan-1/vulnerabilities/vuln-1/status", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, "Response: %s", w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}

func TestCancelScanHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("cancels running scan", func(t *testing.T) {
		mockService := new(MockScanService)
		mockService.On("CancelScan", "scan-1").Return(nil)
		router := newTestRouter(mockService)

		req, _ := http.NewRequest("POST", "/api/scans/scan-1/cancel", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, 202, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("conflict for settled scan", func(t *testing.T) {
		mockService := new(MockScanService)
		mockService.On("CancelScan", "scan-1").Return(errors.ErrScanNotCancellable)
		router := newTestRouter(mockService)

		req, _ := http.NewRequest("POST", "/api/scans/scan-1/cancel", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, 409, w.Code)
	})
}

func TestDeleteScanHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		scanID         string
		setupMock      func(*MockScanService)
		expectedStatus int
	}{
		{
			name:   "Successful Deletion",
			scanID: "scan-1",
			setupMock: func(m *MockScanService) {
				m.On("DeleteScan", "scan-1").Return(nil)
			},
			expectedStatus: 204,
		},
		{
			name:   "Scan Not Found",
			scanID: "missing",
			setupMock: func(m *MockScanService) {
				m.On("DeleteScan", "missing").Return(errors.NewNotFoundError("scan", "missing"))
			},
			expectedStatus: 404,
		},
		{
			name:   "Still Running",
			scanID: "scan-2",
			setupMock: func(m *MockScanService) {
				m.On("DeleteScan", "scan-2").
					Return(errors.NewValidationError("id", "scan-2", "scan is still running, cancel it before deleting"))
			},
			expectedStatus: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockScanService)
			tt.setupMock(mockService)
			router := newTestRouter(mockService)

			req, _ := http.NewRequest("DELETE", fmt.Sprintf("/api/scans/%s", tt.scanID), nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}
