package tools

import (
	"strings"
	"testing"

	"opensentinel/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMapsFields(t *testing.T) {
	score := 9.8
	epss := 0.95
	raw := RawFinding{
		ID:          "CVE-2023-1234",
		Name:        "SQL Injection",
		Description: "Arbitrary SQL execution.",
		Severity:    "critical",
		CVEID:       "CVE-2023-1234",
		CVSSScore:   &score,
		EPSSScore:   &epss,
		IsKEV:       true,
		Remediation: "Use parameterized queries.",
		Evidence:    "POST /api/login",
	}

	vuln := Normalize("scan-01", ToolNucleiScan, raw)

	assert.Equal(t, "scan-01-nucleiscan-CVE-2023-1234", vuln.ID)
	assert.Equal(t, models.RatingCritical, vuln.Severity)
	assert.Equal(t, models.VulnStatusOpen, vuln.Status, "normalized findings start open")
	assert.True(t, vuln.IsKEV)
	require.NotNil(t, vuln.CVSSScore)
	assert.InDelta(t, 9.8, *vuln.CVSSScore, 0.001)
}

func TestNormalizeGeneratesIDWhenMissing(t *testing.T) {
	a := Normalize("scan-01", ToolPortScan, RawFinding{Name: "x"})
	b := Normalize("scan-01", ToolPortScan, RawFinding{Name: "x"})

	assert.True(t, strings.HasPrefix(a.ID, "scan-01-portscan-"))
	assert.NotEqual(t, a.ID, b.ID, "generated ids must not collide within a scan")
}

func TestNormalizeScopesIDsByTool(t *testing.T) {
	a := Normalize("scan-01", ToolPortScan, RawFinding{ID: "f1"})
	b := Normalize("scan-01", ToolDirFuzzing, RawFinding{ID: "f1"})
	assert.NotEqual(t, a.ID, b.ID, "same tool-provided id from different tools must not collide")
}

func TestNormalizeSeverityDefaults(t *testing.T) {
	cases := map[string]models.ScanRating{
		"critical":      models.RatingCritical,
		"CRITICAL":      models.RatingCritical,
		"high":          models.RatingHigh,
		"Medium":        models.RatingMedium,
		"moderate":      models.RatingMedium,
		"low":           models.RatingLow,
		"info":          models.RatingInformational,
		"informational": models.RatingInformational,
		"":              models.RatingInformational,
		"unknown-sev":   models.RatingInformational,
	}

	for input, expected := range cases {
		vuln := Normalize("s", ToolPortScan, RawFinding{Severity: input})
		assert.Equal(t, expected, vuln.Severity, "severity %q", input)
	}
}
