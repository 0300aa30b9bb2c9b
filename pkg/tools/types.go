// Package tools defines the scanning tool adapter contract and its variants.
package tools

import (
	"context"
)

// Tool ids form the fixed registry vocabulary accepted by the API.
const (
	ToolPortScan        = "PortScan"
	ToolNucleiScan      = "NucleiScan"
	ToolZapActiveScan   = "ZapActiveScan"
	ToolSubdomainEnum   = "SubdomainEnum"
	ToolDirFuzzing      = "DirFuzzing"
	ToolTechDetection   = "TechDetection"
	ToolBasicHeaderScan = "BasicHeaderScan"
)

// AllToolIDs lists every supported adapter variant.
func AllToolIDs() []string {
	return []string{
		ToolPortScan,
		ToolNucleiScan,
		ToolZapActiveScan,
		ToolSubdomainEnum,
		ToolDirFuzzing,
		ToolTechDetection,
		ToolBasicHeaderScan,
	}
}

// RawFinding is one tool-reported result before normalization.
type RawFinding struct {
	ID          string
	Name        string
	Description string
	Severity    string
	CVEID       string
	CVSSScore   *float64
	EPSSScore   *float64
	IsKEV       bool
	Remediation string
	Evidence    string
}

// Adapter wraps one external scanning capability. Run streams findings
// through emit as they become available and returns once the tool has
// finished; a non-nil error means the whole tool invocation failed.
// Implementations must honor ctx cancellation promptly and must make emit
// calls sequentially.
type Adapter interface {
	ID() string
	Description() string
	Run(ctx context.Context, target string, emit func(RawFinding)) error
}
