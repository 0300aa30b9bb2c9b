package parsers

import (
	"encoding/json"
	"fmt"
	"os"

	"opensentinel/pkg/logger"

	"github.com/sirupsen/logrus"
)

type FfufParser struct {
	logger   *logger.Logger
	patterns []SensitivePattern
}

func NewFfufParser() *FfufParser {
	p := &FfufParser{
		logger:   logger.NewLogger(logrus.InfoLevel),
		patterns: GetDefaultPatterns(),
	}

	// Extra patterns extend, not replace, the built-in table.
	if file := os.Getenv("OPENSENTINEL_SENSITIVE_PATTERNS"); file != "" {
		custom, err := LoadSensitivePatternsFromFile(file)
		if err != nil {
			p.logger.WithError(err).Warn("Failed to load custom sensitive patterns")
		} else {
			p.patterns = append(p.patterns, custom...)
		}
	}
	return p
}

func (p *FfufParser) Parse(outputFile string) ([]Finding, error) {
	data, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read ffuf output file: %w", err)
	}

	var output FfufOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("ffuf output not ready or incomplete: %w", err)
	}

	var findings []Finding
	for i, result := range output.Results {
		path := result.Input["FUZZ"]
		if path == "" {
			path = result.URL
		}

		severity := "info"
		name := fmt.Sprintf("Discovered path /%s", path)
		description := fmt.Sprintf("Directory fuzzing found an accessible path responding with HTTP %d.", result.Status)
		remediation := "Verify the path is intended to be publicly reachable."

		if match, ok := MatchSensitivePath("/"+path, p.patterns); ok {
			severity = match.Severity
			name = fmt.Sprintf("%s exposed at /%s", match.Description, path)
			description = fmt.Sprintf("%s (%s) discovered via directory fuzzing, responding with HTTP %d.",
				match.Description, match.Category, result.Status)
			remediation = "Remove or restrict access to the exposed resource."
		}

		findings = append(findings, Finding{
			ID:          fmt.Sprintf("path-%d-%s", i, SanitizeComponent(path)),
			Name:        name,
			Description: description,
			Severity:    severity,
			Remediation: remediation,
			Evidence:    fmt.Sprintf("GET %s -> %d (length=%d words=%d)", result.URL, result.Status, result.Length, result.Words),
		})
	}

	p.logger.Infof("Parsed %d discovered paths from ffuf output", len(findings))
	return findings, nil
}
