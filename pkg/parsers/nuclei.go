package parsers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"opensentinel/pkg/logger"

	"github.com/sirupsen/logrus"
)

// NucleiParser reads nuclei's JSON-lines output. Each complete line is one
// finding; a trailing partial line is skipped until the next parse.
type NucleiParser struct {
	logger *logger.Logger
}

func NewNucleiParser() *NucleiParser {
	return &NucleiParser{logger: logger.NewLogger(logrus.InfoLevel)}
}

func (p *NucleiParser) Parse(outputFile string) ([]Finding, error) {
	file, err := os.Open(outputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open nuclei output file: %w", err)
	}
	defer file.Close()

	var findings []Finding
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var result NucleiResult
		if err := json.Unmarshal([]byte(line), &result); err != nil {
			p.logger.WithFields(logger.Fields{
				"line": lineNo,
			}).Debug("Skipping unparsable nuclei output line")
			continue
		}

		finding := Finding{
			ID:          fmt.Sprintf("%s-%d", result.TemplateID, lineNo),
			Name:        result.Info.Name,
			Description: result.Info.Description,
			Severity:    result.Info.Severity,
			Remediation: result.Info.Remediation,
			Evidence:    fmt.Sprintf("template=%s matched-at=%s host=%s", result.TemplateID, result.MatchedAt, result.Host),
		}
		if finding.Name == "" {
			finding.Name = result.TemplateID
		}
		if len(result.Info.Classification.CVEIDs) > 0 {
			finding.CVEID = result.Info.Classification.CVEIDs[0]
		}
		if result.Info.Classification.CVSSScore > 0 {
			score := result.Info.Classification.CVSSScore
			finding.CVSSScore = &score
		}

		findings = append(findings, finding)
	}

	if err := scanner.Err(); err != nil {
		return findings, fmt.Errorf("error reading nuclei output: %w", err)
	}

	return findings, nil
}
