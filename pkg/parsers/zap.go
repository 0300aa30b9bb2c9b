package parsers

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ZapParser reads an OWASP ZAP JSON report produced with -J/zap-cli report.
type ZapParser struct{}

func NewZapParser() *ZapParser {
	return &ZapParser{}
}

func (p *ZapParser) Parse(outputFile string) ([]Finding, error) {
	data, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read zap report: %w", err)
	}

	var report ZapReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("zap report not ready or incomplete: %w", err)
	}

	var findings []Finding
	seen := make(map[string]int)
	for _, site := range report.Sites {
		for _, alert := range site.Alerts {
			evidence := fmt.Sprintf("site=%s plugin=%s", site.Name, alert.PluginID)
			if len(alert.Instances) > 0 {
				inst := alert.Instances[0]
				evidence = fmt.Sprintf("%s %s %s", inst.Method, inst.URI, evidence)
			}

			// Several sites can raise the same alert; repeats get an
			// ordinal suffix so ids stay unique within the report.
			id := fmt.Sprintf("zap-%s-%s", alert.PluginID, SanitizeComponent(alert.Alert))
			seen[id]++
			if n := seen[id]; n > 1 {
				id = fmt.Sprintf("%s-%d", id, n)
			}

			findings = append(findings, Finding{
				ID:          id,
				Name:        alert.Alert,
				Description: stripTags(alert.Desc),
				Severity:    zapRiskToSeverity(alert.RiskDesc),
				Remediation: stripTags(alert.Solution),
				Evidence:    evidence,
			})
		}
	}
	return findings, nil
}

// zapRiskToSeverity maps ZAP's "High (Medium)" style riskdesc onto plain
// severity strings.
func zapRiskToSeverity(riskDesc string) string {
	risk := strings.ToLower(riskDesc)
	if idx := strings.Index(risk, " "); idx > 0 {
		risk = risk[:idx]
	}
	switch risk {
	case "high":
		return "high"
	case "medium":
		return "medium"
	case "low":
		return "low"
	default:
		return "info"
	}
}

func stripTags(s string) string {
	replacer := strings.NewReplacer("<p>", "", "</p>", "\n", "<br>", "\n", "<br/>", "\n")
	return strings.TrimSpace(replacer.Replace(s))
}
