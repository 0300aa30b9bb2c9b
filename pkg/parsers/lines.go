package parsers

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var unsafeComponent = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeComponent makes a tool-reported value safe to embed in a finding id.
func SanitizeComponent(value string) string {
	s := unsafeComponent.ReplaceAllString(value, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "item"
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}

func readLines(outputFile string) ([]string, error) {
	file, err := os.Open(outputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// SubdomainParser treats each line of output (subfinder, amass) as one
// discovered subdomain.
type SubdomainParser struct{}

func NewSubdomainParser() *SubdomainParser {
	return &SubdomainParser{}
}

func (p *SubdomainParser) Parse(outputFile string) ([]Finding, error) {
	lines, err := readLines(outputFile)
	if err != nil {
		return nil, err
	}

	findings := make([]Finding, 0, len(lines))
	seen := make(map[string]bool)
	for _, sub := range lines {
		// Tools occasionally repeat a name; one subdomain is one finding.
		if seen[sub] {
			continue
		}
		seen[sub] = true
		findings = append(findings, Finding{
			ID:          "subdomain-" + SanitizeComponent(sub),
			Name:        fmt.Sprintf("Subdomain discovered: %s", sub),
			Description: "Subdomain enumeration found a resolvable subdomain of the target.",
			Severity:    "info",
			Remediation: "Confirm the subdomain is intentional and inventory its exposed services.",
			Evidence:    sub,
		})
	}
	return findings, nil
}

// TechParser reads whatweb brief output, one target per line, e.g.
// "https://example.com [200 OK] Apache[2.4.58], PHP[8.1.12], WordPress".
type TechParser struct{}

func NewTechParser() *TechParser {
	return &TechParser{}
}

func (p *TechParser) Parse(outputFile string) ([]Finding, error) {
	lines, err := readLines(outputFile)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for i, line := range lines {
		target := line
		techs := ""
		if idx := strings.Index(line, "]"); idx > 0 {
			if sp := strings.Index(line, " "); sp > 0 {
				target = line[:sp]
			}
			techs = strings.TrimSpace(line[idx+1:])
		}

		desc := "Technology fingerprinting identified the software stack serving the target."
		if techs != "" {
			desc = fmt.Sprintf("Detected technologies: %s", techs)
		}

		findings = append(findings, Finding{
			ID:          fmt.Sprintf("tech-%d-%s", i, SanitizeComponent(target)),
			Name:        "Technology stack detected",
			Description: desc,
			Severity:    "info",
			Remediation: "Keep identified components up to date and hide version banners where possible.",
			Evidence:    line,
		})
	}
	return findings, nil
}
