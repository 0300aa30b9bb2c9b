package parsers

import (
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// SensitivePattern grades a discovered path by what it likely exposes.
type SensitivePattern struct {
	Pattern     string         `yaml:"pattern"`
	Regex       *regexp.Regexp `yaml:"-"`
	Severity    string         `yaml:"severity"`
	Description string         `yaml:"description"`
	Category    string         `yaml:"category"`
}

var defaultPatterns = []SensitivePattern{
	{Pattern: "/actuator", Severity: "critical", Description: "Spring Boot Actuator", Category: "Configuration"},
	{Pattern: "/actuator/env", Severity: "critical", Description: "Spring Boot Environment Exposure", Category: "Configuration"},
	{Pattern: "/actuator/heapdump", Severity: "critical", Description: "Spring Boot Heap Dump", Category: "Configuration"},
	{Pattern: "/.env", Severity: "critical", Description: "Environment Configuration File", Category: "Configuration"},
	{Pattern: "/config.json", Severity: "high", Description: "JSON Configuration File", Category: "Configuration"},
	{Pattern: "/config.yml", Severity: "high", Description: "YAML Configuration File", Category: "Configuration"},
	{Pattern: "/config.yaml", Severity: "high", Description: "YAML Configuration File", Category: "Configuration"},
	{Pattern: "/web.config", Severity: "critical", Description: "IIS Web Configuration", Category: "Configuration"},
	{Pattern: "/.git", Severity: "critical", Description: "Git Repository Exposed", Category: "Source Code"},
	{Pattern: "/.svn", Severity: "critical", Description: "SVN Repository Exposed", Category: "Source Code"},
	{Pattern: "/.aws/credentials", Severity: "critical", Description: "AWS Credentials File", Category: "Credentials"},
	{Pattern: "/.ssh", Severity: "critical", Description: "SSH Keys Directory", Category: "Credentials"},
	{Pattern: ".sql", Severity: "critical", Description: "SQL Database Dump", Category: "Database"},
	{Pattern: "/admin", Severity: "high", Description: "Admin Panel", Category: "Admin"},
	{Pattern: "/administrator", Severity: "high", Description: "Administrator Panel", Category: "Admin"},
	{Pattern: "/console", Severity: "critical", Description: "Web Console", Category: "Admin"},
	{Pattern: "/phpmyadmin", Severity: "high", Description: "phpMyAdmin", Category: "Admin"},
	{Pattern: "/swagger", Severity: "medium", Description: "Swagger API Documentation", Category: "API"},
	{Pattern: "/api-docs", Severity: "medium", Description: "API Documentation", Category: "API"},
	{Pattern: "/graphql", Severity: "medium", Description: "GraphQL Endpoint", Category: "API"},
	{Pattern: "/phpinfo.php", Severity: "critical", Description: "PHP Info Page", Category: "Information Disclosure"},
	{Pattern: "/server-status", Severity: "high", Description: "Apache Server Status", Category: "Information Disclosure"},
	{Pattern: "/debug", Severity: "high", Description: "Debug Endpoint", Category: "Debug"},
	{Pattern: "/backup", Severity: "high", Description: "Backup Directory", Category: "Backup"},
	{Pattern: ".bak", Severity: "high", Description: "Backup File", Category: "Backup"},
	{Pattern: ".old", Severity: "medium", Description: "Old/Backup File", Category: "Backup"},
	{Pattern: ".zip", Severity: "medium", Description: "Archive File", Category: "Backup"},
}

// GetDefaultPatterns returns a copy of the built-in pattern table.
func GetDefaultPatterns() []SensitivePattern {
	patterns := make([]SensitivePattern, len(defaultPatterns))
	copy(patterns, defaultPatterns)
	return patterns
}

// LoadSensitivePatternsFromFile reads additional patterns from a YAML file
// with a top-level `patterns` list. The `pattern` field is compiled as a
// regex; entries that fail to compile are treated as plain substrings.
func LoadSensitivePatternsFromFile(filePath string) ([]SensitivePattern, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Patterns []SensitivePattern `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	patterns := make([]SensitivePattern, 0, len(doc.Patterns))
	for _, p := range doc.Patterns {
		if p.Pattern == "" {
			continue
		}
		if re, err := regexp.Compile(p.Pattern); err == nil {
			p.Regex = re
		}
		if p.Severity == "" {
			p.Severity = "high"
		}
		if p.Category == "" {
			p.Category = "Custom"
		}
		patterns = append(patterns, p)
	}

	return patterns, nil
}

// MatchSensitivePath returns the most severe pattern matching the path.
func MatchSensitivePath(path string, patterns []SensitivePattern) (SensitivePattern, bool) {
	pathLower := strings.ToLower(path)
	var best SensitivePattern
	matched := false

	for _, p := range patterns {
		var hit bool
		if p.Regex != nil {
			hit = p.Regex.MatchString(path)
		} else {
			hit = strings.Contains(pathLower, strings.ToLower(p.Pattern))
		}
		if !hit {
			continue
		}
		if !matched || severityRank(p.Severity) < severityRank(best.Severity) {
			best = p
			matched = true
		}
	}

	return best, matched
}

func severityRank(severity string) int {
	switch strings.ToLower(severity) {
	case "critical":
		return 0
	case "high":
		return 1
	case "medium":
		return 2
	case "low":
		return 3
	default:
		return 4
	}
}
