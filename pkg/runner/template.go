package runner

import (
	"regexp"
	"strings"
)

var (
	protocolRegex       = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	invalidChars        = regexp.MustCompile(`[<>:"/\\|?*=&#]`)
	multipleUnderscores = regexp.MustCompile(`_+`)
)

// ExpandArgs substitutes {{token}} placeholders in an argument template.
// Tokens without a replacement value are left untouched.
func ExpandArgs(args []string, values map[string]string) []string {
	expanded := make([]string, len(args))
	for i, arg := range args {
		for token, value := range values {
			arg = strings.ReplaceAll(arg, "{{"+token+"}}", value)
		}
		expanded[i] = arg
	}
	return expanded
}

// SanitizeForFilename converts a value (like a target URL) into a safe
// filename component for tool output files.
func SanitizeForFilename(value string) string {
	sanitized := protocolRegex.ReplaceAllString(value, "")
	sanitized = invalidChars.ReplaceAllString(sanitized, "_")
	sanitized = multipleUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_.")

	if sanitized == "" {
		sanitized = "sanitized_value"
	}

	maxLength := 100
	if len(sanitized) > maxLength {
		sanitized = sanitized[:maxLength]
		sanitized = strings.TrimRight(sanitized, "_.")
	}

	return sanitized
}
