package engine

import (
	"net/url"
	"regexp"
	"strings"

	"opensentinel/pkg/errors"
)

var bareIPv4 = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}(:\d+)?$`)

// NormalizeTargetURL canonicalizes the user-supplied target. Schemeless
// input gets https by default; bare IPv4 addresses and localhost get http,
// since those targets rarely terminate TLS.
func NormalizeTargetURL(raw string) (string, error) {
	target := strings.TrimSpace(raw)
	if target == "" {
		return "", errors.NewValidationError("targetUrl", raw, "target URL is required")
	}

	if !strings.Contains(target, "://") {
		if bareIPv4.MatchString(target) || strings.Contains(target, "localhost") {
			target = "http://" + target
		} else {
			target = "https://" + target
		}
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return "", errors.NewValidationError("targetUrl", raw, "target URL is not parseable")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.NewValidationError("targetUrl", raw, "only http and https targets are supported")
	}
	if parsed.Hostname() == "" {
		return "", errors.NewValidationError("targetUrl", raw, "target URL has no host")
	}

	return parsed.String(), nil
}
