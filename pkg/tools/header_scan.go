package tools

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"opensentinel/pkg/errors"
)

// headerCheck describes one response header whose absence is a finding.
type headerCheck struct {
	Header      string
	Severity    string
	Description string
	Remediation string
}

var missingHeaderChecks = []headerCheck{
	{
		Header:      "Content-Security-Policy",
		Severity:    "low",
		Description: "The response does not set a Content-Security-Policy header, leaving the application without a browser-enforced mitigation against cross-site scripting and data injection.",
		Remediation: "Define a Content-Security-Policy that restricts script, style and frame sources to trusted origins.",
	},
	{
		Header:      "Strict-Transport-Security",
		Severity:    "info",
		Description: "The response does not set a Strict-Transport-Security header, so browsers will not force future requests over HTTPS.",
		Remediation: "Set Strict-Transport-Security with a max-age of at least one year on all HTTPS responses.",
	},
	{
		Header:      "X-Frame-Options",
		Severity:    "info",
		Description: "The response does not set an X-Frame-Options header, which permits the page to be embedded in frames on other origins.",
		Remediation: "Set X-Frame-Options to DENY or SAMEORIGIN, or use the frame-ancestors CSP directive.",
	},
	{
		Header:      "X-Content-Type-Options",
		Severity:    "info",
		Description: "The response does not set X-Content-Type-Options, allowing browsers to MIME-sniff the response body.",
		Remediation: "Set X-Content-Type-Options to nosniff.",
	},
	{
		Header:      "Referrer-Policy",
		Severity:    "info",
		Description: "The response does not set a Referrer-Policy header, so full URLs may leak to third-party origins via the Referer header.",
		Remediation: "Set Referrer-Policy to strict-origin-when-cross-origin or stricter.",
	},
	{
		Header:      "Permissions-Policy",
		Severity:    "info",
		Description: "The response does not set a Permissions-Policy header restricting access to powerful browser features.",
		Remediation: "Set a Permissions-Policy disabling unused features such as camera, microphone and geolocation.",
	},
}

// disclosureHeaders are version-leaking headers whose presence is reported.
var disclosureHeaders = []string{"Server", "X-Powered-By"}

// HeaderScanAdapter inspects the target's HTTP response headers for
// missing security headers and version disclosure. Unlike the other
// adapters it performs the check in-process.
type HeaderScanAdapter struct {
	client *http.Client
}

func NewHeaderScanAdapter(client *http.Client) *HeaderScanAdapter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HeaderScanAdapter{client: client}
}

func (a *HeaderScanAdapter) ID() string { return ToolBasicHeaderScan }

func (a *HeaderScanAdapter) Description() string {
	return "Checks HTTP response security headers and server version disclosure"
}

func (a *HeaderScanAdapter) Run(ctx context.Context, target string, emit func(RawFinding)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &errors.ToolError{ToolID: a.ID(), Err: fmt.Errorf("building request: %w", err)}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return &errors.ToolError{ToolID: a.ID(), Err: fmt.Errorf("fetching target: %w", err)}
	}
	defer resp.Body.Close()

	for _, check := range missingHeaderChecks {
		if resp.Header.Get(check.Header) != "" {
			continue
		}
		emit(RawFinding{
			ID:          "missing-" + check.Header,
			Name:        fmt.Sprintf("Missing %s Header", check.Header),
			Description: check.Description,
			Severity:    check.Severity,
			Remediation: check.Remediation,
			Evidence:    fmt.Sprintf("GET %s returned %d without %s", target, resp.StatusCode, check.Header),
		})
	}

	for _, header := range disclosureHeaders {
		value := resp.Header.Get(header)
		if value == "" {
			continue
		}
		emit(RawFinding{
			ID:          "disclosure-" + header,
			Name:        fmt.Sprintf("%s Header Discloses Software Information", header),
			Description: fmt.Sprintf("The %s header reveals implementation details that help attackers fingerprint the stack.", header),
			Severity:    "info",
			Remediation: fmt.Sprintf("Remove or genericize the %s header at the edge.", header),
			Evidence:    fmt.Sprintf("%s: %s", header, value),
		})
	}

	return nil
}
