package parsers

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"opensentinel/pkg/logger"

	"github.com/sirupsen/logrus"
)

// riskyServices are services whose mere exposure warrants more than an
// informational finding.
var riskyServices = map[string]string{
	"telnet":        "medium",
	"ftp":           "low",
	"ms-wbt-server": "medium",
	"rdp":           "medium",
	"vnc":           "medium",
	"microsoft-ds":  "medium",
	"netbios-ssn":   "low",
	"mysql":         "low",
	"postgresql":    "low",
	"redis":         "high",
	"mongodb":       "high",
}

type NmapParser struct {
	logger *logger.Logger
}

func NewNmapParser() *NmapParser {
	return &NmapParser{logger: logger.NewLogger(logrus.InfoLevel)}
}

func (p *NmapParser) Parse(outputFile string) ([]Finding, error) {
	if _, err := os.Stat(outputFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("nmap output file does not exist: %w", err)
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read nmap output file: %w", err)
	}

	var run NmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		// Incomplete XML is expected while the scan is still writing.
		return nil, fmt.Errorf("nmap output not ready or incomplete: %w", err)
	}

	var findings []Finding
	for _, host := range run.Hosts {
		addr := hostAddress(host)
		suspicious := isLikelyFalsePositive(host)

		for _, port := range host.Ports.PortList {
			if port.State.State != "open" {
				continue
			}

			service := port.Service.Name
			severity := "info"
			if sev, ok := riskyServices[service]; ok {
				severity = sev
			}
			if suspicious {
				severity = "info"
			}

			name := fmt.Sprintf("Open port %s/%s", port.PortID, port.Protocol)
			if service != "" {
				name = fmt.Sprintf("%s (%s)", name, service)
			}

			desc := fmt.Sprintf("Port %s/%s on %s is open.", port.PortID, port.Protocol, addr)
			if port.Service.Product != "" {
				desc += fmt.Sprintf(" Detected service: %s %s.", port.Service.Product, port.Service.Version)
			}
			if suspicious {
				desc += " Host reports an unusually high number of open ports; results may be a firewall artifact."
			}

			findings = append(findings, Finding{
				ID:          fmt.Sprintf("port-%s-%s-%s", addr, port.Protocol, port.PortID),
				Name:        name,
				Description: strings.TrimSpace(desc),
				Severity:    severity,
				Remediation: "Close the port or restrict access if the service is not required.",
				Evidence:    fmt.Sprintf("%s:%s/%s state=%s reason=%s", addr, port.PortID, port.Protocol, port.State.State, port.State.Reason),
			})
		}
	}

	p.logger.Infof("Parsed %d open-port findings from nmap output", len(findings))
	return findings, nil
}

func hostAddress(host Host) string {
	for _, a := range host.Addresses {
		if a.AddrType == "ipv4" || a.AddrType == "ipv6" {
			return a.Addr
		}
	}
	if len(host.Addresses) > 0 {
		return host.Addresses[0].Addr
	}
	if len(host.Hostnames.HostnameList) > 0 {
		return host.Hostnames.HostnameList[0].Name
	}
	return "unknown"
}

func isLikelyFalsePositive(host Host) bool {
	var portCount int
	for _, port := range host.Ports.PortList {
		if port.State.State == "open" {
			portCount++
		}
	}
	return portCount > 20
}
