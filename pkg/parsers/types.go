// Package parsers converts external tool output files into raw findings.
package parsers

// Finding is one tool-reported result before normalization. Severity is the
// tool's own vocabulary (critical|high|medium|low|info); the normalizer maps
// unknown values to Informational.
type Finding struct {
	ID          string
	Name        string
	Description string
	Severity    string
	CVEID       string
	CVSSScore   *float64
	Remediation string
	Evidence    string
}

// Parser reads a tool's output file. Parsers are called repeatedly while the
// tool is still writing, so a partial-file parse error is not fatal to the
// caller; only the final parse after tool exit is authoritative.
type Parser interface {
	Parse(outputFile string) ([]Finding, error)
}

type NmapRun struct {
	Hosts []Host `xml:"host"`
}

type Host struct {
	Addresses []Address `xml:"address"`
	Ports     Ports     `xml:"ports"`
	Hostnames Hostnames `xml:"hostnames"`
}

type Address struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type Ports struct {
	PortList []Port `xml:"port"`
}

type Port struct {
	Protocol string       `xml:"protocol,attr"`
	PortID   string       `xml:"portid,attr"`
	State    PortState    `xml:"state"`
	Service  NamedService `xml:"service"`
}

type PortState struct {
	State  string `xml:"state,attr"`
	Reason string `xml:"reason,attr"`
}

type NamedService struct {
	Name    string `xml:"name,attr"`
	Product string `xml:"product,attr"`
	Version string `xml:"version,attr"`
}

type Hostnames struct {
	HostnameList []Hostname `xml:"hostname"`
}

type Hostname struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type NucleiResult struct {
	TemplateID string     `json:"template-id"`
	Info       NucleiInfo `json:"info"`
	Type       string     `json:"type"`
	Host       string     `json:"host"`
	MatchedAt  string     `json:"matched-at"`
	Request    string     `json:"request"`
	IP         string     `json:"ip"`
	Timestamp  string     `json:"timestamp"`
}

type NucleiInfo struct {
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	Severity       string               `json:"severity"`
	Remediation    string               `json:"remediation"`
	Classification NucleiClassification `json:"classification"`
}

type NucleiClassification struct {
	CVEIDs    []string `json:"cve-id"`
	CVSSScore float64  `json:"cvss-score"`
}

type FfufOutput struct {
	Commandline string       `json:"commandline"`
	Time        string       `json:"time"`
	Results     []FfufResult `json:"results"`
}

type FfufResult struct {
	Input  map[string]string `json:"input"`
	Status int               `json:"status"`
	Length int               `json:"length"`
	Words  int               `json:"words"`
	Lines  int               `json:"lines"`
	URL    string            `json:"url"`
	Host   string            `json:"host"`
}

type ZapReport struct {
	Sites []ZapSite `json:"site"`
}

type ZapSite struct {
	Name   string     `json:"@name"`
	Alerts []ZapAlert `json:"alerts"`
}

type ZapAlert struct {
	PluginID  string        `json:"pluginid"`
	Alert     string        `json:"alert"`
	RiskDesc  string        `json:"riskdesc"`
	Desc      string        `json:"desc"`
	Solution  string        `json:"solution"`
	CWEID     string        `json:"cweid"`
	Instances []ZapInstance `json:"instances"`
}

type ZapInstance struct {
	URI    string `json:"uri"`
	Method string `json:"method"`
}
