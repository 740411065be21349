package xray

import (
	"errors"
	"fmt"
)

// ErrWatchNotFound is returned by GetWatch when the named watch does not exist
// on the platform. Callers match it with errors.Is.
var ErrWatchNotFound = errors.New("watch not found")

// APIError carries the status and body of a non-2xx platform response.
type APIError struct {
	Status   int
	Endpoint string
	Body     string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request to %s failed with status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("request to %s failed with status %d: %s", e.Endpoint, e.Status, e.Body)
}

// Watch mirrors the watch resource returned by the v2 watches API. Only the
// fields the exporter consumes are declared.
type Watch struct {
	GeneralData WatchGeneralData `json:"general_data"`
}

// WatchGeneralData holds the identifying fields of a watch.
type WatchGeneralData struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// ViolationsRequest is the POST body for the violations endpoint.
type ViolationsRequest struct {
	Filters    Filters    `json:"filters"`
	Pagination Pagination `json:"pagination"`
}

// Filters narrows the violations query to a single watch.
type Filters struct {
	WatchName      string `json:"watch_name"`
	IncludeDetails bool   `json:"include_details"`
}

// Pagination selects one page of results. The endpoint treats Offset as a
// page ordinal, not a row offset; 0 and 1 both address the first page.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ViolationsResponse is one page of violations plus the total count across
// all pages.
type ViolationsResponse struct {
	TotalViolations int         `json:"total_violations"`
	Violations      []Violation `json:"violations"`
}

// Violation mirrors the wire shape of a single violation record. Every field
// is optional on the wire; consumers must tolerate zero values throughout.
type Violation struct {
	Type                 string                `json:"type"`
	WatchName            string                `json:"watch_name"`
	Severity             string                `json:"severity"`
	Description          string                `json:"description"`
	IssueID              string                `json:"issue_id"`
	Created              string                `json:"created"`
	ImpactedArtifacts    []string              `json:"impacted_artifacts"`
	InfectedComponents   []string              `json:"infected_components"`
	InfectedVersions     []string              `json:"infected_versions"`
	FixVersions          []string              `json:"fix_versions"`
	Properties           []VulnProperty        `json:"properties"`
	ApplicabilityDetails []ApplicabilityDetail `json:"applicability_details"`
	ExtendedInformation  *ExtendedInformation  `json:"extended_information"`
}

// VulnProperty carries the CVE identifiers attached to a violation.
type VulnProperty struct {
	CVE    string `json:"cve"`
	CVSSV3 string `json:"cvss_v3"`
	CVSSV2 string `json:"cvss_v2"`
}

// ApplicabilityDetail links a violation to a scanner-determined vulnerability.
type ApplicabilityDetail struct {
	VulnerabilityID string `json:"vulnerability_id"`
	Applicability   bool   `json:"applicability"`
}

// ExtendedInformation is the JFrog research block, present only when the
// query asks for details and research data exists for the issue.
type ExtendedInformation struct {
	ShortDescription      string `json:"short_description"`
	FullDescription       string `json:"full_description"`
	Remediation           string `json:"remediation"`
	JFrogResearchSeverity string `json:"jfrog_research_severity"`
}

// pingResponse is the body of the system ping endpoint.
type pingResponse struct {
	Status string `json:"status"`
}
