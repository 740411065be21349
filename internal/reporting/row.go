package reporting

import (
	"strings"

	"github.com/plattops/xviol/internal/xray"
)

// NA is the placeholder written wherever the source data has no usable value.
// Downstream spreadsheets rely on it never being an empty cell.
const NA = "NA"

// Row is one flattened violation record.
type Row struct {
	Type                string
	WatchName           string
	Severity            string
	RepoName            string
	ImpactedArtifact    string
	CVEID               string
	CVSSV3              string
	InfectedComponents  string
	InfectedVersions    string
	FixedVersions       string
	Description         string
	ResearchSummary     string
	ResearchDetails     string
	ResearchRemediation string
}

// Header returns the report's column names in row order.
func Header() []string {
	return []string{
		"Type", "WatchName", "Severity", "RepoNameOfImpactedArtifact", "ImpactedArtifacts",
		"CVEID", "CVSSV3", "InfectedComponents", "InfectedVersions", "FixedVersions",
		"Description", "JFrogResearchSummary", "JFrogResearchDetails", "JFrogResearchRemediation",
	}
}

// EnrichedHeader is Header plus the Users column appended by enrichment.
func EnrichedHeader() []string {
	return append(Header(), "Users")
}

// Fields returns the row's values in Header order.
func (r Row) Fields() []string {
	return []string{
		r.Type, r.WatchName, r.Severity, r.RepoName, r.ImpactedArtifact,
		r.CVEID, r.CVSSV3, r.InfectedComponents, r.InfectedVersions, r.FixedVersions,
		r.Description, r.ResearchSummary, r.ResearchDetails, r.ResearchRemediation,
	}
}

// Flatten normalizes one violation into a Row. The violations API omits,
// nils, and empties fields freely depending on watch type and scan depth,
// so every gap collapses to "NA" rather than an empty cell.
func Flatten(v xray.Violation) Row {
	artifact := NA
	if len(v.ImpactedArtifacts) > 0 && v.ImpactedArtifacts[0] != "" {
		artifact = v.ImpactedArtifacts[0]
	}

	// Artifact paths look like "default/repo-name/path/to/file"; the second
	// segment is the repository.
	repo := NA
	if parts := strings.Split(artifact, "/"); len(parts) > 1 && parts[1] != "" {
		repo = parts[1]
	}

	row := Row{
		Type:                orNA(v.Type),
		WatchName:           orNA(v.WatchName),
		Severity:            orNA(v.Severity),
		RepoName:            repo,
		ImpactedArtifact:    artifact,
		CVEID:               NA,
		CVSSV3:              NA,
		InfectedComponents:  joinOrNA(v.InfectedComponents),
		InfectedVersions:    joinOrNA(v.InfectedVersions),
		FixedVersions:       joinOrNA(v.FixVersions),
		Description:         orNA(v.Description),
		ResearchSummary:     NA,
		ResearchDetails:     NA,
		ResearchRemediation: NA,
	}

	if len(v.Properties) > 0 {
		p := v.Properties[0]
		row.CVEID = orNA(p.CVE)
		row.CVSSV3 = orNA(scoreOnly(p.CVSSV3))
	}

	if v.ExtendedInformation != nil {
		row.ResearchSummary = orNA(v.ExtendedInformation.ShortDescription)
		row.ResearchDetails = orNA(v.ExtendedInformation.FullDescription)
		row.ResearchRemediation = orNA(v.ExtendedInformation.Remediation)
	}

	return row
}

func orNA(s string) string {
	if s == "" {
		return NA
	}
	return s
}

// joinOrNA joins list values with the "|" separator used across the report.
func joinOrNA(items []string) string {
	joined := strings.Join(items, "|")
	if joined == "" {
		return NA
	}
	return joined
}

// scoreOnly strips the vector suffix from a CVSS value, keeping just the
// numeric score ("9.8/CVSS:3.1/AV:N..." becomes "9.8").
func scoreOnly(cvss string) string {
	if i := strings.IndexByte(cvss, '/'); i >= 0 {
		return cvss[:i]
	}
	return cvss
}
