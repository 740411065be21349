// internal/reporting/row_test.go
package reporting

import (
	"reflect"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/plattops/xviol/internal/xray"
)

// naRow is the row a completely empty violation flattens to.
func naRow() Row {
	return Row{
		Type: NA, WatchName: NA, Severity: NA, RepoName: NA, ImpactedArtifact: NA,
		CVEID: NA, CVSSV3: NA, InfectedComponents: NA, InfectedVersions: NA,
		FixedVersions: NA, Description: NA, ResearchSummary: NA, ResearchDetails: NA,
		ResearchRemediation: NA,
	}
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name      string
		violation xray.Violation
		want      Row
	}{
		{
			name: "Fully Populated Security Violation",
			violation: xray.Violation{
				Type:        "security",
				WatchName:   "prod-watch",
				Severity:    "Critical",
				Description: "Prototype pollution in lodash",
				ImpactedArtifacts: []string{
					"default/npm-local/lodash/-/lodash-4.17.20.tgz",
					"default/docker-local/app/1.0/manifest.json",
				},
				InfectedComponents: []string{"npm://lodash:4.17.20"},
				InfectedVersions:   []string{"(,4.17.21)"},
				FixVersions:        []string{"4.17.21", "5.0.0"},
				Properties: []xray.VulnProperty{
					{CVE: "CVE-2021-23337", CVSSV3: "9.8/CVSS:3.1/AV:N/AC:L"},
					{CVE: "CVE-0000-0000", CVSSV3: "1.0"},
				},
				ExtendedInformation: &xray.ExtendedInformation{
					ShortDescription: "Command injection via template.",
					FullDescription:  "lodash versions prior to 4.17.21 are vulnerable.",
					Remediation:      "Upgrade lodash to 4.17.21 or later.",
				},
			},
			want: Row{
				Type:                "security",
				WatchName:           "prod-watch",
				Severity:            "Critical",
				RepoName:            "npm-local",
				ImpactedArtifact:    "default/npm-local/lodash/-/lodash-4.17.20.tgz",
				CVEID:               "CVE-2021-23337",
				CVSSV3:              "9.8",
				InfectedComponents:  "npm://lodash:4.17.20",
				InfectedVersions:    "(,4.17.21)",
				FixedVersions:       "4.17.21|5.0.0",
				Description:         "Prototype pollution in lodash",
				ResearchSummary:     "Command injection via template.",
				ResearchDetails:     "lodash versions prior to 4.17.21 are vulnerable.",
				ResearchRemediation: "Upgrade lodash to 4.17.21 or later.",
			},
		},
		{
			name:      "Empty Violation Collapses To NA",
			violation: xray.Violation{},
			want:      naRow(),
		},
		{
			name: "License Violation Without Vulnerability Details",
			violation: xray.Violation{
				Type:              "license",
				WatchName:         "license-watch",
				Severity:          "High",
				Description:       "GPL-3.0 is not allowed",
				ImpactedArtifacts: []string{"default/generic-local/tool.tar.gz"},
			},
			want: func() Row {
				r := naRow()
				r.Type = "license"
				r.WatchName = "license-watch"
				r.Severity = "High"
				r.Description = "GPL-3.0 is not allowed"
				r.RepoName = "generic-local"
				r.ImpactedArtifact = "default/generic-local/tool.tar.gz"
				return r
			}(),
		},
		{
			name: "Artifact Without Path Separator",
			violation: xray.Violation{
				ImpactedArtifacts: []string{"standalone.jar"},
			},
			want: func() Row {
				r := naRow()
				r.ImpactedArtifact = "standalone.jar"
				return r
			}(),
		},
		{
			name: "CVSS Score Without Vector Suffix",
			violation: xray.Violation{
				Properties: []xray.VulnProperty{{CVE: "CVE-2024-1234", CVSSV3: "7.5"}},
			},
			want: func() Row {
				r := naRow()
				r.CVEID = "CVE-2024-1234"
				r.CVSSV3 = "7.5"
				return r
			}(),
		},
		{
			name: "Empty Nested Values Collapse To NA",
			violation: xray.Violation{
				ImpactedArtifacts:   []string{"default/"},
				InfectedComponents:  []string{""},
				Properties:          []xray.VulnProperty{{CVE: "", CVSSV3: ""}},
				ExtendedInformation: &xray.ExtendedInformation{},
			},
			want: func() Row {
				r := naRow()
				r.ImpactedArtifact = "default/"
				return r
			}(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Flatten(tc.violation)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Flatten mismatch. Diff:\n%s", cmp.Diff(tc.want, got))
			}
		})
	}
}

func TestHeaderMatchesRowLayout(t *testing.T) {
	assert.Len(t, Header(), len(Row{}.Fields()))
	assert.Equal(t, "Users", EnrichedHeader()[len(EnrichedHeader())-1])
	assert.Len(t, EnrichedHeader(), len(Header())+1)
}

// FuzzFlatten checks the one property every consumer depends on: no cell in a
// flattened row is ever empty, no matter how ragged the violation.
func FuzzFlatten(f *testing.F) {
	f.Fuzz(func(t *testing.T, data []byte) {
		fuzzConsumer := fuzz.NewConsumer(data)
		v := xray.Violation{}
		if err := fuzzConsumer.GenerateStruct(&v); err != nil {
			return // Ignore inputs that can't be mapped to the struct.
		}

		row := Flatten(v)
		for i, field := range row.Fields() {
			if field == "" {
				t.Errorf("column %d (%s) is empty for violation %+v", i, Header()[i], v)
			}
		}
	})
}
