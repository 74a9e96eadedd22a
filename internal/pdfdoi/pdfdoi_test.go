package pdfdoi

import "testing"

func TestFindDOI(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			"plain handle",
			"This article: 10.34749/JFM.2019.1516 published 2019",
			"10.34749/JFM.2019.1516",
		},
		{
			"trailing punctuation stripped",
			"see https://doi.org/10.34749/JFM.2019.1516.",
			"10.34749/JFM.2019.1516",
		},
		{
			"no doi",
			"Jahrgang (2019), Heft 19, Seiten 8-27",
			"",
		},
		{
			"too short to be real",
			"10.1/x and nothing else",
			"",
		},
		{
			"first plausible match wins",
			"10.34749/JFM.2019.1516 then 10.34749/JFM.2019.9999",
			"10.34749/JFM.2019.1516",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findDOI(tt.text); got != tt.want {
				t.Errorf("findDOI() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindingMatch(t *testing.T) {
	tests := []struct {
		name    string
		finding Finding
		want    bool
	}{
		{"match", Finding{Registered: "10.34749/JFM.2019.1516", Printed: "10.34749/JFM.2019.1516"}, true},
		{"mismatch", Finding{Registered: "10.34749/JFM.2019.1516", Printed: "10.34749/JFM.2019.9999"}, false},
		{"nothing printed", Finding{Registered: "10.34749/JFM.2019.1516"}, false},
		{"both empty", Finding{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.finding.Match(); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}
