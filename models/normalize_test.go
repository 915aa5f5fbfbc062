package models

import (
	"reflect"
	"testing"
)

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", "10.1234/test", "10.1234/test"},
		{"https prefix", "https://doi.org/10.1234/test", "10.1234/test"},
		{"http prefix", "http://doi.org/10.1234/test", "10.1234/test"},
		{"doi prefix", "doi:10.1234/test", "10.1234/test"},
		{"uppercase", "10.1234/TEST.v2", "10.1234/test.v2"},
		{"whitespace", "  10.1234/test  ", "10.1234/test"},
		{"five digit registrant", "10.12345/abc", "10.12345/abc"},
		{"not a doi", "not-a-doi", ""},
		{"too few digits", "10.123/test", ""},
		{"missing suffix", "10.1234/", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDOI(tt.in); got != tt.want {
				t.Errorf("NormalizeDOI(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeDOIIdempotent(t *testing.T) {
	inputs := []string{
		"https://doi.org/10.1234/test",
		"DOI:10.1038/s41586-021-03819-2",
		"10.1234/Test",
	}
	for _, in := range inputs {
		once := NormalizeDOI(in)
		if once == "" {
			t.Fatalf("NormalizeDOI(%q) unexpectedly invalid", in)
		}
		if twice := NormalizeDOI(once); twice != once {
			t.Errorf("NormalizeDOI not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestExtractYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"January 2022", 2022},
		{"2024-01-15", 2024},
		{"2021", 2021},
		{"", 0},
		{"no year here", 0},
		{"15.03.1999", 1999},
	}
	for _, tt := range tests {
		if got := ExtractYear(tt.in); got != tt.want {
			t.Errorf("ExtractYear(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTitleKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "FHIR in Practice", "fhirinpractice"},
		{"punctuation", "SNOMED-CT: A Review!", "snomedctareview"},
		{"ligature", "Eﬃcient Coding", "efficientcoding"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TitleKey(tt.in); got != tt.want {
				t.Errorf("TitleKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	long := "a very long title that keeps going and going and going well past fifty characters"
	if got := TitleKey(long); len(got) != 50 {
		t.Errorf("TitleKey truncation: len = %d, want 50", len(got))
	}
}

func TestSamePublication(t *testing.T) {
	byDOI := SamePublication(
		&Paper{Title: "Completely different", DOI: "10.1234/test"},
		&Paper{Title: "Other title entirely", DOI: "https://doi.org/10.1234/TEST"},
	)
	if !byDOI {
		t.Error("equal normalized DOIs must match regardless of title")
	}

	byTitle := SamePublication(
		&Paper{Title: "FHIR Profiles for Rare Diseases"},
		&Paper{Title: "FHIR Profiles, for Rare Diseases!"},
	)
	if !byTitle {
		t.Error("equal title keys must match when DOI is absent")
	}

	if SamePublication(&Paper{Title: "Alpha"}, &Paper{Title: "Beta"}) {
		t.Error("different titles without DOIs must not match")
	}
}

func TestDeduplicate(t *testing.T) {
	papers := []*Paper{
		{Title: "First", DOI: "10.1234/a", Source: "pubmed"},
		{Title: "First again", DOI: "10.1234/A", Source: "charite"},
		{Title: "No DOI here", Source: "charite"},
		{Title: "No! DOI... here", Source: "charite"},
		{Title: "Second", DOI: "10.1234/b", Source: "arxiv"},
	}
	got := Deduplicate(papers)
	if len(got) != 3 {
		t.Fatalf("Deduplicate returned %d papers, want 3", len(got))
	}
	// Das erste Vorkommen gewinnt, Reihenfolge bleibt stabil.
	if got[0].Source != "pubmed" || got[1].Title != "No DOI here" || got[2].DOI != "10.1234/b" {
		t.Errorf("unexpected order after dedup: %+v", got)
	}
}

func TestParseAuthorString(t *testing.T) {
	got := ParseAuthorString("Thun,Sylvia;Saß,Julian; Vorisek,Carina")
	want := []string{"Sylvia Thun", "Julian Saß", "Carina Vorisek"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseAuthorString = %v, want %v", got, want)
	}

	if got := ParseAuthorString(""); got != nil {
		t.Errorf("empty input should yield nil, got %v", got)
	}

	single := ParseAuthorString("CORD-19 Consortium")
	if len(single) != 1 || single[0] != "CORD-19 Consortium" {
		t.Errorf("comma-free entry should stay verbatim, got %v", single)
	}
}

func TestSplitCreators(t *testing.T) {
	got := SplitCreators([]string{"Thun, Sylvia", "HL7 Deutschland"})
	if len(got) != 2 {
		t.Fatalf("got %d creators, want 2", len(got))
	}
	if got[0].LastName != "Thun" || got[0].FirstName != "Sylvia" || got[0].CreatorType != "author" {
		t.Errorf("split creator wrong: %+v", got[0])
	}
	if got[1].Name != "HL7 Deutschland" || got[1].LastName != "" {
		t.Errorf("single-field creator wrong: %+v", got[1])
	}
}
