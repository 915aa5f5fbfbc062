package services

import (
	"strings"
	"testing"

	"refdesk/models"
)

func TestItemBibTeX(t *testing.T) {
	it := models.Item{
		Key:      "ABCD1234",
		ItemType: "journalArticle",
		Title:    "FHIR & Friends: Terminology_Mapping at 100% Coverage",
		Creators: []models.Creator{
			{CreatorType: "author", FirstName: "Sylvia", LastName: "Thun"},
			{CreatorType: "author", Name: "CORD-MI Consortium"},
			{CreatorType: "editor", LastName: "Unsichtbar"},
		},
		Date:             "2022-03-14",
		PublicationTitle: "Journal of Medical Internet Research",
		Publisher:        "JMIR Publications",
		DOI:              "10.2196/12345",
	}

	want := strings.Join([]string{
		`@article{ABCD1234,`,
		`  title = {FHIR \& Friends: Terminology\_Mapping at 100\% Coverage},`,
		`  author = {Thun, Sylvia and CORD-MI Consortium},`,
		`  year = {2022},`,
		`  journal = {Journal of Medical Internet Research},`,
		`  publisher = {JMIR Publications},`,
		`  doi = {10.2196/12345},`,
		`}`,
	}, "\n")

	if got := ItemBibTeX(it); got != want {
		t.Errorf("ItemBibTeX:\n%s\nerwartet:\n%s", got, want)
	}
}

func TestItemBibTeXTypeMapping(t *testing.T) {
	cases := []struct {
		itemType string
		want     string
	}{
		{"journalArticle", "@article{"},
		{"book", "@book{"},
		{"bookSection", "@incollection{"},
		{"conferencePaper", "@inproceedings{"},
		{"thesis", "@phdthesis{"},
		{"report", "@techreport{"},
		{"webpage", "@misc{"},
		{"", "@misc{"},
	}
	for _, tc := range cases {
		it := models.Item{Key: "K", ItemType: tc.itemType, Title: "T"}
		if got := ItemBibTeX(it); !strings.HasPrefix(got, tc.want) {
			t.Errorf("ItemBibTeX(%q) beginnt mit %q, erwartet %q", tc.itemType, got, tc.want)
		}
	}
}

func TestItemBibTeXSparseEntry(t *testing.T) {
	// Nur Pflichtfelder: keine leeren Zeilen für fehlende Felder,
	// Schlüssel-Fallback wenn der Item-Key fehlt.
	got := ItemBibTeX(models.Item{ItemType: "journalArticle", Title: "Nur Titel"})
	want := "@article{unknown,\n  title = {Nur Titel},\n}"
	if got != want {
		t.Errorf("ItemBibTeX = %q, erwartet %q", got, want)
	}

	if got := ItemBibTeX(models.Item{Key: "K", ItemType: "book"}); got != "" {
		t.Errorf("Eintrag ohne Titel = %q, erwartet leeren String", got)
	}
}

func TestRenderBibTeX(t *testing.T) {
	items := []models.Item{
		{Key: "A", ItemType: "journalArticle", Title: "Erster"},
		{Key: "B", ItemType: "book"}, // ohne Titel, wird übersprungen
		{Key: "C", ItemType: "report", Title: "Dritter"},
	}

	out, n := RenderBibTeX(items)
	if n != 2 {
		t.Errorf("Anzahl = %d, erwartet 2", n)
	}
	if strings.Count(out, "\n\n") != 1 {
		t.Errorf("Einträge nicht mit Leerzeile getrennt:\n%s", out)
	}
	if !strings.HasPrefix(out, "@article{A,") || !strings.Contains(out, "@techreport{C,") {
		t.Errorf("Ausgabe:\n%s", out)
	}
}
