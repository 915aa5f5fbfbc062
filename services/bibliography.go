package services

import (
	"fmt"
	"strings"

	"refdesk/models"
)

// bibtexTypes bildet die Eintragstypen des Referenzmanagers auf
// BibTeX-Typen ab. Alles andere wird zu misc.
var bibtexTypes = map[string]string{
	"journalArticle":  "article",
	"book":            "book",
	"bookSection":     "incollection",
	"conferencePaper": "inproceedings",
	"thesis":          "phdthesis",
	"report":          "techreport",
}

// latexEscaper maskiert LaTeX-Sonderzeichen in Feldwerten.
var latexEscaper = strings.NewReplacer(
	"&", `\&`,
	"%", `\%`,
	"$", `\$`,
	"#", `\#`,
	"_", `\_`,
	"{", `\{`,
	"}", `\}`,
	"~", `\textasciitilde{}`,
	"^", `\textasciicircum{}`,
)

// ItemBibTeX rendert einen Eintrag als BibTeX-Block, der Item-Key wird
// zum Zitierschlüssel. Einträge ohne Titel ergeben den leeren String.
func ItemBibTeX(it models.Item) string {
	if it.Title == "" {
		return ""
	}
	entryType, ok := bibtexTypes[it.ItemType]
	if !ok {
		entryType = "misc"
	}
	key := it.Key
	if key == "" {
		key = "unknown"
	}

	lines := []string{fmt.Sprintf("@%s{%s,", entryType, key)}
	lines = append(lines, fmt.Sprintf("  title = {%s},", latexEscaper.Replace(it.Title)))
	if authors := bibtexAuthors(it.Creators); authors != "" {
		lines = append(lines, fmt.Sprintf("  author = {%s},", latexEscaper.Replace(authors)))
	}
	if year := models.ExtractYear(it.Date); year > 0 {
		lines = append(lines, fmt.Sprintf("  year = {%d},", year))
	}
	if it.PublicationTitle != "" {
		lines = append(lines, fmt.Sprintf("  journal = {%s},", latexEscaper.Replace(it.PublicationTitle)))
	}
	if it.Publisher != "" {
		lines = append(lines, fmt.Sprintf("  publisher = {%s},", latexEscaper.Replace(it.Publisher)))
	}
	if it.DOI != "" {
		lines = append(lines, fmt.Sprintf("  doi = {%s},", it.DOI))
	}
	lines = append(lines, "}")
	return strings.Join(lines, "\n")
}

// bibtexAuthors verkettet alle Autoren (keine Herausgeber) mit " and ".
// Konsortien ohne Vor-/Nachnamen bleiben ein einzelner Name.
func bibtexAuthors(creators []models.Creator) string {
	var parts []string
	for _, c := range creators {
		if c.CreatorType != "author" {
			continue
		}
		switch {
		case c.LastName != "" && c.FirstName != "":
			parts = append(parts, c.LastName+", "+c.FirstName)
		case c.LastName != "":
			parts = append(parts, c.LastName)
		case c.Name != "":
			parts = append(parts, c.Name)
		}
	}
	return strings.Join(parts, " and ")
}

// RenderBibTeX rendert alle Einträge, getrennt durch eine Leerzeile.
// Einträge ohne Titel werden übersprungen und nicht mitgezählt.
func RenderBibTeX(items []models.Item) (string, int) {
	var entries []string
	for _, it := range items {
		if entry := ItemBibTeX(it); entry != "" {
			entries = append(entries, entry)
		}
	}
	return strings.Join(entries, "\n\n"), len(entries)
}
