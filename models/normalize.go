package models

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	doiPattern = regexp.MustCompile(`^10\.\d{4,}/.+`)
	yearRe     = regexp.MustCompile(`\d{4}`)
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9]`)

	// Typografische Ligaturen, die in Titeln aus PDF-Quellen auftauchen.
	ligatureReplacer = strings.NewReplacer(
		"ﬁ", "fi",
		"ﬂ", "fl",
		"ﬀ", "ff",
		"ﬃ", "ffi",
		"ﬄ", "ffl",
		"ﬆ", "st",
		"œ", "oe",
		"æ", "ae",
	)
)

// NormalizeDOI kanonisiert eine DOI: Whitespace trimmen, Kleinschreibung,
// URL- und "doi:"-Präfixe entfernen, dann gegen das DOI-Muster validieren.
// Ungültige Eingaben ergeben den leeren String. Die Funktion ist idempotent.
func NormalizeDOI(raw string) string {
	doi := strings.ToLower(strings.TrimSpace(raw))
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	if !doiPattern.MatchString(doi) {
		return ""
	}
	return doi
}

// NormalizePMID behält nur die Ziffern einer PMID.
func NormalizePMID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ExtractYear findet die erste vierstellige Ziffernfolge in einem lose
// formatierten Datums-String und gibt sie als Jahr zurück, 0 wenn keine
// existiert. Wirft nie einen Fehler.
func ExtractYear(date string) int {
	m := yearRe.FindString(date)
	if m == "" {
		return 0
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return year
}

// TitleKey bildet den Dedup-Schlüssel eines Titels: Unicode-NFC,
// Ligaturen auflösen, Kleinschreibung, alles außer a-z0-9 entfernen,
// auf 50 Zeichen kürzen.
func TitleKey(title string) string {
	s, _, err := transform.String(transform.Chain(norm.NFC), title)
	if err != nil {
		s = title
	}
	s = ligatureReplacer.Replace(s)
	s = strings.ToLower(s)
	s = nonAlnumRe.ReplaceAllString(s, "")
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}

// SamePublication prüft, ob zwei Paper dieselbe Publikation beschreiben:
// primär über gleiche normalisierte DOIs, bei fehlender DOI über den
// Titel-Schlüssel.
func SamePublication(a, b *Paper) bool {
	doiA, doiB := NormalizeDOI(a.DOI), NormalizeDOI(b.DOI)
	if doiA != "" && doiB != "" {
		return doiA == doiB
	}
	keyA := TitleKey(a.Title)
	return keyA != "" && keyA == TitleKey(b.Title)
}

// Deduplicate entfernt Duplikate nach DOI bzw. Titel-Schlüssel.
// Das erste Vorkommen gewinnt, die Reihenfolge bleibt erhalten.
func Deduplicate(papers []*Paper) []*Paper {
	seenDOIs := make(map[string]struct{})
	seenTitles := make(map[string]struct{})
	unique := make([]*Paper, 0, len(papers))

	for _, p := range papers {
		if doi := NormalizeDOI(p.DOI); doi != "" {
			if _, ok := seenDOIs[doi]; ok {
				continue
			}
			seenDOIs[doi] = struct{}{}
		}
		if key := TitleKey(p.Title); key != "" {
			if _, ok := seenTitles[key]; ok {
				continue
			}
			seenTitles[key] = struct{}{}
		}
		unique = append(unique, p)
	}
	return unique
}

// ParseAuthorString zerlegt den semikolon-getrennten Autoren-String der
// Forschungsdatenbank ("Nachname,Vorname;Nachname,Vorname") in Anzeigenamen
// in Zitierreihenfolge.
func ParseAuthorString(s string) []string {
	if s == "" {
		return nil
	}
	var authors []string
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if last, first, ok := strings.Cut(part, ","); ok {
			authors = append(authors, strings.TrimSpace(strings.TrimSpace(first)+" "+strings.TrimSpace(last)))
		} else {
			authors = append(authors, part)
		}
	}
	return authors
}

// SplitCreators wandelt freie Autorennamen in das Creator-Schema des
// Referenzmanagers: Namen mit Komma werden in Nachname/Vorname zerlegt,
// alle anderen bleiben ein einzelner Anzeigename.
func SplitCreators(authors []string) []Creator {
	creators := make([]Creator, 0, len(authors))
	for _, a := range authors {
		if last, first, ok := strings.Cut(a, ","); ok {
			creators = append(creators, Creator{
				CreatorType: "author",
				FirstName:   strings.TrimSpace(first),
				LastName:    strings.TrimSpace(last),
			})
		} else {
			creators = append(creators, Creator{CreatorType: "author", Name: a})
		}
	}
	return creators
}
