package pubmed

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"refdesk/models"
)

// Unterstützte Zitationsformate.
const citationFormats = "bibtex, apa, mla, chicago, ris"

// FormatCitation exportiert die Zitation eines Artikels im gewünschten
// Format. Unbekannte Formate sind ein Eingabefehler, keine Netzrunde.
func (f *Fetcher) FormatCitation(ctx context.Context, pmid, format string) (string, error) {
	switch format {
	case "bibtex", "apa", "mla", "chicago", "ris":
	default:
		return "", fmt.Errorf("unbekanntes Format %q, erlaubt: %s", format, citationFormats)
	}

	paper, err := f.Get(ctx, pmid)
	if err != nil {
		return "", err
	}

	switch format {
	case "bibtex":
		return formatBibTeX(paper), nil
	case "apa":
		return formatAPA(paper), nil
	case "mla":
		return formatMLA(paper), nil
	case "chicago":
		return formatChicago(paper), nil
	default:
		return formatRIS(paper), nil
	}
}

func yearString(p *models.Paper) string {
	if y := p.Year(); y > 0 {
		return strconv.Itoa(y)
	}
	return ""
}

func formatBibTeX(p *models.Paper) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@article{pmid%s,\n", p.ID)
	fmt.Fprintf(&b, "  title = {%s},\n", p.Title)
	fmt.Fprintf(&b, "  author = {%s},\n", strings.Join(p.Authors, " and "))
	fmt.Fprintf(&b, "  journal = {%s},\n", p.Journal)
	fmt.Fprintf(&b, "  year = {%s},", yearString(p))
	if p.DOI != "" {
		fmt.Fprintf(&b, "\n  doi = {%s},", p.DOI)
	}
	fmt.Fprintf(&b, "\n  pmid = {%s}\n}", p.ID)
	return b.String()
}

func formatAPA(p *models.Paper) string {
	authors := "Author Unknown"
	if len(p.Authors) > 0 {
		// APA kürzt nach sieben Autoren
		shown := p.Authors
		if len(shown) > 7 {
			shown = shown[:7]
		}
		authors = strings.Join(shown, ", ")
		if len(p.Authors) > 7 {
			authors += ", et al."
		}
	}
	year := yearString(p)
	if year == "" {
		year = "n.d."
	}
	citation := fmt.Sprintf("%s (%s). %s. %s.", authors, year, p.Title, p.Journal)
	if p.DOI != "" {
		citation += " https://doi.org/" + p.DOI
	}
	return citation
}

func formatMLA(p *models.Paper) string {
	authors := "Unknown"
	if len(p.Authors) > 0 {
		authors = p.Authors[0]
		if len(p.Authors) > 1 {
			authors += ", et al."
		}
	}
	return fmt.Sprintf("%s. \"%s.\" %s, %s.", authors, p.Title, p.Journal, yearString(p))
}

func formatChicago(p *models.Paper) string {
	authors := "Unknown"
	if len(p.Authors) > 0 {
		authors = strings.Join(p.Authors, ", ")
	}
	return fmt.Sprintf("%s. %s. \"%s.\" %s.", authors, yearString(p), p.Title, p.Journal)
}

func formatRIS(p *models.Paper) string {
	var b strings.Builder
	b.WriteString("TY  - JOUR\n")
	fmt.Fprintf(&b, "TI  - %s\n", p.Title)
	for _, author := range p.Authors {
		fmt.Fprintf(&b, "AU  - %s\n", author)
	}
	fmt.Fprintf(&b, "JO  - %s\n", p.Journal)
	fmt.Fprintf(&b, "PY  - %s\n", yearString(p))
	if p.DOI != "" {
		fmt.Fprintf(&b, "DO  - %s\n", p.DOI)
	}
	fmt.Fprintf(&b, "UR  - https://pubmed.ncbi.nlm.nih.gov/%s/\n", p.ID)
	b.WriteString("ER  - \n")
	return b.String()
}
