// Package arxiv spricht die Atom-Schnittstelle von arXiv an: Suche,
// Detailabruf über id_list, PDF-Download und BibTeX-Export.
package arxiv

import "encoding/xml"

// atomFeed ist die Atom-Antwort der arXiv-API.
type atomFeed struct {
	XMLName      xml.Name    `xml:"feed"`
	TotalResults int         `xml:"totalResults"`
	Entries      []atomEntry `xml:"entry"`
}

// atomEntry ist ein einzelner Artikel im Feed. Die Felder doi, comment,
// journal_ref und primary_category stammen aus dem arXiv-Namensraum.
type atomEntry struct {
	ID              string         `xml:"id"`
	Title           string         `xml:"title"`
	Summary         string         `xml:"summary"`
	Published       string         `xml:"published"`
	Updated         string         `xml:"updated"`
	Authors         []atomAuthor   `xml:"author"`
	Links           []atomLink     `xml:"link"`
	DOI             string         `xml:"doi"`
	Comment         string         `xml:"comment"`
	JournalRef      string         `xml:"journal_ref"`
	PrimaryCategory atomCategory   `xml:"primary_category"`
	Categories      []atomCategory `xml:"category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// categoryNames erklärt die gängigen arXiv-Kategoriecodes für die UI.
var categoryNames = map[string]string{
	// Computer Science
	"cs.AI": "Artificial Intelligence",
	"cs.CL": "Computation and Language",
	"cs.CV": "Computer Vision and Pattern Recognition",
	"cs.LG": "Machine Learning",
	"cs.NE": "Neural and Evolutionary Computing",
	"cs.RO": "Robotics",

	// Mathematics
	"math.CO": "Combinatorics",
	"math.LO": "Logic",
	"math.ST": "Statistics Theory",

	// Physics
	"physics.bio-ph":  "Biological Physics",
	"physics.comp-ph": "Computational Physics",
	"physics.med-ph":  "Medical Physics",

	// Quantitative Biology
	"q-bio.BM": "Biomolecules",
	"q-bio.GN": "Genomics",
	"q-bio.NC": "Neurons and Cognition",
	"q-bio.QM": "Quantitative Methods",

	// Statistics
	"stat.AP": "Applications",
	"stat.CO": "Computation",
	"stat.ME": "Methodology",
	"stat.ML": "Machine Learning",
}

// Categories liefert eine Kopie der Kategorientabelle.
func Categories() map[string]string {
	out := make(map[string]string, len(categoryNames))
	for code, name := range categoryNames {
		out[code] = name
	}
	return out
}
