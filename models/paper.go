package models

// Paper ist das kanonische Publikations-Modell, das alle Quellen-Adapter
// (PubMed, arXiv, Charité Forschungsdatenbank) produzieren. Quellenspezifische
// Felder sind optional und werden von Konsumenten nie vorausgesetzt.
type Paper struct {
	// Native ID der Quelle: numerische PMID, arXiv-ID ohne Versionssuffix,
	// leer für institutionelle Einträge (dort identifiziert die DOI).
	ID       string   `json:"id,omitempty"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract,omitempty"`
	Authors  []string `json:"authors"`
	// Partielles ISO-Datum: Jahr, Jahr-Monat oder Jahr-Monat-Tag.
	PublicationDate string `json:"publication_date,omitempty"`
	DOI             string `json:"doi,omitempty"`
	URL             string `json:"url,omitempty"`
	Source          string `json:"source"` // "pubmed" | "arxiv" | "charite"

	// Journal-Angaben
	Journal       string `json:"journal,omitempty"`
	JournalAbbrev string `json:"journal_abbrev,omitempty"`
	Volume        string `json:"volume,omitempty"`
	Issue         string `json:"issue,omitempty"`
	Pages         string `json:"pages,omitempty"`
	ISSN          string `json:"issn,omitempty"`

	// PubMed-spezifisch
	PMCID            string   `json:"pmcid,omitempty"`
	MeshTerms        []string `json:"mesh_terms,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	PublicationTypes []string `json:"publication_types,omitempty"`
	Language         string   `json:"language,omitempty"`

	// arXiv-spezifisch
	PrimaryCategory string   `json:"primary_category,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	PDFURL          string   `json:"pdf_url,omitempty"`
	Comment         string   `json:"comment,omitempty"`
	JournalRef      string   `json:"journal_ref,omitempty"`
	UpdatedDate     string   `json:"updated_date,omitempty"`

	// Charité-spezifisch
	PublicationType string           `json:"publication_type,omitempty"`
	Affiliation     string           `json:"affiliation,omitempty"`
	BookTitle       string           `json:"book_title,omitempty"`
	PubMedURL       string           `json:"pubmed_url,omitempty"`
	PMCURL          string           `json:"pmc_url,omitempty"`
	FulltextURL     string           `json:"fulltext_url,omitempty"`
	OpenAccess      string           `json:"open_access,omitempty"`
	InternalAuthors []InternalAuthor `json:"internal_authors,omitempty"`
}

// InternalAuthor ist ein Charité-interner Co-Autor mit optionalem API-Token.
type InternalAuthor struct {
	Surname   string `json:"surname"`
	FirstName string `json:"first_name"`
	Token     string `json:"token,omitempty"`
	Type      string `json:"type,omitempty"`
}

// Year gibt das Publikationsjahr zurück, 0 wenn keines erkennbar ist.
func (p *Paper) Year() int {
	return ExtractYear(p.PublicationDate)
}

// SearchOptions bündelt die optionalen Parameter einer Adapter-Suche.
// Nicht jede Quelle wertet jedes Feld aus.
type SearchOptions struct {
	MaxResults int    `json:"max_results,omitempty"`
	Sort       string `json:"sort,omitempty"` // "relevance" | "pub_date" | "most_recent"
	MinDate    string `json:"min_date,omitempty"`
	MaxDate    string `json:"max_date,omitempty"`
	// arXiv: Kategorien, die per AND-Klausel an die Query gehängt werden.
	Categories []string `json:"categories,omitempty"`
	// Charité: abweichende Mitgliederliste statt des konfigurierten Rosters.
	Members []TeamMember `json:"-"`
}

// Limit gibt MaxResults mit dem Fallback def zurück.
func (o SearchOptions) Limit(def int) int {
	if o.MaxResults > 0 {
		return o.MaxResults
	}
	return def
}
